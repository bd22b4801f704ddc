package models

import "time"

// JetStream stream carrying auction house mail.
const (
	MailStream        = "AUCTION_MAIL"
	MailSubjectPrefix = "auction.mail."
	MailSubjects      = MailSubjectPrefix + ">"
)

// MailKind identifies why a mail was sent by the auction house.
type MailKind string

// MailKind constants
const (
	MailWon            MailKind = "won"
	MailSaleSuccessful MailKind = "sale_successful"
	MailExpired        MailKind = "expired"
	MailOutbid         MailKind = "outbid"
	MailCancelled      MailKind = "cancelled"
)

// MailItem is an item attached to a mail.
type MailItem struct {
	GUID             uint32 `json:"guid"`
	Entry            uint32 `json:"entry"`
	Count            uint32 `json:"count"`
	RandomPropertyID int32  `json:"random_property_id,omitempty"`
}

// Mail is one auction house letter. It is published to NATS JetStream
// (subject "auction.mail.{kind}") and persisted by the mail worker.
//
// ID is derived from the auction and the settlement event, so a republished
// mail carries the same ID and is delivered to the mailbox only once.
type Mail struct {
	ID        string    `json:"id"`
	Kind      MailKind  `json:"kind"`
	Recipient uint32    `json:"recipient"`
	HouseID   uint32    `json:"house_id"`
	AuctionID uint32    `json:"auction_id"`
	Item      *MailItem `json:"item,omitempty"`
	Money     int64     `json:"money"`
	Bid       int64     `json:"bid"`
	Buyout    int64     `json:"buyout,omitempty"`
	Deposit   int64     `json:"deposit,omitempty"`
	Cut       int64     `json:"cut,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Subject returns the JetStream subject this mail is published on.
func (m *Mail) Subject() string {
	return MailSubjectPrefix + string(m.Kind)
}
