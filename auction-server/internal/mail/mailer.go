// Package mail delivers auction house letters through NATS JetStream. The
// mail-worker service consumes the stream and stores the letters in the
// players' mailboxes.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aaronwang/auction-house/auction-server/internal/auction"
	"github.com/aaronwang/auction-house/auction-server/internal/retryq"
	"github.com/aaronwang/auction-house/shared/models"
)

// Stream settings shared with the mail-worker.
const (
	StreamName    = models.MailStream
	StreamSubject = models.MailSubjects
)

var mailNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:auction-house:mail"))

// MailID derives a stable id for one letter. Republishing the same letter
// yields the same id, which JetStream and the mailbox use to drop
// duplicates.
func MailID(kind models.MailKind, house, auctionID, itemGUID uint32, recipient auction.PlayerID, bid int64) string {
	name := fmt.Sprintf("%d:%d:%d:%s:%d:%d", house, auctionID, itemGUID, kind, recipient, bid)
	return uuid.NewSHA1(mailNamespace, []byte(name)).String()
}

// publisher is the part of jetstream.JetStream the mailer uses.
type publisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EnsureStream creates or updates the mail stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Auction house mail awaiting mailbox delivery",
		Subjects:    []string{StreamSubject},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      30 * 24 * time.Hour,
		Duplicates:  10 * time.Minute,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create/update stream: %w", err)
	}
	return nil
}

// Mailer implements auction.Mailer and auction.Inventory. Settlement mail
// is queued and published in order with retries; a cancelled listing's
// item is published synchronously so the engine can abort on failure.
type Mailer struct {
	js    publisher
	queue *retryq.Queue[models.Mail]
	cfg   retryq.Config
	now   func() time.Time
	log   *slog.Logger
}

var (
	_ auction.Mailer    = (*Mailer)(nil)
	_ auction.Inventory = (*Mailer)(nil)
)

// NewMailer starts a mailer publishing to js.
func NewMailer(js publisher, cfg retryq.Config, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mailer{
		js:  js,
		cfg: cfg,
		now: time.Now,
		log: logger.With("component", "mailer"),
	}
	m.queue = retryq.New(m.publish, mailAttrs, cfg, m.log)
	return m
}

func mailAttrs(ml models.Mail) []any {
	return []any{
		slog.String("mail_id", ml.ID),
		slog.String("kind", string(ml.Kind)),
		slog.Uint64("recipient", uint64(ml.Recipient)),
		slog.Uint64("auction_id", uint64(ml.AuctionID)),
	}
}

func (m *Mailer) publish(ctx context.Context, ml models.Mail) error {
	data, err := json.Marshal(ml)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to marshal mail: %w", err))
	}
	msg := nats.NewMsg(ml.Subject())
	msg.Data = data
	msg.Header.Set(jetstream.MsgIDHeader, ml.ID)
	ack, err := m.js.PublishMsg(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}
	m.log.Debug("mail published",
		slog.String("mail_id", ml.ID),
		slog.String("subject", ml.Subject()),
		slog.Uint64("seq", ack.Sequence),
		slog.Bool("duplicate", ack.Duplicate))
	return nil
}

func (m *Mailer) letter(kind models.MailKind, recipient auction.PlayerID, e auction.Entry, item *auction.Item) models.Mail {
	ml := models.Mail{
		ID:        MailID(kind, uint32(e.HouseID), e.ID, e.ItemGUID, recipient, e.Bid),
		Kind:      kind,
		Recipient: uint32(recipient),
		HouseID:   uint32(e.HouseID),
		AuctionID: e.ID,
		Bid:       e.Bid,
		Buyout:    e.Buyout,
		Deposit:   e.Deposit,
		CreatedAt: m.now().UTC(),
	}
	if item != nil {
		ml.Item = &models.MailItem{
			GUID:             item.GUID,
			Entry:            item.TemplateID,
			Count:            item.Count,
			RandomPropertyID: item.RandomPropertyID,
		}
	}
	return ml
}

func (m *Mailer) send(ml models.Mail) {
	if !m.queue.Push(ml) {
		m.log.Error("mail after close dropped", mailAttrs(ml)...)
	}
}

// NotifyWon sends the item to the winner.
func (m *Mailer) NotifyWon(_ context.Context, winner auction.PlayerID, item *auction.Item, e auction.Entry) {
	m.send(m.letter(models.MailWon, winner, e, item))
}

// NotifySaleSuccessful sends the seller the sale price minus the cut.
func (m *Mailer) NotifySaleSuccessful(_ context.Context, seller auction.PlayerID, net int64, e auction.Entry) {
	ml := m.letter(models.MailSaleSuccessful, seller, e, nil)
	ml.Money = net
	ml.Cut = e.Bid - net
	m.send(ml)
}

// NotifyExpired returns an unsold item to its seller.
func (m *Mailer) NotifyExpired(_ context.Context, seller auction.PlayerID, item *auction.Item, e auction.Entry) {
	m.send(m.letter(models.MailExpired, seller, e, item))
}

// NotifyOutbid tells a bidder they lost the lead. The refunded amount is
// already back on their balance; the letter only reports it.
func (m *Mailer) NotifyOutbid(_ context.Context, bidder auction.PlayerID, refund int64, e auction.Entry) {
	ml := m.letter(models.MailOutbid, bidder, e, nil)
	ml.Money = refund
	// keyed by the refunded bid; e.Bid already holds the new one
	ml.ID = MailID(models.MailOutbid, uint32(e.HouseID), e.ID, e.ItemGUID, bidder, refund)
	m.send(ml)
}

// ReturnItem mails a cancelled listing's item back to its owner.
func (m *Mailer) ReturnItem(ctx context.Context, owner auction.PlayerID, item *auction.Item) error {
	// one attempt per call, so a random id is enough
	ml := models.Mail{
		ID:        uuid.New().String(),
		Kind:      models.MailCancelled,
		Recipient: uint32(owner),
		Item: &models.MailItem{
			GUID:             item.GUID,
			Entry:            item.TemplateID,
			Count:            item.Count,
			RandomPropertyID: item.RandomPropertyID,
		},
		CreatedAt: m.now().UTC(),
	}
	timeout := m.cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.publish(ctx, ml)
}

// Pending returns the number of letters waiting to be published.
func (m *Mailer) Pending() int {
	return m.queue.Pending()
}

// Close stops accepting mail and waits until queued letters are published
// or ctx is done.
func (m *Mailer) Close(ctx context.Context) error {
	return m.queue.Close(ctx)
}
