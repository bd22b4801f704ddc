package models

import "time"

// Auction is the API view of one listing.
type Auction struct {
	ID               uint32    `json:"id"`
	HouseID          uint32    `json:"house_id"`
	ItemGUID         uint32    `json:"item_guid"`
	ItemEntry        uint32    `json:"item_entry"`
	ItemCount        uint32    `json:"item_count"`
	RandomPropertyID int32     `json:"random_property_id,omitempty"`
	Owner            uint32    `json:"owner,omitempty"`
	Bidder           uint32    `json:"bidder,omitempty"`
	StartBid         int64     `json:"start_bid"`
	Bid              int64     `json:"bid"`
	MinNextBid       int64     `json:"min_next_bid"`
	Buyout           int64     `json:"buyout,omitempty"`
	Deposit          int64     `json:"deposit"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// AuctionPage is one page of a listing query.
type AuctionPage struct {
	Auctions []Auction `json:"auctions"`
	Total    int       `json:"total"`
}

// ItemRef identifies the item put up for auction.
type ItemRef struct {
	GUID             uint32 `json:"guid"`
	Entry            uint32 `json:"entry"`
	Count            uint32 `json:"count"`
	RandomPropertyID int32  `json:"random_property_id,omitempty"`
}

// ListingRequest represents a request to create an auction.
type ListingRequest struct {
	Seller          uint32  `json:"seller"`
	Item            ItemRef `json:"item"`
	DurationMinutes int     `json:"duration_minutes"`
	StartBid        int64   `json:"start_bid"`
	Buyout          int64   `json:"buyout,omitempty"`
	Deposit         int64   `json:"deposit,omitempty"`
}

// BidRequest represents an incoming bid or buyout request.
type BidRequest struct {
	Bidder uint32 `json:"bidder"`
	Amount int64  `json:"amount,omitempty"`
}

// BidResponse is returned after a successful bid or buyout.
type BidResponse struct {
	Outcome string   `json:"outcome"`
	Auction *Auction `json:"auction,omitempty"`
}

// House is the API view of an auction house's fee schedule.
type House struct {
	ID                 uint32 `json:"id"`
	Name               string `json:"name"`
	Faction            string `json:"faction"`
	DepositPercent     int64  `json:"deposit_percent"`
	CutPercent         int64  `json:"cut_percent"`
	MinDurationMinutes int    `json:"min_duration_minutes"`
	MaxDurationMinutes int    `json:"max_duration_minutes"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
