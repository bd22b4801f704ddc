package models

import "time"

// AuctionEvent represents a state change of one auction listing.
// This is published to Redis Pub/Sub (channel "auction_events:{houseID}") and
// forwarded by the broadcast service to WebSocket clients watching that house.
type AuctionEvent struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	HouseID   uint32    `json:"house_id"`
	AuctionID uint32    `json:"auction_id"`
	ItemEntry uint32    `json:"item_entry"`
	ItemCount uint32    `json:"item_count"`
	Owner     uint32    `json:"owner,omitempty"`
	Bidder    uint32    `json:"bidder,omitempty"`
	Bid       int64     `json:"bid"`
	Buyout    int64     `json:"buyout,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

// Pub/Sub channels, one per house
const (
	EventChannelPrefix  = "auction_events:"
	EventChannelPattern = EventChannelPrefix + "*"
)

// AuctionEvent types
const (
	EventListed    = "listed"
	EventBidPlaced = "bid_placed"
	EventSold      = "sold"
	EventExpired   = "expired"
	EventCancelled = "cancelled"
)
