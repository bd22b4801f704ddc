package auction

import (
	"fmt"
	"time"
)

// PlayerID identifies a character. NoPlayer means "nobody": a system
// generated auction has no owner and an auction without bids has no bidder.
type PlayerID uint32

// NoPlayer is the zero PlayerID.
const NoPlayer PlayerID = 0

// HouseID identifies a marketplace instance (one Pool per house).
type HouseID uint32

// Faction labels the side a house serves. The directory does not check it:
// the game server routes a player to the houses their faction may use.
type Faction string

const (
	FactionAlliance Faction = "alliance"
	FactionHorde    Faction = "horde"
	FactionNeutral  Faction = "neutral"
)

// House is the immutable configuration of one marketplace instance.
type House struct {
	ID             HouseID
	Name           string
	Faction        Faction
	DepositPercent int64         // of item sell price per MinDuration unit
	CutPercent     int64         // of final sale price
	MaxCut         int64         // 0 = uncapped
	MinDuration    time.Duration // listing floor, also the deposit time unit
	MaxDuration    time.Duration
}

func (h House) validate() error {
	if h.ID == 0 {
		return fmt.Errorf("%w: house id is required", ErrInvalidHouseConfig)
	}
	switch h.Faction {
	case FactionAlliance, FactionHorde, FactionNeutral:
	default:
		return fmt.Errorf("%w: house %d has unknown faction %q", ErrInvalidHouseConfig, h.ID, h.Faction)
	}
	if h.DepositPercent < 0 || h.CutPercent < 0 || h.CutPercent > 100 || h.MaxCut < 0 {
		return fmt.Errorf("%w: house %d has invalid fee schedule", ErrInvalidHouseConfig, h.ID)
	}
	if h.MinDuration <= 0 || h.MaxDuration < h.MinDuration {
		return fmt.Errorf("%w: house %d has invalid duration bounds", ErrInvalidHouseConfig, h.ID)
	}
	return nil
}

// ItemTemplate is the static data of an item kind needed for deposits and
// browse filters.
type ItemTemplate struct {
	ID            uint32
	Name          string
	Class         uint32
	SubClass      uint32
	Quality       uint32
	InventoryType uint32
	RequiredLevel uint32
	SellPrice     int64
	MaxStack      uint32
}

// Item is a live item instance. While listed it is owned by the escrow
// registry of the Directory.
type Item struct {
	GUID             uint32
	TemplateID       uint32
	Count            uint32
	RandomPropertyID int32
	Owner            PlayerID
}

// Entry is one auction listing.
//
// The item is referenced by identifiers only; the live item sits in escrow
// and may already be gone (mailed to the winner) while the entry is settled.
type Entry struct {
	ID               uint32
	ItemGUID         uint32
	ItemTemplate     uint32
	ItemCount        uint32
	RandomPropertyID int32
	Owner            PlayerID // NoPlayer for server generated auctions
	Bidder           PlayerID // NoPlayer until the first bid
	StartBid         int64
	Bid              int64 // 0 = no bids
	Buyout           int64 // 0 = no buyout
	Deposit          int64 // fixed at creation
	HouseID          HouseID
	ExpiresAt        time.Time
}

// HasBid reports whether someone holds a standing bid.
func (e *Entry) HasBid() bool {
	return e.Bid != 0
}

// MinNextBid is the smallest amount the next bid must reach.
func (e *Entry) MinNextBid(econ Economy) int64 {
	if !e.HasBid() {
		return e.StartBid
	}
	return e.Bid + econ.MinIncrement(e.Bid)
}

// checkBid validates a bid without mutating anything.
func (e *Entry) checkBid(bidder PlayerID, amount int64, econ Economy) error {
	if bidder == NoPlayer {
		return ErrInvalidBidder
	}
	if e.Owner != NoPlayer && bidder == e.Owner {
		return ErrOwnAuction
	}
	if bidder == e.Bidder {
		return ErrSelfBid
	}
	if amount < e.MinNextBid(econ) {
		return ErrBidTooLow
	}
	return nil
}

// checkBuyout validates an instant buyout without mutating anything.
func (e *Entry) checkBuyout(buyer PlayerID) error {
	if e.Buyout == 0 {
		return ErrNoBuyoutOffered
	}
	if buyer == NoPlayer {
		return ErrInvalidBidder
	}
	if e.Owner != NoPlayer && buyer == e.Owner {
		return ErrOwnAuction
	}
	if buyer == e.Bidder {
		return ErrSelfBid
	}
	return nil
}

// check verifies the entry's bid state invariants.
func (e *Entry) check() error {
	if e.Bid == 0 && e.Bidder != NoPlayer {
		return fmt.Errorf("%w: auction %d has bidder %d without a bid", ErrCorruptEntry, e.ID, e.Bidder)
	}
	if e.Bidder != NoPlayer && e.Bid < e.StartBid {
		return fmt.Errorf("%w: auction %d bid %d below start %d", ErrCorruptEntry, e.ID, e.Bid, e.StartBid)
	}
	if e.Buyout != 0 && e.Buyout < e.StartBid {
		return fmt.Errorf("%w: auction %d buyout %d below start %d", ErrCorruptEntry, e.ID, e.Buyout, e.StartBid)
	}
	return nil
}
