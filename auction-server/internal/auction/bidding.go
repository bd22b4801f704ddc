package auction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aaronwang/auction-house/shared/models"
)

// BidOutcome tells whether a bid left the auction running or ended it.
type BidOutcome int

const (
	BidPlaced BidOutcome = iota + 1
	BoughtOut
)

func (o BidOutcome) String() string {
	switch o {
	case BidPlaced:
		return "bid_placed"
	case BoughtOut:
		return "bought_out"
	default:
		return "none"
	}
}

// liveEntry returns an auction that can still take bids.
func (d *Directory) liveEntry(house HouseID, id uint32) (*Pool, *Entry, error) {
	pool, err := d.Route(house)
	if err != nil {
		return nil, nil, err
	}
	e, ok := pool.Get(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrAuctionNotFound, id)
	}
	if !e.ExpiresAt.After(d.now()) {
		return nil, nil, ErrAuctionExpired
	}
	return pool, e, nil
}

// PlaceBid raises the bid on an auction. The bidder's funds are reserved
// and the previous high bidder's reservation is released. A bid reaching
// the buyout price buys the item out. The deadline never moves.
func (d *Directory) PlaceBid(ctx context.Context, house HouseID, id uint32, bidder PlayerID, amount int64) (BidOutcome, error) {
	pool, e, err := d.liveEntry(house, id)
	if err != nil {
		return 0, err
	}
	if e.Buyout > 0 && amount >= e.Buyout {
		return d.buyout(ctx, pool, e, bidder)
	}
	if err := e.checkBid(bidder, amount, d.economy); err != nil {
		return 0, err
	}
	ctx = detach(ctx)
	if err := d.bank.Reserve(ctx, bidder, amount); err != nil {
		return 0, fmt.Errorf("reserve bid: %w", err)
	}

	prevBidder, prevBid := e.Bidder, e.Bid
	e.Bidder, e.Bid = bidder, amount
	d.refundOutbid(ctx, e, prevBidder, prevBid)

	d.persister.SaveEntry(*e)
	d.publish(ctx, models.EventBidPlaced, e)
	d.log.Info("bid placed",
		slog.Uint64("auction_id", uint64(e.ID)),
		slog.Uint64("bidder", uint64(bidder)),
		slog.Int64("bid", amount))
	return BidPlaced, nil
}

// Buyout buys an auction at its buyout price and settles it at once.
func (d *Directory) Buyout(ctx context.Context, house HouseID, id uint32, buyer PlayerID) (BidOutcome, error) {
	pool, e, err := d.liveEntry(house, id)
	if err != nil {
		return 0, err
	}
	return d.buyout(ctx, pool, e, buyer)
}

func (d *Directory) buyout(ctx context.Context, pool *Pool, e *Entry, buyer PlayerID) (BidOutcome, error) {
	if err := e.checkBuyout(buyer); err != nil {
		return 0, err
	}
	ctx = detach(ctx)
	if err := d.bank.Debit(ctx, buyer, e.Buyout); err != nil {
		return 0, fmt.Errorf("pay buyout: %w", err)
	}

	prevBidder, prevBid := e.Bidder, e.Bid
	e.Bidder, e.Bid = buyer, e.Buyout
	d.refundOutbid(ctx, e, prevBidder, prevBid)

	d.settleSold(ctx, pool.house, e)
	pool.Remove(e.ID)
	return BoughtOut, nil
}

// refundOutbid releases the reservation of a bidder who lost the lead.
func (d *Directory) refundOutbid(ctx context.Context, e *Entry, prev PlayerID, amount int64) {
	if prev == NoPlayer || amount == 0 {
		return
	}
	if err := d.bank.Release(ctx, prev, amount); err != nil {
		d.log.Error("release outbid funds failed",
			slog.Uint64("auction_id", uint64(e.ID)),
			slog.Uint64("bidder", uint64(prev)),
			slog.Int64("amount", amount),
			slog.String("error", err.Error()))
	}
	d.mailer.NotifyOutbid(ctx, prev, amount, *e)
}
