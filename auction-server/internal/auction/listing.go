package auction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aaronwang/auction-house/shared/models"
)

// ListingRequest asks to put an item up for auction. Item must already be
// detached from the seller's inventory; from here on escrow owns it.
type ListingRequest struct {
	HouseID  HouseID
	Seller   PlayerID
	Item     Item
	Duration time.Duration
	StartBid int64
	Buyout   int64 // 0 = no buyout
	// Deposit is the amount the client was shown. Zero skips the check; the
	// charged deposit is always computed server side.
	Deposit int64
}

// ComputeDeposit returns the listing deposit for an item at a house.
func (d *Directory) ComputeDeposit(house HouseID, duration time.Duration, item Item) (int64, error) {
	pool, err := d.Route(house)
	if err != nil {
		return 0, err
	}
	tpl, ok := d.templates.Template(item.TemplateID)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownItem, item.TemplateID)
	}
	return d.economy.Deposit(pool.house, duration, tpl, item.Count), nil
}

func (d *Directory) validateListing(pool *Pool, req ListingRequest) (int64, error) {
	h := pool.house
	if req.Seller == NoPlayer {
		return 0, ErrInvalidBidder
	}
	if req.Item.GUID == 0 || req.Item.Count == 0 {
		return 0, ErrInvalidItem
	}
	tpl, ok := d.templates.Template(req.Item.TemplateID)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownItem, req.Item.TemplateID)
	}
	if tpl.MaxStack > 0 && req.Item.Count > tpl.MaxStack {
		return 0, fmt.Errorf("%w: stack of %d exceeds %d", ErrInvalidItem, req.Item.Count, tpl.MaxStack)
	}
	if _, held := d.escrow[req.Item.GUID]; held {
		return 0, ErrItemAlreadyListed
	}
	if req.Duration < h.MinDuration {
		return 0, ErrDurationTooShort
	}
	if req.Duration > h.MaxDuration {
		return 0, ErrDurationTooLong
	}
	if req.StartBid <= 0 {
		return 0, ErrInvalidPrice
	}
	if req.Buyout != 0 && req.Buyout < req.StartBid {
		return 0, ErrBuyoutBelowStart
	}
	deposit := d.economy.Deposit(h, req.Duration, tpl, req.Item.Count)
	if req.Deposit != 0 && req.Deposit != deposit {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDepositMismatch, req.Deposit, deposit)
	}
	return deposit, nil
}

// CreateListing validates a listing, charges the deposit, takes the item
// into escrow and opens the auction. It returns the new auction id.
func (d *Directory) CreateListing(ctx context.Context, req ListingRequest) (uint32, error) {
	pool, err := d.Route(req.HouseID)
	if err != nil {
		return 0, err
	}
	deposit, err := d.validateListing(pool, req)
	if err != nil {
		return 0, err
	}
	ctx = detach(ctx)
	if deposit > 0 {
		ok, err := d.bank.CanAfford(ctx, req.Seller, deposit)
		if err != nil {
			return 0, fmt.Errorf("check deposit funds: %w", err)
		}
		if !ok {
			return 0, ErrInsufficientFunds
		}
		if err := d.bank.Debit(ctx, req.Seller, deposit); err != nil {
			return 0, fmt.Errorf("charge deposit: %w", err)
		}
	}

	item := req.Item
	item.Owner = req.Seller
	e := &Entry{
		ID:               d.nextID,
		ItemGUID:         item.GUID,
		ItemTemplate:     item.TemplateID,
		ItemCount:        item.Count,
		RandomPropertyID: item.RandomPropertyID,
		Owner:            req.Seller,
		StartBid:         req.StartBid,
		Buyout:           req.Buyout,
		Deposit:          deposit,
		HouseID:          pool.house.ID,
		ExpiresAt:        d.now().Add(req.Duration).Truncate(time.Millisecond),
	}
	if err := pool.Add(e); err != nil {
		// ids are allocated here only, so this is a bug; undo the charge
		d.log.Error("auction id collision", slog.Uint64("auction_id", uint64(e.ID)))
		if deposit > 0 {
			if cerr := d.bank.Credit(ctx, req.Seller, deposit); cerr != nil {
				d.log.Error("refund deposit failed", slog.String("error", cerr.Error()))
			}
		}
		return 0, err
	}
	d.nextID++
	d.addItem(&item)
	d.persister.SaveItem(item)
	d.persister.SaveEntry(*e)
	d.publish(ctx, models.EventListed, e)

	d.log.Info("auction listed",
		slog.Uint64("auction_id", uint64(e.ID)),
		slog.Uint64("house_id", uint64(e.HouseID)),
		slog.Uint64("seller", uint64(e.Owner)),
		slog.Int64("start_bid", e.StartBid),
		slog.Int64("buyout", e.Buyout),
		slog.Int64("deposit", e.Deposit))
	return e.ID, nil
}

// Cancel withdraws a running auction without bids. The item goes straight
// back to the seller together with the full deposit. Past the deadline the
// auction belongs to the next sweep.
func (d *Directory) Cancel(ctx context.Context, house HouseID, id uint32, seller PlayerID) error {
	pool, err := d.Route(house)
	if err != nil {
		return err
	}
	e, ok := pool.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrAuctionNotFound, id)
	}
	if seller == NoPlayer || seller != e.Owner {
		return ErrNotOwner
	}
	if e.HasBid() {
		return ErrHasBids
	}
	if !e.ExpiresAt.After(d.now()) {
		return ErrAuctionExpired
	}
	ctx = detach(ctx)

	if it, ok := d.escrow[e.ItemGUID]; ok {
		if err := d.inventory.ReturnItem(ctx, e.Owner, it); err != nil {
			return fmt.Errorf("return item: %w", err)
		}
		d.takeItem(e.ItemGUID)
	} else {
		d.log.Error("cancelled auction had no escrowed item",
			slog.Uint64("auction_id", uint64(e.ID)),
			slog.Uint64("item_guid", uint64(e.ItemGUID)))
	}
	if e.Deposit > 0 {
		if err := d.bank.Credit(ctx, e.Owner, e.Deposit); err != nil {
			d.log.Error("refund deposit failed",
				slog.Uint64("auction_id", uint64(e.ID)),
				slog.String("error", err.Error()))
		}
	}
	pool.Remove(e.ID)
	d.persister.DeleteEntry(e.ID)
	d.publish(ctx, models.EventCancelled, e)
	d.log.Info("auction cancelled", slog.Uint64("auction_id", uint64(e.ID)))
	return nil
}
