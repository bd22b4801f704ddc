package auction

import (
	"context"
	"log/slog"

	"github.com/aaronwang/auction-house/shared/models"
)

// settleExpired ends an auction whose deadline passed. The caller removes
// the entry from its pool.
func (d *Directory) settleExpired(ctx context.Context, h House, e *Entry) {
	if e.HasBid() {
		if e.Bidder == NoPlayer {
			// house-placed bid: nothing was reserved
			d.settleSold(ctx, h, e)
			return
		}
		if err := d.bank.Capture(ctx, e.Bidder, e.Bid); err != nil {
			d.log.Error("capture winning bid failed",
				slog.Uint64("auction_id", uint64(e.ID)),
				slog.Uint64("bidder", uint64(e.Bidder)),
				slog.String("error", err.Error()))
		}
		d.settleSold(ctx, h, e)
		return
	}
	d.settleUnsold(ctx, e)
}

// settleSold pays the seller, sends the item to the winner and retires the
// auction. The winner's money has already been taken. The deposit stays
// with the house. An item won by a house-placed bid is destroyed.
func (d *Directory) settleSold(ctx context.Context, h House, e *Entry) {
	price := e.Bid
	cut := d.economy.Cut(h, price)
	net := price - cut

	if e.Owner != NoPlayer {
		if net > 0 {
			if err := d.bank.Credit(ctx, e.Owner, net); err != nil {
				d.log.Error("credit seller failed",
					slog.Uint64("auction_id", uint64(e.ID)),
					slog.Uint64("seller", uint64(e.Owner)),
					slog.Int64("amount", net),
					slog.String("error", err.Error()))
			}
		}
		d.mailer.NotifySaleSuccessful(ctx, e.Owner, net, *e)
	}

	it, ok := d.takeItem(e.ItemGUID)
	switch {
	case !ok:
		d.log.Error("sold auction had no escrowed item",
			slog.Uint64("auction_id", uint64(e.ID)),
			slog.Uint64("item_guid", uint64(e.ItemGUID)))
	case e.Bidder == NoPlayer:
		d.log.Info("auction won by the house, item destroyed",
			slog.Uint64("auction_id", uint64(e.ID)),
			slog.Uint64("item_guid", uint64(e.ItemGUID)))
	default:
		it.Owner = e.Bidder
		d.mailer.NotifyWon(ctx, e.Bidder, it, *e)
	}

	d.persister.DeleteEntry(e.ID)
	d.publish(ctx, models.EventSold, e)
	d.log.Info("auction sold",
		slog.Uint64("auction_id", uint64(e.ID)),
		slog.Uint64("winner", uint64(e.Bidder)),
		slog.Int64("price", price),
		slog.Int64("cut", cut))
}

// settleUnsold returns the item of an auction that got no bids.
func (d *Directory) settleUnsold(ctx context.Context, e *Entry) {
	it, ok := d.takeItem(e.ItemGUID)
	switch {
	case !ok:
		d.log.Error("expired auction had no escrowed item",
			slog.Uint64("auction_id", uint64(e.ID)),
			slog.Uint64("item_guid", uint64(e.ItemGUID)))
	case e.Owner == NoPlayer:
		d.log.Info("system auction expired, item destroyed",
			slog.Uint64("auction_id", uint64(e.ID)),
			slog.Uint64("item_guid", uint64(e.ItemGUID)))
	default:
		d.mailer.NotifyExpired(ctx, e.Owner, it, *e)
	}

	if e.Owner != NoPlayer && e.Deposit > 0 && d.economy.DepositPolicy == DepositRefund {
		if err := d.bank.Credit(ctx, e.Owner, e.Deposit); err != nil {
			d.log.Error("refund deposit failed",
				slog.Uint64("auction_id", uint64(e.ID)),
				slog.String("error", err.Error()))
		}
	}

	d.persister.DeleteEntry(e.ID)
	d.publish(ctx, models.EventExpired, e)
	d.log.Info("auction expired", slog.Uint64("auction_id", uint64(e.ID)))
}
