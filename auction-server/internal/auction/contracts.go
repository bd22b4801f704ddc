package auction

import (
	"context"

	"github.com/aaronwang/auction-house/shared/models"
)

// Templates resolves item templates.
type Templates interface {
	Template(id uint32) (ItemTemplate, bool)
}

// Bank moves currency on behalf of the engine. Reserve, Debit and Capture
// return ErrInsufficientFunds when the player cannot cover the amount.
type Bank interface {
	CanAfford(ctx context.Context, player PlayerID, amount int64) (bool, error)
	// Reserve moves amount from the spendable balance into a hold.
	Reserve(ctx context.Context, player PlayerID, amount int64) error
	// Release returns a hold to the spendable balance.
	Release(ctx context.Context, player PlayerID, amount int64) error
	// Capture consumes a hold.
	Capture(ctx context.Context, player PlayerID, amount int64) error
	Debit(ctx context.Context, player PlayerID, amount int64) error
	Credit(ctx context.Context, player PlayerID, amount int64) error
}

// Mailer delivers settlement mail. Calls never block on delivery; the
// implementation queues the mail and delivers it exactly once.
type Mailer interface {
	NotifyWon(ctx context.Context, winner PlayerID, item *Item, entry Entry)
	NotifySaleSuccessful(ctx context.Context, seller PlayerID, net int64, entry Entry)
	NotifyExpired(ctx context.Context, seller PlayerID, item *Item, entry Entry)
	NotifyOutbid(ctx context.Context, bidder PlayerID, refund int64, entry Entry)
}

// Inventory hands an item straight back to a player.
type Inventory interface {
	ReturnItem(ctx context.Context, owner PlayerID, item *Item) error
}

// Persister mirrors engine state to durable storage. Calls queue the write
// and return immediately.
type Persister interface {
	SaveEntry(entry Entry)
	DeleteEntry(id uint32)
	SaveItem(item Item)
	DeleteItem(guid uint32)
}

// Loader reads the durable state at startup.
type Loader interface {
	LoadItems(ctx context.Context) ([]Item, error)
	LoadEntries(ctx context.Context) ([]Entry, error)
}

// Repository is the blocking storage surface behind a Persister.
type Repository interface {
	Loader
	SaveEntry(ctx context.Context, entry Entry) error
	DeleteEntry(ctx context.Context, id uint32) error
	SaveItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, guid uint32) error
}

// EventPublisher broadcasts auction state changes to live viewers.
type EventPublisher interface {
	Publish(ctx context.Context, event models.AuctionEvent)
}

type nopPersister struct{}

func (nopPersister) SaveEntry(Entry)    {}
func (nopPersister) DeleteEntry(uint32) {}
func (nopPersister) SaveItem(Item)      {}
func (nopPersister) DeleteItem(uint32)  {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.AuctionEvent) {}
