// Package auction implements the auction house engine: listings with timed
// bidding and instant buyout, one pool per house, an escrow registry for
// listed items and settlement through mail and currency transfers.
//
// The engine is single-writer. A Directory must only be used from one
// goroutine at a time; service.World serializes all calls onto its loop.
package auction

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aaronwang/auction-house/shared/models"
)

// Config is the static configuration of a Directory.
type Config struct {
	Houses  []House
	Economy Economy
}

// Deps are the collaborators of a Directory. Templates, Bank, Mailer and
// Inventory are required.
type Deps struct {
	Templates Templates
	Bank      Bank
	Mailer    Mailer
	Inventory Inventory
	Persister Persister
	Events    EventPublisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Directory owns every house's Pool and the escrow registry.
type Directory struct {
	houseIDs []HouseID // ascending, the sweep order
	pools    map[HouseID]*Pool
	escrow   map[uint32]*Item
	economy  Economy
	nextID   uint32

	itemsLoaded bool

	templates Templates
	bank      Bank
	mailer    Mailer
	inventory Inventory
	persister Persister
	events    EventPublisher
	log       *slog.Logger
	now       func() time.Time
}

// NewDirectory validates the configuration and creates one empty pool per
// house. Any error here is a configuration error.
func NewDirectory(cfg Config, deps Deps) (*Directory, error) {
	if len(cfg.Houses) == 0 {
		return nil, fmt.Errorf("%w: no houses configured", ErrInvalidHouseConfig)
	}
	if err := cfg.Economy.validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Templates == nil:
		return nil, fmt.Errorf("%w: templates", ErrMissingDependency)
	case deps.Bank == nil:
		return nil, fmt.Errorf("%w: bank", ErrMissingDependency)
	case deps.Mailer == nil:
		return nil, fmt.Errorf("%w: mailer", ErrMissingDependency)
	case deps.Inventory == nil:
		return nil, fmt.Errorf("%w: inventory", ErrMissingDependency)
	}

	d := &Directory{
		pools:     make(map[HouseID]*Pool, len(cfg.Houses)),
		escrow:    make(map[uint32]*Item),
		economy:   cfg.Economy,
		nextID:    1,
		templates: deps.Templates,
		bank:      deps.Bank,
		mailer:    deps.Mailer,
		inventory: deps.Inventory,
		persister: deps.Persister,
		events:    deps.Events,
		log:       deps.Logger,
		now:       deps.Now,
	}
	if d.persister == nil {
		d.persister = nopPersister{}
	}
	if d.events == nil {
		d.events = nopPublisher{}
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}

	for _, h := range cfg.Houses {
		if err := h.validate(); err != nil {
			return nil, err
		}
		if _, dup := d.pools[h.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate house %d", ErrInvalidHouseConfig, h.ID)
		}
		d.pools[h.ID] = newPool(h)
		d.houseIDs = append(d.houseIDs, h.ID)
	}
	slices.Sort(d.houseIDs)
	return d, nil
}

// Economy returns the money rules in effect.
func (d *Directory) Economy() Economy {
	return d.economy
}

// Houses returns the configured houses in id order.
func (d *Directory) Houses() []House {
	out := make([]House, 0, len(d.houseIDs))
	for _, id := range d.houseIDs {
		out = append(out, d.pools[id].house)
	}
	return out
}

// Route returns the pool of a house.
func (d *Directory) Route(house HouseID) (*Pool, error) {
	p, ok := d.pools[house]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHouse, house)
	}
	return p, nil
}

// Get returns a copy of one auction.
func (d *Directory) Get(house HouseID, id uint32) (Entry, error) {
	pool, err := d.Route(house)
	if err != nil {
		return Entry{}, err
	}
	e, ok := pool.Get(id)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %d", ErrAuctionNotFound, id)
	}
	return *e, nil
}

// Count returns the number of live auctions across all houses.
func (d *Directory) Count() int {
	n := 0
	for _, p := range d.pools {
		n += p.Count()
	}
	return n
}

// ListByBidder lists the auctions of a house where player is high bidder.
func (d *Directory) ListByBidder(house HouseID, player PlayerID) ([]Entry, int, error) {
	pool, err := d.Route(house)
	if err != nil {
		return nil, 0, err
	}
	page, total := pool.ListByBidder(player)
	return page, total, nil
}

// ListByOwner lists the auctions a player has listed at a house.
func (d *Directory) ListByOwner(house HouseID, player PlayerID) ([]Entry, int, error) {
	pool, err := d.Route(house)
	if err != nil {
		return nil, 0, err
	}
	page, total := pool.ListByOwner(player)
	return page, total, nil
}

// Browse runs a filtered, paged search over a house.
func (d *Directory) Browse(house HouseID, q BrowseQuery) ([]Entry, int, error) {
	pool, err := d.Route(house)
	if err != nil {
		return nil, 0, err
	}
	page, total := pool.Browse(q, d.templates)
	return page, total, nil
}

// Item returns an escrowed item.
func (d *Directory) Item(guid uint32) (*Item, bool) {
	it, ok := d.escrow[guid]
	return it, ok
}

// EscrowCount returns the number of items held in escrow.
func (d *Directory) EscrowCount() int {
	return len(d.escrow)
}

func (d *Directory) addItem(it *Item) {
	d.escrow[it.GUID] = it
}

// takeItem removes an item from escrow and its durable copy.
func (d *Directory) takeItem(guid uint32) (*Item, bool) {
	it, ok := d.escrow[guid]
	if !ok {
		return nil, false
	}
	delete(d.escrow, guid)
	d.persister.DeleteItem(guid)
	return it, true
}

// detach keeps ctx values but drops its cancellation. Once a request has
// passed validation its money moves run to completion: a settlement that
// stops halfway strands funds.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Tick settles every auction whose deadline passed, house by house in id
// order. It is the only scheduling entry point; irregular intervals are
// fine since every due auction is found regardless of the gap.
func (d *Directory) Tick(ctx context.Context, now time.Time) int {
	ctx = detach(ctx)
	settled := 0
	for _, id := range d.houseIDs {
		pool := d.pools[id]
		settled += pool.Sweep(now, func(e *Entry) {
			d.settleExpired(ctx, pool.house, e)
		})
	}
	if settled > 0 {
		d.log.Debug("auction sweep", slog.Int("settled", settled), slog.Int("live", d.Count()))
	}
	return settled
}

// LoadItems restores the escrow registry. It must run before LoadAuctions.
func (d *Directory) LoadItems(ctx context.Context, loader Loader) (int, error) {
	items, err := loader.LoadItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("load auction items: %w", err)
	}
	for i := range items {
		it := items[i]
		if _, dup := d.escrow[it.GUID]; dup {
			d.log.Error("duplicate escrowed item dropped", slog.Uint64("item_guid", uint64(it.GUID)))
			continue
		}
		d.escrow[it.GUID] = &it
	}
	d.itemsLoaded = true
	d.log.Info("loaded auction items", slog.Int("count", len(d.escrow)))
	return len(d.escrow), nil
}

// LoadAuctions restores the pools. Records that cannot be restored are
// logged, dropped and deleted from storage; loading continues.
func (d *Directory) LoadAuctions(ctx context.Context, loader Loader) (int, error) {
	if !d.itemsLoaded {
		return 0, ErrItemsNotLoaded
	}
	entries, err := loader.LoadEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("load auctions: %w", err)
	}

	// ids of dropped records stay reserved; their rows may still exist
	for _, e := range entries {
		if e.ID >= d.nextID {
			d.nextID = e.ID + 1
		}
	}

	referenced := make(map[uint32]bool, len(entries))
	loaded := 0
	for i := range entries {
		e := entries[i]
		if err := d.restore(&e, referenced); err != nil {
			d.log.Error("auction dropped at load",
				slog.Uint64("auction_id", uint64(e.ID)),
				slog.Uint64("item_guid", uint64(e.ItemGUID)),
				slog.String("error", err.Error()))
			continue
		}
		loaded++
	}

	for guid := range d.escrow {
		if !referenced[guid] {
			d.log.Warn("escrowed item without auction", slog.Uint64("item_guid", uint64(guid)))
			delete(d.escrow, guid)
		}
	}

	d.log.Info("loaded auctions", slog.Int("count", loaded), slog.Int("dropped", len(entries)-loaded))
	return loaded, nil
}

func (d *Directory) restore(e *Entry, referenced map[uint32]bool) error {
	pool, err := d.Route(e.HouseID)
	if err != nil {
		return err
	}
	if err := e.check(); err != nil {
		return err
	}
	if _, ok := d.escrow[e.ItemGUID]; !ok || referenced[e.ItemGUID] {
		d.persister.DeleteEntry(e.ID)
		return fmt.Errorf("%w: item %d", ErrUnresolvedItem, e.ItemGUID)
	}
	if err := pool.Add(e); err != nil {
		return err
	}
	referenced[e.ItemGUID] = true
	return nil
}

func (d *Directory) publish(ctx context.Context, typ string, e *Entry) {
	d.events.Publish(ctx, models.AuctionEvent{
		Type:      typ,
		HouseID:   uint32(e.HouseID),
		AuctionID: e.ID,
		ItemEntry: e.ItemTemplate,
		ItemCount: e.ItemCount,
		Owner:     uint32(e.Owner),
		Bidder:    uint32(e.Bidder),
		Bid:       e.Bid,
		Buyout:    e.Buyout,
		ExpiresAt: e.ExpiresAt,
		Timestamp: d.now().UTC(),
	})
}
