package auction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aaronwang/auction-house/shared/models"
	"github.com/peterldowns/testy/assert"
)

const (
	houseAlliance HouseID = 1
	houseHorde    HouseID = 2
	houseNeutral  HouseID = 7

	seller PlayerID = 10
	alice  PlayerID = 20
	bob    PlayerID = 30
)

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testHouses() []House {
	return []House{
		{ID: houseAlliance, Name: "Stormwind", Faction: FactionAlliance, DepositPercent: 15, CutPercent: 5, MinDuration: 2 * time.Hour, MaxDuration: 48 * time.Hour},
		{ID: houseHorde, Name: "Orgrimmar", Faction: FactionHorde, DepositPercent: 15, CutPercent: 5, MinDuration: 2 * time.Hour, MaxDuration: 48 * time.Hour},
		{ID: houseNeutral, Name: "Booty Bay", Faction: FactionNeutral, DepositPercent: 75, CutPercent: 15, MinDuration: 2 * time.Hour, MaxDuration: 48 * time.Hour},
	}
}

type fakeTemplates map[uint32]ItemTemplate

func (f fakeTemplates) Template(id uint32) (ItemTemplate, bool) {
	t, ok := f[id]
	return t, ok
}

func testTemplates() fakeTemplates {
	return fakeTemplates{
		100: {ID: 100, Name: "Linen Cloth", Class: 7, SubClass: 5, Quality: 1, InventoryType: 0, RequiredLevel: 0, SellPrice: 14, MaxStack: 20},
		200: {ID: 200, Name: "Thunderfury, Blessed Blade", Class: 2, SubClass: 7, Quality: 5, InventoryType: 13, RequiredLevel: 60, SellPrice: 100000, MaxStack: 1},
		300: {ID: 300, Name: "Worn Shortsword", Class: 2, SubClass: 7, Quality: 1, InventoryType: 13, RequiredLevel: 2, SellPrice: 7, MaxStack: 1},
	}
}

type account struct {
	balance int64
	held    int64
}

// fakeBank fails calls on a done context, like a network client.
type fakeBank struct {
	accounts map[PlayerID]*account
	err      error
	// afterMove runs after a successful Reserve or Debit.
	afterMove func()
}

func newFakeBank(balances map[PlayerID]int64) *fakeBank {
	b := &fakeBank{accounts: make(map[PlayerID]*account)}
	for p, v := range balances {
		b.accounts[p] = &account{balance: v}
	}
	return b
}

func (b *fakeBank) acct(p PlayerID) *account {
	a, ok := b.accounts[p]
	if !ok {
		a = &account{}
		b.accounts[p] = a
	}
	return a
}

func (b *fakeBank) Balance(p PlayerID) int64 { return b.acct(p).balance }
func (b *fakeBank) Held(p PlayerID) int64    { return b.acct(p).held }

func (b *fakeBank) moved() {
	if b.afterMove != nil {
		b.afterMove()
	}
}

func (b *fakeBank) CanAfford(ctx context.Context, p PlayerID, amount int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if b.err != nil {
		return false, b.err
	}
	return b.acct(p).balance >= amount, nil
}

func (b *fakeBank) Reserve(ctx context.Context, p PlayerID, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.err != nil {
		return b.err
	}
	a := b.acct(p)
	if a.balance < amount {
		return ErrInsufficientFunds
	}
	a.balance -= amount
	a.held += amount
	b.moved()
	return nil
}

func (b *fakeBank) Release(ctx context.Context, p PlayerID, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a := b.acct(p)
	if a.held < amount {
		return errors.New("release exceeds hold")
	}
	a.held -= amount
	a.balance += amount
	return nil
}

func (b *fakeBank) Capture(ctx context.Context, p PlayerID, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a := b.acct(p)
	if a.held < amount {
		return ErrInsufficientFunds
	}
	a.held -= amount
	return nil
}

func (b *fakeBank) Debit(ctx context.Context, p PlayerID, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.err != nil {
		return b.err
	}
	a := b.acct(p)
	if a.balance < amount {
		return ErrInsufficientFunds
	}
	a.balance -= amount
	b.moved()
	return nil
}

func (b *fakeBank) Credit(ctx context.Context, p PlayerID, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.acct(p).balance += amount
	return nil
}

type sentMail struct {
	kind      models.MailKind
	recipient PlayerID
	item      *Item
	money     int64
	auctionID uint32
}

type fakeMailer struct {
	sent []sentMail
}

func (m *fakeMailer) NotifyWon(_ context.Context, winner PlayerID, item *Item, e Entry) {
	m.sent = append(m.sent, sentMail{kind: models.MailWon, recipient: winner, item: item, auctionID: e.ID})
}

func (m *fakeMailer) NotifySaleSuccessful(_ context.Context, s PlayerID, net int64, e Entry) {
	m.sent = append(m.sent, sentMail{kind: models.MailSaleSuccessful, recipient: s, money: net, auctionID: e.ID})
}

func (m *fakeMailer) NotifyExpired(_ context.Context, s PlayerID, item *Item, e Entry) {
	m.sent = append(m.sent, sentMail{kind: models.MailExpired, recipient: s, item: item, auctionID: e.ID})
}

func (m *fakeMailer) NotifyOutbid(_ context.Context, b PlayerID, refund int64, e Entry) {
	m.sent = append(m.sent, sentMail{kind: models.MailOutbid, recipient: b, money: refund, auctionID: e.ID})
}

func (m *fakeMailer) byKind(kind models.MailKind) []sentMail {
	var out []sentMail
	for _, s := range m.sent {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type fakeInventory struct {
	returned []*Item
	err      error
}

func (f *fakeInventory) ReturnItem(_ context.Context, _ PlayerID, item *Item) error {
	if f.err != nil {
		return f.err
	}
	f.returned = append(f.returned, item)
	return nil
}

type fakePersister struct {
	entries map[uint32]Entry
	items   map[uint32]Item
}

func newFakePersister() *fakePersister {
	return &fakePersister{entries: map[uint32]Entry{}, items: map[uint32]Item{}}
}

func (p *fakePersister) SaveEntry(e Entry)      { p.entries[e.ID] = e }
func (p *fakePersister) DeleteEntry(id uint32)  { delete(p.entries, id) }
func (p *fakePersister) SaveItem(it Item)       { p.items[it.GUID] = it }
func (p *fakePersister) DeleteItem(guid uint32) { delete(p.items, guid) }

func (p *fakePersister) LoadItems(context.Context) ([]Item, error) {
	out := make([]Item, 0, len(p.items))
	for _, it := range p.items {
		out = append(out, it)
	}
	return out, nil
}

func (p *fakePersister) LoadEntries(context.Context) ([]Entry, error) {
	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	return out, nil
}

type fakePublisher struct {
	events []models.AuctionEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev models.AuctionEvent) {
	p.events = append(p.events, ev)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	dir       *Directory
	bank      *fakeBank
	mailer    *fakeMailer
	inventory *fakeInventory
	store     *fakePersister
	events    *fakePublisher
	clock     *fakeClock
}

func newHarness(t *testing.T, econ Economy) *harness {
	t.Helper()
	h := &harness{
		bank: newFakeBank(map[PlayerID]int64{
			seller: 1000,
			alice:  1000,
			bob:    1000,
		}),
		mailer:    &fakeMailer{},
		inventory: &fakeInventory{},
		store:     newFakePersister(),
		events:    &fakePublisher{},
		clock:     &fakeClock{now: testStart},
	}
	dir, err := NewDirectory(Config{Houses: testHouses(), Economy: econ}, Deps{
		Templates: testTemplates(),
		Bank:      h.bank,
		Mailer:    h.mailer,
		Inventory: h.inventory,
		Persister: h.store,
		Events:    h.events,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       h.clock.Now,
	})
	assert.NoError(t, err)
	h.dir = dir
	return h
}

func (h *harness) list(t *testing.T, req ListingRequest) uint32 {
	t.Helper()
	id, err := h.dir.CreateListing(context.Background(), req)
	assert.NoError(t, err)
	return id
}

func linenListing(guid uint32) ListingRequest {
	return ListingRequest{
		HouseID:  houseNeutral,
		Seller:   seller,
		Item:     Item{GUID: guid, TemplateID: 100, Count: 1},
		Duration: 2 * time.Hour,
		StartBid: 100,
		Buyout:   500,
	}
}
