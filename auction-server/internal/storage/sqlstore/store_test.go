package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/aaronwang/auction-house/auction-server/internal/auction"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "auctions.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEntry(id uint32) auction.Entry {
	return auction.Entry{
		ID:               id,
		ItemGUID:         5000 + id,
		ItemTemplate:     2589,
		ItemCount:        20,
		RandomPropertyID: -12,
		Owner:            10,
		StartBid:         100,
		Buyout:           500,
		Deposit:          10,
		HouseID:          7,
		ExpiresAt:        time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC),
	}
}

func TestEntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	e := testEntry(2)
	assert.NoError(t, s.SaveEntry(ctx, e))
	assert.NoError(t, s.SaveEntry(ctx, testEntry(1)))

	e.Bidder, e.Bid = 20, 150
	assert.NoError(t, s.SaveEntry(ctx, e))

	got, err := s.LoadEntries(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(got))
	check.Equal(t, uint32(1), got[0].ID)
	check.Equal(t, e, got[1])

	assert.NoError(t, s.DeleteEntry(ctx, 1))
	assert.NoError(t, s.DeleteEntry(ctx, 1))
	got, err = s.LoadEntries(ctx)
	assert.NoError(t, err)
	check.Equal(t, 1, len(got))
}

func TestItemRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	it := auction.Item{GUID: 5001, TemplateID: 2589, Count: 20, RandomPropertyID: 3, Owner: 10}
	assert.NoError(t, s.SaveItem(ctx, it))
	it.Owner = 30
	assert.NoError(t, s.SaveItem(ctx, it))

	got, err := s.LoadItems(ctx)
	assert.NoError(t, err)
	check.Equal(t, []auction.Item{it}, got)

	assert.NoError(t, s.DeleteItem(ctx, 5001))
	got, err = s.LoadItems(ctx)
	assert.NoError(t, err)
	check.Equal(t, 0, len(got))
}

func TestReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auctions.db")
	s, err := OpenSQLite(ctx, path)
	assert.NoError(t, err)
	assert.NoError(t, s.SaveEntry(ctx, testEntry(9)))
	assert.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	assert.NoError(t, err)
	defer s.Close()
	got, err := s.LoadEntries(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(got))
	check.Equal(t, testEntry(9), got[0])
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), " ")
	check.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: dialectPostgres}
	lite := &Store{dialect: dialectSQLite}
	q := `UPDATE t SET a = ?, b = ? WHERE id = ?`

	check.Equal(t, `UPDATE t SET a = $1, b = $2 WHERE id = $3`, pg.rebind(q))
	check.Equal(t, q, lite.rebind(q))
}
