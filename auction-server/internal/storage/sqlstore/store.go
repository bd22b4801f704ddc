// Package sqlstore persists live auctions and escrowed items in PostgreSQL
// (lib/pq) or SQLite (modernc.org/sqlite). Both backends share one schema
// and one set of statements.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/aaronwang/auction-house/auction-server/internal/auction"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
		id                 BIGINT PRIMARY KEY,
		house_id           BIGINT NOT NULL,
		item_guid          BIGINT NOT NULL,
		item_template      BIGINT NOT NULL,
		item_count         BIGINT NOT NULL,
		random_property_id BIGINT NOT NULL DEFAULT 0,
		owner_id           BIGINT NOT NULL DEFAULT 0,
		bidder_id          BIGINT NOT NULL DEFAULT 0,
		start_bid          BIGINT NOT NULL,
		bid                BIGINT NOT NULL DEFAULT 0,
		buyout             BIGINT NOT NULL DEFAULT 0,
		deposit            BIGINT NOT NULL DEFAULT 0,
		expires_at         BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_auctions_house_id ON auctions(house_id)`,
	`CREATE TABLE IF NOT EXISTS auction_items (
		guid               BIGINT PRIMARY KEY,
		template_id        BIGINT NOT NULL,
		item_count         BIGINT NOT NULL,
		random_property_id BIGINT NOT NULL DEFAULT 0,
		owner_id           BIGINT NOT NULL DEFAULT 0
	)`,
}

// Store implements auction.Repository.
type Store struct {
	db      *sql.DB
	dialect dialect
}

var _ auction.Repository = (*Store)(nil)

// OpenPostgres connects to PostgreSQL and creates the schema.
func OpenPostgres(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, dialect: dialectPostgres}
	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens (or creates) a SQLite database file and creates the
// schema.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db, dialect: dialectSQLite}
	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// SaveEntry inserts or updates an auction row.
func (s *Store) SaveEntry(ctx context.Context, e auction.Entry) error {
	query := s.rebind(`
		INSERT INTO auctions (
			id, house_id, item_guid, item_template, item_count, random_property_id,
			owner_id, bidder_id, start_bid, bid, buyout, deposit, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			bidder_id = excluded.bidder_id,
			bid = excluded.bid,
			expires_at = excluded.expires_at
	`)
	_, err := s.db.ExecContext(ctx, query,
		int64(e.ID),
		int64(e.HouseID),
		int64(e.ItemGUID),
		int64(e.ItemTemplate),
		int64(e.ItemCount),
		int64(e.RandomPropertyID),
		int64(e.Owner),
		int64(e.Bidder),
		e.StartBid,
		e.Bid,
		e.Buyout,
		e.Deposit,
		toMillis(e.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save auction %d: %w", e.ID, err)
	}
	return nil
}

// DeleteEntry removes an auction row. Deleting a missing row is not an
// error.
func (s *Store) DeleteEntry(ctx context.Context, id uint32) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM auctions WHERE id = ?`), int64(id)); err != nil {
		return fmt.Errorf("failed to delete auction %d: %w", id, err)
	}
	return nil
}

// SaveItem inserts or updates an escrowed item.
func (s *Store) SaveItem(ctx context.Context, it auction.Item) error {
	query := s.rebind(`
		INSERT INTO auction_items (guid, template_id, item_count, random_property_id, owner_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (guid) DO UPDATE SET
			item_count = excluded.item_count,
			owner_id = excluded.owner_id
	`)
	_, err := s.db.ExecContext(ctx, query,
		int64(it.GUID),
		int64(it.TemplateID),
		int64(it.Count),
		int64(it.RandomPropertyID),
		int64(it.Owner),
	)
	if err != nil {
		return fmt.Errorf("failed to save item %d: %w", it.GUID, err)
	}
	return nil
}

// DeleteItem removes an escrowed item.
func (s *Store) DeleteItem(ctx context.Context, guid uint32) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM auction_items WHERE guid = ?`), int64(guid)); err != nil {
		return fmt.Errorf("failed to delete item %d: %w", guid, err)
	}
	return nil
}

// LoadItems returns every escrowed item.
func (s *Store) LoadItems(ctx context.Context) ([]auction.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guid, template_id, item_count, random_property_id, owner_id
		FROM auction_items
		ORDER BY guid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []auction.Item
	for rows.Next() {
		var guid, tpl, count, prop, owner int64
		if err := rows.Scan(&guid, &tpl, &count, &prop, &owner); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, auction.Item{
			GUID:             uint32(guid),
			TemplateID:       uint32(tpl),
			Count:            uint32(count),
			RandomPropertyID: int32(prop),
			Owner:            auction.PlayerID(owner),
		})
	}
	return items, rows.Err()
}

// LoadEntries returns every stored auction in id order.
func (s *Store) LoadEntries(ctx context.Context) ([]auction.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, house_id, item_guid, item_template, item_count, random_property_id,
		       owner_id, bidder_id, start_bid, bid, buyout, deposit, expires_at
		FROM auctions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var entries []auction.Entry
	for rows.Next() {
		var (
			id, house, guid, tpl, count, prop, owner, bidder int64
			e                                                auction.Entry
			expires                                          int64
		)
		err := rows.Scan(&id, &house, &guid, &tpl, &count, &prop,
			&owner, &bidder, &e.StartBid, &e.Bid, &e.Buyout, &e.Deposit, &expires)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		e.ID = uint32(id)
		e.HouseID = auction.HouseID(house)
		e.ItemGUID = uint32(guid)
		e.ItemTemplate = uint32(tpl)
		e.ItemCount = uint32(count)
		e.RandomPropertyID = int32(prop)
		e.Owner = auction.PlayerID(owner)
		e.Bidder = auction.PlayerID(bidder)
		e.ExpiresAt = fromMillis(expires)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
