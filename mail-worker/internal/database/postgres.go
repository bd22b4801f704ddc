package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aaronwang/auction-house/shared/models"
)

// PostgresClient stores delivered auction mail in the players' mailboxes.
type PostgresClient struct {
	pool *pgxpool.Pool
}

// NewPostgresClient creates a connection pool and pings the database.
func NewPostgresClient(ctx context.Context, connStr string) (*PostgresClient, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{pool: pool}, nil
}

// InitSchema creates the mailbox table.
func (c *PostgresClient) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS mailbox (
		id TEXT PRIMARY KEY,
		kind VARCHAR(32) NOT NULL,
		recipient BIGINT NOT NULL,
		house_id BIGINT NOT NULL,
		auction_id BIGINT NOT NULL,
		item_guid BIGINT,
		item_entry BIGINT,
		item_count BIGINT,
		item_random_property_id INTEGER,
		money BIGINT NOT NULL DEFAULT 0,
		bid BIGINT NOT NULL DEFAULT 0,
		buyout BIGINT NOT NULL DEFAULT 0,
		deposit BIGINT NOT NULL DEFAULT 0,
		cut BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		delivered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_mailbox_recipient ON mailbox(recipient, created_at DESC);
	`

	if _, err := c.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// InsertMail stores a letter. It reports false when a letter with the same
// id was already delivered.
func (c *PostgresClient) InsertMail(ctx context.Context, m *models.Mail) (bool, error) {
	query := `
		INSERT INTO mailbox (
			id, kind, recipient, house_id, auction_id,
			item_guid, item_entry, item_count, item_random_property_id,
			money, bid, buyout, deposit, cut, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`

	var guid, entry, count *int64
	var randomProp *int32
	if it := m.Item; it != nil {
		g, e, n, r := int64(it.GUID), int64(it.Entry), int64(it.Count), it.RandomPropertyID
		guid, entry, count, randomProp = &g, &e, &n, &r
	}

	tag, err := c.pool.Exec(ctx, query,
		m.ID, string(m.Kind), int64(m.Recipient), int64(m.HouseID), int64(m.AuctionID),
		guid, entry, count, randomProp,
		m.Money, m.Bid, m.Buyout, m.Deposit, m.Cut, m.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert mail: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListMail returns a player's most recent letters, newest first.
func (c *PostgresClient) ListMail(ctx context.Context, recipient uint32, limit int) ([]models.Mail, error) {
	query := `
		SELECT id, kind, recipient, house_id, auction_id,
		       item_guid, item_entry, item_count, item_random_property_id,
		       money, bid, buyout, deposit, cut, created_at
		FROM mailbox
		WHERE recipient = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	rows, err := c.pool.Query(ctx, query, int64(recipient), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mailbox: %w", err)
	}

	mails, err := pgx.CollectRows(rows, scanMail)
	if err != nil {
		return nil, fmt.Errorf("failed to scan mail: %w", err)
	}
	return mails, nil
}

func scanMail(row pgx.CollectableRow) (models.Mail, error) {
	var (
		m                           models.Mail
		kind                        string
		recipient, house, auctionID int64
		guid, entry, count          *int64
		randomProp                  *int32
	)
	err := row.Scan(
		&m.ID, &kind, &recipient, &house, &auctionID,
		&guid, &entry, &count, &randomProp,
		&m.Money, &m.Bid, &m.Buyout, &m.Deposit, &m.Cut, &m.CreatedAt,
	)
	if err != nil {
		return m, err
	}
	m.Kind = models.MailKind(kind)
	m.Recipient, m.HouseID, m.AuctionID = uint32(recipient), uint32(house), uint32(auctionID)
	if guid != nil {
		m.Item = &models.MailItem{GUID: uint32(*guid)}
		if entry != nil {
			m.Item.Entry = uint32(*entry)
		}
		if count != nil {
			m.Item.Count = uint32(*count)
		}
		if randomProp != nil {
			m.Item.RandomPropertyID = *randomProp
		}
	}
	return m, nil
}

// Close closes the connection pool.
func (c *PostgresClient) Close() {
	c.pool.Close()
}
