package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aaronwang/auction-house/auction-server/internal/auction"
)

// Each script moves money between a player's spendable balance and held
// amount atomically on the server. They return 1 on success and 0 when the
// source key cannot cover the amount.
var (
	// KEYS[1]: player:{id}:balance  KEYS[2]: player:{id}:held  ARGV[1]: amount
	reserveScript = redis.NewScript(`
		local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
		local amount = tonumber(ARGV[1])
		if balance < amount then
			return 0
		end
		redis.call('DECRBY', KEYS[1], amount)
		redis.call('INCRBY', KEYS[2], amount)
		return 1
	`)

	// KEYS[1]: player:{id}:held  KEYS[2]: player:{id}:balance  ARGV[1]: amount
	releaseScript = redis.NewScript(`
		local held = tonumber(redis.call('GET', KEYS[1]) or '0')
		local amount = tonumber(ARGV[1])
		if held < amount then
			return 0
		end
		redis.call('DECRBY', KEYS[1], amount)
		redis.call('INCRBY', KEYS[2], amount)
		return 1
	`)

	// KEYS[1]: key to take from  ARGV[1]: amount
	takeScript = redis.NewScript(`
		local have = tonumber(redis.call('GET', KEYS[1]) or '0')
		local amount = tonumber(ARGV[1])
		if have < amount then
			return 0
		end
		redis.call('DECRBY', KEYS[1], amount)
		return 1
	`)
)

// ErrHoldMissing is returned by Release when the player holds less than the
// amount to release.
var ErrHoldMissing = errors.New("held amount below release")

// Ledger implements auction.Bank on Redis.
type Ledger struct {
	client *redis.Client
}

var _ auction.Bank = (*Ledger)(nil)

// NewLedger wraps a connected client.
func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func balanceKey(p auction.PlayerID) string { return fmt.Sprintf("player:%d:balance", p) }
func heldKey(p auction.PlayerID) string    { return fmt.Sprintf("player:%d:held", p) }

func (l *Ledger) run(ctx context.Context, script *redis.Script, keys []string, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("negative amount %d", amount)
	}
	res, err := script.Run(ctx, l.client, keys, amount).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to execute ledger script: %w", err)
	}
	return res == 1, nil
}

// Balance returns the spendable balance and the held amount of a player.
func (l *Ledger) Balance(ctx context.Context, p auction.PlayerID) (balance, held int64, err error) {
	pipe := l.client.Pipeline()
	balCmd := pipe.Get(ctx, balanceKey(p))
	heldCmd := pipe.Get(ctx, heldKey(p))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("failed to get balance: %w", err)
	}
	if balCmd.Err() == nil {
		if balance, err = balCmd.Int64(); err != nil {
			return 0, 0, fmt.Errorf("corrupt balance for player %d: %w", p, err)
		}
	}
	if heldCmd.Err() == nil {
		if held, err = heldCmd.Int64(); err != nil {
			return 0, 0, fmt.Errorf("corrupt hold for player %d: %w", p, err)
		}
	}
	return balance, held, nil
}

// CanAfford reports whether the spendable balance covers amount.
func (l *Ledger) CanAfford(ctx context.Context, p auction.PlayerID, amount int64) (bool, error) {
	balance, _, err := l.Balance(ctx, p)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Reserve moves amount from the balance into the player's hold.
func (l *Ledger) Reserve(ctx context.Context, p auction.PlayerID, amount int64) error {
	ok, err := l.run(ctx, reserveScript, []string{balanceKey(p), heldKey(p)}, amount)
	if err != nil {
		return err
	}
	if !ok {
		return auction.ErrInsufficientFunds
	}
	return nil
}

// Release moves amount from the hold back to the balance.
func (l *Ledger) Release(ctx context.Context, p auction.PlayerID, amount int64) error {
	ok, err := l.run(ctx, releaseScript, []string{heldKey(p), balanceKey(p)}, amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: player %d amount %d", ErrHoldMissing, p, amount)
	}
	return nil
}

// Capture consumes amount from the hold.
func (l *Ledger) Capture(ctx context.Context, p auction.PlayerID, amount int64) error {
	ok, err := l.run(ctx, takeScript, []string{heldKey(p)}, amount)
	if err != nil {
		return err
	}
	if !ok {
		return auction.ErrInsufficientFunds
	}
	return nil
}

// Debit takes amount from the balance.
func (l *Ledger) Debit(ctx context.Context, p auction.PlayerID, amount int64) error {
	ok, err := l.run(ctx, takeScript, []string{balanceKey(p)}, amount)
	if err != nil {
		return err
	}
	if !ok {
		return auction.ErrInsufficientFunds
	}
	return nil
}

// Credit adds amount to the balance.
func (l *Ledger) Credit(ctx context.Context, p auction.PlayerID, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("negative amount %d", amount)
	}
	if err := l.client.IncrBy(ctx, balanceKey(p), amount).Err(); err != nil {
		return fmt.Errorf("failed to credit player %d: %w", p, err)
	}
	return nil
}
