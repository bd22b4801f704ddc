// Package retryq runs fire-and-forget work in submission order on one
// background goroutine, retrying failures with exponential backoff.
package retryq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config tunes retries. Zero values use the defaults.
type Config struct {
	MaxTries        uint          // per item, default 5
	InitialInterval time.Duration // first retry delay, default 100ms
	Timeout         time.Duration // per attempt, default 5s
}

func (c Config) withDefaults() Config {
	if c.MaxTries == 0 {
		c.MaxTries = 5
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// Queue is an unbounded FIFO drained by one worker. Push never blocks.
type Queue[T any] struct {
	apply func(context.Context, T) error
	label func(T) []any
	cfg   Config
	log   *slog.Logger

	mu      sync.Mutex
	items   []T
	closed  bool
	applied int
	failed  int

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// New starts a queue. apply is called once per attempt; label returns slog
// attributes describing an item for log lines and may be nil. An error
// wrapped with backoff.Permanent is not retried.
func New[T any](apply func(context.Context, T) error, label func(T) []any, cfg Config, logger *slog.Logger) *Queue[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if label == nil {
		label = func(T) []any { return nil }
	}
	q := &Queue[T]{
		apply: apply,
		label: label,
		cfg:   cfg.withDefaults(),
		log:   logger,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

// Push appends v. It reports false once the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of items not yet taken by the worker.
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns how many items were applied and how many were dropped after
// exhausting their retries.
func (q *Queue[T]) Stats() (applied, failed int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.applied, q.failed
}

// Close stops accepting items and waits until the queue is drained or ctx
// is done.
func (q *Queue[T]) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.stop)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue[T]) take() ([]T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.items
	q.items = nil
	return batch, q.closed
}

func (q *Queue[T]) run() {
	defer close(q.done)
	for {
		batch, closed := q.take()
		for _, v := range batch {
			q.process(v)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		select {
		case <-q.wake:
		case <-q.stop:
		}
	}
}

func (q *Queue[T]) process(v T) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.cfg.InitialInterval

	attempt := func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), q.cfg.Timeout)
		defer cancel()
		return struct{}{}, q.apply(ctx, v)
	}
	notify := func(err error, next time.Duration) {
		q.log.Warn("retrying", append(q.label(v),
			slog.Duration("retry_in", next),
			slog.String("error", err.Error()))...)
	}

	_, err := backoff.Retry(context.Background(), attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(q.cfg.MaxTries),
		backoff.WithNotify(notify))

	q.mu.Lock()
	if err != nil {
		q.failed++
	} else {
		q.applied++
	}
	q.mu.Unlock()

	if err != nil {
		q.log.Error("dropped after retries", append(q.label(v), slog.String("error", err.Error()))...)
	}
}
