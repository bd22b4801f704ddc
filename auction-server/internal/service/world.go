// Package service hosts the auction engine on a single goroutine: a fixed
// heartbeat drives expiry sweeps and request handlers submit closures that
// run between heartbeats.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aaronwang/auction-house/auction-server/internal/auction"
)

// ErrStopped is returned for requests submitted after the world loop exited.
var ErrStopped = errors.New("world loop stopped")

// Config tunes the world loop.
type Config struct {
	Heartbeat time.Duration    // default 50ms
	InboxSize int              // default 256
	Now       func() time.Time // default time.Now
}

// World owns an auction.Directory. All access to the directory goes through
// Do so the engine only ever sees one goroutine.
type World struct {
	dir       *auction.Directory
	heartbeat time.Duration
	now       func() time.Time
	inbox     chan func()
	done      chan struct{}
	log       *slog.Logger
}

// NewWorld wraps dir. Call Run to start the loop.
func NewWorld(dir *auction.Directory, cfg Config, logger *slog.Logger) *World {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 50 * time.Millisecond
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &World{
		dir:       dir,
		heartbeat: cfg.Heartbeat,
		now:       cfg.Now,
		inbox:     make(chan func(), cfg.InboxSize),
		done:      make(chan struct{}),
		log:       logger.With("component", "world"),
	}
}

// nextSleep keeps the average iteration at heartbeat: time left over from a
// short iteration carries into the next sleep, an overrun skips it.
func nextSleep(heartbeat, prevSleep, diff time.Duration) time.Duration {
	if diff <= heartbeat+prevSleep {
		return heartbeat + prevSleep - diff
	}
	return 0
}

// Run executes the loop until ctx is done. It must be called once.
func (w *World) Run(ctx context.Context) {
	defer close(w.done)
	w.log.Info("world loop started", slog.Duration("heartbeat", w.heartbeat))

	timer := time.NewTimer(0)
	defer timer.Stop()

	prevTime := w.now()
	var prevSleep time.Duration
	for {
		select {
		case <-ctx.Done():
			w.log.Info("world loop stopping")
			return
		case fn := <-w.inbox:
			fn()
			continue
		case <-timer.C:
		}

		cur := w.now()
		diff := cur.Sub(prevTime)
		prevTime = cur

		w.dir.Tick(ctx, cur)

		prevSleep = nextSleep(w.heartbeat, prevSleep, diff)
		timer.Reset(prevSleep)
	}
}

// Do runs fn on the world goroutine and waits for it to return.
func (w *World) Do(ctx context.Context, fn func(context.Context, *auction.Directory) error) error {
	_, err := Call(ctx, w, func(ctx context.Context, d *auction.Directory) (struct{}, error) {
		return struct{}{}, fn(ctx, d)
	})
	return err
}

// Call runs fn on the world goroutine and returns its result. Cancelling
// ctx stops the wait, not the job: once queued, fn runs to completion with
// a context that carries ctx's values but never ends.
func Call[T any](ctx context.Context, w *World, fn func(context.Context, *auction.Directory) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	var zero T
	res := make(chan result, 1)
	jobCtx := context.WithoutCancel(ctx)
	job := func() {
		v, err := fn(jobCtx, w.dir)
		res <- result{v, err}
	}

	select {
	case w.inbox <- job:
	case <-w.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-res:
		return r.v, r.err
	case <-w.done:
		// the job may have run just before the loop exited
		select {
		case r := <-res:
			return r.v, r.err
		default:
			return zero, ErrStopped
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Done is closed when Run returns.
func (w *World) Done() <-chan struct{} {
	return w.done
}
