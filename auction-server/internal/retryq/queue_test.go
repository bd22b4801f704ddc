package retryq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

type recorder struct {
	mu   sync.Mutex
	seen []int
	fail map[int]int // item -> failures left
}

func (r *recorder) apply(_ context.Context, v int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[v] > 0 {
		r.fail[v]--
		return errors.New("try again")
	}
	r.seen = append(r.seen, v)
	return nil
}

func (r *recorder) got() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seen...)
}

var fast = Config{MaxTries: 3, InitialInterval: time.Millisecond, Timeout: time.Second}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func drain[T any](t *testing.T, q *Queue[T]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, q.Close(ctx))
}

func TestQueueOrderAndRetry(t *testing.T) {
	r := &recorder{fail: map[int]int{2: 2}}
	q := New(r.apply, nil, fast, quiet())
	for i := 1; i <= 4; i++ {
		check.True(t, q.Push(i))
	}
	drain(t, q)

	check.Equal(t, []int{1, 2, 3, 4}, r.got())
	applied, failed := q.Stats()
	check.Equal(t, 4, applied)
	check.Equal(t, 0, failed)
}

func TestQueueDropsAfterMaxTries(t *testing.T) {
	r := &recorder{fail: map[int]int{1: 10}}
	q := New(r.apply, func(v int) []any { return []any{slog.Int("item", v)} }, fast, quiet())
	q.Push(1)
	q.Push(2)
	drain(t, q)

	check.Equal(t, []int{2}, r.got())
	applied, failed := q.Stats()
	check.Equal(t, 1, applied)
	check.Equal(t, 1, failed)
}

func TestQueuePermanentError(t *testing.T) {
	calls := 0
	q := New(func(context.Context, string) error {
		calls++
		return backoff.Permanent(errors.New("bad payload"))
	}, nil, fast, quiet())
	q.Push("x")
	drain(t, q)

	check.Equal(t, 1, calls)
	_, failed := q.Stats()
	check.Equal(t, 1, failed)
}

func TestQueueClosed(t *testing.T) {
	r := &recorder{}
	q := New(r.apply, nil, fast, quiet())
	drain(t, q)

	check.False(t, q.Push(1))
	check.Equal(t, 0, q.Pending())
	// closing twice is fine
	drain(t, q)
}

func TestQueueCloseTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	q := New(func(context.Context, int) error {
		<-block
		return nil
	}, nil, fast, quiet())
	q.Push(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	check.True(t, errors.Is(q.Close(ctx), context.DeadlineExceeded))
}
