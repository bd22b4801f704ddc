// Package storage mirrors engine state to a Repository off the engine's
// goroutine.
package storage

import (
	"context"
	"log/slog"

	"github.com/cenkalti/backoff/v5"

	"github.com/aaronwang/auction-house/auction-server/internal/auction"
	"github.com/aaronwang/auction-house/auction-server/internal/retryq"
)

type opKind int

const (
	opSaveEntry opKind = iota + 1
	opDeleteEntry
	opSaveItem
	opDeleteItem
)

func (k opKind) String() string {
	switch k {
	case opSaveEntry:
		return "save_entry"
	case opDeleteEntry:
		return "delete_entry"
	case opSaveItem:
		return "save_item"
	case opDeleteItem:
		return "delete_item"
	}
	return "unknown"
}

type op struct {
	kind  opKind
	entry auction.Entry
	item  auction.Item
	id    uint32
}

func (o op) attrs() []any {
	attrs := []any{slog.String("op", o.kind.String())}
	switch o.kind {
	case opSaveEntry:
		attrs = append(attrs, slog.Uint64("auction_id", uint64(o.entry.ID)))
	case opSaveItem:
		attrs = append(attrs, slog.Uint64("item_guid", uint64(o.item.GUID)))
	default:
		attrs = append(attrs, slog.Uint64("id", uint64(o.id)))
	}
	return attrs
}

// Writer is an auction.Persister that applies writes to a Repository in
// submission order on a background goroutine. Failed writes are retried
// with exponential backoff, then logged and dropped; the engine's memory
// stays authoritative.
type Writer struct {
	repo  auction.Repository
	queue *retryq.Queue[op]
	log   *slog.Logger
}

var _ auction.Persister = (*Writer)(nil)

// NewWriter starts a writer over repo.
func NewWriter(repo auction.Repository, cfg retryq.Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{repo: repo, log: logger.With("component", "storage_writer")}
	w.queue = retryq.New(w.exec, op.attrs, cfg, w.log)
	return w
}

func (w *Writer) SaveEntry(e auction.Entry) { w.push(op{kind: opSaveEntry, entry: e}) }
func (w *Writer) DeleteEntry(id uint32)     { w.push(op{kind: opDeleteEntry, id: id}) }
func (w *Writer) SaveItem(it auction.Item)  { w.push(op{kind: opSaveItem, item: it}) }
func (w *Writer) DeleteItem(guid uint32)    { w.push(op{kind: opDeleteItem, id: guid}) }

func (w *Writer) push(o op) {
	if !w.queue.Push(o) {
		w.log.Error("write after close dropped", o.attrs()...)
	}
}

// Pending returns the number of queued writes.
func (w *Writer) Pending() int {
	return w.queue.Pending()
}

// Stats returns how many writes were applied and how many were dropped.
func (w *Writer) Stats() (applied, failed int) {
	return w.queue.Stats()
}

// Close stops accepting writes and waits until the queue is flushed or ctx
// is done.
func (w *Writer) Close(ctx context.Context) error {
	return w.queue.Close(ctx)
}

func (w *Writer) exec(ctx context.Context, o op) error {
	switch o.kind {
	case opSaveEntry:
		return w.repo.SaveEntry(ctx, o.entry)
	case opDeleteEntry:
		return w.repo.DeleteEntry(ctx, o.id)
	case opSaveItem:
		return w.repo.SaveItem(ctx, o.item)
	case opDeleteItem:
		return w.repo.DeleteItem(ctx, o.id)
	}
	return backoff.Permanent(errUnknownOp)
}
