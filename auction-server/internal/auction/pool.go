package auction

import (
	"fmt"
	"slices"
	"time"
)

// Pool holds the live auctions of one house.
type Pool struct {
	house   House
	entries map[uint32]*Entry
}

func newPool(h House) *Pool {
	return &Pool{
		house:   h,
		entries: make(map[uint32]*Entry),
	}
}

// House returns the pool's house configuration.
func (p *Pool) House() House {
	return p.house
}

// Count returns the number of live auctions.
func (p *Pool) Count() int {
	return len(p.entries)
}

// Add inserts an entry. A duplicate id is an invariant violation since ids
// are allocated by the Directory.
func (p *Pool) Add(e *Entry) error {
	if e.HouseID != p.house.ID {
		return fmt.Errorf("%w: auction %d has house %d, pool is %d", ErrWrongHouse, e.ID, e.HouseID, p.house.ID)
	}
	if _, exists := p.entries[e.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, e.ID)
	}
	p.entries[e.ID] = e
	return nil
}

// Get looks up an auction by id.
func (p *Pool) Get(id uint32) (*Entry, bool) {
	e, ok := p.entries[id]
	return e, ok
}

// Remove deletes an auction and reports whether it was present.
func (p *Pool) Remove(id uint32) bool {
	if _, ok := p.entries[id]; !ok {
		return false
	}
	delete(p.entries, id)
	return true
}

// Sweep settles and removes every auction whose deadline is at or before
// now, in id order. It returns the number of settled auctions.
//
// Due ids are collected before settling so settle may touch other entries'
// parties without disturbing the iteration.
func (p *Pool) Sweep(now time.Time, settle func(*Entry)) int {
	var due []uint32
	for id, e := range p.entries {
		if !e.ExpiresAt.After(now) {
			due = append(due, id)
		}
	}
	slices.Sort(due)

	settled := 0
	for _, id := range due {
		e, ok := p.entries[id]
		if !ok {
			continue
		}
		settle(e)
		delete(p.entries, id)
		settled++
	}
	return settled
}

// sorted returns the entries matching keep, ordered by id.
func (p *Pool) sorted(keep func(*Entry) bool) []*Entry {
	out := make([]*Entry, 0)
	for _, e := range p.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b *Entry) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func copies(entries []*Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out
}

// ListByBidder returns the auctions where player holds the high bid.
func (p *Pool) ListByBidder(player PlayerID) ([]Entry, int) {
	if player == NoPlayer {
		return []Entry{}, 0
	}
	found := p.sorted(func(e *Entry) bool { return e.Bidder == player })
	return copies(found), len(found)
}

// ListByOwner returns the auctions listed by player.
func (p *Pool) ListByOwner(player PlayerID) ([]Entry, int) {
	if player == NoPlayer {
		return []Entry{}, 0
	}
	found := p.sorted(func(e *Entry) bool { return e.Owner == player })
	return copies(found), len(found)
}
