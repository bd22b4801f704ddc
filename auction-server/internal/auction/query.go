package auction

import (
	"strings"

	"golang.org/x/text/cases"
)

// BrowsePageSize is the number of auctions returned per browse page.
const BrowsePageSize = 50

// BrowseQuery filters a house's auctions. Nil and zero fields match
// everything.
type BrowseQuery struct {
	Name          string
	LevelMin      uint32
	LevelMax      uint32 // 0 = no upper bound
	InventoryType *uint32
	Class         *uint32
	SubClass      *uint32
	MinQuality    *uint32
	Usable        bool
	// CanUse reports whether the browsing player can use an item. Consulted
	// only when Usable is set.
	CanUse func(ItemTemplate) bool
	Skip   int
}

type browseMatcher struct {
	q    BrowseQuery
	fold cases.Caser
	name string
}

func newBrowseMatcher(q BrowseQuery) *browseMatcher {
	fold := cases.Fold()
	return &browseMatcher{
		q:    q,
		fold: fold,
		name: fold.String(strings.TrimSpace(q.Name)),
	}
}

func (m *browseMatcher) match(tpl ItemTemplate) bool {
	q := m.q
	if q.InventoryType != nil && tpl.InventoryType != *q.InventoryType {
		return false
	}
	if q.Class != nil && tpl.Class != *q.Class {
		return false
	}
	if q.SubClass != nil && tpl.SubClass != *q.SubClass {
		return false
	}
	if q.MinQuality != nil && tpl.Quality < *q.MinQuality {
		return false
	}
	if q.LevelMin != 0 && tpl.RequiredLevel < q.LevelMin {
		return false
	}
	if q.LevelMax != 0 && tpl.RequiredLevel > q.LevelMax {
		return false
	}
	if q.Usable && q.CanUse != nil && !q.CanUse(tpl) {
		return false
	}
	if m.name != "" && !strings.Contains(m.fold.String(tpl.Name), m.name) {
		return false
	}
	return true
}

// Browse returns one page of auctions matching q and the total number of
// matches. Auctions whose template is unknown never match.
func (p *Pool) Browse(q BrowseQuery, templates Templates) ([]Entry, int) {
	m := newBrowseMatcher(q)
	found := p.sorted(func(e *Entry) bool {
		tpl, ok := templates.Template(e.ItemTemplate)
		return ok && m.match(tpl)
	})

	skip := q.Skip
	if skip < 0 {
		skip = 0
	}
	if skip >= len(found) {
		return []Entry{}, len(found)
	}
	end := min(skip+BrowsePageSize, len(found))
	return copies(found[skip:end]), len(found)
}
