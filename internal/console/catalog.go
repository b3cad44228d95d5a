package console

import (
	"slices"
	"strings"
	"sync"

	"github.com/pbaille/letterdesk/internal/domain"
)

// Catalog holds the canonical record list of every loaded kind.
// A refetch replaces a kind's list wholesale; records created while
// resolving relations are appended so later lookups can reuse them.
type Catalog struct {
	mu      sync.RWMutex
	records map[domain.Kind][]domain.Record
	loaded  map[domain.Kind]bool
}

func NewCatalog() *Catalog {
	return &Catalog{
		records: map[domain.Kind][]domain.Record{},
		loaded:  map[domain.Kind]bool{},
	}
}

// Replace swaps in a freshly fetched list
func (c *Catalog) Replace(kind domain.Kind, records []domain.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[kind] = slices.Clone(records)
	c.loaded[kind] = true
}

// Loaded reports whether kind's full list was fetched at least once
func (c *Catalog) Loaded(kind domain.Kind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded[kind]
}

// Append adds a newly created record
func (c *Catalog) Append(kind domain.Kind, rec domain.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[kind] = append(c.records[kind], rec)
}

// Records returns a copy of a kind's list
func (c *Catalog) Records(kind domain.Kind) []domain.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.records[kind])
}

// Find looks a record up by id
func (c *Catalog) Find(kind domain.Kind, id string) (domain.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.records[kind] {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Record{}, false
}

// FindByLabel looks a record up by its display label, ignoring case and
// surrounding whitespace
func (c *Catalog) FindByLabel(kind domain.Kind, label string) (domain.Record, bool) {
	sch, err := domain.Lookup(kind)
	if err != nil {
		return domain.Record{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.records[kind] {
		if labelMatches(sch.LabelOf(r), label) {
			return r, true
		}
	}
	return domain.Record{}, false
}

func labelMatches(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
