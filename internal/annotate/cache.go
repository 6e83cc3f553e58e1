package annotate

import (
	"slices"
	"sort"
	"sync"
)

type record struct {
	seq   uint64
	items []Annotation
}

// Cache holds the visible annotations of each document. A record is always
// replaced as a whole.
type Cache struct {
	mu      sync.RWMutex
	records map[string]record
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{records: make(map[string]record)}
}

// Get returns a copy of the document's annotations. ok is false when the
// document was never annotated or has been evicted.
func (c *Cache) Get(doc string) (items []Annotation, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[doc]
	if !ok {
		return nil, false
	}
	return slices.Clone(rec.items), true
}

// put replaces the record unless a newer pass already stored one.
func (c *Cache) put(doc string, seq uint64, items []Annotation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.records[doc]; ok && prev.seq > seq {
		return false
	}
	if items == nil {
		items = []Annotation{}
	}
	c.records[doc] = record{seq: seq, items: items}
	return true
}

// Evict drops the document's record.
func (c *Cache) Evict(doc string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.records[doc]
	delete(c.records, doc)
	return ok
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Documents returns the cached document identities, sorted.
func (c *Cache) Documents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.records))
	for doc := range c.records {
		out = append(out, doc)
	}
	sort.Strings(out)
	return out
}
