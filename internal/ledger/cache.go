package ledger

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"guild_ledger/internal/metrics"
)

const defaultCacheCapacity = 512

type rowKey struct {
	section  Section
	username string
}

type columnKey struct {
	worksheet string
	headerRow int
	header    string
}

// lookupCache is a bounded cache that evicts the least recently used entry once full.
type lookupCache[K comparable, V any] struct {
	name    string
	entries *lru.Cache[K, V]
	metrics *metrics.Metrics
}

func newLookupCache[K comparable, V any](name string, capacity int, m *metrics.Metrics) *lookupCache[K, V] {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	// lru.New only fails for a non-positive size
	entries, _ := lru.New[K, V](capacity)
	return &lookupCache[K, V]{name: name, entries: entries, metrics: m}
}

func (c *lookupCache[K, V]) get(k K) (V, bool) {
	v, ok := c.entries.Get(k)
	c.metrics.CacheLookup(c.name, ok)
	return v, ok
}

func (c *lookupCache[K, V]) add(k K, v V) {
	c.entries.Add(k, v)
}

func (c *lookupCache[K, V]) remove(k K) {
	c.entries.Remove(k)
}

func (c *lookupCache[K, V]) removeIf(match func(K) bool) int {
	removed := 0
	for _, k := range c.entries.Keys() {
		if match(k) {
			c.entries.Remove(k)
			removed++
		}
	}
	return removed
}

func (c *lookupCache[K, V]) len() int {
	return c.entries.Len()
}

// RowCache remembers the row of each (section, username). Entries are never
// refreshed on write; callers invalidate after inserting rows.
type RowCache struct {
	*lookupCache[rowKey, int]
}

func NewRowCache(capacity int, m *metrics.Metrics) *RowCache {
	return &RowCache{newLookupCache[rowKey, int]("rows", capacity, m)}
}

// ColumnCache remembers header positions per (worksheet, header row, header). A
// stored column of 0 records that the header is absent from that block.
type ColumnCache struct {
	*lookupCache[columnKey, int]
}

func NewColumnCache(capacity int, m *metrics.Metrics) *ColumnCache {
	return &ColumnCache{newLookupCache[columnKey, int]("columns", capacity, m)}
}
