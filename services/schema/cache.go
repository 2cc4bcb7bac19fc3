package schema

import (
	"container/list"
	"sync"
	"time"

	"github.com/upb/leads-guard/models"
)

// cacheEntry is one table's column list with its insertion time
type cacheEntry struct {
	table      string
	columns    []models.ColumnInfo
	insertedAt time.Time
	element    *list.Element
}

// columnCache is an LRU cache with TTL for table column lists.
// Safe for concurrent use.
type columnCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
	now     func() time.Time
}

func newColumnCache(maxSize int, ttl time.Duration) *columnCache {
	return &columnCache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *columnCache) expired(e *cacheEntry) bool {
	return c.now().Sub(e.insertedAt) > c.ttl
}

// get returns a copy of the cached columns, or false on a miss or expiry
func (c *columnCache) get(table string) ([]models.ColumnInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[table]
	if !exists || c.expired(entry) {
		c.misses++
		if exists {
			c.remove(table)
		}
		return nil, false
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++
	return append([]models.ColumnInfo(nil), entry.columns...), true
}

func (c *columnCache) set(table string, columns []models.ColumnInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	columns = append([]models.ColumnInfo(nil), columns...)

	if entry, exists := c.entries[table]; exists {
		entry.columns = columns
		entry.insertedAt = c.now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		table:      table,
		columns:    columns,
		insertedAt: c.now(),
	}
	entry.element = c.lruList.PushFront(table)
	c.entries[table] = entry
}

func (c *columnCache) invalidate(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(table)
}

func (c *columnCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// cleanupExpired removes all expired entries and returns how many it removed
func (c *columnCache) cleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for table, entry := range c.entries {
		if c.expired(entry) {
			c.remove(table)
			removed++
		}
	}
	return removed
}

func (c *columnCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// remove must be called with the lock held
func (c *columnCache) remove(table string) {
	if entry, exists := c.entries[table]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, table)
	}
}

// evictLRU must be called with the lock held
func (c *columnCache) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	table := back.Value.(string)
	c.lruList.Remove(back)
	delete(c.entries, table)
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}
