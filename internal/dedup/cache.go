// Package dedup tracks which record ids a scraping session has already
// processed, optionally seeded from a durable mirror of earlier sessions.
package dedup

import "sync"

// Cache is a session-scoped set of seen record ids.
type Cache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{seen: make(map[string]struct{})}
}

// HasSeen reports whether id was marked.
func (c *Cache) HasSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[id]
	return ok
}

// MarkSeen records id. Empty ids are ignored.
func (c *Cache) MarkSeen(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	c.seen[id] = struct{}{}
	c.mu.Unlock()
}

// Preload marks every id.
func (c *Cache) Preload(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			c.seen[id] = struct{}{}
		}
	}
}

// Len returns the number of seen ids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
