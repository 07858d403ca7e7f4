package toc

import "sync"

type cacheKey struct {
	path  string
	lastN int
}

// Cache keeps parsed tables per (absolute PDF path, last N pages). Entries
// are written once and never replaced.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*Result
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*Result)}
}

func (c *Cache) get(path string, lastN int) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[cacheKey{path, lastN}]
	return r, ok
}

// put stores r unless the key is already present and returns the stored value.
func (c *Cache) put(path string, lastN int, r *Result) *Result {
	if c == nil {
		return r
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey{path, lastN}
	if prev, ok := c.entries[k]; ok {
		return prev
	}
	c.entries[k] = r
	return r
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
