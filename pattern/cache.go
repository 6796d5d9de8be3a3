package pattern

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of distinct source strings a Cache
// keeps compiled at once before evicting the least recently used entry.
const DefaultCacheSize = 1024

// Cache memoizes Parse by source string. Patterns are immutable once
// compiled, so a cached *Pattern may be shared freely across callers.
type Cache struct {
	lru *lru.Cache[string, *Pattern]
}

// NewCache builds a Cache holding up to size compiled patterns. A
// non-positive size falls back to DefaultCacheSize.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	l, err := lru.New[string, *Pattern](size)
	if err != nil {
		// Only returns an error for a non-positive size, already guarded above.
		panic(err)
	}
	return &Cache{lru: l}
}

// Compile returns the pattern compiled from src, parsing and caching it on
// a miss. A parse failure is never cached.
func (c *Cache) Compile(src string) (*Pattern, error) {
	if c == nil {
		return Parse(src)
	}
	if pat, ok := c.lru.Get(src); ok {
		return pat, nil
	}
	pat, err := Parse(src)
	if err != nil {
		return nil, err
	}
	c.lru.Add(src, pat)
	return pat, nil
}

// Len reports the number of compiled patterns currently cached.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
