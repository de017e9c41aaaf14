// Package cache memoizes encoded projection snapshots for the HTTP surface.
// Entries are keyed by projection name and version, so a published change
// never serves stale bytes; the TTL only bounds memory held by old versions.
package cache

import (
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache wraps go-cache with version-keyed snapshot lookups.
type Cache struct {
	store  *gocache.Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache. defaultTTL is the lifetime of an entry and
// cleanupInterval how often expired entries are purged.
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{
		store: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Key returns the cache key of a projection version.
func Key(name string, version uint64) string {
	return name + "@" + strconv.FormatUint(version, 10)
}

// Snapshot returns the cached bytes of name at version, calling build on a
// miss. Build errors are not cached.
func (c *Cache) Snapshot(name string, version uint64, build func() ([]byte, error)) ([]byte, error) {
	key := Key(name, version)
	if v, ok := c.store.Get(key); ok {
		c.hits.Add(1)
		return v.([]byte), nil
	}

	c.misses.Add(1)
	data, err := build()
	if err != nil {
		return nil, err
	}
	c.store.Set(key, data, gocache.DefaultExpiration)
	return data, nil
}

// Get retrieves a value from the cache.
func (c *Cache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

// Set stores a value in the cache with default TTL.
func (c *Cache) Set(key string, value any) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

// Delete removes a value from the cache.
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	c.store.Flush()
}

// ItemCount returns the number of items in the cache.
func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}

// Stats reports cache usage.
type Stats struct {
	ItemCount int    `json:"itemCount"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
}

// GetStats returns current cache statistics.
func (c *Cache) GetStats() Stats {
	return Stats{
		ItemCount: c.store.ItemCount(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
	}
}
