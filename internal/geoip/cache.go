package geoip

import (
	"sync"
	"time"

	"proxy-checker/internal/domain"
)

type cacheEntry struct {
	info    domain.GeoInfo
	expires time.Time
}

// Cache is a TTL cache of lookups keyed by IP. Expired entries are never
// returned; Evict removes them from memory.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCache(ttl time.Duration) *Cache {
	return newCacheWithClock(ttl, time.Now)
}

func newCacheWithClock(ttl time.Duration, now func() time.Time) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Get(ip string) (domain.GeoInfo, bool) {
	c.mu.RLock()
	entry, ok := c.entries[ip]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expires) {
		return domain.GeoInfo{}, false
	}
	return entry.info, true
}

func (c *Cache) Set(ip string, info domain.GeoInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ip] = cacheEntry{info: info, expires: c.now().Add(c.ttl)}
}

// Evict drops expired entries and reports how many were removed.
func (c *Cache) Evict() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for ip, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, ip)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
