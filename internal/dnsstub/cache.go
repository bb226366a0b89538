package dnsstub

import (
	"strings"
	"time"
)

// initialCacheSize and maxCacheSize mirror netd_dns_cache.c's sizing: the
// entry slice grows by plain append and is capped at 4x initialCacheSize.
const (
	initialCacheSize = 16
	maxCacheSize      = initialCacheSize * 4
	defaultTTL        = 60 * time.Second
)

type cacheEntry struct {
	name      string
	addr      uint32
	timestamp time.Time
	ttl       time.Duration
}

// Cache is a case-insensitive, TTL-expiring name->address cache. Lookups
// eagerly expire stale entries first, matching netd_dns_cache_lookup's
// call to netd_dns_cache_expire_old before scanning.
type Cache struct {
	entries      []cacheEntry
	hits, misses uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache { return &Cache{} }

func namesEqual(a, b string) bool { return strings.EqualFold(a, b) }

// expireOld drops entries whose TTL has elapsed as of now, swapping the
// last entry into the removed slot (order doesn't matter, matching the
// original's swap-and-shrink removal).
func (c *Cache) expireOld(now time.Time) {
	i := 0
	for i < len(c.entries) {
		e := &c.entries[i]
		if e.ttl > 0 && now.Sub(e.timestamp) >= e.ttl {
			last := len(c.entries) - 1
			c.entries[i] = c.entries[last]
			c.entries = c.entries[:last]
			continue
		}
		i++
	}
}

// Lookup returns the cached address for name, if present and unexpired.
func (c *Cache) Lookup(name string, now time.Time) (uint32, bool) {
	c.expireOld(now)
	for i := range c.entries {
		if namesEqual(c.entries[i].name, name) {
			c.hits++
			return c.entries[i].addr, true
		}
	}
	c.misses++
	return 0, false
}

// Insert records name -> addr with ttl (defaultTTL if zero), updating an
// existing entry in place. When the cache is at capacity, the oldest
// insertion order is not tracked; a newly evicted slot is chosen by
// expiring first, then (if still full) overwriting entry 0, matching the
// original's capacity-cap behavior once growth hits maxCacheSize.
func (c *Cache) Insert(name string, addr uint32, ttl time.Duration, now time.Time) {
	if name == "" {
		return
	}
	if ttl == 0 {
		ttl = defaultTTL
	}
	for i := range c.entries {
		if namesEqual(c.entries[i].name, name) {
			c.entries[i].addr = addr
			c.entries[i].timestamp = now
			c.entries[i].ttl = ttl
			return
		}
	}
	c.expireOld(now)
	if len(c.entries) >= maxCacheSize {
		c.entries[0] = c.entries[len(c.entries)-1]
		c.entries = c.entries[:len(c.entries)-1]
	}
	c.entries = append(c.entries, cacheEntry{name: name, addr: addr, timestamp: now, ttl: ttl})
}

// Size reports the number of live entries.
func (c *Cache) Size() int { return len(c.entries) }

// Stats returns cumulative hit/miss counters.
func (c *Cache) Stats() (hits, misses uint64) { return c.hits, c.misses }
