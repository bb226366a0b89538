// Package arp implements the ARP cache and resolver of spec §4.3: a
// fixed 16-slot FIFO-replacement cache, request/reply processing against
// inbound frames, and a blocking resolve-by-retry helper for the TCP and
// IPv4 send paths.
package arp

import (
	"github.com/malbeclabs/networkd/internal/wire"
)

// CacheSize is the fixed number of FIFO-replacement slots (spec §3.1,
// §4.3). Entries are reused in FIFO order; there is no eviction on
// timeout.
const CacheSize = 16

type entry struct {
	valid bool
	ip    uint32
	mac   wire.MAC
}

// Cache is the 16-slot FIFO ARP cache. It is not safe for concurrent use;
// the daemon event loop owns it exclusively.
type Cache struct {
	slots     [CacheSize]entry
	next      int // arp_next_slot: index of the next slot to be overwritten
	evictions uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Lookup returns the cached MAC for ip, if present.
func (c *Cache) Lookup(ip uint32) (wire.MAC, bool) {
	for i := range c.slots {
		if c.slots[i].valid && c.slots[i].ip == ip {
			return c.slots[i].mac, true
		}
	}
	return wire.MAC{}, false
}

// Insert records or updates the mapping for ip. An existing entry for ip
// is updated in place; a new mapping consumes the next FIFO slot and
// advances arp_next_slot, overwriting whatever was there regardless of
// its age.
func (c *Cache) Insert(ip uint32, mac wire.MAC) {
	for i := range c.slots {
		if c.slots[i].valid && c.slots[i].ip == ip {
			c.slots[i].mac = mac
			return
		}
	}
	if c.slots[c.next].valid {
		c.evictions++
	}
	c.slots[c.next] = entry{valid: true, ip: ip, mac: mac}
	c.next = (c.next + 1) % CacheSize
}

// Evictions reports how many FIFO slot reuses have occurred so far.
func (c *Cache) Evictions() uint64 { return c.evictions }

// Size reports how many valid entries are currently cached (test helper).
func (c *Cache) Size() int {
	n := 0
	for i := range c.slots {
		if c.slots[i].valid {
			n++
		}
	}
	return n
}
