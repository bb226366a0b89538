package daemon

import "github.com/malbeclabs/networkd/internal/metrics"

// observeTick updates the gauge-shaped metrics that reflect point-in-time
// state rather than discrete events: ARP cache occupancy/evictions and the
// number of connected IPC clients. Called once per Tick.
func (d *Daemon) observeTick() {
	cache := d.arpEng.Cache()
	metrics.ARPCacheSize.Set(float64(cache.Size()))

	evictions := cache.Evictions()
	if evictions > d.lastARPEvictions {
		metrics.ARPCacheEvictionsTotal.Add(float64(evictions - d.lastARPEvictions))
		d.lastARPEvictions = evictions
	}

	n := 0
	for _, c := range d.clients {
		if c != nil {
			n++
		}
	}
	metrics.IPCClientsConnected.Set(float64(n))

	if state := d.conn.State(); state != d.lastTCPState {
		metrics.TCPStateTransitionsTotal.WithLabelValues(state.String()).Inc()
		d.lastTCPState = state
	}
}
