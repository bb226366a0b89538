package arp

import (
	"time"

	"github.com/malbeclabs/networkd/internal/wire"
)

// Engine ties the cache to an interface identity (our MAC and IP) and
// produces the frames to send in response to inbound traffic.
type Engine struct {
	cache  *Cache
	ourMAC wire.MAC
	ourIP  uint32
}

// NewEngine builds an ARP engine bound to the given interface identity.
func NewEngine(ourMAC wire.MAC, ourIP uint32) *Engine {
	return &Engine{cache: NewCache(), ourMAC: ourMAC, ourIP: ourIP}
}

// Cache exposes the underlying cache for lookups by other components.
func (e *Engine) Cache() *Cache { return e.cache }

// ProcessFrame implements arp_process_frame: it learns the sender's
// mapping unconditionally, and if this is a request targeting our IP,
// returns the reply frame payload to send back (Ethernet header handled
// by the caller).
func (e *Engine) ProcessFrame(pkt wire.ARPPacket) (reply *wire.ARPPacket) {
	if pkt.SPA != 0 {
		e.cache.Insert(pkt.SPA, pkt.SHA)
	}
	if pkt.Op == wire.ARPRequest && pkt.TPA == e.ourIP {
		return &wire.ARPPacket{
			Op:  wire.ARPReply,
			SHA: e.ourMAC,
			SPA: e.ourIP,
			THA: pkt.SHA,
			TPA: pkt.SPA,
		}
	}
	return nil
}

// BuildRequest constructs a broadcast ARP request for targetIP.
func (e *Engine) BuildRequest(targetIP uint32) wire.ARPPacket {
	return wire.ARPPacket{
		Op:  wire.ARPRequest,
		SHA: e.ourMAC,
		SPA: e.ourIP,
		THA: wire.MAC{},
		TPA: targetIP,
	}
}

// Poller is the minimal device-facing surface Resolve needs: a
// non-blocking device drain step (the caller's device_process) plus a
// way to transmit a broadcast ARP request.
type Poller interface {
	// Drain processes any pending inbound frames, feeding ARP replies
	// into the cache via ProcessFrame. Called once per spin iteration.
	Drain()
	// SendRequest transmits the given ARP request as a broadcast frame.
	SendRequest(req wire.ARPPacket) error
}

// retryInterval is the 200ms resend cadence of spec §4.3.
const retryInterval = 200 * time.Millisecond

// spinSleep is the 10ms cooperative sleep slice between polls (spec §5).
const spinSleep = 10 * time.Millisecond

// Resolve implements arp_resolve_mac(ip, timeout_ms): returns the cached
// MAC immediately if present; otherwise sends a broadcast request every
// 200ms and drains the device until resolved or the deadline passes.
func (e *Engine) Resolve(p Poller, ip uint32, timeout time.Duration, now func() time.Time, sleep func(time.Duration)) (wire.MAC, bool) {
	if mac, ok := e.cache.Lookup(ip); ok {
		return mac, true
	}
	deadline := now().Add(timeout)
	lastSent := time.Time{}
	for now().Before(deadline) {
		if now().Sub(lastSent) >= retryInterval {
			_ = p.SendRequest(e.BuildRequest(ip))
			lastSent = now()
		}
		p.Drain()
		if mac, ok := e.cache.Lookup(ip); ok {
			return mac, true
		}
		sleep(spinSleep)
	}
	if mac, ok := e.cache.Lookup(ip); ok {
		return mac, true
	}
	return wire.MAC{}, false
}
