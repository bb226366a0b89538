// Package daemon wires every protocol layer into the single-threaded
// cooperative event loop of spec §4.9: one Ethernet device, one ARP
// engine, one IPv4 stack, ICMP/UDP/TCP handlers, a DNS stub resolver, an
// HTTP GET pipeline, and up to 8 IPC clients, all driven by one 50ms poll
// tick with no goroutines.
package daemon

import (
	"log/slog"
	"net"
	"time"

	"github.com/malbeclabs/networkd/internal/arp"
	"github.com/malbeclabs/networkd/internal/crypto"
	"github.com/malbeclabs/networkd/internal/dnsstub"
	"github.com/malbeclabs/networkd/internal/httpget"
	"github.com/malbeclabs/networkd/internal/icmp"
	"github.com/malbeclabs/networkd/internal/ifacedev"
	"github.com/malbeclabs/networkd/internal/ipc"
	"github.com/malbeclabs/networkd/internal/ipv4"
	"github.com/malbeclabs/networkd/internal/metrics"
	"github.com/malbeclabs/networkd/internal/tcpconn"
	"github.com/malbeclabs/networkd/internal/udp"
	"github.com/malbeclabs/networkd/internal/wire"
)

// tickInterval is the main loop's poll timeout, spec §4.9 step 1.
const tickInterval = 50 * time.Millisecond

// maxClients bounds accepted IPC connections, spec §4.9 step 2.
const maxClients = 8

// defaultTimeout bounds every blocking sub-operation (ARP/TCP/TLS/DNS/
// HTTP) a handler drives within one request.
const defaultTimeout = 5 * time.Second

// StaticConfig is the interface's static addressing, spec §3.1.
type StaticConfig struct {
	IP        uint32
	Netmask   uint32
	Gateway   uint32
	DNSServer uint32
}

// Daemon owns every piece of state the event loop touches.
type Daemon struct {
	log  *slog.Logger
	dev  ifacedev.Device
	cfg  StaticConfig
	now  func() time.Time
	sleep func(time.Duration)

	sockPath  string
	listener  *net.UnixListener
	reopener  *ifacedev.Reopener

	arpEng  *arp.Engine
	stack   *ipv4.Stack
	icmpEng *icmp.Engine
	udpEng  *udp.Engine
	dns     *dnsstub.Resolver
	conn    *tcpconn.Conn
	getter  *httpget.Getter
	rnd     randSource

	rxBuf []byte

	clients   [maxClients]*clientConn
	startedAt time.Time
	enabled   bool

	lastARPEvictions uint64
	lastTCPState     tcpconn.State
}

// clientConn is one accepted IPC client slot.
type clientConn struct {
	conn *ipc.Conn
}

// randSource is the union of what dnsstub and tlsclient each need from a
// random source; crypto.CSPRNG satisfies it directly, and tests can swap
// in a deterministic fake via WithRand.
type randSource interface {
	Uint16() uint16
	Bytes(out []byte)
}

// Option configures a Daemon at construction time.
type Option func(*Daemon)

// WithLogger sets the daemon's structured logger (defaults to slog.Default()).
func WithLogger(log *slog.Logger) Option {
	return func(d *Daemon) { d.log = log }
}

// WithSockPath sets the IPC listen path (defaults to "networkd").
func WithSockPath(path string) Option {
	return func(d *Daemon) { d.sockPath = path }
}

// WithStaticConfig sets the interface's static addressing.
func WithStaticConfig(cfg StaticConfig) Option {
	return func(d *Daemon) { d.cfg = cfg }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(d *Daemon) { d.now = now; d.sleep = sleep }
}

// WithRand overrides the CSPRNG used for DNS query ids, ping ids, and TLS
// key material, for deterministic tests.
func WithRand(rnd randSource) Option {
	return func(d *Daemon) { d.rnd = rnd }
}

// WithReopener makes the daemon re-probe and, on failure, reopen the
// Ethernet device once per tick (spec §4.3's "reopens on failure,
// 1-second retry"), instead of holding dev fixed for the process
// lifetime. dev should be the reopener's own currently-open device.
func WithReopener(r *ifacedev.Reopener) Option {
	return func(d *Daemon) { d.reopener = r }
}

// New builds a Daemon bound to dev, wiring the ARP engine, IPv4 stack,
// ICMP/UDP/TCP handlers, DNS resolver, and HTTP GET pipeline, but does not
// yet open the IPC listener (see Listen).
func New(dev ifacedev.Device, options ...Option) *Daemon {
	d := &Daemon{
		dev:      dev,
		sockPath: "networkd",
		now:      time.Now,
		sleep:    time.Sleep,
		rxBuf:    make([]byte, ifacedev.MaxFrameSize),
		enabled:  true,
	}
	for _, o := range options {
		o(d)
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	d.startedAt = d.now()

	mac := dev.MAC()
	d.arpEng = arp.NewEngine(mac, d.cfg.IP)
	d.stack = ipv4.NewStack(ipv4.Identity{MAC: mac, IP: d.cfg.IP, Netmask: d.cfg.Netmask, Gateway: d.cfg.Gateway}, d.arpEng)
	d.icmpEng = icmp.NewEngine(d.stack, d.xmit)
	d.udpEng = udp.NewEngine(d.stack, d.cfg.DNSServer)
	d.conn = tcpconn.NewConn(d.stack, d.xmit)

	if d.rnd == nil {
		d.rnd = crypto.NewCSPRNG(func() uint64 { return uint64(d.now().Sub(d.startedAt).Milliseconds()) })
	}
	d.dns = dnsstub.NewResolver(d.rnd)
	d.udpEng.RegisterDNS(dnsListenerAdapter{d.dns})

	d.getter = httpget.NewGetter(d.dns, d.dnsSend, d.arpEng, devicePoller{d}, d.conn, d.rnd)

	return d
}

// dnsListenerAdapter bridges the UDP layer's "HandleDNSResponse" callback
// name to the resolver's own "HandleResponse" method.
type dnsListenerAdapter struct{ r *dnsstub.Resolver }

func (a dnsListenerAdapter) HandleDNSResponse(srcPort uint16, payload []byte) {
	a.r.HandleResponse(srcPort, payload)
}

// xmit is the raw Ethernet frame writer every layer sends through.
func (d *Daemon) xmit(frame []byte) error {
	if err := d.dev.WriteFrame(frame); err != nil {
		return err
	}
	metrics.FramesTotal.WithLabelValues(metrics.DirectionTX).Inc()
	return nil
}

// dnsSend transmits one DNS query datagram, ARP-resolving the configured
// server synchronously (spin-bounded by defaultTimeout).
func (d *Daemon) dnsSend(srcPort uint16, query []byte) error {
	resolve := func(ip uint32) (wire.MAC, bool) {
		return d.arpEng.Resolve(devicePoller{d}, ip, defaultTimeout, d.now, d.sleep)
	}
	return d.udpEng.Send(d.cfg.DNSServer, srcPort, 53, query, resolve, d.xmit)
}

// devicePoller adapts Daemon to arp.Poller: draining the device is just
// one pass of the daemon's own frame dispatch, and sending a request is a
// broadcast ARP frame.
type devicePoller struct{ d *Daemon }

func (p devicePoller) Drain() { p.d.drainDevice() }

func (p devicePoller) SendRequest(req wire.ARPPacket) error {
	return p.d.sendARPFrame(wire.Broadcast, req)
}

// drainDevice performs one non-blocking read-and-dispatch pass over the
// device, spec §4.9 step 3: every frame currently queued is parsed and
// handed to ARP or the IPv4 stack before returning.
func (d *Daemon) drainDevice() {
	for {
		n, err := d.dev.ReadFrame(d.rxBuf)
		if err != nil {
			return
		}
		metrics.FramesTotal.WithLabelValues(metrics.DirectionRX).Inc()
		d.dispatchFrame(d.rxBuf[:n])
	}
}

func (d *Daemon) dispatchFrame(frame []byte) {
	eth, ok := wire.ParseEthernetHeader(frame)
	if !ok {
		return
	}
	body := frame[wire.EthernetHeaderSize:]
	switch eth.Type {
	case wire.EtherTypeARP:
		pkt, ok := wire.ParseARPPacket(body)
		if !ok {
			return
		}
		if reply := d.arpEng.ProcessFrame(pkt); reply != nil {
			_ = d.sendARPFrame(eth.Src, *reply)
		}
	case wire.EtherTypeIPv4:
		d.stack.ProcessFrame(eth.Src, body)
	}
}

// sendARPFrame wraps pkt in an Ethernet header addressed to dst and
// transmits it.
func (d *Daemon) sendARPFrame(dst wire.MAC, pkt wire.ARPPacket) error {
	frame := make([]byte, wire.EthernetHeaderSize+wire.ARPPacketSize)
	eth := wire.EthernetHeader{Dst: dst, Src: d.arpMAC(), Type: wire.EtherTypeARP}
	eth.Marshal(frame)
	pkt.Marshal(frame[wire.EthernetHeaderSize:])
	return d.xmit(frame)
}

func (d *Daemon) arpMAC() wire.MAC { return d.dev.MAC() }

// refreshDevice re-probes the Ethernet device's link state and, if it
// dropped, reopens it at most once per second. A no-op when the daemon
// was built without WithReopener (e.g. tests driving a fake device
// directly).
func (d *Daemon) refreshDevice() {
	if d.reopener == nil {
		return
	}
	dev, err := d.reopener.EnsureUp(d.now())
	if err != nil {
		d.log.Warn("ifacedev: device not up", "err", err)
		return
	}
	d.dev = dev
}

// Uptime reports how long the daemon has been running.
func (d *Daemon) Uptime() time.Duration { return d.now().Sub(d.startedAt) }

func (d *Daemon) uptimeMS() uint32 { return uint32(d.Uptime().Milliseconds()) }
