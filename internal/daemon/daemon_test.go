package daemon

import (
	"encoding/binary"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/malbeclabs/networkd/internal/ifacedev"
	"github.com/malbeclabs/networkd/internal/ipc"
	"github.com/malbeclabs/networkd/internal/wire"
	"github.com/stretchr/testify/require"
)

// fakeRand returns a fixed id from Uint16 and all-zero bytes, so a test
// can predict the ephemeral source port a DNS query or ping will use.
type fakeRand struct{ id uint16 }

func (r fakeRand) Uint16() uint16 { return r.id }
func (r fakeRand) Bytes(out []byte) {
	for i := range out {
		out[i] = 0
	}
}

// fakeClock lets sleep() advance virtual time instantly instead of
// blocking on the wall clock, so timeout-driven paths run fast.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time        { return c.t }
func (c *fakeClock) sleep(d time.Duration) { c.t = c.t.Add(d) }

func testConfig() StaticConfig {
	return StaticConfig{
		IP:        0xC0A80102, // 192.168.1.2
		Netmask:   0xFFFFFF00,
		Gateway:   0xC0A80101,
		DNSServer: 0xC0A80101,
	}
}

func newTestDaemon(t *testing.T, dev *ifacedev.FakeDevice, opts ...Option) *Daemon {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	base := []Option{
		WithStaticConfig(testConfig()),
		WithClock(clock.now, clock.sleep),
		WithSockPath(filepath.Join(t.TempDir(), "networkd.sock")),
	}
	d := New(dev, append(base, opts...)...)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemon_AcceptPending_ExcessConnectionsClosed(t *testing.T) {
	t.Parallel()
	dev := ifacedev.NewFakeDevice([6]byte{0xAA, 1, 2, 3, 4, 5})
	d := newTestDaemon(t, dev)
	require.NoError(t, d.Listen())

	const dialed = maxClients + 2
	conns := make([]net.Conn, 0, dialed)
	for i := 0; i < dialed; i++ {
		c, err := net.Dial("unix", d.sockPath)
		require.NoError(t, err)
		conns = append(conns, c)
		t.Cleanup(func() { _ = c.Close() })
	}

	require.Eventually(t, func() bool {
		d.acceptPending()
		n := 0
		for _, c := range d.clients {
			if c != nil {
				n++
			}
		}
		return n == maxClients
	}, time.Second, time.Millisecond)

	require.Equal(t, -1, d.freeClientSlot())
}

func TestDaemon_HandlePing_UnreachableWhenARPNeverResolves(t *testing.T) {
	t.Parallel()
	dev := ifacedev.NewFakeDevice([6]byte{0xAA, 1, 2, 3, 4, 5})
	d := newTestDaemon(t, dev)

	resp := d.handlePing(ipc.PingReq{Addr: 0xC0A80199, Seq: 1, TimeoutMS: 100})
	require.Equal(t, ipc.StatusUnreachable, resp.Status)
}

func TestDaemon_HandlePing_SendsEchoRequestOnceARPIsResolved(t *testing.T) {
	t.Parallel()
	dev := ifacedev.NewFakeDevice([6]byte{0xAA, 1, 2, 3, 4, 5})
	d := newTestDaemon(t, dev, WithRand(fakeRand{id: 7}))

	target := uint32(0xC0A80103) // 192.168.1.3, on-link for 192.168.1.2/24
	targetMAC := wire.MAC{0xBB, 1, 2, 3, 4, 5}
	d.arpEng.Cache().Insert(target, targetMAC)

	// No echo reply is queued, so this times out, but only after the
	// daemon has ARP-resolved the target (from cache, no request sent)
	// and transmitted one Echo request frame straight to it.
	resp := d.handlePing(ipc.PingReq{Addr: target, Seq: 1, TimeoutMS: 200})
	require.Equal(t, ipc.StatusTimeout, resp.Status)

	require.NotEmpty(t, dev.TXLog)
	echoFrame := dev.TXLog[len(dev.TXLog)-1]
	eth, ok := wire.ParseEthernetHeader(echoFrame)
	require.True(t, ok)
	require.Equal(t, wire.EtherTypeIPv4, eth.Type)
	require.Equal(t, targetMAC, eth.Dst)
}

func TestDaemon_HandleDNS_HappyPath(t *testing.T) {
	t.Parallel()
	dev := ifacedev.NewFakeDevice([6]byte{0xAA, 1, 2, 3, 4, 5})
	dnsServerMAC := wire.MAC{0xCC, 1, 2, 3, 4, 5}
	d := newTestDaemon(t, dev, WithRand(fakeRand{id: 0x1234}))
	d.arpEng.Cache().Insert(d.cfg.DNSServer, dnsServerMAC)

	wantAddr := uint32(0x0A00020F) // 10.0.2.15
	id := uint16(0x1234)
	srcPort := uint16(49152 + int(id&0x3FF))

	resp := buildDNSResponseFrame(t, dnsServerMAC, d.dev.MAC(), d.cfg.DNSServer, d.cfg.IP, srcPort, id, "example.com", wantAddr)
	dev.Inject(resp)

	got := d.handleDNS(ipc.DNSReq{Name: "example.com", TimeoutMS: 1000})
	require.Equal(t, ipc.StatusOK, got.Status)
	require.Equal(t, wantAddr, got.Addr)
}

// buildDNSResponseFrame constructs a full Ethernet/IPv4/UDP frame carrying
// a single-answer DNS response, matching spec §8.2 scenario 2's fixture
// shape (id=0x1234, src_port=53, A record for name -> addr).
func buildDNSResponseFrame(t *testing.T, srcMAC, dstMAC wire.MAC, srcIP, dstIP uint32, dstPort, id uint16, name string, addr uint32) []byte {
	t.Helper()
	msg := buildDNSMessage(id, name, addr)

	udpTotal := wire.UDPHeaderSize + len(msg)
	udp := make([]byte, udpTotal)
	hdr := wire.UDPHeader{SrcPort: 53, DstPort: dstPort, Length: uint16(udpTotal)}
	hdr.Marshal(udp)
	copy(udp[wire.UDPHeaderSize:], msg) // checksum left at 0, which UDPChecksumValid treats as "not computed"

	ipTotal := wire.IPv4MinHeaderSize + udpTotal
	pkt := make([]byte, ipTotal)
	wire.MarshalIPv4Header(pkt, wire.IPv4Header{TotalLen: uint16(ipTotal), TTL: 64, Proto: wire.IPProtoUDP, Src: srcIP, Dst: dstIP})
	copy(pkt[wire.IPv4MinHeaderSize:], udp)

	frame := make([]byte, wire.EthernetHeaderSize+ipTotal)
	eth := wire.EthernetHeader{Dst: dstMAC, Src: srcMAC, Type: wire.EtherTypeIPv4}
	eth.Marshal(frame)
	copy(frame[wire.EthernetHeaderSize:], pkt)
	return frame
}

func buildDNSMessage(id uint16, name string, addr uint32) []byte {
	qname := encodeDNSName(name)

	var b []byte
	b = append(b, byte(id>>8), byte(id))
	b = append(b, 0x81, 0x80) // QR=1, RCODE=0
	b = append(b, 0, 1)       // QDCOUNT=1
	b = append(b, 0, 1)       // ANCOUNT=1
	b = append(b, 0, 0)       // NSCOUNT=0
	b = append(b, 0, 0)       // ARCOUNT=0
	b = append(b, qname...)
	b = append(b, 0, 1, 0, 1) // QTYPE=A, QCLASS=IN

	b = append(b, 0xC0, 0x0C) // answer name: pointer to offset 12
	b = append(b, 0, 1, 0, 1) // TYPE=A, CLASS=IN
	b = append(b, 0, 0, 0, 0) // TTL=0
	b = append(b, 0, 4)       // RDLENGTH=4
	var rdata [4]byte
	binary.BigEndian.PutUint32(rdata[:], addr)
	b = append(b, rdata[:]...)
	return b
}

func encodeDNSName(name string) []byte {
	var b []byte
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			continue
		}
		b = append(b, byte(len(label)))
		b = append(b, label...)
	}
	return append(b, 0)
}
