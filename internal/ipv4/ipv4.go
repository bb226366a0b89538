// Package ipv4 implements IPv4 receive dispatch and send, per spec §4.4:
// header validation on receive, dispatch by protocol number to ICMP/UDP/
// TCP handlers, and ARP-resolved transmit with a minimal on-link/gateway
// routing decision.
package ipv4

import (
	"errors"

	"github.com/malbeclabs/networkd/internal/arp"
	"github.com/malbeclabs/networkd/internal/wire"
)

// ErrNoRoute is surfaced when the ARP resolve for the next hop fails
// (interface down / no route, spec's UNREACHABLE status).
var ErrNoRoute = errors.New("ipv4: no route")

// Identity is the interface's addressing configuration.
type Identity struct {
	MAC     wire.MAC
	IP      uint32
	Netmask uint32
	Gateway uint32
}

// Handler receives a validated, checksummed IPv4 payload for a given
// protocol. srcMAC is the Ethernet source of the frame that carried it,
// handed down so a handler can reply on-link without a fresh ARP
// resolve (spec §4.4: replies go straight back to the peer that sent
// the request).
type Handler interface {
	HandleIPv4(srcMAC wire.MAC, src, dst uint32, payload []byte)
}

// Stack ties together an interface identity, the ARP engine, and the
// per-protocol handlers registered by higher layers.
type Stack struct {
	id     Identity
	arpEng *arp.Engine
	icmp   Handler
	udp    Handler
	tcp    Handler
	nextID uint16 // IPv4 identification field counter
}

// NewStack constructs an IPv4 stack bound to id and arpEng. Per-protocol
// handlers are registered with RegisterICMP/RegisterUDP/RegisterTCP
// since they are constructed after the stack in the daemon's wiring
// order.
func NewStack(id Identity, arpEng *arp.Engine) *Stack {
	return &Stack{id: id, arpEng: arpEng}
}

// SourceIP returns the interface's configured IPv4 address.
func (s *Stack) SourceIP() uint32 { return s.id.IP }

func (s *Stack) RegisterICMP(h Handler) { s.icmp = h }
func (s *Stack) RegisterUDP(h Handler)  { s.udp = h }
func (s *Stack) RegisterTCP(h Handler)  { s.tcp = h }

// ProcessFrame implements IPv4 RX per spec §4.4: validates the header
// and, on acceptance, dispatches the payload by protocol. frame is the
// IPv4 packet (Ethernet header already stripped by the caller); srcMAC
// is the Ethernet source of that frame.
func (s *Stack) ProcessFrame(srcMAC wire.MAC, frame []byte) {
	hdr, hlen, ok := wire.ParseIPv4Header(frame)
	if !ok {
		return
	}
	if hdr.Dst != s.id.IP && hdr.Dst != wire.IPv4Broadcast {
		return
	}
	payload := frame[hlen:hdr.TotalLen]
	switch hdr.Proto {
	case wire.IPProtoICMP:
		if s.icmp != nil {
			s.icmp.HandleIPv4(srcMAC, hdr.Src, hdr.Dst, payload)
		}
	case wire.IPProtoUDP:
		if s.udp != nil {
			s.udp.HandleIPv4(srcMAC, hdr.Src, hdr.Dst, payload)
		}
	case wire.IPProtoTCP:
		if s.tcp != nil {
			s.tcp.HandleIPv4(srcMAC, hdr.Src, hdr.Dst, payload)
		}
	}
}

// SendDirect builds an IPv4 packet around payload addressed to dst and
// sends it straight to destMAC without any ARP resolution, used for
// replies to a peer we just heard from on this link (ICMP echo reply) and
// for every segment of the TCP connection, whose peer MAC is given to it
// at connect time.
func (s *Stack) SendDirect(destMAC wire.MAC, dst uint32, proto wire.IPProto, payload []byte, xmit func(frame []byte) error) error {
	total := wire.IPv4MinHeaderSize + len(payload)
	pkt := make([]byte, total)
	s.nextID++
	wire.MarshalIPv4Header(pkt, wire.IPv4Header{
		TotalLen: uint16(total),
		ID:       s.nextID,
		TTL:      64,
		Proto:    proto,
		Src:      s.id.IP,
		Dst:      dst,
	})
	copy(pkt[wire.IPv4MinHeaderSize:], payload)

	frame := make([]byte, wire.EthernetHeaderSize+total)
	eth := wire.EthernetHeader{Dst: destMAC, Src: s.id.MAC, Type: wire.EtherTypeIPv4}
	eth.Marshal(frame)
	copy(frame[wire.EthernetHeaderSize:], pkt)
	return xmit(frame)
}

// nextHop applies the minimal on-link/gateway routing decision: if dst
// shares our network prefix, ARP-resolve dst directly; otherwise resolve
// the configured gateway.
func (s *Stack) nextHop(dst uint32) uint32 {
	if dst&s.id.Netmask == s.id.IP&s.id.Netmask {
		return dst
	}
	return s.id.Gateway
}

// Resolver is the subset of arp.Engine's Resolve signature Send needs,
// expressed as a function value so callers can inject the event loop's
// actual poll/sleep primitives.
type Resolver func(targetIP uint32) (wire.MAC, bool)

// Send builds an IPv4 packet (version 4, IHL 5, no fragmentation) around
// payload and hands the Ethernet frame to xmit once the next hop's MAC
// is resolved. Returns ErrNoRoute if resolution fails.
func (s *Stack) Send(dst uint32, proto wire.IPProto, payload []byte, resolve Resolver, xmit func(frame []byte) error) error {
	hop := s.nextHop(dst)
	destMAC, ok := resolve(hop)
	if !ok {
		return ErrNoRoute
	}

	total := wire.IPv4MinHeaderSize + len(payload)
	pkt := make([]byte, total)
	s.nextID++
	wire.MarshalIPv4Header(pkt, wire.IPv4Header{
		TotalLen: uint16(total),
		ID:       s.nextID,
		TTL:      64,
		Proto:    proto,
		Src:      s.id.IP,
		Dst:      dst,
	})
	copy(pkt[wire.IPv4MinHeaderSize:], payload)

	frame := make([]byte, wire.EthernetHeaderSize+total)
	eth := wire.EthernetHeader{Dst: destMAC, Src: s.id.MAC, Type: wire.EtherTypeIPv4}
	eth.Marshal(frame)
	copy(frame[wire.EthernetHeaderSize:], pkt)
	return xmit(frame)
}
