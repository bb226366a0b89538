// Package udp implements stateless UDP send and the receive dispatch of
// spec §4.4: inbound UDP segments are handed to the DNS stub only, when
// the source matches the configured DNS server on port 53.
package udp

import (
	"github.com/malbeclabs/networkd/internal/ipv4"
	"github.com/malbeclabs/networkd/internal/wire"
)

const dnsServerPort = 53

// Listener receives a DNS response payload.
type Listener interface {
	HandleDNSResponse(srcPort uint16, payload []byte)
}

// Engine dispatches inbound UDP to the DNS stub and sends one-shot
// outbound datagrams.
type Engine struct {
	stack    *ipv4.Stack
	dnsSrvIP uint32
	dns      Listener
}

// NewEngine builds a UDP engine bound to dnsServerIP (the configured DNS
// server, spec §3.1) and registers it as stack's UDP handler.
func NewEngine(stack *ipv4.Stack, dnsServerIP uint32) *Engine {
	e := &Engine{stack: stack, dnsSrvIP: dnsServerIP}
	stack.RegisterUDP(e)
	return e
}

// RegisterDNS wires the DNS stub resolver as the receiver of DNS
// responses.
func (e *Engine) RegisterDNS(l Listener) { e.dns = l }

// HandleIPv4 implements ipv4.Handler.
func (e *Engine) HandleIPv4(srcMAC wire.MAC, src, dst uint32, payload []byte) {
	hdr, ok := wire.ParseUDPHeader(payload)
	if !ok {
		return
	}
	if !wire.UDPChecksumValid(src, dst, payload) {
		return
	}
	if src != e.dnsSrvIP || hdr.SrcPort != dnsServerPort {
		return
	}
	if e.dns != nil {
		e.dns.HandleDNSResponse(hdr.DstPort, payload[wire.UDPHeaderSize:hdr.Length])
	}
}

// Send builds and transmits a single UDP datagram from srcPort to
// dst:dstPort. Resolution and framing mirror ipv4.Stack.Send.
func (e *Engine) Send(dst uint32, srcPort, dstPort uint16, payload []byte, resolve ipv4.Resolver, xmit func([]byte) error) error {
	total := wire.UDPHeaderSize + len(payload)
	seg := make([]byte, total)
	hdr := wire.UDPHeader{SrcPort: srcPort, DstPort: dstPort, Length: uint16(total)}
	hdr.Marshal(seg)
	copy(seg[wire.UDPHeaderSize:], payload)
	binary16put(seg[6:8], wire.IPv4PseudoHeaderChecksum(e.stack.SourceIP(), dst, wire.IPProtoUDP, seg))
	return e.stack.Send(dst, wire.IPProtoUDP, seg, resolve, xmit)
}

func binary16put(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}
