package udp

import (
	"testing"

	"github.com/malbeclabs/networkd/internal/arp"
	"github.com/malbeclabs/networkd/internal/ipv4"
	"github.com/malbeclabs/networkd/internal/wire"
	"github.com/stretchr/testify/require"
)

func newTestStack() *ipv4.Stack {
	id := ipv4.Identity{
		MAC:     wire.MAC{1, 1, 1, 1, 1, 1},
		IP:      0xC0A80101,
		Netmask: 0xFFFFFF00,
		Gateway: 0xC0A801FE,
	}
	return ipv4.NewStack(id, arp.NewEngine(id.MAC, id.IP))
}

type fakeDNS struct {
	srcPort uint16
	payload []byte
}

func (f *fakeDNS) HandleDNSResponse(srcPort uint16, payload []byte) {
	f.srcPort = srcPort
	f.payload = append([]byte(nil), payload...)
}

func TestUDP_HandleIPv4_DispatchesDNSResponseFromConfiguredServer(t *testing.T) {
	t.Parallel()
	stack := newTestStack()
	dnsSrv := uint32(0xC0A80105)
	e := NewEngine(stack, dnsSrv)
	dns := &fakeDNS{}
	e.RegisterDNS(dns)

	body := []byte("dns answer bytes")
	seg := make([]byte, wire.UDPHeaderSize+len(body))
	hdr := wire.UDPHeader{SrcPort: 53, DstPort: 49200, Length: uint16(len(seg))}
	hdr.Marshal(seg)
	copy(seg[wire.UDPHeaderSize:], body)

	e.HandleIPv4(wire.MAC{}, dnsSrv, stack.SourceIP(), seg)
	require.Equal(t, uint16(49200), dns.srcPort)
	require.Equal(t, body, dns.payload)
}

func TestUDP_HandleIPv4_IgnoresNonDNSServerSource(t *testing.T) {
	t.Parallel()
	stack := newTestStack()
	e := NewEngine(stack, 0xC0A80105)
	dns := &fakeDNS{}
	e.RegisterDNS(dns)

	seg := make([]byte, wire.UDPHeaderSize)
	hdr := wire.UDPHeader{SrcPort: 53, DstPort: 49200, Length: wire.UDPHeaderSize}
	hdr.Marshal(seg)

	e.HandleIPv4(wire.MAC{}, 0xC0A80199, stack.SourceIP(), seg)
	require.Nil(t, dns.payload)
}

func TestUDP_Send_ProducesValidChecksum(t *testing.T) {
	t.Parallel()
	stack := newTestStack()
	e := NewEngine(stack, 0xC0A80105)

	var frame []byte
	err := e.Send(0xC0A80105, 49200, 53, []byte("query"),
		func(uint32) (wire.MAC, bool) { return wire.MAC{2, 2, 2, 2, 2, 2}, true },
		func(f []byte) error { frame = f; return nil },
	)
	require.NoError(t, err)
	require.NotEmpty(t, frame)

	_, hlen, ok := wire.ParseIPv4Header(frame[wire.EthernetHeaderSize:])
	require.True(t, ok)
	seg := frame[wire.EthernetHeaderSize+hlen:]
	require.True(t, wire.UDPChecksumValid(stack.SourceIP(), 0xC0A80105, seg))
}
