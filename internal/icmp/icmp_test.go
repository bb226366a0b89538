package icmp

import (
	"testing"
	"time"

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

func TestICMP_HandleIPv4_EchoRequestProducesReplyWithSamePayload(t *testing.T) {
	t.Parallel()
	stack := newTestStack()
	var sent []byte
	e := NewEngine(stack, func(frame []byte) error {
		sent = frame
		return nil
	})

	req := wire.ICMPEcho{Type: wire.ICMPTypeEchoRequest, ID: 0x1234, Seq: 1, Data: []byte("abc")}
	payload := make([]byte, wire.ICMPHeaderSize+len(req.Data))
	req.Marshal(payload)

	srcMAC := wire.MAC{2, 2, 2, 2, 2, 2}
	e.HandleIPv4(srcMAC, 0xC0A80102, 0xC0A80101, payload)

	require.NotEmpty(t, sent)
	ethHdr, ok := wire.ParseEthernetHeader(sent)
	require.True(t, ok)
	require.Equal(t, srcMAC, ethHdr.Dst)

	ipHdr, hlen, ok := wire.ParseIPv4Header(sent[wire.EthernetHeaderSize:])
	require.True(t, ok)
	require.Equal(t, wire.IPProtoICMP, ipHdr.Proto)

	echoOut, ok := wire.ParseICMPEcho(sent[wire.EthernetHeaderSize+hlen:])
	require.True(t, ok)
	require.Equal(t, wire.ICMPTypeEchoReply, echoOut.Type)
	require.Equal(t, req.ID, echoOut.ID)
	require.Equal(t, req.Seq, echoOut.Seq)
	require.Equal(t, req.Data, echoOut.Data)
}

func TestICMP_Ping_MatchesReplyByIDSeqSource(t *testing.T) {
	t.Parallel()
	stack := newTestStack()
	e := NewEngine(stack, func([]byte) error { return nil })

	dst := uint32(0xC0A80102)
	t0 := time.Now()
	cur := t0
	_, err := e.Ping(dst, 0xAAAA, 1, []byte("x"), time.Second,
		func([]byte) error { return nil },
		func() {
			reply := wire.ICMPEcho{Type: wire.ICMPTypeEchoReply, ID: 0xAAAA, Seq: 1}
			payload := make([]byte, wire.ICMPHeaderSize)
			reply.Marshal(payload)
			e.HandleIPv4(wire.MAC{}, dst, 0, payload)
		},
		func() time.Time { return cur },
		func(d time.Duration) { cur = cur.Add(d) },
	)
	require.NoError(t, err)
}

func TestICMP_Ping_TimesOutWithoutMatch(t *testing.T) {
	t.Parallel()
	stack := newTestStack()
	e := NewEngine(stack, func([]byte) error { return nil })

	t0 := time.Now()
	cur := t0
	_, err := e.Ping(0xC0A80102, 1, 1, nil, 100*time.Millisecond,
		func([]byte) error { return nil },
		func() {},
		func() time.Time { return cur },
		func(d time.Duration) { cur = cur.Add(d) },
	)
	require.ErrorIs(t, err, ErrTimeout)
}
