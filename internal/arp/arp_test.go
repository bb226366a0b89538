package arp

import (
	"testing"
	"time"

	"github.com/malbeclabs/networkd/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestARP_Cache_InsertAndLookup(t *testing.T) {
	t.Parallel()
	c := NewCache()
	mac := wire.MAC{1, 2, 3, 4, 5, 6}
	c.Insert(0xC0A80101, mac)
	got, ok := c.Lookup(0xC0A80101)
	require.True(t, ok)
	require.Equal(t, mac, got)
}

func TestARP_Cache_UpdatesExistingEntryInPlace(t *testing.T) {
	t.Parallel()
	c := NewCache()
	mac1 := wire.MAC{1, 1, 1, 1, 1, 1}
	mac2 := wire.MAC{2, 2, 2, 2, 2, 2}
	c.Insert(0xC0A80101, mac1)
	c.Insert(0xC0A80101, mac2)
	require.Equal(t, 1, c.Size())
	got, ok := c.Lookup(0xC0A80101)
	require.True(t, ok)
	require.Equal(t, mac2, got)
}

func TestARP_Cache_FIFOEvictionAfter17Inserts(t *testing.T) {
	t.Parallel()
	c := NewCache()
	for i := 0; i < CacheSize; i++ {
		c.Insert(uint32(i+1), wire.MAC{byte(i)})
	}
	require.Equal(t, CacheSize, c.Size())

	// 17th distinct insert evicts the oldest (ip=1).
	c.Insert(uint32(CacheSize+1), wire.MAC{0xAA})
	require.Equal(t, CacheSize, c.Size())
	_, ok := c.Lookup(1)
	require.False(t, ok)
	_, ok = c.Lookup(uint32(CacheSize + 1))
	require.True(t, ok)
	require.Equal(t, uint64(1), c.Evictions())
}

func TestARP_Engine_ProcessFrame_LearnsSender(t *testing.T) {
	t.Parallel()
	e := NewEngine(wire.MAC{9, 9, 9, 9, 9, 9}, 0xC0A80101)
	pkt := wire.ARPPacket{Op: wire.ARPReply, SHA: wire.MAC{1, 2, 3, 4, 5, 6}, SPA: 0xC0A80102}
	reply := e.ProcessFrame(pkt)
	require.Nil(t, reply)
	mac, ok := e.Cache().Lookup(0xC0A80102)
	require.True(t, ok)
	require.Equal(t, pkt.SHA, mac)
}

func TestARP_Engine_ProcessFrame_RepliesToRequestForOurIP(t *testing.T) {
	t.Parallel()
	ourMAC := wire.MAC{9, 9, 9, 9, 9, 9}
	e := NewEngine(ourMAC, 0xC0A80101)
	pkt := wire.ARPPacket{Op: wire.ARPRequest, SHA: wire.MAC{1, 2, 3, 4, 5, 6}, SPA: 0xC0A80102, TPA: 0xC0A80101}
	reply := e.ProcessFrame(pkt)
	require.NotNil(t, reply)
	require.Equal(t, wire.ARPReply, reply.Op)
	require.Equal(t, ourMAC, reply.SHA)
	require.Equal(t, pkt.SHA, reply.THA)
	require.Equal(t, pkt.SPA, reply.TPA)
}

func TestARP_Engine_ProcessFrame_IgnoresRequestForOtherIP(t *testing.T) {
	t.Parallel()
	e := NewEngine(wire.MAC{9, 9, 9, 9, 9, 9}, 0xC0A80101)
	pkt := wire.ARPPacket{Op: wire.ARPRequest, SHA: wire.MAC{1, 2, 3, 4, 5, 6}, SPA: 0xC0A80102, TPA: 0xC0A80199}
	reply := e.ProcessFrame(pkt)
	require.Nil(t, reply)
}

type fakePoller struct {
	sent      []wire.ARPPacket
	onDrain   func()
}

func (f *fakePoller) Drain() {
	if f.onDrain != nil {
		f.onDrain()
	}
}

func (f *fakePoller) SendRequest(req wire.ARPPacket) error {
	f.sent = append(f.sent, req)
	return nil
}

func TestARP_Resolve_ReturnsImmediatelyWhenCached(t *testing.T) {
	t.Parallel()
	e := NewEngine(wire.MAC{9}, 0xC0A80101)
	mac := wire.MAC{1, 2, 3, 4, 5, 6}
	e.Cache().Insert(0xC0A80102, mac)
	p := &fakePoller{}
	fakeNow := time.Now()
	got, ok := e.Resolve(p, 0xC0A80102, time.Second, func() time.Time { return fakeNow }, func(time.Duration) {})
	require.True(t, ok)
	require.Equal(t, mac, got)
	require.Empty(t, p.sent)
}

func TestARP_Resolve_SendsRequestAndResolvesOnReply(t *testing.T) {
	t.Parallel()
	e := NewEngine(wire.MAC{9}, 0xC0A80101)
	target := uint32(0xC0A80102)
	mac := wire.MAC{1, 2, 3, 4, 5, 6}

	t0 := time.Now()
	cur := t0
	p := &fakePoller{}
	p.onDrain = func() {
		if len(p.sent) > 0 {
			e.Cache().Insert(target, mac)
		}
	}
	got, ok := e.Resolve(p, target, 2*time.Second,
		func() time.Time { return cur },
		func(d time.Duration) { cur = cur.Add(d) },
	)
	require.True(t, ok)
	require.Equal(t, mac, got)
	require.Len(t, p.sent, 1)
}

func TestARP_Resolve_TimesOutWithoutReply(t *testing.T) {
	t.Parallel()
	e := NewEngine(wire.MAC{9}, 0xC0A80101)
	t0 := time.Now()
	cur := t0
	p := &fakePoller{}
	_, ok := e.Resolve(p, 0xC0A80199, 500*time.Millisecond,
		func() time.Time { return cur },
		func(d time.Duration) { cur = cur.Add(d) },
	)
	require.False(t, ok)
	require.NotEmpty(t, p.sent)
}
