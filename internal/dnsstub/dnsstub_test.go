package dnsstub

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDNSStub_BuildQuery_EncodesLabelsAndFlags(t *testing.T) {
	t.Parallel()
	q := BuildQuery(0x1234, "example.com")
	require.Equal(t, uint16(0x1234), binary.BigEndian.Uint16(q[0:2]))
	require.Equal(t, byte(0x01), q[2]) // RD=1
	require.Equal(t, uint16(1), binary.BigEndian.Uint16(q[4:6]))

	off := 12
	require.Equal(t, byte(7), q[off])
	require.Equal(t, "example", string(q[off+1:off+8]))
	off += 8
	require.Equal(t, byte(3), q[off])
	require.Equal(t, "com", string(q[off+1:off+4]))
	off += 4
	require.Equal(t, byte(0), q[off])
	off++
	require.Equal(t, uint16(1), binary.BigEndian.Uint16(q[off:off+2]))
	require.Equal(t, uint16(1), binary.BigEndian.Uint16(q[off+2:off+4]))
}

func buildResponse(id uint16, addr uint32) []byte {
	query := BuildQuery(id, "example.com")
	resp := append([]byte(nil), query...)
	binary.BigEndian.PutUint16(resp[2:4], 0x8180) // QR=1, RCODE=0
	answer := make([]byte, 0, 16)
	answer = append(answer, 0xc0, 0x0c) // pointer to offset 12 (the question name)
	fixedFields := make([]byte, 10)     // TYPE(2) CLASS(2) TTL(4) RDLENGTH(2)
	binary.BigEndian.PutUint16(fixedFields[0:2], 1) // type A
	binary.BigEndian.PutUint16(fixedFields[2:4], 1) // class IN
	binary.BigEndian.PutUint16(fixedFields[8:10], 4)
	answer = append(answer, fixedFields...)
	ip := make([]byte, 4)
	binary.BigEndian.PutUint32(ip, addr)
	answer = append(answer, ip...)
	resp = append(resp, answer...)
	binary.BigEndian.PutUint16(resp[6:8], 1) // ANCOUNT=1
	return resp
}

func TestDNSStub_ParseResponse_ExtractsFirstARecord(t *testing.T) {
	t.Parallel()
	resp := buildResponse(0xBEEF, 0xC0A80101)
	addr, err := ParseResponse(resp, 0xBEEF)
	require.NoError(t, err)
	require.Equal(t, uint32(0xC0A80101), addr)
}

func TestDNSStub_ParseResponse_RejectsWrongID(t *testing.T) {
	t.Parallel()
	resp := buildResponse(0xBEEF, 0xC0A80101)
	_, err := ParseResponse(resp, 0xDEAD)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDNSStub_ParseResponse_RejectsNonQRResponse(t *testing.T) {
	t.Parallel()
	resp := buildResponse(1, 0xC0A80101)
	binary.BigEndian.PutUint16(resp[2:4], 0x0100) // QR=0
	_, err := ParseResponse(resp, 1)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDNSStub_Cache_InsertLookupExpire(t *testing.T) {
	t.Parallel()
	c := NewCache()
	t0 := time.Now()
	c.Insert("Example.COM", 0xC0A80101, 100*time.Millisecond, t0)
	addr, ok := c.Lookup("example.com", t0)
	require.True(t, ok)
	require.Equal(t, uint32(0xC0A80101), addr)

	_, ok = c.Lookup("example.com", t0.Add(200*time.Millisecond))
	require.False(t, ok)
}

type fakeRand struct{ v uint16 }

func (f *fakeRand) Uint16() uint16 { return f.v }

func TestDNSStub_Resolver_Query_CacheHitSkipsNetwork(t *testing.T) {
	t.Parallel()
	r := NewResolver(&fakeRand{v: 1})
	t0 := time.Now()
	r.Cache().Insert("example.com", 0xC0A80101, 0, t0)

	sent := false
	addr, err := r.Query("example.com", time.Second,
		func(uint16, []byte) error { sent = true; return nil },
		func() {},
		func() time.Time { return t0 },
		func(time.Duration) {},
	)
	require.NoError(t, err)
	require.Equal(t, uint32(0xC0A80101), addr)
	require.False(t, sent)
}

func TestDNSStub_Resolver_Query_ResolvesOnMatchingResponse(t *testing.T) {
	t.Parallel()
	r := NewResolver(&fakeRand{v: 0xBEEF})
	t0 := time.Now()
	cur := t0

	var wantSrcPort uint16
	addr, err := r.Query("example.com", time.Second,
		func(srcPort uint16, query []byte) error {
			wantSrcPort = srcPort
			return nil
		},
		func() {
			if wantSrcPort != 0 {
				r.HandleResponse(wantSrcPort, buildResponse(0xBEEF, 0xC0A80102))
			}
		},
		func() time.Time { return cur },
		func(d time.Duration) { cur = cur.Add(d) },
	)
	require.NoError(t, err)
	require.Equal(t, uint32(0xC0A80102), addr)

	cached, ok := r.Cache().Lookup("example.com", cur)
	require.True(t, ok)
	require.Equal(t, addr, cached)
}

func TestDNSStub_Resolver_Query_TimesOut(t *testing.T) {
	t.Parallel()
	r := NewResolver(&fakeRand{v: 7})
	t0 := time.Now()
	cur := t0
	_, err := r.Query("example.com", 50*time.Millisecond,
		func(uint16, []byte) error { return nil },
		func() {},
		func() time.Time { return cur },
		func(d time.Duration) { cur = cur.Add(d) },
	)
	require.ErrorIs(t, err, ErrTimeout)
}
