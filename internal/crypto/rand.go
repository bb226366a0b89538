package crypto

import (
	"encoding/binary"
	"time"
)

// CSPRNG is a SHA-256-based pseudo-random generator seeded and continually
// stirred by host timing jitter, per spec §4.1. The reference design reads
// the x86 RDTSC cycle counter; since Go exposes no portable equivalent,
// this implementation substitutes successive monotonic-clock reads
// (time.Now().UnixNano()), whose low bits carry the same kind of
// scheduler/cache-induced jitter RDTSC would. See DESIGN.md.
type CSPRNG struct {
	state    [SHA256Size]byte
	ctr      uint64
	seeded   bool
	uptimeMS func() uint64
}

// NewCSPRNG returns an unseeded generator; the first call to Bytes triggers
// the seeding pass. uptimeMS supplies the daemon's millisecond uptime clock
// (the stand-in for RDTSC jitter is independent of this and always read
// fresh from time.Now()).
func NewCSPRNG(uptimeMS func() uint64) *CSPRNG {
	return &CSPRNG{uptimeMS: uptimeMS}
}

func timingJitter() uint64 {
	return uint64(time.Now().UnixNano())
}

func (c *CSPRNG) seed() {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], timingJitter())
	if c.uptimeMS != nil {
		binary.LittleEndian.PutUint64(buf[8:16], c.uptimeMS())
	}
	binary.LittleEndian.PutUint64(buf[16:24], timingJitter())
	c.state = Sum256(buf[:])
	c.seeded = true
}

// Bytes fills out with pseudo-random bytes. Each call emits
// SHA-256(state || ctr || jitter) in successive 32-byte chunks, then stirs
// the running state with the chunk just produced, so no two calls (even
// with the same ctr) can be replayed from an observed output.
func (c *CSPRNG) Bytes(out []byte) {
	if !c.seeded {
		c.seed()
	}
	for len(out) > 0 {
		var buf [48]byte
		copy(buf[0:32], c.state[:])
		binary.LittleEndian.PutUint64(buf[32:40], c.ctr)
		binary.LittleEndian.PutUint64(buf[40:48], timingJitter())
		c.ctr++

		chunk := Sum256(buf[:])
		n := copy(out, chunk[:])
		out = out[n:]

		stir := Sum256(append(c.state[:], chunk[:]...))
		c.state = stir
		for i := range buf {
			buf[i] = 0
		}
	}
}

// Uint32 returns one pseudo-random 32-bit value.
func (c *CSPRNG) Uint32() uint32 {
	var b [4]byte
	c.Bytes(b[:])
	return binary.BigEndian.Uint32(b[:])
}

// Uint16 returns one pseudo-random 16-bit value.
func (c *CSPRNG) Uint16() uint16 {
	var b [2]byte
	c.Bytes(b[:])
	return binary.BigEndian.Uint16(b[:])
}
