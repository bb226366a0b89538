// Package crypto implements, from first principles, the primitives needed
// by the TLS 1.3 client: SHA-256, HMAC-SHA-256, HKDF, ChaCha20, Poly1305,
// AES-128, GHASH, X25519, and a CSPRNG. Nothing here delegates to the
// standard library's crypto/* packages or to golang.org/x/crypto: bit-exact,
// dependency-free reproduction of these algorithms is the whole point of
// this package.
package crypto

import "encoding/binary"

// SHA256Size is the digest length in bytes.
const SHA256Size = 32

var sha256K = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5, 0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3, 0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc, 0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7, 0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13, 0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3, 0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5, 0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208, 0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

var sha256Init = [8]uint32{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
	0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

// sha256Empty is the memoized digest of the empty string, used repeatedly
// by the TLS 1.3 key schedule (Derive-Secret(..., "derived", H(""))).
var sha256Empty = [SHA256Size]byte{
	0xe3, 0xb0, 0xc4, 0x42, 0x98, 0xfc, 0x1c, 0x14,
	0x9a, 0xfb, 0xf4, 0xc8, 0x99, 0x6f, 0xb9, 0x24,
	0x27, 0xae, 0x41, 0xe4, 0x64, 0x9b, 0x93, 0x4c,
	0xa4, 0x95, 0x99, 0x1b, 0x78, 0x52, 0xb8, 0x55,
}

// SHA256 is an incremental init/update/final SHA-256 hasher.
type SHA256 struct {
	h      [8]uint32
	buf    [64]byte
	buflen int
	length uint64 // total bytes processed, for the length suffix
}

// NewSHA256 returns a freshly initialized hasher.
func NewSHA256() *SHA256 {
	s := &SHA256{}
	s.Reset()
	return s
}

// Reset returns the hasher to its initial state.
func (s *SHA256) Reset() {
	s.h = sha256Init
	s.buflen = 0
	s.length = 0
}

// Update feeds additional bytes into the running hash.
func (s *SHA256) Update(p []byte) {
	s.length += uint64(len(p))
	if s.buflen > 0 {
		n := copy(s.buf[s.buflen:], p)
		s.buflen += n
		p = p[n:]
		if s.buflen == 64 {
			sha256Block(&s.h, s.buf[:])
			s.buflen = 0
		}
	}
	for len(p) >= 64 {
		sha256Block(&s.h, p[:64])
		p = p[64:]
	}
	if len(p) > 0 {
		s.buflen = copy(s.buf[:], p)
	}
}

// Final appends padding and the 64-bit bit-length and returns the digest.
// The hasher's internal state is wiped before return.
func (s *SHA256) Final() [SHA256Size]byte {
	bitLen := s.length * 8
	var pad [72]byte
	pad[0] = 0x80
	padLen := 56 - s.buflen%64
	if padLen <= 0 {
		padLen += 64
	}
	binary.BigEndian.PutUint64(pad[padLen:padLen+8], bitLen)
	s.Update(pad[:padLen+8])

	var out [SHA256Size]byte
	for i, v := range s.h {
		binary.BigEndian.PutUint32(out[i*4:], v)
	}
	s.wipe()
	return out
}

func (s *SHA256) wipe() {
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.h = [8]uint32{}
	s.buflen = 0
	s.length = 0
}

func sha256Block(h *[8]uint32, block []byte) {
	var w [64]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(block[i*4:])
	}
	for i := 16; i < 64; i++ {
		s0 := rotr32(w[i-15], 7) ^ rotr32(w[i-15], 18) ^ (w[i-15] >> 3)
		s1 := rotr32(w[i-2], 17) ^ rotr32(w[i-2], 19) ^ (w[i-2] >> 10)
		w[i] = w[i-16] + s0 + w[i-7] + s1
	}

	a, b, c, d, e, f, g, hh := h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7]
	for i := 0; i < 64; i++ {
		S1 := rotr32(e, 6) ^ rotr32(e, 11) ^ rotr32(e, 25)
		ch := (e & f) ^ (^e & g)
		t1 := hh + S1 + ch + sha256K[i] + w[i]
		S0 := rotr32(a, 2) ^ rotr32(a, 13) ^ rotr32(a, 22)
		maj := (a & b) ^ (a & c) ^ (b & c)
		t2 := S0 + maj

		hh, g, f, e = g, f, e, d+t1
		d, c, b, a = c, b, a, t1+t2
	}

	h[0] += a
	h[1] += b
	h[2] += c
	h[3] += d
	h[4] += e
	h[5] += f
	h[6] += g
	h[7] += hh
}

func rotr32(x uint32, n uint) uint32 { return (x >> n) | (x << (32 - n)) }

// Sum256 hashes p in one call.
func Sum256(p []byte) [SHA256Size]byte {
	if len(p) == 0 {
		return sha256Empty
	}
	h := NewSHA256()
	h.Update(p)
	return h.Final()
}
