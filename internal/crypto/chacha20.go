package crypto

import "encoding/binary"

// ChaCha20KeySize and ChaCha20NonceSize follow RFC 8439 §2.3: a 256-bit key
// and a 96-bit nonce (IETF variant, 32-bit counter).
const (
	ChaCha20KeySize   = 32
	ChaCha20NonceSize = 12
	chacha20BlockSize = 64
)

var chachaConstants = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574} // "expand 32-byte k"

// chacha20Block runs the 20-round (10 double-round) ChaCha20 core and
// returns one 64-byte keystream block for the given counter.
func chacha20Block(key [ChaCha20KeySize]byte, counter uint32, nonce [ChaCha20NonceSize]byte) [chacha20BlockSize]byte {
	var state [16]uint32
	copy(state[0:4], chachaConstants[:])
	for i := 0; i < 8; i++ {
		state[4+i] = binary.LittleEndian.Uint32(key[i*4:])
	}
	state[12] = counter
	for i := 0; i < 3; i++ {
		state[13+i] = binary.LittleEndian.Uint32(nonce[i*4:])
	}

	working := state
	for i := 0; i < 10; i++ {
		chachaQuarterRound(&working, 0, 4, 8, 12)
		chachaQuarterRound(&working, 1, 5, 9, 13)
		chachaQuarterRound(&working, 2, 6, 10, 14)
		chachaQuarterRound(&working, 3, 7, 11, 15)
		chachaQuarterRound(&working, 0, 5, 10, 15)
		chachaQuarterRound(&working, 1, 6, 11, 12)
		chachaQuarterRound(&working, 2, 7, 8, 13)
		chachaQuarterRound(&working, 3, 4, 9, 14)
	}

	var out [chacha20BlockSize]byte
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], working[i]+state[i])
	}
	for i := range working {
		working[i] = 0
	}
	return out
}

func chachaQuarterRound(s *[16]uint32, a, b, c, d int) {
	s[a] += s[b]
	s[d] ^= s[a]
	s[d] = rotl32(s[d], 16)

	s[c] += s[d]
	s[b] ^= s[c]
	s[b] = rotl32(s[b], 12)

	s[a] += s[b]
	s[d] ^= s[a]
	s[d] = rotl32(s[d], 8)

	s[c] += s[d]
	s[b] ^= s[c]
	s[b] = rotl32(s[b], 7)
}

func rotl32(x uint32, n uint) uint32 { return (x << n) | (x >> (32 - n)) }

// ChaCha20XOR encrypts (or decrypts) src into dst using ChaCha20 starting at
// the given initial counter. dst and src may be the same slice.
func ChaCha20XOR(key [ChaCha20KeySize]byte, nonce [ChaCha20NonceSize]byte, counter uint32, dst, src []byte) {
	for off := 0; off < len(src); off += chacha20BlockSize {
		block := chacha20Block(key, counter, nonce)
		end := off + chacha20BlockSize
		if end > len(src) {
			end = len(src)
		}
		n := end - off
		for i := 0; i < n; i++ {
			dst[off+i] = src[off+i] ^ block[i]
		}
		counter++
		for i := range block {
			block[i] = 0
		}
	}
}
