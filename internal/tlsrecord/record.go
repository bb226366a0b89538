// Package tlsrecord implements the TLS 1.3 AEAD record layer (spec §4.2):
// sealing and opening application-data-shaped records (inner plaintext ||
// inner content type, sealed under a per-direction traffic key with a
// monotonic sequence number folded into the nonce).
package tlsrecord

import (
	"encoding/binary"
	"errors"

	"github.com/malbeclabs/networkd/internal/crypto"
)

// ContentType is the TLS record's inner (post-decryption) content type,
// RFC 8446 §5.1.
type ContentType uint8

const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
)

// OuterHeaderSize is the 5-byte TLS record header: type, legacy version,
// length.
const OuterHeaderSize = 5

// OuterHeader builds the 5-byte record header used both on the wire and as
// AEAD associated data: type=23 (application_data, per RFC 8446 §5.2, even
// for records carrying handshake/alert content once protection begins),
// legacy_record_version=0x0303, length = ciphertext length (plaintext +
// inner type byte + tag).
func OuterHeader(payloadLen int) [OuterHeaderSize]byte {
	var h [OuterHeaderSize]byte
	h[0] = byte(ContentTypeApplicationData)
	binary.BigEndian.PutUint16(h[1:3], 0x0303)
	binary.BigEndian.PutUint16(h[3:5], uint16(payloadLen))
	return h
}

// Direction holds one direction's (read or write) traffic secret-derived
// key material and sequence counter.
type Direction struct {
	aead crypto.AEAD
	key  []byte
	iv   []byte
	seq  uint64
}

// NewDirection derives key and iv from the traffic secret via
// HKDF-Expand-Label, per spec §4.7 step 6.
func NewDirection(a crypto.AEAD, trafficSecret []byte) *Direction {
	key := crypto.ExpandLabel(trafficSecret, "key", nil, a.KeySize())
	iv := crypto.ExpandLabel(trafficSecret, "iv", nil, a.NonceSize())
	return &Direction{aead: a, key: key, iv: iv}
}

// nonce computes iv XOR seq, with seq placed in the low 8 bytes big-endian
// (RFC 8446 §5.3).
func (d *Direction) nonce() []byte {
	n := make([]byte, len(d.iv))
	copy(n, d.iv)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], d.seq)
	off := len(n) - 8
	for i := 0; i < 8; i++ {
		n[off+i] ^= seqBytes[i]
	}
	return n
}

// ErrSeqOverflow guards the monotonic-sequence invariant (spec §4.2): a
// direction must never wrap its 64-bit counter within one connection's
// lifetime, so a wrap is treated as fatal rather than silently rolling
// over and reusing a nonce.
var ErrSeqOverflow = errors.New("tlsrecord: sequence counter exhausted")

// Seal encrypts innerPlaintext (the actual content, not yet carrying the
// trailing type byte) with the given inner content type as one record, and
// advances the sequence counter.
func (d *Direction) Seal(innerType ContentType, innerPlaintext []byte) ([]byte, error) {
	if d.seq == ^uint64(0) {
		return nil, ErrSeqOverflow
	}
	plain := make([]byte, len(innerPlaintext)+1)
	copy(plain, innerPlaintext)
	plain[len(innerPlaintext)] = byte(innerType)

	aad := OuterHeader(len(plain) + crypto.Poly1305TagSize)
	ct := d.aead.Seal(d.key, d.nonce(), plain, aad[:])
	d.seq++

	out := make([]byte, 0, OuterHeaderSize+len(ct))
	out = append(out, aad[:]...)
	out = append(out, ct...)
	return out, nil
}

// ErrDecrypt is returned when a record fails authentication; per spec
// §4.2/§4.7 this is always fatal to the connection.
var ErrDecrypt = errors.New("tlsrecord: decryption failed")

// Open decrypts one record given its outer header (exactly as received, used
// as AAD) and ciphertext body, stripping trailing zero padding and the
// inner type byte. It advances the sequence counter only on success,
// matching the invariant that seq never regresses and a failed decrypt
// aborts the connection rather than silently retrying.
func (d *Direction) Open(outerHeader [OuterHeaderSize]byte, ciphertext []byte) (ContentType, []byte, error) {
	if d.seq == ^uint64(0) {
		return 0, nil, ErrSeqOverflow
	}
	plain, ok := d.aead.Open(d.key, d.nonce(), ciphertext, outerHeader[:])
	if !ok {
		return 0, nil, ErrDecrypt
	}

	i := len(plain) - 1
	for i >= 0 && plain[i] == 0 {
		i--
	}
	if i < 0 {
		return 0, nil, ErrDecrypt
	}
	d.seq++
	return ContentType(plain[i]), plain[:i], nil
}

// Wipe zeroes key material.
func (d *Direction) Wipe() {
	for i := range d.key {
		d.key[i] = 0
	}
	for i := range d.iv {
		d.iv[i] = 0
	}
}
