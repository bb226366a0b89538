package tlsclient

import (
	"encoding/binary"
	"errors"
)

// handshakeType identifies the outer handshake message type (RFC 8446
// §4).
type handshakeType uint8

const (
	handshakeTypeClientHello         handshakeType = 1
	handshakeTypeServerHello         handshakeType = 2
	handshakeTypeEncryptedExtensions handshakeType = 8
	handshakeTypeCertificate         handshakeType = 11
	handshakeTypeCertificateVerify   handshakeType = 15
	handshakeTypeFinished            handshakeType = 20
	handshakeTypeMessageHash         handshakeType = 254
)

// Cipher suite and extension/group codepoints in scope per spec §4.7.
const (
	cipherTLSAES128GCMSHA256       uint16 = 0x1301
	cipherTLSChaCha20Poly1305SHA256 uint16 = 0x1303

	extSupportedVersions   uint16 = 43
	extSupportedGroups     uint16 = 10
	extSignatureAlgorithms uint16 = 13
	extKeyShare            uint16 = 51
	extCookie              uint16 = 44

	groupX25519    uint16 = 0x001D
	groupSecp256r1 uint16 = 0x0017

	tlsVersion13       uint16 = 0x0304
	legacyRecordVersion uint16 = 0x0303
)

// helloRetryRequestRandom is the fixed SHA-256("HelloRetryRequest")
// sentinel RFC 8446 §4.1.3 requires a ServerHello to echo in its random
// field to signal "this is actually a HelloRetryRequest".
var helloRetryRequestRandom = [32]byte{
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11,
	0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E,
	0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

var errMalformed = errors.New("tlsclient: malformed handshake message")

// errUnsupportedGroup is returned when the server's selected group is not
// x25519 (spec §4.7 step 4: secp256r1 is advertised but unsupported).
var errUnsupportedGroup = errors.New("tlsclient: server selected unsupported group")

// buf24 is a tiny growable byte-builder with 8/16-bit length-prefixed
// sections, used throughout message construction below.
type buf24 struct{ b []byte }

func (b *buf24) u8(v byte)     { b.b = append(b.b, v) }
func (b *buf24) u16(v uint16)  { var t [2]byte; binary.BigEndian.PutUint16(t[:], v); b.b = append(b.b, t[:]...) }
func (b *buf24) raw(v []byte)  { b.b = append(b.b, v...) }

// u16Section appends fn's output prefixed by its own 2-byte length.
func (b *buf24) u16Section(fn func(*buf24)) {
	var inner buf24
	fn(&inner)
	b.u16(uint16(len(inner.b)))
	b.raw(inner.b)
}

// u8Section appends fn's output prefixed by its own 1-byte length.
func (b *buf24) u8Section(fn func(*buf24)) {
	var inner buf24
	fn(&inner)
	b.u8(byte(len(inner.b)))
	b.raw(inner.b)
}

// clientHelloParams collects everything needed to (re)build a ClientHello,
// including the optional HRR-driven cookie echo on the second attempt.
type clientHelloParams struct {
	random     [32]byte
	sessionID  []byte
	clientPub  [32]byte
	cookie     []byte
}

func buildClientHello(p clientHelloParams) []byte {
	var body buf24
	body.u16(legacyRecordVersion)
	body.raw(p.random[:])
	body.u8Section(func(b *buf24) { b.raw(p.sessionID) })
	body.u16Section(func(b *buf24) {
		b.u16(cipherTLSAES128GCMSHA256)
		b.u16(cipherTLSChaCha20Poly1305SHA256)
	})
	body.u8Section(func(b *buf24) { b.u8(0) }) // compression: null only

	body.u16Section(func(ext *buf24) {
		// supported_versions
		writeExt(ext, extSupportedVersions, func(b *buf24) {
			b.u8Section(func(b *buf24) { b.u16(tlsVersion13) })
		})
		// supported_groups
		writeExt(ext, extSupportedGroups, func(b *buf24) {
			b.u16Section(func(b *buf24) {
				b.u16(groupX25519)
				b.u16(groupSecp256r1)
			})
		})
		// signature_algorithms (offered only; server signature unchecked)
		writeExt(ext, extSignatureAlgorithms, func(b *buf24) {
			b.u16Section(func(b *buf24) {
				b.u16(0x0804) // rsa_pss_rsae_sha256
				b.u16(0x0403) // ecdsa_secp256r1_sha256
				b.u16(0x0807) // ed25519
			})
		})
		// key_share: x25519 only
		writeExt(ext, extKeyShare, func(b *buf24) {
			b.u16Section(func(b *buf24) {
				b.u16(groupX25519)
				b.u16Section(func(b *buf24) { b.raw(p.clientPub[:]) })
			})
		})
		if len(p.cookie) > 0 {
			writeExt(ext, extCookie, func(b *buf24) {
				b.u16Section(func(b *buf24) { b.raw(p.cookie) })
			})
		}
	})

	return wrapHandshake(handshakeTypeClientHello, body.b)
}

func writeExt(b *buf24, typ uint16, fn func(*buf24)) {
	b.u16(typ)
	b.u16Section(fn)
}

// wrapHandshake prepends the 1-byte type + 3-byte length handshake header.
func wrapHandshake(typ handshakeType, body []byte) []byte {
	out := make([]byte, 4+len(body))
	out[0] = byte(typ)
	out[1] = byte(len(body) >> 16)
	out[2] = byte(len(body) >> 8)
	out[3] = byte(len(body))
	copy(out[4:], body)
	return out
}

// parseHandshakeHeader reads the 4-byte type+length header, returning the
// declared body length and whether b is long enough to even hold it.
func parseHandshakeHeader(b []byte) (typ handshakeType, bodyLen int, ok bool) {
	if len(b) < 4 {
		return 0, 0, false
	}
	typ = handshakeType(b[0])
	bodyLen = int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	return typ, bodyLen, true
}

// serverHello is the subset of ServerHello/HelloRetryRequest fields the
// client acts on.
type serverHello struct {
	isHRR       bool
	cipherSuite uint16
	keyShare    [32]byte
	hasKeyShare bool
	cookie      []byte
}

// parseServerHello parses a ServerHello body (post 4-byte handshake
// header, i.e. body only).
func parseServerHello(body []byte) (serverHello, error) {
	var sh serverHello
	if len(body) < 2+32+1 {
		return sh, errMalformed
	}
	off := 2 // legacy_version, unchecked (supported_versions extension is authoritative)
	var random [32]byte
	copy(random[:], body[off:off+32])
	off += 32
	sh.isHRR = random == helloRetryRequestRandom

	sessionIDLen := int(body[off])
	off++
	if len(body) < off+sessionIDLen+2+1 {
		return sh, errMalformed
	}
	off += sessionIDLen

	sh.cipherSuite = binary.BigEndian.Uint16(body[off : off+2])
	off += 2
	off++ // compression_method

	if len(body) < off+2 {
		return sh, errMalformed
	}
	extTotalLen := int(binary.BigEndian.Uint16(body[off : off+2]))
	off += 2
	if len(body) < off+extTotalLen {
		return sh, errMalformed
	}
	exts := body[off : off+extTotalLen]

	for len(exts) >= 4 {
		extType := binary.BigEndian.Uint16(exts[0:2])
		extLen := int(binary.BigEndian.Uint16(exts[2:4]))
		if len(exts) < 4+extLen {
			return sh, errMalformed
		}
		extBody := exts[4 : 4+extLen]
		switch extType {
		case extSupportedVersions:
			if len(extBody) != 2 || binary.BigEndian.Uint16(extBody) != tlsVersion13 {
				return sh, errMalformed
			}
		case extKeyShare:
			if sh.isHRR {
				if len(extBody) != 2 {
					return sh, errMalformed
				}
				if binary.BigEndian.Uint16(extBody) != groupX25519 {
					return sh, errUnsupportedGroup
				}
			} else {
				if len(extBody) < 4 {
					return sh, errMalformed
				}
				group := binary.BigEndian.Uint16(extBody[0:2])
				keyLen := int(binary.BigEndian.Uint16(extBody[2:4]))
				if group != groupX25519 {
					return sh, errUnsupportedGroup
				}
				if keyLen != 32 || len(extBody) < 4+keyLen {
					return sh, errMalformed
				}
				copy(sh.keyShare[:], extBody[4:4+keyLen])
				sh.hasKeyShare = true
			}
		case extCookie:
			if len(extBody) < 2 {
				return sh, errMalformed
			}
			cl := int(binary.BigEndian.Uint16(extBody[0:2]))
			if len(extBody) < 2+cl {
				return sh, errMalformed
			}
			sh.cookie = append([]byte(nil), extBody[2:2+cl]...)
		}
		exts = exts[4+extLen:]
	}
	return sh, nil
}
