package crypto

import "encoding/binary"

// HKDFExtract implements RFC 5869 §2.2: PRK = HMAC-Hash(salt, IKM).
func HKDFExtract(salt, ikm []byte) [SHA256Size]byte {
	return HMACSHA256(salt, ikm)
}

// HKDFExpand implements RFC 5869 §2.3, producing outLen bytes of keying
// material from prk and info.
func HKDFExpand(prk []byte, info []byte, outLen int) []byte {
	out := make([]byte, 0, outLen+SHA256Size)
	var t []byte
	var counter byte = 1
	for len(out) < outLen {
		buf := make([]byte, 0, len(t)+len(info)+1)
		buf = append(buf, t...)
		buf = append(buf, info...)
		buf = append(buf, counter)
		sum := HMACSHA256(prk, buf)
		t = sum[:]
		out = append(out, t...)
		counter++
	}
	return out[:outLen]
}

// tls13Label is the fixed prefix RFC 8446 §7.1 requires for every
// HKDF-Expand-Label invocation in the TLS 1.3 key schedule.
const tls13Label = "tls13 "

// ExpandLabel builds the TLS 1.3 HkdfLabel structure and runs HKDF-Expand
// against it:
//
//	struct {
//	    uint16 length;
//	    opaque label<7..255> = "tls13 " + Label;
//	    opaque context<0..255> = Context;
//	} HkdfLabel;
func ExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	fullLabel := tls13Label + label
	hkdfLabel := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(length))
	hkdfLabel = append(hkdfLabel, lenBuf[:]...)
	hkdfLabel = append(hkdfLabel, byte(len(fullLabel)))
	hkdfLabel = append(hkdfLabel, fullLabel...)
	hkdfLabel = append(hkdfLabel, byte(len(context)))
	hkdfLabel = append(hkdfLabel, context...)
	return HKDFExpand(secret, hkdfLabel, length)
}

// DeriveSecret is Derive-Secret(Secret, Label, Messages) = HKDF-Expand-Label
// with a 32-byte output, specialized to produce the next secret in the
// TLS 1.3 key schedule.
func DeriveSecret(secret []byte, label string, transcriptHash [SHA256Size]byte) [SHA256Size]byte {
	out := ExpandLabel(secret, label, transcriptHash[:], SHA256Size)
	var res [SHA256Size]byte
	copy(res[:], out)
	return res
}
