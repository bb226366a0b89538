package crypto

// AESGCMNonceSize is the standard 96-bit GCM nonce length (SP 800-38D,
// and the only size TLS 1.3 ever uses).
const AESGCMNonceSize = 12

// aesCTRKeystream runs AES in counter mode starting at the 16-byte counter
// block icb, incrementing only the low 32 bits per SP 800-38D's inc32,
// and XORs it against src into dst (dst/src may alias).
func aesCTRKeystream(a *AES128, icb [16]byte, dst, src []byte) {
	counter := icb
	for off := 0; off < len(src); off += 16 {
		ks := a.EncryptBlock(counter)
		end := off + 16
		if end > len(src) {
			end = len(src)
		}
		for i := off; i < end; i++ {
			dst[i] = src[i] ^ ks[i-off]
		}
		inc32(&counter)
	}
}

func inc32(b *[16]byte) {
	for i := 15; i >= 12; i-- {
		b[i]++
		if b[i] != 0 {
			break
		}
	}
}

// AESGCMSeal encrypts plaintext with AES-128-GCM and returns
// ciphertext||tag, per SP 800-38D.
func AESGCMSeal(key [AES128KeySize]byte, nonce [AESGCMNonceSize]byte, plaintext, aad []byte) []byte {
	a := NewAES128(key)
	defer a.Wipe()

	var zero [16]byte
	h := a.EncryptBlock(zero)

	var j0 [16]byte
	copy(j0[:12], nonce[:])
	j0[15] = 1

	ct := make([]byte, len(plaintext)+Poly1305TagSize)
	counter := j0
	inc32(&counter)
	aesCTRKeystream(a, counter, ct[:len(plaintext)], plaintext)

	ghashInput := make([]byte, 0, len(padTo16(aad))+len(padTo16(ct[:len(plaintext)]))+16)
	ghashInput = append(ghashInput, padTo16(aad)...)
	ghashInput = append(ghashInput, padTo16(ct[:len(plaintext)])...)
	lenBlock := GHASHLengthBlock(len(aad), len(plaintext))
	ghashInput = append(ghashInput, lenBlock[:]...)
	s := GHASH(h, ghashInput)

	tagMask := a.EncryptBlock(j0)
	var tag [16]byte
	for i := range tag {
		tag[i] = s[i] ^ tagMask[i]
	}
	copy(ct[len(plaintext):], tag[:])
	return ct
}

// AESGCMOpen verifies and decrypts ciphertext||tag, returning the
// plaintext. Tag comparison is constant time; on mismatch the plaintext
// buffer is not returned.
func AESGCMOpen(key [AES128KeySize]byte, nonce [AESGCMNonceSize]byte, ciphertextAndTag, aad []byte) ([]byte, bool) {
	if len(ciphertextAndTag) < Poly1305TagSize {
		return nil, false
	}
	ct := ciphertextAndTag[:len(ciphertextAndTag)-Poly1305TagSize]
	gotTag := ciphertextAndTag[len(ciphertextAndTag)-Poly1305TagSize:]

	a := NewAES128(key)
	defer a.Wipe()

	var zero [16]byte
	h := a.EncryptBlock(zero)

	var j0 [16]byte
	copy(j0[:12], nonce[:])
	j0[15] = 1

	ghashInput := make([]byte, 0, len(padTo16(aad))+len(padTo16(ct))+16)
	ghashInput = append(ghashInput, padTo16(aad)...)
	ghashInput = append(ghashInput, padTo16(ct)...)
	lenBlock := GHASHLengthBlock(len(aad), len(ct))
	ghashInput = append(ghashInput, lenBlock[:]...)
	s := GHASH(h, ghashInput)

	tagMask := a.EncryptBlock(j0)
	var wantTag [16]byte
	for i := range wantTag {
		wantTag[i] = s[i] ^ tagMask[i]
	}

	if !ConstantTimeCompare(wantTag[:], gotTag) {
		return nil, false
	}

	pt := make([]byte, len(ct))
	counter := j0
	inc32(&counter)
	aesCTRKeystream(a, counter, pt, ct)
	return pt, true
}
