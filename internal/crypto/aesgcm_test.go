package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrypto_AES128_EncryptsFIPS197Vector(t *testing.T) {
	t.Parallel()
	// FIPS 197 Appendix B.
	key := [AES128KeySize]byte{0x2b, 0x7e, 0x15, 0x16, 0x28, 0xae, 0xd2, 0xa6, 0xab, 0xf7, 0x15, 0x88, 0x09, 0xcf, 0x4f, 0x3c}
	pt := [16]byte{0x32, 0x43, 0xf6, 0xa8, 0x88, 0x5a, 0x30, 0x8d, 0x31, 0x31, 0x98, 0xa2, 0xe0, 0x37, 0x07, 0x34}
	want := [16]byte{0x39, 0x25, 0x84, 0x1d, 0x02, 0xdc, 0x09, 0xfb, 0xdc, 0x11, 0x85, 0x97, 0x19, 0x6a, 0x0b, 0x32}

	a := NewAES128(key)
	got := a.EncryptBlock(pt)
	require.Equal(t, want, got)
}

func TestCrypto_AESGCM_SealZeroVector(t *testing.T) {
	t.Parallel()
	var key [AES128KeySize]byte
	var nonce [AESGCMNonceSize]byte
	pt := make([]byte, 16)

	ct := AESGCMSeal(key, nonce, pt, nil)
	require.Equal(t, "0388dace60b6a392f328c2b971b2fe78", hexString(ct[:16]))
	require.Equal(t, "ab6e47d42cec13bdf53a67b21257bddf", hexString(ct[16:]))
}

func TestCrypto_AESGCM_RoundTripWithAAD(t *testing.T) {
	t.Parallel()
	var key [AES128KeySize]byte
	var nonce [AESGCMNonceSize]byte
	for i := range key {
		key[i] = byte(i + 3)
	}
	for i := range nonce {
		nonce[i] = byte(i + 9)
	}
	pt := []byte("TLS 1.3 application data record")
	aad := []byte{0x17, 0x03, 0x03, 0x00, 0x29}

	sealed := AESGCMSeal(key, nonce, pt, aad)
	opened, ok := AESGCMOpen(key, nonce, sealed, aad)
	require.True(t, ok)
	require.Equal(t, pt, opened)
}

func TestCrypto_AESGCM_RejectsTamperedCiphertext(t *testing.T) {
	t.Parallel()
	var key [AES128KeySize]byte
	var nonce [AESGCMNonceSize]byte
	sealed := AESGCMSeal(key, nonce, []byte("hello world12345"), nil)
	sealed[0] ^= 1

	_, ok := AESGCMOpen(key, nonce, sealed, nil)
	require.False(t, ok)
}

func TestCrypto_ConstantTimeCompare(t *testing.T) {
	t.Parallel()
	require.True(t, ConstantTimeCompare([]byte("abc"), []byte("abc")))
	require.False(t, ConstantTimeCompare([]byte("abc"), []byte("abd")))
	require.False(t, ConstantTimeCompare([]byte("abc"), []byte("ab")))
}
