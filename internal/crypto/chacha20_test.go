package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrypto_ChaCha20XOR_IsInvolutive(t *testing.T) {
	t.Parallel()
	var key [ChaCha20KeySize]byte
	var nonce [ChaCha20NonceSize]byte
	for i := range key {
		key[i] = byte(i)
	}
	for i := range nonce {
		nonce[i] = byte(i + 1)
	}

	plaintext := make([]byte, 137) // spans more than two 64-byte blocks
	for i := range plaintext {
		plaintext[i] = byte(i * 7)
	}

	ct := make([]byte, len(plaintext))
	ChaCha20XOR(key, nonce, 0, ct, plaintext)
	require.NotEqual(t, plaintext, ct)

	pt2 := make([]byte, len(ct))
	ChaCha20XOR(key, nonce, 0, pt2, ct)
	require.Equal(t, plaintext, pt2)
}

func TestCrypto_ChaCha20Poly1305_RoundTrip(t *testing.T) {
	t.Parallel()
	var key [ChaCha20KeySize]byte
	var nonce [ChaCha20NonceSize]byte
	for i := range key {
		key[i] = byte(i + 10)
	}
	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	aad := []byte("header")

	sealed := ChaCha20Poly1305Seal(key, nonce, plaintext, aad)
	require.Len(t, sealed, len(plaintext)+Poly1305TagSize)

	opened, ok := ChaCha20Poly1305Open(key, nonce, sealed, aad)
	require.True(t, ok)
	require.Equal(t, plaintext, opened)
}

func TestCrypto_ChaCha20Poly1305_RejectsTamperedTag(t *testing.T) {
	t.Parallel()
	var key [ChaCha20KeySize]byte
	var nonce [ChaCha20NonceSize]byte
	sealed := ChaCha20Poly1305Seal(key, nonce, []byte("payload"), nil)
	sealed[len(sealed)-1] ^= 0xFF

	_, ok := ChaCha20Poly1305Open(key, nonce, sealed, nil)
	require.False(t, ok)
}

func TestCrypto_ChaCha20Poly1305_RejectsWrongAAD(t *testing.T) {
	t.Parallel()
	var key [ChaCha20KeySize]byte
	var nonce [ChaCha20NonceSize]byte
	sealed := ChaCha20Poly1305Seal(key, nonce, []byte("payload"), []byte("a"))
	_, ok := ChaCha20Poly1305Open(key, nonce, sealed, []byte("b"))
	require.False(t, ok)
}
