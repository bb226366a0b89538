package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrypto_RunSelfTests_AllVectorsPass(t *testing.T) {
	ok, failed := RunSelfTests()
	require.True(t, ok, "self-test category %s failed", failed)
	for cat := SelfTestSHA256; cat <= SelfTestChaCha20Poly1305; cat++ {
		require.True(t, selfTestPassed[cat], "category %s not marked passed", cat)
	}
}

func TestCrypto_SHA256_EmptyInput(t *testing.T) {
	t.Parallel()
	got := Sum256(nil)
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hexString(got[:]))
}

func TestCrypto_SHA256_IncrementalMatchesOneShot(t *testing.T) {
	t.Parallel()
	msg := bytes.Repeat([]byte("abc"), 100)
	oneShot := Sum256(msg)

	h := NewSHA256()
	h.Update(msg[:50])
	h.Update(msg[50:123])
	h.Update(msg[123:])
	incremental := h.Final()

	require.Equal(t, oneShot, incremental)
}

func TestCrypto_HMACSHA256_LongKeyIsHashedDown(t *testing.T) {
	t.Parallel()
	longKey := bytes.Repeat([]byte{0x42}, 200)
	hashedKey := Sum256(longKey)
	require.Equal(t, HMACSHA256(longKey, []byte("msg")), HMACSHA256(hashedKey[:], []byte("msg")))
}

func hexString(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xf]
	}
	return string(out)
}
