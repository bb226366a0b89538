package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrypto_HKDF_RFC5869TestCase1(t *testing.T) {
	t.Parallel()
	ikm := mustHex("0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b")
	salt := mustHex("000102030405060708090a0b0c")
	info := mustHex("f0f1f2f3f4f5f6f7f8f9")

	prk := HKDFExtract(salt, ikm)
	require.Equal(t, "077709362c2e32df0ddc3f0dc47bba6390b6c73bb50f9c3122ec844ad7c2b3e5", hexString(prk[:]))

	okm := HKDFExpand(prk[:], info, 42)
	require.Equal(t, "3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865", hexString(okm))
}

func TestCrypto_ExpandLabel_BuildsHkdfLabelStructure(t *testing.T) {
	t.Parallel()
	secret := make([]byte, SHA256Size)
	for i := range secret {
		secret[i] = byte(i)
	}
	var ctx [SHA256Size]byte
	out1 := ExpandLabel(secret, "key", ctx[:], 16)
	out2 := ExpandLabel(secret, "iv", ctx[:], 12)
	require.Len(t, out1, 16)
	require.Len(t, out2, 12)
	require.NotEqual(t, out1[:12], out2)
}

func TestCrypto_DeriveSecret_DifferentLabelsDiverge(t *testing.T) {
	t.Parallel()
	secret := make([]byte, SHA256Size)
	h := Sum256([]byte("transcript"))
	a := DeriveSecret(secret, "c hs traffic", h)
	b := DeriveSecret(secret, "s hs traffic", h)
	require.NotEqual(t, a, b)
}
