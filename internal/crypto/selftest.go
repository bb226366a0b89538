package crypto

import (
	"bytes"
	"encoding/hex"
	"sync"
)

// SelfTestCategory identifies which known-answer test failed, matching the
// "self-test category" bit in the TLS handshake's internal alert encoding
// (spec §4.7, hs_alert).
type SelfTestCategory uint8

const (
	SelfTestSHA256 SelfTestCategory = iota
	SelfTestHKDF
	SelfTestX25519
	SelfTestAESGCM
	SelfTestChaCha20Poly1305
)

func (c SelfTestCategory) String() string {
	switch c {
	case SelfTestSHA256:
		return "sha256"
	case SelfTestHKDF:
		return "hkdf"
	case SelfTestX25519:
		return "x25519"
	case SelfTestAESGCM:
		return "aes128gcm"
	case SelfTestChaCha20Poly1305:
		return "chacha20poly1305"
	}
	return "unknown"
}

var (
	selfTestOnce   sync.Once
	selfTestPassed [5]bool // indexed by SelfTestCategory; cached across handshakes
	selfTestFailed SelfTestCategory
	selfTestOK     bool
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// RunSelfTests executes the KATs from spec §4.1/§8.1 once per process and
// caches the outcome. It returns (true, 0) on success, or (false, category)
// naming the first vector that failed.
func RunSelfTests() (bool, SelfTestCategory) {
	selfTestOnce.Do(func() {
		selfTestOK = true

		// SHA-256(""): e3b0c442...
		if got := Sum256(nil); hex.EncodeToString(got[:]) != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
			selfTestOK = false
			selfTestFailed = SelfTestSHA256
			return
		}
		selfTestPassed[SelfTestSHA256] = true

		// HKDF RFC 5869 test case 1.
		ikm := mustHex("0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b")
		salt := mustHex("000102030405060708090a0b0c")
		info := mustHex("f0f1f2f3f4f5f6f7f8f9")
		wantPRK := mustHex("077709362c2e32df0ddc3f0dc47bba6390b6c73bb50f9c3122ec844ad7c2b3e5")
		prk := HKDFExtract(salt, ikm)
		if !bytes.Equal(prk[:], wantPRK[:32]) {
			selfTestOK = false
			selfTestFailed = SelfTestHKDF
			return
		}
		okm := HKDFExpand(prk[:], info, 42)
		wantOKM := mustHex("3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865")
		if !bytes.Equal(okm, wantOKM[:42]) {
			selfTestOK = false
			selfTestFailed = SelfTestHKDF
			return
		}
		selfTestPassed[SelfTestHKDF] = true

		// X25519 RFC 7748 §5.2 Alice/Bob vectors.
		alicePriv := [32]byte{}
		copy(alicePriv[:], mustHex("77076d0a7318a57d3c16c17251b26645df4c2f87ebc0992ab177fba51db92c2a"))
		wantAlicePub := mustHex("8520f0098930a754748b7ddcb43ef75a0dbf3a0d26381af4eba4a98eaa9b4e6a")
		alicePub := X25519PublicKey(alicePriv)
		if !bytes.Equal(alicePub[:], wantAlicePub) {
			selfTestOK = false
			selfTestFailed = SelfTestX25519
			return
		}
		bobPriv := [32]byte{}
		copy(bobPriv[:], mustHex("5dab087e624a8a4b79e17f8b83800ee66f3bb1292618b6fd1c2f8b27ff88e0eb"))
		wantBobPub := mustHex("de9edb7d7b7dc1b4d35b61c2ece435373f8343c85b78674dadfc7e146f882b4f")
		bobPub := X25519PublicKey(bobPriv)
		if !bytes.Equal(bobPub[:], wantBobPub) {
			selfTestOK = false
			selfTestFailed = SelfTestX25519
			return
		}
		wantShared := mustHex("4a5d9d5ba4ce2de1728e3bf480350f25e07e21c947d19e3376f09b3c1e161742")
		shared1 := X25519(alicePriv, bobPub)
		shared2 := X25519(bobPriv, alicePub)
		if !bytes.Equal(shared1[:], wantShared) || !bytes.Equal(shared2[:], wantShared) {
			selfTestOK = false
			selfTestFailed = SelfTestX25519
			return
		}
		selfTestPassed[SelfTestX25519] = true

		// AES-128-GCM: zero key/nonce/plaintext vector.
		var zeroKey [16]byte
		var zeroNonce [12]byte
		pt16 := make([]byte, 16)
		ct := AESGCMSeal(zeroKey, zeroNonce, pt16, nil)
		wantCT := mustHex("0388dace60b6a392f328c2b971b2fe78")
		wantTag := mustHex("ab6e47d42cec13bdf53a67b21257bddf")
		if !bytes.Equal(ct[:16], wantCT) || !bytes.Equal(ct[16:], wantTag) {
			selfTestOK = false
			selfTestFailed = SelfTestAESGCM
			return
		}
		if pt2, ok := AESGCMOpen(zeroKey, zeroNonce, ct, nil); !ok || !bytes.Equal(pt2, pt16) {
			selfTestOK = false
			selfTestFailed = SelfTestAESGCM
			return
		}
		selfTestPassed[SelfTestAESGCM] = true

		// ChaCha20-Poly1305 round trip, zero key/nonce, plaintext 0..31.
		var zeroKey32 [32]byte
		var zeroNonce12 [12]byte
		pt32 := make([]byte, 32)
		for i := range pt32 {
			pt32[i] = byte(i)
		}
		sealed := ChaCha20Poly1305Seal(zeroKey32, zeroNonce12, pt32, nil)
		opened, ok := ChaCha20Poly1305Open(zeroKey32, zeroNonce12, sealed, nil)
		if !ok || !bytes.Equal(opened, pt32) {
			selfTestOK = false
			selfTestFailed = SelfTestChaCha20Poly1305
			return
		}
		selfTestPassed[SelfTestChaCha20Poly1305] = true
	})
	return selfTestOK, selfTestFailed
}
