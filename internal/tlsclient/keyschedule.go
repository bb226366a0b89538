package tlsclient

import "github.com/malbeclabs/networkd/internal/crypto"

// keySchedule carries the full RFC 8446 §7.1 chain of secrets this client
// derives during one handshake, exactly as laid out in spec §4.7 step 5.
type keySchedule struct {
	early    [crypto.SHA256Size]byte
	derived1 [crypto.SHA256Size]byte
	hs       [crypto.SHA256Size]byte
	cHsTS    [crypto.SHA256Size]byte
	sHsTS    [crypto.SHA256Size]byte
	derived2 [crypto.SHA256Size]byte
	master   [crypto.SHA256Size]byte
}

var zero32 [32]byte

// deriveHandshakeSecrets runs the schedule up through c_hs_ts/s_hs_ts,
// given the ECDHE shared secret and H(ClientHello || ServerHello).
func deriveHandshakeSecrets(shared [32]byte, chSHHash [crypto.SHA256Size]byte) keySchedule {
	var ks keySchedule
	emptyHash := crypto.Sum256(nil)

	ks.early = crypto.HKDFExtract(zero32[:], zero32[:])
	ks.derived1 = crypto.DeriveSecret(ks.early[:], "derived", emptyHash)
	ks.hs = crypto.HKDFExtract(ks.derived1[:], shared[:])
	ks.cHsTS = crypto.DeriveSecret(ks.hs[:], "c hs traffic", chSHHash)
	ks.sHsTS = crypto.DeriveSecret(ks.hs[:], "s hs traffic", chSHHash)
	ks.derived2 = crypto.DeriveSecret(ks.hs[:], "derived", emptyHash)
	ks.master = crypto.HKDFExtract(ks.derived2[:], zero32[:])
	return ks
}

// applicationSecrets derives c_ap_ts/s_ap_ts (spec §4.7 step 8) from
// master and H(transcript-up-to-server-Finished).
func applicationSecrets(master []byte, upToServerFinishedHash [crypto.SHA256Size]byte) (cApTS, sApTS [crypto.SHA256Size]byte) {
	cApTS = crypto.DeriveSecret(master, "c ap traffic", upToServerFinishedHash)
	sApTS = crypto.DeriveSecret(master, "s ap traffic", upToServerFinishedHash)
	return
}

// finishedKey derives Expand-Label(trafficSecret, "finished", "", 32).
func finishedKey(trafficSecret []byte) []byte {
	return crypto.ExpandLabel(trafficSecret, "finished", nil, crypto.SHA256Size)
}

// finishedVerifyData computes HMAC(finished_key, H(transcript)).
func finishedVerifyData(trafficSecret []byte, transcriptHash [crypto.SHA256Size]byte) [crypto.SHA256Size]byte {
	fk := finishedKey(trafficSecret)
	return crypto.HMACSHA256(fk, transcriptHash[:])
}

func aeadFor(cipherSuite uint16) crypto.AEAD {
	if cipherSuite == cipherTLSChaCha20Poly1305SHA256 {
		return crypto.ChaCha20Poly1305()
	}
	return crypto.AES128GCM()
}
