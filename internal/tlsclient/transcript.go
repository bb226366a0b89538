package tlsclient

import "github.com/malbeclabs/networkd/internal/crypto"

// transcript is the running handshake-message hash (RFC 8446 §4.4.1):
// every handshake message, in wire order, feeds this hash; the TLS 1.3
// key schedule and Finished MACs consume snapshots of it.
type transcript struct {
	h crypto.SHA256
}

func newTranscript() *transcript {
	t := &transcript{}
	t.h.Reset()
	return t
}

func (t *transcript) add(msg []byte) {
	t.h.Update(msg)
}

// snapshot returns H(transcript-so-far) without mutating the running
// hash (SHA-256's incremental state has no peek, so we clone by taking a
// value copy; crypto.SHA256 holds only fixed-size arrays).
func (t *transcript) snapshot() [crypto.SHA256Size]byte {
	clone := t.h
	return clone.Final()
}

// synthesizeMessageHash replaces the transcript with a single
// "message_hash" pseudo-message wrapping H(ClientHello1), per RFC 8446
// §4.4.1's HelloRetryRequest handling: the original ClientHello1 is not
// retransmitted, only referenced by its hash.
func (t *transcript) synthesizeMessageHash(clientHello1 []byte) {
	var h crypto.SHA256
	h.Reset()
	h.Update(clientHello1)
	sum := h.Final()

	msg := make([]byte, 4+len(sum))
	msg[0] = byte(handshakeTypeMessageHash)
	msg[1] = byte(len(sum) >> 16)
	msg[2] = byte(len(sum) >> 8)
	msg[3] = byte(len(sum))
	copy(msg[4:], sum[:])

	t.h.Reset()
	t.h.Update(msg)
}
