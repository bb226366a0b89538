// Package tlsclient implements a TLS 1.3 client handshake (RFC 8446, spec
// §4.7): X25519-only key exchange, TLS_AES_128_GCM_SHA256 and
// TLS_CHACHA20_POLY1305_SHA256, one HelloRetryRequest round trip, and the
// record read/send paths layered on internal/tlsrecord. Server
// certificates are parsed only far enough to keep the transcript correct;
// the signature is never verified, the peer is trusted by construction.
package tlsclient

import (
	"bytes"
	"errors"
	"time"

	"github.com/malbeclabs/networkd/internal/crypto"
	"github.com/malbeclabs/networkd/internal/tcpconn"
	"github.com/malbeclabs/networkd/internal/tlsrecord"
)

// RandSource supplies the randomness used for the client's X25519 private
// key, ClientHello random, and legacy session id. crypto.CSPRNG satisfies
// this directly.
type RandSource interface {
	Bytes(out []byte)
}

// ErrClosed is returned by Recv once a close_notify alert has been
// received and all buffered application data has been drained.
var ErrClosed = errors.New("tlsclient: connection closed")

// Client is one TLS 1.3 client connection over an underlying TCP stream.
// Not safe for concurrent use.
type Client struct {
	conn *tcpconn.Conn

	rxBuf    []byte
	appRxBuf []byte

	step   Step
	status Status
	alert  Alert

	readLevel, writeLevel ProtectionLevel
	readDir, writeDir     *tlsrecord.Direction

	cipherSuite uint16
	ready       bool
	closed      bool
}

// NewClient wraps an established TCP connection for a TLS 1.3 handshake.
func NewClient(conn *tcpconn.Conn) *Client {
	return &Client{conn: conn}
}

// Step reports the last hs_step entered.
func (c *Client) Step() Step { return c.step }

// Status reports the handshake outcome.
func (c *Client) Status() Status { return c.status }

// Alert reports the last captured peer/internal alert.
func (c *Client) Alert() Alert { return c.alert }

// Ready reports whether the handshake completed and application data may
// flow.
func (c *Client) Ready() bool { return c.ready }

func genRandom32(rnd RandSource) [32]byte {
	var b [32]byte
	rnd.Bytes(b[:])
	return b
}

// Handshake drives the full client handshake described in spec §4.7,
// blocking (cooperatively, via drain/sleep) until ready, timeout, or
// failure.
func (c *Client) Handshake(rnd RandSource, timeout time.Duration, drain func(), now func() time.Time, sleep func(time.Duration)) error {
	if ok, cat := crypto.RunSelfTests(); !ok {
		c.status = StatusError
		c.alert = AlertSelfTestFailed
		return errSelfTestFailed(cat)
	}

	deadline := now().Add(timeout)

	c.step = StepBuildClientHello
	clientPriv := genRandom32(rnd)
	clientPub := crypto.X25519PublicKey(clientPriv)
	chRandom := genRandom32(rnd)
	sessionID := make([]byte, 32)
	rnd.Bytes(sessionID)

	ch1 := buildClientHello(clientHelloParams{random: chRandom, sessionID: sessionID, clientPub: clientPub})
	tr := newTranscript()
	tr.add(ch1)

	c.step = StepSendClientHello
	if err := c.sendPlaintext(tlsrecord.ContentTypeHandshake, ch1, timeout, drain, now, sleep); err != nil {
		return c.fail(StatusError, AlertIOError, err)
	}
	if err := c.sendPlaintext(tlsrecord.ContentTypeChangeCipherSpec, dummyChangeCipherSpec, timeout, drain, now, sleep); err != nil {
		return c.fail(StatusError, AlertIOError, err)
	}

	c.step = StepRecvServerHello
	sh, shMsg, err := c.readServerHelloMessage(deadline, drain, now, sleep)
	if err != nil {
		return c.fail(statusFor(err), alertFor(err), err)
	}

	hrrSuite := uint16(0)
	if sh.isHRR {
		hrrSuite = sh.cipherSuite
		tr.synthesizeMessageHash(ch1)
		tr.add(shMsg)

		ch2 := buildClientHello(clientHelloParams{random: chRandom, sessionID: sessionID, clientPub: clientPub, cookie: sh.cookie})
		tr.add(ch2)
		if err := c.sendPlaintext(tlsrecord.ContentTypeHandshake, ch2, timeout, drain, now, sleep); err != nil {
			return c.fail(StatusError, AlertIOError, err)
		}

		sh, shMsg, err = c.readServerHelloMessage(deadline, drain, now, sleep)
		if err != nil {
			return c.fail(statusFor(err), alertFor(err), err)
		}
		if sh.isHRR {
			return c.fail(StatusError, AlertHRRViolation, errors.New("tlsclient: second HelloRetryRequest rejected"))
		}
		tr.add(shMsg)
	} else {
		tr.add(shMsg)
	}

	c.step = StepParseServerHello
	if sh.cipherSuite != cipherTLSAES128GCMSHA256 && sh.cipherSuite != cipherTLSChaCha20Poly1305SHA256 {
		return c.fail(StatusUnsupported, AlertMalformed, errors.New("tlsclient: unsupported cipher suite"))
	}
	if hrrSuite != 0 && sh.cipherSuite != hrrSuite {
		return c.fail(StatusError, AlertHRRViolation, errors.New("tlsclient: cipher suite changed after HelloRetryRequest"))
	}
	if !sh.hasKeyShare {
		return c.fail(StatusUnsupported, AlertMalformed, errors.New("tlsclient: ServerHello missing key_share"))
	}
	c.cipherSuite = sh.cipherSuite
	aead := aeadFor(c.cipherSuite)

	shared := crypto.X25519(clientPriv, sh.keyShare)
	chshHash := tr.snapshot()
	ks := deriveHandshakeSecrets(shared, chshHash)

	c.readDir = tlsrecord.NewDirection(aead, ks.sHsTS[:])
	c.readLevel = ProtectionHandshake
	hsWriteDir := tlsrecord.NewDirection(aead, ks.cHsTS[:])

	c.step = StepRecvServerFinished
	upToServerFinishedHash, err := c.readHandshakeFlightAndFinished(tr, ks.sHsTS[:], deadline, drain, now, sleep)
	if err != nil {
		return c.fail(statusFor(err), alertFor(err), err)
	}

	cApTS, sApTS := applicationSecrets(ks.master[:], upToServerFinishedHash)
	c.readDir = tlsrecord.NewDirection(aead, sApTS[:])
	c.readLevel = ProtectionApplication

	c.step = StepSendClientFinished
	c.writeDir = hsWriteDir
	c.writeLevel = ProtectionHandshake
	clientVerify := finishedVerifyData(ks.cHsTS[:], upToServerFinishedHash)
	finishedMsg := wrapHandshake(handshakeTypeFinished, clientVerify[:])
	if err := c.sendProtected(tlsrecord.ContentTypeHandshake, finishedMsg, timeout, drain, now, sleep); err != nil {
		return c.fail(StatusError, AlertIOError, err)
	}
	tr.add(finishedMsg)

	c.writeDir = tlsrecord.NewDirection(aead, cApTS[:])
	c.writeLevel = ProtectionApplication

	c.step = StepDone
	c.status = StatusOK
	c.ready = true
	return nil
}

func (c *Client) fail(status Status, alert Alert, err error) error {
	c.status = status
	if c.alert == 0 {
		c.alert = alert
	}
	return err
}

func statusFor(err error) Status {
	if errors.Is(err, errTimeout) {
		return StatusTimeout
	}
	if errors.Is(err, errUnsupportedGroup) {
		return StatusUnsupported
	}
	return StatusError
}

func alertFor(err error) Alert {
	switch {
	case errors.Is(err, errTimeout):
		return AlertIOError
	case errors.Is(err, errUnexpectedEOF):
		return AlertUnexpectedEOF
	case errors.Is(err, errUnsupportedGroup):
		return AlertMalformed
	case errors.Is(err, errMalformed):
		return AlertMalformed
	case errors.Is(err, tlsrecord.ErrDecrypt):
		return AlertDecryptFailure
	case errors.Is(err, errAlertReceived):
		return 0 // already captured in c.alert by readRecord
	}
	return AlertIOError
}

func errSelfTestFailed(cat crypto.SelfTestCategory) error {
	return errors.New("tlsclient: self-test failed: " + cat.String())
}

// readServerHelloMessage reads one plaintext handshake record (skipping
// ignored ChangeCipherSpec records) and parses it as a ServerHello or
// HelloRetryRequest.
func (c *Client) readServerHelloMessage(deadline time.Time, drain func(), now func() time.Time, sleep func(time.Duration)) (serverHello, []byte, error) {
	for {
		typ, body, err := c.readRecord(deadline, drain, now, sleep)
		if err != nil {
			return serverHello{}, nil, err
		}
		if typ == tlsrecord.ContentTypeChangeCipherSpec {
			continue
		}
		if typ != tlsrecord.ContentTypeHandshake {
			return serverHello{}, nil, errMalformed
		}
		hTyp, bodyLen, ok := parseHandshakeHeader(body)
		if !ok || hTyp != handshakeTypeServerHello || len(body) < 4+bodyLen {
			return serverHello{}, nil, errMalformed
		}
		msg := body[:4+bodyLen]
		sh, err := parseServerHello(msg[4:])
		if err != nil {
			return serverHello{}, nil, err
		}
		return sh, msg, nil
	}
}

// readHandshakeFlightAndFinished reads EncryptedExtensions, Certificate,
// CertificateVerify (transcript-only, content discarded) and Finished,
// verifying the server's Finished MAC, per spec §4.7 step 7. It returns
// H(transcript-up-to-and-including-server-Finished).
func (c *Client) readHandshakeFlightAndFinished(tr *transcript, sHsTS []byte, deadline time.Time, drain func(), now func() time.Time, sleep func(time.Duration)) ([crypto.SHA256Size]byte, error) {
	var zero [crypto.SHA256Size]byte
	for {
		innerType, body, err := c.readRecord(deadline, drain, now, sleep)
		if err != nil {
			return zero, err
		}
		if innerType != tlsrecord.ContentTypeHandshake {
			return zero, errMalformed
		}
		off := 0
		for off < len(body) {
			typ, bodyLen, ok := parseHandshakeHeader(body[off:])
			if !ok || off+4+bodyLen > len(body) {
				return zero, errMalformed
			}
			msg := body[off : off+4+bodyLen]
			switch typ {
			case handshakeTypeEncryptedExtensions, handshakeTypeCertificate, handshakeTypeCertificateVerify:
				tr.add(msg)
			case handshakeTypeFinished:
				beforeFinished := tr.snapshot()
				expected := finishedVerifyData(sHsTS, beforeFinished)
				if !bytes.Equal(expected[:], msg[4:]) {
					return zero, tlsrecord.ErrDecrypt
				}
				tr.add(msg)
				return tr.snapshot(), nil
			default:
				return zero, errMalformed
			}
			off += 4 + bodyLen
		}
	}
}

// Send writes application data, chunked to at most 1200 bytes per record
// (spec §4.7 "Send path").
func (c *Client) Send(data []byte, timeout time.Duration, drain func(), now func() time.Time, sleep func(time.Duration)) error {
	if !c.ready {
		return errors.New("tlsclient: handshake not complete")
	}
	const maxChunk = 1200
	for off := 0; off < len(data); {
		end := off + maxChunk
		if end > len(data) {
			end = len(data)
		}
		if err := c.sendProtected(tlsrecord.ContentTypeApplicationData, data[off:end], timeout, drain, now, sleep); err != nil {
			return err
		}
		off = end
	}
	return nil
}

// Recv returns the next chunk of application data, or (0, ErrClosed) once
// a close_notify alert has been received and no data remains buffered.
func (c *Client) Recv(buf []byte, timeout time.Duration, drain func(), now func() time.Time, sleep func(time.Duration)) (int, error) {
	if !c.ready {
		return 0, errors.New("tlsclient: handshake not complete")
	}
	if len(c.appRxBuf) > 0 {
		n := copy(buf, c.appRxBuf)
		c.appRxBuf = c.appRxBuf[n:]
		return n, nil
	}

	deadline := now().Add(timeout)
	for {
		innerType, body, err := c.readRecord(deadline, drain, now, sleep)
		if err != nil {
			if errors.Is(err, errAlertReceived) && c.isCloseNotify() {
				return 0, ErrClosed
			}
			return 0, err
		}
		if innerType != tlsrecord.ContentTypeApplicationData {
			continue
		}
		n := copy(buf, body)
		if n < len(body) {
			c.appRxBuf = append([]byte(nil), body[n:]...)
		}
		return n, nil
	}
}

// Close wipes all key material and closes the underlying TCP connection,
// whether or not the handshake ever completed. No outgoing close_notify is
// sent, per spec §4.7. Repeat calls are a no-op (property 8: idempotent
// close).
func (c *Client) Close(timeout time.Duration, drain func(), now func() time.Time, sleep func(time.Duration)) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.readDir != nil {
		c.readDir.Wipe()
	}
	if c.writeDir != nil {
		c.writeDir.Wipe()
	}
	return c.conn.Close(timeout, drain, now, sleep)
}
