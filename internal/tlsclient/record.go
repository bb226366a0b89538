package tlsclient

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/malbeclabs/networkd/internal/tlsrecord"
)

var errAlertReceived = errors.New("tlsclient: peer alert")

// fill reads from the underlying TCP connection until at least n bytes are
// buffered in rxBuf or deadline passes.
func (c *Client) fill(n int, deadline time.Time, drain func(), now func() time.Time, sleep func(time.Duration)) error {
	scratch := make([]byte, 2048)
	for len(c.rxBuf) < n {
		remaining := deadline.Sub(now())
		if remaining <= 0 {
			return errTimeout
		}
		got, err := c.conn.Recv(scratch, remaining, drain, now, sleep)
		if err != nil {
			return err
		}
		if got == 0 {
			if c.conn.RemoteClosed() {
				return errUnexpectedEOF
			}
			continue
		}
		c.rxBuf = append(c.rxBuf, scratch[:got]...)
	}
	return nil
}

var errTimeout = errors.New("tlsclient: timeout")
var errUnexpectedEOF = errors.New("tlsclient: unexpected EOF")

// readRecord reads and, if protection is active, decrypts exactly one TLS
// record (spec §4.7 "Record read path").
func (c *Client) readRecord(deadline time.Time, drain func(), now func() time.Time, sleep func(time.Duration)) (tlsrecord.ContentType, []byte, error) {
	if err := c.fill(tlsrecord.OuterHeaderSize, deadline, drain, now, sleep); err != nil {
		return 0, nil, err
	}
	var hdr [tlsrecord.OuterHeaderSize]byte
	copy(hdr[:], c.rxBuf[:tlsrecord.OuterHeaderSize])
	bodyLen := int(binary.BigEndian.Uint16(hdr[3:5]))

	if err := c.fill(tlsrecord.OuterHeaderSize+bodyLen, deadline, drain, now, sleep); err != nil {
		return 0, nil, err
	}
	body := append([]byte(nil), c.rxBuf[tlsrecord.OuterHeaderSize:tlsrecord.OuterHeaderSize+bodyLen]...)
	c.rxBuf = c.rxBuf[tlsrecord.OuterHeaderSize+bodyLen:]

	if c.readLevel == ProtectionNone {
		typ := tlsrecord.ContentType(hdr[0])
		if typ == tlsrecord.ContentTypeAlert {
			c.captureAlert(body)
			return typ, body, errAlertReceived
		}
		return typ, body, nil
	}

	innerType, plain, err := c.readDir.Open(hdr, body)
	if err != nil {
		c.alert = AlertDecryptFailure
		return 0, nil, err
	}
	if innerType == tlsrecord.ContentTypeAlert {
		c.captureAlert(plain)
		return innerType, plain, errAlertReceived
	}
	return innerType, plain, nil
}

func (c *Client) captureAlert(body []byte) {
	if len(body) >= 2 {
		c.alert = Alert(uint16(body[0])<<8 | uint16(body[1]))
	}
}

// isCloseNotify reports whether the last captured alert was a close_notify
// (level=warning(1), description=0).
func (c *Client) isCloseNotify() bool {
	return c.alert&alertInternalBit == 0 && byte(c.alert) == 0
}

func (c *Client) sendPlaintext(typ tlsrecord.ContentType, body []byte, timeout time.Duration, drain func(), now func() time.Time, sleep func(time.Duration)) error {
	frame := make([]byte, tlsrecord.OuterHeaderSize+len(body))
	frame[0] = byte(typ)
	binary.BigEndian.PutUint16(frame[1:3], legacyRecordVersion)
	binary.BigEndian.PutUint16(frame[3:5], uint16(len(body)))
	copy(frame[tlsrecord.OuterHeaderSize:], body)
	return c.conn.Send(frame, timeout, drain, now, sleep)
}

func (c *Client) sendProtected(innerType tlsrecord.ContentType, plaintext []byte, timeout time.Duration, drain func(), now func() time.Time, sleep func(time.Duration)) error {
	rec, err := c.writeDir.Seal(innerType, plaintext)
	if err != nil {
		return err
	}
	return c.conn.Send(rec, timeout, drain, now, sleep)
}

// dummyChangeCipherSpec is the single-byte body of the middlebox-compat
// ChangeCipherSpec record (spec §4.7 step 2).
var dummyChangeCipherSpec = []byte{0x01}
