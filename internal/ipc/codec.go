package ipc

import (
	"encoding/binary"
	"errors"
	"net"
	"time"
)

// ErrPayloadTooLarge is returned when a header declares a payload beyond
// MaxPayload; the connection is unusable afterward and should be closed.
var ErrPayloadTooLarge = errors.New("ipc: payload exceeds max")

// ErrBadMagic is returned when a header's magic field doesn't match Magic.
var ErrBadMagic = errors.New("ipc: bad magic")

// MarshalHeader encodes h into the fixed 16-byte little-endian layout.
func MarshalHeader(h Header) [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint16(b[0:2], h.Magic)
	binary.LittleEndian.PutUint16(b[2:4], uint16(h.Type))
	binary.LittleEndian.PutUint32(b[4:8], h.Seq)
	binary.LittleEndian.PutUint32(b[8:12], h.Len)
	binary.LittleEndian.PutUint32(b[12:16], h.Flags)
	return b
}

// ParseHeader decodes a 16-byte header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.New("ipc: short header")
	}
	h := Header{
		Magic: binary.LittleEndian.Uint16(b[0:2]),
		Type:  MsgType(binary.LittleEndian.Uint16(b[2:4])),
		Seq:   binary.LittleEndian.Uint32(b[4:8]),
		Len:   binary.LittleEndian.Uint32(b[8:12]),
		Flags: binary.LittleEndian.Uint32(b[12:16]),
	}
	if h.Magic != Magic {
		return h, ErrBadMagic
	}
	if h.Len > MaxPayload {
		return h, ErrPayloadTooLarge
	}
	return h, nil
}

// Message is one fully-decoded frame.
type Message struct {
	Header  Header
	Payload []byte
}

// Conn wraps a net.Conn (a Unix-domain stream socket in the daemon) with
// the framed receive state machine: partial headers and bodies are
// accumulated across non-blocking reads, per spec §4.9/§6.2.
type Conn struct {
	nc  net.Conn
	buf []byte
}

// NewConn wraps an accepted client connection.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }

// Poll performs one non-blocking read attempt (a near-zero deadline, so a
// client with nothing to say never stalls the event loop tick) and
// appends whatever arrived to the internal buffer.
func (c *Conn) Poll() error {
	_ = c.nc.SetReadDeadline(time.Now().Add(time.Microsecond))
	scratch := make([]byte, 4096)
	n, err := c.nc.Read(scratch)
	if n > 0 {
		c.buf = append(c.buf, scratch[:n]...)
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		return err
	}
	return nil
}

// Next returns the next complete frame buffered by prior Poll calls, if
// any. ok is false when less than one full frame is currently available.
func (c *Conn) Next() (Message, bool, error) {
	if len(c.buf) < HeaderSize {
		return Message{}, false, nil
	}
	hdr, err := ParseHeader(c.buf[:HeaderSize])
	if err != nil {
		return Message{}, false, err
	}
	total := HeaderSize + int(hdr.Len)
	if len(c.buf) < total {
		return Message{}, false, nil
	}
	payload := append([]byte(nil), c.buf[HeaderSize:total]...)
	c.buf = c.buf[total:]
	return Message{Header: hdr, Payload: payload}, true, nil
}

// Send writes one framed message.
func (c *Conn) Send(typ MsgType, seq uint32, payload []byte) error {
	hdr := MarshalHeader(Header{Magic: Magic, Type: typ, Seq: seq, Len: uint32(len(payload))})
	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, hdr[:]...)
	frame = append(frame, payload...)
	_, err := c.nc.Write(frame)
	return err
}
