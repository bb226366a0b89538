package wire

import "encoding/binary"

// ICMPHeaderSize is the fixed echo request/reply header (type, code,
// checksum, id, seq); this daemon only ever handles ICMP echo.
const ICMPHeaderSize = 8

type ICMPType uint8

const (
	ICMPTypeEchoReply   ICMPType = 0
	ICMPTypeEchoRequest ICMPType = 8
)

// ICMPEcho is the parsed echo request/reply header plus its payload.
type ICMPEcho struct {
	Type     ICMPType
	Code     uint8
	Checksum uint16
	ID       uint16
	Seq      uint16
	Data     []byte
}

// ParseICMPEcho parses an ICMP packet, rejecting anything that is not an
// echo request or reply.
func ParseICMPEcho(b []byte) (ICMPEcho, bool) {
	if len(b) < ICMPHeaderSize {
		return ICMPEcho{}, false
	}
	typ := ICMPType(b[0])
	if typ != ICMPTypeEchoRequest && typ != ICMPTypeEchoReply {
		return ICMPEcho{}, false
	}
	if !ChecksumValid(b) {
		return ICMPEcho{}, false
	}
	var e ICMPEcho
	e.Type = typ
	e.Code = b[1]
	e.Checksum = binary.BigEndian.Uint16(b[2:4])
	e.ID = binary.BigEndian.Uint16(b[4:6])
	e.Seq = binary.BigEndian.Uint16(b[6:8])
	e.Data = b[8:]
	return e, true
}

// Marshal serializes the echo message into out, which must be exactly
// ICMPHeaderSize+len(e.Data) bytes, and fills in the checksum.
func (e ICMPEcho) Marshal(out []byte) {
	out[0] = byte(e.Type)
	out[1] = e.Code
	binary.BigEndian.PutUint16(out[2:4], 0)
	binary.BigEndian.PutUint16(out[4:6], e.ID)
	binary.BigEndian.PutUint16(out[6:8], e.Seq)
	copy(out[8:], e.Data)
	binary.BigEndian.PutUint16(out[2:4], Checksum(out))
}
