package wire

import "encoding/binary"

// TCPMinHeaderSize is the header length with no options.
const TCPMinHeaderSize = 20

// TCPFlag bits, RFC 793 §3.1.
type TCPFlag uint8

const (
	TCPFlagFIN TCPFlag = 1 << 0
	TCPFlagSYN TCPFlag = 1 << 1
	TCPFlagRST TCPFlag = 1 << 2
	TCPFlagPSH TCPFlag = 1 << 3
	TCPFlagACK TCPFlag = 1 << 4
)

// TCPHeader is the parsed TCP header, options dropped (this daemon neither
// sends nor interprets TCP options beyond skipping them on receive).
type TCPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Seq      uint32
	Ack      uint32
	Flags    TCPFlag
	Window   uint16
	Checksum uint16
	UrgPtr   uint16
}

func (f TCPFlag) Has(bit TCPFlag) bool { return f&bit != 0 }

// ParseTCPHeader parses a TCP header and reports the options-inclusive
// header length (dataOffset*4) so the caller can slice the payload.
func ParseTCPHeader(b []byte) (hdr TCPHeader, headerLen int, ok bool) {
	if len(b) < TCPMinHeaderSize {
		return TCPHeader{}, 0, false
	}
	dataOffset := int(b[12]>>4) * 4
	if dataOffset < TCPMinHeaderSize || dataOffset > len(b) {
		return TCPHeader{}, 0, false
	}
	var h TCPHeader
	h.SrcPort = binary.BigEndian.Uint16(b[0:2])
	h.DstPort = binary.BigEndian.Uint16(b[2:4])
	h.Seq = binary.BigEndian.Uint32(b[4:8])
	h.Ack = binary.BigEndian.Uint32(b[8:12])
	h.Flags = TCPFlag(b[13] & 0x3f)
	h.Window = binary.BigEndian.Uint16(b[14:16])
	h.Checksum = binary.BigEndian.Uint16(b[16:18])
	h.UrgPtr = binary.BigEndian.Uint16(b[18:20])
	return h, dataOffset, true
}

// Marshal writes a 20-byte options-free TCP header into out[:20].
func (h TCPHeader) Marshal(out []byte) {
	binary.BigEndian.PutUint16(out[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(out[2:4], h.DstPort)
	binary.BigEndian.PutUint32(out[4:8], h.Seq)
	binary.BigEndian.PutUint32(out[8:12], h.Ack)
	out[12] = 5 << 4 // data offset = 5 (no options)
	out[13] = byte(h.Flags) & 0x3f
	binary.BigEndian.PutUint16(out[14:16], h.Window)
	binary.BigEndian.PutUint16(out[16:18], h.Checksum)
	binary.BigEndian.PutUint16(out[18:20], h.UrgPtr)
}
