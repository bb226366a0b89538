package wire

import "encoding/binary"

// UDPHeaderSize is the fixed UDP header length.
const UDPHeaderSize = 8

// UDPHeader is the parsed UDP header.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16 // header + payload
	Checksum uint16
}

// ParseUDPHeader parses a UDP header; checksum validity is checked by the
// caller via UDPChecksumValid since it depends on the IPv4 pseudo-header.
func ParseUDPHeader(b []byte) (UDPHeader, bool) {
	if len(b) < UDPHeaderSize {
		return UDPHeader{}, false
	}
	var h UDPHeader
	h.SrcPort = binary.BigEndian.Uint16(b[0:2])
	h.DstPort = binary.BigEndian.Uint16(b[2:4])
	h.Length = binary.BigEndian.Uint16(b[4:6])
	h.Checksum = binary.BigEndian.Uint16(b[6:8])
	if int(h.Length) > len(b) || int(h.Length) < UDPHeaderSize {
		return UDPHeader{}, false
	}
	return h, true
}

// Marshal writes the header into out[:8]; the checksum field is left as
// given (the caller fills it in via IPv4PseudoHeaderChecksum once the payload
// is in place).
func (h UDPHeader) Marshal(out []byte) {
	binary.BigEndian.PutUint16(out[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(out[2:4], h.DstPort)
	binary.BigEndian.PutUint16(out[4:6], h.Length)
	binary.BigEndian.PutUint16(out[6:8], h.Checksum)
}

// IPv4PseudoHeaderChecksum computes the checksum of a UDP or TCP segment
// including the IPv4 pseudo-header (RFC 793 §3.1 / RFC 768), given the
// already-marshaled segment (header+payload) with its checksum field
// zeroed.
func IPv4PseudoHeaderChecksum(src, dst uint32, proto IPProto, segment []byte) uint16 {
	pseudo := make([]byte, 12+len(segment)+len(segment)%2)
	binary.BigEndian.PutUint32(pseudo[0:4], src)
	binary.BigEndian.PutUint32(pseudo[4:8], dst)
	pseudo[8] = 0
	pseudo[9] = byte(proto)
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(segment)))
	copy(pseudo[12:], segment)
	return Checksum(pseudo)
}

// UDPChecksumValid verifies a received UDP segment's checksum against the
// IPv4 pseudo-header. A checksum field of 0 means "not computed" and is
// treated as valid per RFC 768.
func UDPChecksumValid(src, dst uint32, segment []byte) bool {
	if binary.BigEndian.Uint16(segment[6:8]) == 0 {
		return true
	}
	want := binary.BigEndian.Uint16(segment[6:8])
	tmp := append([]byte(nil), segment...)
	binary.BigEndian.PutUint16(tmp[6:8], 0)
	got := IPv4PseudoHeaderChecksum(src, dst, IPProtoUDP, tmp)
	return got == want
}
