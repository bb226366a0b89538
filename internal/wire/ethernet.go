package wire

import "encoding/binary"

// EthernetHeaderSize is the fixed Ethernet II header length (dst, src,
// ethertype).
const EthernetHeaderSize = 14

type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
)

// MAC is a 6-byte hardware address.
type MAC [6]byte

// Broadcast is the all-ones Ethernet broadcast address.
var Broadcast = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (m MAC) IsBroadcast() bool { return m == Broadcast }

// EthernetHeader is the parsed Ethernet II frame header.
type EthernetHeader struct {
	Dst  MAC
	Src  MAC
	Type EtherType
}

// ParseEthernetHeader parses the first 14 bytes of frame.
func ParseEthernetHeader(frame []byte) (EthernetHeader, bool) {
	if len(frame) < EthernetHeaderSize {
		return EthernetHeader{}, false
	}
	var h EthernetHeader
	copy(h.Dst[:], frame[0:6])
	copy(h.Src[:], frame[6:12])
	h.Type = EtherType(binary.BigEndian.Uint16(frame[12:14]))
	return h, true
}

// Marshal serializes the header into the first 14 bytes of out (out must
// be at least EthernetHeaderSize bytes).
func (h EthernetHeader) Marshal(out []byte) {
	copy(out[0:6], h.Dst[:])
	copy(out[6:12], h.Src[:])
	binary.BigEndian.PutUint16(out[12:14], uint16(h.Type))
}
