package wire

import "encoding/binary"

// ARPPacketSize is the fixed size of an Ethernet/IPv4 ARP packet (RFC 826).
const ARPPacketSize = 28

type ARPOp uint16

const (
	ARPRequest ARPOp = 1
	ARPReply   ARPOp = 2
)

// ARPPacket is the parsed body of an ARP packet carried after the Ethernet
// header, specialized to hardware type Ethernet (1) and protocol type IPv4
// (0x0800), the only combination this daemon speaks.
type ARPPacket struct {
	Op      ARPOp
	SHA     MAC    // sender hardware address
	SPA     uint32 // sender protocol address (host order)
	THA     MAC    // target hardware address
	TPA     uint32 // target protocol address (host order)
}

// ParseARPPacket parses an ARP packet, rejecting anything other than
// Ethernet/IPv4.
func ParseARPPacket(b []byte) (ARPPacket, bool) {
	if len(b) < ARPPacketSize {
		return ARPPacket{}, false
	}
	htype := binary.BigEndian.Uint16(b[0:2])
	ptype := binary.BigEndian.Uint16(b[2:4])
	hlen, plen := b[4], b[5]
	if htype != 1 || ptype != uint16(EtherTypeIPv4) || hlen != 6 || plen != 4 {
		return ARPPacket{}, false
	}
	var p ARPPacket
	p.Op = ARPOp(binary.BigEndian.Uint16(b[6:8]))
	copy(p.SHA[:], b[8:14])
	p.SPA = binary.BigEndian.Uint32(b[14:18])
	copy(p.THA[:], b[18:24])
	p.TPA = binary.BigEndian.Uint32(b[24:28])
	return p, true
}

// Marshal serializes the ARP packet into out[:28].
func (p ARPPacket) Marshal(out []byte) {
	binary.BigEndian.PutUint16(out[0:2], 1)                    // htype = Ethernet
	binary.BigEndian.PutUint16(out[2:4], uint16(EtherTypeIPv4)) // ptype = IPv4
	out[4] = 6
	out[5] = 4
	binary.BigEndian.PutUint16(out[6:8], uint16(p.Op))
	copy(out[8:14], p.SHA[:])
	binary.BigEndian.PutUint32(out[14:18], p.SPA)
	copy(out[18:24], p.THA[:])
	binary.BigEndian.PutUint32(out[24:28], p.TPA)
}
