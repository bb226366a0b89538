package wire

import "encoding/binary"

// IPProto identifies the IPv4 payload protocol.
type IPProto uint8

const (
	IPProtoICMP IPProto = 1
	IPProtoTCP  IPProto = 6
	IPProtoUDP  IPProto = 17
)

// IPv4MinHeaderSize is the header length with no options (IHL=5).
const IPv4MinHeaderSize = 20

// IPv4Header is the parsed IPv4 header without options (ParseIPv4Header
// accepts IHL >= 5 and skips any option bytes; this daemon never sends
// options).
type IPv4Header struct {
	TotalLen    uint16
	ID          uint16
	FlagsFrag   uint16
	TTL         uint8
	Proto       IPProto
	Checksum    uint16
	Src         uint32 // host order
	Dst         uint32 // host order
}

// ParseIPv4Header parses and validates an IPv4 header per spec §4.4: version
// 4, IHL >= 5 (options beyond the fixed 20 bytes are skipped, not parsed),
// checksum verifies over the declared header length, and total_len fits
// within the available buffer.
func ParseIPv4Header(b []byte) (hdr IPv4Header, headerLen int, ok bool) {
	if len(b) < IPv4MinHeaderSize {
		return IPv4Header{}, 0, false
	}
	verIHL := b[0]
	version := verIHL >> 4
	ihl := int(verIHL&0x0f) * 4
	if version != 4 || ihl < IPv4MinHeaderSize {
		return IPv4Header{}, 0, false
	}
	if len(b) < ihl {
		return IPv4Header{}, 0, false
	}
	if !ChecksumValid(b[:ihl]) {
		return IPv4Header{}, 0, false
	}
	hdr.TotalLen = binary.BigEndian.Uint16(b[2:4])
	if int(hdr.TotalLen) > len(b) || int(hdr.TotalLen) < ihl {
		return IPv4Header{}, 0, false
	}
	hdr.ID = binary.BigEndian.Uint16(b[4:6])
	hdr.FlagsFrag = binary.BigEndian.Uint16(b[6:8])
	hdr.TTL = b[8]
	hdr.Proto = IPProto(b[9])
	hdr.Checksum = binary.BigEndian.Uint16(b[10:12])
	hdr.Src = binary.BigEndian.Uint32(b[12:16])
	hdr.Dst = binary.BigEndian.Uint32(b[16:20])
	return hdr, ihl, true
}

// MarshalIPv4Header writes a 20-byte options-free IPv4 header into out and
// fills in its own checksum.
func MarshalIPv4Header(out []byte, h IPv4Header) {
	out[0] = 0x45 // version 4, IHL 5
	out[1] = 0    // DSCP/ECN
	binary.BigEndian.PutUint16(out[2:4], h.TotalLen)
	binary.BigEndian.PutUint16(out[4:6], h.ID)
	binary.BigEndian.PutUint16(out[6:8], h.FlagsFrag)
	out[8] = h.TTL
	out[9] = byte(h.Proto)
	binary.BigEndian.PutUint16(out[10:12], 0)
	binary.BigEndian.PutUint32(out[12:16], h.Src)
	binary.BigEndian.PutUint32(out[16:20], h.Dst)
	binary.BigEndian.PutUint16(out[10:12], Checksum(out[:IPv4MinHeaderSize]))
}

// IPv4Broadcast is 255.255.255.255.
const IPv4Broadcast uint32 = 0xFFFFFFFF

// IPv4String renders a host-order address as dotted quad.
func IPv4String(addr uint32) string {
	return itoa(byte(addr>>24)) + "." + itoa(byte(addr>>16)) + "." + itoa(byte(addr>>8)) + "." + itoa(byte(addr))
}

func itoa(b byte) string {
	if b == 0 {
		return "0"
	}
	var buf [3]byte
	i := 3
	v := b
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// ParseIPv4String parses a dotted-quad string into a host-order uint32.
func ParseIPv4String(s string) (uint32, bool) {
	var out uint32
	octet := 0
	digits := 0
	octets := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			if digits == 0 || digits > 3 {
				return 0, false
			}
			octets++
			if octets > 4 {
				return 0, false
			}
			out = out<<8 | uint32(octet)
			octet = 0
			digits = 0
			continue
		}
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		octet = octet*10 + int(c-'0')
		if octet > 255 {
			return 0, false
		}
		digits++
	}
	return out, octets == 4
}
