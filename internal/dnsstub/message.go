package dnsstub

import (
	"encoding/binary"
	"errors"
	"strings"
)

// ErrMalformed covers any structural DNS response problem (bad id,
// QR/RCODE, truncated name, compression-pointer loop, missing A record).
var ErrMalformed = errors.New("dnsstub: malformed response")

const maxCompressionJumps = 16

// BuildQuery builds a query for name with RD=1, a single question,
// QTYPE=A, QCLASS=IN, and no compression (spec §4.5).
func BuildQuery(id uint16, name string) []byte {
	labels := strings.Split(name, ".")
	qnameLen := 1
	for _, l := range labels {
		if l == "" {
			continue
		}
		qnameLen += 1 + len(l)
	}
	out := make([]byte, 12+qnameLen+4)
	binary.BigEndian.PutUint16(out[0:2], id)
	out[2] = 0x01 // RD=1
	out[3] = 0x00
	binary.BigEndian.PutUint16(out[4:6], 1) // QDCOUNT
	// ANCOUNT, NSCOUNT, ARCOUNT all zero

	i := 12
	for _, l := range labels {
		if l == "" {
			continue
		}
		out[i] = byte(len(l))
		i++
		copy(out[i:], l)
		i += len(l)
	}
	out[i] = 0 // terminating zero label
	i++
	binary.BigEndian.PutUint16(out[i:i+2], 1) // QTYPE=A
	binary.BigEndian.PutUint16(out[i+2:i+4], 1) // QCLASS=IN
	return out
}

// ParseResponse validates the header against wantID and extracts the
// first A-record address, per spec §4.5: validate id, QR=1, RCODE=0,
// QDCOUNT>=1; skip the question section (names may carry compression
// pointers, traversal bounded to 16 jumps); scan answers for the first
// type=1/class=1/rdlen=4 record.
func ParseResponse(b []byte, wantID uint16) (uint32, error) {
	if len(b) < 12 {
		return 0, ErrMalformed
	}
	id := binary.BigEndian.Uint16(b[0:2])
	if id != wantID {
		return 0, ErrMalformed
	}
	flags := binary.BigEndian.Uint16(b[2:4])
	qr := flags >> 15
	rcode := flags & 0x0f
	if qr != 1 || rcode != 0 {
		return 0, ErrMalformed
	}
	qdcount := binary.BigEndian.Uint16(b[4:6])
	ancount := binary.BigEndian.Uint16(b[6:8])
	if qdcount < 1 {
		return 0, ErrMalformed
	}

	off := 12
	for q := uint16(0); q < qdcount; q++ {
		next, err := skipName(b, off)
		if err != nil {
			return 0, err
		}
		off = next + 4 // QTYPE + QCLASS
		if off > len(b) {
			return 0, ErrMalformed
		}
	}

	for a := uint16(0); a < ancount; a++ {
		next, err := skipName(b, off)
		if err != nil {
			return 0, err
		}
		off = next
		if off+10 > len(b) {
			return 0, ErrMalformed
		}
		rtype := binary.BigEndian.Uint16(b[off : off+2])
		rclass := binary.BigEndian.Uint16(b[off+2 : off+4])
		rdlen := binary.BigEndian.Uint16(b[off+8 : off+10])
		off += 10
		if off+int(rdlen) > len(b) {
			return 0, ErrMalformed
		}
		if rtype == 1 && rclass == 1 && rdlen == 4 {
			return binary.BigEndian.Uint32(b[off : off+4]), nil
		}
		off += int(rdlen)
	}
	return 0, ErrMalformed
}

// skipName advances past a (possibly compressed) name starting at off
// and returns the offset immediately following it in the original
// message. Compression-pointer chasing is bounded to maxCompressionJumps
// to guard against loops.
func skipName(b []byte, off int) (int, error) {
	jumps := 0
	start := off
	end := -1 // offset to return once we've followed the first pointer
	for {
		if off >= len(b) {
			return 0, ErrMalformed
		}
		lbl := b[off]
		if lbl&0xc0 == 0xc0 {
			if off+1 >= len(b) {
				return 0, ErrMalformed
			}
			if end == -1 {
				end = off + 2
			}
			jumps++
			if jumps > maxCompressionJumps {
				return 0, ErrMalformed
			}
			ptr := int(lbl&0x3f)<<8 | int(b[off+1])
			if ptr >= start {
				return 0, ErrMalformed
			}
			off = ptr
			start = ptr
			continue
		}
		if lbl == 0 {
			off++
			break
		}
		off += 1 + int(lbl)
	}
	if end != -1 {
		return end, nil
	}
	return off, nil
}
