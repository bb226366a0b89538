package tcpconn

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/malbeclabs/networkd/internal/ipv4"
	"github.com/malbeclabs/networkd/internal/wire"
)

// MSS is the maximum segment size used for outbound data, spec §4.6.
const MSS = 1200

// ErrNoActiveConnection is returned by Send/Recv/Close when no
// connection has been established.
var ErrNoActiveConnection = errors.New("tcpconn: no active connection")

// Conn is the daemon's single TCP connection record (spec §3.1's "at
// most one TCP connection" invariant). It is not safe for concurrent
// use; the single-threaded event loop owns it exclusively.
type Conn struct {
	stack *ipv4.Stack
	xmit  func([]byte) error

	state State

	remoteIP        uint32
	remotePort      uint16
	localPort       uint16
	destMAC         wire.MAC

	iss, sndUna, sndNxt uint32
	rcvNxt, irs         uint32

	rx ring

	remoteClosed, finSent, finAcked bool
	wasFull                         bool
	lastErr                         Status
}

// NewConn constructs a connection record bound to stack for segment
// transmission; xmit is the raw Ethernet frame writer.
func NewConn(stack *ipv4.Stack, xmit func([]byte) error) *Conn {
	c := &Conn{stack: stack, xmit: xmit}
	stack.RegisterTCP(c)
	return c
}

// State reports the current connection state.
func (c *Conn) State() State { return c.state }

// RemoteClosed reports whether the peer has sent a FIN (used to
// disambiguate Recv's (OK, 0) "no more data, peer closed" return from
// "no data yet").
func (c *Conn) RemoteClosed() bool { return c.remoteClosed }

// LastErr is the last status code surfaced to callers.
func (c *Conn) LastErr() Status { return c.lastErr }

func seqGreaterOrEqual(a, b uint32) bool { return int32(a-b) >= 0 }
func seqGreater(a, b uint32) bool        { return int32(a-b) > 0 }
func seqInRange(val, lo, hi uint32) bool  { return seqGreater(val, lo) && seqGreaterOrEqual(hi, val) }

// reset clears the connection but preserves lastErr, matching spec
// §3.1's lifecycle note.
func (c *Conn) reset() {
	lastErr := c.lastErr
	*c = Conn{stack: c.stack, xmit: c.xmit, lastErr: lastErr}
}

func (c *Conn) buildSegment(flags wire.TCPFlag, payload []byte) []byte {
	total := wire.TCPMinHeaderSize + len(payload)
	seg := make([]byte, total)
	hdr := wire.TCPHeader{
		SrcPort: c.localPort,
		DstPort: c.remotePort,
		Seq:     c.sndNxt,
		Ack:     c.rcvNxt,
		Flags:   flags,
		Window:  windowSize(c.rx.space()),
	}
	if flags.Has(wire.TCPFlagACK) {
		hdr.Ack = c.rcvNxt
	}
	hdr.Marshal(seg)
	copy(seg[wire.TCPMinHeaderSize:], payload)
	binary.BigEndian.PutUint16(seg[16:18], 0)
	sum := wire.IPv4PseudoHeaderChecksum(c.stack.SourceIP(), c.remoteIP, wire.IPProtoTCP, seg)
	binary.BigEndian.PutUint16(seg[16:18], sum)
	return seg
}

func windowSize(space uint32) uint16 {
	if space > 0xFFFF {
		return 0xFFFF
	}
	return uint16(space)
}

func (c *Conn) sendSegment(flags wire.TCPFlag, payload []byte) error {
	seg := c.buildSegment(flags, payload)
	return c.stack.SendDirect(c.destMAC, c.remoteIP, wire.IPProtoTCP, seg, c.xmit)
}

// Connect implements connect(ip, port, timeout_ms): allocates an
// ephemeral port and ISS from uptimeMS, sends SYN, and drives the
// device until ESTABLISHED or timeout.
func (c *Conn) Connect(ip uint32, port uint16, destMAC wire.MAC, uptimeMS uint32, timeout time.Duration, drain func(), now func() time.Time, sleep func(time.Duration)) error {
	c.reset()
	c.remoteIP = ip
	c.remotePort = port
	c.destMAC = destMAC
	c.localPort = uint16(49152 + (uptimeMS & 0xFFF))
	iss := uptimeMS*1103515245 + 12345
	if iss == 0 {
		iss = 1
	}
	c.iss = iss
	c.sndUna = iss
	c.sndNxt = iss

	c.state = StateSynSent
	if err := c.sendSegment(wire.TCPFlagSYN, nil); err != nil {
		c.lastErr = StatusUnreachable
		return err
	}
	c.sndNxt++

	deadline := now().Add(timeout)
	for now().Before(deadline) {
		drain()
		if c.state == StateEstablished {
			c.lastErr = StatusOK
			return nil
		}
		if c.state == StateClosed {
			return errors.New("tcpconn: connection reset during handshake")
		}
		sleep(10 * time.Millisecond)
	}
	if c.state == StateEstablished {
		c.lastErr = StatusOK
		return nil
	}
	c.lastErr = StatusTimeout
	return errTimeout
}

var errTimeout = errors.New("tcpconn: timeout")

// HandleIPv4 implements ipv4.Handler: processes one inbound TCP segment
// per spec §4.6, after checksum and peer-tuple validation.
func (c *Conn) HandleIPv4(srcMAC wire.MAC, src, dst uint32, payload []byte) {
	hdr, hlen, ok := wire.ParseTCPHeader(payload)
	if !ok {
		return
	}
	tmp := append([]byte(nil), payload...)
	binary.BigEndian.PutUint16(tmp[16:18], 0)
	if wire.IPv4PseudoHeaderChecksum(src, dst, wire.IPProtoTCP, tmp) != hdr.Checksum {
		return
	}
	if c.state == StateClosed {
		return
	}
	if src != c.remoteIP || hdr.SrcPort != c.remotePort || hdr.DstPort != c.localPort {
		return
	}

	data := payload[hlen:]

	if hdr.Flags.Has(wire.TCPFlagRST) {
		c.state = StateClosed
		c.lastErr = StatusReset
		return
	}

	if hdr.Flags.Has(wire.TCPFlagACK) {
		if seqInRange(hdr.Ack, c.sndUna, c.sndNxt) {
			c.sndUna = hdr.Ack
			if c.finSent && c.sndUna == c.sndNxt {
				c.finAcked = true
			}
		}
	}

	if c.state == StateSynSent {
		if hdr.Flags.Has(wire.TCPFlagSYN) && hdr.Flags.Has(wire.TCPFlagACK) && hdr.Ack == c.sndNxt {
			c.irs = hdr.Seq
			c.rcvNxt = hdr.Seq + 1
			c.state = StateEstablished
			_ = c.sendSegment(wire.TCPFlagACK, nil)
		}
		return
	}

	if c.state == StateEstablished || c.state == StateFinWait1 || c.state == StateFinWait2 {
		if len(data) > 0 {
			if hdr.Seq == c.rcvNxt {
				if uint32(len(data)) <= c.rx.space() {
					c.rx.write(data)
					c.rcvNxt += uint32(len(data))
				}
			}
			_ = c.sendSegment(wire.TCPFlagACK, nil)
		}
	}

	if hdr.Flags.Has(wire.TCPFlagFIN) {
		finSeq := hdr.Seq + uint32(len(data))
		if finSeq == c.rcvNxt {
			c.rcvNxt++
			c.remoteClosed = true
			_ = c.sendSegment(wire.TCPFlagACK, nil)
			switch c.state {
			case StateEstablished:
				c.state = StateCloseWait
			case StateFinWait1:
				if c.finAcked {
					c.state = StateFinWait2
				}
			case StateFinWait2:
				// already past FIN sent+acked; nothing further to advance
			}
		}
	}
}

// Send implements send(data, len, timeout_ms): chunks at MSS, waits for
// each chunk to be fully acked before sending the next, with no
// retransmit on loss.
func (c *Conn) Send(data []byte, timeout time.Duration, drain func(), now func() time.Time, sleep func(time.Duration)) error {
	if c.state != StateEstablished {
		return ErrNoActiveConnection
	}
	deadline := now().Add(timeout)
	for off := 0; off < len(data); {
		end := off + MSS
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		if err := c.sendSegment(wire.TCPFlagACK|wire.TCPFlagPSH, chunk); err != nil {
			c.lastErr = StatusUnreachable
			return err
		}
		c.sndNxt += uint32(len(chunk))

		for c.sndUna != c.sndNxt {
			if !now().Before(deadline) {
				c.lastErr = StatusTimeout
				return errTimeout
			}
			drain()
			sleep(10 * time.Millisecond)
		}
		off = end
	}
	c.lastErr = StatusOK
	return nil
}

// Recv implements recv(buf, cap, timeout_ms): drains the ring, re-opens
// the window with an ACK if the ring had been full and has since freed
// space, returns (0, nil) once remote_closed and the ring is drained,
// and otherwise blocks until data arrives or timeout elapses.
func (c *Conn) Recv(buf []byte, timeout time.Duration, drain func(), now func() time.Time, sleep func(time.Duration)) (int, error) {
	if c.state == StateClosed {
		return 0, ErrNoActiveConnection
	}

	n := c.drainRing(buf)
	if n > 0 {
		return n, nil
	}
	if c.remoteClosed {
		return 0, nil
	}

	deadline := now().Add(timeout)
	for now().Before(deadline) {
		drain()
		n := c.drainRing(buf)
		if n > 0 {
			return n, nil
		}
		if c.remoteClosed {
			return 0, nil
		}
		sleep(10 * time.Millisecond)
	}
	c.lastErr = StatusTimeout
	return 0, errTimeout
}

func (c *Conn) drainRing(buf []byte) int {
	wasFull := c.rx.space() == 0
	n := c.rx.read(buf)
	if n > 0 && wasFull && c.rx.space() > 0 {
		_ = c.sendSegment(wire.TCPFlagACK, nil)
	}
	return n
}

// Close implements close(): sends FIN|ACK once from ESTABLISHED or
// CLOSE_WAIT, then drives the device until fin_sent && fin_acked &&
// remote_closed, then resets the record.
func (c *Conn) Close(timeout time.Duration, drain func(), now func() time.Time, sleep func(time.Duration)) error {
	if c.state != StateEstablished && c.state != StateCloseWait {
		c.reset()
		return nil
	}
	if c.state == StateEstablished {
		c.state = StateFinWait1
	} else {
		c.state = StateLastAck
	}
	_ = c.sendSegment(wire.TCPFlagFIN|wire.TCPFlagACK, nil)
	c.sndNxt++
	c.finSent = true

	deadline := now().Add(timeout)
	for now().Before(deadline) {
		if c.finSent && c.finAcked && c.remoteClosed {
			c.reset()
			return nil
		}
		drain()
		sleep(10 * time.Millisecond)
	}
	c.reset()
	c.lastErr = StatusTimeout
	return errTimeout
}
