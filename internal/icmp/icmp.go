// Package icmp implements ICMP echo per spec §4.4: Echo requests are
// answered with an identical-payload Echo reply, and a single
// ping-wait slot is matched against Echo replies by (id, seq, source).
package icmp

import (
	"errors"
	"time"

	"github.com/malbeclabs/networkd/internal/ipv4"
	"github.com/malbeclabs/networkd/internal/wire"
)

// ErrTimeout is returned by Ping when no matching reply arrives before
// the deadline.
var ErrTimeout = errors.New("icmp: timeout")

// waitSlot is the daemon's single ping-in-flight slot (spec §3.1's
// invariant: at most one ping-in-flight).
type waitSlot struct {
	active   bool
	id, seq  uint16
	src      uint32
	received bool
}

// Engine answers Echo requests and correlates Echo replies against the
// single ping-wait slot.
type Engine struct {
	stack *ipv4.Stack
	xmit  func(frame []byte) error
	slot  waitSlot
}

// NewEngine builds an ICMP engine, registers it with stack as the ICMP
// handler, and wires xmit as the raw frame transmit function (the
// daemon's device write).
func NewEngine(stack *ipv4.Stack, xmit func(frame []byte) error) *Engine {
	e := &Engine{stack: stack, xmit: xmit}
	stack.RegisterICMP(e)
	return e
}

// HandleIPv4 implements ipv4.Handler: dispatches by ICMP type.
func (e *Engine) HandleIPv4(srcMAC wire.MAC, src, dst uint32, payload []byte) {
	echo, ok := wire.ParseICMPEcho(payload)
	if !ok {
		return
	}
	switch echo.Type {
	case wire.ICMPTypeEchoRequest:
		e.reply(srcMAC, src, echo)
	case wire.ICMPTypeEchoReply:
		e.matchReply(src, echo)
	}
}

func (e *Engine) reply(srcMAC wire.MAC, src uint32, req wire.ICMPEcho) {
	reply := wire.ICMPEcho{
		Type: wire.ICMPTypeEchoReply,
		ID:   req.ID,
		Seq:  req.Seq,
		Data: req.Data,
	}
	out := make([]byte, wire.ICMPHeaderSize+len(reply.Data))
	reply.Marshal(out)
	_ = e.stack.SendDirect(srcMAC, src, wire.IPProtoICMP, out, e.xmit)
}

func (e *Engine) matchReply(src uint32, echo wire.ICMPEcho) {
	if !e.slot.active {
		return
	}
	if e.slot.src == src && e.slot.id == echo.ID && e.slot.seq == echo.Seq {
		e.slot.received = true
	}
}

// StartPing arms the single ping-wait slot for (id, seq, dst).
func (e *Engine) StartPing(dst uint32, id, seq uint16) {
	e.slot = waitSlot{active: true, id: id, seq: seq, src: dst}
}

// PollPing reports whether the armed ping has been matched.
func (e *Engine) PollPing() bool { return e.slot.active && e.slot.received }

// ClearPing releases the ping-wait slot.
func (e *Engine) ClearPing() { e.slot = waitSlot{} }

// BuildEchoRequest constructs a ready-to-send Echo request packet.
func BuildEchoRequest(id, seq uint16, data []byte) []byte {
	e := wire.ICMPEcho{Type: wire.ICMPTypeEchoRequest, ID: id, Seq: seq, Data: data}
	out := make([]byte, wire.ICMPHeaderSize+len(data))
	e.Marshal(out)
	return out
}

// Ping sends an Echo request to dst (ARP-resolved via send) and blocks
// (spin + 10ms cooperative sleep, spec §5) until a matching reply
// arrives or timeout elapses.
func (e *Engine) Ping(dst uint32, id, seq uint16, data []byte, timeout time.Duration, send func(payload []byte) error, drain func(), now func() time.Time, sleep func(time.Duration)) (time.Duration, error) {
	e.StartPing(dst, id, seq)
	defer e.ClearPing()

	t0 := now()
	if err := send(BuildEchoRequest(id, seq, data)); err != nil {
		return 0, err
	}
	deadline := t0.Add(timeout)
	for now().Before(deadline) {
		drain()
		if e.PollPing() {
			return now().Sub(t0), nil
		}
		sleep(10 * time.Millisecond)
	}
	if e.PollPing() {
		return now().Sub(t0), nil
	}
	return 0, ErrTimeout
}
