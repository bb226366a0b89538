// Package tcpconn implements the single-connection TCP client engine of
// spec §4.6: a SYN_SENT -> ESTABLISHED -> {FIN_WAIT_1, FIN_WAIT_2,
// CLOSE_WAIT, LAST_ACK} -> CLOSED state machine with a ring-buffered
// receive window, in-order-only segment acceptance, chunked send with
// no retransmit, and graceful close.
package tcpconn

import "fmt"

// State is the connection's TCP state, spec §3.1.
type State uint8

const (
	StateClosed State = iota
	StateSynSent
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateCloseWait
	StateLastAck
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateSynSent:
		return "SYN_SENT"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN_WAIT_1"
	case StateFinWait2:
		return "FIN_WAIT_2"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateLastAck:
		return "LAST_ACK"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// Status is the last-error code surfaced to blocking callers.
type Status uint8

const (
	StatusOK Status = iota
	StatusTimeout
	StatusReset
	StatusUnreachable
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusReset:
		return "RESET"
	case StatusUnreachable:
		return "UNREACHABLE"
	case StatusClosed:
		return "CLOSED"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}
