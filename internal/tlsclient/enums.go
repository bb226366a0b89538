package tlsclient

import "fmt"

// Step names the handshake action hs_step is set to immediately before it
// runs, per spec §4.7's externally-observable progress sequence.
type Step uint8

const (
	StepBuildClientHello Step = iota
	StepSendClientHello
	StepRecvServerHello
	StepParseServerHello
	StepRecvServerFinished
	StepSendClientFinished
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepBuildClientHello:
		return "BUILD_CLIENT_HELLO"
	case StepSendClientHello:
		return "SEND_CLIENT_HELLO"
	case StepRecvServerHello:
		return "RECV_SERVER_HELLO"
	case StepParseServerHello:
		return "PARSE_SERVER_HELLO"
	case StepRecvServerFinished:
		return "RECV_SERVER_FINISHED"
	case StepSendClientFinished:
		return "SEND_CLIENT_FINISHED"
	case StepDone:
		return "DONE"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// Status is the coarse handshake outcome, spec §4.7/§6.3.
type Status uint8

const (
	StatusOK Status = iota
	StatusTimeout
	StatusError
	StatusUnsupported
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusError:
		return "ERROR"
	case StatusUnsupported:
		return "UNSUPPORTED"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// Alert encodes either a peer TLS alert (level<<8 | description) or, with
// the high bit of the upper byte set, an internal failure reason that
// never appeared on the wire (spec §4.7's hs_alert).
type Alert uint16

const (
	alertInternalBit = 0x8000

	AlertIOError        Alert = alertInternalBit | 1
	AlertUnexpectedEOF  Alert = alertInternalBit | 2
	AlertDecryptFailure Alert = alertInternalBit | 3
	AlertHRRViolation   Alert = alertInternalBit | 4
	AlertSelfTestFailed Alert = alertInternalBit | 5
	AlertMalformed      Alert = alertInternalBit | 6
)

func (a Alert) String() string {
	if a&alertInternalBit != 0 {
		switch a {
		case AlertIOError:
			return "internal(io_error)"
		case AlertUnexpectedEOF:
			return "internal(eof)"
		case AlertDecryptFailure:
			return "internal(decrypt_failure)"
		case AlertHRRViolation:
			return "internal(hrr_violation)"
		case AlertSelfTestFailed:
			return "internal(self_test_failed)"
		case AlertMalformed:
			return "internal(malformed)"
		}
		return fmt.Sprintf("internal(unknown(%d))", uint16(a)&^alertInternalBit)
	}
	level := byte(a >> 8)
	desc := byte(a)
	return fmt.Sprintf("peer(level=%d,desc=%d)", level, desc)
}

// ProtectionLevel is the current read or write record-protection state
// (spec §4.7 step 6/8/10).
type ProtectionLevel uint8

const (
	ProtectionNone ProtectionLevel = iota
	ProtectionHandshake
	ProtectionApplication
)

func (p ProtectionLevel) String() string {
	switch p {
	case ProtectionNone:
		return "NONE"
	case ProtectionHandshake:
		return "HANDSHAKE"
	case ProtectionApplication:
		return "APPLICATION"
	}
	return fmt.Sprintf("unknown(%d)", uint8(p))
}
