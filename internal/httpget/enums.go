package httpget

import "fmt"

// Stage names the GET pipeline's stage boundaries, spec §4.8.
type Stage uint8

const (
	StageParseURL Stage = iota
	StageDNS
	StageConnect
	StageTLSHandshake
	StageSendRequest
	StageRecvHeaders
	StageRecvBody
)

func (s Stage) String() string {
	switch s {
	case StageParseURL:
		return "PARSE_URL"
	case StageDNS:
		return "DNS"
	case StageConnect:
		return "CONNECT"
	case StageTLSHandshake:
		return "TLS_HANDSHAKE"
	case StageSendRequest:
		return "SEND_REQUEST"
	case StageRecvHeaders:
		return "RECV_HEADERS"
	case StageRecvBody:
		return "RECV_BODY"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// StageFlag marks whether a stage report opens or closes the stage.
type StageFlag uint8

const (
	StageBegin StageFlag = iota
	StageEnd
)

func (f StageFlag) String() string {
	if f == StageBegin {
		return "BEGIN"
	}
	return "END"
}

// Status is httpget's own status enum, mirroring the wire-uniform status
// of spec §6.3; the daemon's IPC handler translates it at the boundary,
// the same translation pattern used between tcpconn/tlsclient and ipc.
type Status uint8

const (
	StatusOK Status = iota
	StatusError
	StatusTimeout
	StatusUnreachable
	StatusUnsupported
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusUnreachable:
		return "UNREACHABLE"
	case StatusUnsupported:
		return "UNSUPPORTED"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}
