package ipc

import (
	"encoding/binary"
	"errors"
)

var errShortPayload = errors.New("ipc: payload too short for message type")

// PingReq is MSG_PING_REQ's payload.
type PingReq struct {
	Addr      uint32
	Seq       uint32
	TimeoutMS uint32
}

func (p PingReq) Marshal() []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:4], p.Addr)
	binary.LittleEndian.PutUint32(b[4:8], p.Seq)
	binary.LittleEndian.PutUint32(b[8:12], p.TimeoutMS)
	return b
}

func ParsePingReq(b []byte) (PingReq, error) {
	if len(b) < 12 {
		return PingReq{}, errShortPayload
	}
	return PingReq{
		Addr:      binary.LittleEndian.Uint32(b[0:4]),
		Seq:       binary.LittleEndian.Uint32(b[4:8]),
		TimeoutMS: binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// PingResp is MSG_PING_RESP's payload.
type PingResp struct {
	Status Status
	RTTMS  uint32
}

func (p PingResp) Marshal() []byte {
	b := make([]byte, 8)
	b[0] = byte(p.Status)
	binary.LittleEndian.PutUint32(b[4:8], p.RTTMS)
	return b
}

func ParsePingResp(b []byte) (PingResp, error) {
	if len(b) < 8 {
		return PingResp{}, errShortPayload
	}
	return PingResp{Status: Status(b[0]), RTTMS: binary.LittleEndian.Uint32(b[4:8])}, nil
}

// DNSReq is MSG_DNS_REQ's payload: a length-prefixed hostname.
type DNSReq struct {
	Name      string
	TimeoutMS uint32
}

func (d DNSReq) Marshal() []byte {
	name := []byte(d.Name)
	b := make([]byte, 4+2+len(name))
	binary.LittleEndian.PutUint32(b[0:4], d.TimeoutMS)
	binary.LittleEndian.PutUint16(b[4:6], uint16(len(name)))
	copy(b[6:], name)
	return b
}

func ParseDNSReq(b []byte) (DNSReq, error) {
	if len(b) < 6 {
		return DNSReq{}, errShortPayload
	}
	timeout := binary.LittleEndian.Uint32(b[0:4])
	nameLen := int(binary.LittleEndian.Uint16(b[4:6]))
	if len(b) < 6+nameLen {
		return DNSReq{}, errShortPayload
	}
	return DNSReq{Name: string(b[6 : 6+nameLen]), TimeoutMS: timeout}, nil
}

// DNSResp is MSG_DNS_RESP's payload.
type DNSResp struct {
	Status Status
	Addr   uint32
}

func (d DNSResp) Marshal() []byte {
	b := make([]byte, 8)
	b[0] = byte(d.Status)
	binary.LittleEndian.PutUint32(b[4:8], d.Addr)
	return b
}

func ParseDNSResp(b []byte) (DNSResp, error) {
	if len(b) < 8 {
		return DNSResp{}, errShortPayload
	}
	return DNSResp{Status: Status(b[0]), Addr: binary.LittleEndian.Uint32(b[4:8])}, nil
}

// StatusResp is MSG_STATUS_RESP's payload: a coarse daemon health snapshot.
type StatusResp struct {
	Status       Status
	IfaceUp      bool
	TCPActive    bool
	UptimeMS     uint32
	ARPCacheSize uint32
}

func (s StatusResp) Marshal() []byte {
	b := make([]byte, 12)
	b[0] = byte(s.Status)
	if s.IfaceUp {
		b[1] = 1
	}
	if s.TCPActive {
		b[2] = 1
	}
	binary.LittleEndian.PutUint32(b[4:8], s.UptimeMS)
	binary.LittleEndian.PutUint32(b[8:12], s.ARPCacheSize)
	return b
}

func ParseStatusResp(b []byte) (StatusResp, error) {
	if len(b) < 12 {
		return StatusResp{}, errShortPayload
	}
	return StatusResp{
		Status:       Status(b[0]),
		IfaceUp:      b[1] != 0,
		TCPActive:    b[2] != 0,
		UptimeMS:     binary.LittleEndian.Uint32(b[4:8]),
		ARPCacheSize: binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// LinkListResp is MSG_LINK_LIST_RESP's payload: the single interface
// record this daemon owns.
type LinkListResp struct {
	MAC     [6]byte
	IP      uint32
	Netmask uint32
	Gateway uint32
	Up      bool
}

func (l LinkListResp) Marshal() []byte {
	b := make([]byte, 20)
	copy(b[0:6], l.MAC[:])
	binary.LittleEndian.PutUint32(b[8:12], l.IP)
	binary.LittleEndian.PutUint32(b[12:16], l.Netmask)
	binary.LittleEndian.PutUint32(b[16:20], l.Gateway)
	if l.Up {
		b[6] = 1
	}
	return b
}

func ParseLinkListResp(b []byte) (LinkListResp, error) {
	if len(b) < 20 {
		return LinkListResp{}, errShortPayload
	}
	var l LinkListResp
	copy(l.MAC[:], b[0:6])
	l.Up = b[6] != 0
	l.IP = binary.LittleEndian.Uint32(b[8:12])
	l.Netmask = binary.LittleEndian.Uint32(b[12:16])
	l.Gateway = binary.LittleEndian.Uint32(b[16:20])
	return l, nil
}

// CfgSetReq is MSG_CFG_SET_REQ's payload: replace the static address
// configuration.
type CfgSetReq struct {
	IP, Netmask, Gateway, DNSServer uint32
}

func (c CfgSetReq) Marshal() []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:4], c.IP)
	binary.LittleEndian.PutUint32(b[4:8], c.Netmask)
	binary.LittleEndian.PutUint32(b[8:12], c.Gateway)
	binary.LittleEndian.PutUint32(b[12:16], c.DNSServer)
	return b
}

func ParseCfgSetReq(b []byte) (CfgSetReq, error) {
	if len(b) < 16 {
		return CfgSetReq{}, errShortPayload
	}
	return CfgSetReq{
		IP:        binary.LittleEndian.Uint32(b[0:4]),
		Netmask:   binary.LittleEndian.Uint32(b[4:8]),
		Gateway:   binary.LittleEndian.Uint32(b[8:12]),
		DNSServer: binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}

// CfgGetResp shares CfgSetReq's wire layout (ip, netmask, gateway,
// dns_server): CFG_GET_RESP and CFG_SET_REQ carry the same four fields.
type CfgGetResp = CfgSetReq

// StatusOnly is the payload shape shared by every *Resp that carries
// nothing but a status code (CFG_SET, IFACE_UP, IFACE_DOWN).
type StatusOnly struct{ Status Status }

func (s StatusOnly) Marshal() []byte { return []byte{byte(s.Status)} }

func ParseStatusOnly(b []byte) (StatusOnly, error) {
	if len(b) < 1 {
		return StatusOnly{}, errShortPayload
	}
	return StatusOnly{Status: Status(b[0])}, nil
}

// HTTPGetReq is MSG_HTTP_GET_REQ's payload: a length-prefixed URL.
type HTTPGetReq struct {
	URL       string
	TimeoutMS uint32
}

func (h HTTPGetReq) Marshal() []byte {
	u := []byte(h.URL)
	b := make([]byte, 4+2+len(u))
	binary.LittleEndian.PutUint32(b[0:4], h.TimeoutMS)
	binary.LittleEndian.PutUint16(b[4:6], uint16(len(u)))
	copy(b[6:], u)
	return b
}

func ParseHTTPGetReq(b []byte) (HTTPGetReq, error) {
	if len(b) < 6 {
		return HTTPGetReq{}, errShortPayload
	}
	timeout := binary.LittleEndian.Uint32(b[0:4])
	urlLen := int(binary.LittleEndian.Uint16(b[4:6]))
	if len(b) < 6+urlLen {
		return HTTPGetReq{}, errShortPayload
	}
	return HTTPGetReq{URL: string(b[6 : 6+urlLen]), TimeoutMS: timeout}, nil
}

// HTTPGetBegin is MSG_HTTP_GET_BEGIN's payload.
type HTTPGetBegin struct {
	Status        Status
	HTTPStatus    uint16
	ContentLength uint32
}

func (h HTTPGetBegin) Marshal() []byte {
	b := make([]byte, 8)
	b[0] = byte(h.Status)
	binary.LittleEndian.PutUint16(b[2:4], h.HTTPStatus)
	binary.LittleEndian.PutUint32(b[4:8], h.ContentLength)
	return b
}

// HTTPStageFlag marks whether an HTTP_GET_STAGE message opens or closes a
// stage (spec §4.8).
type HTTPStageFlag uint8

const (
	HTTPStageBegin HTTPStageFlag = 1 << iota
	HTTPStageEnd
)

// HTTPStage names the GET pipeline's stage boundaries, spec §4.8.
type HTTPStage uint8

const (
	HTTPStageParseURL HTTPStage = iota
	HTTPStageDNS
	HTTPStageConnect
	HTTPStageTLSHandshake
	HTTPStageSendRequest
	HTTPStageRecvHeaders
	HTTPStageRecvBody
)

func (s HTTPStage) String() string {
	switch s {
	case HTTPStageParseURL:
		return "PARSE_URL"
	case HTTPStageDNS:
		return "DNS"
	case HTTPStageConnect:
		return "CONNECT"
	case HTTPStageTLSHandshake:
		return "TLS_HANDSHAKE"
	case HTTPStageSendRequest:
		return "SEND_REQUEST"
	case HTTPStageRecvHeaders:
		return "RECV_HEADERS"
	case HTTPStageRecvBody:
		return "RECV_BODY"
	}
	return "unknown"
}

// HTTPGetStage is MSG_HTTP_GET_STAGE's payload. Detail encodes
// (tls_step<<16)|tls_alert for the TLS_HANDSHAKE stage on failure, per the
// "preserve verbatim" decision recorded in DESIGN.md.
type HTTPGetStage struct {
	Stage  HTTPStage
	Status Status
	Detail uint32
	Flags  HTTPStageFlag
}

func (h HTTPGetStage) Marshal() []byte {
	b := make([]byte, 8)
	b[0] = byte(h.Stage)
	b[1] = byte(h.Status)
	b[2] = byte(h.Flags)
	binary.LittleEndian.PutUint32(b[4:8], h.Detail)
	return b
}

// HTTPGetEnd is MSG_HTTP_GET_END's payload.
type HTTPGetEnd struct{ Status Status }

func (h HTTPGetEnd) Marshal() []byte { return []byte{byte(h.Status)} }
