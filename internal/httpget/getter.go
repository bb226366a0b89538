package httpget

import (
	"errors"
	"time"

	"github.com/malbeclabs/networkd/internal/arp"
	"github.com/malbeclabs/networkd/internal/dnsstub"
	"github.com/malbeclabs/networkd/internal/tcpconn"
	"github.com/malbeclabs/networkd/internal/tlsclient"
	"github.com/malbeclabs/networkd/internal/wire"
)

// maxRedirects bounds the Location-header chase of spec §4.8.
const maxRedirects = 4

// maxBodyChunk is the body read granularity of spec §4.8.
const maxBodyChunk = 512

// Reporter receives the live progress stream a GET produces: one stage
// event per boundary (flags distinguish open/close), one Head call once
// the response headers are known (mapping to HTTP_GET_BEGIN), and one
// Data call per body chunk as it is read.
type Reporter interface {
	Stage(stage Stage, flag StageFlag, status Status, detail uint32)
	Head(status Status, httpStatus int, contentLength int64)
	Data(chunk []byte)
}

// Result is the terminal outcome of a GET.
type Result struct {
	Status        Status
	HTTPStatus    int
	ContentLength int64 // -1 when not known up front (chunked / until-close)
}

// Getter owns the dependencies a GET needs to drive DNS, ARP, TCP, and TLS
// itself; the daemon constructs one bound to its single interface/ARP/DNS/
// TCP-connection records (spec §3.1's "at most one TCP connection"
// invariant: Getter reuses the same *tcpconn.Conn across redirects).
type Getter struct {
	dns     *dnsstub.Resolver
	dnsSend dnsstub.Sender
	arpEng  *arp.Engine
	poller  arp.Poller
	conn    *tcpconn.Conn
	rnd     tlsclient.RandSource
}

// NewGetter builds a Getter bound to the daemon's shared engines.
func NewGetter(dns *dnsstub.Resolver, dnsSend dnsstub.Sender, arpEng *arp.Engine, poller arp.Poller, conn *tcpconn.Conn, rnd tlsclient.RandSource) *Getter {
	return &Getter{dns: dns, dnsSend: dnsSend, arpEng: arpEng, poller: poller, conn: conn, rnd: rnd}
}

// Get runs the full GET pipeline, following redirects, reporting every
// stage boundary and body chunk to rep, and returning the terminal result.
// uptimeMS seeds the TCP ISS the same way the daemon's other TCP users do.
func (g *Getter) Get(rawURL string, timeout time.Duration, uptimeMS uint32, rep Reporter, drain func(), now func() time.Time, sleep func(time.Duration)) Result {
	current := rawURL
	for i := 0; i <= maxRedirects; i++ {
		res, location, redirect := g.getOnce(current, timeout, uptimeMS, rep, drain, now, sleep)
		if !redirect {
			return res
		}
		if i == maxRedirects {
			return Result{Status: StatusError}
		}
		current = location
	}
	return Result{Status: StatusError}
}

func (g *Getter) getOnce(rawURL string, timeout time.Duration, uptimeMS uint32, rep Reporter, drain func(), now func() time.Time, sleep func(time.Duration)) (res Result, location string, redirect bool) {
	rep.Stage(StageParseURL, StageBegin, StatusOK, 0)
	u, err := ParseURL(rawURL)
	if err != nil {
		rep.Stage(StageParseURL, StageEnd, StatusError, 0)
		return Result{Status: StatusError}, "", false
	}
	rep.Stage(StageParseURL, StageEnd, StatusOK, 0)

	addr, status := g.resolveHost(u.Host, timeout, rep, drain, now, sleep)
	if status != StatusOK {
		return Result{Status: status}, "", false
	}

	destMAC, status := g.resolveLink(addr, timeout, rep, drain, now, sleep)
	if status != StatusOK {
		return Result{Status: status}, "", false
	}

	rep.Stage(StageConnect, StageBegin, StatusOK, 0)
	if err := g.conn.Connect(addr, u.Port, destMAC, uptimeMS, timeout, drain, now, sleep); err != nil {
		rep.Stage(StageConnect, StageEnd, statusForTCP(g.conn.LastErr()), 0)
		return Result{Status: statusForTCP(g.conn.LastErr())}, "", false
	}
	rep.Stage(StageConnect, StageEnd, StatusOK, 0)

	var s stream = g.conn
	if u.HTTPS {
		tlsc := tlsclient.NewClient(g.conn)
		rep.Stage(StageTLSHandshake, StageBegin, StatusOK, 0)
		if err := tlsc.Handshake(g.rnd, timeout, drain, now, sleep); err != nil {
			detail := uint32(tlsc.Step())<<16 | uint32(tlsc.Alert())
			st := statusForTLS(tlsc.Status())
			rep.Stage(StageTLSHandshake, StageEnd, st, detail)
			_ = tlsc.Close(timeout, drain, now, sleep)
			return Result{Status: st}, "", false
		}
		rep.Stage(StageTLSHandshake, StageEnd, StatusOK, 0)
		s = tlsc
	}

	rep.Stage(StageSendRequest, StageBegin, StatusOK, 0)
	reqLine := BuildRequestLine(u)
	if err := s.Send(reqLine, timeout, drain, now, sleep); err != nil {
		rep.Stage(StageSendRequest, StageEnd, StatusError, 0)
		_ = s.Close(timeout, drain, now, sleep)
		return Result{Status: StatusError}, "", false
	}
	rep.Stage(StageSendRequest, StageEnd, StatusOK, 0)

	rep.Stage(StageRecvHeaders, StageBegin, StatusOK, 0)
	br := newBufReader(s)
	deadline := now().Add(timeout)
	headBlock, err := br.readUntil(headerTerminator, deadline, drain, now, sleep)
	if err != nil {
		rep.Stage(StageRecvHeaders, StageEnd, statusForStreamErr(err), 0)
		_ = s.Close(timeout, drain, now, sleep)
		return Result{Status: statusForStreamErr(err)}, "", false
	}
	head, err := parseResponseHead(headBlock[:len(headBlock)-len(headerTerminator)])
	if err != nil {
		rep.Stage(StageRecvHeaders, StageEnd, StatusError, 0)
		_ = s.Close(timeout, drain, now, sleep)
		return Result{Status: StatusError}, "", false
	}
	rep.Stage(StageRecvHeaders, StageEnd, StatusOK, 0)

	mode, contentLength := head.bodyMode()

	if head.StatusCode >= 400 {
		rep.Head(StatusError, head.StatusCode, contentLength)
		_ = s.Close(timeout, drain, now, sleep)
		return Result{Status: StatusError, HTTPStatus: head.StatusCode}, "", false
	}

	if isRedirectStatus(head.StatusCode) {
		// Redirect hops never reach a reported Head/RECV_BODY: only the
		// terminal response of the chain gets HTTP_GET_BEGIN's fields.
		loc, ok := head.Headers.get("Location")
		_ = s.Close(timeout, drain, now, sleep)
		if !ok {
			return Result{Status: StatusError, HTTPStatus: head.StatusCode}, "", false
		}
		next, err := resolveRedirect(u, loc)
		if err != nil {
			return Result{Status: StatusError, HTTPStatus: head.StatusCode}, "", false
		}
		return Result{}, rebuildURL(next), true
	}

	res = Result{Status: StatusOK, HTTPStatus: head.StatusCode, ContentLength: contentLength}
	rep.Head(StatusOK, head.StatusCode, contentLength)

	rep.Stage(StageRecvBody, StageBegin, StatusOK, 0)
	bodyErr := g.readBody(br, mode, contentLength, timeout, rep, drain, now, sleep)
	if bodyErr != nil {
		rep.Stage(StageRecvBody, StageEnd, statusForStreamErr(bodyErr), 0)
		_ = s.Close(timeout, drain, now, sleep)
		return Result{Status: statusForStreamErr(bodyErr), HTTPStatus: head.StatusCode}, "", false
	}
	rep.Stage(StageRecvBody, StageEnd, StatusOK, 0)

	_ = s.Close(timeout, drain, now, sleep)
	return res, "", false
}

func rebuildURL(u URL) string {
	scheme := "http://"
	defaultPort := uint16(80)
	if u.HTTPS {
		scheme = "https://"
		defaultPort = 443
	}
	s := scheme + u.Host
	if u.Port != defaultPort {
		s += ":" + itoa(u.Port)
	}
	return s + u.Path
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}
	var b [5]byte
	i := len(b)
	for v > 0 {
		i--
		b[i] = byte('0' + v%10)
		v /= 10
	}
	return string(b[i:])
}

// resolveHost resolves u.Host to an IPv4 address, skipping DNS entirely
// for a dotted-quad literal.
func (g *Getter) resolveHost(host string, timeout time.Duration, rep Reporter, drain func(), now func() time.Time, sleep func(time.Duration)) (uint32, Status) {
	if addr, ok := wire.ParseIPv4String(host); ok {
		rep.Stage(StageDNS, StageBegin, StatusOK, 0)
		rep.Stage(StageDNS, StageEnd, StatusOK, 0)
		return addr, StatusOK
	}
	rep.Stage(StageDNS, StageBegin, StatusOK, 0)
	addr, err := g.dns.Query(host, timeout, g.dnsSend, drain, now, sleep)
	if err != nil {
		st := StatusError
		if errors.Is(err, dnsstub.ErrTimeout) {
			st = StatusTimeout
		}
		rep.Stage(StageDNS, StageEnd, st, 0)
		return 0, st
	}
	rep.Stage(StageDNS, StageEnd, StatusOK, 0)
	return addr, StatusOK
}

func (g *Getter) resolveLink(addr uint32, timeout time.Duration, rep Reporter, drain func(), now func() time.Time, sleep func(time.Duration)) (wire.MAC, Status) {
	mac, ok := g.arpEng.Resolve(g.poller, addr, timeout, now, sleep)
	if !ok {
		return wire.MAC{}, StatusUnreachable
	}
	return mac, StatusOK
}

// readBody drains the response body per mode, reporting each chunk via
// rep.Data as it is read.
func (g *Getter) readBody(br *bufReader, mode bodyMode, contentLength int64, timeout time.Duration, rep Reporter, drain func(), now func() time.Time, sleep func(time.Duration)) error {
	deadline := now().Add(timeout)
	switch mode {
	case bodyModeContentLength:
		var remaining = contentLength
		for remaining > 0 {
			n := int64(maxBodyChunk)
			if n > remaining {
				n = remaining
			}
			chunk, err := br.readN(int(n), deadline, drain, now, sleep)
			if err != nil {
				return err
			}
			rep.Data(chunk)
			remaining -= int64(len(chunk))
		}
		return nil
	case bodyModeChunked:
		return g.readChunkedBody(br, deadline, rep, drain, now, sleep)
	default: // bodyModeUntilClose
		for {
			chunk, err := br.readSome(maxBodyChunk, deadline, drain, now, sleep)
			if err != nil {
				return err
			}
			if chunk == nil {
				return nil
			}
			rep.Data(chunk)
		}
	}
}

func (g *Getter) readChunkedBody(br *bufReader, deadline time.Time, rep Reporter, drain func(), now func() time.Time, sleep func(time.Duration)) error {
	for {
		line, err := br.readLine(deadline, drain, now, sleep)
		if err != nil {
			return err
		}
		size, ok := parseChunkSize(line)
		if !ok {
			return ErrMalformedResponse
		}
		if size == 0 {
			break
		}
		for remaining := size; remaining > 0; {
			n := remaining
			if n > maxBodyChunk {
				n = maxBodyChunk
			}
			chunk, err := br.readN(n, deadline, drain, now, sleep)
			if err != nil {
				return err
			}
			rep.Data(chunk)
			remaining -= len(chunk)
		}
		if _, err := br.readN(2, deadline, drain, now, sleep); err != nil { // trailing CRLF
			return err
		}
	}
	// drain trailer lines up to the blank line.
	for {
		line, err := br.readLine(deadline, drain, now, sleep)
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
	}
}

func parseChunkSize(line string) (int, bool) {
	if i := indexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	if line == "" {
		return 0, false
	}
	n := 0
	for _, c := range line {
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c >= 'a' && c <= 'f':
			d = int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = int(c-'A') + 10
		default:
			return 0, false
		}
		n = n*16 + d
	}
	return n, true
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func statusForTCP(s tcpconn.Status) Status {
	switch s {
	case tcpconn.StatusOK:
		return StatusOK
	case tcpconn.StatusTimeout:
		return StatusTimeout
	case tcpconn.StatusReset, tcpconn.StatusUnreachable:
		return StatusUnreachable
	default:
		return StatusError
	}
}

func statusForTLS(s tlsclient.Status) Status {
	switch s {
	case tlsclient.StatusOK:
		return StatusOK
	case tlsclient.StatusTimeout:
		return StatusTimeout
	case tlsclient.StatusUnsupported:
		return StatusUnsupported
	default:
		return StatusError
	}
}

func statusForStreamErr(err error) Status {
	if errors.Is(err, errStreamTimeout) {
		return StatusTimeout
	}
	return StatusError
}
