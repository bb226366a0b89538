package daemon

import (
	"errors"
	"time"

	"github.com/malbeclabs/networkd/internal/dnsstub"
	"github.com/malbeclabs/networkd/internal/httpget"
	"github.com/malbeclabs/networkd/internal/ipc"
	"github.com/malbeclabs/networkd/internal/metrics"
	"github.com/malbeclabs/networkd/internal/ipv4"
	"github.com/malbeclabs/networkd/internal/tcpconn"
	"github.com/malbeclabs/networkd/internal/wire"
)

// dispatch routes one fully-decoded client message to its handler and
// writes back zero or more response frames, spec §4.9 step 4.
func (d *Daemon) dispatch(c *clientConn, msg ipc.Message) {
	seq := msg.Header.Seq
	switch msg.Header.Type {
	case ipc.MsgHello:
		_ = c.conn.Send(ipc.MsgHello, seq, nil)

	case ipc.MsgStatusReq:
		resp := ipc.StatusResp{
			Status:       ipc.StatusOK,
			IfaceUp:      d.enabled && d.dev.Up(),
			TCPActive:    d.conn.State() == tcpconn.StateEstablished,
			UptimeMS:     d.uptimeMS(),
			ARPCacheSize: uint32(d.arpEng.Cache().Size()),
		}
		_ = c.conn.Send(ipc.MsgStatusResp, seq, resp.Marshal())

	case ipc.MsgLinkListReq:
		resp := ipc.LinkListResp{
			MAC:     d.dev.MAC(),
			IP:      d.cfg.IP,
			Netmask: d.cfg.Netmask,
			Gateway: d.cfg.Gateway,
			Up:      d.enabled && d.dev.Up(),
		}
		_ = c.conn.Send(ipc.MsgLinkListResp, seq, resp.Marshal())

	case ipc.MsgPingReq:
		req, err := ipc.ParsePingReq(msg.Payload)
		if err != nil {
			_ = c.conn.Send(ipc.MsgPingResp, seq, ipc.PingResp{Status: ipc.StatusUnsupported}.Marshal())
			return
		}
		resp := d.handlePing(req)
		_ = c.conn.Send(ipc.MsgPingResp, seq, resp.Marshal())

	case ipc.MsgDNSReq:
		req, err := ipc.ParseDNSReq(msg.Payload)
		if err != nil {
			_ = c.conn.Send(ipc.MsgDNSResp, seq, ipc.DNSResp{Status: ipc.StatusUnsupported}.Marshal())
			return
		}
		resp := d.handleDNS(req)
		_ = c.conn.Send(ipc.MsgDNSResp, seq, resp.Marshal())

	case ipc.MsgCfgGetReq:
		resp := ipc.CfgGetResp{IP: d.cfg.IP, Netmask: d.cfg.Netmask, Gateway: d.cfg.Gateway, DNSServer: d.cfg.DNSServer}
		_ = c.conn.Send(ipc.MsgCfgGetResp, seq, resp.Marshal())

	case ipc.MsgCfgSetReq:
		req, err := ipc.ParseCfgSetReq(msg.Payload)
		if err != nil {
			_ = c.conn.Send(ipc.MsgCfgSetResp, seq, ipc.StatusOnly{Status: ipc.StatusUnsupported}.Marshal())
			return
		}
		// Re-addressing the live ARP/IPv4 identity mid-session is out of
		// scope (see DESIGN.md): the new values take effect for
		// reporting (STATUS/LINK_LIST/CFG_GET) immediately, and for the
		// wire stack itself on the next restart.
		d.cfg = StaticConfig{IP: req.IP, Netmask: req.Netmask, Gateway: req.Gateway, DNSServer: req.DNSServer}
		_ = c.conn.Send(ipc.MsgCfgSetResp, seq, ipc.StatusOnly{Status: ipc.StatusOK}.Marshal())

	case ipc.MsgIfaceUpReq:
		d.enabled = true
		_ = c.conn.Send(ipc.MsgIfaceUpResp, seq, ipc.StatusOnly{Status: ipc.StatusOK}.Marshal())

	case ipc.MsgIfaceDownReq:
		d.enabled = false
		_ = c.conn.Send(ipc.MsgIfaceDownResp, seq, ipc.StatusOnly{Status: ipc.StatusOK}.Marshal())

	case ipc.MsgHTTPGetReq:
		req, err := ipc.ParseHTTPGetReq(msg.Payload)
		if err != nil {
			_ = c.conn.Send(ipc.MsgHTTPGetEnd, seq, ipc.HTTPGetEnd{Status: ipc.StatusUnsupported}.Marshal())
			return
		}
		d.handleHTTPGet(c, seq, req)
	}
}

func (d *Daemon) handlePing(req ipc.PingReq) ipc.PingResp {
	timeout := msOrDefault(req.TimeoutMS)
	resolve := func(ip uint32) (wire.MAC, bool) {
		return d.arpEng.Resolve(devicePoller{d}, ip, timeout, d.now, d.sleep)
	}
	send := func(payload []byte) error {
		return d.stack.Send(req.Addr, wire.IPProtoICMP, payload, resolve, d.xmit)
	}
	id := d.rnd.Uint16()
	rtt, err := d.icmpEng.Ping(req.Addr, id, uint16(req.Seq), nil, timeout, send, devicePoller{d}.Drain, d.now, d.sleep)
	if err != nil {
		status := ipc.StatusTimeout
		if errors.Is(err, ipv4.ErrNoRoute) {
			status = ipc.StatusUnreachable
		}
		return ipc.PingResp{Status: status}
	}
	return ipc.PingResp{Status: ipc.StatusOK, RTTMS: uint32(rtt.Milliseconds())}
}

func (d *Daemon) handleDNS(req ipc.DNSReq) ipc.DNSResp {
	timeout := msOrDefault(req.TimeoutMS)
	addr, err := d.dns.Query(req.Name, timeout, d.dnsSend, devicePoller{d}.Drain, d.now, d.sleep)
	if err != nil {
		status := ipc.StatusError
		if errors.Is(err, dnsstub.ErrTimeout) {
			status = ipc.StatusTimeout
		}
		return ipc.DNSResp{Status: status}
	}
	return ipc.DNSResp{Status: ipc.StatusOK, Addr: addr}
}

func (d *Daemon) handleHTTPGet(c *clientConn, seq uint32, req ipc.HTTPGetReq) {
	timeout := msOrDefault(req.TimeoutMS)
	rep := &httpReporter{conn: c.conn, seq: seq}
	res := d.getter.Get(req.URL, timeout, d.uptimeMS(), rep, devicePoller{d}.Drain, d.now, d.sleep)
	metrics.HTTPGetsTotal.WithLabelValues(res.Status.String()).Inc()
	_ = c.conn.Send(ipc.MsgHTTPGetEnd, seq, ipc.HTTPGetEnd{Status: toIPCStatus(res.Status)}.Marshal())
}

// httpReporter implements httpget.Reporter by writing each progress event
// straight back to the originating client as a framed IPC message, spec
// §4.8's BEGIN/STAGE/DATA/END sequence.
type httpReporter struct {
	conn *ipc.Conn
	seq  uint32
}

func (r *httpReporter) Stage(stage httpget.Stage, flag httpget.StageFlag, status httpget.Status, detail uint32) {
	if stage == httpget.StageTLSHandshake && flag == httpget.StageEnd {
		outcome := metrics.OutcomeOK
		if status != httpget.StatusOK {
			outcome = metrics.OutcomeError
		}
		metrics.TLSHandshakesTotal.WithLabelValues(outcome).Inc()
	}
	msg := ipc.HTTPGetStage{Stage: toIPCStage(stage), Status: toIPCStatus(status), Detail: detail, Flags: toIPCStageFlag(flag)}
	_ = r.conn.Send(ipc.MsgHTTPGetStage, r.seq, msg.Marshal())
}

func (r *httpReporter) Head(status httpget.Status, httpStatus int, contentLength int64) {
	msg := ipc.HTTPGetBegin{Status: toIPCStatus(status), HTTPStatus: uint16(httpStatus), ContentLength: uint32(contentLength)}
	_ = r.conn.Send(ipc.MsgHTTPGetBegin, r.seq, msg.Marshal())
}

func (r *httpReporter) Data(chunk []byte) {
	_ = r.conn.Send(ipc.MsgHTTPGetData, r.seq, chunk)
}

func toIPCStatus(s httpget.Status) ipc.Status { return ipc.Status(s) }

func toIPCStage(s httpget.Stage) ipc.HTTPStage { return ipc.HTTPStage(s) }

func toIPCStageFlag(f httpget.StageFlag) ipc.HTTPStageFlag {
	if f == httpget.StageEnd {
		return ipc.HTTPStageEnd
	}
	return ipc.HTTPStageBegin
}

func msOrDefault(ms uint32) time.Duration {
	if ms == 0 {
		return defaultTimeout
	}
	return time.Duration(ms) * time.Millisecond
}
