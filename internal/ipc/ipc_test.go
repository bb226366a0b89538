package ipc

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIPC_Header_RoundTrip(t *testing.T) {
	t.Parallel()
	h := Header{Magic: Magic, Type: MsgPingReq, Seq: 42, Len: 12, Flags: 0}
	b := MarshalHeader(h)
	got, err := ParseHeader(b[:])
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestIPC_ParseHeader_RejectsBadMagic(t *testing.T) {
	t.Parallel()
	h := Header{Magic: 0xDEAD, Type: MsgHello, Len: 0}
	b := MarshalHeader(h)
	_, err := ParseHeader(b[:])
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestIPC_ParseHeader_RejectsOversizedPayload(t *testing.T) {
	t.Parallel()
	h := Header{Magic: Magic, Type: MsgHTTPGetData, Len: MaxPayload + 1}
	b := MarshalHeader(h)
	_, err := ParseHeader(b[:])
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestIPC_ParseHeader_RejectsShortInput(t *testing.T) {
	t.Parallel()
	_, err := ParseHeader([]byte{1, 2, 3})
	require.Error(t, err)
}

// pipePair returns connected net.Conns suitable for exercising Conn's
// Poll/Next/Send against a real (in-memory) socket.
func pipePair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	client, server = net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func TestIPC_Conn_SendAndReceiveWholeFrame(t *testing.T) {
	t.Parallel()
	client, server := pipePair(t)
	serverConn := NewConn(server)

	payload := PingReq{Addr: 0x01020304, Seq: 7, TimeoutMS: 1000}.Marshal()
	done := make(chan error, 1)
	go func() {
		c := NewConn(client)
		done <- c.Send(MsgPingReq, 7, payload)
	}()

	var msg Message
	var ok bool
	require.Eventually(t, func() bool {
		require.NoError(t, serverConn.Poll())
		var err error
		msg, ok, err = serverConn.Next()
		require.NoError(t, err)
		return ok
	}, time.Second, time.Millisecond)

	require.NoError(t, <-done)
	require.Equal(t, MsgPingReq, msg.Header.Type)
	require.Equal(t, uint32(7), msg.Header.Seq)

	got, err := ParsePingReq(msg.Payload)
	require.NoError(t, err)
	require.Equal(t, PingReq{Addr: 0x01020304, Seq: 7, TimeoutMS: 1000}, got)
}

func TestIPC_Conn_Poll_TimesOutWithoutData(t *testing.T) {
	t.Parallel()
	_, server := pipePair(t)
	c := NewConn(server)
	require.NoError(t, c.Poll())
	_, ok, err := c.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIPC_Conn_Next_AccumulatesPartialFrame(t *testing.T) {
	t.Parallel()
	client, server := pipePair(t)
	serverConn := NewConn(server)

	payload := DNSReq{Name: "example.yula", TimeoutMS: 500}.Marshal()
	hdr := MarshalHeader(Header{Magic: Magic, Type: MsgDNSReq, Seq: 3, Len: uint32(len(payload))})
	frame := append(append([]byte(nil), hdr[:]...), payload...)

	// Write the frame in two halves from the client side, so the server's Poll must accumulate across multiple calls before a
	// full frame is assembled.
	mid := len(frame) / 2
	writeDone := make(chan struct{})
	go func() {
		_, _ = client.Write(frame[:mid])
		time.Sleep(20 * time.Millisecond)
		_, _ = client.Write(frame[mid:])
		close(writeDone)
	}()

	var msg Message
	var ok bool
	require.Eventually(t, func() bool {
		require.NoError(t, serverConn.Poll())
		var err error
		msg, ok, err = serverConn.Next()
		require.NoError(t, err)
		return ok
	}, time.Second, time.Millisecond)

	<-writeDone
	require.Equal(t, MsgDNSReq, msg.Header.Type)
	got, err := ParseDNSReq(msg.Payload)
	require.NoError(t, err)
	require.Equal(t, "example.yula", got.Name)
}

func TestIPC_Messages_StatusOnlyRoundTrip(t *testing.T) {
	t.Parallel()
	b := StatusOnly{Status: StatusUnreachable}.Marshal()
	got, err := ParseStatusOnly(b)
	require.NoError(t, err)
	require.Equal(t, StatusUnreachable, got.Status)
}

func TestIPC_Messages_HTTPGetReqRoundTrip(t *testing.T) {
	t.Parallel()
	req := HTTPGetReq{URL: "http://example.yula/index.html", TimeoutMS: 3000}
	got, err := ParseHTTPGetReq(req.Marshal())
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestIPC_MsgType_StringFallback(t *testing.T) {
	t.Parallel()
	require.Equal(t, "PING_REQ", MsgPingReq.String())
	require.Contains(t, MsgType(9999).String(), "unknown")
}
