//go:build linux

package ifacedev

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIfacedev_Htons_RoundTrip(t *testing.T) {
	t.Parallel()
	require.Equal(t, 0x0608, htons(0x0806)) // EtherTypeARP byte-swapped
	require.Equal(t, 0x0008, htons(0x0800)) // EtherTypeIPv4 byte-swapped
}

func TestIfacedev_Reopener_OpensLoopbackWhenRawSocketsAvailable(t *testing.T) {
	t.Parallel()
	requireRawSockets(t)

	r := NewReopener(nil, "lo")
	dev, err := r.EnsureUp(time.Now())
	require.NoError(t, err)
	require.NotNil(t, dev)
	defer dev.Close()

	mac := dev.MAC()
	_ = mac // loopback has an all-zero MAC; just confirm the call doesn't panic
}

// requireRawSockets skips the test unless this process can open a raw IP
// socket, which needs the same CAP_NET_RAW/root privilege as the AF_PACKET
// socket the device uses, matching
// the gate tools/uping uses around its own raw-socket tests.
func requireRawSockets(t *testing.T) {
	t.Helper()
	c, err := net.ListenIP("ip4:icmp", &net.IPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("raw sockets unavailable: %v", err)
	}
	_ = c.Close()
}
