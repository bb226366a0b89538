//go:build linux

// Package ifacedev owns the single raw Ethernet device: opening it,
// fetching its MAC address, and non-blocking frame read/write. This is
// the one external collaborator the core protocol stack polls every
// tick; it is specified only by the interface it exposes (open device,
// read/write frames up to ~1500 bytes, MAC ioctl). The device itself
// (tap/af_packet node) lives outside this module's scope.
package ifacedev

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// MaxFrameSize bounds a single Ethernet frame read/write.
const MaxFrameSize = 1600

// ErrWouldBlock is returned by ReadFrame when no frame is currently
// available; callers treat it as "nothing to do this tick".
var ErrWouldBlock = errors.New("ifacedev: would block")

// Device is the interface the core protocol stack depends on. It is
// satisfied both by the real raw-socket device and by a fake used in
// tests.
type Device interface {
	MAC() [6]byte
	ReadFrame(buf []byte) (int, error)
	WriteFrame(frame []byte) error
	Up() bool
	Close() error
}

// RawDevice binds an AF_PACKET raw socket to a named interface and
// serves as the Ethernet device the daemon reads and writes frames on.
type RawDevice struct {
	log     *slog.Logger
	name    string
	fd      int
	ifIndex int
	mac     [6]byte
	up      bool
}

// Open binds a non-blocking AF_PACKET/SOCK_RAW socket to ifaceName and
// resolves its MAC address via the interface's hardware address (the
// "MAC ioctl" of spec §4.3's iface_ensure_up).
func Open(log *slog.Logger, ifaceName string) (*RawDevice, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, htons(unix.ETH_P_ALL))
	if err != nil {
		return nil, fmt.Errorf("ifacedev: socket: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("ifacedev: lookup interface %q: %w", ifaceName, err)
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: uint16(htons(unix.ETH_P_ALL)),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, sa); err != nil {
		return nil, fmt.Errorf("ifacedev: bind: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("ifacedev: set nonblock: %w", err)
	}

	var mac [6]byte
	if len(ifi.HardwareAddr) == 6 {
		copy(mac[:], ifi.HardwareAddr)
	}

	ok = true
	return &RawDevice{
		log:     log,
		name:    ifaceName,
		fd:      fd,
		ifIndex: ifi.Index,
		mac:     mac,
		up:      ifi.Flags&net.FlagUp != 0,
	}, nil
}

// MAC returns the interface's hardware address.
func (d *RawDevice) MAC() [6]byte { return d.mac }

// Up reports the last-probed interface up/down state.
func (d *RawDevice) Up() bool { return d.up }

// ReadFrame performs a single non-blocking read; ErrWouldBlock means no
// frame is pending right now, not an error condition worth logging.
func (d *RawDevice) ReadFrame(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(d.fd, buf, 0)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, ErrWouldBlock
		}
		return 0, fmt.Errorf("ifacedev: recvfrom: %w", err)
	}
	return n, nil
}

// WriteFrame sends a single Ethernet frame.
func (d *RawDevice) WriteFrame(frame []byte) error {
	sa := &unix.SockaddrLinklayer{
		Protocol: uint16(htons(unix.ETH_P_ALL)),
		Ifindex:  d.ifIndex,
		Halen:    6,
	}
	copy(sa.Addr[:6], frame[0:6])
	if err := unix.Sendto(d.fd, frame, 0, sa); err != nil {
		return fmt.Errorf("ifacedev: sendto: %w", err)
	}
	return nil
}

// Close releases the underlying socket.
func (d *RawDevice) Close() error { return unix.Close(d.fd) }

// Probe re-checks the kernel's reported link state, per spec §4.3's
// periodic up/down probing; callers call this on a ~1s tick.
func (d *RawDevice) Probe() {
	ifi, err := net.InterfaceByName(d.name)
	if err != nil {
		d.up = false
		if d.log != nil {
			d.log.Warn("ifacedev: probe failed", "iface", d.name, "err", err)
		}
		return
	}
	d.up = ifi.Flags&net.FlagUp != 0
}

// Reopener wraps Open with a 1-second retry, matching spec §4.3's
// "reopens on failure (1-second retry on a periodic tick)".
type Reopener struct {
	log       *slog.Logger
	ifaceName string
	lastTry   time.Time
	dev       *RawDevice
}

// NewReopener creates a reopener that lazily opens the device the first
// time EnsureUp is called.
func NewReopener(log *slog.Logger, ifaceName string) *Reopener {
	return &Reopener{log: log, ifaceName: ifaceName}
}

// EnsureUp returns the current device, opening or reopening it if
// necessary, at most once per second.
func (r *Reopener) EnsureUp(now time.Time) (*RawDevice, error) {
	if r.dev != nil {
		r.dev.Probe()
		if r.dev.Up() {
			return r.dev, nil
		}
	}
	if !r.lastTry.IsZero() && now.Sub(r.lastTry) < time.Second {
		if r.dev != nil {
			return r.dev, nil
		}
		return nil, errors.New("ifacedev: waiting for retry interval")
	}
	r.lastTry = now
	dev, err := Open(r.log, r.ifaceName)
	if err != nil {
		if r.log != nil {
			r.log.Warn("ifacedev: reopen failed", "iface", r.ifaceName, "err", err)
		}
		return r.dev, err
	}
	if r.dev != nil {
		_ = r.dev.Close()
	}
	r.dev = dev
	return r.dev, nil
}

func htons(v int) int {
	return int(uint16(v)<<8 | uint16(v)>>8)
}
