package daemon

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/malbeclabs/networkd/internal/ipc"
)

// Listen opens the Unix-domain control socket at d.sockPath, removing any
// stale socket file left behind by a prior run.
func (d *Daemon) Listen() error {
	_ = os.Remove(d.sockPath)
	addr, err := net.ResolveUnixAddr("unix", d.sockPath)
	if err != nil {
		return err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return err
	}
	d.listener = ln
	return nil
}

// Close shuts down the listener and every accepted client connection.
func (d *Daemon) Close() error {
	var firstErr error
	if d.listener != nil {
		if err := d.listener.Close(); err != nil {
			firstErr = err
		}
		_ = os.Remove(d.sockPath)
	}
	for i, c := range d.clients {
		if c != nil {
			_ = c.conn.Close()
			d.clients[i] = nil
		}
	}
	return firstErr
}

// acceptPending accepts any client connections currently waiting, up to
// maxClients concurrently connected (spec §3.1's "at most 8 IPC
// clients"); connections beyond that are accepted and closed immediately
// rather than left to block the listener's backlog.
func (d *Daemon) acceptPending() {
	if d.listener == nil {
		return
	}
	for {
		_ = d.listener.SetDeadline(time.Now().Add(time.Microsecond))
		nc, err := d.listener.AcceptUnix()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			return
		}
		slot := d.freeClientSlot()
		if slot < 0 {
			_ = nc.Close()
			continue
		}
		d.clients[slot] = &clientConn{conn: ipc.NewConn(nc)}
	}
}

func (d *Daemon) freeClientSlot() int {
	for i, c := range d.clients {
		if c == nil {
			return i
		}
	}
	return -1
}
