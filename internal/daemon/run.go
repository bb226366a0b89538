package daemon

import (
	"context"
)

// Tick runs one iteration of the event loop, spec §4.9: accept pending
// clients, drain the device, then drain and dispatch every client's
// buffered requests.
func (d *Daemon) Tick() {
	d.acceptPending()
	d.refreshDevice()
	if d.enabled {
		d.drainDevice()
	}
	d.observeTick()
	for i, c := range d.clients {
		if c == nil {
			continue
		}
		if err := c.conn.Poll(); err != nil {
			_ = c.conn.Close()
			d.clients[i] = nil
			continue
		}
		for {
			msg, ok, err := c.conn.Next()
			if err != nil {
				_ = c.conn.Close()
				d.clients[i] = nil
				break
			}
			if !ok {
				break
			}
			d.dispatch(c, msg)
		}
	}
}

// Run opens the listener if not already open and ticks forever at
// tickInterval until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if d.listener == nil {
		if err := d.Listen(); err != nil {
			return err
		}
	}
	defer d.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		d.Tick()
		d.sleep(tickInterval)
	}
}
