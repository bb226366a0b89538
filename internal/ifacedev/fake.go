package ifacedev

import "errors"

// FakeDevice is an in-memory Device used by the protocol-stack tests: it
// lets a test inject RX frames and inspect what was written as TX,
// without needing a real AF_PACKET socket.
type FakeDevice struct {
	mac    [6]byte
	up     bool
	rxQ    [][]byte
	TXLog  [][]byte
	closed bool
}

// NewFakeDevice returns a FakeDevice reporting the given MAC and up state.
func NewFakeDevice(mac [6]byte) *FakeDevice {
	return &FakeDevice{mac: mac, up: true}
}

func (f *FakeDevice) MAC() [6]byte { return f.mac }
func (f *FakeDevice) Up() bool     { return f.up }

// SetUp lets a test flip the simulated link state.
func (f *FakeDevice) SetUp(up bool) { f.up = up }

// Inject enqueues a frame to be returned by the next ReadFrame call.
func (f *FakeDevice) Inject(frame []byte) {
	cp := append([]byte(nil), frame...)
	f.rxQ = append(f.rxQ, cp)
}

// ReadFrame pops the oldest injected frame, or ErrWouldBlock if none queued.
func (f *FakeDevice) ReadFrame(buf []byte) (int, error) {
	if len(f.rxQ) == 0 {
		return 0, ErrWouldBlock
	}
	frame := f.rxQ[0]
	f.rxQ = f.rxQ[1:]
	n := copy(buf, frame)
	return n, nil
}

// WriteFrame records the frame for later inspection by the test.
func (f *FakeDevice) WriteFrame(frame []byte) error {
	if f.closed {
		return errors.New("ifacedev: write on closed device")
	}
	f.TXLog = append(f.TXLog, append([]byte(nil), frame...))
	return nil
}

func (f *FakeDevice) Close() error {
	f.closed = true
	return nil
}
