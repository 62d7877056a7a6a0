package session

import (
	"errors"
	"io"
	"sync"

	"github.com/allbin/go-serialhost"
)

var errFakeDevice = errors.New("fake device failure")

// loopbackPort echoes everything written to it back to its reader. Reads
// return at most chunk bytes, and an empty queue reads as a timeout.
type loopbackPort struct {
	mu      sync.Mutex
	path    string
	baud    int
	queue   []byte
	chunk   int
	signals serial.ModemSignals
	failing bool
	eof     bool
	closed  bool
	breakOn bool
	drains  int
}

func newLoopback(path string, baud int) *loopbackPort {
	return &loopbackPort{path: path, baud: baud, chunk: 7}
}

func (p *loopbackPort) fail() error {
	if p.closed {
		return serial.ErrPortClosed
	}
	if p.failing {
		return errFakeDevice
	}
	return nil
}

func (p *loopbackPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail(); err != nil {
		return 0, err
	}
	if len(p.queue) == 0 {
		if p.eof {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := min(len(b), p.chunk, len(p.queue))
	copy(b, p.queue[:n])
	p.queue = p.queue[n:]
	return n, nil
}

func (p *loopbackPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail(); err != nil {
		return 0, err
	}
	n := min(len(b), p.chunk*3)
	p.queue = append(p.queue, b[:n]...)
	return n, nil
}

func (p *loopbackPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return serial.ErrPortClosed
	}
	p.closed = true
	if p.failing {
		return errFakeDevice
	}
	return nil
}

func (p *loopbackPort) BaudRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baud
}

func (p *loopbackPort) SetBaudRate(rate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail(); err != nil {
		return err
	}
	p.baud = rate
	return nil
}

func (p *loopbackPort) SetBreak() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail(); err != nil {
		return err
	}
	p.breakOn = true
	return nil
}

func (p *loopbackPort) ClearBreak() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail(); err != nil {
		return err
	}
	p.breakOn = false
	return nil
}

func (p *loopbackPort) SetRTS(state bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail(); err != nil {
		return err
	}
	p.signals.RTS = state
	// RTS is wired to CTS on the loopback plug
	p.signals.CTS = state
	return nil
}

func (p *loopbackPort) SetDTR(state bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail(); err != nil {
		return err
	}
	p.signals.DTR = state
	p.signals.DSR = state
	p.signals.DCD = state
	return nil
}

func (p *loopbackPort) BytesToRead() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail(); err != nil {
		return 0, err
	}
	return len(p.queue), nil
}

func (p *loopbackPort) BytesToWrite() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return 0, p.fail()
}

func (p *loopbackPort) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail(); err != nil {
		return err
	}
	p.drains++
	return nil
}

func (p *loopbackPort) FlushInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail(); err != nil {
		return err
	}
	p.queue = nil
	return nil
}

func (p *loopbackPort) FlushOutput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fail()
}

func (p *loopbackPort) Flush() error {
	return p.FlushInput()
}

func (p *loopbackPort) GetModemSignals() (serial.ModemSignals, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail(); err != nil {
		return serial.ModemSignals{}, err
	}
	return p.signals, nil
}

func (p *loopbackPort) setFailing(v bool) {
	p.mu.Lock()
	p.failing = v
	p.mu.Unlock()
}

// fakeBus opens loopback ports for a fixed set of device paths
type fakeBus struct {
	mu      sync.Mutex
	devices map[string]bool
	opened  []*loopbackPort
}

func newFakeBus(paths ...string) *fakeBus {
	b := &fakeBus{devices: make(map[string]bool)}
	for _, p := range paths {
		b.devices[p] = true
	}
	return b
}

func (b *fakeBus) open(path string, baud int, _ ...serial.Option) (Port, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.devices[path] {
		return nil, serial.ErrDeviceNotFound
	}
	p := newLoopback(path, baud)
	b.opened = append(b.opened, p)
	return p, nil
}

func (b *fakeBus) last() *loopbackPort {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened[len(b.opened)-1]
}

func newTestDispatcher(paths ...string) (*Dispatcher, *fakeBus) {
	bus := newFakeBus(paths...)
	d := NewDispatcher(
		WithOpener(bus.open),
		WithEnumerator(func() ([]serial.PortInfo, error) { return nil, nil }),
	)
	return d, bus
}
