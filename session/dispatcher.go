// Package session owns open serial ports on behalf of a host and exposes
// them through small integer handles.
//
// A Dispatcher pairs a Registry with the operations a host may run against a
// handle. Every operation is synchronous: it resolves the handle, locks that
// handle's port for the duration of the call and invokes one port primitive.
// Operations on different handles run concurrently.
//
// Failures are always returned as *OpError. An unknown or closed handle
// unwraps to ErrUnknownHandle; device failures unwrap to the error of the
// port primitive (serial.ErrPortClosed, an errno, ...).
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/allbin/go-serialhost"
)

// MaxReadLength bounds a single Read request
const MaxReadLength = 16 << 20

// readChunk is the buffer size ReadAll grows by
const readChunk = 4096

// Opener opens the port resource for a new session
type Opener func(path string, baud int, opts ...serial.Option) (Port, error)

// Enumerator lists the serial devices of the system
type Enumerator func() ([]serial.PortInfo, error)

// OpenSerial opens path with serial.Open. The baud rate overrides any rate
// given in opts.
func OpenSerial(path string, baud int, opts ...serial.Option) (Port, error) {
	opts = append(opts[:len(opts):len(opts)], serial.WithBaudRate(baud))
	return serial.Open(path, opts...)
}

// Dispatcher runs port operations against the handles of one Registry
type Dispatcher struct {
	registry  *Registry
	open      Opener
	enumerate Enumerator
	portOpts  []serial.Option
	log       *slog.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the logger for session lifecycle and failures
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithOpener replaces serial.Open as the way ports are opened
func WithOpener(o Opener) Option {
	return func(d *Dispatcher) { d.open = o }
}

// WithEnumerator replaces serial.ListPortDetails
func WithEnumerator(e Enumerator) Option {
	return func(d *Dispatcher) { d.enumerate = e }
}

// WithPortOptions sets the options every Open passes to the opener, e.g.
// framing and read timeout
func WithPortOptions(opts ...serial.Option) Option {
	return func(d *Dispatcher) { d.portOpts = append(d.portOpts, opts...) }
}

// WithRegistry makes the Dispatcher use an existing registry
func WithRegistry(r *Registry) Option {
	return func(d *Dispatcher) { d.registry = r }
}

// NewDispatcher returns a Dispatcher with its own empty Registry
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		open:      OpenSerial,
		enumerate: serial.ListPortDetails,
		log:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = NewRegistry()
	}
	return d
}

// Registry returns the registry holding the dispatcher's ports
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// with runs fn on the port behind h while holding the handle's lock
func (d *Dispatcher) with(op string, h Handle, fn func(Port) error) error {
	e, ok := d.registry.Lookup(h)
	if !ok {
		return d.unknown(op, h)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Close removed the entry after our lookup
	if e.closed {
		return d.unknown(op, h)
	}

	if err := fn(e.port); err != nil {
		d.log.Warn("port operation failed", "op", op, "handle", h, "path", e.path, "error", err)
		return &OpError{Op: op, Handle: h, Path: e.path, Err: err}
	}
	return nil
}

func (d *Dispatcher) unknown(op string, h Handle) error {
	d.log.Debug("unknown handle", "op", op, "handle", h)
	return &OpError{Op: op, Handle: h, Err: ErrUnknownHandle}
}

// ListPorts enumerates the serial devices of the system
func (d *Dispatcher) ListPorts() ([]serial.PortInfo, error) {
	ports, err := d.enumerate()
	if err != nil {
		d.log.Warn("port enumeration failed", "error", err)
		return nil, err
	}
	if ports == nil {
		ports = []serial.PortInfo{}
	}
	return ports, nil
}

// Open opens the device at path and registers it under the lowest free
// handle. A failed open allocates nothing.
func (d *Dispatcher) Open(path string, baud int) (Handle, error) {
	p, err := d.open(path, baud, d.portOpts...)
	if err != nil {
		d.log.Warn("open failed", "path", path, "baud", baud, "error", err)
		return 0, &OpError{Op: "open", Path: path, Err: err}
	}

	e := newEntry(p, path)
	h := d.registry.Add(e)
	d.log.Info("port opened", "handle", h, "path", path, "baud", baud, "session", e.id.String())
	return h, nil
}

// Close closes the port behind h and frees the handle. The handle is
// released even if closing the device reports an error.
func (d *Dispatcher) Close(h Handle) error {
	e, ok := d.registry.Remove(h)
	if !ok {
		return d.unknown("close", h)
	}

	// Wait for an operation in flight on this handle
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	err := e.port.Close()
	d.log.Info("port closed", "handle", h, "path", e.path, "session", e.id.String())
	if err != nil {
		return &OpError{Op: "close", Handle: h, Path: e.path, Err: err}
	}
	return nil
}

// CloseAll closes every open handle
func (d *Dispatcher) CloseAll() error {
	var errs []error
	for _, h := range d.registry.Handles() {
		if err := d.Close(h); err != nil && !IsUnknownHandle(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Info describes the session behind h
func (d *Dispatcher) Info(h Handle) (Info, error) {
	e, ok := d.registry.Lookup(h)
	if !ok {
		return Info{}, d.unknown("info", h)
	}
	return e.Info(), nil
}

// Handles returns the open handles in ascending order
func (d *Dispatcher) Handles() []Handle {
	return d.registry.Handles()
}

// SetBaudRate changes the line speed of h
func (d *Dispatcher) SetBaudRate(h Handle, baud int) error {
	return d.with("set_baud_rate", h, func(p Port) error {
		return p.SetBaudRate(baud)
	})
}

// SetBreak starts a break condition on h
func (d *Dispatcher) SetBreak(h Handle) error {
	return d.with("set_break", h, Port.SetBreak)
}

// ClearBreak ends a break condition on h
func (d *Dispatcher) ClearBreak(h Handle) error {
	return d.with("clear_break", h, Port.ClearBreak)
}

// WriteRequestToSend drives the RTS line of h
func (d *Dispatcher) WriteRequestToSend(h Handle, level bool) error {
	return d.with("write_request_to_send", h, func(p Port) error {
		return p.SetRTS(level)
	})
}

// WriteDataTerminalReady drives the DTR line of h
func (d *Dispatcher) WriteDataTerminalReady(h Handle, level bool) error {
	return d.with("write_data_terminal_ready", h, func(p Port) error {
		return p.SetDTR(level)
	})
}

// BytesToRead returns the number of bytes waiting in the input queue of h
func (d *Dispatcher) BytesToRead(h Handle) (int, error) {
	var n int
	err := d.with("bytes_to_read", h, func(p Port) (err error) {
		n, err = p.BytesToRead()
		return err
	})
	return n, err
}

// BytesToWrite returns the number of bytes not yet transmitted on h
func (d *Dispatcher) BytesToWrite(h Handle) (int, error) {
	var n int
	err := d.with("bytes_to_write", h, func(p Port) (err error) {
		n, err = p.BytesToWrite()
		return err
	})
	return n, err
}

// Drain blocks until everything written to h has been transmitted
func (d *Dispatcher) Drain(h Handle) error {
	return d.with("drain", h, func(p Port) error {
		return p.Drain()
	})
}

// Write performs a single write and reports how much of data it took
func (d *Dispatcher) Write(h Handle, data []byte) (int, error) {
	var n int
	err := d.with("write", h, func(p Port) (err error) {
		n, err = p.Write(data)
		return err
	})
	return n, err
}

// WriteAll writes data completely or fails
func (d *Dispatcher) WriteAll(h Handle, data []byte) error {
	return d.with("write_all", h, func(p Port) error {
		_, err := writeFull(p, data)
		return err
	})
}

// Read returns exactly n bytes from h. It never returns fewer bytes as a
// success: if the port's read timeout expires first the call fails with
// serial.ErrReadTimeout.
func (d *Dispatcher) Read(h Handle, n int) ([]byte, error) {
	if n < 0 || n > MaxReadLength {
		return nil, &OpError{Op: "read", Handle: h, Err: ErrInvalidLength}
	}

	var buf []byte
	err := d.with("read", h, func(p Port) error {
		buf = make([]byte, n)
		_, err := readFull(p, buf)
		return err
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadAll reads from h until the port reports no more data, either by
// timing out with nothing read or by end of file.
func (d *Dispatcher) ReadAll(h Handle) ([]byte, error) {
	var data []byte
	err := d.with("read_all", h, func(p Port) error {
		buf := make([]byte, readChunk)
		for {
			n, err := p.Read(buf)
			data = append(data, buf[:n]...)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Clear discards the selected kernel queues of h
func (d *Dispatcher) Clear(h Handle, which ClearBuffer) error {
	if !which.valid() {
		return &OpError{Op: "clear", Handle: h, Err: fmt.Errorf("%w: %d", ErrInvalidClearBuffer, which)}
	}
	return d.with("clear", h, func(p Port) error {
		switch which {
		case ClearInput:
			return p.FlushInput()
		case ClearOutput:
			return p.FlushOutput()
		default:
			return p.Flush()
		}
	})
}

// ReadClearToSend reads the CTS line of h
func (d *Dispatcher) ReadClearToSend(h Handle) (LineState, error) {
	return d.readLine("read_clear_to_send", h, func(s serial.ModemSignals) bool { return s.CTS })
}

// ReadDataSetReady reads the DSR line of h
func (d *Dispatcher) ReadDataSetReady(h Handle) (LineState, error) {
	return d.readLine("read_data_set_ready", h, func(s serial.ModemSignals) bool { return s.DSR })
}

// ReadRingIndicator reads the RI line of h
func (d *Dispatcher) ReadRingIndicator(h Handle) (LineState, error) {
	return d.readLine("read_ring_indicator", h, func(s serial.ModemSignals) bool { return s.RI })
}

// ReadCarrierDetect reads the DCD line of h
func (d *Dispatcher) ReadCarrierDetect(h Handle) (LineState, error) {
	return d.readLine("read_carrier_detect", h, func(s serial.ModemSignals) bool { return s.DCD })
}

// ReadRequestToSend reads back the RTS level driven on h
func (d *Dispatcher) ReadRequestToSend(h Handle) (LineState, error) {
	return d.readLine("read_request_to_send", h, func(s serial.ModemSignals) bool { return s.RTS })
}

// ReadDataTerminalReady reads back the DTR level driven on h
func (d *Dispatcher) ReadDataTerminalReady(h Handle) (LineState, error) {
	return d.readLine("read_data_terminal_ready", h, func(s serial.ModemSignals) bool { return s.DTR })
}

func (d *Dispatcher) readLine(op string, h Handle, line func(serial.ModemSignals) bool) (LineState, error) {
	state := LineFailed
	err := d.with(op, h, func(p Port) error {
		signals, err := p.GetModemSignals()
		if err != nil {
			return err
		}
		state = lineState(line(signals))
		return nil
	})
	if err != nil {
		return LineFailed, err
	}
	return state, nil
}

// readFull fills buf from r. A read that returns no data and no error is
// the port's read timeout.
func readFull(r io.Reader, buf []byte) (int, error) {
	got := 0
	for got < len(buf) {
		n, err := r.Read(buf[got:])
		got += n
		if got == len(buf) {
			return got, nil
		}
		if errors.Is(err, io.EOF) {
			return got, fmt.Errorf("read %d of %d bytes: %w", got, len(buf), io.ErrUnexpectedEOF)
		}
		if err != nil {
			return got, fmt.Errorf("read %d of %d bytes: %w", got, len(buf), err)
		}
		if n == 0 {
			return got, fmt.Errorf("read %d of %d bytes: %w", got, len(buf), serial.ErrReadTimeout)
		}
	}
	return got, nil
}

// writeFull writes all of data to w
func writeFull(w io.Writer, data []byte) (int, error) {
	sent := 0
	for sent < len(data) {
		n, err := w.Write(data[sent:])
		sent += n
		if err != nil {
			return sent, fmt.Errorf("wrote %d of %d bytes: %w", sent, len(data), err)
		}
		if n == 0 {
			return sent, fmt.Errorf("wrote %d of %d bytes: %w", sent, len(data), io.ErrShortWrite)
		}
	}
	return sent, nil
}
