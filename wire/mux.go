// Package wire exposes a session.Dispatcher as named operations over byte
// buffers, the calling convention of an embedding host.
//
// Arguments are passed as separate buffers. Numbers and booleans are UTF-8
// decimal text ("0"/"1" or "true"/"false" for booleans); payloads are raw
// bytes. Every operation produces one result buffer:
//
//	op_available_ports                 JSON array of ports
//	op_serial_new                      decimal handle
//	op_serial_bytes_to_read/_to_write  decimal count
//	op_serial_read                     exactly the requested bytes
//	op_serial_read_all                 everything read until timeout
//	op_serial_read_<line>              "1" asserted, "0" not asserted
//	everything else                    "1"
//
// Call returns failures as *Error. Frame folds success and failure into a
// single buffer with a leading status byte, for hosts that can only carry
// one buffer back.
package wire

import (
	"sort"
	"strings"

	"github.com/allbin/go-serialhost/session"
)

// Operation names
const (
	OpAvailablePorts         = "op_available_ports"
	OpNew                    = "op_serial_new"
	OpClose                  = "op_serial_close"
	OpSetBaudRate            = "op_serial_set_baud_rate"
	OpSetBreak               = "op_serial_set_break"
	OpClearBreak             = "op_serial_clear_break"
	OpBytesToRead            = "op_serial_bytes_to_read"
	OpBytesToWrite           = "op_serial_bytes_to_write"
	OpWriteDataTerminalReady = "op_serial_write_data_terminal_ready"
	OpWriteRequestToSend     = "op_serial_write_request_to_send"
	OpWrite                  = "op_serial_write"
	OpWriteAll               = "op_serial_write_all"
	OpRead                   = "op_serial_read"
	OpReadAll                = "op_serial_read_all"
	OpClear                  = "op_serial_clear"
	OpReadClearToSend        = "op_serial_read_clear_to_send"
	OpReadDataSetReady       = "op_serial_read_data_set_ready"
	OpReadRingIndicator      = "op_serial_read_ring_indicator"
	OpReadCarrierDetect      = "op_serial_read_carrier_detect"
)

type handler func(a args) ([]byte, error)

// Mux routes named operations to a Dispatcher
type Mux struct {
	d   *session.Dispatcher
	ops map[string]handler
}

// NewMux returns a Mux serving every operation against d
func NewMux(d *session.Dispatcher) *Mux {
	m := &Mux{d: d}
	m.ops = map[string]handler{
		OpAvailablePorts:         m.availablePorts,
		OpNew:                    m.open,
		OpClose:                  m.handleOp(d.Close),
		OpSetBreak:               m.handleOp(d.SetBreak),
		OpClearBreak:             m.handleOp(d.ClearBreak),
		OpSetBaudRate:            m.setBaudRate,
		OpBytesToRead:            m.count(d.BytesToRead),
		OpBytesToWrite:           m.count(d.BytesToWrite),
		OpWriteDataTerminalReady: m.level(d.WriteDataTerminalReady),
		OpWriteRequestToSend:     m.level(d.WriteRequestToSend),
		OpWrite:                  m.write,
		OpWriteAll:               m.writeAll,
		OpRead:                   m.read,
		OpReadAll:                m.readAll,
		OpClear:                  m.clear,
		OpReadClearToSend:        m.line(d.ReadClearToSend),
		OpReadDataSetReady:       m.line(d.ReadDataSetReady),
		OpReadRingIndicator:      m.line(d.ReadRingIndicator),
		OpReadCarrierDetect:      m.line(d.ReadCarrierDetect),
	}
	return m
}

// Dispatcher returns the dispatcher behind m
func (m *Mux) Dispatcher() *session.Dispatcher {
	return m.d
}

// Ops returns the served operation names in sorted order
func (m *Mux) Ops() []string {
	names := make([]string, 0, len(m.ops))
	for name := range m.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs op with the given argument buffers
func (m *Mux) Call(op string, argv ...[]byte) ([]byte, error) {
	h, ok := m.ops[op]
	if !ok {
		return nil, &Error{Op: op, Code: CodeUnknownOp, Err: ErrUnknownOp}
	}
	out, err := h(args(argv))
	if err != nil {
		return nil, &Error{Op: op, Code: classify(err), Err: err}
	}
	return out, nil
}

// Frame runs op and returns '+' followed by the result on success, or '!',
// the error code letter, ':' and the error message on failure. An error
// frame never contains a newline.
func (m *Mux) Frame(op string, argv ...[]byte) []byte {
	out, err := m.Call(op, argv...)
	if err != nil {
		code := CodeOf(err)
		msg := strings.ReplaceAll(err.Error(), "\n", "; ")
		frame := make([]byte, 0, 3+len(msg))
		frame = append(frame, frameError, byte(code), ':')
		return append(frame, msg...)
	}
	frame := make([]byte, 0, 1+len(out))
	frame = append(frame, framePrefix)
	return append(frame, out...)
}

func (m *Mux) availablePorts(a args) ([]byte, error) {
	if err := a.want(0); err != nil {
		return nil, err
	}
	ports, err := m.d.ListPorts()
	if err != nil {
		return nil, err
	}
	return EncodePorts(ports)
}

func (m *Mux) open(a args) ([]byte, error) {
	if err := a.want(2); err != nil {
		return nil, err
	}
	path, err := a.text(0)
	if err != nil {
		return nil, err
	}
	baud, err := a.int(1)
	if err != nil {
		return nil, err
	}
	h, err := m.d.Open(path, baud)
	if err != nil {
		return nil, err
	}
	return encodeUint(int(h)), nil
}

func (m *Mux) handleOp(fn func(session.Handle) error) handler {
	return func(a args) ([]byte, error) {
		if err := a.want(1); err != nil {
			return nil, err
		}
		h, err := a.handle(0)
		if err != nil {
			return nil, err
		}
		if err := fn(h); err != nil {
			return nil, err
		}
		return ack(), nil
	}
}

func (m *Mux) count(fn func(session.Handle) (int, error)) handler {
	return func(a args) ([]byte, error) {
		if err := a.want(1); err != nil {
			return nil, err
		}
		h, err := a.handle(0)
		if err != nil {
			return nil, err
		}
		n, err := fn(h)
		if err != nil {
			return nil, err
		}
		return encodeUint(n), nil
	}
}

func (m *Mux) level(fn func(session.Handle, bool) error) handler {
	return func(a args) ([]byte, error) {
		if err := a.want(2); err != nil {
			return nil, err
		}
		h, err := a.handle(0)
		if err != nil {
			return nil, err
		}
		on, err := a.bool(1)
		if err != nil {
			return nil, err
		}
		if err := fn(h, on); err != nil {
			return nil, err
		}
		return ack(), nil
	}
}

func (m *Mux) line(fn func(session.Handle) (session.LineState, error)) handler {
	return func(a args) ([]byte, error) {
		if err := a.want(1); err != nil {
			return nil, err
		}
		h, err := a.handle(0)
		if err != nil {
			return nil, err
		}
		state, err := fn(h)
		if err != nil {
			return nil, err
		}
		return encodeLine(state), nil
	}
}

func (m *Mux) setBaudRate(a args) ([]byte, error) {
	if err := a.want(2); err != nil {
		return nil, err
	}
	h, err := a.handle(0)
	if err != nil {
		return nil, err
	}
	baud, err := a.int(1)
	if err != nil {
		return nil, err
	}
	if err := m.d.SetBaudRate(h, baud); err != nil {
		return nil, err
	}
	return ack(), nil
}

func (m *Mux) write(a args) ([]byte, error) {
	if err := a.want(2); err != nil {
		return nil, err
	}
	h, err := a.handle(0)
	if err != nil {
		return nil, err
	}
	if _, err := m.d.Write(h, a[1]); err != nil {
		return nil, err
	}
	return ack(), nil
}

func (m *Mux) writeAll(a args) ([]byte, error) {
	if err := a.want(2); err != nil {
		return nil, err
	}
	h, err := a.handle(0)
	if err != nil {
		return nil, err
	}
	if err := m.d.WriteAll(h, a[1]); err != nil {
		return nil, err
	}
	return ack(), nil
}

func (m *Mux) read(a args) ([]byte, error) {
	if err := a.want(2); err != nil {
		return nil, err
	}
	h, err := a.handle(0)
	if err != nil {
		return nil, err
	}
	n, err := a.int(1)
	if err != nil {
		return nil, err
	}
	return m.d.Read(h, n)
}

func (m *Mux) readAll(a args) ([]byte, error) {
	if err := a.want(1); err != nil {
		return nil, err
	}
	h, err := a.handle(0)
	if err != nil {
		return nil, err
	}
	return m.d.ReadAll(h)
}

func (m *Mux) clear(a args) ([]byte, error) {
	if err := a.want(2); err != nil {
		return nil, err
	}
	h, err := a.handle(0)
	if err != nil {
		return nil, err
	}
	which, err := a.int(1)
	if err != nil {
		return nil, err
	}
	if err := m.d.Clear(h, session.ClearBuffer(which)); err != nil {
		return nil, err
	}
	return ack(), nil
}
