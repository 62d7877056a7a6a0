package wire

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/allbin/go-serialhost"
	"github.com/allbin/go-serialhost/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoPort loops written bytes back to its reader
type echoPort struct {
	mu      sync.Mutex
	baud    int
	queue   []byte
	signals serial.ModemSignals
	broken  error
}

func (p *echoPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broken != nil {
		return 0, p.broken
	}
	n := copy(b, p.queue)
	p.queue = p.queue[n:]
	return n, nil
}

func (p *echoPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broken != nil {
		return 0, p.broken
	}
	p.queue = append(p.queue, b...)
	return len(b), nil
}

func (p *echoPort) Close() error { return nil }
func (p *echoPort) BaudRate() int { return p.baud }
func (p *echoPort) SetBaudRate(rate int) error { p.baud = rate; return nil }
func (p *echoPort) SetBreak() error { return p.broken }
func (p *echoPort) ClearBreak() error { return p.broken }
func (p *echoPort) SetRTS(state bool) error { p.signals.CTS = state; return p.broken }
func (p *echoPort) SetDTR(state bool) error { p.signals.DSR = state; return p.broken }
func (p *echoPort) BytesToRead() (int, error) { return len(p.queue), p.broken }
func (p *echoPort) BytesToWrite() (int, error) { return 0, p.broken }
func (p *echoPort) Drain() error { return p.broken }
func (p *echoPort) FlushInput() error { p.queue = nil; return p.broken }
func (p *echoPort) FlushOutput() error { return p.broken }
func (p *echoPort) Flush() error { p.queue = nil; return p.broken }
func (p *echoPort) GetModemSignals() (serial.ModemSignals, error) {
	return p.signals, p.broken
}

type testHost struct {
	mux   *Mux
	ports []*echoPort
}

func newTestHost(t *testing.T, ports []serial.PortInfo) *testHost {
	t.Helper()
	h := &testHost{}
	d := session.NewDispatcher(
		session.WithOpener(func(path string, baud int, _ ...serial.Option) (session.Port, error) {
			if path != "/dev/ttyS0" {
				return nil, serial.ErrDeviceNotFound
			}
			p := &echoPort{baud: baud}
			h.ports = append(h.ports, p)
			return p, nil
		}),
		session.WithEnumerator(func() ([]serial.PortInfo, error) { return ports, nil }),
	)
	h.mux = NewMux(d)
	return h
}

func (h *testHost) call(t *testing.T, op string, argv ...string) []byte {
	t.Helper()
	bufs := make([][]byte, len(argv))
	for i, a := range argv {
		bufs[i] = []byte(a)
	}
	out, err := h.mux.Call(op, bufs...)
	require.NoError(t, err, op)
	return out
}

func TestOpsCoverEveryOperation(t *testing.T) {
	h := newTestHost(t, nil)
	assert.Len(t, h.mux.Ops(), 19)
	assert.Contains(t, h.mux.Ops(), OpReadCarrierDetect)
}

func TestSessionOverBuffers(t *testing.T) {
	h := newTestHost(t, nil)

	assert.Equal(t, "0", string(h.call(t, OpNew, "/dev/ttyS0", "9600")))
	assert.Equal(t, "1", string(h.call(t, OpNew, "/dev/ttyS0", "9600")))

	assert.Equal(t, "1", string(h.call(t, OpSetBaudRate, "0", "115200")))
	assert.Equal(t, 115200, h.ports[0].baud)

	assert.Equal(t, "1", string(h.call(t, OpWriteAll, "0", "hello")))
	assert.Equal(t, "5", string(h.call(t, OpBytesToRead, "0")))
	assert.Equal(t, "0", string(h.call(t, OpBytesToWrite, "0")))
	assert.Equal(t, "hel", string(h.call(t, OpRead, "0", "3")))
	assert.Equal(t, "lo", string(h.call(t, OpReadAll, "0")))

	assert.Equal(t, "1", string(h.call(t, OpWrite, "0", "abc")))
	assert.Equal(t, "1", string(h.call(t, OpClear, "0", "2")))
	assert.Equal(t, "0", string(h.call(t, OpBytesToRead, "0")))

	assert.Equal(t, "1", string(h.call(t, OpSetBreak, "0")))
	assert.Equal(t, "1", string(h.call(t, OpClearBreak, "0")))

	assert.Equal(t, "0", string(h.call(t, OpReadClearToSend, "0")))
	assert.Equal(t, "1", string(h.call(t, OpWriteRequestToSend, "0", "true")))
	assert.Equal(t, "1", string(h.call(t, OpReadClearToSend, "0")))
	assert.Equal(t, "1", string(h.call(t, OpWriteDataTerminalReady, "0", "1")))
	assert.Equal(t, "1", string(h.call(t, OpReadDataSetReady, "0")))
	assert.Equal(t, "0", string(h.call(t, OpReadRingIndicator, "0")))
	assert.Equal(t, "0", string(h.call(t, OpReadCarrierDetect, "0")))

	assert.Equal(t, "1", string(h.call(t, OpClose, "0")))
	assert.Equal(t, "0", string(h.call(t, OpNew, "/dev/ttyS0", "9600")))
}

func TestBinaryPayload(t *testing.T) {
	h := newTestHost(t, nil)
	h.call(t, OpNew, "/dev/ttyS0", "9600")

	payload := []byte{0x00, 0xff, 0xfe, '\n', 0x80}
	_, err := h.mux.Call(OpWriteAll, []byte("0"), payload)
	require.NoError(t, err)

	got, err := h.mux.Call(OpRead, []byte("0"), []byte("5"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestErrorCodes(t *testing.T) {
	h := newTestHost(t, nil)
	h.call(t, OpNew, "/dev/ttyS0", "9600")

	tests := []struct {
		name string
		op   string
		argv []string
		code Code
	}{
		{"unknown op", "op_serial_frobnicate", nil, CodeUnknownOp},
		{"unknown handle", OpBytesToRead, []string{"42"}, CodeUnknownHandle},
		{"missing argument", OpRead, []string{"0"}, CodeBadArgument},
		{"extra argument", OpClose, []string{"0", "1"}, CodeBadArgument},
		{"non numeric handle", OpClose, []string{"zero"}, CodeBadArgument},
		{"negative handle", OpClose, []string{"-1"}, CodeBadArgument},
		{"bad boolean", OpWriteRequestToSend, []string{"0", "high"}, CodeBadArgument},
		{"bad clear selector", OpClear, []string{"0", "3"}, CodeBadArgument},
		{"missing device", OpNew, []string{"/dev/nope", "9600"}, CodeDevice},
		{"short read", OpRead, []string{"0", "4"}, CodeDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bufs := make([][]byte, len(tt.argv))
			for i, a := range tt.argv {
				bufs[i] = []byte(a)
			}
			out, err := h.mux.Call(tt.op, bufs...)
			require.Error(t, err)
			assert.Nil(t, out)

			var werr *Error
			require.ErrorAs(t, err, &werr)
			assert.Equal(t, tt.op, werr.Op)
			assert.Equal(t, tt.code, werr.Code, werr.Error())
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}
}

func TestInvalidUTF8Path(t *testing.T) {
	h := newTestHost(t, nil)
	_, err := h.mux.Call(OpNew, []byte{0xff, 0xfe}, []byte("9600"))
	require.ErrorIs(t, err, ErrBadArgument)
	assert.Equal(t, CodeBadArgument, CodeOf(err))
}

func TestDeviceFailureKeepsHandle(t *testing.T) {
	h := newTestHost(t, nil)
	h.call(t, OpNew, "/dev/ttyS0", "9600")
	h.ports[0].broken = errors.New("i/o error")

	_, err := h.mux.Call(OpReadCarrierDetect, []byte("0"))
	assert.Equal(t, CodeDevice, CodeOf(err))

	h.ports[0].broken = nil
	assert.Equal(t, "0", string(h.call(t, OpReadCarrierDetect, "0")))
}

func TestAvailablePorts(t *testing.T) {
	ports := []serial.PortInfo{
		{
			Name: "/dev/ttyUSB0",
			Kind: serial.KindUSB,
			USB: &serial.USBInfo{
				VendorID:     0x0403,
				ProductID:    0x6001,
				SerialNumber: "A50285BI",
				Product:      "FT232R USB UART",
			},
		},
		{Name: "/dev/ttyS0", Kind: serial.KindPCI},
		{Name: "/dev/rfcomm0", Kind: serial.KindBluetooth},
	}
	h := newTestHost(t, ports)

	out := h.call(t, OpAvailablePorts)
	assert.JSONEq(t, `[
		{"name": "/dev/ttyUSB0", "port_type": 2, "usb_info": {
			"vid": 1027, "pid": 24577, "serial_number": "A50285BI",
			"manufacturer": null, "product": "FT232R USB UART"}},
		{"name": "/dev/ttyS0", "port_type": 1, "usb_info": null},
		{"name": "/dev/rfcomm0", "port_type": 3, "usb_info": null}
	]`, string(out))
}

func TestAvailablePortsEmpty(t *testing.T) {
	h := newTestHost(t, nil)
	out := h.call(t, OpAvailablePorts)
	assert.Equal(t, "[]", string(out))

	var records []PortRecord
	require.NoError(t, json.Unmarshal(out, &records))
	assert.Empty(t, records)
}

func TestFrame(t *testing.T) {
	h := newTestHost(t, nil)

	frame := h.mux.Frame(OpNew, []byte("/dev/ttyS0"), []byte("9600"))
	assert.Equal(t, "+0", string(frame))

	body, err := DecodeFrame(OpNew, frame)
	require.NoError(t, err)
	assert.Equal(t, "0", string(body))

	frame = h.mux.Frame(OpClose, []byte("9"))
	assert.Equal(t, byte('!'), frame[0])
	assert.Equal(t, byte(CodeUnknownHandle), frame[1])
	assert.Equal(t, byte(':'), frame[2])

	_, err = DecodeFrame(OpClose, frame)
	require.Error(t, err)
	assert.Equal(t, CodeUnknownHandle, CodeOf(err))
	assert.Contains(t, err.Error(), "unknown serial handle")
}

func TestFrameOpenFailureIsOneLine(t *testing.T) {
	mux := NewMux(session.NewDispatcher())
	missing := filepath.Join(t.TempDir(), "ttyX")

	frame := mux.Frame(OpNew, []byte(missing), []byte("9600"))
	assert.Equal(t, "!e:", string(frame[:3]))
	assert.NotContains(t, string(frame), "\n")
	assert.Contains(t, string(frame), "serial device not found")
	assert.Contains(t, string(frame), "no such file or directory")
}

func TestFrameFlattensMultilineMessages(t *testing.T) {
	h := newTestHost(t, nil)
	h.mux.ops["op_joined"] = func(args) ([]byte, error) {
		return nil, errors.Join(errors.New("first"), errors.New("second"))
	}

	frame := string(h.mux.Frame("op_joined"))
	assert.False(t, strings.Contains(frame, "\n"), frame)
	assert.Equal(t, "!e:op_joined: first; second", frame)
}

func TestFrameKeepsEmptyRead(t *testing.T) {
	h := newTestHost(t, nil)
	h.call(t, OpNew, "/dev/ttyS0", "9600")

	frame := h.mux.Frame(OpRead, []byte("0"), []byte("0"))
	assert.Equal(t, "+", string(frame))

	body, err := DecodeFrame(OpRead, frame)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestDecodeFrameMalformed(t *testing.T) {
	for _, frame := range [][]byte{nil, []byte("?x"), []byte("!n")} {
		_, err := DecodeFrame("op", frame)
		assert.ErrorIs(t, err, ErrBadArgument, "frame %q", frame)
	}
}
