package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/allbin/go-serialhost"
	"github.com/allbin/go-serialhost/session"
)

const (
	framePrefix = byte('+')
	frameError  = byte('!')
)

// args decodes the argument buffers of one call
type args [][]byte

func (a args) want(n int) error {
	if len(a) != n {
		return fmt.Errorf("%w: want %d arguments, got %d", ErrBadArgument, n, len(a))
	}
	return nil
}

func (a args) text(i int) (string, error) {
	if !utf8.Valid(a[i]) {
		return "", fmt.Errorf("%w: argument %d is not UTF-8 text", ErrBadArgument, i)
	}
	return string(a[i]), nil
}

func (a args) uint32(i int) (uint32, error) {
	s, err := a.text(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: argument %d: %q is not a number", ErrBadArgument, i, s)
	}
	return uint32(v), nil
}

func (a args) handle(i int) (session.Handle, error) {
	v, err := a.uint32(i)
	return session.Handle(v), err
}

func (a args) int(i int) (int, error) {
	v, err := a.uint32(i)
	return int(v), err
}

func (a args) bool(i int) (bool, error) {
	s, err := a.text(i)
	if err != nil {
		return false, err
	}
	switch s {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: argument %d: %q is not a boolean", ErrBadArgument, i, s)
	}
}

func encodeUint(v int) []byte {
	return strconv.AppendInt(nil, int64(v), 10)
}

func ack() []byte {
	return []byte("1")
}

func encodeLine(s session.LineState) []byte {
	if s == session.LineAsserted {
		return []byte("1")
	}
	return []byte("0")
}

// PortRecord is one element of the enumeration result
type PortRecord struct {
	Name     string     `json:"name"`
	PortType int        `json:"port_type"`
	USBInfo  *USBRecord `json:"usb_info"`
}

// USBRecord carries the USB identifiers of a port; absent strings are null
type USBRecord struct {
	VID          uint16  `json:"vid"`
	PID          uint16  `json:"pid"`
	SerialNumber *string `json:"serial_number"`
	Manufacturer *string `json:"manufacturer"`
	Product      *string `json:"product"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PortRecords converts enumerator output to its wire records
func PortRecords(ports []serial.PortInfo) []PortRecord {
	records := make([]PortRecord, 0, len(ports))
	for _, p := range ports {
		r := PortRecord{Name: p.Name, PortType: int(p.Kind)}
		if p.Kind == serial.KindUSB && p.USB != nil {
			r.USBInfo = &USBRecord{
				VID:          p.USB.VendorID,
				PID:          p.USB.ProductID,
				SerialNumber: optional(p.USB.SerialNumber),
				Manufacturer: optional(p.USB.Manufacturer),
				Product:      optional(p.USB.Product),
			}
		}
		records = append(records, r)
	}
	return records
}

// EncodePorts serializes an enumeration result
func EncodePorts(ports []serial.PortInfo) ([]byte, error) {
	return json.Marshal(PortRecords(ports))
}

// DecodeFrame splits a frame produced by Mux.Frame into its success body or
// the *Error it carries
func DecodeFrame(op string, frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, &Error{Op: op, Code: CodeBadArgument, Err: fmt.Errorf("%w: empty frame", ErrBadArgument)}
	}
	switch frame[0] {
	case framePrefix:
		return frame[1:], nil
	case frameError:
		if len(frame) < 3 || frame[2] != ':' {
			return nil, &Error{Op: op, Code: CodeBadArgument, Err: fmt.Errorf("%w: malformed error frame", ErrBadArgument)}
		}
		return nil, &Error{Op: op, Code: Code(frame[1]), Err: frameMessage(string(frame[3:]))}
	default:
		return nil, &Error{Op: op, Code: CodeBadArgument, Err: fmt.Errorf("%w: unknown frame status %q", ErrBadArgument, frame[0])}
	}
}

// frameMessage is the text of a failure decoded from a frame
type frameMessage string

func (m frameMessage) Error() string { return string(m) }
