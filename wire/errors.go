package wire

import (
	"errors"
	"fmt"

	"github.com/allbin/go-serialhost/session"
)

var (
	// ErrUnknownOp is returned for an operation name the Mux does not serve
	ErrUnknownOp = errors.New("unknown operation")

	// ErrBadArgument is returned for missing or malformed argument buffers
	ErrBadArgument = errors.New("bad argument")
)

// Code classifies a failed call. The byte values are the status letters of
// a failure frame.
type Code byte

const (
	CodeUnknownHandle Code = 'n'
	CodeDevice        Code = 'e'
	CodeBadArgument   Code = 'a'
	CodeUnknownOp     Code = 'u'
)

func (c Code) String() string {
	switch c {
	case CodeUnknownHandle:
		return "unknown handle"
	case CodeDevice:
		return "device error"
	case CodeBadArgument:
		return "bad argument"
	case CodeUnknownOp:
		return "unknown operation"
	default:
		return fmt.Sprintf("code(%q)", byte(c))
	}
}

// Error is the failure of one Mux call
type Error struct {
	Op   string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code of a failed call, or 0 for nil
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return classify(err)
}

func classify(err error) Code {
	switch {
	case errors.Is(err, ErrUnknownOp):
		return CodeUnknownOp
	case errors.Is(err, session.ErrUnknownHandle):
		return CodeUnknownHandle
	case errors.Is(err, ErrBadArgument),
		errors.Is(err, session.ErrInvalidClearBuffer),
		errors.Is(err, session.ErrInvalidLength):
		return CodeBadArgument
	default:
		return CodeDevice
	}
}
