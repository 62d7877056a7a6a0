package session

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownHandle is returned for a handle that is not open
	ErrUnknownHandle = errors.New("unknown serial handle")

	// ErrHandleInUse is returned when inserting over a live handle
	ErrHandleInUse = errors.New("serial handle already in use")

	// ErrInvalidClearBuffer is returned for a clear selector outside Input, Output and All
	ErrInvalidClearBuffer = errors.New("invalid clear buffer selector")

	// ErrInvalidLength is returned for a negative or oversized read length
	ErrInvalidLength = errors.New("invalid read length")
)

// OpError records which operation failed, on which handle and device.
type OpError struct {
	Op     string
	Handle Handle
	Path   string // empty when the handle was unknown
	Err    error
}

func (e *OpError) Error() string {
	// open fails before a handle exists
	if e.Op == "open" {
		return fmt.Sprintf("open %s: %v", e.Path, e.Err)
	}
	if e.Path == "" {
		return fmt.Sprintf("%s handle %d: %v", e.Op, e.Handle, e.Err)
	}
	return fmt.Sprintf("%s handle %d (%s): %v", e.Op, e.Handle, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// IsUnknownHandle reports whether err means the handle was not open
func IsUnknownHandle(err error) bool {
	return errors.Is(err, ErrUnknownHandle)
}
