package serial

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Predefined error types for robust error handling
var (
	ErrDeviceNotFound   = errors.New("serial device not found")
	ErrPermissionDenied = errors.New("permission denied accessing serial device")
	ErrDeviceInUse      = errors.New("serial device already in use")
	ErrInvalidBaudRate  = errors.New("invalid baud rate")
	ErrInvalidConfig    = errors.New("invalid serial configuration")
	ErrPortClosed       = errors.New("serial port is closed")
	ErrReadTimeout      = errors.New("read operation timed out")

	// Enumeration errors
	ErrEnumeration = errors.New("serial port enumeration failed")
)

// classifyOpenError maps errno values from open(2) onto the package errors
// while keeping the original errno reachable through errors.Is.
func classifyOpenError(device string, err error) error {
	var kind error
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		kind = ErrDeviceNotFound
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		kind = ErrPermissionDenied
	case errors.Is(err, unix.EBUSY):
		kind = ErrDeviceInUse
	default:
		return fmt.Errorf("failed to open %s: %w", device, err)
	}
	return fmt.Errorf("failed to open %s: %w: %w", device, kind, err)
}
