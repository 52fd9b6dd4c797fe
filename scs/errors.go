package scs

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrFrameTooShort      = errors.New("frame too short")
	ErrInvalidSync        = errors.New("invalid sync bytes")
	ErrChecksum           = errors.New("checksum mismatch")
	ErrInvalidParamLength = errors.New("invalid parameter length")
	ErrOutOfRange         = errors.New("value out of range")
	ErrInvalidID          = errors.New("invalid servo ID")
	ErrTimeout            = errors.New("communication timeout")
	ErrBusClosed          = errors.New("bus is closed")
)

// DeviceError reports a non-zero status code in a device's write
// acknowledgment. The reply instruction field doubles as the status code.
type DeviceError struct {
	ID   byte
	Code byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("servo %d returned status 0x%02X", e.ID, e.Code)
}

// CommError represents a communication-level error.
type CommError struct {
	Op  string // Operation that failed (e.g., "read", "write")
	Err error  // Underlying error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error during %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// GetDeviceError extracts a DeviceError from an error chain, if present.
func GetDeviceError(err error) (*DeviceError, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr, true
	}
	return nil, false
}
