package protocol

import (
	"errors"
	"fmt"
)

// StatusError represents a device-side failure reported in a reply status byte.
// It is distinct from transport failures: the exchange completed, the device refused.
type StatusError struct {
	// Opcode is the command that failed
	Opcode Opcode

	// Status is the status byte from the reply
	Status byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %s (0x%02X)", e.Opcode, getStatusName(e.Status), e.Status)
}

// IsStatusError returns true if err is or wraps a StatusError.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// getStatusName returns a human-readable name for a status code.
func getStatusName(code byte) string {
	switch code {
	case StatusOK:
		return "success"
	case StatusFailed:
		return "device error"
	default:
		return fmt.Sprintf("unknown status code 0x%02X", code)
	}
}
