package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLong is returned by Encode for payloads above MaxPayload.
	ErrPayloadTooLong = errors.New("frame: payload too long")

	// ErrCapacity means the declared frame length exceeds the receive capacity.
	ErrCapacity = errors.New("frame: length exceeds receive capacity")

	// ErrEndMarker means the byte after the payload is not the end marker.
	ErrEndMarker = errors.New("frame: end marker mismatch")

	// ErrResync means no start marker was found within the resync limit.
	ErrResync = errors.New("frame: start marker not found")
)

// FramingError describes a malformed or unacceptable frame. Err is one of the
// package sentinels and can be matched with errors.Is.
type FramingError struct {
	Err error

	// Length is the declared payload length, when one was read
	Length int

	// Capacity is the receive capacity or MaxPayload on encode
	Capacity int

	// Got is the offending byte for marker errors
	Got byte

	// Discarded is the number of bytes skipped while seeking the start marker
	Discarded int
}

func (e *FramingError) Error() string {
	switch e.Err {
	case ErrPayloadTooLong, ErrCapacity:
		return fmt.Sprintf("%v: length %d, capacity %d", e.Err, e.Length, e.Capacity)
	case ErrEndMarker:
		return fmt.Sprintf("%v: got 0x%02X, expected 0x%02X", e.Err, e.Got, End)
	case ErrResync:
		return fmt.Sprintf("%v after discarding %d bytes", e.Err, e.Discarded)
	default:
		return fmt.Sprintf("frame: %v", e.Err)
	}
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// IsFramingError returns true if err is or wraps a FramingError.
func IsFramingError(err error) bool {
	var fe *FramingError
	return errors.As(err, &fe)
}
