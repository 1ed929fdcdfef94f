package frame

import (
	"context"
	"io"
)

// Frame markers and limits.
const (
	// Start marks the beginning of a frame (0x7E)
	Start = 0x7E

	// End marks the end of a frame (0x7D)
	End = 0x7D

	// MaxPayload is the largest payload carried by one frame
	MaxPayload = 32

	// Overhead is the number of framing bytes added to a payload
	Overhead = 3

	// DefaultResyncLimit is the number of stray bytes tolerated before a start marker
	DefaultResyncLimit = 1024

	maxLength = 0xFF
)

// Encode wraps payload into a frame ready for one physical write.
func Encode(payload []byte) ([]byte, error) {
	return Append(make([]byte, 0, len(payload)+Overhead), payload)
}

// Append appends the framed payload to dst.
func Append(dst, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return dst, &FramingError{Err: ErrPayloadTooLong, Length: len(payload), Capacity: MaxPayload}
	}

	dst = append(dst, Start, byte(len(payload)))
	dst = append(dst, payload...)
	dst = append(dst, End)
	return dst, nil
}

// Source supplies raw bytes to a Decoder. ReadFull fills p completely or
// returns an error.
type Source interface {
	ReadFull(ctx context.Context, p []byte) error
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, p []byte) error

// ReadFull calls f(ctx, p).
func (f SourceFunc) ReadFull(ctx context.Context, p []byte) error {
	return f(ctx, p)
}

// ReaderSource returns a Source reading from r. The context is not consulted;
// deadlines must be applied to r by the caller.
func ReaderSource(r io.Reader) Source {
	return SourceFunc(func(_ context.Context, p []byte) error {
		_, err := io.ReadFull(r, p)
		return err
	})
}

// Decoder reads frames from a Source.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	src Source

	// ResyncLimit bounds the bytes discarded while seeking a start marker.
	// Zero or negative selects DefaultResyncLimit.
	ResyncLimit int

	scratch [maxLength + 1]byte
}

// NewDecoder returns a Decoder reading from src.
func NewDecoder(src Source) *Decoder {
	return &Decoder{src: src, ResyncLimit: DefaultResyncLimit}
}

// ReadFrame reads one frame and copies its payload into dst. The capacity of
// the receive is len(dst). It returns the payload length.
//
// On any error nothing is copied to dst.
func (d *Decoder) ReadFrame(ctx context.Context, dst []byte) (int, error) {
	limit := d.ResyncLimit
	if limit <= 0 {
		limit = DefaultResyncLimit
	}

	b := d.scratch[:1]
	discarded := 0
	for {
		if err := d.src.ReadFull(ctx, b); err != nil {
			return 0, err
		}
		if b[0] == Start {
			break
		}
		discarded++
		if discarded > limit {
			return 0, &FramingError{Err: ErrResync, Discarded: discarded}
		}
	}

	if err := d.src.ReadFull(ctx, b); err != nil {
		return 0, err
	}
	length := int(b[0])
	if length > len(dst) {
		return 0, &FramingError{Err: ErrCapacity, Length: length, Capacity: len(dst)}
	}

	body := d.scratch[:length+1]
	if err := d.src.ReadFull(ctx, body); err != nil {
		return 0, err
	}
	if got := body[length]; got != End {
		return 0, &FramingError{Err: ErrEndMarker, Length: length, Got: got}
	}

	return copy(dst, body[:length]), nil
}
