package programmer

import (
	"fmt"

	"github.com/mojo-nes/mk3prog/protocol"
)

// TransferError reports a failed exchange or chunked transfer. Moved counts
// the payload bytes of fully completed chunks; the failed chunk is not
// included. A failed transfer leaves no usable partial result.
type TransferError struct {
	Opcode protocol.Opcode
	Moved  int
	Total  int
	Err    error
}

func (e *TransferError) Error() string {
	if e.Total == 0 {
		return fmt.Sprintf("%s: %v", e.Opcode, e.Err)
	}
	return fmt.Sprintf("%s: transfer failed after %d of %d bytes: %v", e.Opcode, e.Moved, e.Total, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// RangeError indicates an address range outside a memory region.
type RangeError struct {
	Region  protocol.Region
	Address uint32
	Length  int
	Min     uint32
	Max     uint32
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s range 0x%06X+%d is out of bounds: valid range is 0x%06X-0x%06X",
		e.Region, e.Address, e.Length, e.Min, e.Max)
}

// VerifyError indicates that read-back data differs from what was written.
type VerifyError struct {
	Region   protocol.Region
	Address  uint32
	Expected byte
	Actual   byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s verification failed at 0x%06X: wrote 0x%02X, read 0x%02X",
		e.Region, e.Address, e.Expected, e.Actual)
}
