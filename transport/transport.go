package transport

import "context"

// Transport is a byte channel to the programmer with a bounded-size contract.
// Timeouts are taken from the context deadline.
type Transport interface {
	// Send performs one physical send of p and returns the bytes accepted.
	Send(ctx context.Context, p []byte) (int, error)

	// Receive reads one physical unit into p and returns its length.
	// len(p) is the receive capacity.
	Receive(ctx context.Context, p []byte) (int, error)

	// Limits reports the size constraints of this transport.
	Limits() Limits

	// Close releases the device.
	Close() error
}

// Limits describes the sizes a Transport accepts.
type Limits struct {
	// CommandFrame is the fixed size every command is padded to. Zero means
	// commands are sent with their natural length.
	CommandFrame int

	// ReplyCapacity is the receive capacity for command replies.
	ReplyCapacity int

	// SendChunk is the largest long-command payload chunk per Send. Zero
	// means the whole payload goes out in one Send.
	SendChunk int

	// ReceiveChunk is the largest long-reply payload chunk per Receive.
	ReceiveChunk int
}

// Transfer sizes.
const (
	// FrameLen is the USB bulk command/reply transfer size
	FrameLen = 64

	// BulkReceiveChunk is the largest bulk long-reply transfer
	BulkReceiveChunk = 384

	// SerialChunk is the payload carried by one serial frame
	SerialChunk = 32
)
