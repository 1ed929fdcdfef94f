package transport

import "context"

// Link is a clocked byte channel carrying serial frames. One frame is sent
// or received between StartExchange and StopExchange.
type Link interface {
	// StartExchange begins a frame exchange (asserts chip select on SPI).
	StartExchange(ctx context.Context) error

	// WriteBytes writes all of p.
	WriteBytes(ctx context.Context, p []byte) error

	// ReadBytes fills p completely or fails.
	ReadBytes(ctx context.Context, p []byte) error

	// StopExchange ends the current frame exchange.
	StopExchange(ctx context.Context) error

	// Close releases the link.
	Close() error
}
