package programmer

import (
	"time"

	"github.com/mojo-nes/mk3prog/protocol"
)

// Config holds the session configuration.
type Config struct {
	// ProgressCallback is called during flash and RAM transfers (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Timeout bounds each physical send or receive
	Timeout time.Duration

	// EraseTimeout bounds the reply wait of erase commands, which block
	// on the flash chip for seconds
	EraseTimeout time.Duration

	// WindowSize is the payload length of one flash read/write command.
	// Default is 32 KiB.
	WindowSize int
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Timeout:      5 * time.Second,
		EraseTimeout: 2 * time.Minute,
		WindowSize:   32 * 1024,
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithProgressCallback sets a callback function to track transfer progress.
//
// Example:
//
//	s := programmer.New(t,
//	    programmer.WithProgressCallback(func(p programmer.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for session operations. A *slog.Logger satisfies Logger.
//
// Example:
//
//	s := programmer.New(t, programmer.WithLogger(slog.Default()))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTimeout sets the per send/receive timeout.
//
// Example:
//
//	s := programmer.New(t, programmer.WithTimeout(10*time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithEraseTimeout sets how long erase commands may wait for their reply.
func WithEraseTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.EraseTimeout = timeout
		}
	}
}

// WithWindowSize sets the payload length of one flash read/write command.
// Values outside 1-65535 are ignored.
//
// Example:
//
//	s := programmer.New(t, programmer.WithWindowSize(16*1024))
func WithWindowSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= protocol.LengthMax {
			c.WindowSize = size
		}
	}
}
