package programmer

import (
	"time"

	"github.com/mojo-nes/mk3prog/protocol"
)

// Transfer phases reported in Progress.
const (
	PhaseErasing   = "erasing"
	PhaseWriting   = "writing"
	PhaseReading   = "reading"
	PhaseVerifying = "verifying"
	PhaseComplete  = "complete"
)

// Progress contains information about a running transfer.
// Passed to ProgressCallback after every window.
type Progress struct {
	// Phase is one of the Phase* constants
	Phase string

	// Region is the memory being transferred
	Region protocol.Region

	// Address is the next address to be transferred
	Address uint32

	// Done is the number of bytes transferred so far
	Done int

	// Total is the number of bytes in the whole transfer
	Total int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the transfer started
	ElapsedTime time.Duration
}

// ProgressCallback is called periodically during transfers to report progress.
// Implementations should return quickly to avoid stalling the transfer.
//
// Example:
//
//	s := programmer.New(t,
//	    programmer.WithProgressCallback(func(p programmer.Progress) {
//	        fmt.Printf("[%s] %s 0x%06X %.1f%%\n",
//	            p.Phase, p.Region, p.Address, p.Percentage)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the session.
// *slog.Logger satisfies it.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	s := programmer.New(t, programmer.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
