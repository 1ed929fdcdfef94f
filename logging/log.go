// Package logging builds the slog loggers used by the mk3prog binaries.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Component identifies a subsystem for log filtering.
type Component string

// Subsystem identifiers.
const (
	ComponentCLI       Component = "cli"
	ComponentTransport Component = "transport"
	ComponentSession   Component = "session"
	ComponentFlasher   Component = "flasher"
	ComponentConfig    Component = "config"
	ComponentSim       Component = "devsim"
)

// Format specifies the output format for logging.
type Format int

// Log format options.
const (
	FormatText Format = iota // Text format (default)
	FormatJSON               // JSON format
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseLevel accepts debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q: valid levels are debug, info, warn, error", s)
	}
}

// ParseFormat accepts text or json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown log format %q: valid formats are text, json", s)
	}
}

// New creates a logger writing to w at the given level.
func New(level slog.Level, format Format, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts))
	default:
		return slog.New(slog.NewTextHandler(w, opts))
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// With tags every record of l with the component attribute.
func With(l *slog.Logger, c Component) *slog.Logger {
	return l.With("component", string(c))
}
