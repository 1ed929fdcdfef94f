package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrShortTransfer means fewer bytes moved than were requested.
	ErrShortTransfer = errors.New("short transfer")

	// ErrTimeout means the transfer did not complete before the deadline.
	ErrTimeout = errors.New("timeout")

	// ErrClosed means the transport was already closed.
	ErrClosed = errors.New("transport closed")

	// ErrNotFound means no matching device is attached.
	ErrNotFound = errors.New("device not found")
)

// OpenStep identifies the stage at which opening a device failed.
type OpenStep string

const (
	// StepLocate finds the device
	StepLocate OpenStep = "locate"

	// StepConfigure selects the configuration and sets up the device
	StepConfigure OpenStep = "configure"

	// StepClaim acquires exclusive access to the interface
	StepClaim OpenStep = "claim"
)

// OpenError reports a failure to open a transport. It is fatal for the session.
type OpenError struct {
	Step   OpenStep
	Target string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %s failed: %v", e.Target, e.Step, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// IOError reports a failed or short send/receive.
type IOError struct {
	// Op is "send" or "receive"
	Op string

	Requested int
	Actual    int
	Err       error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v (requested %d bytes, moved %d)", e.Op, e.Err, e.Requested, e.Actual)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if err reports an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// ioError builds an IOError, mapping deadline expiry to ErrTimeout.
func ioError(op string, requested, actual int, err error) *IOError {
	if err == nil {
		err = ErrShortTransfer
	} else if errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err) {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &IOError{Op: op, Requested: requested, Actual: actual, Err: err}
}

type timeoutError interface {
	Timeout() bool
}

func isNetTimeout(err error) bool {
	var te timeoutError
	return errors.As(err, &te) && te.Timeout()
}
