package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the UART bridge speed used when none is configured.
const DefaultBaudRate = 115200

// defaultUARTTimeout applies when the context carries no deadline.
const defaultUARTTimeout = 5 * time.Second

// uartPort is the part of serial.Port used by UART.
type uartPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// UART is a Link over a serial port bridged to the programmer's frame
// interface. Exchanges need no chip select, so Start/StopExchange only
// check that the port is open.
type UART struct {
	port   uartPort
	path   string
	closed bool
}

// OpenUART opens path at baud, 8N1, and discards stale input.
func OpenUART(path string, baud int) (*UART, error) {
	target := "uart " + path
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, &OpenError{Step: uartOpenStep(err), Target: target, Err: err}
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, &OpenError{Step: StepConfigure, Target: target, Err: err}
	}

	return &UART{port: port, path: path}, nil
}

// uartOpenStep maps serial open failures onto the open steps.
func uartOpenStep(err error) OpenStep {
	var pe *serial.PortError
	if !errors.As(err, &pe) {
		return StepLocate
	}
	switch pe.Code() {
	case serial.PortNotFound:
		return StepLocate
	case serial.PortBusy, serial.PermissionDenied:
		return StepClaim
	default:
		return StepConfigure
	}
}

// StartExchange is a no-op on a UART.
func (u *UART) StartExchange(ctx context.Context) error {
	if u.closed {
		return ErrClosed
	}
	return nil
}

// StopExchange is a no-op on a UART.
func (u *UART) StopExchange(ctx context.Context) error {
	if u.closed {
		return ErrClosed
	}
	return nil
}

// WriteBytes writes all of p.
func (u *UART) WriteBytes(ctx context.Context, p []byte) error {
	if u.closed {
		return ErrClosed
	}
	for len(p) > 0 {
		n, err := u.port.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// ReadBytes fills p, failing with ErrTimeout once the context deadline passes.
func (u *UART) ReadBytes(ctx context.Context, p []byte) error {
	if u.closed {
		return ErrClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultUARTTimeout)
	}

	got := 0
	for got < len(p) {
		if err := ctx.Err(); err != nil {
			return err
		}
		left := time.Until(deadline)
		if left <= 0 {
			return fmt.Errorf("%w: read %d of %d bytes", ErrTimeout, got, len(p))
		}
		if err := u.port.SetReadTimeout(left); err != nil {
			return err
		}

		n, err := u.port.Read(p[got:])
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: read %d of %d bytes", ErrTimeout, got, len(p))
		}
		got += n
	}
	return nil
}

// Close closes the serial port.
func (u *UART) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	return u.port.Close()
}
