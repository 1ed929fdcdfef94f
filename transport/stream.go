package transport

import (
	"context"
	"io"
	"time"
)

// deadlineConn is a byte stream supporting I/O deadlines, such as a net.Conn
// or a QUIC stream.
type deadlineConn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Stream is a Link over a reliable byte stream. It reaches the device
// simulator locally (net.Pipe) or remotely (DialQUIC).
type Stream struct {
	conn   deadlineConn
	closer func() error
	closed bool
}

// NewStream returns a Link over conn. Closing the Stream closes conn.
func NewStream(conn deadlineConn) *Stream {
	return &Stream{conn: conn, closer: conn.Close}
}

// StartExchange is a no-op on a stream.
func (s *Stream) StartExchange(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// StopExchange is a no-op on a stream.
func (s *Stream) StopExchange(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// WriteBytes writes p before the context deadline.
func (s *Stream) WriteBytes(ctx context.Context, p []byte) error {
	if s.closed {
		return ErrClosed
	}
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := s.conn.Write(p)
	return err
}

// ReadBytes fills p before the context deadline.
func (s *Stream) ReadBytes(ctx context.Context, p []byte) error {
	if s.closed {
		return ErrClosed
	}
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	_, err := io.ReadFull(s.conn, p)
	return err
}

// Close closes the stream and anything it was dialed over.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.closer()
}
