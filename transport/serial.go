package transport

import (
	"context"

	"github.com/mojo-nes/mk3prog/frame"
)

// Serial is a Transport carrying frame-encoded messages over a Link.
// Each physical frame holds at most SerialChunk payload bytes; Send slices
// larger buffers into successive frames.
type Serial struct {
	link   Link
	dec    *frame.Decoder
	wbuf   []byte
	closed bool
}

// SerialOption configures a Serial transport.
type SerialOption func(*Serial)

// WithResyncLimit bounds the bytes discarded while looking for a frame start.
func WithResyncLimit(n int) SerialOption {
	return func(s *Serial) {
		if n > 0 {
			s.dec.ResyncLimit = n
		}
	}
}

// NewSerial returns a Serial transport over link.
func NewSerial(link Link, opts ...SerialOption) *Serial {
	s := &Serial{
		link: link,
		wbuf: make([]byte, 0, SerialChunk+frame.Overhead),
	}
	s.dec = frame.NewDecoder(frame.SourceFunc(link.ReadBytes))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send writes p as ceil(len(p)/32) frames, one exchange each. It returns
// the payload bytes carried by fully sent frames. An empty p is sent as one
// empty frame.
func (s *Serial) Send(ctx context.Context, p []byte) (int, error) {
	if s.closed {
		return 0, &IOError{Op: "send", Requested: len(p), Err: ErrClosed}
	}

	sent := 0
	for {
		n := min(len(p)-sent, SerialChunk)
		if err := s.sendFrame(ctx, p[sent:sent+n]); err != nil {
			return sent, ioError("send", len(p), sent, err)
		}
		sent += n
		if sent >= len(p) {
			return sent, nil
		}
	}
}

func (s *Serial) sendFrame(ctx context.Context, payload []byte) error {
	wire, err := frame.Append(s.wbuf[:0], payload)
	if err != nil {
		return err
	}

	if err := s.link.StartExchange(ctx); err != nil {
		return err
	}
	if err := s.link.WriteBytes(ctx, wire); err != nil {
		s.link.StopExchange(ctx)
		return err
	}
	return s.link.StopExchange(ctx)
}

// Receive reads one frame into p. len(p) is the receive capacity: a frame
// declaring a longer payload fails with frame.ErrCapacity. Framing errors
// are returned as *frame.FramingError, link failures as *IOError.
func (s *Serial) Receive(ctx context.Context, p []byte) (int, error) {
	if s.closed {
		return 0, &IOError{Op: "receive", Requested: len(p), Err: ErrClosed}
	}

	if err := s.link.StartExchange(ctx); err != nil {
		return 0, ioError("receive", len(p), 0, err)
	}

	n, err := s.dec.ReadFrame(ctx, p)
	if err != nil {
		s.link.StopExchange(ctx)
		if frame.IsFramingError(err) {
			return 0, err
		}
		return 0, ioError("receive", len(p), 0, err)
	}

	if err := s.link.StopExchange(ctx); err != nil {
		return 0, ioError("receive", len(p), n, err)
	}
	return n, nil
}

// Limits reports 32-byte chunks in both directions and unpadded commands.
func (s *Serial) Limits() Limits {
	return Limits{
		CommandFrame:  0,
		ReplyCapacity: FrameLen,
		SendChunk:     SerialChunk,
		ReceiveChunk:  SerialChunk,
	}
}

// Close closes the underlying link.
func (s *Serial) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.link.Close()
}
