package programmer

import (
	"context"
	"fmt"
	"time"

	"github.com/mojo-nes/mk3prog/protocol"
	"github.com/mojo-nes/mk3prog/transport"
)

// noCopy flags accidental copies of a Session under go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Session owns an open Transport and runs command exchanges over it.
//
// Exactly one exchange is in flight at a time. A Session must be used by a
// single goroutine and must not be copied.
type Session struct {
	noCopy noCopy

	t      transport.Transport
	config Config
	rbuf   []byte
}

// New creates a Session over an opened transport.
//
// Example:
//
//	t, err := transport.OpenBulk(transport.DefaultBulkConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s := programmer.New(t,
//	    programmer.WithProgressCallback(progressFunc),
//	    programmer.WithTimeout(10*time.Second),
//	)
//	defer s.Close()
func New(t transport.Transport, opts ...Option) *Session {
	if t == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	capacity := t.Limits().ReplyCapacity
	if capacity <= 0 {
		capacity = protocol.FrameLen
	}

	return &Session{
		t:      t,
		config: cfg,
		rbuf:   make([]byte, capacity),
	}
}

// Close closes the transport. The session cannot be used afterwards.
func (s *Session) Close() error {
	return s.t.Close()
}

// Send performs one exchange: one command frame out, one reply frame in.
// On bulk transports the command is zero-padded to the fixed frame size.
//
// Send does not interpret the reply status; use CommandReply.Check.
// Any transport failure returns a *TransferError naming the opcode and no reply.
func (s *Session) Send(ctx context.Context, cmd protocol.Command) (protocol.CommandReply, error) {
	reply, err := s.exchange(ctx, cmd, s.config.Timeout)
	if err != nil {
		return protocol.CommandReply{}, &TransferError{Opcode: cmd.Opcode(), Err: err}
	}
	return reply, nil
}

// SendLongCommand performs the header exchange for cmd and then streams
// payload to the device in transport sized chunks. If the header reply
// status is not OK, no payload byte is sent.
//
// It returns the header reply and the number of payload bytes moved. On
// failure the count covers completed chunks only.
func (s *Session) SendLongCommand(ctx context.Context, cmd protocol.Command, payload []byte) (protocol.CommandReply, int, error) {
	op := cmd.Opcode()
	if err := checkLong(cmd, protocol.PayloadOut, len(payload)); err != nil {
		return protocol.CommandReply{}, 0, &TransferError{Opcode: op, Total: len(payload), Err: err}
	}

	reply, err := s.exchange(ctx, cmd, s.config.Timeout)
	if err != nil {
		return protocol.CommandReply{}, 0, &TransferError{Opcode: op, Total: len(payload), Err: err}
	}
	if err := reply.Check(op); err != nil {
		return reply, 0, &TransferError{Opcode: op, Total: len(payload), Err: err}
	}

	chunk := s.t.Limits().SendChunk
	if chunk <= 0 {
		chunk = len(payload)
	}

	moved := 0
	for moved < len(payload) {
		n := min(chunk, len(payload)-moved)

		sent, err := s.sendChunk(ctx, payload[moved:moved+n])
		if err == nil && sent != n {
			err = &transport.IOError{Op: "send", Requested: n, Actual: sent, Err: transport.ErrShortTransfer}
		}
		if err != nil {
			s.logError("long command aborted", "opcode", op.String(), "moved", moved, "total", len(payload), "error", err)
			return reply, moved, &TransferError{Opcode: op, Moved: moved, Total: len(payload), Err: err}
		}
		moved += n
	}

	s.logDebug("long command complete", "opcode", op.String(), "bytes", moved)
	return reply, moved, nil
}

// SendLongReply performs the header exchange for cmd and then receives
// len(buf) payload bytes from the device in transport sized chunks. A chunk
// shorter or longer than requested aborts the transfer: host and device are
// out of sync.
//
// It returns the header reply and the number of bytes received. If the
// header reply status is not OK nothing is read.
func (s *Session) SendLongReply(ctx context.Context, cmd protocol.Command, buf []byte) (protocol.CommandReply, int, error) {
	op := cmd.Opcode()
	if err := checkLong(cmd, protocol.PayloadIn, len(buf)); err != nil {
		return protocol.CommandReply{}, 0, &TransferError{Opcode: op, Total: len(buf), Err: err}
	}

	reply, err := s.exchange(ctx, cmd, s.config.Timeout)
	if err != nil {
		return protocol.CommandReply{}, 0, &TransferError{Opcode: op, Total: len(buf), Err: err}
	}
	if err := reply.Check(op); err != nil {
		return reply, 0, &TransferError{Opcode: op, Total: len(buf), Err: err}
	}

	chunk := s.t.Limits().ReceiveChunk
	if chunk <= 0 {
		chunk = len(buf)
	}

	moved := 0
	for moved < len(buf) {
		n := min(chunk, len(buf)-moved)

		got, err := s.receiveChunk(ctx, buf[moved:moved+n])
		if err == nil && got != n {
			err = &transport.IOError{Op: "receive", Requested: n, Actual: got, Err: transport.ErrShortTransfer}
		}
		if err != nil {
			s.logError("long reply aborted", "opcode", op.String(), "moved", moved, "total", len(buf), "error", err)
			return reply, moved, &TransferError{Opcode: op, Moved: moved, Total: len(buf), Err: err}
		}
		moved += n
	}

	s.logDebug("long reply complete", "opcode", op.String(), "bytes", moved)
	return reply, moved, nil
}

// checkLong rejects commands whose opcode or length field cannot describe
// the payload that follows. Unknown opcodes pass unchecked.
func checkLong(cmd protocol.Command, dir protocol.Direction, n int) error {
	op := cmd.Opcode()
	if !op.Valid() {
		return nil
	}
	if op.Payload() != dir {
		return fmt.Errorf("%s does not carry a payload in this direction", op)
	}
	if cmd.Length() != n {
		return fmt.Errorf("command length field %d does not match payload length %d", cmd.Length(), n)
	}
	return nil
}

// exchange sends one command frame and receives one reply frame.
func (s *Session) exchange(ctx context.Context, cmd protocol.Command, replyTimeout time.Duration) (protocol.CommandReply, error) {
	op := cmd.Opcode()

	out := cmd.Bytes()
	if size := s.t.Limits().CommandFrame; size > 0 {
		out = make([]byte, size)
		copy(out, cmd.Bytes())
	}

	sctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	n, err := s.t.Send(sctx, out)
	cancel()
	if err == nil && n != len(out) {
		err = &transport.IOError{Op: "send", Requested: len(out), Actual: n, Err: transport.ErrShortTransfer}
	}
	if err != nil {
		return protocol.CommandReply{}, fmt.Errorf("send command: %w", err)
	}

	rctx, cancel := context.WithTimeout(ctx, replyTimeout)
	n, err = s.t.Receive(rctx, s.rbuf)
	cancel()
	if err != nil {
		return protocol.CommandReply{}, fmt.Errorf("receive reply: %w", err)
	}

	reply, err := protocol.NewReply(s.rbuf[:n])
	if err != nil {
		return protocol.CommandReply{}, fmt.Errorf("receive reply: %w", err)
	}

	s.logDebug("exchange",
		"opcode", op.String(),
		"command", fmt.Sprintf("% X", cmd.Bytes()),
		"status", fmt.Sprintf("0x%02X", reply.Status()),
	)
	return reply, nil
}

func (s *Session) sendChunk(ctx context.Context, p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	return s.t.Send(ctx, p)
}

func (s *Session) receiveChunk(ctx context.Context, p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	return s.t.Receive(ctx, p)
}

// reportProgress calls the progress callback if configured.
func (s *Session) reportProgress(progress Progress) {
	if s.config.ProgressCallback != nil {
		s.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (s *Session) logDebug(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (s *Session) logInfo(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (s *Session) logError(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Error(msg, keysAndValues...)
	}
}
