package programmer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mojo-nes/mk3prog/protocol"
	"github.com/mojo-nes/mk3prog/transport"
)

func TestNewPanicsOnNilTransport(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(nil) did not panic")
		}
	}()
	New(nil)
}

func TestNewOptions(t *testing.T) {
	logger := &MockLogger{}
	s := New(newMockTransport(serialLimits),
		WithLogger(logger),
		WithTimeout(time.Second),
		WithEraseTimeout(time.Minute),
		WithWindowSize(1024),
		WithWindowSize(70000),
	)

	if s.config.Timeout != time.Second {
		t.Errorf("Timeout = %v, want 1s", s.config.Timeout)
	}
	if s.config.EraseTimeout != time.Minute {
		t.Errorf("EraseTimeout = %v, want 1m", s.config.EraseTimeout)
	}
	if s.config.WindowSize != 1024 {
		t.Errorf("WindowSize = %d, want 1024", s.config.WindowSize)
	}
	if s.config.Logger != logger {
		t.Error("Logger not set")
	}
}

func TestSendPadsBulkCommands(t *testing.T) {
	m := newMockTransport(bulkLimits)
	m.queue(bulkReply(0x00)...)
	s := New(m)

	cmd, _ := protocol.BuildEraseCmd(protocol.OpErasePRG, protocol.EraseChipSector)
	reply, err := s.Send(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Status() != protocol.StatusOK {
		t.Errorf("status = 0x%02X, want 0x00", reply.Status())
	}

	if len(m.sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(m.sends))
	}
	want := make([]byte, transport.FrameLen)
	copy(want, []byte{0x07, 0xFF, 0xFF, 0xFF})
	if !bytes.Equal(m.sends[0], want) {
		t.Errorf("sent % X, want % X", m.sends[0], want)
	}
}

func TestSendNaturalLengthOnSerial(t *testing.T) {
	m := newMockTransport(serialLimits)
	m.queue(0x00, 0x02, 0x05)
	s := New(m)

	v, err := s.FirmwareVersion(context.Background())
	if err != nil {
		t.Fatalf("FirmwareVersion: %v", err)
	}
	if v.Major != 2 || v.Minor != 5 {
		t.Errorf("version = %d.%d, want 2.5", v.Major, v.Minor)
	}
	if !bytes.Equal(m.sends[0], []byte{0x01}) {
		t.Errorf("sent % X, want 01", m.sends[0])
	}
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m *mockTransport)
		wantErr string
	}{
		{
			name:    "send fails",
			setup:   func(m *mockTransport) { m.failSend = 1 },
			wantErr: "send command",
		},
		{
			name:    "no reply",
			setup:   func(m *mockTransport) {},
			wantErr: "receive reply",
		},
		{
			name:    "empty reply",
			setup:   func(m *mockTransport) { m.queue() },
			wantErr: "empty reply",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockTransport(serialLimits)
			tt.setup(m)
			s := New(m)

			cmd, _ := protocol.BuildFirmwareVersionCmd()
			_, err := s.Send(context.Background(), cmd)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
			var te *TransferError
			if !errors.As(err, &te) || te.Opcode != protocol.OpFirmwareVersion {
				t.Errorf("error = %v, want a TransferError for %s", err, protocol.OpFirmwareVersion)
			}
			if !strings.HasPrefix(err.Error(), protocol.OpFirmwareVersion.String()+": ") {
				t.Errorf("error = %q, want it to name the opcode", err)
			}
		})
	}
}

func TestSendLongCommandChunking(t *testing.T) {
	tests := []struct {
		name      string
		limits    transport.Limits
		length    int
		wantSizes []int
	}{
		{"serial one byte", serialLimits, 1, []int{1}},
		{"serial exact chunk", serialLimits, 32, []int{32}},
		{"serial one over", serialLimits, 33, []int{32, 1}},
		{"serial 100", serialLimits, 100, []int{32, 32, 32, 4}},
		{"bulk single send", bulkLimits, 1000, []int{1000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockTransport(tt.limits)
			m.queue(okReply()...)
			s := New(m)

			payload := bytes.Repeat([]byte{0xA5}, tt.length)
			cmd, _ := protocol.BuildReadWriteCmd(protocol.OpWritePRG, 0x1000, tt.length)
			reply, moved, err := s.SendLongCommand(context.Background(), cmd, payload)
			if err != nil {
				t.Fatalf("SendLongCommand: %v", err)
			}
			if !reply.OK() {
				t.Errorf("reply status = 0x%02X", reply.Status())
			}
			if moved != tt.length {
				t.Errorf("moved = %d, want %d", moved, tt.length)
			}

			chunks := m.sends[1:]
			if len(chunks) != len(tt.wantSizes) {
				t.Fatalf("payload sends = %d, want %d", len(chunks), len(tt.wantSizes))
			}
			var got []byte
			for i, c := range chunks {
				if len(c) != tt.wantSizes[i] {
					t.Errorf("chunk %d = %d bytes, want %d", i, len(c), tt.wantSizes[i])
				}
				got = append(got, c...)
			}
			if !bytes.Equal(got, payload) {
				t.Error("chunks do not reassemble to the payload")
			}
		})
	}
}

func TestSendLongCommandStatusAbort(t *testing.T) {
	m := newMockTransport(serialLimits)
	m.queue(0xFF)
	s := New(m)

	cmd, _ := protocol.BuildReadWriteCmd(protocol.OpWriteCHR, 0, 64)
	reply, moved, err := s.SendLongCommand(context.Background(), cmd, make([]byte, 64))
	if err == nil {
		t.Fatal("expected error")
	}
	if !protocol.IsStatusError(err) {
		t.Errorf("error = %v, want a StatusError", err)
	}
	if reply.Status() != protocol.StatusFailed {
		t.Errorf("reply status = 0x%02X, want 0xFF", reply.Status())
	}
	if moved != 0 {
		t.Errorf("moved = %d, want 0", moved)
	}
	if len(m.sends) != 1 {
		t.Errorf("sends = %d, want only the header", len(m.sends))
	}
}

func TestSendLongCommandPartialFailure(t *testing.T) {
	logger := &MockLogger{}
	m := newMockTransport(serialLimits)
	m.queue(okReply()...)
	m.failSend = 3
	s := New(m, WithLogger(logger))

	cmd, _ := protocol.BuildReadWriteCmd(protocol.OpWritePRG, 0, 100)
	_, moved, err := s.SendLongCommand(context.Background(), cmd, make([]byte, 100))
	if err == nil {
		t.Fatal("expected error")
	}
	if moved != 32 {
		t.Errorf("moved = %d, want 32", moved)
	}

	var te *TransferError
	if !errors.As(err, &te) {
		t.Fatalf("error = %T, want *TransferError", err)
	}
	if te.Moved != 32 || te.Total != 100 || te.Opcode != protocol.OpWritePRG {
		t.Errorf("TransferError = %+v", te)
	}
	if len(logger.errors) == 0 {
		t.Error("abort was not logged")
	}
}

func TestSendLongReplyChunking(t *testing.T) {
	tests := []struct {
		name      string
		limits    transport.Limits
		length    int
		wantSizes []int
	}{
		{"serial 100", serialLimits, 100, []int{32, 32, 32, 4}},
		{"bulk 1000", bulkLimits, 1000, []int{384, 384, 232}},
		{"bulk one chunk", bulkLimits, 384, []int{384}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockTransport(tt.limits)
			m.queue(okReply()...)
			want := make([]byte, tt.length)
			for i := range want {
				want[i] = byte(i)
			}
			off := 0
			for _, n := range tt.wantSizes {
				m.queue(want[off : off+n]...)
				off += n
			}
			s := New(m)

			cmd, _ := protocol.BuildReadWriteCmd(protocol.OpReadRAM, 0, tt.length)
			buf := make([]byte, tt.length)
			_, moved, err := s.SendLongReply(context.Background(), cmd, buf)
			if err != nil {
				t.Fatalf("SendLongReply: %v", err)
			}
			if moved != tt.length {
				t.Errorf("moved = %d, want %d", moved, tt.length)
			}
			if !bytes.Equal(buf, want) {
				t.Error("payload mismatch")
			}
			if len(m.recvs) != 1+len(tt.wantSizes) {
				t.Errorf("receives = %v, want header plus %v", m.recvs, tt.wantSizes)
			}
		})
	}
}

func TestSendLongReplyShortChunk(t *testing.T) {
	m := newMockTransport(serialLimits)
	m.queue(okReply()...)
	m.queue(make([]byte, 32)...)
	m.queue(make([]byte, 20)...)
	s := New(m)

	cmd, _ := protocol.BuildReadWriteCmd(protocol.OpReadCHR, 0, 100)
	_, moved, err := s.SendLongReply(context.Background(), cmd, make([]byte, 100))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, transport.ErrShortTransfer) {
		t.Errorf("error = %v, want ErrShortTransfer", err)
	}
	if moved != 32 {
		t.Errorf("moved = %d, want 32", moved)
	}
}

func TestSendLongReplyStatusAbort(t *testing.T) {
	m := newMockTransport(bulkLimits)
	m.queue(bulkReply(0xFF)...)
	s := New(m)

	cmd, _ := protocol.BuildReadWriteCmd(protocol.OpReadPRG, 0, 10)
	_, moved, err := s.SendLongReply(context.Background(), cmd, make([]byte, 10))
	if !protocol.IsStatusError(err) {
		t.Fatalf("error = %v, want a StatusError", err)
	}
	if moved != 0 || len(m.recvs) != 1 {
		t.Errorf("moved = %d, receives = %v: payload must not be read", moved, m.recvs)
	}
}

func TestLongTransferArgumentChecks(t *testing.T) {
	write, _ := protocol.BuildReadWriteCmd(protocol.OpWriteCHR, 0, 16)
	read, _ := protocol.BuildReadWriteCmd(protocol.OpReadCHR, 0, 16)

	tests := []struct {
		name    string
		run     func(s *Session) error
		wantErr string
	}{
		{
			name: "length mismatch",
			run: func(s *Session) error {
				_, _, err := s.SendLongCommand(context.Background(), write, make([]byte, 8))
				return err
			},
			wantErr: "does not match payload length",
		},
		{
			name: "reply opcode on long command",
			run: func(s *Session) error {
				_, _, err := s.SendLongCommand(context.Background(), read, make([]byte, 16))
				return err
			},
			wantErr: "does not carry a payload",
		},
		{
			name: "command opcode on long reply",
			run: func(s *Session) error {
				_, _, err := s.SendLongReply(context.Background(), write, make([]byte, 16))
				return err
			},
			wantErr: "does not carry a payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockTransport(serialLimits)
			err := tt.run(New(m))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
			if len(m.sends) != 0 {
				t.Error("nothing should be sent")
			}
		})
	}
}

func TestClose(t *testing.T) {
	m := newMockTransport(serialLimits)
	if err := New(m).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !m.closed {
		t.Error("transport not closed")
	}
}
