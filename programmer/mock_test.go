package programmer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mojo-nes/mk3prog/transport"
)

var (
	bulkLimits = transport.Limits{
		CommandFrame:  transport.FrameLen,
		ReplyCapacity: transport.FrameLen,
		SendChunk:     0,
		ReceiveChunk:  transport.BulkReceiveChunk,
	}
	serialLimits = transport.Limits{
		CommandFrame:  0,
		ReplyCapacity: transport.FrameLen,
		SendChunk:     transport.SerialChunk,
		ReceiveChunk:  transport.SerialChunk,
	}
)

// mockTransport records sends and serves queued receive units.
type mockTransport struct {
	limits   transport.Limits
	sends    [][]byte
	units    [][]byte
	recvs    []int
	failSend int // fail the Nth send (1-based), 0 never
	closed   bool
}

func newMockTransport(limits transport.Limits) *mockTransport {
	return &mockTransport{limits: limits}
}

// queue adds one receive unit.
func (m *mockTransport) queue(unit ...byte) {
	m.units = append(m.units, unit)
}

func (m *mockTransport) Send(ctx context.Context, p []byte) (int, error) {
	m.sends = append(m.sends, append([]byte(nil), p...))
	if m.failSend != 0 && len(m.sends) == m.failSend {
		return 0, &transport.IOError{Op: "send", Requested: len(p), Err: errors.New("link down")}
	}
	return len(p), nil
}

func (m *mockTransport) Receive(ctx context.Context, p []byte) (int, error) {
	if len(m.units) == 0 {
		return 0, &transport.IOError{Op: "receive", Requested: len(p), Err: transport.ErrTimeout}
	}
	unit := m.units[0]
	m.units = m.units[1:]
	if len(unit) > len(p) {
		return 0, fmt.Errorf("unit of %d bytes exceeds capacity %d", len(unit), len(p))
	}
	n := copy(p, unit)
	m.recvs = append(m.recvs, n)
	return n, nil
}

func (m *mockTransport) Limits() transport.Limits {
	return m.limits
}

func (m *mockTransport) Close() error {
	m.closed = true
	return nil
}

// MockLogger records log calls.
type MockLogger struct {
	debugs []string
	infos  []string
	errors []string
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) {
	l.debugs = append(l.debugs, msg)
}

func (l *MockLogger) Info(msg string, kv ...interface{}) {
	l.infos = append(l.infos, msg)
}

func (l *MockLogger) Error(msg string, kv ...interface{}) {
	l.errors = append(l.errors, msg)
}

func okReply() []byte {
	return []byte{0x00}
}

func bulkReply(status byte, result ...byte) []byte {
	r := make([]byte, transport.FrameLen)
	r[0] = status
	copy(r[1:], result)
	return r
}
