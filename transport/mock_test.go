package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// mockLink records every exchange and serves reads from a byte queue.
type mockLink struct {
	rx        *bytes.Buffer
	exchanges [][]byte
	cur       *bytes.Buffer
	starts    int
	stops     int
	failWrite int // fail the Nth write (1-based), 0 never
	writes    int
	closed    bool
}

func newMockLink(rx []byte) *mockLink {
	return &mockLink{rx: bytes.NewBuffer(rx)}
}

func (l *mockLink) StartExchange(ctx context.Context) error {
	l.starts++
	l.cur = new(bytes.Buffer)
	return nil
}

func (l *mockLink) WriteBytes(ctx context.Context, p []byte) error {
	l.writes++
	if l.failWrite != 0 && l.writes == l.failWrite {
		return errors.New("link write failed")
	}
	l.cur.Write(p)
	return nil
}

func (l *mockLink) ReadBytes(ctx context.Context, p []byte) error {
	_, err := io.ReadFull(l.rx, p)
	return err
}

func (l *mockLink) StopExchange(ctx context.Context) error {
	l.stops++
	if l.cur != nil && l.cur.Len() > 0 {
		l.exchanges = append(l.exchanges, l.cur.Bytes())
	}
	l.cur = nil
	return nil
}

func (l *mockLink) Close() error {
	l.closed = true
	return nil
}
