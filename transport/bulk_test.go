package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

type fakeBulkOut struct {
	writes [][]byte
	short  int
	err    error
}

func (f *fakeBulkOut) WriteContext(ctx context.Context, p []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	if f.short > 0 {
		return f.short, nil
	}
	return len(p), nil
}

type fakeBulkIn struct {
	packets [][]byte
}

func (f *fakeBulkIn) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(f.packets) == 0 {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	pkt := f.packets[0]
	f.packets = f.packets[1:]
	return copy(p, pkt), nil
}

func TestBulkSendReceive(t *testing.T) {
	reply := make([]byte, FrameLen)
	reply[1] = 0x02
	in := &fakeBulkIn{packets: [][]byte{reply}}
	out := &fakeBulkOut{}
	b := newBulk(in, out, nil)

	cmd := make([]byte, FrameLen)
	cmd[0] = 0x01
	if n, err := b.Send(context.Background(), cmd); err != nil || n != FrameLen {
		t.Fatalf("Send = %d, %v", n, err)
	}

	buf := make([]byte, FrameLen)
	n, err := b.Receive(context.Background(), buf)
	if err != nil || n != FrameLen {
		t.Fatalf("Receive = %d, %v", n, err)
	}
	if !bytes.Equal(buf, reply) {
		t.Error("reply mismatch")
	}
}

func TestBulkShortTransfers(t *testing.T) {
	t.Run("short write", func(t *testing.T) {
		b := newBulk(&fakeBulkIn{}, &fakeBulkOut{short: 10}, nil)

		n, err := b.Send(context.Background(), make([]byte, FrameLen))
		if !errors.Is(err, ErrShortTransfer) {
			t.Fatalf("error = %v, want ErrShortTransfer", err)
		}
		if n != 10 {
			t.Errorf("n = %d, want 10", n)
		}
	})

	t.Run("short read", func(t *testing.T) {
		b := newBulk(&fakeBulkIn{packets: [][]byte{make([]byte, 100)}}, &fakeBulkOut{}, nil)

		_, err := b.Receive(context.Background(), make([]byte, BulkReceiveChunk))
		var ioe *IOError
		if !errors.As(err, &ioe) {
			t.Fatalf("error = %v, want *IOError", err)
		}
		if ioe.Requested != BulkReceiveChunk || ioe.Actual != 100 {
			t.Errorf("IOError = %+v", ioe)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		b := newBulk(&fakeBulkIn{}, &fakeBulkOut{}, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 0)
		defer cancel()
		_, err := b.Receive(ctx, make([]byte, FrameLen))
		if !IsTimeout(err) {
			t.Fatalf("error = %v, want timeout", err)
		}
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("error does not wrap ErrTimeout: %v", err)
		}
	})
}

func TestBulkClose(t *testing.T) {
	released := 0
	b := newBulk(&fakeBulkIn{}, &fakeBulkOut{}, func() error {
		released++
		return nil
	})

	b.Close()
	b.Close()
	if released != 1 {
		t.Errorf("released %d times, want 1", released)
	}
	if _, err := b.Receive(context.Background(), make([]byte, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive after Close = %v, want ErrClosed", err)
	}

	lim := b.Limits()
	if lim.CommandFrame != 64 || lim.ReceiveChunk != 384 || lim.SendChunk != 0 {
		t.Errorf("Limits = %+v", lim)
	}
}

func TestOpenErrorMessage(t *testing.T) {
	err := &OpenError{Step: StepClaim, Target: DefaultBulkConfig().String(), Err: errors.New("busy")}
	want := "open usb 03eb:206c: claim failed: busy"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
