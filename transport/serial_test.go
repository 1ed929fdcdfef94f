package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/mojo-nes/mk3prog/frame"
)

func TestSerialSendChunking(t *testing.T) {
	tests := []struct {
		name       string
		length     int
		wantFrames []int
	}{
		{"empty", 0, []int{0}},
		{"one byte", 1, []int{1}},
		{"exactly one frame", 32, []int{32}},
		{"one over", 33, []int{32, 1}},
		{"hundred bytes", 100, []int{32, 32, 32, 4}},
		{"multiple of 32", 96, []int{32, 32, 32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := newMockLink(nil)
			s := NewSerial(link)

			payload := make([]byte, tt.length)
			for i := range payload {
				payload[i] = byte(i)
			}

			n, err := s.Send(context.Background(), payload)
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if n != tt.length {
				t.Errorf("Send = %d, want %d", n, tt.length)
			}

			if len(link.exchanges) != len(tt.wantFrames) {
				t.Fatalf("frames = %d, want %d", len(link.exchanges), len(tt.wantFrames))
			}

			var joined []byte
			for i, ex := range link.exchanges {
				if ex[0] != frame.Start || ex[len(ex)-1] != frame.End {
					t.Errorf("frame %d not delimited: % X", i, ex)
				}
				if int(ex[1]) != tt.wantFrames[i] {
					t.Errorf("frame %d length = %d, want %d", i, ex[1], tt.wantFrames[i])
				}
				joined = append(joined, ex[2:len(ex)-1]...)
			}
			if !bytes.Equal(joined, payload) {
				t.Error("concatenated frames differ from payload")
			}
			if link.starts != link.stops {
				t.Errorf("starts = %d, stops = %d", link.starts, link.stops)
			}
		})
	}
}

func TestSerialSendPartialFailure(t *testing.T) {
	link := newMockLink(nil)
	link.failWrite = 3
	s := NewSerial(link)

	n, err := s.Send(context.Background(), make([]byte, 100))
	if err == nil {
		t.Fatal("expected error")
	}
	if n != 64 {
		t.Errorf("Send = %d, want 64 (two complete frames)", n)
	}

	var ioe *IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("error = %T, want *IOError", err)
	}
	if ioe.Requested != 100 || ioe.Actual != 64 {
		t.Errorf("IOError = %+v", ioe)
	}
	if link.starts != link.stops {
		t.Errorf("chip select left asserted: starts = %d, stops = %d", link.starts, link.stops)
	}
}

func TestSerialReceive(t *testing.T) {
	wire, _ := frame.Encode([]byte{0x00, 0x01, 0x02})
	wire = append([]byte{0xAA, 0xBB}, wire...)

	link := newMockLink(wire)
	s := NewSerial(link)

	buf := make([]byte, FrameLen)
	n, err := s.Receive(context.Background(), buf)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte{0x00, 0x01, 0x02}) {
		t.Errorf("payload = % X", buf[:n])
	}
	if link.starts != 1 || link.stops != 1 {
		t.Errorf("starts = %d, stops = %d, want 1/1", link.starts, link.stops)
	}
}

func TestSerialReceiveErrors(t *testing.T) {
	t.Run("capacity", func(t *testing.T) {
		wire, _ := frame.Encode(make([]byte, 20))
		s := NewSerial(newMockLink(wire))

		_, err := s.Receive(context.Background(), make([]byte, 8))
		if !errors.Is(err, frame.ErrCapacity) {
			t.Fatalf("error = %v, want ErrCapacity", err)
		}
	})

	t.Run("end marker", func(t *testing.T) {
		wire := []byte{frame.Start, 0x01, 0x00, 0x00}
		link := newMockLink(wire)
		s := NewSerial(link)

		_, err := s.Receive(context.Background(), make([]byte, 8))
		if !errors.Is(err, frame.ErrEndMarker) {
			t.Fatalf("error = %v, want ErrEndMarker", err)
		}
		if link.stops != 1 {
			t.Errorf("stops = %d, want 1", link.stops)
		}
	})

	t.Run("link drained", func(t *testing.T) {
		s := NewSerial(newMockLink([]byte{frame.Start}))

		_, err := s.Receive(context.Background(), make([]byte, 8))
		var ioe *IOError
		if !errors.As(err, &ioe) {
			t.Fatalf("error = %v, want *IOError", err)
		}
	})

	t.Run("resync limit", func(t *testing.T) {
		wire := append(bytes.Repeat([]byte{0x55}, 10), frame.Start, 0x00, frame.End)
		s := NewSerial(newMockLink(wire), WithResyncLimit(4))

		_, err := s.Receive(context.Background(), make([]byte, 8))
		if !errors.Is(err, frame.ErrResync) {
			t.Fatalf("error = %v, want ErrResync", err)
		}
	})
}

func TestSerialClose(t *testing.T) {
	link := newMockLink(nil)
	s := NewSerial(link)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !link.closed {
		t.Error("link not closed")
	}
	if _, err := s.Send(context.Background(), []byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}

	lim := s.Limits()
	if lim.SendChunk != 32 || lim.ReceiveChunk != 32 || lim.CommandFrame != 0 {
		t.Errorf("Limits = %+v", lim)
	}
}
