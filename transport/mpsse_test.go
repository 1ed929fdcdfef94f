package transport

import (
	"bytes"
	"context"
	"testing"
)

type fakeFTDI struct {
	controls [][2]uint16
	writes   [][]byte
	packets  [][]byte
	mp       int
	hs       bool
	closed   bool
}

func (f *fakeFTDI) control(request uint8, value uint16) error {
	f.controls = append(f.controls, [2]uint16{uint16(request), value})
	return nil
}

func (f *fakeFTDI) write(ctx context.Context, p []byte) (int, error) {
	f.writes = append(f.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeFTDI) read(ctx context.Context, p []byte) (int, error) {
	if len(f.packets) == 0 {
		return copy(p, []byte{0x32, 0x60}), nil
	}
	pkt := f.packets[0]
	f.packets = f.packets[1:]
	return copy(p, pkt), nil
}

func (f *fakeFTDI) maxPacket() int  { return f.mp }
func (f *fakeFTDI) highSpeed() bool { return f.hs }
func (f *fakeFTDI) close() error {
	f.closed = true
	return nil
}

func TestMPSSESetup(t *testing.T) {
	tests := []struct {
		name    string
		hs      bool
		clock   int
		wantCmd []byte
	}{
		{
			name:  "FT2232D 100 kHz",
			hs:    false,
			clock: 100000,
			wantCmd: []byte{
				mpsseSetDivisor, 59, 0,
				mpsseLoopbackOff,
				mpsseSetLow, pinCS, pinDirLow,
				mpsseSetHigh, 0x00, pinGPIOH1,
			},
		},
		{
			name:  "FT2232H 100 kHz",
			hs:    true,
			clock: 100000,
			wantCmd: []byte{
				mpsseDiv5On, mpsseAdaptiveOff, mpsse3PhaseOff,
				mpsseSetDivisor, 59, 0,
				mpsseLoopbackOff,
				mpsseSetLow, pinCS, pinDirLow,
				mpsseSetHigh, 0x00, pinGPIOH1,
			},
		},
		{
			name:  "FT2232H 10 MHz",
			hs:    true,
			clock: 10000000,
			wantCmd: []byte{
				mpsseDiv5Off, mpsseAdaptiveOff, mpsse3PhaseOff,
				mpsseSetDivisor, 2, 0,
				mpsseLoopbackOff,
				mpsseSetLow, pinCS, pinDirLow,
				mpsseSetHigh, 0x00, pinGPIOH1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &fakeFTDI{mp: 64, hs: tt.hs}
			cfg := DefaultMPSSEConfig()
			cfg.ClockHz = tt.clock

			m := newMPSSE(port, cfg)
			if err := m.setup(context.Background()); err != nil {
				t.Fatalf("setup: %v", err)
			}

			if len(port.writes) != 1 || !bytes.Equal(port.writes[0], tt.wantCmd) {
				t.Errorf("setup commands = % X, want % X", port.writes, tt.wantCmd)
			}

			var sawMPSSE bool
			for _, c := range port.controls {
				if c[0] == sioSetBitmode && c[1] == bitmodeMPSSE<<8 {
					sawMPSSE = true
				}
			}
			if !sawMPSSE {
				t.Error("MPSSE bitmode never set")
			}
		})
	}
}

func TestMPSSEExchange(t *testing.T) {
	port := &fakeFTDI{mp: 8}
	m := newMPSSE(port, DefaultMPSSEConfig())
	ctx := context.Background()

	if err := m.StartExchange(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteBytes(ctx, []byte{0x7E, 0x01, 0x05, 0x7D}); err != nil {
		t.Fatal(err)
	}
	if err := m.StopExchange(ctx); err != nil {
		t.Fatal(err)
	}

	want := [][]byte{
		{mpsseSetLow, 0x00, pinDirLow},
		{mpsseWriteNegMSB, 0x03, 0x00, 0x7E, 0x01, 0x05, 0x7D},
		{mpsseSetLow, pinCS, pinDirLow},
	}
	if len(port.writes) != len(want) {
		t.Fatalf("writes = % X", port.writes)
	}
	for i := range want {
		if !bytes.Equal(port.writes[i], want[i]) {
			t.Errorf("write %d = % X, want % X", i, port.writes[i], want[i])
		}
	}
}

func TestMPSSEReadStripsStatus(t *testing.T) {
	port := &fakeFTDI{
		mp: 8,
		packets: [][]byte{
			{0x32, 0x60},
			// two max-size packets in one transfer, then a partial one
			{0x32, 0x60, 1, 2, 3, 4, 5, 6, 0x32, 0x60, 7, 8, 9, 10, 11, 12, 0x32, 0x60, 13},
		},
	}
	m := newMPSSE(port, DefaultMPSSEConfig())

	buf := make([]byte, 13)
	if err := m.ReadBytes(context.Background(), buf); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}
	if !bytes.Equal(buf, want) {
		t.Errorf("data = % X, want % X", buf, want)
	}
	if cmd := port.writes[0]; !bytes.Equal(cmd, []byte{mpsseReadPosMSB, 12, 0, mpsseSendImmediate}) {
		t.Errorf("read command = % X", cmd)
	}
}

func TestMPSSEClose(t *testing.T) {
	port := &fakeFTDI{mp: 64}
	m := newMPSSE(port, DefaultMPSSEConfig())

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
	if last := port.writes[len(port.writes)-1]; !bytes.Equal(last, []byte{mpsseSetHigh, pinGPIOH1, pinGPIOH1}) {
		t.Errorf("LED not turned off: % X", last)
	}
	if err := m.WriteBytes(context.Background(), []byte{1}); err == nil {
		t.Error("expected error after Close")
	}
}

func TestClockDivisor(t *testing.T) {
	if _, err := clockDivisor(12000000, 0); err == nil {
		t.Error("expected error for 0 Hz")
	}
	if _, err := clockDivisor(60000000, 100); err == nil {
		t.Error("expected error for divisor overflow")
	}
	if d, _ := clockDivisor(12000000, 6000000); d != 0 {
		t.Errorf("divisor = %d, want 0", d)
	}
}
