package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// FTDI vendor requests.
const (
	ftdiReqOut = 0x40

	sioReset        = 0x00
	sioSetLatency   = 0x09
	sioSetBitmode   = 0x0B
	sioResetSIO     = 0
	sioPurgeRX      = 1
	sioPurgeTX      = 2
	bitmodeReset    = 0x00
	bitmodeMPSSE    = 0x02
	ftdiStatusBytes = 2
)

// MPSSE opcodes.
const (
	mpsseWriteNegMSB   = 0x11
	mpsseReadPosMSB    = 0x20
	mpsseSetLow        = 0x80
	mpsseSetHigh       = 0x82
	mpsseLoopbackOff   = 0x85
	mpsseSetDivisor    = 0x86
	mpsseSendImmediate = 0x87
	mpsseDiv5Off       = 0x8A
	mpsseDiv5On        = 0x8B
	mpsse3PhaseOff     = 0x8D
	mpsseAdaptiveOff   = 0x97
)

// Low byte pins: SK, DO (MOSI), DI (MISO), CS. GPIOH1 drives the activity LED.
const (
	pinSK     = 1 << 0
	pinDO     = 1 << 1
	pinCS     = 1 << 3
	pinDirLow = pinSK | pinDO | pinCS
	pinGPIOH1 = 1 << 1

	maxMPSSELen = 65536
)

// MPSSEConfig selects the FT2232 channel used as SPI master.
type MPSSEConfig struct {
	Vendor  gousb.ID
	Product gousb.ID

	// Interface is the FT2232 channel: 0 for A, 1 for B.
	Interface int

	// ClockHz is the SPI clock frequency.
	ClockHz int

	// LatencyMs is the FTDI latency timer.
	LatencyMs int
}

// DefaultMPSSEConfig returns the programmer's SPI settings: FT2232 channel B,
// mode 0, 100 kHz.
func DefaultMPSSEConfig() MPSSEConfig {
	return MPSSEConfig{
		Vendor:    0x0403,
		Product:   0x6010,
		Interface: 1,
		ClockHz:   100000,
		LatencyMs: 2,
	}
}

func (c MPSSEConfig) String() string {
	return fmt.Sprintf("mpsse %s:%s channel %c", c.Vendor, c.Product, 'A'+rune(c.Interface))
}

// ftdiPort is the raw access MPSSE needs from an FTDI channel.
type ftdiPort interface {
	control(request uint8, value uint16) error
	write(ctx context.Context, p []byte) (int, error)
	read(ctx context.Context, p []byte) (int, error)
	maxPacket() int
	highSpeed() bool
	close() error
}

// MPSSE is a Link driving an FT2232 channel as an SPI master, mode 0, MSB
// first. Chip select frames each exchange.
type MPSSE struct {
	port   ftdiPort
	cfg    MPSSEConfig
	rbuf   []byte
	closed bool
}

// OpenMPSSE opens the FT2232 channel, switches it to MPSSE mode and sets
// up SPI. The activity LED on GPIOH1 is turned on while the link is open.
func OpenMPSSE(ctx context.Context, cfg MPSSEConfig) (*MPSSE, error) {
	if cfg.Interface < 0 || cfg.Interface > 1 {
		return nil, &OpenError{Step: StepLocate, Target: cfg.String(),
			Err: fmt.Errorf("invalid channel %d", cfg.Interface)}
	}

	port, err := openFTDI(cfg)
	if err != nil {
		return nil, err
	}

	m := newMPSSE(port, cfg)
	if err := m.setup(ctx); err != nil {
		port.close()
		return nil, &OpenError{Step: StepConfigure, Target: cfg.String(), Err: err}
	}
	return m, nil
}

func newMPSSE(port ftdiPort, cfg MPSSEConfig) *MPSSE {
	return &MPSSE{
		port: port,
		cfg:  cfg,
		rbuf: make([]byte, port.maxPacket()*8),
	}
}

func (m *MPSSE) setup(ctx context.Context) error {
	latency := m.cfg.LatencyMs
	if latency <= 0 {
		latency = 2
	}

	steps := []struct {
		req uint8
		val uint16
	}{
		{sioReset, sioResetSIO},
		{sioSetLatency, uint16(latency)},
		{sioSetBitmode, bitmodeReset << 8},
		{sioSetBitmode, bitmodeMPSSE << 8},
		{sioReset, sioPurgeRX},
		{sioReset, sioPurgeTX},
	}
	for _, s := range steps {
		if err := m.port.control(s.req, s.val); err != nil {
			return fmt.Errorf("control request 0x%02X: %w", s.req, err)
		}
	}

	base, div5 := 12000000, byte(0)
	if m.port.highSpeed() {
		if m.cfg.ClockHz > 6000000 {
			base, div5 = 60000000, mpsseDiv5Off
		} else {
			div5 = mpsseDiv5On
		}
	}
	divisor, err := clockDivisor(base, m.cfg.ClockHz)
	if err != nil {
		return err
	}

	cmd := make([]byte, 0, 16)
	if div5 != 0 {
		cmd = append(cmd, div5, mpsseAdaptiveOff, mpsse3PhaseOff)
	}
	cmd = append(cmd,
		mpsseSetDivisor, byte(divisor), byte(divisor>>8),
		mpsseLoopbackOff,
		mpsseSetLow, pinCS, pinDirLow,
		mpsseSetHigh, 0x00, pinGPIOH1,
	)
	return m.writeAll(ctx, cmd)
}

// clockDivisor returns the MPSSE divisor for hz given the base clock.
// SCK = base / ((1 + divisor) * 2).
func clockDivisor(base, hz int) (int, error) {
	if hz <= 0 {
		return 0, fmt.Errorf("invalid SPI clock %d Hz", hz)
	}
	d := base/(2*hz) - 1
	if d < 0 {
		d = 0
	}
	if d > 0xFFFF {
		return 0, fmt.Errorf("SPI clock %d Hz too low for %d Hz base clock", hz, base)
	}
	return d, nil
}

// StartExchange asserts chip select.
func (m *MPSSE) StartExchange(ctx context.Context) error {
	return m.writeAll(ctx, []byte{mpsseSetLow, 0x00, pinDirLow})
}

// StopExchange releases chip select.
func (m *MPSSE) StopExchange(ctx context.Context) error {
	return m.writeAll(ctx, []byte{mpsseSetLow, pinCS, pinDirLow})
}

// WriteBytes clocks p out on MOSI.
func (m *MPSSE) WriteBytes(ctx context.Context, p []byte) error {
	for len(p) > 0 {
		n := min(len(p), maxMPSSELen)
		cmd := make([]byte, 0, 3+n)
		cmd = append(cmd, mpsseWriteNegMSB, byte(n-1), byte((n-1)>>8))
		cmd = append(cmd, p[:n]...)
		if err := m.writeAll(ctx, cmd); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// ReadBytes clocks len(p) bytes in from MISO.
func (m *MPSSE) ReadBytes(ctx context.Context, p []byte) error {
	for len(p) > 0 {
		n := min(len(p), maxMPSSELen)
		cmd := []byte{mpsseReadPosMSB, byte(n - 1), byte((n - 1) >> 8), mpsseSendImmediate}
		if err := m.writeAll(ctx, cmd); err != nil {
			return err
		}
		if err := m.readData(ctx, p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// readData fills p from the IN endpoint, dropping the two modem status
// bytes that prefix every USB packet.
func (m *MPSSE) readData(ctx context.Context, p []byte) error {
	if m.closed {
		return ErrClosed
	}

	mp := m.port.maxPacket()
	got := 0
	for got < len(p) {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := m.port.read(ctx, m.rbuf)
		if err != nil {
			return err
		}
		for off := 0; off < n; off += mp {
			end := min(off+mp, n)
			if end-off <= ftdiStatusBytes {
				continue
			}
			got += copy(p[got:], m.rbuf[off+ftdiStatusBytes:end])
		}
	}
	return nil
}

func (m *MPSSE) writeAll(ctx context.Context, p []byte) error {
	if m.closed {
		return ErrClosed
	}

	n, err := m.port.write(ctx, p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortTransfer, n, len(p))
	}
	return nil
}

// Close turns the LED off, leaves MPSSE mode and releases the channel.
func (m *MPSSE) Close() error {
	if m.closed {
		return nil
	}

	ctx := context.Background()
	err := m.writeAll(ctx, []byte{mpsseSetHigh, pinGPIOH1, pinGPIOH1})
	if cerr := m.port.control(sioSetBitmode, bitmodeReset<<8); err == nil {
		err = cerr
	}
	m.closed = true
	if cerr := m.port.close(); err == nil {
		err = cerr
	}
	return err
}

// usbFTDI is an ftdiPort backed by gousb.
type usbFTDI struct {
	dev   *gousb.Device
	intf  *gousb.Interface
	cfg   *gousb.Config
	uctx  *gousb.Context
	in    *gousb.InEndpoint
	out   *gousb.OutEndpoint
	index uint16
	hs    bool
}

func openFTDI(cfg MPSSEConfig) (*usbFTDI, error) {
	target := cfg.String()
	uctx := gousb.NewContext()

	dev, err := uctx.OpenDeviceWithVIDPID(cfg.Vendor, cfg.Product)
	if err == nil && dev == nil {
		err = ErrNotFound
	}
	if err != nil {
		if dev != nil {
			dev.Close()
		}
		uctx.Close()
		return nil, &OpenError{Step: StepLocate, Target: target, Err: err}
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		uctx.Close()
		return nil, &OpenError{Step: StepConfigure, Target: target, Err: err}
	}

	usbCfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		uctx.Close()
		return nil, &OpenError{Step: StepConfigure, Target: target, Err: err}
	}

	// Channel A uses endpoints 0x81/0x02, channel B 0x83/0x04.
	intf, err := usbCfg.Interface(cfg.Interface, 0)
	var in *gousb.InEndpoint
	var out *gousb.OutEndpoint
	if err == nil {
		in, err = intf.InEndpoint(1 + 2*cfg.Interface)
	}
	if err == nil {
		out, err = intf.OutEndpoint(2 + 2*cfg.Interface)
	}
	if err != nil {
		if intf != nil {
			intf.Close()
		}
		usbCfg.Close()
		dev.Close()
		uctx.Close()
		return nil, &OpenError{Step: StepClaim, Target: target, Err: err}
	}

	return &usbFTDI{
		dev:   dev,
		intf:  intf,
		cfg:   usbCfg,
		uctx:  uctx,
		in:    in,
		out:   out,
		index: uint16(cfg.Interface + 1),
		hs:    dev.Desc.Device >= gousb.Version(7, 0),
	}, nil
}

func (f *usbFTDI) control(request uint8, value uint16) error {
	_, err := f.dev.Control(ftdiReqOut, request, value, f.index, nil)
	return err
}

func (f *usbFTDI) write(ctx context.Context, p []byte) (int, error) {
	return f.out.WriteContext(ctx, p)
}

func (f *usbFTDI) read(ctx context.Context, p []byte) (int, error) {
	return f.in.ReadContext(ctx, p)
}

func (f *usbFTDI) maxPacket() int {
	return f.in.Desc.MaxPacketSize
}

func (f *usbFTDI) highSpeed() bool {
	return f.hs
}

func (f *usbFTDI) close() error {
	f.intf.Close()
	err := errors.Join(f.cfg.Close(), f.dev.Close())
	return errors.Join(err, f.uctx.Close())
}
