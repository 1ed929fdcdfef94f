package transport

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// BulkConfig selects the USB device and endpoints used by Bulk.
type BulkConfig struct {
	Vendor  gousb.ID
	Product gousb.ID

	// BootProduct is the product ID the programmer reports in bootloader
	// mode. It is only used to explain a failed lookup.
	BootProduct gousb.ID

	Config     int
	Interface  int
	AltSetting int

	// EndpointOut and EndpointIn are endpoint numbers, without the direction bit.
	EndpointOut int
	EndpointIn  int
}

// DefaultBulkConfig returns the settings of the mk3 programmer firmware:
// 03EB:206C, configuration 1, interface 0, EP 0x04 OUT, EP 0x83 IN.
func DefaultBulkConfig() BulkConfig {
	return BulkConfig{
		Vendor:      0x03EB,
		Product:     0x206C,
		BootProduct: 0x2FF9,
		Config:      1,
		Interface:   0,
		AltSetting:  0,
		EndpointOut: 0x04,
		EndpointIn:  0x03,
	}
}

func (c BulkConfig) String() string {
	return fmt.Sprintf("usb %s:%s", c.Vendor, c.Product)
}

type bulkIn interface {
	ReadContext(ctx context.Context, p []byte) (int, error)
}

type bulkOut interface {
	WriteContext(ctx context.Context, p []byte) (int, error)
}

// Bulk is a Transport over a pair of USB bulk endpoints. Every Send and
// Receive is exactly one transfer; a transfer moving fewer bytes than
// requested is an error.
type Bulk struct {
	in      bulkIn
	out     bulkOut
	release func() error
	closed  bool
}

// OpenBulk locates the programmer, selects its configuration and claims
// the interface. Kernel drivers bound to the interface are detached.
func OpenBulk(cfg BulkConfig) (*Bulk, error) {
	target := cfg.String()
	uctx := gousb.NewContext()

	dev, err := uctx.OpenDeviceWithVIDPID(cfg.Vendor, cfg.Product)
	if err == nil && dev == nil {
		err = ErrNotFound
		if cfg.BootProduct != 0 {
			if boot, _ := uctx.OpenDeviceWithVIDPID(cfg.Vendor, cfg.BootProduct); boot != nil {
				boot.Close()
				err = fmt.Errorf("%w: programmer is in bootloader mode (%s:%s)", ErrNotFound, cfg.Vendor, cfg.BootProduct)
			}
		}
	}
	if err != nil {
		if dev != nil {
			dev.Close()
		}
		uctx.Close()
		return nil, &OpenError{Step: StepLocate, Target: target, Err: err}
	}

	fail := func(step OpenStep, err error, closers ...func() error) (*Bulk, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, &OpenError{Step: step, Target: target, Err: err}
	}

	if err := dev.SetAutoDetach(true); err != nil {
		return fail(StepConfigure, err, uctx.Close, dev.Close)
	}

	usbCfg, err := dev.Config(cfg.Config)
	if err != nil {
		return fail(StepConfigure, err, uctx.Close, dev.Close)
	}

	intf, err := usbCfg.Interface(cfg.Interface, cfg.AltSetting)
	if err != nil {
		return fail(StepClaim, err, uctx.Close, dev.Close, usbCfg.Close)
	}
	closeIntf := func() error {
		intf.Close()
		return nil
	}

	in, err := intf.InEndpoint(cfg.EndpointIn)
	if err != nil {
		return fail(StepClaim, err, uctx.Close, dev.Close, usbCfg.Close, closeIntf)
	}
	out, err := intf.OutEndpoint(cfg.EndpointOut)
	if err != nil {
		return fail(StepClaim, err, uctx.Close, dev.Close, usbCfg.Close, closeIntf)
	}

	release := func() error {
		intf.Close()
		err := usbCfg.Close()
		if cerr := dev.Close(); err == nil {
			err = cerr
		}
		if cerr := uctx.Close(); err == nil {
			err = cerr
		}
		return err
	}

	return newBulk(in, out, release), nil
}

func newBulk(in bulkIn, out bulkOut, release func() error) *Bulk {
	return &Bulk{in: in, out: out, release: release}
}

// Send writes p in one bulk OUT transfer.
func (b *Bulk) Send(ctx context.Context, p []byte) (int, error) {
	if b.closed {
		return 0, &IOError{Op: "send", Requested: len(p), Err: ErrClosed}
	}

	n, err := b.out.WriteContext(ctx, p)
	if err != nil || n != len(p) {
		return n, ioError("send", len(p), n, err)
	}
	return n, nil
}

// Receive reads exactly len(p) bytes in one bulk IN transfer.
func (b *Bulk) Receive(ctx context.Context, p []byte) (int, error) {
	if b.closed {
		return 0, &IOError{Op: "receive", Requested: len(p), Err: ErrClosed}
	}

	n, err := b.in.ReadContext(ctx, p)
	if err != nil || n != len(p) {
		return n, ioError("receive", len(p), n, err)
	}
	return n, nil
}

// Limits reports 64-byte command frames and 384-byte long-reply chunks.
// Long-command payloads are sent in a single transfer.
func (b *Bulk) Limits() Limits {
	return Limits{
		CommandFrame:  FrameLen,
		ReplyCapacity: FrameLen,
		SendChunk:     0,
		ReceiveChunk:  BulkReceiveChunk,
	}
}

// Close releases the interface and the USB context.
func (b *Bulk) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.release == nil {
		return nil
	}
	return b.release()
}
