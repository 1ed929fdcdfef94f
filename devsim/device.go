package devsim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mojo-nes/mk3prog/frame"
	"github.com/mojo-nes/mk3prog/protocol"
)

// DefaultSectorSize is the erase granularity of the emulated flash chips.
const DefaultSectorSize = 64 * 1024

// Stats counts frames handled by a Device.
type Stats struct {
	FramesIn  atomic.Uint64
	FramesOut atomic.Uint64
	Commands  atomic.Uint64
	Errors    atomic.Uint64
}

// Device is an emulated programmer with a cartridge attached.
// It is safe for concurrent use; commands are executed one at a time.
type Device struct {
	mu         sync.Mutex
	chr        []byte
	prg        []byte
	ram        []byte
	mapper     protocol.Mapper
	version    protocol.FirmwareVersion
	ids        protocol.FlashIDs
	sectorSize int
	logger     *slog.Logger

	Stats Stats
}

// Option configures a Device.
type Option func(*Device)

// WithFirmwareVersion sets the version reported by the device.
func WithFirmwareVersion(v protocol.FirmwareVersion) Option {
	return func(d *Device) { d.version = v }
}

// WithFlashIDs sets the flash chip identifiers reported by the device.
func WithFlashIDs(ids protocol.FlashIDs) Option {
	return func(d *Device) { d.ids = ids }
}

// WithSectorSize sets the flash erase granularity.
func WithSectorSize(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.sectorSize = n
		}
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a device with erased flash and zeroed SRAM.
func New(opts ...Option) *Device {
	d := &Device{
		chr:        bytes.Repeat([]byte{0xFF}, protocol.CHRSize),
		prg:        bytes.Repeat([]byte{0xFF}, protocol.PRGSize),
		ram:        make([]byte, protocol.RAMSize),
		version:    protocol.FirmwareVersion{Major: 1, Minor: 0},
		sectorSize: DefaultSectorSize,
		logger:     slog.New(slog.DiscardHandler),
		ids: protocol.FlashIDs{
			PRG: protocol.ChipID{Manufacturer: 0x01, Device: [3]byte{0x22, 0x7E, 0x0C}},
			CHR: protocol.ChipID{Manufacturer: 0x01, Device: [3]byte{0x22, 0x7E, 0x0C}},
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mapper returns the last mapper selected by the host.
func (d *Device) Mapper() protocol.Mapper {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mapper
}

// Memory returns a copy of a region's contents.
func (d *Device) Memory(region protocol.Region) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return bytes.Clone(d.region(region))
}

// Load overwrites part of a region, bypassing flash programming rules.
func (d *Device) Load(region protocol.Region, addr int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	mem := d.region(region)
	if addr < 0 || addr+len(data) > len(mem) {
		return fmt.Errorf("load %s 0x%X+%d out of range", region, addr, len(data))
	}
	copy(mem[addr:], data)
	return nil
}

func (d *Device) region(r protocol.Region) []byte {
	switch r {
	case protocol.RegionCHR:
		return d.chr
	case protocol.RegionPRG:
		return d.prg
	case protocol.RegionRAM:
		return d.ram
	}
	return nil
}

// Serve answers commands read from rw until the stream ends or ctx is
// cancelled. A clean end of stream returns nil.
func (d *Device) Serve(ctx context.Context, rw io.ReadWriter) error {
	c := &conn{
		d:   d,
		rw:  rw,
		dec: frame.NewDecoder(frame.ReaderSource(rw)),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := c.readFrame(c.rbuf[:])
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}

		if err := c.handle(ctx, c.rbuf[:n]); err != nil {
			return err
		}
	}
}

// conn is the per-stream state of Serve.
type conn struct {
	d    *Device
	rw   io.ReadWriter
	dec  *frame.Decoder
	rbuf [protocol.FrameLen]byte
	wbuf []byte
}

func (c *conn) readFrame(p []byte) (int, error) {
	n, err := c.dec.ReadFrame(context.Background(), p)
	if err == nil {
		c.d.Stats.FramesIn.Add(1)
	}
	return n, err
}

func (c *conn) writeFrame(payload []byte) error {
	var err error
	c.wbuf, err = frame.Append(c.wbuf[:0], payload)
	if err != nil {
		return err
	}
	if _, err := c.rw.Write(c.wbuf); err != nil {
		return err
	}
	c.d.Stats.FramesOut.Add(1)
	return nil
}

func (c *conn) reply(status byte, result ...byte) error {
	if status != protocol.StatusOK {
		c.d.Stats.Errors.Add(1)
	}
	r, err := protocol.BuildReply(status, result...)
	if err != nil {
		return err
	}
	return c.writeFrame(r.Bytes())
}

func (c *conn) handle(ctx context.Context, raw []byte) error {
	d := c.d
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Stats.Commands.Add(1)
	cmd, err := protocol.ParseCommand(raw)
	if err != nil {
		d.logger.Debug("malformed command", "error", err)
		return c.reply(protocol.StatusFailed)
	}

	op := cmd.Opcode()
	d.logger.Debug("command", "opcode", op.String(), "bytes", fmt.Sprintf("% X", cmd.Bytes()))

	switch op {
	case protocol.OpFirmwareVersion:
		return c.reply(protocol.StatusOK, protocol.FirmwareVersionResult(d.version)...)

	case protocol.OpFlashID:
		return c.reply(protocol.StatusOK, protocol.FlashIDResult(d.ids)...)

	case protocol.OpSetMapper:
		if len(raw) < 2 || raw[1] >= protocol.MapperCount {
			return c.reply(protocol.StatusFailed)
		}
		d.mapper = protocol.Mapper(raw[1])
		return c.reply(protocol.StatusOK)

	case protocol.OpEraseCHR, protocol.OpErasePRG:
		mem := d.chr
		if op == protocol.OpErasePRG {
			mem = d.prg
		}
		if !d.erase(mem, cmd.Address()) {
			return c.reply(protocol.StatusFailed)
		}
		return c.reply(protocol.StatusOK)

	case protocol.OpWriteCHR, protocol.OpWritePRG, protocol.OpWriteRAM:
		mem, ok := d.window(op, cmd)
		if !ok {
			return c.reply(protocol.StatusFailed)
		}
		if err := c.reply(protocol.StatusOK); err != nil {
			return err
		}
		return c.receivePayload(mem, op == protocol.OpWriteRAM)

	case protocol.OpReadCHR, protocol.OpReadPRG, protocol.OpReadRAM:
		mem, ok := d.window(op, cmd)
		if !ok {
			return c.reply(protocol.StatusFailed)
		}
		if err := c.reply(protocol.StatusOK); err != nil {
			return err
		}
		return c.sendPayload(mem)
	}

	return c.reply(protocol.StatusFailed)
}

// window returns the memory slice addressed by a read/write command.
func (d *Device) window(op protocol.Opcode, cmd protocol.Command) ([]byte, bool) {
	var mem []byte
	switch op {
	case protocol.OpWriteCHR, protocol.OpReadCHR:
		mem = d.chr
	case protocol.OpWritePRG, protocol.OpReadPRG:
		mem = d.prg
	case protocol.OpWriteRAM, protocol.OpReadRAM:
		mem = d.ram
	}

	addr, n := int(cmd.Address()), cmd.Length()
	if addr+n > len(mem) {
		return nil, false
	}
	return mem[addr : addr+n], true
}

func (d *Device) erase(mem []byte, sector uint32) bool {
	if sector == protocol.EraseChipSector {
		fill(mem, 0xFF)
		return true
	}
	start := int(sector) / d.sectorSize * d.sectorSize
	if start >= len(mem) {
		return false
	}
	fill(mem[start:min(start+d.sectorSize, len(mem))], 0xFF)
	return true
}

// receivePayload reads frames until dst is full. Flash bytes are ANDed in.
func (c *conn) receivePayload(dst []byte, overwrite bool) error {
	var buf [frame.MaxPayload]byte
	for off := 0; off < len(dst); {
		n, err := c.readFrame(buf[:min(len(buf), len(dst)-off)])
		if err != nil {
			return fmt.Errorf("receive payload at %d of %d: %w", off, len(dst), err)
		}
		for i, b := range buf[:n] {
			if overwrite {
				dst[off+i] = b
			} else {
				dst[off+i] &= b
			}
		}
		off += n
	}
	return nil
}

// sendPayload streams src as frames of at most frame.MaxPayload bytes.
func (c *conn) sendPayload(src []byte) error {
	for off := 0; off < len(src); {
		n := min(frame.MaxPayload, len(src)-off)
		if err := c.writeFrame(src[off : off+n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
