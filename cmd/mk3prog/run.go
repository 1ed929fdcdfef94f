package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mojo-nes/mk3prog/config"
	"github.com/mojo-nes/mk3prog/flasher"
	"github.com/mojo-nes/mk3prog/image"
	"github.com/mojo-nes/mk3prog/logging"
	"github.com/mojo-nes/mk3prog/programmer"
	"github.com/mojo-nes/mk3prog/progress"
	"github.com/mojo-nes/mk3prog/protocol"
)

// written remembers an image sent to the cartridge for later verification.
type written struct {
	addr uint32
	data []byte
}

// runner executes plan steps and owns the session.
type runner struct {
	env     *env
	cfg     *config.Config
	job     *job
	out     io.Writer
	logger  *slog.Logger
	bar     *progress.Bar
	sess    *programmer.Session
	written map[protocol.Region]written
}

func newRunner(e *env, cfg *config.Config, j *job, out io.Writer, logger *slog.Logger) *runner {
	return &runner{
		env:     e,
		cfg:     cfg,
		job:     j,
		out:     out,
		logger:  logger,
		bar:     progress.New(out, e.width),
		written: make(map[protocol.Region]written),
	}
}

// connect opens the session on first use.
func (r *runner) connect(ctx context.Context) error {
	if r.sess != nil {
		return nil
	}

	fmt.Fprintf(r.out, "Opening %s transport... ", r.cfg.Transport.Kind)
	t, err := r.env.open(ctx, r.cfg)
	if err != nil {
		fmt.Fprintln(r.out, "FAILED")
		return err
	}
	fmt.Fprintln(r.out, "OK!")

	r.sess = programmer.New(t,
		programmer.WithLogger(logging.With(r.logger, logging.ComponentSession)),
		programmer.WithTimeout(r.cfg.Transport.Timeout),
		programmer.WithProgressCallback(r.bar.Callback()),
	)
	return nil
}

func (r *runner) close() {
	r.bar.Done()
	if r.sess == nil {
		return
	}
	if err := r.sess.Close(); err != nil {
		r.logger.Warn("closing session", "error", err)
	}
}

func (r *runner) flasherOptions() []flasher.Option {
	return []flasher.Option{
		flasher.WithRunner(r.env.runner),
		flasher.WithOutput(r.out),
		flasher.WithLogger(logging.With(r.logger, logging.ComponentFlasher)),
	}
}

func (r *runner) flashFPGA(ctx context.Context, xcf string) error {
	l := flasher.NewLattice(r.cfg.Lattice.Path, r.flasherOptions()...)
	if err := l.Flash(ctx, xcf); err != nil {
		return fmt.Errorf("programming bitfile failed, verify the board is connected and jumpers are OK: %w", err)
	}
	return nil
}

func (r *runner) cicTarget() flasher.AVRTarget {
	return flasher.AVRTarget{Name: "CIC", Chip: r.cfg.AVRDude.ChipCIC, Programmer: r.cfg.AVRDude.ProgCIC}
}

func (r *runner) mcuTarget() flasher.AVRTarget {
	return flasher.AVRTarget{Name: "MCU", Chip: r.cfg.AVRDude.ChipMCU, Programmer: r.cfg.AVRDude.ProgMCU}
}

func (r *runner) flashAVR(ctx context.Context, target flasher.AVRTarget, file string) error {
	a := flasher.NewAVRDude(r.cfg.AVRDude.Path, r.cfg.AVRDude.Conf, r.flasherOptions()...)
	if err := a.Flash(ctx, target, file); err != nil {
		hint := "verify the board is connected and jumpers are OK"
		if target.Name == "MCU" {
			hint = "verify the board is connected and JP3 is shorted"
		}
		return fmt.Errorf("flashing %s failed, %s: %w", target.Name, hint, err)
	}
	return nil
}

func (r *runner) firmwareVersion(ctx context.Context) error {
	v, err := r.sess.FirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("couldn't get programmer firmware: %w", err)
	}
	fmt.Fprintf(r.out, "MOJO-NES programmer firmware: %s\n", v)
	return nil
}

func (r *runner) flashIDs(ctx context.Context) error {
	ids, err := r.sess.FlashID(ctx)
	if err != nil {
		return fmt.Errorf("couldn't get flash ID: %w", err)
	}
	for _, c := range []struct {
		name string
		id   protocol.ChipID
	}{{"CHR", ids.CHR}, {"PRG", ids.PRG}} {
		fmt.Fprintf(r.out, "%s --> ManID: 0x%02X. DevID: 0x%02X:%02X:%02X\n",
			c.name, c.id.Manufacturer, c.id.Device[0], c.id.Device[1], c.id.Device[2])
	}
	return nil
}

func (r *runner) setMapper(ctx context.Context, m protocol.Mapper) error {
	if err := r.sess.SetMapper(ctx, m); err != nil {
		return fmt.Errorf("couldn't set mapper: %w", err)
	}
	fmt.Fprintf(r.out, "Mapper set to %s.\n", m)
	return nil
}

func (r *runner) erase(ctx context.Context, region protocol.Region, sector uint32) error {
	if sector == protocol.EraseChipSector {
		fmt.Fprintf(r.out, "Erasing %s flash... ", region)
	} else {
		fmt.Fprintf(r.out, "Erasing %s sector at 0x%06X... ", region, sector)
	}
	if err := r.sess.Erase(ctx, region, sector); err != nil {
		fmt.Fprintln(r.out, "ERROR!")
		return err
	}
	fmt.Fprintln(r.out, "OK!")
	return nil
}

// write loads spec and programs it into region.
func (r *runner) write(ctx context.Context, region protocol.Region, spec image.Spec) error {
	data, err := image.Load(spec)
	if err != nil {
		return err
	}

	if region == protocol.RegionRAM {
		fmt.Fprintf(r.out, "Writing SRAM %s starting at 0x%04X... ", spec.File, spec.Addr)
		if err := r.sess.WriteRAM(ctx, spec.Addr, data); err != nil {
			fmt.Fprintln(r.out, "ERROR!")
			return fmt.Errorf("couldn't write to cart: %w", err)
		}
		fmt.Fprintln(r.out, "OK!")
	} else {
		fmt.Fprintf(r.out, "Flashing %s ROM %s starting at 0x%06X...\n", region, spec.File, spec.Addr)
		if err := r.sess.WriteFlash(ctx, region, spec.Addr, data); err != nil {
			r.bar.Done()
			return fmt.Errorf("couldn't write to cart: %w", err)
		}
	}

	r.written[region] = written{addr: spec.Addr, data: data}
	return nil
}

// readBack reads region into the file named by read and, when verifying,
// compares the range written earlier. With verification on, the range read
// is the written one. A verify failure is returned after the file is saved.
func (r *runner) readBack(ctx context.Context, region protocol.Region, read *image.Spec) error {
	w, ok := r.written[region]
	verify := r.job.verify && ok

	var addr uint32
	var n int
	switch {
	case verify:
		addr, n = w.addr, len(w.data)
	case read != nil:
		addr, n = read.Addr, read.Len
	default:
		return errors.New("nothing to read")
	}

	fmt.Fprintf(r.out, "Reading %s starting at 0x%06X...\n", region, addr)
	var data []byte
	var err error
	if region == protocol.RegionRAM {
		data, err = r.sess.ReadRAM(ctx, addr, n)
	} else {
		data, err = r.sess.ReadFlash(ctx, region, addr, n)
	}
	if err != nil {
		r.bar.Done()
		return fmt.Errorf("couldn't read from cart: %w", err)
	}

	var verifyErr error
	if verify {
		verifyErr = programmer.Compare(region, addr, w.data, data)
		var ve *programmer.VerifyError
		if errors.As(verifyErr, &ve) {
			fmt.Fprintf(r.out, "%s Verify failed at addr 0x%07X!\n", region, ve.Address)
			fmt.Fprintf(r.out, "%s Wrote: 0x%02X; Read: 0x%02X\n", region, ve.Expected, ve.Actual)
		} else {
			fmt.Fprintf(r.out, "%s Verify OK!\n", region)
		}
	}

	if read != nil {
		if err := image.Save(*read, data); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Wrote %s file %s.\n", region, read.File)
	}
	return verifyErr
}
