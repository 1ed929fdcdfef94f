package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mojo-nes/mk3prog/config"
	"github.com/mojo-nes/mk3prog/image"
	"github.com/mojo-nes/mk3prog/protocol"
)

// Default read lengths when an image argument gives none.
const (
	defaultCHRRead = protocol.CHRSize
	defaultPRGRead = protocol.PRGSize
	defaultRAMRead = protocol.RAMSize
)

// job is the validated set of requested actions.
type job struct {
	fwVer    bool
	flashID  bool
	verify   bool
	eraseCHR bool
	erasePRG bool

	chrSector *uint32
	prgSector *uint32
	mapper    *protocol.Mapper

	writeCHR *image.Spec
	writePRG *image.Spec
	readCHR  *image.Spec
	readPRG  *image.Spec
	writeRAM *image.Spec
	readRAM  *image.Spec

	fpga string
	cic  string
	firm string
}

// step is one planned action. Steps with session set talk to the
// programmer board.
type step struct {
	desc    string
	session bool
	run     func(ctx context.Context, r *runner) error
}

func parseJob(o *options) (*job, error) {
	j := &job{
		fwVer:    o.fwVer,
		flashID:  o.flashID,
		verify:   o.verify,
		eraseCHR: o.eraseCHR,
		erasePRG: o.erasePRG,
	}

	if o.mapper != 0 {
		if o.mapper < 1 || o.mapper > protocol.MapperCount {
			return nil, fmt.Errorf("invalid mapper %d requested: valid range is 1-%d", o.mapper, protocol.MapperCount)
		}
		m := protocol.Mapper(o.mapper - 1)
		j.mapper = &m
	}

	var err error
	if j.chrSector, err = parseSector("CHR", o.chrSector); err != nil {
		return nil, err
	}
	if j.prgSector, err = parseSector("PRG", o.prgSector); err != nil {
		return nil, err
	}

	specs := []struct {
		arg  string
		dst  **image.Spec
		what string
		dflt int
		ram  bool
	}{
		{o.flashCHR, &j.writeCHR, "CHR flash file", 0, false},
		{o.flashPRG, &j.writePRG, "PRG flash file", 0, false},
		{o.readCHR, &j.readCHR, "CHR ROM read", defaultCHRRead, false},
		{o.readPRG, &j.readPRG, "PRG ROM read", defaultPRGRead, false},
		{o.writeRAM, &j.writeRAM, "RAM write", 0, true},
		{o.readRAM, &j.readRAM, "RAM read", defaultRAMRead, true},
	}
	for _, s := range specs {
		if s.arg == "" {
			continue
		}
		spec, err := image.ParseSpec(s.arg)
		if err != nil {
			return nil, fmt.Errorf("on %s argument: %w", s.what, err)
		}
		if s.ram && spec.Addr == 0 {
			spec.Addr = protocol.RAMBase
		}
		spec = spec.WithDefaultLength(s.dflt)
		*s.dst = &spec
	}

	files := []struct {
		arg  string
		dst  *string
		what string
	}{
		{o.fpga, &j.fpga, "FPGA bitfile"},
		{o.cic, &j.cic, "AVR CIC firmware"},
		{o.firm, &j.firm, "programmer firmware"},
	}
	for _, f := range files {
		if f.arg == "" {
			continue
		}
		spec, err := image.ParseSpec(f.arg)
		if err != nil {
			return nil, fmt.Errorf("on %s argument: %w", f.what, err)
		}
		*f.dst = spec.File
	}

	return j, nil
}

// parseSector reads a hexadecimal sector address, with or without 0x.
func parseSector(region, s string) (*uint32, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 24)
	if err != nil {
		return nil, fmt.Errorf("invalid %s sector address %q: %w", region, s, err)
	}
	a := uint32(v)
	return &a, nil
}

// plan lists the actions in execution order: external flashing first,
// then the programmer commands.
func (j *job) plan(cfg *config.Config) []step {
	var steps []step
	add := func(session bool, desc string, run func(ctx context.Context, r *runner) error) {
		steps = append(steps, step{desc: desc, session: session, run: run})
	}

	if j.fpga != "" {
		add(false, "Upload FPGA bitfile "+j.fpga, func(ctx context.Context, r *runner) error {
			return r.flashFPGA(ctx, j.fpga)
		})
	}
	if j.cic != "" {
		add(false, "Upload AVR CIC firmware "+j.cic, func(ctx context.Context, r *runner) error {
			return r.flashAVR(ctx, r.cicTarget(), j.cic)
		})
	}
	if j.firm != "" {
		add(false, "Upload programmer firmware "+j.firm, func(ctx context.Context, r *runner) error {
			return r.flashAVR(ctx, r.mcuTarget(), j.firm)
		})
	}

	if j.fwVer {
		add(true, "Get programmer board firmware version", func(ctx context.Context, r *runner) error {
			return r.firmwareVersion(ctx)
		})
	}
	if j.flashID {
		add(true, "Show flash chip identification", func(ctx context.Context, r *runner) error {
			return r.flashIDs(ctx)
		})
	}
	if j.mapper != nil {
		m := *j.mapper
		add(true, "Set mapper to "+m.String(), func(ctx context.Context, r *runner) error {
			return r.setMapper(ctx, m)
		})
	}

	if j.writeRAM != nil {
		add(true, "Write RAM "+verifyWord(j.verify)+j.writeRAM.String(), func(ctx context.Context, r *runner) error {
			return r.write(ctx, protocol.RegionRAM, *j.writeRAM)
		})
	}
	if j.readRAM != nil || (j.writeRAM != nil && j.verify) {
		add(true, readDesc(protocol.RegionRAM, j.readRAM), func(ctx context.Context, r *runner) error {
			return r.readBack(ctx, protocol.RegionRAM, j.readRAM)
		})
	}

	if j.eraseCHR {
		add(true, "Erase CHR flash", func(ctx context.Context, r *runner) error {
			return r.erase(ctx, protocol.RegionCHR, protocol.EraseChipSector)
		})
	} else if j.chrSector != nil {
		sector := *j.chrSector
		add(true, fmt.Sprintf("Erase CHR sector at 0x%06X", sector), func(ctx context.Context, r *runner) error {
			return r.erase(ctx, protocol.RegionCHR, sector)
		})
	}
	if j.erasePRG {
		add(true, "Erase PRG flash", func(ctx context.Context, r *runner) error {
			return r.erase(ctx, protocol.RegionPRG, protocol.EraseChipSector)
		})
	} else if j.prgSector != nil {
		sector := *j.prgSector
		add(true, fmt.Sprintf("Erase PRG sector at 0x%06X", sector), func(ctx context.Context, r *runner) error {
			return r.erase(ctx, protocol.RegionPRG, sector)
		})
	}

	flash := []struct {
		region protocol.Region
		write  *image.Spec
		read   *image.Spec
	}{
		{protocol.RegionCHR, j.writeCHR, j.readCHR},
		{protocol.RegionPRG, j.writePRG, j.readPRG},
	}
	for _, f := range flash {
		region, write, read := f.region, f.write, f.read
		if write != nil {
			add(true, "Flash "+region.String()+" "+verifyWord(j.verify)+write.String(), func(ctx context.Context, r *runner) error {
				return r.write(ctx, region, *write)
			})
		}
		if read != nil || (write != nil && j.verify) {
			add(true, readDesc(region, read), func(ctx context.Context, r *runner) error {
				return r.readBack(ctx, region, read)
			})
		}
	}

	return steps
}

func verifyWord(verify bool) string {
	if verify {
		return "and verify "
	}
	return ""
}

func readDesc(region protocol.Region, read *image.Spec) string {
	switch {
	case read == nil:
		return "Read back " + region.String() + " for verification"
	case region == protocol.RegionRAM:
		return "Read RAM to " + read.String()
	default:
		return "Read " + region.String() + " ROM to " + read.String()
	}
}

// printPlan lists the steps the way they will run.
func printPlan(w io.Writer, cfg *config.Config, steps []step, dry bool) {
	not := ""
	if dry {
		not = " NOT"
	}
	fmt.Fprintf(w, "\nUsing %s transport", cfg.Transport.Kind)
	if cfg.Transport.Kind == config.KindMPSSE {
		fmt.Fprintf(w, " on interface %d", cfg.MPSSE.IfNum)
	}
	if cfg.Transport.Address != "" {
		fmt.Fprintf(w, " at %s", cfg.Transport.Address)
	}
	fmt.Fprintln(w)

	header := fmt.Sprintf("The following actions will%s be performed (in order):", not)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("=", len(header)))
	fmt.Fprintln(w)
	for _, s := range steps {
		fmt.Fprintf(w, " - %s.\n", s.desc)
	}
	fmt.Fprintln(w)
}
