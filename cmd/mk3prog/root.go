package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mojo-nes/mk3prog/config"
	"github.com/mojo-nes/mk3prog/flasher"
	"github.com/mojo-nes/mk3prog/logging"
	"github.com/mojo-nes/mk3prog/transport"
)

const version = "0.4"

// env holds what the command needs from the outside world.
type env struct {
	open   func(ctx context.Context, cfg *config.Config) (transport.Transport, error)
	runner flasher.Runner
	width  int
}

// options are the raw flag values.
type options struct {
	configPath string
	transport  string
	address    string

	fwVer    bool
	flashID  bool
	verify   bool
	eraseCHR bool
	erasePRG bool
	dryRun   bool
	showVer  bool
	verbose  bool

	flashCHR string
	flashPRG string
	readCHR  string
	readPRG  string
	readRAM  string
	writeRAM string

	chrSector string
	prgSector string

	fpga string
	cic  string
	firm string

	mpsseIf int
	mapper  int
}

func newRootCmd(e *env) *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "mk3prog",
		Short: "Program MOJO-NES mk3 cartridges",
		Long: `Program and read MOJO-NES mk3 cartridges with the mk3 programmer board.

For file arguments, a start address and a length may follow the file name:

    file_name[:memory_address[:length]]

Numbers accept 0x (hex), 0o (octal) and 0b (binary) prefixes.

Flashing the CIC and the programmer firmware needs avrdude with the board
configuration file. Uploading FPGA bitfiles needs the Lattice Diamond
programmer.`,
		Example: `  mk3prog -E -p game.prg -V
  mk3prog -c game.chr:0x0:0x2000 -M 2
  mk3prog -R save.srm:0x6000:0x2000
  mk3prog --transport quic --address lab-bench:4433 -f -i`,
		Args:          cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if o.showVer {
				fmt.Fprintf(out, "mk3prog version %s\n", version)
				return nil
			}
			if cmd.Flags().NFlag() == 0 {
				fmt.Fprintln(out, "Nothing to do!")
				return cmd.Help()
			}

			return run(cmd.Context(), e, &o, out, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&o.fwVer, "firm-ver", "f", false, "Get programmer firmware version")
	f.StringVarP(&o.flashCHR, "flash-chr", "c", "", "Flash file to CHR ROM")
	f.StringVarP(&o.flashPRG, "flash-prg", "p", "", "Flash file to PRG ROM")
	f.StringVarP(&o.readCHR, "read-chr", "C", "", "Read CHR ROM to file")
	f.StringVarP(&o.readPRG, "read-prg", "P", "", "Read PRG ROM to file")
	f.BoolVarP(&o.eraseCHR, "erase-chr", "e", false, "Erase CHR flash")
	f.BoolVarP(&o.erasePRG, "erase-prg", "E", false, "Erase PRG flash")
	f.StringVarP(&o.chrSector, "chr-sec-er", "s", "", "Erase CHR flash sector at hex address")
	f.StringVarP(&o.prgSector, "prg-sec-er", "S", "", "Erase PRG flash sector at hex address")
	f.BoolVarP(&o.verify, "verify", "V", false, "Verify flash and RAM after writing file")
	f.BoolVarP(&o.flashID, "flash-id", "i", false, "Obtain flash chips identifiers")
	f.StringVarP(&o.readRAM, "read-ram", "R", "", "Read data from RAM chip")
	f.StringVarP(&o.writeRAM, "write-ram", "W", "", "Write data to RAM chip")
	f.StringVarP(&o.fpga, "fpga-flash", "b", "", "Upload bitfile to FPGA, using .xcf file")
	f.StringVarP(&o.cic, "cic-flash", "a", "", "AVR CIC firmware flash")
	f.StringVarP(&o.firm, "firm-flash", "F", "", "Flash programmer firmware")
	f.IntVarP(&o.mpsseIf, "mpsse-if", "m", 0, "Set MPSSE interface number (1: A, 2: B)")
	f.IntVarP(&o.mapper, "mapper", "M", 0, "Set mapper: 1-NOROM, 2-MMC3, 3-NFROM")
	f.BoolVarP(&o.dryRun, "dry-run", "d", false, "Dry run: don't actually do anything")
	f.BoolVarP(&o.showVer, "version", "r", false, "Show program version")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Show additional information")
	f.StringVar(&o.configPath, "config", config.DefaultPath, "Configuration file")
	f.StringVar(&o.transport, "transport", "", "Transport: usb, mpsse, uart or quic (overrides configuration)")
	f.StringVar(&o.address, "address", "", "UART device or QUIC simulator address")

	return cmd
}

// run loads the configuration, builds the plan and executes it.
func run(ctx context.Context, e *env, o *options, out, errOut io.Writer) error {
	cfg, err := config.Load(o.configPath, logging.With(logging.New(slog.LevelWarn, logging.FormatText, errOut), logging.ComponentConfig))
	if err != nil {
		return err
	}
	if o.transport != "" {
		cfg.Transport.Kind = o.transport
	}
	if o.address != "" {
		cfg.Transport.Address = o.address
	}
	if o.mpsseIf != 0 {
		cfg.MPSSE.IfNum = o.mpsseIf
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if o.verbose {
		level = slog.LevelDebug
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return err
	}
	logger := logging.New(level, format, errOut)

	j, err := parseJob(o)
	if err != nil {
		return err
	}

	steps := j.plan(cfg)
	if o.verbose || o.dryRun {
		printPlan(out, cfg, steps, o.dryRun)
	}
	if o.dryRun {
		return nil
	}

	r := newRunner(e, cfg, j, out, logger)
	defer r.close()

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.session {
			if err := r.connect(ctx); err != nil {
				return err
			}
		}
		if err := s.run(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
