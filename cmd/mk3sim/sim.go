package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mojo-nes/mk3prog/devsim"
	"github.com/mojo-nes/mk3prog/image"
	"github.com/mojo-nes/mk3prog/logging"
	"github.com/mojo-nes/mk3prog/protocol"
)

type options struct {
	listen     string
	fwVersion  string
	sectorSize int
	loadCHR    string
	loadPRG    string
	loadRAM    string
	logLevel   string
	logFormat  string
}

// newRootCmd builds the command. ready, if non-nil, receives the bound
// address once the listener is up.
func newRootCmd(ready func(net.Addr)) *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:          "mk3sim",
		Short:        "Serve a simulated mk3 programmer over QUIC",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), &o, cmd, ready)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.listen, "listen", "l", ":4433", "UDP address to listen on")
	f.StringVar(&o.fwVersion, "fw-version", "1.0", "Firmware version reported as major.minor")
	f.IntVar(&o.sectorSize, "sector-size", 64*1024, "Flash sector size in bytes")
	f.StringVar(&o.loadCHR, "load-chr", "", "Preload CHR flash from file[:addr]")
	f.StringVar(&o.loadPRG, "load-prg", "", "Preload PRG flash from file[:addr]")
	f.StringVar(&o.loadRAM, "load-ram", "", "Preload SRAM from file[:addr], addr from 0x6000")
	f.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&o.logFormat, "log-format", "text", "Log format: text, json")

	return cmd
}

func serve(ctx context.Context, o *options, cmd *cobra.Command, ready func(net.Addr)) error {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(o.logFormat)
	if err != nil {
		return err
	}
	logger := logging.New(level, format, cmd.ErrOrStderr())

	v, err := parseVersion(o.fwVersion)
	if err != nil {
		return err
	}

	dev := devsim.New(
		devsim.WithFirmwareVersion(v),
		devsim.WithSectorSize(o.sectorSize),
		devsim.WithLogger(logging.With(logger, logging.ComponentSim)),
	)

	loads := []struct {
		region protocol.Region
		arg    string
	}{
		{protocol.RegionCHR, o.loadCHR},
		{protocol.RegionPRG, o.loadPRG},
		{protocol.RegionRAM, o.loadRAM},
	}
	for _, l := range loads {
		if l.arg == "" {
			continue
		}
		if err := preload(dev, l.region, l.arg); err != nil {
			return err
		}
		logger.Info("preloaded", "region", l.region.String(), "image", l.arg)
	}

	srv, err := devsim.Listen(dev, o.listen, nil)
	if err != nil {
		return err
	}
	defer srv.Close()

	logger.Info("simulator listening", "addr", srv.Addr().String(), "firmware", v.String())
	fmt.Fprintf(cmd.OutOrStdout(), "mk3sim listening on %s\n", srv.Addr())
	if ready != nil {
		ready(srv.Addr())
	}

	return srv.Serve(ctx)
}

// preload copies an image into the device. RAM addresses are CPU
// addresses from 0x6000.
func preload(dev *devsim.Device, region protocol.Region, arg string) error {
	spec, err := image.ParseSpec(arg)
	if err != nil {
		return err
	}
	data, err := image.Load(spec)
	if err != nil {
		return err
	}

	addr := int(spec.Addr)
	if region == protocol.RegionRAM {
		if spec.Addr == 0 {
			spec.Addr = protocol.RAMBase
		}
		addr = int(spec.Addr) - protocol.RAMBase
	}
	return dev.Load(region, addr, data)
}

func parseVersion(s string) (protocol.FirmwareVersion, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return protocol.FirmwareVersion{}, fmt.Errorf("invalid firmware version %q: want major.minor", s)
	}
	ma, err := strconv.ParseUint(major, 10, 8)
	if err != nil {
		return protocol.FirmwareVersion{}, fmt.Errorf("invalid firmware version %q: %w", s, err)
	}
	mi, err := strconv.ParseUint(minor, 10, 8)
	if err != nil {
		return protocol.FirmwareVersion{}, fmt.Errorf("invalid firmware version %q: %w", s, err)
	}
	return protocol.FirmwareVersion{Major: byte(ma), Minor: byte(mi)}, nil
}
