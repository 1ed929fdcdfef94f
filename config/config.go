// Package config loads the mk3prog tool configuration from an INI file.
//
// The file layout is shared with the programmer's install scripts:
//
//	[LATTICE_PROGRAMMER]
//	path = /usr/local/diamond/3.7_x64/bin/lin64/pgrcmd
//
//	[AVRDUDE]
//	path     = /usr/bin/avrdude
//	conf     = /usr/share/mk3-prog/mk3prog.conf
//	prog_mcu = mk3prog-mcu
//	prog_cic = mk3prog-cic
//	chip_mcu = m8515
//	chip_cic = t13
//
//	[MPSSE]
//	ifnum = 2
//	clock = 100000
//
//	[TRANSPORT]
//	kind         = usb
//	address      =
//	baud         = 115200
//	timeout      = 5s
//	resync_limit = 1024
//
//	[LOG]
//	level  = info
//	format = text
//
// Every key is optional. A missing file yields the defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"gopkg.in/ini.v1"
)

// DefaultPath is where the configuration is looked up when no path is given.
const DefaultPath = "/etc/mk3-prog.cfg"

// Transport kinds.
const (
	KindUSB   = "usb"
	KindMPSSE = "mpsse"
	KindUART  = "uart"
	KindQUIC  = "quic"
)

// Config is the complete tool configuration.
type Config struct {
	Lattice   Lattice
	AVRDude   AVRDude
	MPSSE     MPSSE
	Transport Transport
	Log       Log
}

// Lattice configures the FPGA programmer.
type Lattice struct {
	Path string
}

// AVRDude configures the MCU and CIC flashing tool.
type AVRDude struct {
	Path    string
	Conf    string
	ProgMCU string
	ProgCIC string
	ChipMCU string
	ChipCIC string
}

// MPSSE configures the FT2232 SPI link.
type MPSSE struct {
	// IfNum is the FT2232 channel, 1 for A and 2 for B.
	IfNum int

	// ClockHz is the SPI clock.
	ClockHz int
}

// Transport selects how the programmer is reached.
type Transport struct {
	Kind        string
	Address     string
	Baud        int
	Timeout     time.Duration
	ResyncLimit int
}

// Log configures the binaries' logger.
type Log struct {
	Level  string
	Format string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Lattice: Lattice{
			Path: "/usr/local/diamond/3.7_x64/bin/lin64/pgrcmd",
		},
		AVRDude: AVRDude{
			Path:    "/usr/bin/avrdude",
			Conf:    "/usr/share/mk3-prog/mk3prog.conf",
			ProgMCU: "mk3prog-mcu",
			ProgCIC: "mk3prog-cic",
			ChipMCU: "m8515",
			ChipCIC: "t13",
		},
		MPSSE: MPSSE{
			IfNum:   2,
			ClockHz: 100000,
		},
		Transport: Transport{
			Kind:        KindUSB,
			Baud:        115200,
			Timeout:     5 * time.Second,
			ResyncLimit: 1024,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration at path. If the file does not exist the
// defaults are returned and a warning is logged to logger (when non-nil).
func Load(path string, logger *slog.Logger) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if logger != nil {
				logger.Warn("configuration file not found, using defaults", "path", path)
			}
			return Default(), nil
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return fromFile(f)
}

// Parse reads a configuration from INI text.
func Parse(data []byte) (*Config, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	return fromFile(f)
}

func fromFile(f *ini.File) (*Config, error) {
	c := Default()

	lat := f.Section("LATTICE_PROGRAMMER")
	c.Lattice.Path = lat.Key("path").MustString(c.Lattice.Path)

	avr := f.Section("AVRDUDE")
	c.AVRDude.Path = avr.Key("path").MustString(c.AVRDude.Path)
	c.AVRDude.Conf = avr.Key("conf").MustString(c.AVRDude.Conf)
	c.AVRDude.ProgMCU = avr.Key("prog_mcu").MustString(c.AVRDude.ProgMCU)
	c.AVRDude.ProgCIC = avr.Key("prog_cic").MustString(c.AVRDude.ProgCIC)
	c.AVRDude.ChipMCU = avr.Key("chip_mcu").MustString(c.AVRDude.ChipMCU)
	c.AVRDude.ChipCIC = avr.Key("chip_cic").MustString(c.AVRDude.ChipCIC)

	mp := f.Section("MPSSE")
	c.MPSSE.IfNum = mp.Key("ifnum").MustInt(c.MPSSE.IfNum)
	c.MPSSE.ClockHz = mp.Key("clock").MustInt(c.MPSSE.ClockHz)

	tr := f.Section("TRANSPORT")
	c.Transport.Kind = tr.Key("kind").MustString(c.Transport.Kind)
	c.Transport.Address = tr.Key("address").MustString(c.Transport.Address)
	c.Transport.Baud = tr.Key("baud").MustInt(c.Transport.Baud)
	c.Transport.Timeout = tr.Key("timeout").MustDuration(c.Transport.Timeout)
	c.Transport.ResyncLimit = tr.Key("resync_limit").MustInt(c.Transport.ResyncLimit)

	lg := f.Section("LOG")
	c.Log.Level = lg.Key("level").MustString(c.Log.Level)
	c.Log.Format = lg.Key("format").MustString(c.Log.Format)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case KindUSB, KindMPSSE, KindUART, KindQUIC:
	default:
		return fmt.Errorf("invalid transport kind %q: valid kinds are usb, mpsse, uart, quic", c.Transport.Kind)
	}
	if c.MPSSE.IfNum < 1 || c.MPSSE.IfNum > 2 {
		return fmt.Errorf("invalid MPSSE interface %d: valid range is 1-2", c.MPSSE.IfNum)
	}
	if c.MPSSE.ClockHz <= 0 {
		return fmt.Errorf("invalid MPSSE clock %d", c.MPSSE.ClockHz)
	}
	if c.Transport.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Transport.Baud)
	}
	if c.Transport.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s", c.Transport.Timeout)
	}
	if c.Transport.ResyncLimit <= 0 {
		return fmt.Errorf("invalid resync limit %d", c.Transport.ResyncLimit)
	}
	return nil
}
