package flasher

import (
	"context"
)

// AVRTarget is one AVR part reachable through avrdude.
type AVRTarget struct {
	// Name is used in messages
	Name string

	// Chip is the avrdude part (-p), e.g. m8515
	Chip string

	// Programmer is the avrdude programmer id (-c) defined in the
	// configuration file
	Programmer string
}

// AVRDude flashes the programmer MCU and the cartridge CIC.
type AVRDude struct {
	tool
	conf string
}

// NewAVRDude returns an avrdude flasher. path is the avrdude binary and
// conf the configuration file declaring the board's programmers.
func NewAVRDude(path, conf string, opts ...Option) *AVRDude {
	return &AVRDude{tool: newTool(path, opts), conf: conf}
}

// Args returns the avrdude arguments writing file to the target's flash
// and both fuse bytes. The file must be an ELF image for the fuse
// sections to be found.
func (a *AVRDude) Args(target AVRTarget, file string) []string {
	return []string{
		"-p", target.Chip,
		"-C", a.conf,
		"-c", target.Programmer,
		"-U", "flash:w:" + file,
		"-U", "hfuse:w:" + file,
		"-U", "lfuse:w:" + file,
	}
}

// Flash programs file into target.
func (a *AVRDude) Flash(ctx context.Context, target AVRTarget, file string) error {
	what := "flash " + target.Name
	if err := checkFile(what, file); err != nil {
		return err
	}
	return a.run(ctx, what, a.Args(target, file))
}
