package flasher

import "context"

// Lattice uploads a bitstream to the FPGA with the Lattice programmer.
type Lattice struct {
	tool
}

// NewLattice returns an FPGA flasher driving the pgrcmd binary at path.
func NewLattice(path string, opts ...Option) *Lattice {
	return &Lattice{tool: newTool(path, opts)}
}

// Args returns the pgrcmd arguments for an .xcf project file.
func (l *Lattice) Args(xcf string) []string {
	return []string{"-infile", xcf}
}

// Flash runs the programming project xcf.
func (l *Lattice) Flash(ctx context.Context, xcf string) error {
	const what = "flash FPGA"
	if err := checkFile(what, xcf); err != nil {
		return err
	}
	return l.run(ctx, what, l.Args(xcf))
}
