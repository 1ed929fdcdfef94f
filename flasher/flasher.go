// Package flasher runs the external tools that program the parts of the
// board the programmer firmware cannot reach: the programmer MCU and the
// cartridge CIC through avrdude, and the FPGA through Lattice pgrcmd.
package flasher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Runner starts an external program and waits for it.
type Runner interface {
	Run(ctx context.Context, name string, args []string, out io.Writer) error
}

// ExecRunner runs programs with os/exec, sending stdout and stderr to out.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args []string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

// tool holds what both flashers share.
type tool struct {
	path   string
	runner Runner
	out    io.Writer
	logger *slog.Logger
}

// Option configures a flasher.
type Option func(*tool)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(t *tool) {
		t.runner = r
	}
}

// WithOutput sets where tool output is copied. Default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(t *tool) {
		t.out = w
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *tool) {
		t.logger = l
	}
}

func newTool(path string, opts []Option) tool {
	t := tool{path: path, runner: ExecRunner{}, out: os.Stdout}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

func (t *tool) run(ctx context.Context, what string, args []string) error {
	if t.logger != nil {
		t.logger.Info("running external flasher", "tool", t.path, "args", strings.Join(args, " "))
	}

	err := t.runner.Run(ctx, t.path, args, t.out)
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.Wrapf(err, "%s: %s exited with status %d", what, t.path, exitErr.ExitCode())
	}
	return errors.Wrapf(err, "%s: cannot run %s", what, t.path)
}

func checkFile(what, file string) error {
	if file == "" {
		return errors.Errorf("%s: no file given", what)
	}
	if _, err := os.Stat(file); err != nil {
		return errors.Wrapf(err, "%s", what)
	}
	return nil
}
