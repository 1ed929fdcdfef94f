// Command mk3prog programs and reads MOJO-NES mk3 cartridges through the
// mk3 programmer board.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mojo-nes/mk3prog/flasher"
	"github.com/mojo-nes/mk3prog/progress"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(&env{
		open:   openTransport,
		runner: flasher.ExecRunner{},
		width:  progress.TerminalWidth(int(os.Stdout.Fd())),
	}).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
