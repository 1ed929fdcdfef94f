// Command mk3sim serves a simulated mk3 programmer board over QUIC, for
// exercising mk3prog without hardware:
//
//	mk3sim --listen :4433 --load-prg game.prg
//	mk3prog --transport quic --address localhost:4433 -f -P dump.prg
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(nil).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
