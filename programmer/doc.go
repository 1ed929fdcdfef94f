// Package programmer drives the mk3 cartridge programmer over a transport.
//
// # Overview
//
// A Session owns one opened transport.Transport and exposes the three
// protocol entry points:
//
//   - Send: one command frame out, one reply frame in
//   - SendLongCommand: header exchange, then the payload streamed to the device
//   - SendLongReply: header exchange, then the payload streamed from the device
//
// Long payloads are cut into chunks sized by the transport: 32 bytes per
// serial frame, one transfer per long command and 384-byte reads on USB bulk.
// Chunks are strictly sequential. Any short chunk, timeout or framing error
// aborts the transfer with a *TransferError reporting how many bytes of
// completed chunks moved. Nothing is retried.
//
// On top of these the Session implements the cartridge operations: firmware
// version, flash IDs, mapper selection, sector and chip erase, windowed flash
// read/write, SRAM read/write and read-back verification.
//
// # Basic Usage
//
//	t, err := transport.OpenBulk(transport.DefaultBulkConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s := programmer.New(t)
//	defer s.Close()
//
//	ver, err := s.FirmwareVersion(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("firmware", ver)
//
//	if err := s.EraseChip(ctx, protocol.RegionPRG); err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.WriteFlash(ctx, protocol.RegionPRG, 0, rom); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
//	s := programmer.New(t,
//	    programmer.WithProgressCallback(func(p programmer.Progress) {
//	        fmt.Printf("[%s] %s %.1f%%\n", p.Phase, p.Region, p.Percentage)
//	    }),
//	)
//
// # Error Handling
//
// Device refusals surface as *protocol.StatusError, transport failures as
// *transport.IOError or *frame.FramingError, both usually wrapped in a
// *TransferError. Use errors.As to inspect them:
//
//	var te *programmer.TransferError
//	if errors.As(err, &te) {
//	    log.Printf("%s moved %d of %d bytes", te.Opcode, te.Moved, te.Total)
//	}
//
// # Concurrency
//
// A Session is not safe for concurrent use. It holds no locks: the transport
// belongs to the goroutine that owns the Session.
package programmer
