// Package transport moves raw bytes between the host and the programmer.
//
// Two Transport implementations exist:
//
//   - Bulk: USB bulk endpoints. Every command and reply is one fixed 64-byte
//     transfer; long replies arrive in transfers of up to 384 bytes.
//   - Serial: delimiter framed messages (see package frame) carried over a
//     Link. Every physical frame carries at most 32 payload bytes.
//
// A Link is the clocked byte channel under Serial. Implementations are the
// FT2232 MPSSE SPI master (OpenMPSSE), a UART bridge (OpenUART) and a generic
// stream (NewStream, DialQUIC) used to reach the device simulator.
//
// # Errors
//
// Opening fails with *OpenError naming the failed step (locate, configure or
// claim). Exchanges fail with *IOError, wrapping ErrShortTransfer or
// ErrTimeout where applicable, or with a *frame.FramingError from Serial.
// Nothing in this package retries.
//
// # Ownership
//
// A Transport is owned by a single session. It holds no locks; callers must
// not share it between goroutines.
package transport
