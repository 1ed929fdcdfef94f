// Package frame implements the delimiter framing used on the programmer's
// serial links.
//
// # Frame Format
//
//	[START=0x7E][LEN][PAYLOAD(LEN bytes)][END=0x7D]
//
// LEN is a single unsigned byte and at most MaxPayload (32) on send. The
// framing adds exactly Overhead (3) bytes to each payload.
//
// # Receiving
//
// A Decoder reads one frame at a time from a Source. Bytes preceding the start
// marker are discarded to resynchronize with the sender, up to ResyncLimit
// bytes. A length byte above the caller's buffer capacity fails immediately
// with ErrCapacity without consuming the rest of the frame; a wrong trailing
// byte fails with ErrEndMarker and no payload is delivered.
//
//	dec := frame.NewDecoder(src)
//	buf := make([]byte, 64)
//	n, err := dec.ReadFrame(ctx, buf)
//
// The codec never slices payloads; splitting data larger than MaxPayload into
// successive frames is the caller's job.
package frame
