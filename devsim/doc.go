// Package devsim emulates the mk3 programmer firmware.
//
// A Device holds CHR and PRG flash, cartridge SRAM and the mapper setting,
// and answers commands arriving as serial frames on any io.ReadWriter. It
// is used by tests (over net.Pipe) and by the mk3sim command (over QUIC
// streams) to exercise the host side without hardware.
//
// Flash behaves like NOR flash: erased bytes read 0xFF and programming can
// only clear bits.
package devsim
