package protocol

import (
	"encoding/binary"
	"fmt"
)

// Command is a request frame. The opcode is always at offset 0 and the
// encoded size never exceeds FrameLen.
//
// Command is a value type; it is built per exchange and never retained.
type Command struct {
	buf [FrameLen]byte
	n   int
}

// Opcode returns the command opcode.
func (c Command) Opcode() Opcode {
	return Opcode(c.buf[offOpcode])
}

// Len returns the encoded size of the command in bytes.
func (c Command) Len() int {
	return c.n
}

// Bytes returns the encoded command without padding.
func (c Command) Bytes() []byte {
	return c.buf[:c.n:c.n]
}

// Frame returns the command zero-padded to FrameLen bytes, as sent on bulk transports.
func (c Command) Frame() [FrameLen]byte {
	return c.buf
}

// Address returns the address field of Read/Write and Erase commands.
func (c Command) Address() uint32 {
	return getUint24(c.buf[offAddr:])
}

// Length returns the length field of Read/Write commands.
func (c Command) Length() int {
	return int(binary.BigEndian.Uint16(c.buf[offLength:]))
}

// BuildReadWriteCmd constructs a Read/Write command.
//
// Frame structure:
//
//	[OPCODE][ADDR_H][ADDR_M][ADDR_L][LEN_H][LEN_L]
//
// Address and length are big-endian.
func BuildReadWriteCmd(op Opcode, addr uint32, length int) (Command, error) {
	if op.Layout() != LayoutReadWrite {
		return Command{}, fmt.Errorf("%s is not a read/write opcode", op)
	}
	if addr > AddrMax {
		return Command{}, fmt.Errorf("address 0x%X exceeds 24-bit range", addr)
	}
	if length < 0 || length > LengthMax {
		return Command{}, fmt.Errorf("length %d outside range 0-%d", length, LengthMax)
	}

	var c Command
	c.buf[offOpcode] = byte(op)
	putUint24(c.buf[offAddr:], addr)
	binary.BigEndian.PutUint16(c.buf[offLength:], uint16(length))
	c.n = ReadWriteLen

	return c, nil
}

// BuildEraseCmd constructs an Erase command for a sector address.
// Pass EraseChipSector to erase the entire chip.
//
// Frame structure:
//
//	[OPCODE][SECT_H][SECT_M][SECT_L]
func BuildEraseCmd(op Opcode, sector uint32) (Command, error) {
	if op.Layout() != LayoutErase {
		return Command{}, fmt.Errorf("%s is not an erase opcode", op)
	}
	if sector > AddrMax {
		return Command{}, fmt.Errorf("sector address 0x%X exceeds 24-bit range", sector)
	}

	var c Command
	c.buf[offOpcode] = byte(op)
	putUint24(c.buf[offAddr:], sector)
	c.n = EraseLen

	return c, nil
}

// BuildRawCmd constructs a command made of an opcode followed by argument bytes.
func BuildRawCmd(op Opcode, args ...byte) (Command, error) {
	if 1+len(args) > FrameLen {
		return Command{}, fmt.Errorf("command too long: %d bytes, capacity is %d", 1+len(args), FrameLen)
	}

	var c Command
	c.buf[offOpcode] = byte(op)
	copy(c.buf[1:], args)
	c.n = 1 + len(args)

	return c, nil
}

// BuildFirmwareVersionCmd constructs a Firmware Version command.
//
// Frame structure:
//
//	[OPCODE]
func BuildFirmwareVersionCmd() (Command, error) {
	return BuildRawCmd(OpFirmwareVersion)
}

// BuildFlashIDCmd constructs a Flash ID command.
func BuildFlashIDCmd() (Command, error) {
	return BuildRawCmd(OpFlashID)
}

// BuildSetMapperCmd constructs a Set Mapper command.
//
// Frame structure:
//
//	[OPCODE][MAPPER]
func BuildSetMapperCmd(m Mapper) (Command, error) {
	if m >= MapperCount {
		return Command{}, fmt.Errorf("invalid mapper %d: valid range is 0-%d", m, MapperCount-1)
	}
	return BuildRawCmd(OpSetMapper, byte(m))
}

// ParseCommand decodes a received command frame. It is the inverse of the
// Build functions and is used by device-side code.
func ParseCommand(frame []byte) (Command, error) {
	if len(frame) == 0 {
		return Command{}, fmt.Errorf("empty command frame")
	}
	if len(frame) > FrameLen {
		return Command{}, fmt.Errorf("command frame too long: %d bytes, capacity is %d", len(frame), FrameLen)
	}

	op := Opcode(frame[offOpcode])
	var want int
	switch op.Layout() {
	case LayoutReadWrite:
		want = ReadWriteLen
	case LayoutErase:
		want = EraseLen
	}
	if op.Valid() && want > 0 && len(frame) < want {
		return Command{}, fmt.Errorf("%s command too short: got %d bytes, expected %d", op, len(frame), want)
	}

	var c Command
	c.n = copy(c.buf[:], frame)
	if want > 0 {
		c.n = want
	}
	return c, nil
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func getUint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
