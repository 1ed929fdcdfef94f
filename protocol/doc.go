// Package protocol implements the mk3 cartridge programmer command protocol.
//
// This package builds Command frames and parses CommandReply frames. It does
// no I/O; see package programmer for the exchange and chunked transfer logic.
//
// # Protocol Overview
//
// Every exchange is one fixed-capacity request followed by one fixed-capacity
// reply (64 bytes each):
//
//	Command:      [OPCODE][ARGS...]
//	CommandReply: [STATUS][RESULT...]
//
// Command variants:
//
//	Read/Write: [OPCODE][ADDR(3, big-endian)][LEN(2, big-endian)]
//	Erase:      [OPCODE][SECTOR(3, big-endian)]   SECTOR 0xFFFFFF erases the chip
//	Raw:        [OPCODE][ARGS...]                 e.g. [11][MAPPER]
//
// Opcodes 2-5, 9 and 10 are followed by a bulk payload of LEN bytes: the host
// streams it for writes, the device streams it for reads.
//
// # Command Builders
//
//	cmd, err := protocol.BuildReadWriteCmd(protocol.OpReadPRG, 0x000000, 0x8000)
//	cmd, err := protocol.BuildEraseCmd(protocol.OpErasePRG, protocol.EraseChipSector)
//	cmd, err := protocol.BuildSetMapperCmd(protocol.MapperMMC3)
//
// # Reply Parsers
//
//	ver, err := protocol.ParseFirmwareVersionReply(reply)
//	ids, err := protocol.ParseFlashIDReply(reply)
//
// A reply whose status byte is not StatusOK yields a *StatusError carrying the
// opcode and the raw status.
package protocol
