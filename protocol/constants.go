package protocol

// ProtocolVersion is the programmer command protocol revision implemented by this library.
const ProtocolVersion = "1.0"

// Frame capacity constants.
const (
	// FrameLen is the capacity of a Command or CommandReply frame (64 bytes).
	// Bulk transports always move exactly FrameLen bytes per exchange.
	FrameLen = 64

	// AddrMax is the largest address encodable in the 3-byte address field.
	AddrMax = 0xFFFFFF

	// LengthMax is the largest length encodable in the 2-byte length field.
	LengthMax = 0xFFFF

	// EraseChipSector is the reserved sector address that selects a full chip erase.
	EraseChipSector = 0xFFFFFF
)

// Command layout offsets.
const (
	offOpcode = 0
	offAddr   = 1
	offLength = 4

	// ReadWriteLen is the encoded size of a Read/Write command:
	// OPCODE(1) + ADDR(3) + LEN(2)
	ReadWriteLen = 6

	// EraseLen is the encoded size of an Erase command: OPCODE(1) + SECTOR(3)
	EraseLen = 4
)

// Opcodes understood by the programmer firmware. The values are stable wire constants.
const (
	// OpFirmwareVersion reads the firmware major/minor version
	OpFirmwareVersion Opcode = 1

	// OpWriteCHR programs the CHR flash
	OpWriteCHR Opcode = 2

	// OpWritePRG programs the PRG flash
	OpWritePRG Opcode = 3

	// OpReadCHR reads the CHR flash
	OpReadCHR Opcode = 4

	// OpReadPRG reads the PRG flash
	OpReadPRG Opcode = 5

	// OpEraseCHR erases a CHR flash sector or the whole chip
	OpEraseCHR Opcode = 6

	// OpErasePRG erases a PRG flash sector or the whole chip
	OpErasePRG Opcode = 7

	// OpFlashID reads manufacturer and device identifiers of both flash chips
	OpFlashID Opcode = 8

	// OpWriteRAM writes cartridge SRAM
	OpWriteRAM Opcode = 9

	// OpReadRAM reads cartridge SRAM
	OpReadRAM Opcode = 10

	// OpSetMapper selects the cartridge mapper
	OpSetMapper Opcode = 11
)

// Reply status codes. Status shares the opcode byte position.
const (
	// StatusOK indicates the device accepted and executed the command
	StatusOK = 0x00

	// StatusFailed indicates the device rejected or failed the command
	StatusFailed = 0xFF
)

// Cartridge memory map.
const (
	// RAMBase is the CPU address where cartridge SRAM starts
	RAMBase = 0x6000

	// RAMSize is the size of cartridge SRAM (8 KiB)
	RAMSize = 8 * 1024

	// CHRSize is the default CHR flash size (256 KiB)
	CHRSize = 256 * 1024

	// PRGSize is the default PRG flash size (512 KiB)
	PRGSize = 512 * 1024
)
