package protocol

import "fmt"

// Opcode selects the operation of a Command. It is always the first byte of the frame.
type Opcode byte

// Layout identifies which Command variant an opcode uses.
type Layout int

const (
	// LayoutRaw is an opcode followed by small argument bytes
	LayoutRaw Layout = iota

	// LayoutReadWrite is opcode, 3-byte address, 2-byte length
	LayoutReadWrite

	// LayoutErase is opcode, 3-byte sector address
	LayoutErase
)

// Direction tells whether a bulk payload follows the header exchange of an opcode.
type Direction int

const (
	// PayloadNone means the exchange is a single Command/CommandReply pair
	PayloadNone Direction = iota

	// PayloadOut means the host streams the payload after the header reply
	PayloadOut

	// PayloadIn means the device streams the payload after the header reply
	PayloadIn
)

type opInfo struct {
	name      string
	layout    Layout
	direction Direction
}

var opTable = map[Opcode]opInfo{
	OpFirmwareVersion: {"firmware version", LayoutRaw, PayloadNone},
	OpWriteCHR:        {"write CHR", LayoutReadWrite, PayloadOut},
	OpWritePRG:        {"write PRG", LayoutReadWrite, PayloadOut},
	OpReadCHR:         {"read CHR", LayoutReadWrite, PayloadIn},
	OpReadPRG:         {"read PRG", LayoutReadWrite, PayloadIn},
	OpEraseCHR:        {"erase CHR", LayoutErase, PayloadNone},
	OpErasePRG:        {"erase PRG", LayoutErase, PayloadNone},
	OpFlashID:         {"flash ID", LayoutRaw, PayloadNone},
	OpWriteRAM:        {"write RAM", LayoutReadWrite, PayloadOut},
	OpReadRAM:         {"read RAM", LayoutReadWrite, PayloadIn},
	OpSetMapper:       {"set mapper", LayoutRaw, PayloadNone},
}

// Valid reports whether o is part of the opcode set.
func (o Opcode) Valid() bool {
	_, ok := opTable[o]
	return ok
}

// Layout returns the Command variant used by o. Unknown opcodes are raw.
func (o Opcode) Layout() Layout {
	return opTable[o].layout
}

// Payload returns the bulk payload direction of o.
func (o Opcode) Payload() Direction {
	return opTable[o].direction
}

func (o Opcode) String() string {
	if info, ok := opTable[o]; ok {
		return info.name
	}
	return fmt.Sprintf("opcode 0x%02X", byte(o))
}

// Region selects one of the cartridge memories.
type Region int

const (
	// RegionCHR is the character (pattern table) flash
	RegionCHR Region = iota

	// RegionPRG is the program flash
	RegionPRG

	// RegionRAM is the battery backed SRAM
	RegionRAM
)

func (r Region) String() string {
	switch r {
	case RegionCHR:
		return "CHR"
	case RegionPRG:
		return "PRG"
	case RegionRAM:
		return "RAM"
	default:
		return fmt.Sprintf("region(%d)", int(r))
	}
}

// Size returns the default size of the region in bytes.
func (r Region) Size() int {
	switch r {
	case RegionCHR:
		return CHRSize
	case RegionPRG:
		return PRGSize
	case RegionRAM:
		return RAMSize
	default:
		return 0
	}
}

// ReadOp returns the read opcode for the region.
func (r Region) ReadOp() (Opcode, error) {
	switch r {
	case RegionCHR:
		return OpReadCHR, nil
	case RegionPRG:
		return OpReadPRG, nil
	case RegionRAM:
		return OpReadRAM, nil
	}
	return 0, fmt.Errorf("no read opcode for %s", r)
}

// WriteOp returns the write opcode for the region.
func (r Region) WriteOp() (Opcode, error) {
	switch r {
	case RegionCHR:
		return OpWriteCHR, nil
	case RegionPRG:
		return OpWritePRG, nil
	case RegionRAM:
		return OpWriteRAM, nil
	}
	return 0, fmt.Errorf("no write opcode for %s", r)
}

// EraseOp returns the erase opcode for the region. SRAM cannot be erased.
func (r Region) EraseOp() (Opcode, error) {
	switch r {
	case RegionCHR:
		return OpEraseCHR, nil
	case RegionPRG:
		return OpErasePRG, nil
	}
	return 0, fmt.Errorf("no erase opcode for %s", r)
}

// Mapper identifies a cartridge mapper configuration.
type Mapper byte

const (
	// MapperNROM is the plain NROM layout
	MapperNROM Mapper = 0

	// MapperMMC3 is the MMC3 layout
	MapperMMC3 Mapper = 1

	// MapperNFROM is the NFROM layout
	MapperNFROM Mapper = 2
)

// MapperCount is the number of supported mappers.
const MapperCount = 3

func (m Mapper) String() string {
	switch m {
	case MapperNROM:
		return "NOROM"
	case MapperMMC3:
		return "MMC3"
	case MapperNFROM:
		return "NFROM"
	default:
		return fmt.Sprintf("mapper(%d)", byte(m))
	}
}

// FirmwareVersion is the programmer firmware version.
// Returned by the Firmware Version command.
type FirmwareVersion struct {
	Major byte
	Minor byte
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ChipID identifies one flash chip.
type ChipID struct {
	// Manufacturer is the JEDEC manufacturer code
	Manufacturer byte

	// Device is the 3-byte device code
	Device [3]byte
}

func (c ChipID) String() string {
	return fmt.Sprintf("%02X:%02X%02X%02X", c.Manufacturer, c.Device[0], c.Device[1], c.Device[2])
}

// FlashIDs holds the identifiers of both cartridge flash chips.
// Returned by the Flash ID command.
type FlashIDs struct {
	PRG ChipID
	CHR ChipID
}
