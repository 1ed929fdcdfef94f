package protocol

import "fmt"

// Reply layout sizes.
const (
	// FirmwareVersionReplyLen is STATUS(1) + MAJOR(1) + MINOR(1)
	FirmwareVersionReplyLen = 3

	// FlashIDReplyLen is STATUS(1) + PAD(1) + PRG{MAN(1) DEV(3)} + CHR{MAN(1) DEV(3)}
	FlashIDReplyLen = 10
)

// CommandReply is a response frame. The status byte is always at offset 0 and
// can be interpreted without knowing which variant follows.
type CommandReply struct {
	buf [FrameLen]byte
	n   int
}

// NewReply builds a reply from raw received bytes. Data beyond FrameLen is rejected.
func NewReply(data []byte) (CommandReply, error) {
	if len(data) == 0 {
		return CommandReply{}, fmt.Errorf("empty reply")
	}
	if len(data) > FrameLen {
		return CommandReply{}, fmt.Errorf("reply too long: %d bytes, capacity is %d", len(data), FrameLen)
	}

	var r CommandReply
	r.n = copy(r.buf[:], data)
	return r, nil
}

// BuildReply constructs a reply with the given status and result bytes.
func BuildReply(status byte, result ...byte) (CommandReply, error) {
	if 1+len(result) > FrameLen {
		return CommandReply{}, fmt.Errorf("reply too long: %d bytes, capacity is %d", 1+len(result), FrameLen)
	}

	var r CommandReply
	r.buf[0] = status
	r.n = 1 + copy(r.buf[1:], result)
	return r, nil
}

// Status returns the status byte.
func (r CommandReply) Status() byte {
	return r.buf[0]
}

// OK reports whether the status byte is StatusOK.
func (r CommandReply) OK() bool {
	return r.buf[0] == StatusOK
}

// Len returns the number of valid reply bytes.
func (r CommandReply) Len() int {
	return r.n
}

// Bytes returns the reply bytes, status included.
func (r CommandReply) Bytes() []byte {
	return r.buf[:r.n:r.n]
}

// Result returns the bytes following the status byte.
func (r CommandReply) Result() []byte {
	if r.n <= 1 {
		return nil
	}
	return r.buf[1:r.n:r.n]
}

// Check returns a *StatusError if the reply status is not OK.
func (r CommandReply) Check(op Opcode) error {
	if r.OK() {
		return nil
	}
	return &StatusError{Opcode: op, Status: r.Status()}
}

// ParseFirmwareVersionReply parses the result of a Firmware Version command.
//
// Reply structure:
//
//	[STATUS][MAJOR][MINOR]
func ParseFirmwareVersionReply(r CommandReply) (*FirmwareVersion, error) {
	if err := r.Check(OpFirmwareVersion); err != nil {
		return nil, err
	}
	if r.Len() < FirmwareVersionReplyLen {
		return nil, fmt.Errorf("invalid firmware version reply length: got %d bytes, expected %d",
			r.Len(), FirmwareVersionReplyLen)
	}

	return &FirmwareVersion{
		Major: r.buf[1],
		Minor: r.buf[2],
	}, nil
}

// ParseFlashIDReply parses the result of a Flash ID command.
//
// Reply structure:
//
//	[STATUS][PAD][PRG_MAN][PRG_DEV(3)][CHR_MAN][CHR_DEV(3)]
func ParseFlashIDReply(r CommandReply) (*FlashIDs, error) {
	if err := r.Check(OpFlashID); err != nil {
		return nil, err
	}
	if r.Len() < FlashIDReplyLen {
		return nil, fmt.Errorf("invalid flash ID reply length: got %d bytes, expected %d",
			r.Len(), FlashIDReplyLen)
	}

	ids := &FlashIDs{}
	ids.PRG.Manufacturer = r.buf[2]
	copy(ids.PRG.Device[:], r.buf[3:6])
	ids.CHR.Manufacturer = r.buf[6]
	copy(ids.CHR.Device[:], r.buf[7:10])

	return ids, nil
}

// FirmwareVersionResult encodes the result bytes of a Firmware Version reply.
func FirmwareVersionResult(v FirmwareVersion) []byte {
	return []byte{v.Major, v.Minor}
}

// FlashIDResult encodes the result bytes of a Flash ID reply.
func FlashIDResult(ids FlashIDs) []byte {
	out := make([]byte, 0, FlashIDReplyLen-1)
	out = append(out, 0)
	out = append(out, ids.PRG.Manufacturer)
	out = append(out, ids.PRG.Device[:]...)
	out = append(out, ids.CHR.Manufacturer)
	out = append(out, ids.CHR.Device[:]...)
	return out
}
