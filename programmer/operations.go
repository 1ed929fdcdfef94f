package programmer

import (
	"context"
	"fmt"
	"time"

	"github.com/mojo-nes/mk3prog/protocol"
)

// FirmwareVersion reads the programmer firmware version.
func (s *Session) FirmwareVersion(ctx context.Context) (*protocol.FirmwareVersion, error) {
	cmd, err := protocol.BuildFirmwareVersionCmd()
	if err != nil {
		return nil, err
	}

	reply, err := s.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}

	return protocol.ParseFirmwareVersionReply(reply)
}

// FlashID reads the manufacturer and device codes of the PRG and CHR flash chips.
func (s *Session) FlashID(ctx context.Context) (*protocol.FlashIDs, error) {
	cmd, err := protocol.BuildFlashIDCmd()
	if err != nil {
		return nil, err
	}

	reply, err := s.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}

	return protocol.ParseFlashIDReply(reply)
}

// SetMapper selects the cartridge mapper.
func (s *Session) SetMapper(ctx context.Context, m protocol.Mapper) error {
	cmd, err := protocol.BuildSetMapperCmd(m)
	if err != nil {
		return err
	}

	reply, err := s.Send(ctx, cmd)
	if err != nil {
		return err
	}
	if err := reply.Check(protocol.OpSetMapper); err != nil {
		return err
	}

	s.logInfo("mapper set", "mapper", m.String())
	return nil
}

// EraseChip erases a whole flash chip.
func (s *Session) EraseChip(ctx context.Context, region protocol.Region) error {
	return s.Erase(ctx, region, protocol.EraseChipSector)
}

// Erase erases the flash sector containing sector, or the whole chip when
// sector is protocol.EraseChipSector. The reply wait uses the erase timeout.
func (s *Session) Erase(ctx context.Context, region protocol.Region, sector uint32) error {
	op, err := region.EraseOp()
	if err != nil {
		return err
	}
	cmd, err := protocol.BuildEraseCmd(op, sector)
	if err != nil {
		return err
	}

	start := time.Now()
	s.reportProgress(Progress{Phase: PhaseErasing, Region: region, Address: sector})

	reply, err := s.exchange(ctx, cmd, s.config.EraseTimeout)
	if err != nil {
		return &TransferError{Opcode: op, Err: err}
	}
	if err := reply.Check(op); err != nil {
		return err
	}

	s.reportProgress(Progress{
		Phase:       PhaseComplete,
		Region:      region,
		Address:     sector,
		Percentage:  100,
		ElapsedTime: time.Since(start),
	})
	s.logInfo("erase complete",
		"region", region.String(),
		"sector", fmt.Sprintf("0x%06X", sector),
		"elapsed", time.Since(start).String(),
	)
	return nil
}

// WriteFlash programs data into a flash region starting at addr. The data
// is sent in windows of the configured size, each one long command.
func (s *Session) WriteFlash(ctx context.Context, region protocol.Region, addr uint32, data []byte) error {
	op, err := region.WriteOp()
	if err != nil {
		return err
	}
	if err := checkFlashRange(region, addr, len(data)); err != nil {
		return err
	}

	return s.windows(ctx, PhaseWriting, region, addr, len(data), func(off int, a uint32, n int) error {
		cmd, err := protocol.BuildReadWriteCmd(op, a, n)
		if err != nil {
			return err
		}
		_, _, err = s.SendLongCommand(ctx, cmd, data[off:off+n])
		return err
	})
}

// ReadFlash reads n bytes of a flash region starting at addr.
func (s *Session) ReadFlash(ctx context.Context, region protocol.Region, addr uint32, n int) ([]byte, error) {
	op, err := region.ReadOp()
	if err != nil {
		return nil, err
	}
	if err := checkFlashRange(region, addr, n); err != nil {
		return nil, err
	}

	buf := make([]byte, n)
	err = s.windows(ctx, PhaseReading, region, addr, n, func(off int, a uint32, l int) error {
		cmd, err := protocol.BuildReadWriteCmd(op, a, l)
		if err != nil {
			return err
		}
		_, _, err = s.SendLongReply(ctx, cmd, buf[off:off+l])
		return err
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteRAM writes data to cartridge SRAM. addr is a CPU address in
// [protocol.RAMBase, protocol.RAMBase+protocol.RAMSize).
func (s *Session) WriteRAM(ctx context.Context, addr uint32, data []byte) error {
	if err := checkRAMRange(addr, len(data)); err != nil {
		return err
	}

	cmd, err := protocol.BuildReadWriteCmd(protocol.OpWriteRAM, addr-protocol.RAMBase, len(data))
	if err != nil {
		return err
	}

	start := time.Now()
	if _, _, err := s.SendLongCommand(ctx, cmd, data); err != nil {
		return fmt.Errorf("write RAM at 0x%04X: %w", addr, err)
	}

	s.reportProgress(Progress{
		Phase:       PhaseComplete,
		Region:      protocol.RegionRAM,
		Address:     addr + uint32(len(data)),
		Done:        len(data),
		Total:       len(data),
		Percentage:  100,
		ElapsedTime: time.Since(start),
	})
	return nil
}

// ReadRAM reads n bytes of cartridge SRAM starting at CPU address addr.
func (s *Session) ReadRAM(ctx context.Context, addr uint32, n int) ([]byte, error) {
	if err := checkRAMRange(addr, n); err != nil {
		return nil, err
	}

	cmd, err := protocol.BuildReadWriteCmd(protocol.OpReadRAM, addr-protocol.RAMBase, n)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, n)
	if _, _, err := s.SendLongReply(ctx, cmd, buf); err != nil {
		return nil, fmt.Errorf("read RAM at 0x%04X: %w", addr, err)
	}
	return buf, nil
}

// Verify reads back len(want) bytes from region at addr and compares them
// with want. The first differing byte is reported as a *VerifyError.
func (s *Session) Verify(ctx context.Context, region protocol.Region, addr uint32, want []byte) error {
	var got []byte
	var err error
	if region == protocol.RegionRAM {
		got, err = s.ReadRAM(ctx, addr, len(want))
	} else {
		got, err = s.ReadFlash(ctx, region, addr, len(want))
	}
	if err != nil {
		return fmt.Errorf("verify %s: %w", region, err)
	}

	s.reportProgress(Progress{Phase: PhaseVerifying, Region: region, Address: addr, Total: len(want)})
	if err := Compare(region, addr, want, got); err != nil {
		return err
	}

	s.logInfo("verify OK", "region", region.String(), "address", fmt.Sprintf("0x%06X", addr), "bytes", len(want))
	return nil
}

// windows splits [addr, addr+total) into WindowSize pieces and calls fn for
// each, reporting progress after every window.
func (s *Session) windows(ctx context.Context, phase string, region protocol.Region, addr uint32, total int,
	fn func(off int, addr uint32, n int) error) error {
	start := time.Now()
	size := s.config.WindowSize

	for off := 0; off < total; {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		n := min(size, total-off)
		a := addr + uint32(off)
		if err := fn(off, a, n); err != nil {
			return fmt.Errorf("%s %s at 0x%06X: %w", phase, region, a, err)
		}
		off += n

		s.reportProgress(Progress{
			Phase:       phase,
			Region:      region,
			Address:     addr + uint32(off),
			Done:        off,
			Total:       total,
			Percentage:  float64(off) / float64(total) * 100,
			ElapsedTime: time.Since(start),
		})
	}

	s.logInfo(phase+" complete",
		"region", region.String(),
		"address", fmt.Sprintf("0x%06X", addr),
		"bytes", total,
		"elapsed", time.Since(start).String(),
	)
	return nil
}

func checkFlashRange(region protocol.Region, addr uint32, n int) error {
	if region == protocol.RegionRAM {
		return fmt.Errorf("%s is not a flash region, use the RAM operations", region)
	}
	if n < 0 || uint64(addr)+uint64(n) > protocol.AddrMax+1 {
		return &RangeError{Region: region, Address: addr, Length: n, Min: 0, Max: protocol.AddrMax}
	}
	return nil
}

func checkRAMRange(addr uint32, n int) error {
	const end = protocol.RAMBase + protocol.RAMSize
	if addr < protocol.RAMBase || n < 0 || uint64(addr)+uint64(n) > end {
		return &RangeError{Region: protocol.RegionRAM, Address: addr, Length: n, Min: protocol.RAMBase, Max: end - 1}
	}
	return nil
}

// Compare returns a *VerifyError for the first byte where got differs from
// want. addr is the address of want[0].
func Compare(region protocol.Region, addr uint32, want, got []byte) error {
	for i := range want {
		if i >= len(got) {
			return &VerifyError{Region: region, Address: addr + uint32(i), Expected: want[i]}
		}
		if want[i] != got[i] {
			return &VerifyError{Region: region, Address: addr + uint32(i), Expected: want[i], Actual: got[i]}
		}
	}
	return nil
}
