package insts

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrInvalidOpcode is returned for an undefined class or a populated
	// reserved field.
	ErrInvalidOpcode = errors.New("invalid opcode")

	// ErrTruncated is returned when fewer bytes are available than the
	// encoding needs.
	ErrTruncated = errors.New("truncated instruction")
)

// Instruction represents a decoded Y86-64 instruction.
type Instruction struct {
	Class Class // Instruction class (icode)
	Ifun  uint8 // Function or condition selector

	RegA uint8 // RegNone when absent
	RegB uint8 // RegNone when absent

	// ValC is the immediate, displacement, or branch target.
	ValC uint64

	// PC is the address of the first byte; ValP the address after the last.
	PC   uint64
	ValP uint64
}

// Info returns the class table entry for the instruction.
func (i Instruction) Info() *Info {
	return Lookup(i.Class)
}

// Decoder decodes Y86-64 machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new Y86-64 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes the instruction at pc whose bytes start at buf[0].
// buf may be longer than the instruction.
func (d *Decoder) Decode(pc uint64, buf []byte) (Instruction, error) {
	inst := Instruction{PC: pc, RegA: RegNone, RegB: RegNone}

	if len(buf) == 0 {
		return inst, fmt.Errorf("%w at 0x%x: no bytes", ErrTruncated, pc)
	}

	inst.Class = Class(buf[0] >> 4)
	inst.Ifun = buf[0] & 0xF

	info := Lookup(inst.Class)
	if info == nil {
		return inst, fmt.Errorf("%w 0x%02x at 0x%x", ErrInvalidOpcode, buf[0], pc)
	}
	if inst.Class == ClassOp && inst.Ifun > OpXor {
		return inst, fmt.Errorf("%w: ALU function %d at 0x%x", ErrInvalidOpcode, inst.Ifun, pc)
	}

	if uint64(len(buf)) < info.Length {
		return inst, fmt.Errorf("%w at 0x%x: need %d bytes, have %d",
			ErrTruncated, pc, info.Length, len(buf))
	}

	off := 1
	if info.HasRegs {
		inst.RegA = buf[1] >> 4
		inst.RegB = buf[1] & 0xF
		off = 2

		if info.ReservedA && inst.RegA != RegNone {
			return inst, fmt.Errorf("%w: %s with regA set at 0x%x", ErrInvalidOpcode, info.Name, pc)
		}
		if info.ReservedB && inst.RegB != RegNone {
			return inst, fmt.Errorf("%w: %s with regB set at 0x%x", ErrInvalidOpcode, info.Name, pc)
		}
	}

	if info.HasValC {
		inst.ValC = binary.LittleEndian.Uint64(buf[off : off+8])
	}

	inst.ValP = pc + info.Length

	return inst, nil
}
