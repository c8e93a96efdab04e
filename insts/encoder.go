package insts

import (
	"encoding/binary"
	"fmt"
)

// Encode returns the machine encoding of inst.
func Encode(inst Instruction) []byte {
	info := Lookup(inst.Class)
	if info == nil {
		return []byte{byte(inst.Class)<<4 | inst.Ifun&0xF}
	}

	out := make([]byte, info.Length)
	out[0] = byte(inst.Class)<<4 | inst.Ifun&0xF

	off := 1
	if info.HasRegs {
		out[1] = inst.RegA<<4 | inst.RegB&0xF
		off = 2
	}
	if info.HasValC {
		binary.LittleEndian.PutUint64(out[off:], inst.ValC)
	}
	return out
}

// Halt builds a halt instruction.
func Halt() Instruction { return Instruction{Class: ClassHalt, RegA: RegNone, RegB: RegNone} }

// Nop builds a no-op.
func Nop() Instruction { return Instruction{Class: ClassNop, RegA: RegNone, RegB: RegNone} }

// Cmov builds a conditional move rB = rA when cond holds.
func Cmov(cond, rA, rB uint8) Instruction {
	return Instruction{Class: ClassCmov, Ifun: cond, RegA: rA, RegB: rB}
}

// Rrmovq builds an unconditional register move.
func Rrmovq(rA, rB uint8) Instruction { return Cmov(CondAlways, rA, rB) }

// Irmovq builds rB = v.
func Irmovq(v uint64, rB uint8) Instruction {
	return Instruction{Class: ClassIrmov, RegA: RegNone, RegB: rB, ValC: v}
}

// Rmmovq builds mem[rB + d] = rA.
func Rmmovq(rA uint8, d uint64, rB uint8) Instruction {
	return Instruction{Class: ClassRmmov, RegA: rA, RegB: rB, ValC: d}
}

// Mrmovq builds rA = mem[rB + d].
func Mrmovq(d uint64, rB, rA uint8) Instruction {
	return Instruction{Class: ClassMrmov, RegA: rA, RegB: rB, ValC: d}
}

// Op builds rB = rB OP rA.
func Op(fn, rA, rB uint8) Instruction {
	return Instruction{Class: ClassOp, Ifun: fn, RegA: rA, RegB: rB}
}

// Addq builds rB = rB + rA.
func Addq(rA, rB uint8) Instruction { return Op(OpAdd, rA, rB) }

// Subq builds rB = rB - rA.
func Subq(rA, rB uint8) Instruction { return Op(OpSub, rA, rB) }

// Jump builds a conditional jump to dest.
func Jump(cond uint8, dest uint64) Instruction {
	return Instruction{Class: ClassJump, Ifun: cond, RegA: RegNone, RegB: RegNone, ValC: dest}
}

// Call builds a call to dest.
func Call(dest uint64) Instruction {
	return Instruction{Class: ClassCall, RegA: RegNone, RegB: RegNone, ValC: dest}
}

// Ret builds a return.
func Ret() Instruction { return Instruction{Class: ClassRet, RegA: RegNone, RegB: RegNone} }

// Pushq builds a push of rA.
func Pushq(rA uint8) Instruction {
	return Instruction{Class: ClassPush, RegA: rA, RegB: RegNone}
}

// Popq builds a pop into rA.
func Popq(rA uint8) Instruction {
	return Instruction{Class: ClassPop, RegA: rA, RegB: RegNone}
}

type fixup struct {
	offset int
	label  string
}

// Builder assembles a program image starting at address 0, resolving
// label references when the image is built.
type Builder struct {
	buf    []byte
	labels map[string]uint64
	fixups []fixup
}

// NewBuilder creates an empty program builder.
func NewBuilder() *Builder {
	return &Builder{labels: make(map[string]uint64)}
}

// PC returns the address the next emitted byte will occupy.
func (b *Builder) PC() uint64 {
	return uint64(len(b.buf))
}

// Emit appends instructions.
func (b *Builder) Emit(list ...Instruction) *Builder {
	for _, inst := range list {
		b.buf = append(b.buf, Encode(inst)...)
	}
	return b
}

// Label names the current address.
func (b *Builder) Label(name string) *Builder {
	b.labels[name] = b.PC()
	return b
}

func (b *Builder) emitRef(inst Instruction, valCOffset int, label string) *Builder {
	b.fixups = append(b.fixups, fixup{offset: len(b.buf) + valCOffset, label: label})
	return b.Emit(inst)
}

// JumpTo appends a conditional jump to a label.
func (b *Builder) JumpTo(cond uint8, label string) *Builder {
	return b.emitRef(Jump(cond, 0), 1, label)
}

// CallTo appends a call to a label.
func (b *Builder) CallTo(label string) *Builder {
	return b.emitRef(Call(0), 1, label)
}

// IrmovqLabel appends rB = address of label.
func (b *Builder) IrmovqLabel(label string, rB uint8) *Builder {
	return b.emitRef(Irmovq(0, rB), 2, label)
}

// Quad appends a little-endian data word.
func (b *Builder) Quad(v uint64) *Builder {
	b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
	return b
}

// Align pads with zero bytes up to a multiple of n.
func (b *Builder) Align(n uint64) *Builder {
	for n > 0 && b.PC()%n != 0 {
		b.buf = append(b.buf, 0)
	}
	return b
}

// Pos pads with zero bytes up to addr. It does nothing if addr is behind
// the current position.
func (b *Builder) Pos(addr uint64) *Builder {
	for b.PC() < addr {
		b.buf = append(b.buf, 0)
	}
	return b
}

// Bytes resolves label references and returns the image.
func (b *Builder) Bytes() ([]byte, error) {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)

	for _, f := range b.fixups {
		addr, ok := b.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", f.label)
		}
		binary.LittleEndian.PutUint64(out[f.offset:], addr)
	}
	return out, nil
}

// MustBytes is like Bytes but panics on an undefined label.
func (b *Builder) MustBytes() []byte {
	out, err := b.Bytes()
	if err != nil {
		panic(err)
	}
	return out
}
