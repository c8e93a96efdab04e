// Package emu provides functional Y86-64 emulation.
package emu

import "github.com/sarchlab/y86sim/insts"

// RegFile represents the Y86-64 architectural state: eight general-purpose
// registers, the program counter, and the condition codes.
type RegFile struct {
	// R holds registers %rax..%rdi. R[insts.RSP] is the stack pointer.
	R [insts.NumRegs]uint64 `yaml:"registers"`

	// PC is the program counter.
	PC uint64 `yaml:"pc"`

	// CC holds the condition codes.
	CC CC `yaml:"cc"`
}

// CC represents the condition flags.
type CC struct {
	// ZF is the zero flag.
	ZF bool `yaml:"zf"`
	// SF is the sign flag.
	SF bool `yaml:"sf"`
	// OF is the overflow flag.
	OF bool `yaml:"of"`
}

// ReadReg reads a register value. RegNone and other out-of-range indices
// read as 0.
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg >= insts.NumRegs {
		return 0
	}
	return r.R[reg]
}

// WriteReg writes a register value. Writes to RegNone and other
// out-of-range indices are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg >= insts.NumRegs {
		return
	}
	r.R[reg] = value
}
