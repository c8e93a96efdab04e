// Package emu provides functional Y86-64 emulation.
package emu

import "github.com/sarchlab/y86sim/insts"

// ALU implements the four Y86-64 integer operations.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Op computes valB OP valA for ALU function fn and returns the result with
// the condition codes it produces. ok is false for an undefined function.
func (a *ALU) Op(fn uint8, valA, valB uint64) (result uint64, cc CC, ok bool) {
	switch fn {
	case insts.OpAdd:
		result = valB + valA
		cc = addFlags(valA, valB, result)
	case insts.OpSub:
		result = valB - valA
		cc = subFlags(valA, valB, result)
	case insts.OpAnd:
		result = valB & valA
		cc = logicFlags(result)
	case insts.OpXor:
		result = valB ^ valA
		cc = logicFlags(result)
	default:
		return 0, CC{}, false
	}
	return result, cc, true
}

func negative(v uint64) bool {
	return int64(v) < 0
}

func logicFlags(result uint64) CC {
	return CC{ZF: result == 0, SF: negative(result)}
}

// addFlags: overflow when both operands share a sign the result lacks.
func addFlags(a, b, result uint64) CC {
	cc := logicFlags(result)
	cc.OF = negative(a) == negative(b) && negative(result) != negative(b)
	return cc
}

// subFlags for b - a: overflow when the operands differ in sign and the
// result's sign differs from b's.
func subFlags(a, b, result uint64) CC {
	cc := logicFlags(result)
	cc.OF = negative(a) != negative(b) && negative(result) != negative(b)
	return cc
}
