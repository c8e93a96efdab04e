// Package pipeline provides the 5-stage pipelined Y86-64 core.
package pipeline

import (
	"fmt"

	"github.com/sarchlab/y86sim/insts"
)

// StageID names a pipeline stage.
type StageID uint8

// Pipeline stages, in program order.
const (
	StageFetch StageID = iota
	StageDecode
	StageExecute
	StageMemory
	StageWriteback

	// NumStages is the number of pipeline stages.
	NumStages = 5
)

var stageNames = [NumStages]string{"fetch", "decode", "execute", "memory", "writeback"}

func (s StageID) String() string {
	if s < NumStages {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s StageID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Latch holds the instruction that passed through a stage during the last
// cycle, with every value computed for it so far.
//
// Which of ValA, ValB, ValE, ValM and Cnd are meaningful depends on Class.
type Latch struct {
	// PC is the address of the instruction.
	PC uint64 `yaml:"pc"`

	// Decoded instruction fields.
	Class insts.Class `yaml:"class"`
	Ifun  uint8       `yaml:"ifun"`
	RegA  uint8       `yaml:"reg_a"`
	RegB  uint8       `yaml:"reg_b"`
	ValC  uint64      `yaml:"val_c"`
	ValP  uint64      `yaml:"val_p"`

	// Values computed by Decode, Execute and Memory.
	ValA uint64 `yaml:"val_a"`
	ValB uint64 `yaml:"val_b"`
	ValE uint64 `yaml:"val_e"`
	ValM uint64 `yaml:"val_m"`
	Cnd  bool   `yaml:"cnd"`

	// Stalling is set while the instruction is held by a decode stall.
	Stalling bool `yaml:"stalling"`

	// Bubble marks a synthesized no-op.
	Bubble bool `yaml:"bubble"`
}

// Bubble returns a no-op latch with both register fields empty.
func Bubble() Latch {
	return Latch{
		Class:  insts.ClassNop,
		RegA:   insts.RegNone,
		RegB:   insts.RegNone,
		Bubble: true,
	}
}

func latchFrom(inst insts.Instruction) Latch {
	return Latch{
		PC:    inst.PC,
		Class: inst.Class,
		Ifun:  inst.Ifun,
		RegA:  inst.RegA,
		RegB:  inst.RegB,
		ValC:  inst.ValC,
		ValP:  inst.ValP,
	}
}

// Info returns the class table entry for the latched instruction.
func (l *Latch) Info() *insts.Info {
	return insts.Lookup(l.Class)
}

// Instruction returns the decoded fields of the latch.
func (l *Latch) Instruction() insts.Instruction {
	return insts.Instruction{
		Class: l.Class,
		Ifun:  l.Ifun,
		RegA:  l.RegA,
		RegB:  l.RegB,
		ValC:  l.ValC,
		PC:    l.PC,
		ValP:  l.ValP,
	}
}

// Destinations returns the registers the instruction will write, RegNone
// where a slot is unused.
func (l *Latch) Destinations() (dstE, dstM uint8) {
	if l.Bubble {
		return insts.RegNone, insts.RegNone
	}
	info := l.Info()
	if info == nil {
		return insts.RegNone, insts.RegNone
	}
	return info.DstE.Resolve(l.RegA, l.RegB), info.DstM.Resolve(l.RegA, l.RegB)
}

func (l Latch) String() string {
	switch {
	case l.Bubble && l.Stalling:
		return "bubble (stall)"
	case l.Bubble:
		return "bubble"
	case l.Stalling:
		return l.Instruction().String() + " (stall)"
	default:
		return l.Instruction().String()
	}
}
