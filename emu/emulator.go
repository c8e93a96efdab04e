// Package emu provides functional Y86-64 emulation.
package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/y86sim/insts"
)

var (
	// ErrInvalidRegister is returned when an instruction names a register
	// index 8..14.
	ErrInvalidRegister = errors.New("invalid register")

	// ErrInvalidCondition is returned for a condition selector outside 0..6.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrMemoryBounds is returned when an access leaves fewer than 8 bytes
	// of capacity, or an instruction runs past the end of memory.
	ErrMemoryBounds = errors.New("memory access out of bounds")

	// ErrMaxInstructions is returned when the instruction limit is reached.
	ErrMaxInstructions = errors.New("max instructions reached")
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true once a halt instruction has executed.
	Halted bool

	// Err is set if the instruction faulted.
	Err error
}

// Emulator executes Y86-64 instructions one at a time, without a pipeline.
// It is the reference model the pipelined simulator is checked against.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder
	alu     *ALU

	halted           bool
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates an emulator over the given memory, with PC 0 and all
// registers and flags cleared.
func NewEmulator(memory *Memory, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		memory:  memory,
		decoder: insts.NewDecoder(),
		alu:     NewALU(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Halted returns true once a halt instruction has executed.
func (e *Emulator) Halted() bool {
	return e.halted
}

// Reset clears registers, flags, PC and the halted flag. Memory is kept.
func (e *Emulator) Reset() {
	*e.regFile = RegFile{}
	e.halted = false
	e.instructionCount = 0
}

// Run steps until the program halts or faults.
func (e *Emulator) Run() StepResult {
	for {
		result := e.Step()
		if result.Halted || result.Err != nil {
			return result
		}
	}
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.halted {
		return StepResult{Halted: true}
	}
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := e.regFile.PC
	inst, err := e.decoder.Decode(pc, e.fetchWindow(pc))
	if err != nil {
		if errors.Is(err, insts.ErrTruncated) {
			return StepResult{Err: fmt.Errorf("%w: %v", ErrMemoryBounds, err)}
		}
		return StepResult{Err: err}
	}

	if err := e.execute(inst); err != nil {
		return StepResult{Err: err}
	}

	e.instructionCount++
	return StepResult{Halted: e.halted}
}

func (e *Emulator) fetchWindow(pc uint64) []byte {
	size := e.memory.Size()
	if pc >= size {
		return nil
	}
	n := min(size-pc, insts.MaxLength)
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = e.memory.Read8(pc + uint64(i))
	}
	return buf
}

func (e *Emulator) execute(inst insts.Instruction) error {
	info := inst.Info()

	for _, r := range [...]uint8{inst.RegA, inst.RegB} {
		if r != insts.RegNone && r >= insts.NumRegs {
			return fmt.Errorf("%w %d at 0x%x", ErrInvalidRegister, r, inst.PC)
		}
	}

	valA := e.regFile.ReadReg(info.SrcA.Resolve(inst.RegA, inst.RegB))
	valB := e.regFile.ReadReg(info.SrcB.Resolve(inst.RegA, inst.RegB))

	cnd := true
	if info.Conditional {
		holds, ok := e.regFile.CC.Holds(inst.Ifun)
		if !ok {
			return fmt.Errorf("%w %d at 0x%x", ErrInvalidCondition, inst.Ifun, inst.PC)
		}
		cnd = holds
	}

	var valE uint64
	switch info.ALU {
	case insts.ALUPassA:
		valE = valA
	case insts.ALUPassC:
		valE = inst.ValC
	case insts.ALUAddBC:
		valE = valB + inst.ValC
	case insts.ALUOp:
		var cc CC
		valE, cc, _ = e.alu.Op(inst.Ifun, valA, valB)
		e.regFile.CC = cc
	case insts.ALUDecB:
		valE = valB - WordSize
	case insts.ALUIncB:
		valE = valB + WordSize
	}

	var valM uint64
	if info.Mem != insts.MemNone {
		addr := pickVal(info.MemAddr, valA, valB, valE, inst.ValP)
		if !e.memory.InBounds(addr) {
			return fmt.Errorf("%w: 0x%x at 0x%x", ErrMemoryBounds, addr, inst.PC)
		}
		if info.Mem == insts.MemRead {
			valM = e.memory.Read64(addr)
		} else {
			e.memory.Write64(addr, pickVal(info.MemData, valA, valB, valE, inst.ValP))
		}
	}

	if cnd {
		e.regFile.WriteReg(info.DstE.Resolve(inst.RegA, inst.RegB), valE)
	}
	e.regFile.WriteReg(info.DstM.Resolve(inst.RegA, inst.RegB), valM)

	switch {
	case inst.Class == insts.ClassHalt:
		e.halted = true
		e.regFile.PC = inst.ValP
	case inst.Class == insts.ClassRet:
		e.regFile.PC = valM
	case info.NextPC == insts.PCValC && cnd:
		e.regFile.PC = inst.ValC
	default:
		e.regFile.PC = inst.ValP
	}

	return nil
}

func pickVal(sel insts.ValSel, valA, valB, valE, valP uint64) uint64 {
	switch sel {
	case insts.ValA:
		return valA
	case insts.ValB:
		return valB
	case insts.ValP:
		return valP
	default:
		return valE
	}
}
