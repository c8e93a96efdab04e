package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/y86sim/emu"
	"github.com/sarchlab/y86sim/insts"
)

// FetchStage reads and decodes the instruction at PC.
type FetchStage struct {
	memory  Memory
	decoder *insts.Decoder
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(memory Memory) *FetchStage {
	return &FetchStage{
		memory:  memory,
		decoder: insts.NewDecoder(),
	}
}

// FetchResult contains the output of the fetch stage.
type FetchResult struct {
	Latch Latch

	// NextPC is the predicted address of the next instruction.
	NextPC uint64

	// AwaitReturn is set for ret; Fetch holds until the address resolves.
	AwaitReturn bool

	// Halt is set for halt; nothing after it is fetched.
	Halt bool

	Status Status
	Err    error
}

// Fetch reads the instruction at pc. Calls and jumps are predicted taken.
func (s *FetchStage) Fetch(pc uint64) FetchResult {
	inst, err := s.decoder.Decode(pc, s.window(pc))
	if err != nil {
		if errors.Is(err, insts.ErrTruncated) {
			return FetchResult{Status: FaultMemoryBounds, Err: err}
		}
		return FetchResult{Status: FaultInvalidOpcode, Err: err}
	}

	result := FetchResult{Latch: latchFrom(inst), NextPC: inst.ValP}
	switch inst.Info().NextPC {
	case insts.PCValC:
		result.NextPC = inst.ValC
	case insts.PCReturn:
		result.AwaitReturn = true
	case insts.PCHalt:
		result.Halt = true
	}
	return result
}

// window returns up to insts.MaxLength bytes starting at pc, read with
// word accesses only. It is shorter when pc is near the end of memory.
func (s *FetchStage) window(pc uint64) []byte {
	size := s.memory.Size()
	if size < emu.WordSize || pc >= size {
		return nil
	}
	n := min(size-pc, insts.MaxLength)

	buf := make([]byte, 0, 2*emu.WordSize)
	var word [emu.WordSize]byte
	for off := uint64(0); off < n; off += emu.WordSize {
		addr := pc + off
		base := min(addr, size-emu.WordSize)
		binary.LittleEndian.PutUint64(word[:], s.memory.Read64(base))
		buf = append(buf, word[addr-base:]...)
	}
	return buf[:n]
}

// DecodeStage reads source registers, subject to the lock table.
type DecodeStage struct {
	hazards *HazardUnit
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(hazards *HazardUnit) *DecodeStage {
	return &DecodeStage{hazards: hazards}
}

// DecodeResult contains the output of the decode stage.
type DecodeResult struct {
	Latch Latch

	// Stall is set when a register the instruction needs is locked. The
	// instruction stays in the fetch latch and Latch is a bubble.
	Stall bool

	Status Status
	Err    error
}

// Decode reads the operands of in from regs and locks its destinations.
func (s *DecodeStage) Decode(in Latch, regs *emu.RegFile, locks *LockTable) DecodeResult {
	if in.Bubble {
		return DecodeResult{Latch: Bubble()}
	}

	for _, r := range [...]uint8{in.RegA, in.RegB} {
		if r != insts.RegNone && r >= insts.NumRegs {
			return DecodeResult{
				Status: FaultInvalidRegister,
				Err:    fmt.Errorf("register %d", r),
			}
		}
	}

	if s.hazards.MustStall(locks, &in) {
		out := Bubble()
		out.PC = in.PC
		out.Stalling = true
		return DecodeResult{Latch: out, Stall: true}
	}

	info := in.Info()
	out := in
	out.Stalling = false
	out.ValA = regs.ReadReg(info.SrcA.Resolve(in.RegA, in.RegB))
	out.ValB = regs.ReadReg(info.SrcB.Resolve(in.RegA, in.RegB))
	s.hazards.Acquire(locks, &out)

	return DecodeResult{Latch: out}
}

// ExecuteStage computes valE, the condition outcome and new flags.
type ExecuteStage struct {
	alu *emu.ALU
}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage() *ExecuteStage {
	return &ExecuteStage{alu: emu.NewALU()}
}

// ExecuteResult contains the output of the execute stage.
type ExecuteResult struct {
	Latch Latch

	// CC holds the new flags when SetCC is set.
	CC    emu.CC
	SetCC bool

	// Mispredict is set for a jump that is not taken. Redirect is the
	// fall-through address.
	Mispredict bool
	Redirect   uint64

	Status Status
	Err    error
}

// Execute runs the ALU for in, evaluating conditions against cc.
func (s *ExecuteStage) Execute(in Latch, cc emu.CC) ExecuteResult {
	if in.Bubble {
		return ExecuteResult{Latch: Bubble()}
	}

	info := in.Info()
	out := in
	out.Cnd = true
	result := ExecuteResult{}

	if info.Conditional {
		holds, ok := cc.Holds(in.Ifun)
		if !ok {
			return ExecuteResult{
				Status: FaultInvalidCondition,
				Err:    fmt.Errorf("condition %d", in.Ifun),
			}
		}
		out.Cnd = holds
	}

	switch info.ALU {
	case insts.ALUPassA:
		out.ValE = in.ValA
	case insts.ALUPassC:
		out.ValE = in.ValC
	case insts.ALUAddBC:
		out.ValE = in.ValB + in.ValC
	case insts.ALUOp:
		valE, flags, ok := s.alu.Op(in.Ifun, in.ValA, in.ValB)
		if !ok {
			return ExecuteResult{
				Status: FaultInvalidOpcode,
				Err:    fmt.Errorf("alu function %d", in.Ifun),
			}
		}
		out.ValE = valE
		result.CC = flags
		result.SetCC = true
	case insts.ALUDecB:
		out.ValE = in.ValB - emu.WordSize
	case insts.ALUIncB:
		out.ValE = in.ValB + emu.WordSize
	}

	if in.Class == insts.ClassJump && !out.Cnd {
		result.Mispredict = true
		result.Redirect = in.ValP
	}

	result.Latch = out
	return result
}

// MemoryStage performs loads and computes stores.
type MemoryStage struct {
	memory Memory
}

// NewMemoryStage creates a new memory stage.
func NewMemoryStage(memory Memory) *MemoryStage {
	return &MemoryStage{memory: memory}
}

// MemoryResult contains the output of the memory stage.
type MemoryResult struct {
	Latch Latch

	// Store is set when Data must be written to Addr at the cycle edge.
	Store bool
	Addr  uint64
	Data  uint64

	// Return is set when Latch.ValM is a resolved return address.
	Return bool

	Status Status
	Err    error
}

// Access performs the memory operation of in. Stores are returned rather
// than written so the caller can commit them at the cycle edge.
func (s *MemoryStage) Access(in Latch) MemoryResult {
	if in.Bubble {
		return MemoryResult{Latch: Bubble()}
	}

	info := in.Info()
	out := in
	if info.Mem == insts.MemNone {
		return MemoryResult{Latch: out}
	}

	addr := pickVal(info.MemAddr, &in)
	if !emu.WordInBounds(s.memory.Size(), addr) {
		return MemoryResult{
			Status: FaultMemoryBounds,
			Err:    fmt.Errorf("%w: address 0x%x", emu.ErrMemoryBounds, addr),
		}
	}

	result := MemoryResult{}
	if info.Mem == insts.MemRead {
		out.ValM = s.memory.Read64(addr)
		result.Return = info.NextPC == insts.PCReturn
	} else {
		result.Store = true
		result.Addr = addr
		result.Data = pickVal(info.MemData, &in)
	}

	result.Latch = out
	return result
}

func pickVal(sel insts.ValSel, l *Latch) uint64 {
	switch sel {
	case insts.ValA:
		return l.ValA
	case insts.ValB:
		return l.ValB
	case insts.ValP:
		return l.ValP
	default:
		return l.ValE
	}
}

// RegWrite is a register update committed by Writeback.
type RegWrite struct {
	Reg   uint8
	Value uint64
}

// WritebackStage commits register results and releases locks.
type WritebackStage struct {
	hazards *HazardUnit
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(hazards *HazardUnit) *WritebackStage {
	return &WritebackStage{hazards: hazards}
}

// WritebackResult contains the output of the writeback stage.
type WritebackResult struct {
	Latch Latch

	// Writes lists the register updates in the order they were applied.
	Writes []RegWrite

	// Retired is set when a real instruction (not a bubble) completed.
	Retired bool

	// Halt is set when a halt instruction retired.
	Halt bool

	Status Status
	Err    error
}

// Writeback commits in to regs and releases its locks.
func (s *WritebackStage) Writeback(in Latch, regs *emu.RegFile, locks *LockTable) WritebackResult {
	if in.Bubble {
		return WritebackResult{Latch: Bubble()}
	}

	dstE, dstM := in.Destinations()
	for _, r := range [...]uint8{dstE, dstM} {
		if r != insts.RegNone && r >= insts.NumRegs {
			return WritebackResult{
				Status: FaultWriteback,
				Err:    fmt.Errorf("destination register %d", r),
			}
		}
	}

	result := WritebackResult{Latch: in, Retired: true}
	if dstE != insts.RegNone && in.Cnd {
		regs.WriteReg(dstE, in.ValE)
		result.Writes = append(result.Writes, RegWrite{Reg: dstE, Value: in.ValE})
	}
	if dstM != insts.RegNone {
		regs.WriteReg(dstM, in.ValM)
		result.Writes = append(result.Writes, RegWrite{Reg: dstM, Value: in.ValM})
	}
	s.hazards.Release(locks, &in)

	result.Halt = in.Class == insts.ClassHalt
	return result
}
