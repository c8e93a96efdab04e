package pipeline

import (
	"context"

	"github.com/sarchlab/y86sim/emu"
)

// Memory is the store the pipeline reads instructions and data from.
// Callers of Read64 and Write64 check bounds first.
type Memory interface {
	Size() uint64
	Read64(addr uint64) uint64
	Write64(addr, value uint64)
}

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64 `yaml:"cycles"`
	// Instructions is the number of instructions retired.
	Instructions uint64 `yaml:"instructions"`
	// Stalls is the number of cycles Decode stalled on a locked register.
	Stalls uint64 `yaml:"stalls"`
	// ReturnWaits is the number of cycles Fetch waited for a return address.
	ReturnWaits uint64 `yaml:"return_waits"`
	// Squashes is the number of misprediction flushes.
	Squashes uint64 `yaml:"squashes"`
	// Bubbles is the number of bubbles inserted.
	Bubbles uint64 `yaml:"bubbles"`
	// BranchPredictions is the number of conditional jumps executed.
	BranchPredictions uint64 `yaml:"branch_predictions"`
	// BranchMispredictions is the number of jumps that were not taken.
	BranchMispredictions uint64 `yaml:"branch_mispredictions"`
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithEventSink sends pipeline events to sink.
func WithEventSink(sink EventSink) PipelineOption {
	return func(p *Pipeline) {
		p.sink = sink
	}
}

// WithMaxCycles caps Run at n cycles. A value of 0 means no limit.
func WithMaxCycles(n uint64) PipelineOption {
	return func(p *Pipeline) {
		p.maxCycles = n
	}
}

// machineState is everything that changes at a clock edge. Step copies it,
// computes the next one from the copy, and swaps it in.
type machineState struct {
	latches [NumStages]Latch
	regs    emu.RegFile
	locks   LockTable

	mispredict bool
	redirect   uint64

	awaitingReturn bool
	haltFetched    bool
}

func resetState() machineState {
	s := machineState{}
	for i := range s.latches {
		s.latches[i] = Bubble()
	}
	return s
}

// Pipeline implements a 5-stage pipelined Y86-64 CPU.
// Stages: Fetch (F) -> Decode (D) -> Execute (E) -> Memory (M) -> Writeback (W)
//
// Each latch holds the instruction that passed through that stage during
// the previous cycle. Stages run in reverse order against the pre-edge
// copy of the state, so no stage sees another's same-cycle output except
// that Decode reads the register file after Writeback has updated it.
type Pipeline struct {
	memory Memory

	hazards        *HazardUnit
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	state    machineState
	status   Status
	runState RunState
	fault    *Fault
	stats    Statistics

	sink      EventSink
	maxCycles uint64
}

// NewPipeline creates a new pipeline over memory with all latches empty,
// registers and flags zero, and PC 0.
func NewPipeline(memory Memory, opts ...PipelineOption) *Pipeline {
	hazards := NewHazardUnit()
	p := &Pipeline{
		memory:         memory,
		hazards:        hazards,
		fetchStage:     NewFetchStage(memory),
		decodeStage:    NewDecodeStage(hazards),
		executeStage:   NewExecuteStage(),
		memoryStage:    NewMemoryStage(memory),
		writebackStage: NewWritebackStage(hazards),
		state:          resetState(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Reset returns the pipeline to its initial state. Memory is untouched.
func (p *Pipeline) Reset() {
	p.state = resetState()
	p.status = Continue
	p.runState = StateRunning
	p.fault = nil
	p.stats = Statistics{}
}

// PC returns the address Fetch will read next.
func (p *Pipeline) PC() uint64 {
	return p.state.regs.PC
}

// SetPC sets the fetch address.
func (p *Pipeline) SetPC(pc uint64) {
	p.state.regs.PC = pc
}

// RegFile returns a copy of the architectural registers, PC and flags.
func (p *Pipeline) RegFile() emu.RegFile {
	return p.state.regs
}

// Locks returns a copy of the register lock table.
func (p *Pipeline) Locks() LockTable {
	return p.state.locks
}

// Latch returns a copy of the latch of the given stage.
func (p *Pipeline) Latch(stage StageID) Latch {
	return p.state.latches[stage]
}

// Stats returns the pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Status returns the result of the most recent cycle.
func (p *Pipeline) Status() Status {
	return p.status
}

// State returns the driver state after the most recent cycle.
func (p *Pipeline) State() RunState {
	return p.runState
}

// Halted returns true once a halt instruction has retired.
func (p *Pipeline) Halted() bool {
	return p.status == Halted
}

// Fault returns the fault record, or nil if the pipeline has not faulted.
func (p *Pipeline) Fault() *Fault {
	if p.fault == nil {
		return nil
	}
	f := *p.fault
	return &f
}

// Err returns the fault as an error, or nil.
func (p *Pipeline) Err() error {
	if p.fault == nil {
		return nil
	}
	return &FaultError{Fault: *p.fault}
}

// Run steps until the pipeline halts or faults, ctx is done, or the cycle
// cap is reached. The returned error is nil only for a clean halt.
func (p *Pipeline) Run(ctx context.Context) (Status, error) {
	for {
		if err := ctx.Err(); err != nil {
			return p.status, err
		}
		if p.maxCycles > 0 && p.stats.Cycles >= p.maxCycles {
			return p.status, ErrCycleLimit
		}

		switch status := p.Step(); {
		case status == Halted:
			return status, nil
		case status.IsFault():
			return status, p.Err()
		}
	}
}

// RunCycles runs at most the given number of cycles and reports whether
// the pipeline is still running.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles; i++ {
		if p.Step().IsTerminal() {
			return false
		}
	}
	return !p.status.IsTerminal()
}
