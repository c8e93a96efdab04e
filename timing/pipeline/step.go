package pipeline

import (
	"fmt"

	"github.com/sarchlab/y86sim/insts"
)

// Step runs exactly one clock cycle and returns its status. Once a terminal
// status is reached, Step does nothing and keeps returning it.
func (p *Pipeline) Step() Status {
	if p.status.IsTerminal() {
		return p.status
	}

	p.stats.Cycles++
	cycle := p.stats.Cycles

	cur := p.state
	squashed := false
	if cur.mispredict {
		p.squash(&cur, cycle)
		squashed = true
	}

	next := cur
	next.mispredict = false

	// Writeback goes first so Decode sees this cycle's register writes
	// and released locks.
	wb := p.writebackStage.Writeback(cur.latches[StageMemory], &next.regs, &next.locks)
	if wb.Status.IsFault() {
		return p.fail(cur, next, nil, StageWriteback, cur.latches[StageMemory].PC, wb.Status, wb.Err)
	}
	next.latches[StageWriteback] = wb.Latch
	if wb.Retired {
		p.stats.Instructions++
		p.emitWriteback(cycle, wb)
	}

	mem := p.memoryStage.Access(cur.latches[StageExecute])
	if mem.Status.IsFault() {
		return p.fail(cur, next, nil, StageMemory, cur.latches[StageExecute].PC, mem.Status, mem.Err)
	}
	next.latches[StageMemory] = mem.Latch
	if mem.Return {
		next.regs.PC = mem.Latch.ValM
		next.awaitingReturn = false
	}

	ex := p.executeStage.Execute(cur.latches[StageDecode], cur.regs.CC)
	if ex.Status.IsFault() {
		return p.fail(cur, next, &mem, StageExecute, cur.latches[StageDecode].PC, ex.Status, ex.Err)
	}
	next.latches[StageExecute] = ex.Latch
	if ex.SetCC {
		next.regs.CC = ex.CC
	}
	if ex.Latch.Class == insts.ClassJump && !ex.Latch.Bubble {
		p.stats.BranchPredictions++
	}
	if ex.Mispredict {
		p.stats.BranchMispredictions++
		next.mispredict = true
		next.redirect = ex.Redirect
	}

	// Faults in Decode and Fetch only count once they are known to be on
	// the right path. A jump mispredicting this cycle means they are not.
	dec := p.decodeStage.Decode(cur.latches[StageFetch], &next.regs, &next.locks)
	if dec.Status.IsFault() {
		if !ex.Mispredict {
			return p.fail(cur, next, &mem, StageDecode, cur.latches[StageFetch].PC, dec.Status, dec.Err)
		}
		dec = DecodeResult{Latch: Bubble()}
	}
	next.latches[StageDecode] = dec.Latch

	switch {
	case dec.Stall:
		next.latches[StageFetch] = cur.latches[StageFetch]
		next.latches[StageFetch].Stalling = true
		p.stats.Stalls++
		p.stats.Bubbles++
		p.emit(func() Event {
			return p.latchEvent(cycle, EventStall, StageDecode, cur.latches[StageFetch])
		})
	case cur.awaitingReturn:
		next.latches[StageFetch] = Bubble()
		p.stats.ReturnWaits++
		p.stats.Bubbles++
		p.emit(func() Event {
			return Event{Cycle: cycle, Kind: EventReturnWait, Stage: StageFetch}
		})
	case cur.haltFetched:
		next.latches[StageFetch] = Bubble()
		p.stats.Bubbles++
	default:
		f := p.fetchStage.Fetch(cur.regs.PC)
		if f.Status.IsFault() {
			if !ex.Mispredict && !unresolvedJump(&cur.latches[StageFetch]) {
				return p.fail(cur, next, &mem, StageFetch, cur.regs.PC, f.Status, f.Err)
			}
			// Retry next cycle, once the jump has executed.
			next.latches[StageFetch] = Bubble()
			p.stats.Bubbles++
			break
		}
		next.latches[StageFetch] = f.Latch
		next.regs.PC = f.NextPC
		next.awaitingReturn = f.AwaitReturn
		next.haltFetched = f.Halt
		p.emit(func() Event {
			return p.latchEvent(cycle, EventFetch, StageFetch, f.Latch)
		})
	}

	p.commitStore(cycle, &mem)
	p.state = next

	switch {
	case wb.Halt:
		p.status = Halted
		p.runState = StateHalted
		p.emit(func() Event {
			ev := p.latchEvent(cycle, EventHalt, StageWriteback, wb.Latch)
			ev.Status = Halted
			return ev
		})
	case squashed:
		p.runState = StateSquashing
	case dec.Stall:
		p.runState = StateStalled
	default:
		p.runState = StateRunning
	}

	p.emitCycle(cycle)
	return p.status
}

func unresolvedJump(l *Latch) bool {
	return !l.Bubble && l.Class == insts.ClassJump && l.Ifun != insts.CondAlways
}

// squash flushes the wrong-path instructions in the fetch and decode
// latches and redirects the fetch address.
func (p *Pipeline) squash(s *machineState, cycle uint64) {
	p.hazards.Release(&s.locks, &s.latches[StageDecode])
	s.latches[StageFetch] = Bubble()
	s.latches[StageDecode] = Bubble()
	s.regs.PC = s.redirect
	s.mispredict = false
	s.awaitingReturn = false
	s.haltFetched = false

	p.stats.Squashes++
	p.stats.Bubbles += 2
	p.emit(func() Event {
		return Event{Cycle: cycle, Kind: EventSquash, Stage: StageExecute, Addr: s.redirect}
	})
}

// fail ends the simulation with a fault. Work done by stages older than
// the faulting one is committed; the latches keep their pre-edge contents.
func (p *Pipeline) fail(
	cur, next machineState,
	mem *MemoryResult,
	stage StageID,
	pc uint64,
	status Status,
	err error,
) Status {
	cycle := p.stats.Cycles

	p.commitStore(cycle, mem)
	next.latches = cur.latches
	p.state = next

	p.status = status
	p.runState = StateFaulted
	p.fault = &Fault{
		Status: status,
		Stage:  stage,
		Cycle:  cycle,
		PC:     pc,
		err:    err,
	}
	if err != nil {
		p.fault.Detail = err.Error()
	}

	p.emit(func() Event {
		return Event{Cycle: cycle, Kind: EventFault, Stage: stage, PC: pc, Status: status}
	})
	p.emitCycle(cycle)
	return status
}

func (p *Pipeline) commitStore(cycle uint64, mem *MemoryResult) {
	if mem == nil || !mem.Store {
		return
	}
	p.memory.Write64(mem.Addr, mem.Data)
	p.emit(func() Event {
		ev := p.latchEvent(cycle, EventMemWrite, StageMemory, mem.Latch)
		ev.Addr = mem.Addr
		ev.Value = mem.Data
		return ev
	})
}

func (p *Pipeline) emitWriteback(cycle uint64, wb WritebackResult) {
	if p.sink == nil {
		return
	}
	for _, w := range wb.Writes {
		ev := p.latchEvent(cycle, EventRegWrite, StageWriteback, wb.Latch)
		ev.Reg = w.Reg
		ev.Value = w.Value
		p.sink.Handle(ev)
	}
	p.sink.Handle(p.latchEvent(cycle, EventRetire, StageWriteback, wb.Latch))
}

func (p *Pipeline) emitCycle(cycle uint64) {
	p.emit(func() Event {
		latches := make([]string, NumStages)
		for i, l := range p.state.latches {
			latches[i] = l.String()
		}
		return Event{
			Cycle:   cycle,
			Kind:    EventCycle,
			PC:      p.state.regs.PC,
			Status:  p.status,
			Latches: latches,
		}
	})
}

// emit builds an event only when somebody is listening.
func (p *Pipeline) emit(build func() Event) {
	if p.sink == nil {
		return
	}
	p.sink.Handle(build())
}

func (p *Pipeline) latchEvent(cycle uint64, kind EventKind, stage StageID, l Latch) Event {
	return Event{
		Cycle: cycle,
		Kind:  kind,
		Stage: stage,
		PC:    l.PC,
		Inst:  l.String(),
	}
}

// Snapshot is a read-only copy of the visible pipeline state.
type Snapshot struct {
	Cycle     uint64            `yaml:"cycle"`
	Status    Status            `yaml:"status"`
	State     RunState          `yaml:"state"`
	PC        uint64            `yaml:"pc"`
	Registers map[string]uint64 `yaml:"registers"`
	Flags     map[string]bool   `yaml:"flags"`
	Latches   []LatchView       `yaml:"latches"`
	Locked    []string          `yaml:"locked,omitempty"`
	Fault     *Fault            `yaml:"fault,omitempty"`
	Stats     Statistics        `yaml:"stats"`
}

// LatchView is a latch with its stage name and disassembly.
type LatchView struct {
	Stage StageID `yaml:"stage"`
	Text  string  `yaml:"text"`
	Latch Latch   `yaml:"latch"`
}

// Snapshot returns a copy of the state after the most recent cycle.
func (p *Pipeline) Snapshot() Snapshot {
	s := p.state
	snap := Snapshot{
		Cycle:     p.stats.Cycles,
		Status:    p.status,
		State:     p.runState,
		PC:        s.regs.PC,
		Registers: make(map[string]uint64, insts.NumRegs),
		Flags: map[string]bool{
			"zf": s.regs.CC.ZF,
			"sf": s.regs.CC.SF,
			"of": s.regs.CC.OF,
		},
		Fault: p.Fault(),
		Stats: p.stats,
	}

	for r := uint8(0); r < insts.NumRegs; r++ {
		name := insts.RegName(r)
		snap.Registers[name] = s.regs.R[r]
		if s.locks.Locked(r) {
			snap.Locked = append(snap.Locked, name)
		}
	}
	for i, l := range s.latches {
		snap.Latches = append(snap.Latches, LatchView{Stage: StageID(i), Text: l.String(), Latch: l})
	}

	return snap
}

// String returns a one-line summary of the latches.
func (s Snapshot) String() string {
	out := fmt.Sprintf("cycle %d pc 0x%x", s.Cycle, s.PC)
	for _, v := range s.Latches {
		out += fmt.Sprintf(" | %c: %s", v.Stage.String()[0]-'a'+'A', v.Text)
	}
	return out
}
