// Package core provides the Y86-64 core as an akita simulation component.
// It wraps the pipeline so that an akita engine clocks it.
package core

import (
	"context"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/y86sim/timing/pipeline"
)

// DefaultFrequency is the clock used by Simulate callers and tests.
const DefaultFrequency = 1 * sim.GHz

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of stall cycles.
	Stalls uint64
	// Squashes is the number of misprediction flushes.
	Squashes uint64
	// SimTime is the simulated time of the last tick.
	SimTime sim.VTimeInSec
}

// Core is a ticking component that runs one pipeline cycle per tick and
// stops ticking once the pipeline halts or faults.
type Core struct {
	*sim.TickingComponent

	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	engine    sim.Engine
	ctx       context.Context
	maxCycles uint64
	limitHit  bool
}

// Option configures a Core.
type Option func(*Core)

// WithCycleLimit stops ticking after n cycles. A value of 0 means no limit.
func WithCycleLimit(n uint64) Option {
	return func(c *Core) {
		c.maxCycles = n
	}
}

// WithContext stops ticking once ctx is done.
func WithContext(ctx context.Context) Option {
	return func(c *Core) {
		c.ctx = ctx
	}
}

// NewCore creates a Core named name, clocked at freq on engine.
func NewCore(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	pipe *pipeline.Pipeline,
	opts ...Option,
) *Core {
	c := &Core{
		Pipeline: pipe,
		engine:   engine,
		ctx:      context.Background(),
	}
	c.TickingComponent = sim.NewTickingComponent(name, engine, freq, c)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Tick runs one pipeline cycle. It reports progress while the pipeline is
// still running, which keeps the component scheduled.
func (c *Core) Tick() bool {
	if c.ctx.Err() != nil {
		return false
	}
	if c.maxCycles > 0 && c.Pipeline.Stats().Cycles >= c.maxCycles {
		c.limitHit = true
		return false
	}
	return c.Pipeline.Step() == pipeline.Continue
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint64) {
	c.Pipeline.SetPC(pc)
}

// Halted returns true once the program has halted.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Instructions: pipeStats.Instructions,
		Stalls:       pipeStats.Stalls,
		Squashes:     pipeStats.Squashes,
		SimTime:      c.engine.CurrentTime(),
	}
}

// Run schedules the first tick and runs the engine until the core stops.
// It returns the fault error, pipeline.ErrCycleLimit, or nil after a halt.
func (c *Core) Run() (pipeline.Status, error) {
	c.TickLater()
	if err := c.engine.Run(); err != nil {
		return c.Pipeline.Status(), err
	}

	if c.limitHit {
		return c.Pipeline.Status(), pipeline.ErrCycleLimit
	}
	if !c.Pipeline.Status().IsTerminal() {
		return c.Pipeline.Status(), c.ctx.Err()
	}
	return c.Pipeline.Status(), c.Pipeline.Err()
}

// RunCycles executes the core for the specified number of cycles without
// an engine. Returns true if still running.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.Pipeline.RunCycles(cycles)
}

// Reset clears all core state.
func (c *Core) Reset() {
	c.Pipeline.Reset()
	c.limitHit = false
}

// Simulate clocks pipe on a fresh serial engine at freq until it halts,
// faults, hits maxCycles, or ctx is done.
func Simulate(ctx context.Context, pipe *pipeline.Pipeline, freq sim.Freq, maxCycles uint64) (Stats, error) {
	engine := sim.NewSerialEngine()
	c := NewCore("Y86Core", engine, freq, pipe, WithCycleLimit(maxCycles), WithContext(ctx))

	_, err := c.Run()
	return c.Stats(), err
}
