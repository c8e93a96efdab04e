package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/y86sim/insts"
	"github.com/sarchlab/y86sim/timing/core"
	"github.com/sarchlab/y86sim/timing/pipeline"
)

type runOptions struct {
	dumpState string
	engine    bool
	quiet     bool
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run a program until it halts or faults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.dumpState, "dump-state", "",
		"write the final pipeline state as YAML to this file (- for stdout)")
	cmd.Flags().BoolVar(&opts.engine, "engine", false,
		"clock the pipeline with the akita serial engine")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "only print faults")

	return cmd
}

func (a *app) run(ctx context.Context, path string, opts *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	limit := a.cfg.MaxCycles
	if opts.engine {
		// The engine enforces its own limit.
		limit = 0
	}
	m, err := a.load(path, limit)
	if err != nil {
		return err
	}
	defer m.Close()

	var simTime sim.VTimeInSec
	if opts.engine {
		freq := sim.Freq(a.cfg.FrequencyMHz) * sim.MHz
		var stats core.Stats
		stats, err = core.Simulate(ctx, m.pipe, freq, a.cfg.MaxCycles)
		simTime = stats.SimTime
	} else {
		_, err = m.pipe.Run(ctx)
	}

	status := m.pipe.Status()
	if !opts.quiet {
		a.report(path, m.pipe, opts.engine, simTime)
	}

	if opts.dumpState != "" {
		if derr := a.dumpState(opts.dumpState, m.pipe.Snapshot()); derr != nil {
			return derr
		}
	}

	switch {
	case status.IsFault():
		_, _ = fmt.Fprintf(a.out, "EXCEPTION: %v\n", err)
		return &exitError{code: 1}
	case err != nil:
		return err
	}
	return nil
}

func (a *app) report(path string, pipe *pipeline.Pipeline, engine bool, simTime sim.VTimeInSec) {
	stats := pipe.Stats()
	regs := pipe.RegFile()
	status := pipe.Status()

	_, _ = fmt.Fprintf(a.out, "Program: %s\n", path)
	_, _ = fmt.Fprintf(a.out, "Status: %s (%d)\n", status, status.Code())
	_, _ = fmt.Fprintf(a.out, "Cycles: %d\n", stats.Cycles)
	_, _ = fmt.Fprintf(a.out, "Instructions: %d\n", stats.Instructions)
	_, _ = fmt.Fprintf(a.out, "CPI: %.2f\n", stats.CPI())
	if engine {
		_, _ = fmt.Fprintf(a.out, "Simulated time: %.3e s\n", float64(simTime))
	}
	_, _ = fmt.Fprintln(a.out, "")
	_, _ = fmt.Fprintln(a.out, "Pipeline Events:")
	_, _ = fmt.Fprintf(a.out, "  Stalls:       %d\n", stats.Stalls)
	_, _ = fmt.Fprintf(a.out, "  Return waits: %d\n", stats.ReturnWaits)
	_, _ = fmt.Fprintf(a.out, "  Squashes:     %d\n", stats.Squashes)
	_, _ = fmt.Fprintln(a.out, "")
	printRegisters(a.out, regs.R, regs.PC, regs.CC.ZF, regs.CC.SF, regs.CC.OF)
}

func printRegisters(w io.Writer, r [insts.NumRegs]uint64, pc uint64, zf, sf, of bool) {
	for i := uint8(0); i < insts.NumRegs; i++ {
		_, _ = fmt.Fprintf(w, "%-5s 0x%016x\n", insts.RegName(i), r[i])
	}
	_, _ = fmt.Fprintf(w, "%-5s 0x%016x\n", "pc", pc)
	_, _ = fmt.Fprintf(w, "ZF=%d SF=%d OF=%d\n", b2i(zf), b2i(sf), b2i(of))
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (a *app) dumpState(path string, snap pipeline.Snapshot) error {
	var w io.Writer = a.out
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create state dump: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to write state dump: %w", err)
	}
	return enc.Close()
}
