package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sarchlab/y86sim/timing/pipeline"
	"github.com/sarchlab/y86sim/trace"
)

// defaultRunLimit bounds "run" in the debugger when no cycle limit is
// configured.
const defaultRunLimit = 1_000_000

var debugCommands = []prompt.Suggest{
	{Text: "step", Description: "advance n cycles (default 1)"},
	{Text: "run", Description: "run until halt, fault or the cycle limit"},
	{Text: "regs", Description: "registers, PC and flags"},
	{Text: "pipe", Description: "the five pipeline latches"},
	{Text: "locks", Description: "registers with a pending write"},
	{Text: "mem", Description: "quad words: mem <addr> [count]"},
	{Text: "stats", Description: "cycle and instruction counters"},
	{Text: "reset", Description: "reload the program and restart"},
	{Text: "help", Description: "list commands"},
	{Text: "quit", Description: "leave the debugger"},
}

var debugAliases = map[string]string{
	"s":    "step",
	"r":    "run",
	"c":    "run",
	"p":    "pipe",
	"q":    "quit",
	"exit": "quit",
}

func newDebugCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "debug <program>",
		Short: "Step through a program cycle by cycle",
		Long: `debug loads a program and opens an interactive prompt. When standard
input is not a terminal, commands are read from it one per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.debug(args[0])
		},
	}
}

func (a *app) debug(path string) error {
	rec := trace.NewRecorder(
		pipeline.EventRetire, pipeline.EventSquash, pipeline.EventHalt, pipeline.EventFault,
	)
	m, err := a.load(path, 0, rec)
	if err != nil {
		return err
	}
	defer m.Close()

	limit := a.cfg.MaxCycles
	if limit == 0 {
		limit = defaultRunLimit
	}
	d := &debugger{m: m, out: a.out, events: rec, runLimit: limit}

	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		d.interactive(path)
		return nil
	}
	return d.script(a.in)
}

type debugger struct {
	m        *machine
	out      io.Writer
	events   *trace.Recorder
	runLimit uint64
	done     bool
}

func (d *debugger) interactive(path string) {
	_, _ = fmt.Fprintf(d.out, "y86sim debugger: %s (%d bytes). Type 'help' for commands.\n",
		path, d.m.image.Size())

	p := prompt.New(
		func(in string) { d.execute(in) },
		d.complete,
		prompt.OptionLivePrefix(func() (string, bool) {
			return fmt.Sprintf("y86[%d]> ", d.m.pipe.Stats().Cycles), true
		}),
		prompt.OptionTitle("y86sim debugger"),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && d.done
		}),
		prompt.OptionAddKeyBind(prompt.KeyBind{
			Key: prompt.ControlC,
			Fn: func(*prompt.Buffer) {
				_, _ = fmt.Fprint(d.out, "\r(type quit or press Ctrl-D to leave)\n")
			},
		}),
	)
	p.Run()
}

// script executes one command per line until quit or end of input.
func (d *debugger) script(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for !d.done && scanner.Scan() {
		d.execute(scanner.Text())
	}
	return scanner.Err()
}

func (d *debugger) complete(doc prompt.Document) []prompt.Suggest {
	if strings.Contains(doc.TextBeforeCursor(), " ") {
		return nil
	}
	return prompt.FilterHasPrefix(debugCommands, doc.GetWordBeforeCursor(), true)
}

// execute runs one debugger command.
func (d *debugger) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	name := strings.ToLower(fields[0])
	if alias, ok := debugAliases[name]; ok {
		name = alias
	}
	args := fields[1:]

	switch name {
	case "step":
		d.step(args)
	case "run":
		d.run()
	case "regs":
		regs := d.m.pipe.RegFile()
		printRegisters(d.out, regs.R, regs.PC, regs.CC.ZF, regs.CC.SF, regs.CC.OF)
	case "pipe":
		d.printPipe()
	case "locks":
		d.printLocks()
	case "mem":
		d.printMem(args)
	case "stats":
		d.printStats()
	case "reset":
		if err := d.m.reload(); err != nil {
			d.printf("reset failed: %v\n", err)
			return
		}
		d.events.Reset()
		d.printf("reset to cycle 0\n")
	case "help":
		for _, c := range debugCommands {
			d.printf("  %-6s %s\n", c.Text, c.Description)
		}
	case "quit":
		d.done = true
	default:
		d.printf("unknown command %q (try help)\n", fields[0])
	}
}

func (d *debugger) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(d.out, format, args...)
}

func (d *debugger) stopped() bool {
	status := d.m.pipe.Status()
	if status.IsTerminal() {
		d.printf("program stopped: %s\n", status)
		return true
	}
	return false
}

func (d *debugger) step(args []string) {
	n := uint64(1)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil || v == 0 {
			d.printf("bad cycle count %q\n", args[0])
			return
		}
		n = v
	}

	for i := uint64(0); i < n; i++ {
		if d.stopped() {
			break
		}
		d.m.pipe.Step()
		d.printf("%s\n", d.m.pipe.Snapshot())
		d.flushEvents()
	}
}

func (d *debugger) run() {
	if d.stopped() {
		return
	}

	for i := uint64(0); i < d.runLimit; i++ {
		if d.m.pipe.Step().IsTerminal() {
			break
		}
	}
	d.flushEvents()

	status := d.m.pipe.Status()
	if !status.IsTerminal() {
		d.printf("paused after %d cycles\n", d.runLimit)
	}
	d.printf("%s\n", d.m.pipe.Snapshot())
	d.printf("status: %s (%d)\n", status, status.Code())
}

func (d *debugger) flushEvents() {
	for _, ev := range d.events.Events() {
		switch ev.Kind {
		case pipeline.EventRetire:
			d.printf("  retire 0x%03x %s\n", ev.PC, ev.Inst)
		case pipeline.EventSquash:
			d.printf("  squash, fetch from 0x%03x\n", ev.Addr)
		case pipeline.EventHalt:
			d.printf("  halt at 0x%03x\n", ev.PC)
		case pipeline.EventFault:
			d.printf("  fault: %s in %s stage at 0x%03x\n", ev.Status, ev.Stage, ev.PC)
		}
	}
	d.events.Reset()
}

func (d *debugger) printPipe() {
	snap := d.m.pipe.Snapshot()
	d.printf("cycle %d pc 0x%03x state %s\n", snap.Cycle, snap.PC, snap.State)
	for _, v := range snap.Latches {
		pc := ""
		if !v.Latch.Bubble || v.Latch.Stalling {
			pc = fmt.Sprintf("0x%03x", v.Latch.PC)
		}
		d.printf("  %-9s %-5s %s\n", v.Stage, pc, v.Text)
	}
}

func (d *debugger) printLocks() {
	locked := d.m.pipe.Snapshot().Locked
	if len(locked) == 0 {
		d.printf("no locked registers\n")
		return
	}
	d.printf("locked: %s\n", strings.Join(locked, " "))
}

func (d *debugger) printMem(args []string) {
	if len(args) == 0 {
		d.printf("usage: mem <addr> [count]\n")
		return
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		d.printf("bad address %q\n", args[0])
		return
	}
	count := uint64(4)
	if len(args) > 1 {
		if count, err = strconv.ParseUint(args[1], 0, 64); err != nil {
			d.printf("bad count %q\n", args[1])
			return
		}
	}

	mem := d.m.memory
	for i := uint64(0); i < count; i++ {
		a := addr + i*8
		if !mem.InBounds(a) {
			d.printf("0x%04x: out of bounds (capacity 0x%x)\n", a, mem.Size())
			return
		}
		d.printf("0x%04x: 0x%016x\n", a, mem.Read64(a))
	}
}

func (d *debugger) printStats() {
	s := d.m.pipe.Stats()
	d.printf("cycles        %d\n", s.Cycles)
	d.printf("instructions  %d\n", s.Instructions)
	d.printf("cpi           %.2f\n", s.CPI())
	d.printf("stalls        %d\n", s.Stalls)
	d.printf("return waits  %d\n", s.ReturnWaits)
	d.printf("squashes      %d\n", s.Squashes)
	d.printf("bubbles       %d\n", s.Bubbles)
	d.printf("branches      %d (%d mispredicted)\n", s.BranchPredictions, s.BranchMispredictions)
}
