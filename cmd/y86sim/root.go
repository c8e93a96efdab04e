package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sarchlab/y86sim/config"
	"github.com/sarchlab/y86sim/emu"
	"github.com/sarchlab/y86sim/loader"
	"github.com/sarchlab/y86sim/timing/pipeline"
	"github.com/sarchlab/y86sim/trace"
)

// exitError carries a process exit code. Its message, if any, has already
// been printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// app is the state shared by all subcommands.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	cfg        *config.Config
}

func execute(args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{in: in, out: out, errOut: errOut}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.Execute()
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "y86sim",
		Short: "Five-stage pipelined Y86-64 simulator",
		Long: `y86sim simulates a Y86-64 processor with a classic five-stage pipeline
(fetch, decode, execute, memory, writeback). It stalls on register hazards
instead of forwarding, predicts jumps taken and squashes on a
misprediction, and reports faults precisely.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd.Flags())
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "",
		"config file (yaml, json or toml)")
	config.AddFlags(root.PersistentFlags())

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newDebugCmd(a))
	root.AddCommand(newBenchCmd(a))
	root.AddCommand(newDisasmCmd(a))

	return root
}

func (a *app) loadConfig(flags *pflag.FlagSet) error {
	v := viper.New()
	if err := config.BindFlags(v, flags); err != nil {
		return err
	}

	cfg, err := config.Load(v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// machine is a loaded program ready to simulate.
type machine struct {
	image  *loader.Image
	memory *emu.Memory
	pipe   *pipeline.Pipeline
	sink   *trace.Sink
}

// load reads a program into a fresh memory and builds a pipeline over it,
// with the configured trace attached plus any extra sinks.
func (a *app) load(path string, maxCycles uint64, extra ...pipeline.EventSink) (*machine, error) {
	image, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	memory := emu.NewMemoryWithSize(a.cfg.MemorySize)
	if err := image.LoadInto(memory); err != nil {
		return nil, err
	}

	sink, err := trace.Open(a.cfg.Trace, a.errOut)
	if err != nil {
		return nil, err
	}

	sinks := append([]pipeline.EventSink{sink}, extra...)
	pipe := pipeline.NewPipeline(memory,
		pipeline.WithEventSink(trace.Multi(sinks...)),
		pipeline.WithMaxCycles(maxCycles),
	)

	return &machine{image: image, memory: memory, pipe: pipe, sink: sink}, nil
}

func (m *machine) Close() error {
	return m.sink.Close()
}

// reload restores the program image and resets the pipeline.
func (m *machine) reload() error {
	m.memory.Reset()
	if err := m.image.LoadInto(m.memory); err != nil {
		return err
	}
	m.pipe.Reset()
	return nil
}
