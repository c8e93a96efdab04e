// Package benchmarks runs Y86-64 programs through the pipelined simulator
// and reports timing, checked against the functional emulator.
package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/y86sim/emu"
	"github.com/sarchlab/y86sim/insts"
	"github.com/sarchlab/y86sim/timing/pipeline"
)

// Version is reported in JSON results.
const Version = "0.1.0"

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Status is the final pipeline status and ExitCode its numeric code
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`

	SimulatedCycles      uint64  `json:"simulated_cycles"`
	InstructionsRetired  uint64  `json:"instructions_retired"`
	CPI                  float64 `json:"cpi"`
	StallCycles          uint64  `json:"stall_cycles"`
	ReturnWaits          uint64  `json:"return_waits"`
	Squashes             uint64  `json:"squashes"`
	Bubbles              uint64  `json:"bubbles"`
	BranchPredictions    uint64  `json:"branch_predictions"`
	BranchMispredictions uint64  `json:"branch_mispredictions"`

	// Result is %rax at the end of the run. ResultOK is false when it
	// differs from the benchmark's expected value.
	Result   uint64 `json:"result"`
	ResultOK bool   `json:"result_ok"`

	// EmulatorMatch is true when the final registers, flags, PC and memory
	// equal those of the functional emulator. Only set when the harness
	// compares against the emulator.
	EmulatorMatch bool `json:"emulator_match"`

	// Error describes a fault or a failed run.
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Passed reports whether the run halted with the expected result and, if
// compared, agreed with the emulator.
func (r BenchmarkResult) Passed(compared bool) bool {
	return r.Status == pipeline.Halted.String() && r.ResultOK &&
		(!compared || r.EmulatorMatch)
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Program is the Y86-64 image, loaded at address 0
	Program *insts.Builder

	// Result is the expected value of %rax at halt
	Result uint64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// MemorySize is the memory capacity for every run
	MemorySize uint64

	// MaxCycles bounds each run. 0 means no limit.
	MaxCycles uint64

	// CompareEmulator runs every program on the functional emulator too
	// and checks the final state matches
	CompareEmulator bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		MemorySize:      0x10000,
		MaxCycles:       1_000_000,
		CompareEmulator: true,
		Output:          os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.MemorySize == 0 {
		config.MemorySize = DefaultConfig().MemorySize
	}
	return &Harness{config: config}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// Benchmarks returns the registered benchmarks.
func (h *Harness) Benchmarks() []Benchmark {
	return h.benchmarks
}

// RunAll executes all benchmarks and returns results. It stops early,
// returning the results so far, when ctx is done.
func (h *Harness) RunAll(ctx context.Context) ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, h.Run(ctx, bench))
	}

	return results, nil
}

// Run executes a single benchmark.
func (h *Harness) Run(ctx context.Context, bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	image, err := bench.Program.Bytes()
	if err != nil {
		result.Status = pipeline.Continue.String()
		result.Error = fmt.Sprintf("assembling: %v", err)
		return result
	}

	memory := emu.NewMemoryWithSize(h.config.MemorySize)
	if err := memory.LoadProgram(0, image); err != nil {
		result.Status = pipeline.Continue.String()
		result.Error = err.Error()
		return result
	}

	pipe := pipeline.NewPipeline(memory, pipeline.WithMaxCycles(h.config.MaxCycles))

	start := time.Now()
	status, err := pipe.Run(ctx)
	result.WallTime = time.Since(start)

	stats := pipe.Stats()
	regs := pipe.RegFile()
	result.Status = status.String()
	result.ExitCode = status.Code()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.StallCycles = stats.Stalls
	result.ReturnWaits = stats.ReturnWaits
	result.Squashes = stats.Squashes
	result.Bubbles = stats.Bubbles
	result.BranchPredictions = stats.BranchPredictions
	result.BranchMispredictions = stats.BranchMispredictions
	result.Result = regs.R[insts.RAX]
	result.ResultOK = result.Result == bench.Result
	if err != nil {
		result.Error = err.Error()
	}

	if h.config.CompareEmulator {
		result.EmulatorMatch = h.matchesEmulator(image, regs, memory, stats.Instructions)
	}

	return result
}

func (h *Harness) matchesEmulator(
	image []byte, regs emu.RegFile, memory *emu.Memory, retired uint64,
) bool {
	refMem := emu.NewMemoryWithSize(h.config.MemorySize)
	if err := refMem.LoadProgram(0, image); err != nil {
		return false
	}

	var opts []emu.EmulatorOption
	if h.config.MaxCycles > 0 {
		opts = append(opts, emu.WithMaxInstructions(h.config.MaxCycles))
	}
	ref := emu.NewEmulator(refMem, opts...)
	if res := ref.Run(); res.Err != nil {
		return false
	}

	if *ref.RegFile() != regs || ref.InstructionCount() != retired {
		return false
	}
	for addr := uint64(0); addr < memory.Size(); addr++ {
		if memory.Read8(addr) != refMem.Read8(addr) {
			return false
		}
	}
	return true
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	out := h.config.Output
	_, _ = fmt.Fprintln(out, "=== Y86-64 Pipeline Benchmark Results ===")
	_, _ = fmt.Fprintln(out, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(out, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(out, "  Status: %s (%d)\n", r.Status, r.ExitCode)
		if r.Error != "" {
			_, _ = fmt.Fprintf(out, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(out, "  --- Timing ---")
		_, _ = fmt.Fprintf(out, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(out, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(out, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(out, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(out, "  Return Waits:         %d\n", r.ReturnWaits)
		_, _ = fmt.Fprintf(out, "  Squashes:             %d\n", r.Squashes)

		if r.BranchPredictions > 0 {
			_, _ = fmt.Fprintln(out, "  --- Branches ---")
			_, _ = fmt.Fprintf(out, "  Predictions:     %d\n", r.BranchPredictions)
			_, _ = fmt.Fprintf(out, "  Mispredictions:  %d\n", r.BranchMispredictions)
		}

		_, _ = fmt.Fprintln(out, "  --- Check ---")
		_, _ = fmt.Fprintf(out, "  %%rax:        0x%x (ok: %v)\n", r.Result, r.ResultOK)
		if h.config.CompareEmulator {
			_, _ = fmt.Fprintf(out, "  Emulator:    match: %v\n", r.EmulatorMatch)
		}

		if h.config.Verbose {
			_, _ = fmt.Fprintf(out, "  Wall Time: %v\n", r.WallTime)
		}
		_, _ = fmt.Fprintln(out, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,status,cycles,instructions,cpi,stalls,return_waits,squashes,mispredictions,result,result_ok,emulator_match")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%v,%v\n",
			r.Name,
			r.Status,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.ReturnWaits,
			r.Squashes,
			r.BranchMispredictions,
			r.Result,
			r.ResultOK,
			r.EmulatorMatch,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	Metadata ReportMetadata    `json:"metadata"`
	Results  []BenchmarkResult `json:"results"`
	Summary  ReportSummary     `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	Timestamp string          `json:"timestamp"`
	Version   string          `json:"version"`
	Config    BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	MemorySize      uint64 `json:"memory_size"`
	MaxCycles       uint64 `json:"max_cycles"`
	CompareEmulator bool   `json:"compare_emulator"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks   int           `json:"total_benchmarks"`
	Passed            int           `json:"passed"`
	TotalCycles       uint64        `json:"total_cycles"`
	TotalInstructions uint64        `json:"total_instructions"`
	AverageCPI        float64       `json:"average_cpi"`
	TotalWallTime     time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func (h *Harness) Summarize(results []BenchmarkResult) ReportSummary {
	s := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		s.TotalCycles += r.SimulatedCycles
		s.TotalInstructions += r.InstructionsRetired
		s.TotalWallTime += r.WallTime
		if r.Passed(h.config.CompareEmulator) {
			s.Passed++
		}
	}
	if s.TotalInstructions > 0 {
		s.AverageCPI = float64(s.TotalCycles) / float64(s.TotalInstructions)
	}
	return s
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config: BenchmarkConfig{
				MemorySize:      h.config.MemorySize,
				MaxCycles:       h.config.MaxCycles,
				CompareEmulator: h.config.CompareEmulator,
			},
		},
		Results: results,
		Summary: h.Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
