package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sarchlab/y86sim/benchmarks"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		format  string
		coreSet bool
		list    bool
		noCheck bool
	)

	cmd := &cobra.Command{
		Use:   "bench [name...]",
		Short: "Run the bundled benchmark programs and report CPI",
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				for _, b := range benchmarks.GetMicrobenchmarks() {
					_, _ = fmt.Fprintf(a.out, "%-22s %s\n", b.Name, b.Description)
				}
				return nil
			}

			selected, err := selectBenchmarks(args, coreSet)
			if err != nil {
				return err
			}

			hc := benchmarks.DefaultConfig()
			hc.MemorySize = a.cfg.MemorySize
			if a.cfg.MaxCycles > 0 {
				hc.MaxCycles = a.cfg.MaxCycles
			}
			hc.CompareEmulator = !noCheck
			hc.Output = a.out

			harness := benchmarks.NewHarness(hc)
			harness.AddBenchmarks(selected)

			results, err := harness.RunAll(cmd.Context())
			if err != nil {
				return err
			}

			switch format {
			case "csv":
				harness.PrintCSV(results)
			case "json":
				if err := harness.PrintJSON(results); err != nil {
					return err
				}
			default:
				harness.PrintResults(results)
			}

			summary := harness.Summarize(results)
			if summary.Passed != summary.TotalBenchmarks {
				return fmt.Errorf("%d of %d benchmarks failed",
					summary.TotalBenchmarks-summary.Passed, summary.TotalBenchmarks)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, csv, json")
	cmd.Flags().BoolVar(&coreSet, "core", false, "run only the core benchmark set")
	cmd.Flags().BoolVar(&list, "list", false, "list the benchmarks and exit")
	cmd.Flags().BoolVar(&noCheck, "no-check", false, "skip the functional emulator comparison")

	return cmd
}

func selectBenchmarks(names []string, coreSet bool) ([]benchmarks.Benchmark, error) {
	if len(names) == 0 {
		if coreSet {
			return benchmarks.GetCoreBenchmarks(), nil
		}
		return benchmarks.GetMicrobenchmarks(), nil
	}

	var (
		out     []benchmarks.Benchmark
		unknown []string
	)
	for _, name := range names {
		b, ok := benchmarks.Lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, b)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown benchmarks: %v (see --list)", unknown)
	}
	return out, nil
}
