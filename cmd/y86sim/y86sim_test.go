package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/c-bata/go-prompt"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	. "github.com/sarchlab/y86sim/insts"
	"github.com/sarchlab/y86sim/loader"
)

func addProgram() *Builder {
	return NewBuilder().Emit(
		Irmovq(5, RAX),
		Irmovq(3, RBX),
		Addq(RBX, RAX),
		Halt(),
	)
}

type result struct {
	code   int
	out    string
	errOut string
}

func run(stdin string, args ...string) result {
	var out, errOut bytes.Buffer
	code := execute(args, strings.NewReader(stdin), &out, &errOut)
	return result{code: code, out: out.String(), errOut: errOut.String()}
}

var _ = Describe("y86sim", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "y86sim-cmd-test")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
	})

	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, data, 0o644)).To(Succeed())
		return path
	}

	program := func(name string, b *Builder) string {
		return write(name, b.MustBytes())
	}

	Describe("run", func() {
		It("should run a program to halt and report", func() {
			r := run("", "run", program("add.bin", addProgram()))

			Expect(r.code).To(Equal(0))
			Expect(r.out).To(ContainSubstring("Status: halted (1)"))
			Expect(r.out).To(ContainSubstring("Cycles: 10"))
			Expect(r.out).To(ContainSubstring("Instructions: 4"))
			Expect(r.out).To(ContainSubstring("CPI: 2.50"))
			Expect(r.out).To(ContainSubstring("%rax  0x0000000000000008"))
			Expect(r.out).To(ContainSubstring("pc    0x0000000000000017"))
		})

		It("should run .yo listings", func() {
			path := write("add.yo", []byte(strings.Join([]string{
				"0x000: 30f00500000000000000 | irmovq $5, %rax",
				"0x00a: 30f30300000000000000 | irmovq $3, %rbx",
				"0x014: 6030                 | addq %rbx, %rax",
				"0x016: 00                   | halt",
			}, "\n")))

			r := run("", "run", path)
			Expect(r.code).To(Equal(0))
			Expect(r.out).To(ContainSubstring("%rax  0x0000000000000008"))
		})

		It("should clock the pipeline with the engine", func() {
			r := run("", "run", "--engine", program("add.bin", addProgram()))

			Expect(r.code).To(Equal(0))
			Expect(r.out).To(ContainSubstring("Cycles: 10"))
			Expect(r.out).To(ContainSubstring("Simulated time:"))
		})

		It("should report a fault and exit non-zero", func() {
			r := run("", "run", write("bad.bin", []byte{0xC0}))

			Expect(r.code).To(Equal(1))
			Expect(r.out).To(ContainSubstring("Status: invalid opcode (-1)"))
			Expect(r.out).To(ContainSubstring("EXCEPTION: invalid opcode in fetch stage"))
		})

		It("should stop at the cycle limit", func() {
			spin := program("spin.bin", NewBuilder().Emit(Jump(CondAlways, 0)))
			r := run("", "run", "--max-cycles", "25", spin)

			Expect(r.code).To(Equal(1))
			Expect(r.out).To(ContainSubstring("Cycles: 25"))
			Expect(r.errOut).To(ContainSubstring("cycle limit"))
		})

		It("should stop at the cycle limit with the engine", func() {
			spin := program("spin.bin", NewBuilder().Emit(Jump(CondAlways, 0)))
			r := run("", "run", "--engine", "--max-cycles=25", spin)

			Expect(r.code).To(Equal(1))
			Expect(r.errOut).To(ContainSubstring("cycle limit"))
		})

		It("should fail on a missing program", func() {
			r := run("", "run", filepath.Join(dir, "missing.bin"))

			Expect(r.code).To(Equal(1))
			Expect(r.errOut).To(HavePrefix("Error:"))
		})

		It("should fail when the image does not fit", func() {
			r := run("", "run", "--memory-size", "16", program("add.bin", addProgram()))

			Expect(r.code).To(Equal(1))
			Expect(r.errOut).To(ContainSubstring("image exceeds memory capacity"))
		})

		It("should reject an invalid configuration", func() {
			r := run("", "run", "--memory-size", "4", program("add.bin", addProgram()))

			Expect(r.code).To(Equal(1))
			Expect(r.errOut).To(ContainSubstring("memory_size"))
		})

		It("should read a config file", func() {
			cfg := write("y86sim.yaml", []byte("max_cycles: 5\n"))
			r := run("", "run", "--config", cfg, program("add.bin", addProgram()))

			Expect(r.code).To(Equal(1))
			Expect(r.out).To(ContainSubstring("Cycles: 5"))
		})

		It("should dump the final state as YAML", func() {
			dump := filepath.Join(dir, "state.yaml")
			r := run("", "run", "-q", "--dump-state", dump, program("add.bin", addProgram()))
			Expect(r.code).To(Equal(0))
			Expect(r.out).To(BeEmpty())

			data, err := os.ReadFile(dump)
			Expect(err).NotTo(HaveOccurred())

			var state struct {
				Cycle     uint64            `yaml:"cycle"`
				Status    string            `yaml:"status"`
				Registers map[string]uint64 `yaml:"registers"`
				Latches   []struct {
					Stage string `yaml:"stage"`
				} `yaml:"latches"`
			}
			Expect(yaml.Unmarshal(data, &state)).To(Succeed())
			Expect(state.Cycle).To(Equal(uint64(10)))
			Expect(state.Status).To(Equal("halted"))
			Expect(state.Registers).To(HaveKeyWithValue("%rax", uint64(8)))
			Expect(state.Latches).To(HaveLen(5))
			Expect(state.Latches[0].Stage).To(Equal("fetch"))
		})

		It("should write a trace file", func() {
			logPath := filepath.Join(dir, "trace.log")
			r := run("", "run", "-q", "--trace", "info", "--trace-file", logPath,
				program("add.bin", addProgram()))
			Expect(r.code).To(Equal(0))

			data, err := os.ReadFile(logPath)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			Expect(lines).To(HaveLen(5))

			var rec map[string]interface{}
			Expect(json.Unmarshal([]byte(lines[2]), &rec)).To(Succeed())
			Expect(rec["@message"]).To(Equal("retire"))
			Expect(rec["inst"]).To(Equal("addq %rbx, %rax"))
		})
	})

	Describe("disasm", func() {
		It("should produce a listing that loads back to the same image", func() {
			image := NewBuilder().
				Emit(Irmovq(0x400, RSP)).
				CallTo("f").
				Emit(Halt()).
				Label("f").
				Emit(Pushq(RBX), Popq(RBX), Ret()).
				MustBytes()
			r := run("", "disasm", write("call.bin", image))
			Expect(r.code).To(Equal(0))
			Expect(r.out).To(ContainSubstring("| irmovq $0x400, %rsp"))
			Expect(r.out).To(ContainSubstring("| ret"))

			parsed, err := loader.ParseYO(strings.NewReader(r.out))
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Data).To(Equal(image))
		})

		It("should list undecodable bytes", func() {
			r := run("", "disasm", write("junk.bin", []byte{0x10, 0xC0, 0x30}))
			Expect(r.code).To(Equal(0))

			lines := strings.Split(strings.TrimSpace(r.out), "\n")
			Expect(lines).To(HaveLen(3))
			Expect(lines[0]).To(HaveSuffix("| nop"))
			Expect(lines[1]).To(HaveSuffix("| .byte 0xc0"))
			Expect(lines[2]).To(HaveSuffix("| .byte 0x30 # truncated irmovq"))
		})

		It("should honour start and count", func() {
			r := run("", "disasm", "--start", "10", "--count", "1",
				program("add.bin", addProgram()))
			Expect(strings.TrimSpace(r.out)).To(HavePrefix("0x00a: 30f3"))
			Expect(strings.Count(r.out, "\n")).To(Equal(1))
		})
	})

	Describe("bench", func() {
		It("should run the core set", func() {
			r := run("", "bench", "--core")
			Expect(r.code).To(Equal(0), r.errOut)
			Expect(r.out).To(ContainSubstring("Benchmark: branch_taken"))
			Expect(r.out).To(ContainSubstring("Emulator:    match: true"))
		})

		It("should print JSON for named benchmarks", func() {
			r := run("", "bench", "--format", "json", "array_sum", "dependency_chain")
			Expect(r.code).To(Equal(0), r.errOut)

			var report struct {
				Results []struct {
					Name string `json:"name"`
				} `json:"results"`
			}
			Expect(json.Unmarshal([]byte(r.out), &report)).To(Succeed())
			Expect(report.Results).To(HaveLen(2))
			Expect(report.Results[0].Name).To(Equal("array_sum"))
		})

		It("should reject unknown names", func() {
			r := run("", "bench", "nope")
			Expect(r.code).To(Equal(1))
			Expect(r.errOut).To(ContainSubstring("unknown benchmarks: [nope]"))
		})

		It("should list benchmarks", func() {
			r := run("", "bench", "--list")
			Expect(r.code).To(Equal(0))
			Expect(strings.Count(r.out, "\n")).To(Equal(8))
		})
	})

	Describe("debug", func() {
		var path string

		BeforeEach(func() {
			path = program("add.bin", addProgram())
		})

		It("should step and show the latches", func() {
			r := run("step 2\npipe\nquit\nstep\n", "debug", path)
			Expect(r.code).To(Equal(0))

			Expect(r.out).To(ContainSubstring("cycle 1 pc 0xa | F: irmovq $0x5, %rax"))
			Expect(r.out).To(ContainSubstring("cycle 2 pc 0x14"))
			Expect(r.out).To(ContainSubstring("decode    0x000 irmovq $0x5, %rax"))
			Expect(strings.Count(r.out, "cycle ")).To(Equal(3))
		})

		It("should run to the end and show state", func() {
			r := run("run\nregs\nstats\nmem 0x0 1\nlocks\nstep\n", "debug", path)
			Expect(r.code).To(Equal(0))

			Expect(r.out).To(ContainSubstring("  retire 0x014 addq %rbx, %rax"))
			Expect(r.out).To(ContainSubstring("  halt at 0x016"))
			Expect(r.out).To(ContainSubstring("status: halted (1)"))
			Expect(r.out).To(ContainSubstring("%rax  0x0000000000000008"))
			Expect(r.out).To(ContainSubstring("cycles        10"))
			Expect(r.out).To(ContainSubstring("0x0000: 0x000000000005f030"))
			Expect(r.out).To(ContainSubstring("no locked registers"))
			Expect(r.out).To(ContainSubstring("program stopped: halted"))
		})

		It("should show locks while a write is pending", func() {
			r := run("step 2\nlocks\n", "debug", path)
			Expect(r.out).To(ContainSubstring("locked: %rax"))
		})

		It("should reset", func() {
			r := run("run\nreset\nstats\n", "debug", path)
			Expect(r.out).To(ContainSubstring("reset to cycle 0"))
			Expect(r.out).To(ContainSubstring("cycles        0"))
		})

		It("should report bad input", func() {
			r := run("bogus\nmem\nmem zz\nmem 0xffffffff\nstep x\n", "debug", path)
			Expect(r.out).To(ContainSubstring(`unknown command "bogus"`))
			Expect(r.out).To(ContainSubstring("usage: mem <addr> [count]"))
			Expect(r.out).To(ContainSubstring(`bad address "zz"`))
			Expect(r.out).To(ContainSubstring("out of bounds"))
			Expect(r.out).To(ContainSubstring(`bad cycle count "x"`))
		})

		It("should complete command names", func() {
			d := &debugger{}
			buf := prompt.NewBuffer()
			buf.InsertText("st", false, true)

			var names []string
			for _, s := range d.complete(*buf.Document()) {
				names = append(names, s.Text)
			}
			Expect(names).To(ConsistOf("step", "stats"))

			buf.InsertText("ep 4", false, true)
			Expect(d.complete(*buf.Document())).To(BeEmpty())
		})
	})
})
