package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/y86sim/emu"
	"github.com/sarchlab/y86sim/insts"
	"github.com/sarchlab/y86sim/timing/pipeline"
)

var _ = Describe("Stages", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemoryWithSize(0x100)
	})

	Describe("FetchStage", func() {
		var fetch *pipeline.FetchStage

		BeforeEach(func() {
			fetch = pipeline.NewFetchStage(memory)
		})

		It("should fall through after ordinary instructions", func() {
			Expect(memory.LoadProgram(0x20, insts.Encode(insts.Irmovq(9, insts.RDX)))).To(Succeed())
			result := fetch.Fetch(0x20)
			Expect(result.Status).To(Equal(pipeline.Continue))
			Expect(result.NextPC).To(Equal(uint64(0x2A)))
			Expect(result.Latch.ValC).To(Equal(uint64(9)))
			Expect(result.Latch.ValP).To(Equal(uint64(0x2A)))
		})

		It("should predict jumps and calls taken", func() {
			Expect(memory.LoadProgram(0, insts.Encode(insts.Jump(insts.CondL, 0x80)))).To(Succeed())
			Expect(fetch.Fetch(0).NextPC).To(Equal(uint64(0x80)))

			Expect(memory.LoadProgram(0, insts.Encode(insts.Call(0x90)))).To(Succeed())
			Expect(fetch.Fetch(0).NextPC).To(Equal(uint64(0x90)))
		})

		It("should wait for ret and stop after halt", func() {
			Expect(memory.LoadProgram(0, []byte{0x90, 0x00})).To(Succeed())
			Expect(fetch.Fetch(0).AwaitReturn).To(BeTrue())
			Expect(fetch.Fetch(1).Halt).To(BeTrue())
		})

		It("should read an instruction ending exactly at capacity", func() {
			Expect(memory.LoadProgram(0xF6, insts.Encode(insts.Irmovq(3, insts.RAX)))).To(Succeed())
			result := fetch.Fetch(0xF6)
			Expect(result.Status).To(Equal(pipeline.Continue))
			Expect(result.Latch.ValC).To(Equal(uint64(3)))
		})

		It("should fault on an instruction crossing capacity", func() {
			Expect(memory.LoadProgram(0xF7, []byte{0x30, 0xF0})).To(Succeed())
			Expect(fetch.Fetch(0xF7).Status).To(Equal(pipeline.FaultMemoryBounds))
		})

		It("should fault on an undefined class", func() {
			memory.Write8(0, 0xD0)
			Expect(fetch.Fetch(0).Status).To(Equal(pipeline.FaultInvalidOpcode))
		})
	})

	Describe("DecodeStage", func() {
		var (
			decode *pipeline.DecodeStage
			regs   emu.RegFile
			locks  pipeline.LockTable
		)

		BeforeEach(func() {
			decode = pipeline.NewDecodeStage(pipeline.NewHazardUnit())
			regs = emu.RegFile{}
			regs.R[insts.RAX] = 11
			regs.R[insts.RSP] = 0x80
			locks = pipeline.LockTable{}
		})

		It("should read sources and lock destinations", func() {
			result := decode.Decode(*latchOf(insts.Pushq(insts.RAX)), &regs, &locks)
			Expect(result.Stall).To(BeFalse())
			Expect(result.Latch.ValA).To(Equal(uint64(11)))
			Expect(result.Latch.ValB).To(Equal(uint64(0x80)))
			Expect(locks.Locked(insts.RSP)).To(BeTrue())
		})

		It("should return a stalling bubble on a locked source", func() {
			locks.Lock(insts.RAX)
			result := decode.Decode(*latchOf(insts.Pushq(insts.RAX)), &regs, &locks)
			Expect(result.Stall).To(BeTrue())
			Expect(result.Latch.Bubble).To(BeTrue())
			Expect(result.Latch.Stalling).To(BeTrue())
			Expect(locks.Locked(insts.RSP)).To(BeFalse())
		})

		It("should fault on a register index of 8 or more", func() {
			result := decode.Decode(*latchOf(insts.Addq(8, insts.RAX)), &regs, &locks)
			Expect(result.Status).To(Equal(pipeline.FaultInvalidRegister))
		})
	})

	Describe("ExecuteStage", func() {
		var execute *pipeline.ExecuteStage

		BeforeEach(func() {
			execute = pipeline.NewExecuteStage()
		})

		It("should compute ALU results and flags", func() {
			l := latchOf(insts.Subq(insts.RAX, insts.RBX))
			l.ValA, l.ValB = 5, 5
			result := execute.Execute(*l, emu.CC{})
			Expect(result.Latch.ValE).To(BeZero())
			Expect(result.SetCC).To(BeTrue())
			Expect(result.CC).To(Equal(emu.CC{ZF: true}))
		})

		It("should compute stack addresses", func() {
			l := latchOf(insts.Call(0x40))
			l.ValB = 0x100
			Expect(execute.Execute(*l, emu.CC{}).Latch.ValE).To(Equal(uint64(0xF8)))

			l = latchOf(insts.Popq(insts.RAX))
			l.ValB = 0x100
			Expect(execute.Execute(*l, emu.CC{}).Latch.ValE).To(Equal(uint64(0x108)))
		})

		It("should flag a not-taken jump as mispredicted", func() {
			l := latchOf(insts.Jump(insts.CondE, 0x40))
			l.ValP = 0x9
			result := execute.Execute(*l, emu.CC{ZF: false})
			Expect(result.Mispredict).To(BeTrue())
			Expect(result.Redirect).To(Equal(uint64(0x9)))

			result = execute.Execute(*l, emu.CC{ZF: true})
			Expect(result.Mispredict).To(BeFalse())
		})

		It("should leave the flags alone for non-ALU classes", func() {
			l := latchOf(insts.Irmovq(7, insts.RAX))
			Expect(execute.Execute(*l, emu.CC{SF: true}).SetCC).To(BeFalse())
		})

		It("should fault on an undefined condition", func() {
			l := latchOf(insts.Jump(7, 0))
			Expect(execute.Execute(*l, emu.CC{}).Status).To(Equal(pipeline.FaultInvalidCondition))
		})
	})

	Describe("MemoryStage", func() {
		var stage *pipeline.MemoryStage

		BeforeEach(func() {
			stage = pipeline.NewMemoryStage(memory)
		})

		It("should return stores instead of writing them", func() {
			l := latchOf(insts.Rmmovq(insts.RAX, 0, insts.RBX))
			l.ValA, l.ValE = 0xAB, 0x10
			result := stage.Access(*l)
			Expect(result.Store).To(BeTrue())
			Expect(result.Addr).To(Equal(uint64(0x10)))
			Expect(result.Data).To(Equal(uint64(0xAB)))
			Expect(memory.Read64(0x10)).To(BeZero())
		})

		It("should load through valB for pop and valA for ret", func() {
			memory.Write64(0x20, 0x55)
			l := latchOf(insts.Popq(insts.RAX))
			l.ValB, l.ValE = 0x20, 0x28
			Expect(stage.Access(*l).Latch.ValM).To(Equal(uint64(0x55)))

			l = latchOf(insts.Ret())
			l.ValA = 0x20
			result := stage.Access(*l)
			Expect(result.Return).To(BeTrue())
			Expect(result.Latch.ValM).To(Equal(uint64(0x55)))
		})

		It("should fault past capacity-8", func() {
			l := latchOf(insts.Mrmovq(0, insts.RBX, insts.RAX))
			l.ValE = 0xF9
			Expect(stage.Access(*l).Status).To(Equal(pipeline.FaultMemoryBounds))
		})
	})

	Describe("WritebackStage", func() {
		var (
			wb    *pipeline.WritebackStage
			regs  emu.RegFile
			locks pipeline.LockTable
		)

		BeforeEach(func() {
			wb = pipeline.NewWritebackStage(pipeline.NewHazardUnit())
			regs = emu.RegFile{}
			locks = pipeline.LockTable{}
		})

		It("should write valE then valM", func() {
			l := latchOf(insts.Popq(insts.RSP))
			l.ValE, l.ValM, l.Cnd = 0x108, 0x777, true
			locks.Lock(insts.RSP)

			result := wb.Writeback(*l, &regs, &locks)
			Expect(result.Retired).To(BeTrue())
			Expect(result.Writes).To(Equal([]pipeline.RegWrite{
				{Reg: insts.RSP, Value: 0x108},
				{Reg: insts.RSP, Value: 0x777},
			}))
			Expect(regs.R[insts.RSP]).To(Equal(uint64(0x777)))
			Expect(locks.Count()).To(BeZero())
		})

		It("should skip the write of a failed conditional move but release its lock", func() {
			l := latchOf(insts.Cmov(insts.CondE, insts.RAX, insts.RBX))
			l.ValE, l.Cnd = 4, false
			locks.Lock(insts.RBX)

			result := wb.Writeback(*l, &regs, &locks)
			Expect(result.Writes).To(BeEmpty())
			Expect(regs.R[insts.RBX]).To(BeZero())
			Expect(locks.Locked(insts.RBX)).To(BeFalse())
		})

		It("should fault on a destination of 8 or more", func() {
			l := latchOf(insts.Irmovq(1, 12))
			l.Cnd = true
			result := wb.Writeback(*l, &regs, &locks)
			Expect(result.Status).To(Equal(pipeline.FaultWriteback))
			Expect(regs).To(Equal(emu.RegFile{}))
		})

		It("should detect halt", func() {
			Expect(wb.Writeback(*latchOf(insts.Halt()), &regs, &locks).Halt).To(BeTrue())
		})
	})
})
