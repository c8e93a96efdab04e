package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/y86sim/emu"
)

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory()
	})

	It("should default to 1 MiB", func() {
		Expect(memory.Size()).To(Equal(uint64(0x100000)))
	})

	It("should store quad words little-endian", func() {
		memory.Write64(0x100, 0x0807060504030201)

		Expect(memory.Read8(0x100)).To(Equal(uint8(0x01)))
		Expect(memory.Read8(0x107)).To(Equal(uint8(0x08)))
		Expect(memory.Read64(0x100)).To(Equal(uint64(0x0807060504030201)))
	})

	It("should allow unaligned access", func() {
		memory.Write64(0x13, 0xCAFEBABEDEADBEEF)
		Expect(memory.Read64(0x13)).To(Equal(uint64(0xCAFEBABEDEADBEEF)))
	})

	Describe("InBounds", func() {
		It("should accept the last full word", func() {
			Expect(memory.InBounds(memory.Size() - 8)).To(BeTrue())
		})

		It("should reject addresses leaving fewer than 8 bytes", func() {
			for addr := memory.Size() - 7; addr < memory.Size()+2; addr++ {
				Expect(memory.InBounds(addr)).To(BeFalse(), "addr 0x%x", addr)
			}
			Expect(memory.InBounds(^uint64(0))).To(BeFalse())
		})

		It("should reject everything in a memory smaller than a word", func() {
			Expect(emu.WordInBounds(4, 0)).To(BeFalse())
		})
	})

	Describe("LoadProgram", func() {
		It("should copy the image", func() {
			Expect(memory.LoadProgram(0x10, []byte{0xDE, 0xAD})).To(Succeed())
			Expect(memory.Read8(0x10)).To(Equal(uint8(0xDE)))
			Expect(memory.Read8(0x11)).To(Equal(uint8(0xAD)))
		})

		It("should refuse an image that does not fit", func() {
			small := emu.NewMemoryWithSize(16)
			Expect(small.LoadProgram(0, make([]byte, 17))).NotTo(Succeed())
			Expect(small.LoadProgram(10, make([]byte, 7))).NotTo(Succeed())
			Expect(small.LoadProgram(10, make([]byte, 6))).To(Succeed())
		})
	})

	It("should zero memory on Reset", func() {
		memory.Write64(0, ^uint64(0))
		memory.Reset()
		Expect(memory.Read64(0)).To(BeZero())
	})
})

var _ = Describe("RegFile", func() {
	It("should ignore writes to RegNone and read it as zero", func() {
		regFile := &emu.RegFile{}
		regFile.WriteReg(0xF, 42)
		Expect(regFile.ReadReg(0xF)).To(BeZero())
		Expect(regFile.R).To(Equal([8]uint64{}))
	})
})
