package insts

import "fmt"

var regNames = [NumRegs]string{"%rax", "%rcx", "%rdx", "%rbx", "%rsp", "%rbp", "%rsi", "%rdi"}

var (
	opNames   = [...]string{"addq", "subq", "andq", "xorq"}
	jumpNames = [...]string{"jmp", "jle", "jl", "je", "jne", "jge", "jg"}
	cmovNames = [...]string{"rrmovq", "cmovle", "cmovl", "cmove", "cmovne", "cmovge", "cmovg"}
)

// RegName returns the assembler name of a register index.
func RegName(reg uint8) string {
	if reg < NumRegs {
		return regNames[reg]
	}
	if reg == RegNone {
		return "none"
	}
	return fmt.Sprintf("%%r?%d", reg)
}

func pick(names []string, fn uint8, fallback string) string {
	if int(fn) < len(names) {
		return names[fn]
	}
	return fmt.Sprintf("%s.%d", fallback, fn)
}

// Mnemonic returns the mnemonic, taking ifun into account.
func (i Instruction) Mnemonic() string {
	switch i.Class {
	case ClassOp:
		return pick(opNames[:], i.Ifun, "op")
	case ClassJump:
		return pick(jumpNames[:], i.Ifun, "j")
	case ClassCmov:
		return pick(cmovNames[:], i.Ifun, "cmov")
	default:
		return i.Class.String()
	}
}

// String disassembles the instruction in AT&T-like syntax.
func (i Instruction) String() string {
	m := i.Mnemonic()
	ra, rb := RegName(i.RegA), RegName(i.RegB)

	switch i.Class {
	case ClassCmov, ClassOp:
		return fmt.Sprintf("%s %s, %s", m, ra, rb)
	case ClassIrmov:
		return fmt.Sprintf("%s $0x%x, %s", m, i.ValC, rb)
	case ClassRmmov:
		return fmt.Sprintf("%s %s, 0x%x(%s)", m, ra, i.ValC, rb)
	case ClassMrmov:
		return fmt.Sprintf("%s 0x%x(%s), %s", m, i.ValC, rb, ra)
	case ClassJump, ClassCall:
		return fmt.Sprintf("%s 0x%x", m, i.ValC)
	case ClassPush, ClassPop:
		return fmt.Sprintf("%s %s", m, ra)
	default:
		return m
	}
}
