package insts

// Class is the 4-bit instruction class (icode).
type Class uint8

// Instruction classes, in encoding order.
const (
	ClassHalt  Class = 0x0
	ClassNop   Class = 0x1
	ClassCmov  Class = 0x2
	ClassIrmov Class = 0x3
	ClassRmmov Class = 0x4
	ClassMrmov Class = 0x5
	ClassOp    Class = 0x6
	ClassJump  Class = 0x7
	ClassCall  Class = 0x8
	ClassRet   Class = 0x9
	ClassPush  Class = 0xA
	ClassPop   Class = 0xB

	// NumClasses is the number of defined instruction classes.
	NumClasses = 12
)

// Register indices. RSP is the stack pointer written by call, ret, push and pop.
const (
	RAX uint8 = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI

	// NumRegs is the number of general-purpose registers.
	NumRegs = 8

	// RegNone marks an absent register field.
	RegNone uint8 = 0xF
)

// ALU function codes for ClassOp.
const (
	OpAdd uint8 = iota
	OpSub
	OpAnd
	OpXor
)

// Condition codes for ClassCmov and ClassJump.
const (
	CondAlways uint8 = iota
	CondLE
	CondL
	CondE
	CondNE
	CondGE
	CondG
)

// MaxLength is the length in bytes of the longest instruction encoding.
const MaxLength = 10

// RegSel selects which register an instruction reads or writes.
type RegSel uint8

// Register selectors.
const (
	SelNone RegSel = iota // no register
	SelA                  // the regA field
	SelB                  // the regB field
	SelSP                 // the stack pointer, implicitly
)

// Resolve returns the register index chosen by the selector.
func (s RegSel) Resolve(regA, regB uint8) uint8 {
	switch s {
	case SelA:
		return regA
	case SelB:
		return regB
	case SelSP:
		return RSP
	default:
		return RegNone
	}
}

// ALUSel selects what Execute computes into valE.
type ALUSel uint8

// Execute behaviours.
const (
	ALUNone  ALUSel = iota
	ALUPassA        // valE = valA
	ALUPassC        // valE = valC
	ALUAddBC        // valE = valB + valC
	ALUOp           // valE = valB OP valA, sets condition codes
	ALUDecB         // valE = valB - 8
	ALUIncB         // valE = valB + 8
)

// MemOp is the memory action taken in the Memory stage.
type MemOp uint8

// Memory actions.
const (
	MemNone MemOp = iota
	MemRead
	MemWrite
)

// ValSel names a latch value used as a memory address or store datum.
type ValSel uint8

// Latch values.
const (
	ValE ValSel = iota
	ValA
	ValB
	ValP
)

// PCSel is how Fetch chooses the next PC after fetching an instruction.
type PCSel uint8

// Next-PC policies.
const (
	PCValP   PCSel = iota // fall through
	PCValC                // predict taken to the encoded target
	PCReturn              // hold until Memory resolves the return address
	PCHalt                // fall through, then stop fetching
)

// Info describes everything the pipeline needs to know about a class.
type Info struct {
	Name    string
	Length  uint64
	HasRegs bool
	HasValC bool

	SrcA RegSel
	SrcB RegSel
	DstE RegSel
	DstM RegSel

	ALU     ALUSel
	Mem     MemOp
	MemAddr ValSel
	MemData ValSel
	NextPC  PCSel

	// Conditional classes evaluate ifun as a condition in Execute.
	Conditional bool

	// ReservedA and ReservedB fields must hold RegNone.
	ReservedA bool
	ReservedB bool
}

var classTable = [NumClasses]Info{
	ClassHalt: {Name: "halt", Length: 1, NextPC: PCHalt},
	ClassNop:  {Name: "nop", Length: 1},
	ClassCmov: {
		Name: "cmovXX", Length: 2, HasRegs: true,
		SrcA: SelA, DstE: SelB, ALU: ALUPassA, Conditional: true,
	},
	ClassIrmov: {
		Name: "irmovq", Length: 10, HasRegs: true, HasValC: true,
		DstE: SelB, ALU: ALUPassC, ReservedA: true,
	},
	ClassRmmov: {
		Name: "rmmovq", Length: 10, HasRegs: true, HasValC: true,
		SrcA: SelA, SrcB: SelB, ALU: ALUAddBC,
		Mem: MemWrite, MemAddr: ValE, MemData: ValA,
	},
	ClassMrmov: {
		Name: "mrmovq", Length: 10, HasRegs: true, HasValC: true,
		SrcB: SelB, DstM: SelA, ALU: ALUAddBC,
		Mem: MemRead, MemAddr: ValE,
	},
	ClassOp: {
		Name: "OPq", Length: 2, HasRegs: true,
		SrcA: SelA, SrcB: SelB, DstE: SelB, ALU: ALUOp,
	},
	ClassJump: {
		Name: "jXX", Length: 9, HasValC: true,
		NextPC: PCValC, Conditional: true,
	},
	ClassCall: {
		Name: "call", Length: 9, HasValC: true,
		SrcB: SelSP, DstE: SelSP, ALU: ALUDecB,
		Mem: MemWrite, MemAddr: ValE, MemData: ValP, NextPC: PCValC,
	},
	ClassRet: {
		Name: "ret", Length: 1,
		SrcA: SelSP, SrcB: SelSP, DstE: SelSP, ALU: ALUIncB,
		Mem: MemRead, MemAddr: ValA, NextPC: PCReturn,
	},
	ClassPush: {
		Name: "pushq", Length: 2, HasRegs: true,
		SrcA: SelA, SrcB: SelSP, DstE: SelSP, ALU: ALUDecB,
		Mem: MemWrite, MemAddr: ValE, MemData: ValA, ReservedB: true,
	},
	ClassPop: {
		Name: "popq", Length: 2, HasRegs: true,
		SrcA: SelSP, SrcB: SelSP, DstE: SelSP, DstM: SelA, ALU: ALUIncB,
		Mem: MemRead, MemAddr: ValB, ReservedB: true,
	},
}

// Valid reports whether c is a defined instruction class.
func (c Class) Valid() bool {
	return c < NumClasses
}

// Lookup returns the table entry for a class, or nil for an undefined class.
func Lookup(c Class) *Info {
	if !c.Valid() {
		return nil
	}
	return &classTable[c]
}

// String returns the class mnemonic.
func (c Class) String() string {
	if info := Lookup(c); info != nil {
		return info.Name
	}
	return "invalid"
}
