package benchmarks

import "github.com/sarchlab/y86sim/insts"

// stackTop is where every benchmark places its stack.
const stackTop = 0x800

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// targets a specific pipeline behavior.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		branchNotTaken(),
		recursiveSum(),
		arraySum(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: a loop,
// a call-heavy program and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		branchTaken(),
		recursiveSum(),
		branchNotTaken(),
	}
}

// Lookup returns the microbenchmark with the given name.
func Lookup(name string) (Benchmark, bool) {
	for _, b := range GetMicrobenchmarks() {
		if b.Name == name {
			return b, true
		}
	}
	return Benchmark{}, false
}

// 1. Arithmetic Sequential - operands are ready long before they are used
func arithmeticSequential() Benchmark {
	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "independent adds - measures throughput without data hazards",
		Program: insts.NewBuilder().Emit(
			insts.Irmovq(1, insts.RAX),
			insts.Irmovq(2, insts.RCX),
			insts.Irmovq(3, insts.RDX),
			insts.Irmovq(4, insts.RBX),
			insts.Irmovq(5, insts.RSI),
			insts.Irmovq(6, insts.RDI),
			insts.Addq(insts.RCX, insts.RDX),
			insts.Addq(insts.RBX, insts.RSI),
			insts.Addq(insts.RDI, insts.RAX),
			insts.Nop(),
			insts.Nop(),
			insts.Addq(insts.RDX, insts.RAX),
			insts.Nop(),
			insts.Nop(),
			insts.Nop(),
			insts.Addq(insts.RSI, insts.RAX),
			insts.Halt(),
		),
		Result: 21,
	}
}

// 2. Dependency Chain - every add needs the previous result
func dependencyChain() Benchmark {
	b := insts.NewBuilder().Emit(insts.Irmovq(1, insts.RAX), insts.Irmovq(1, insts.RCX))
	for i := 0; i < 8; i++ {
		b.Emit(insts.Addq(insts.RCX, insts.RAX))
	}
	return Benchmark{
		Name:        "dependency_chain",
		Description: "chain of dependent adds - measures read-after-write stalls",
		Program:     b.Emit(insts.Halt()),
		Result:      9,
	}
}

// 3. Memory Sequential - stores then loads of consecutive words
func memorySequential() Benchmark {
	b := insts.NewBuilder().Emit(insts.Irmovq(0x400, insts.RBX))
	for i := uint64(0); i < 4; i++ {
		b.Emit(insts.Irmovq(i+1, insts.RAX), insts.Rmmovq(insts.RAX, 8*i, insts.RBX))
	}
	b.Emit(insts.Op(insts.OpXor, insts.RAX, insts.RAX))
	for i := uint64(0); i < 4; i++ {
		b.Emit(insts.Mrmovq(8*i, insts.RBX, insts.RCX), insts.Addq(insts.RCX, insts.RAX))
	}
	return Benchmark{
		Name:        "memory_sequential",
		Description: "store then reload four words - measures load-use stalls",
		Program:     b.Emit(insts.Halt()),
		Result:      10,
	}
}

// 4. Function Calls - call and ret overhead
func functionCalls() Benchmark {
	b := insts.NewBuilder().Emit(insts.Irmovq(stackTop, insts.RSP), insts.Op(insts.OpXor, insts.RAX, insts.RAX))
	for i := 0; i < 4; i++ {
		b.CallTo("inc")
	}
	return Benchmark{
		Name:        "function_calls",
		Description: "four calls to a leaf function - measures return bubbles",
		Program: b.Emit(insts.Halt()).
			Label("inc").
			Emit(insts.Irmovq(1, insts.RCX), insts.Addq(insts.RCX, insts.RAX), insts.Ret()),
		Result: 4,
	}
}

// 5. Branch Taken - backward loop branch, correctly predicted until exit
func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "count-down loop summing 10..1 - one misprediction at exit",
		Program: insts.NewBuilder().
			Emit(insts.Irmovq(10, insts.RDX), insts.Irmovq(1, insts.RCX), insts.Op(insts.OpXor, insts.RAX, insts.RAX)).
			Label("loop").
			Emit(insts.Addq(insts.RDX, insts.RAX), insts.Subq(insts.RCX, insts.RDX)).
			JumpTo(insts.CondNE, "loop").
			Emit(insts.Halt()),
		Result: 55,
	}
}

// 6. Branch Not Taken - a forward exit branch mispredicted every iteration
func branchNotTaken() Benchmark {
	return Benchmark{
		Name:        "branch_not_taken",
		Description: "loop with a rarely taken exit branch - mispredicts every iteration",
		Program: insts.NewBuilder().
			Emit(insts.Irmovq(8, insts.RDX), insts.Irmovq(1, insts.RCX), insts.Op(insts.OpXor, insts.RAX, insts.RAX)).
			Label("loop").
			Emit(insts.Subq(insts.RCX, insts.RDX)).
			JumpTo(insts.CondE, "done").
			Emit(insts.Addq(insts.RCX, insts.RAX)).
			JumpTo(insts.CondAlways, "loop").
			Label("done").
			Emit(insts.Halt()),
		Result: 7,
	}
}

// 7. Recursive Sum - deep call chain with stack traffic
func recursiveSum() Benchmark {
	return Benchmark{
		Name:        "recursive_sum",
		Description: "recursive sum of 1..10 - exercises push, pop, call and ret",
		Program: insts.NewBuilder().
			Emit(insts.Irmovq(stackTop, insts.RSP), insts.Irmovq(10, insts.RDI)).
			CallTo("sum").
			Emit(insts.Halt()).
			Label("sum").
			Emit(insts.Irmovq(0, insts.RAX), insts.Op(insts.OpAnd, insts.RDI, insts.RDI)).
			JumpTo(insts.CondE, "done").
			Emit(insts.Pushq(insts.RDI), insts.Irmovq(1, insts.RSI), insts.Subq(insts.RSI, insts.RDI)).
			CallTo("sum").
			Emit(insts.Popq(insts.RDI), insts.Addq(insts.RDI, insts.RAX)).
			Label("done").
			Emit(insts.Ret()),
		Result: 55,
	}
}

// 8. Array Sum - the classic four-element array walk
func arraySum() Benchmark {
	return Benchmark{
		Name:        "array_sum",
		Description: "sum of a four-element array through a called loop",
		Program: insts.NewBuilder().
			Emit(insts.Irmovq(stackTop, insts.RSP)).
			IrmovqLabel("array", insts.RDI).
			Emit(insts.Irmovq(4, insts.RSI)).
			CallTo("sum").
			Emit(insts.Halt()).
			Label("sum").
			Emit(
				insts.Irmovq(8, insts.RBX),
				insts.Irmovq(1, insts.RCX),
				insts.Op(insts.OpXor, insts.RAX, insts.RAX),
				insts.Op(insts.OpAnd, insts.RSI, insts.RSI),
			).
			JumpTo(insts.CondAlways, "test").
			Label("loop").
			Emit(insts.Mrmovq(0, insts.RDI, insts.RDX), insts.Addq(insts.RDX, insts.RAX), insts.Addq(insts.RBX, insts.RDI), insts.Subq(insts.RCX, insts.RSI)).
			Label("test").
			JumpTo(insts.CondNE, "loop").
			Emit(insts.Ret()).
			Align(8).
			Label("array").
			Quad(0x000d000d000d).
			Quad(0x00c000c000c0).
			Quad(0x0b000b000b00).
			Quad(0xa000a000a000),
		Result: 0xabcdabcdabcd,
	}
}
