// Package insts provides Y86-64 instruction definitions and decoding.
//
// This package implements decoding of the variable-length Y86-64 byte encoding
// into structured instruction representations. All pipeline stages consult the
// same class table (see Lookup), so they cannot disagree about which fields an
// instruction class uses.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0, []byte{0x30, 0xf0, 0x05, 0, 0, 0, 0, 0, 0, 0})
//	fmt.Println(inst) // irmovq $0x5, %rax
package insts
