// Package emu provides functional Y86-64 emulation.
package emu

import (
	"encoding/binary"
	"fmt"
)

// DefaultMemorySize is the capacity of a memory created by NewMemory (1 MiB).
const DefaultMemorySize = 0x100000

// WordSize is the width of every load and store.
const WordSize = 8

// Memory is a flat, byte-addressable store of fixed capacity.
// Accesses are not bounds-checked; callers check with InBounds first.
type Memory struct {
	data []byte
}

// NewMemory creates a memory of DefaultMemorySize bytes.
func NewMemory() *Memory {
	return NewMemoryWithSize(DefaultMemorySize)
}

// NewMemoryWithSize creates a memory of the given capacity.
func NewMemoryWithSize(size uint64) *Memory {
	return &Memory{data: make([]byte, size)}
}

// Size returns the capacity in bytes.
func (m *Memory) Size() uint64 {
	return uint64(len(m.data))
}

// InBounds reports whether an 8-byte access at addr fits in memory,
// i.e. addr <= capacity - 8.
func (m *Memory) InBounds(addr uint64) bool {
	return WordInBounds(m.Size(), addr)
}

// WordInBounds reports whether an 8-byte access at addr fits in a store of
// the given capacity.
func WordInBounds(size, addr uint64) bool {
	return size >= WordSize && addr <= size-WordSize
}

// Read64 reads a little-endian quad word.
func (m *Memory) Read64(addr uint64) uint64 {
	return binary.LittleEndian.Uint64(m.data[addr : addr+WordSize])
}

// Write64 writes a little-endian quad word.
func (m *Memory) Write64(addr, value uint64) {
	binary.LittleEndian.PutUint64(m.data[addr:addr+WordSize], value)
}

// Read8 reads a single byte.
func (m *Memory) Read8(addr uint64) uint8 {
	return m.data[addr]
}

// Write8 writes a single byte.
func (m *Memory) Write8(addr uint64, value uint8) {
	m.data[addr] = value
}

// LoadProgram copies an image into memory starting at addr.
func (m *Memory) LoadProgram(addr uint64, image []byte) error {
	if addr > m.Size() || uint64(len(image)) > m.Size()-addr {
		return fmt.Errorf("image of %d bytes at 0x%x exceeds memory size 0x%x",
			len(image), addr, m.Size())
	}
	copy(m.data[addr:], image)
	return nil
}

// Reset zeroes the whole memory.
func (m *Memory) Reset() {
	clear(m.data)
}
