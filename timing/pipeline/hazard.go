package pipeline

import "github.com/sarchlab/y86sim/insts"

// LockTable marks the registers that have a write in flight.
type LockTable [insts.NumRegs]bool

// Locked reports whether reg has a pending write. RegNone is never locked.
func (t LockTable) Locked(reg uint8) bool {
	return reg < insts.NumRegs && t[reg]
}

// Lock marks reg as having a pending write.
func (t *LockTable) Lock(reg uint8) {
	if reg < insts.NumRegs {
		t[reg] = true
	}
}

// Unlock clears the pending write on reg.
func (t *LockTable) Unlock(reg uint8) {
	if reg < insts.NumRegs {
		t[reg] = false
	}
}

// Count returns the number of locked registers.
func (t LockTable) Count() int {
	n := 0
	for _, locked := range t {
		if locked {
			n++
		}
	}
	return n
}

// HazardUnit decides decode stalls from the register lock table.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// MustStall reports whether the instruction in l has to wait in Decode.
// It does when a source register is locked, or when a destination is still
// locked by an older instruction.
func (h *HazardUnit) MustStall(locks *LockTable, l *Latch) bool {
	if l.Bubble {
		return false
	}
	info := l.Info()
	for _, sel := range [...]insts.RegSel{info.SrcA, info.SrcB, info.DstE, info.DstM} {
		if locks.Locked(sel.Resolve(l.RegA, l.RegB)) {
			return true
		}
	}
	return false
}

// Acquire locks every destination of l.
func (h *HazardUnit) Acquire(locks *LockTable, l *Latch) {
	dstE, dstM := l.Destinations()
	locks.Lock(dstE)
	locks.Lock(dstM)
}

// Release unlocks every destination of l.
func (h *HazardUnit) Release(locks *LockTable, l *Latch) {
	dstE, dstM := l.Destinations()
	locks.Unlock(dstE)
	locks.Unlock(dstM)
}
