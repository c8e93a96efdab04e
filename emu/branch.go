// Package emu provides functional Y86-64 emulation.
package emu

import "github.com/sarchlab/y86sim/insts"

// Holds evaluates condition cond against the flags. ok is false for a
// condition outside 0..6.
func (cc CC) Holds(cond uint8) (holds bool, ok bool) {
	lt := cc.SF != cc.OF

	switch cond {
	case insts.CondAlways:
		return true, true
	case insts.CondLE:
		return cc.ZF || lt, true
	case insts.CondL:
		return !cc.ZF && lt, true
	case insts.CondE:
		return cc.ZF, true
	case insts.CondNE:
		return !cc.ZF, true
	case insts.CondGE:
		return cc.ZF || !lt, true
	case insts.CondG:
		return !cc.ZF && !lt, true
	default:
		return false, false
	}
}
