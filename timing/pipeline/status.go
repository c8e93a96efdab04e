package pipeline

import (
	"errors"
	"fmt"
)

// Status is the result of a cycle.
type Status uint8

// Cycle results. Every fault is terminal.
const (
	Continue Status = iota
	Halted
	FaultInvalidOpcode
	FaultInvalidRegister
	FaultInvalidCondition
	FaultMemoryBounds
	FaultWriteback
)

var statusNames = [...]string{
	Continue:              "continue",
	Halted:                "halted",
	FaultInvalidOpcode:    "invalid opcode",
	FaultInvalidRegister:  "invalid register",
	FaultInvalidCondition: "invalid condition",
	FaultMemoryBounds:     "memory bounds",
	FaultWriteback:        "writeback error",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Code returns the process exit code for the status: 0 while running,
// 1 once halted, and -1 through -5 for the faults in declaration order.
func (s Status) Code() int {
	switch s {
	case Continue:
		return 0
	case Halted:
		return 1
	default:
		return -int(s - Halted)
	}
}

// IsFault reports whether s is one of the fault statuses.
func (s Status) IsFault() bool {
	return s >= FaultInvalidOpcode
}

// IsTerminal reports whether the pipeline has stopped.
func (s Status) IsTerminal() bool {
	return s != Continue
}

// Fault records where and when the simulation faulted.
type Fault struct {
	Status Status  `yaml:"status"`
	Stage  StageID `yaml:"stage"`
	Cycle  uint64  `yaml:"cycle"`
	PC     uint64  `yaml:"pc"`
	Detail string  `yaml:"detail,omitempty"`

	err error
}

// FaultError is the error form of a Fault.
type FaultError struct {
	Fault Fault
}

func (e *FaultError) Error() string {
	f := e.Fault
	msg := fmt.Sprintf("%s in %s stage at pc 0x%x (cycle %d)", f.Status, f.Stage, f.PC, f.Cycle)
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

// Unwrap returns the underlying decode or access error, if any.
func (e *FaultError) Unwrap() error {
	return e.Fault.err
}

// ErrCycleLimit is returned by Run when the cycle cap is reached.
var ErrCycleLimit = errors.New("cycle limit reached")

// RunState is the cycle driver's state after the most recent cycle.
type RunState uint8

// Driver states.
const (
	StateRunning RunState = iota
	StateStalled
	StateSquashing
	StateHalted
	StateFaulted
)

var runStateNames = [...]string{"running", "stalled", "squashing", "halted", "faulted"}

func (s RunState) String() string {
	if int(s) < len(runStateNames) {
		return runStateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
