package pipeline

import "fmt"

// EventKind classifies pipeline events.
type EventKind uint8

// Event kinds.
const (
	// EventCycle is emitted at the end of every cycle with a latch summary.
	EventCycle EventKind = iota
	EventFetch
	EventStall
	EventReturnWait
	EventSquash
	EventRegWrite
	EventMemWrite
	EventRetire
	EventHalt
	EventFault
)

var eventKindNames = [...]string{
	"cycle", "fetch", "stall", "return-wait", "squash",
	"reg-write", "mem-write", "retire", "halt", "fault",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// Event is something observable that happened during a cycle.
type Event struct {
	Cycle uint64
	Kind  EventKind
	Stage StageID

	// PC and Inst describe the instruction involved, if any.
	PC   uint64
	Inst string

	// Reg is set for EventRegWrite, Addr for EventMemWrite and EventSquash
	// (the redirect target). Value is the datum written.
	Reg   uint8
	Addr  uint64
	Value uint64

	// Status is set for EventHalt and EventFault.
	Status Status

	// Latches is set for EventCycle, in stage order.
	Latches []string
}

// EventSink receives pipeline events. Handle is called synchronously from
// Step.
type EventSink interface {
	Handle(ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev Event)

// Handle calls f(ev).
func (f EventSinkFunc) Handle(ev Event) {
	f(ev)
}
