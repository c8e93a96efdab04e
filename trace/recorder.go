package trace

import (
	"sync"

	"github.com/sarchlab/y86sim/timing/pipeline"
)

// Recorder keeps events in memory. A Recorder with no kinds keeps every
// event.
type Recorder struct {
	mu     sync.Mutex
	kinds  map[pipeline.EventKind]bool
	events []pipeline.Event
}

// NewRecorder returns a Recorder that keeps only the given kinds.
func NewRecorder(kinds ...pipeline.EventKind) *Recorder {
	r := &Recorder{}
	if len(kinds) > 0 {
		r.kinds = make(map[pipeline.EventKind]bool, len(kinds))
		for _, k := range kinds {
			r.kinds[k] = true
		}
	}
	return r
}

// Handle records ev.
func (r *Recorder) Handle(ev pipeline.Event) {
	if r.kinds != nil && !r.kinds[ev.Kind] {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []pipeline.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]pipeline.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind pipeline.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
