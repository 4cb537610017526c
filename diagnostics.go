// Diagnostics adapts the teacher's Progress/ProgressLogger shape: a typed
// event tuple pumped through a channel-like sink and drained by a logger
// that knows how to format each type. Here it reports runtime lifecycle
// events instead of job progress, since §1 treats logging as an external
// collaborator for the public surface but the runtime itself still needs
// the teacher's own observability idiom for its own internals (worker
// park/wake, job failure, pick commit, nack fire).
package loom

import (
	"fmt"
	"log"

	"github.com/spf13/cast"
)

// EventType identifies the shape of an Event's Data.
type EventType int

const (
	// EventWorkerParked fires when a worker finds no work anywhere and
	// parks on its event; Data is the worker's index.
	EventWorkerParked EventType = iota
	// EventWorkerWoke fires when a parked worker is signalled or its
	// park timeout elapses; Data is the worker's index.
	EventWorkerWoke
	// EventSteal fires when a worker steals a suffix of the shared
	// stack; Data is the number of items stolen.
	EventSteal
	// EventPickCommitted fires when a Pick transitions to Picked; Data
	// is the winning branch id.
	EventPickCommitted
	// EventNackFired fires when a with_nack alternative becomes
	// available because its enclosing pick committed elsewhere; Data is
	// not set (nil), so the event does not identify the branch.
	EventNackFired
	// EventUnhandledError fires when an exception reaches the
	// scheduler's top-level handler; Data is the error.
	EventUnhandledError
)

func (t EventType) String() string {
	switch t {
	case EventWorkerParked:
		return "EventWorkerParked"
	case EventWorkerWoke:
		return "EventWorkerWoke"
	case EventSteal:
		return "EventSteal"
	case EventPickCommitted:
		return "EventPickCommitted"
	case EventNackFired:
		return "EventNackFired"
	case EventUnhandledError:
		return "EventUnhandledError"
	default:
		return ""
	}
}

// Event is a tuple of an EventType and loosely-typed Data, mirroring the
// teacher's Progress{Type, Data}.
type Event struct {
	Type EventType
	Data any
}

// String formats the event, coercing Data through cast the same way the
// teacher's Progress formats its own Data field.
func (e Event) String() string {
	switch e.Type {
	case EventUnhandledError:
		return fmt.Sprintf("%s: %v", e.Type, e.Data)
	default:
		return fmt.Sprintf("%s: %s", e.Type, cast.ToString(e.Data))
	}
}

// EventSink receives runtime diagnostic events. Scheduler.emit is a no-op
// when no sink is configured, so diagnostics cost nothing on the hot path
// by default.
type EventSink func(Event)

// EventLogger returns an EventSink that writes every event to out, in the
// same spirit as the teacher's ProgressLogger: a drop-in consumer for
// whoever wants runtime visibility without having to understand Event's
// internals.
func EventLogger(out *log.Logger) EventSink {
	return func(e Event) {
		out.Printf("[loom] %s\n", e)
	}
}

func (s *Scheduler) emit(e Event) {
	if s.config.eventSink != nil {
		s.config.eventSink(e)
	}
}

func formatAny(v any) string {
	return cast.ToString(v)
}
