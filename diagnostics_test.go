package loom

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	. "github.com/smartystreets/goconvey/convey"
)

func Test_EventSinkReceivesWorkerParkEvents(t *testing.T) {
	defer leaktest.Check(t)()

	events := make(chan Event, 64)
	logger := EventLogger(log.New(io.Discard, "", 0))

	s := NewScheduler(WithWorkerCount(1), WithIdleParkTimeoutMillis(5), WithEventSink(func(e Event) {
		logger(e)
		select {
		case events <- e:
		default:
		}
	}))
	defer shutdownNow(t, s)

	Convey("worker park events are emitted once the lone worker runs dry", t, func() {
		var sawParked bool
		deadline := time.After(time.Second)
	loop:
		for {
			select {
			case e := <-events:
				if e.Type == EventWorkerParked {
					sawParked = true
					break loop
				}
			case <-deadline:
				break loop
			}
		}
		So(sawParked, ShouldBeTrue)
	})
}

func Test_EventTypeStringsAreStable(t *testing.T) {
	Convey("every known EventType has a non-empty name", t, func() {
		for _, et := range []EventType{
			EventWorkerParked, EventWorkerWoke, EventSteal,
			EventPickCommitted, EventNackFired, EventUnhandledError,
		} {
			So(et.String(), ShouldNotBeEmpty)
		}
		So(EventType(-1).String(), ShouldBeEmpty)
	})
}
