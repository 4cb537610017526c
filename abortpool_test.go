package loom

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	. "github.com/smartystreets/goconvey/convey"
)

func Test_AbortPoolBoundsConcurrency(t *testing.T) {
	defer leaktest.Check(t)()

	s := NewScheduler(WithWorkerCount(4), WithAbortPoolSize(2))
	defer shutdownNow(t, s)

	Convey("no more abort jobs run at once than the configured pool size", t, func() {
		const total = 8
		var inFlight, maxSeen, done atomic.Int64

		for i := 0; i < total; i++ {
			s.abortPool.spawn(s, FromFunc(func(*Worker) (Unit, error) {
				n := inFlight.Add(1)
				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				inFlight.Add(-1)
				done.Add(1)
				return Unit{}, nil
			}))
		}

		deadline := time.After(2 * time.Second)
		for done.Load() < total {
			select {
			case <-deadline:
				t.Fatal("abort jobs never finished")
			case <-time.After(10 * time.Millisecond):
			}
		}
		So(maxSeen.Load(), ShouldBeLessThanOrEqualTo, int64(2))
	})
}
