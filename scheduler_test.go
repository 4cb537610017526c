package loom

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	. "github.com/smartystreets/goconvey/convey"
)

func Test_SchedulerShutdownReclaimsWorkers(t *testing.T) {
	defer leaktest.Check(t)()

	Convey("Shutdown waits for every worker goroutine to exit", t, func() {
		s := NewScheduler(WithWorkerCount(3))
		stats := s.Stats()
		So(stats.WorkerCount, ShouldEqual, 3)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		So(s.Shutdown(ctx), ShouldBeNil)
	})
}

func Test_SpawnWakesAParkedWorker(t *testing.T) {
	defer leaktest.Check(t)()

	s := NewScheduler(WithWorkerCount(1), WithIdleParkTimeoutMillis(5))
	defer shutdownNow(t, s)

	Convey("Work spawned while every worker is parked still runs promptly", t, func() {
		time.Sleep(20 * time.Millisecond) // let the lone worker park

		done := make(chan struct{})
		Spawn(s, Ignore(FromFunc(func(*Worker) (int, error) {
			close(done)
			return 0, nil
		})))

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("spawned work never ran on a parked worker")
		}
	})
}

func Test_StealingMovesWorkOffTheOverflowStack(t *testing.T) {
	defer leaktest.Check(t)()

	s := NewScheduler(WithWorkerCount(4))
	defer shutdownNow(t, s)

	Convey("a burst of spawned jobs all eventually run", t, func() {
		const n = 200
		done := make(chan struct{}, n)
		for i := 0; i < n; i++ {
			Spawn(s, Ignore(FromFunc(func(*Worker) (int, error) {
				done <- struct{}{}
				return 0, nil
			})))
		}

		deadline := time.After(2 * time.Second)
		for i := 0; i < n; i++ {
			select {
			case <-done:
			case <-deadline:
				t.Fatalf("only %d/%d spawned jobs completed", i, n)
			}
		}
	})
}
