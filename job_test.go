package loom

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	. "github.com/smartystreets/goconvey/convey"
)

func shutdownNow(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func Test_RunReturnsValue(t *testing.T) {
	defer leaktest.Check(t)()
	s := NewScheduler(WithWorkerCount(2))
	defer shutdownNow(t, s)

	Convey("Run resolves a synchronous job's value", t, func() {
		v, err := Run(s, Return(42))
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 42)
	})
}

func Test_RunPropagatesFailure(t *testing.T) {
	defer leaktest.Check(t)()
	s := NewScheduler(WithWorkerCount(2))
	defer shutdownNow(t, s)

	Convey("Run surfaces a job's failure as an error", t, func() {
		boom := errors.New("boom")
		_, err := Run(s, Fail[int](boom))
		So(err, ShouldEqual, boom)
	})
}

func Test_MapTransformsAJobsResult(t *testing.T) {
	defer leaktest.Check(t)()
	s := NewScheduler(WithWorkerCount(2))
	defer shutdownNow(t, s)

	Convey("Map post-processes a successful result", t, func() {
		v, err := Run(s, Map(Return(3), func(n int) string { return strings.Repeat("x", n) }))
		So(err, ShouldBeNil)
		So(v, ShouldEqual, "xxx")
	})

	Convey("Map forwards a failure unchanged", t, func() {
		boom := errors.New("boom")
		_, err := Run(s, Map(Fail[int](boom), func(n int) string { return "unused" }))
		So(err, ShouldEqual, boom)
	})
}

func Test_SpawnRunsFireAndForget(t *testing.T) {
	defer leaktest.Check(t)()
	s := NewScheduler(WithWorkerCount(2))
	defer shutdownNow(t, s)

	Convey("Spawn executes a Job[Unit] without blocking the caller", t, func() {
		var ran atomic.Bool
		done := make(chan struct{})
		Spawn(s, Ignore(FromFunc(func(*Worker) (int, error) {
			ran.Store(true)
			close(done)
			return 0, nil
		})))

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("spawned job never ran")
		}
		So(ran.Load(), ShouldBeTrue)
	})
}

func Test_UnhandledErrorReachesTopLevelHandler(t *testing.T) {
	defer leaktest.Check(t)()

	var caught atomic.Value
	done := make(chan struct{})
	s := NewScheduler(WithWorkerCount(1), WithTopLevelHandler(func(err error) {
		caught.Store(err)
		close(done)
	}))
	defer shutdownNow(t, s)

	Convey("A panic inside a Job's body reaches the top-level handler", t, func() {
		Spawn(s, Ignore(FromFunc(func(*Worker) (int, error) {
			panic("kaboom")
		})))

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("top-level handler never ran")
		}
		err, _ := caught.Load().(error)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "kaboom")
	})
}
