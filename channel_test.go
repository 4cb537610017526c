package loom

import (
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	. "github.com/smartystreets/goconvey/convey"
)

func Test_ChannelRendezvous(t *testing.T) {
	defer leaktest.Check(t)()
	s := NewScheduler(WithWorkerCount(4))
	defer shutdownNow(t, s)

	Convey("A give and a take on the same channel rendezvous exactly once", t, func() {
		ch := NewChannel[string]()
		result := make(chan string, 1)

		go func() {
			v, err := Run(s, Sync(Take(ch)))
			if err == nil {
				result <- v
			}
		}()

		time.Sleep(20 * time.Millisecond) // let the take enqueue first
		_, err := Run(s, Sync(Give(ch, "hello")))
		So(err, ShouldBeNil)

		select {
		case v := <-result:
			So(v, ShouldEqual, "hello")
		case <-time.After(time.Second):
			t.Fatal("take never completed")
		}
	})
}

func Test_ChooseCommitsAtMostOnce(t *testing.T) {
	defer leaktest.Check(t)()
	s := NewScheduler(WithWorkerCount(4))
	defer shutdownNow(t, s)

	Convey("Racing two takers against one give resolves exactly one pair; the other times out", t, func() {
		ch := NewChannel[int]()
		const timeout = 200 * time.Millisecond

		results := make(chan int, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		for i := 0; i < 2; i++ {
			go func() {
				defer wg.Done()
				v, err := Run(s, Sync(Choose(Take(ch), After(timeout, -1))))
				if err == nil {
					results <- v
				}
			}()
		}

		time.Sleep(20 * time.Millisecond) // let both takers register first
		_, err := Run(s, Sync(Give(ch, 99)))
		So(err, ShouldBeNil)

		wg.Wait()
		close(results)

		got := map[int]int{}
		for v := range results {
			got[v]++
		}
		So(got[99], ShouldEqual, 1)
		So(got[-1], ShouldEqual, 1)
	})
}

func Test_GiveWaitsForATaker(t *testing.T) {
	defer leaktest.Check(t)()
	s := NewScheduler(WithWorkerCount(2))
	defer shutdownNow(t, s)

	Convey("Give completes with Unit once a counterpart takes the value", t, func() {
		ch := NewChannel[int]()

		go func() {
			time.Sleep(20 * time.Millisecond)
			_, _ = Run(s, Sync(Take(ch)))
		}()

		_, err := Run(s, Sync(Give(ch, 5)))
		So(err, ShouldBeNil)
	})
}
