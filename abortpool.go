package loom

import "github.com/cognusion/semaphore"

// abortPool bounds how many wrap_abort cleanup jobs may run concurrently.
// A losing wrap_abort branch's job does real work (releasing a resource,
// closing a connection), mirroring the teacher's Supervisor/NewWorker split
// between dispatch and execution; the semaphore caps how many such cleanups
// are in flight at once. It does not bound goroutines: every spawn starts
// one, which waits for a free slot.
type abortPool struct {
	sem semaphore.Semaphore
}

func newAbortPool(n int) *abortPool {
	if n <= 0 {
		n = 1
	}
	return &abortPool{sem: semaphore.NewSemaphore(n)}
}

// spawn starts a goroutine that waits for a free slot, runs job to
// completion through Run (so the job itself executes on the scheduler's
// workers), then releases the slot. It never blocks the caller (the worker firing a
// loser callback), matching doHandle/doWork's "must not block" rule.
func (p *abortPool) spawn(s *Scheduler, job Job[Unit]) {
	go func() {
		<-p.sem.Until()
		defer p.sem.Unlock()
		_, _ = Run(s, job)
	}()
}
