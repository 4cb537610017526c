package loom

import (
	"context"
	"sync"
	"sync/atomic"
)

// Scheduler is the process-wide (or, if multiple are constructed,
// instance-wide) coordinator: the shared overflow work stack, the worker
// registry, the parking events, and the optional idle handler all live
// here, per the data model.
type Scheduler struct {
	config config

	lock         mcsLock
	workStack    Work // shared overflow stack; protected by lock
	numWorkStack int  // protected by lock
	waiterStack  []int // parked worker indices, LIFO; protected by lock

	sharedEmptyFlag atomic.Bool // cheap hint for the push() heuristic

	workers      []*Worker
	shuttingDown atomic.Bool
	wg           sync.WaitGroup

	abortPool *abortPool
}

// NewScheduler constructs a Scheduler and starts its worker goroutines
// immediately — there is no separate Start step, matching the teacher's
// Supervisor (which spins up its goroutines inline rather than exposing a
// two-phase construct/start API).
func NewScheduler(opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.abortPoolSize == 0 {
		cfg.abortPoolSize = 4 * cfg.workerCount
	}

	s := &Scheduler{config: cfg}
	s.sharedEmptyFlag.Store(true)
	s.abortPool = newAbortPool(cfg.abortPoolSize)

	s.workers = make([]*Worker, cfg.workerCount)
	for i := range s.workers {
		s.workers[i] = &Worker{index: i, scheduler: s, event: newParkEvent()}
	}

	s.wg.Add(cfg.workerCount)
	for _, w := range s.workers {
		w := w
		go func() {
			defer s.wg.Done()
			w.run()
		}()
	}

	return s
}

// sharedIsEmpty is a cheap, lock-free hint used only by the push()
// heuristic (§4.1): it never needs to be perfectly linearizable with the
// lock-protected state, since worst case it just causes one extra
// conservative (or missed) handoff to the shared stack, not a correctness
// violation.
func (s *Scheduler) sharedIsEmpty() bool {
	return s.sharedEmptyFlag.Load()
}

// offerSingle publishes a single Work item to the shared stack from a
// caller with no Worker context of its own (Spawn, Run), and signals one
// parked worker if any is waiting.
func (s *Scheduler) offerSingle(work Work) {
	var node mcsNode
	s.lock.lock(&node)
	work.setNext(s.workStack)
	s.workStack = work
	s.numWorkStack++
	s.sharedEmptyFlag.Store(false)
	s.signalOneLocked()
	s.lock.unlock(&node)
}

// offerSharedFromWorker publishes an entire intrusive list (a worker's
// former local stack, handed off by the push() heuristic) to the shared
// stack, reusing the calling worker's own MCS node rather than allocating
// one. count is the caller's already-known length of list (Worker tracks
// it incrementally as it pushes/pops its own local stack), so this never
// needs to walk the list to count it. Finding list's tail to splice onto
// s.workStack is unavoidable for a singly-linked stack, but that walk only
// touches the worker-private list — nothing else can observe it before the
// handoff — so it happens before the lock is taken, keeping the critical
// section O(1) as §4.2 requires for the non-stealing path.
func (s *Scheduler) offerSharedFromWorker(worker *Worker, list Work, count int) {
	tail := list
	for tail.getNext() != nil {
		tail = tail.getNext()
	}

	s.lock.lock(&worker.mcs)

	tail.setNext(s.workStack)
	s.workStack = list
	s.numWorkStack += count
	s.sharedEmptyFlag.Store(false)
	s.signalOneLocked()

	s.lock.unlock(&worker.mcs)
}

// trySteal implements §4.1 step 3: unlink roughly 75% of the shared stack
// (the older items, found by walking 25% of the list from the head and
// cutting there) and hand it to the caller, leaving the newer 25% for
// other stealers. Must be called with s.lock held. Returns the stolen
// list and how many items it contains (0, nil if the shared stack was
// empty).
func (s *Scheduler) trySteal() (Work, int) {
	if s.workStack == nil {
		return nil, 0
	}

	n := s.numWorkStack >> 2
	if n == 0 {
		stolen := s.workStack
		count := s.numWorkStack
		s.workStack = nil
		s.numWorkStack = 0
		s.sharedEmptyFlag.Store(true)
		return stolen, count
	}

	cur := s.workStack
	for i := 0; i < n-1; i++ {
		cur = cur.getNext()
	}
	stolen := cur.getNext()
	cur.setNext(nil)

	stolenCount := s.numWorkStack - n
	s.numWorkStack = n
	return stolen, stolenCount
}

// signalOneLocked pops one parked worker index and wakes it. Must be
// called with s.lock held; this is what makes the lost-wakeup property of
// §4.2/§8 hold — publication and signalling happen under the same lock a
// parking worker re-checks before it actually sleeps.
func (s *Scheduler) signalOneLocked() {
	n := len(s.waiterStack)
	if n == 0 {
		return
	}
	idx := s.waiterStack[n-1]
	s.waiterStack = s.waiterStack[:n-1]
	s.workers[idx].event.signal()
}

// signalOnePeer wakes one parked worker, used during the shutdown cascade
// of §4.3 (each exiting worker signals one other before leaving, so a
// chain of parked workers unwinds without every one of them needing to be
// woken by the scheduler directly).
func (s *Scheduler) signalOnePeer() {
	var node mcsNode
	s.lock.lock(&node)
	s.signalOneLocked()
	s.lock.unlock(&node)
}

func (s *Scheduler) isShuttingDown() bool {
	return s.shuttingDown.Load()
}

// runIdleHandler runs the configured idle handler (if any) inline on w and
// returns the park timeout in milliseconds it yields. The idle handler Job
// must be synchronous (resolve its continuation before doJob returns);
// see WithIdleHandler. With no idle handler installed, a bounded default
// park timeout is used instead of an unbounded park — new work always
// wakes a parked worker via signalOneLocked, so this is a defensive
// safety net, not load-bearing for correctness.
func (s *Scheduler) runIdleHandler(w *Worker) int {
	job := s.config.idleHandler
	if job == nil {
		return s.config.parkTimeoutWhenNoIdle
	}

	result := s.config.parkTimeoutWhenNoIdle
	job.doJob(w, newCont(
		func(_ *Worker, v int) { result = v },
		func(worker *Worker, exn error) { deliverTopLevel(worker, exn) },
	))
	return result
}

// Stats is a point-in-time snapshot of scheduler load, for tests and
// diagnostics consumers to assert against.
type Stats struct {
	WorkerCount int
	ParkedCount int
	SharedDepth int
}

// Stats returns a snapshot of the scheduler's current load.
func (s *Scheduler) Stats() Stats {
	var node mcsNode
	s.lock.lock(&node)
	defer s.lock.unlock(&node)
	return Stats{
		WorkerCount: len(s.workers),
		ParkedCount: len(s.waiterStack),
		SharedDepth: s.numWorkStack,
	}
}

// Shutdown signals every worker to stop, waking any currently-parked
// worker, and waits for all of them to exit or ctx to be cancelled.
// Jobs still parked on channels at the time of shutdown are simply
// abandoned, per §7 — the channels holding them become unreachable and
// are collected along with them.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.shuttingDown.Store(true)

	var node mcsNode
	s.lock.lock(&node)
	for _, idx := range s.waiterStack {
		s.workers[idx].event.signal()
	}
	s.waiterStack = nil
	s.lock.unlock(&node)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
