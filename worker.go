package loom

import "time"

// parkEvent is the per-worker parking primitive named in the data model
// (Scheduler.events[]). Each worker owns exactly one, reused for the
// lifetime of the runtime. The scheduler's waiter_stack holds worker
// indices (not the events themselves), so an event being signalled twice
// in a row — harmless, since parks tolerate spurious wakeups per §4.2 —
// never risks corrupting a shared intrusive link the way reusing a single
// `next` field across repeated, possibly-overlapping parks would.
type parkEvent struct {
	wake chan struct{}
}

func newParkEvent() *parkEvent {
	return &parkEvent{wake: make(chan struct{}, 1)}
}

// signal wakes this event's worker if it is parked; otherwise it leaves a
// pending wake so the next park call returns immediately instead of
// sleeping. This is what rules out the lost-wakeup window described in
// §4.2: signal is always called under the scheduler lock after publishing
// work, and park always re-checks the shared stack under the same lock
// before actually sleeping, so a signal can never arrive in the gap
// between "no work found" and "about to sleep".
func (e *parkEvent) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *parkEvent) wait(timeoutMs int) {
	if timeoutMs < 0 {
		<-e.wake
		return
	}
	if timeoutMs == 0 {
		select {
		case <-e.wake:
		default:
		}
		return
	}
	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-e.wake:
	case <-timer.C:
	}
}

// Worker is one OS-thread-backed loop in the runtime. Its work_stack and
// handler are private to the goroutine driving it and require no
// synchronisation, per §5.
type Worker struct {
	index     int
	scheduler *Scheduler

	workStack    Work
	workStackLen int // length of workStack; kept incrementally, never recomputed
	handler      Handler

	mcs   mcsNode
	event *parkEvent

	trampolineDepth int
}

// run drives the worker's trampoline loop until the scheduler signals
// shutdown. It implements §4.1 exactly: drain local work LIFO, then enter
// the scheduler to either steal a share of the overflow stack, run the
// idle handler, or park.
func (w *Worker) run() {
	for {
		w.drainLocal()

		if w.scheduler.isShuttingDown() {
			w.scheduler.signalOnePeer()
			return
		}

		if !w.enterScheduler() {
			w.scheduler.signalOnePeer()
			return
		}
	}
}

// drainLocal repeatedly pops and runs the top of the local stack, re-
// reading work_stack after every call since doWork may have pushed more.
func (w *Worker) drainLocal() {
	for w.workStack != nil {
		item := w.workStack
		w.workStack = item.getNext()
		w.workStackLen--

		if h, ok := item.(Handler); ok {
			prev := w.handler
			w.handler = h
			catchPanics(w, item)
			w.handler = prev
		} else {
			catchPanics(w, item)
		}
	}
}

// enterScheduler implements steps 2-4 of §4.1: acquire the scheduler
// lock, try to steal a share of the overflow stack, otherwise try the
// idle handler, otherwise park. Returns false if the scheduler wants this
// worker to exit.
func (w *Worker) enterScheduler() bool {
	for {
		w.scheduler.lock.lock(&w.mcs)

		if w.scheduler.isShuttingDown() {
			w.scheduler.lock.unlock(&w.mcs)
			return false
		}

		if stolen, n := w.scheduler.trySteal(); stolen != nil {
			if w.scheduler.numWorkStack > 0 {
				w.scheduler.signalOneLocked()
			}
			w.scheduler.lock.unlock(&w.mcs)
			w.scheduler.emit(Event{Type: EventSteal, Data: n})
			w.workStack = stolen
			w.workStackLen = n
			return true
		}

		w.scheduler.lock.unlock(&w.mcs)

		timeoutMs := w.scheduler.runIdleHandler(w)
		if timeoutMs == 0 {
			continue
		}

		w.scheduler.lock.lock(&w.mcs)
		if w.scheduler.isShuttingDown() {
			w.scheduler.lock.unlock(&w.mcs)
			return false
		}
		if stolen, n := w.scheduler.trySteal(); stolen != nil {
			w.scheduler.lock.unlock(&w.mcs)
			w.scheduler.emit(Event{Type: EventSteal, Data: n})
			w.workStack = stolen
			w.workStackLen = n
			return true
		}

		w.scheduler.waiterStack = append(w.scheduler.waiterStack, w.index)
		w.scheduler.lock.unlock(&w.mcs)

		w.scheduler.emit(Event{Type: EventWorkerParked, Data: w.index})
		w.event.wait(timeoutMs)
		w.scheduler.emit(Event{Type: EventWorkerWoke, Data: w.index})

		return true
	}
}
