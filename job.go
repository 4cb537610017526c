package loom

// Unit is the idiomatic "no useful value" result type, used where the
// reference design writes unit — e.g. the result of a give, or a job run
// purely for its side effect.
type Unit struct{}

// Job is a description of how to produce a T; it does nothing on its own.
// Running it requires a Worker (supplied by the scheduler) and a
// Continuation (the caller's "what happens next"). This mirrors the
// reference design precisely: Job is data, not a running computation.
type Job[T any] interface {
	// doJob runs this job's logic on w, eventually resuming k with a
	// produced value (doCont) or an exception (doHandle). Like Work,
	// doJob must not block the calling goroutine.
	doJob(w *Worker, k Continuation[T])
}

// jobFunc adapts a plain function into a Job[T], for jobs whose body is an
// ordinary (non-suspending) computation.
type jobFunc[T any] struct {
	fn func(w *Worker) (T, error)
}

func (j jobFunc[T]) doJob(w *Worker, k Continuation[T]) {
	v, err := j.fn(w)
	if err != nil {
		k.doHandle(w, err)
		return
	}
	k.doCont(w, v)
}

// FromFunc builds a Job[T] from a plain function. The function runs
// synchronously to completion on whichever worker ends up executing the
// job; it must not itself block the OS thread (use a channel op or Sync
// for anything that needs to suspend).
func FromFunc[T any](fn func(w *Worker) (T, error)) Job[T] {
	return jobFunc[T]{fn: fn}
}

// Return builds a Job[T] that always succeeds immediately with v, doing no
// other work. Equivalent to FromFunc(func(*Worker) (T, error) { return v,
// nil }) but named for the common case (the monadic "return"/"unit" of the
// job algebra).
func Return[T any](v T) Job[T] {
	return jobFunc[T]{fn: func(*Worker) (T, error) { return v, nil }}
}

// Fail builds a Job[T] that always fails immediately with exn.
func Fail[T any](exn error) Job[T] {
	return jobFunc[T]{fn: func(*Worker) (T, error) {
		var zero T
		return zero, exn
	}}
}

// jobIgnore adapts a Job[T] into a Job[Unit] by forwarding its eventual
// continuation rather than blocking for a result, so it composes correctly
// even when j itself suspends (e.g. performs a channel op internally).
type jobIgnore[T any] struct{ j Job[T] }

func (ji jobIgnore[T]) doJob(w *Worker, k Continuation[Unit]) {
	ji.j.doJob(w, newCont(
		func(worker *Worker, _ T) { k.doCont(worker, Unit{}) },
		func(worker *Worker, exn error) { k.doHandle(worker, exn) },
	))
}

// Ignore adapts a Job[T] into a Job[Unit] that discards its result, the
// natural shape for handing a Job[T] to Spawn (which only ever runs
// fire-and-forget jobs).
func Ignore[T any](j Job[T]) Job[Unit] {
	return jobIgnore[T]{j: j}
}

// jobMap adapts a Job[T] into a Job[U] by post-processing its eventual
// result with f, forwarding j's failure unchanged.
type jobMap[T, U any] struct {
	j Job[T]
	f func(T) U
}

func (jm jobMap[T, U]) doJob(w *Worker, k Continuation[U]) {
	jm.j.doJob(w, newCont(
		func(worker *Worker, v T) { k.doCont(worker, jm.f(v)) },
		func(worker *Worker, exn error) { k.doHandle(worker, exn) },
	))
}

// Map builds a Job[U] that runs j and post-processes its result with f
// once produced, the job-level analog of Wrap for Alt.
func Map[T, U any](j Job[T], f func(T) U) Job[U] {
	return jobMap[T, U]{j: j, f: f}
}

// Spawn enqueues job for eventual execution on some worker and returns
// immediately; the calling goroutine is not blocked. job's result (if any)
// is discarded — use Run from outside the runtime, or compose with a
// channel if the result must be observed. Spawn is safe to call from any
// goroutine, including ones that are not themselves runtime workers,
// since it publishes through the shared scheduler stack rather than
// touching any worker's private local stack.
func Spawn(s *Scheduler, job Job[Unit]) {
	s.offerSingle(workFunc(func(worker *Worker) {
		job.doJob(worker, newCont(
			func(*Worker, Unit) {},
			func(w *Worker, exn error) { deliverTopLevel(w, exn) },
		))
	}))
}

// SpawnOn enqueues job onto worker's own local stack, for use from inside
// a job body that already has a *Worker in hand and wants the new job to
// stay local (cheaper than Spawn's shared-stack publish, at the cost of
// only being legal from within the runtime).
func SpawnOn(worker *Worker, job Job[Unit]) {
	push(worker, workFunc(func(w *Worker) {
		job.doJob(w, newCont(
			func(*Worker, Unit) {},
			func(w *Worker, exn error) { deliverTopLevel(w, exn) },
		))
	}))
}

// Run hands job to the scheduler's workers and blocks the calling goroutine
// until a value or error is produced. The job does not run on the calling
// goroutine; it runs on a worker goroutine. This is the only supported entry
// point from a goroutine that is not itself a runtime Worker — e.g. an
// external caller's main goroutine or an http handler.
func Run[T any](s *Scheduler, job Job[T]) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	s.offerSingle(workFunc(func(worker *Worker) {
		job.doJob(worker, newCont(
			func(_ *Worker, v T) { done <- result{v: v} },
			func(_ *Worker, exn error) { done <- result{err: exn} },
		))
	}))

	r := <-done
	return r.v, r.err
}
