package loom

// Continuation is a Work that can additionally be resumed with a produced
// value, or handed an exception to route through the handler chain. It is
// single-shot: once doCont or doHandle has run, the continuation must not
// be invoked again (nothing in this package clones a Continuation on a
// caller's behalf).
type Continuation[T any] interface {
	Work

	// doCont resumes this continuation with a successfully produced value.
	doCont(w *Worker, value T)

	// doHandle delivers an exception to this continuation's attention
	// instead of a value, per the handler-attribution rules of §4.3/§4.6.
	doHandle(w *Worker, exn error)
}

// contFunc adapts two plain functions into a Continuation[T], the common
// case for continuations built up inside the pick/commit protocol and by
// combinators such as wrap and guard. It is never pushed onto a work stack
// directly (see resumption[T] below for that) so its own doWork is unused.
type contFunc[T any] struct {
	workLink
	cont func(w *Worker, v T)
	fail func(w *Worker, exn error)
}

func (c *contFunc[T]) doWork(*Worker) {}

func (c *contFunc[T]) doCont(w *Worker, v T) { c.cont(w, v) }

func (c *contFunc[T]) doHandle(w *Worker, exn error) {
	if c.fail != nil {
		c.fail(w, exn)
		return
	}
	failToHandler(w, exn)
}

// newCont builds a Continuation[T] from plain success/failure callbacks. If
// onFail is nil, an exception is routed to the worker's current handler
// (the default per §4.6).
func newCont[T any](onValue func(w *Worker, v T), onFail func(w *Worker, exn error)) Continuation[T] {
	return &contFunc[T]{cont: onValue, fail: onFail}
}

// resumption is the Work pushed to actually run a continuation with a
// value it's been resumed with. It also implements Handler by forwarding
// to the wrapped continuation, so the worker loop's handler-attribution
// (§4.3/§4.6) keeps working across the push/resume boundary exactly as it
// would if the continuation had been invoked directly.
type resumption[T any] struct {
	workLink
	cont  Continuation[T]
	value T
}

func (r *resumption[T]) doWork(w *Worker)             { r.cont.doCont(w, r.value) }
func (r *resumption[T]) doHandle(w *Worker, exn error) { r.cont.doHandle(w, exn) }

// resume schedules cont to run with value v as a fresh Work, pushed onto
// worker's local stack (tail-resumption rather than a direct recursive
// call), per the trampoline discipline of §4.1/§9.
func resume[T any](worker *Worker, cont Continuation[T], v T) {
	push(worker, &resumption[T]{cont: cont, value: v})
}

// resumeTrampoline invokes cont directly instead of pushing, when the
// worker's native stack still has headroom below stack_limit. Hot paths
// (an immediate channel rendezvous, a won pick) use this to avoid the
// allocation and scheduling round-trip of a push when it's safe to recurse
// one level deeper. Implementations without cheap stack-pointer inspection
// may always push-and-return; this one approximates via a worker-local
// trampoline depth counter, which is portable and branch-predictable.
// Exceptions are still caught and attributed exactly as the pushed path
// would (see protect in handler.go).
func resumeTrampoline[T any](worker *Worker, cont Continuation[T], v T) {
	if worker.trampolineDepth < worker.scheduler.config.trampolineDepthLimit {
		worker.trampolineDepth++
		prev := worker.handler
		worker.handler = cont
		protect(worker, func() { cont.doCont(worker, v) })
		worker.handler = prev
		worker.trampolineDepth--
		return
	}
	resume(worker, cont, v)
}
