package loom

import (
	"math"
	"sync/atomic"
	"time"
)

// Alt is a selective-communication event that may be combined with others
// and, once synced, commits to exactly one of its (transitively composed)
// base events: a give, a take, an always-ready value, a timeout, or never.
// register is the only operation: it either claims pk for one of its leaf
// branches and resumes kk immediately (returning true), or arranges for
// some future counterparty to do so and returns false. onLose, threaded
// down from any enclosing WithNack/WrapAbort, is attached to whichever
// leaf branch(es) this Alt ultimately registers, so cleanup still runs
// even through Choose/Wrap/Guard composition.
type Alt[T any] interface {
	register(pk *pick, worker *Worker, kk Continuation[T], onLose func()) bool
}

func combineOnLose(a, b func()) func() {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return func() { a(); b() }
	}
}

// Sync converts an Alt into the Job that actually performs the selective
// wait: a fresh Pick is created and alt registers against it once. Whether
// that registration commits immediately or only after some later
// rendezvous, the eventual result reaches k through the normal
// push/resume path — Sync's own doJob never blocks.
func Sync[T any](alt Alt[T]) Job[T] {
	return syncJob[T]{alt: alt}
}

type syncJob[T any] struct{ alt Alt[T] }

func (sj syncJob[T]) doJob(w *Worker, k Continuation[T]) {
	if w.scheduler.isShuttingDown() {
		k.doHandle(w, ErrSchedulerShutdown)
		return
	}
	pk := newPick()
	sj.alt.register(pk, w, k, nil)
}

// chooseAlt tries each alternative in left-to-right order, stopping as
// soon as one commits the pick — either because it won immediately, or
// because some other branch (ours or a concurrent counterparty's) already
// decided the pick while we were still registering. Per §4.5, at most one
// base event anywhere in the composed tree ever wins.
type chooseAlt[T any] struct{ alts []Alt[T] }

// Choose combines alternatives into one: syncing on it commits to exactly
// one of them (or, transitively, one of their own sub-alternatives).
func Choose[T any](alts ...Alt[T]) Alt[T] {
	return chooseAlt[T]{alts: alts}
}

func (c chooseAlt[T]) register(pk *pick, worker *Worker, kk Continuation[T], onLose func()) bool {
	if len(c.alts) == 0 {
		kk.doHandle(worker, ErrNoAlternatives)
		return true
	}
	for _, a := range c.alts {
		if _, decided := pk.winner(); decided {
			break
		}
		if a.register(pk, worker, kk, onLose) {
			return true
		}
	}
	return false
}

// wrapAlt transforms a successful result through f before handing it to
// the surrounding continuation. Failures pass through unchanged.
type wrapAlt[T, U any] struct {
	inner Alt[T]
	f     func(T) U
}

// Wrap builds an Alt that behaves like a, but post-processes its result
// with f once committed.
func Wrap[T, U any](a Alt[T], f func(T) U) Alt[U] {
	return wrapAlt[T, U]{inner: a, f: f}
}

func (w wrapAlt[T, U]) register(pk *pick, worker *Worker, kk Continuation[U], onLose func()) bool {
	return w.inner.register(pk, worker, newCont(
		func(wk *Worker, v T) { kk.doCont(wk, w.f(v)) },
		func(wk *Worker, exn error) { kk.doHandle(wk, exn) },
	), onLose)
}

// WrapAbort builds an Alt that behaves like a, but — if a's branch loses
// the pick — spawns abortJob (bounded by the scheduler's abort pool)
// instead of silently discarding whatever a had set up. The canonical use
// is releasing a resource acquired in order to offer this branch, when
// some other branch of the same choose ends up winning instead.
func WrapAbort[T any](a Alt[T], abortJob Job[Unit]) Alt[T] {
	return wrapAbortAlt[T]{inner: a, job: abortJob}
}

type wrapAbortAlt[T any] struct {
	inner Alt[T]
	job   Job[Unit]
}

func (w wrapAbortAlt[T]) register(pk *pick, worker *Worker, kk Continuation[T], onLose func()) bool {
	s := worker.scheduler
	// Branch ids in (first, last] belong to a; a win by one of them is not
	// a loss for this wrap_abort.
	first := pk.branchSeq
	var last atomic.Int64
	last.Store(math.MaxInt64)
	var fired atomic.Bool
	fire := combineOnLose(onLose, func() {
		if id, _ := pk.winner(); id > first && int64(id) <= last.Load() {
			return
		}
		if fired.CompareAndSwap(false, true) {
			s.abortPool.spawn(s, w.job)
		}
	})
	ok := w.inner.register(pk, worker, kk, fire)
	last.Store(int64(pk.branchSeq))
	return ok
}

// Guard defers building the Alt until the moment it's actually registered
// against a pick, for alternatives whose construction has a side effect
// (e.g. taking a lock) that should only happen once this choose is the one
// actually being tried, rather than once per call to Choose itself.
func Guard[T any](mk func() Alt[T]) Alt[T] {
	return guardAlt[T]{mk: mk}
}

type guardAlt[T any] struct{ mk func() Alt[T] }

func (g guardAlt[T]) register(pk *pick, worker *Worker, kk Continuation[T], onLose func()) bool {
	return g.mk().register(pk, worker, kk, onLose)
}

// WithNack builds an Alt whose construction is handed a negative
// acknowledgement: an Alt[Unit] that becomes available once this
// with_nack's own branch(es) lose the pick (to any other branch, of this
// choose or a concurrent counterparty's). The nack is delivered via a
// private one-shot channel rather than a bespoke primitive, so it reuses
// exactly the same rendezvous machinery as any other channel take.
func WithNack[T any](build func(nack Alt[Unit]) Alt[T]) Alt[T] {
	return withNackAlt[T]{build: build}
}

type withNackAlt[T any] struct {
	build func(nack Alt[Unit]) Alt[T]
}

func (w withNackAlt[T]) register(pk *pick, worker *Worker, kk Continuation[T], onLose func()) bool {
	nackCh := NewChannel[Unit]()
	s := worker.scheduler
	// Branch ids in (first, last] belong to build's Alt; a win by one of
	// them is not a loss for this with_nack.
	first := pk.branchSeq
	var last atomic.Int64
	last.Store(math.MaxInt64)
	var fired atomic.Bool
	fire := combineOnLose(onLose, func() {
		if id, _ := pk.winner(); id > first && int64(id) <= last.Load() {
			return
		}
		if fired.CompareAndSwap(false, true) {
			s.emit(Event{Type: EventNackFired})
			Spawn(s, Ignore(Sync(Give(nackCh, Unit{}))))
		}
	})
	inner := w.build(Take(nackCh))
	ok := inner.register(pk, worker, kk, fire)
	last.Store(int64(pk.branchSeq))
	return ok
}

// alwaysAlt is always immediately available, carrying a fixed value. It
// loses only if some other branch of the same choose, registered earlier,
// already committed the pick.
type alwaysAlt[T any] struct{ value T }

// Always builds an Alt that is immediately ready with v.
func Always[T any](v T) Alt[T] {
	return alwaysAlt[T]{value: v}
}

func (a alwaysAlt[T]) register(pk *pick, worker *Worker, kk Continuation[T], onLose func()) bool {
	id := pk.allocBranch()
	entry := pk.register(id, onLose)
	if pk.tryClaim(id) {
		pk.fireLosers(id)
		worker.scheduler.emit(Event{Type: EventPickCommitted, Data: id})
		resumeTrampoline(worker, kk, a.value)
		return true
	}
	pk.checkLateLoss(entry)
	return false
}

// neverAlt never becomes available. It still registers a branch (so an
// enclosing with_nack/wrap_abort around it fires correctly when some
// sibling branch wins) but never attempts to claim the pick.
type neverAlt[T any] struct{}

// Never builds an Alt that is never selected, useful as a Choose branch
// that exists purely for its WithNack/WrapAbort cleanup side effect.
func Never[T any]() Alt[T] {
	return neverAlt[T]{}
}

func (neverAlt[T]) register(pk *pick, _ *Worker, _ Continuation[T], onLose func()) bool {
	entry := pk.register(pk.allocBranch(), onLose)
	pk.checkLateLoss(entry)
	return false
}

// afterAlt becomes available once d elapses, carrying a fixed value —
// the standard way to build a timeout race into a choose.
type afterAlt[T any] struct {
	d     time.Duration
	value T
}

// After builds an Alt that fires with v once d has elapsed.
func After[T any](d time.Duration, v T) Alt[T] {
	return afterAlt[T]{d: d, value: v}
}

func (a afterAlt[T]) register(pk *pick, worker *Worker, kk Continuation[T], onLose func()) bool {
	id := pk.allocBranch()

	var timer *time.Timer
	entry := pk.register(id, func() {
		if timer != nil {
			timer.Stop()
		}
		if onLose != nil {
			onLose()
		}
	})

	s := worker.scheduler
	timer = time.AfterFunc(a.d, func() {
		if pk.tryClaim(id) {
			pk.fireLosers(id)
			s.emit(Event{Type: EventPickCommitted, Data: id})
			s.offerSingle(workFunc(func(w *Worker) { resume(w, kk, a.value) }))
		}
	})

	pk.checkLateLoss(entry)
	return false
}
