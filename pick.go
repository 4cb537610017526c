package loom

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// pickWaitingSentinel is the state value meaning "no branch has committed
// yet". Any other value is the winning branch id, so state is a single
// atomic word a CAS can transition exactly once, per the data model's
// Pick.state.
const pickWaitingSentinel int64 = -1

// branchEntry records one branch's participation in a pick: its id and an
// optional loser callback (installed by with_nack, wrap_abort, or after's
// timer cleanup). fired guards against running that callback twice when a
// late-registering branch's own loss-check races against commit's loser
// scan (see pick.checkLateLoss).
type branchEntry struct {
	id     int
	onLose func()
	fired  atomic.Bool
}

func (e *branchEntry) fireOnce() {
	if e.onLose != nil && e.fired.CompareAndSwap(false, true) {
		e.onLose()
	}
}

// pick is the shared commit state for one selective wait (one Sync job),
// per §4.5. It transitions Waiting -> Picked(winner) exactly once; every
// other registered branch learns of the loss either through commit's
// scan, or — if it finishes registering after that scan already ran —
// through its own late-loss check. Both paths are safe to race because
// branchEntry.fireOnce only ever runs its callback once.
type pick struct {
	state atomic.Int64

	mu        sync.Mutex
	branches  []*branchEntry
	branchSeq int
}

func newPick() *pick {
	pk := &pick{}
	pk.state.Store(pickWaitingSentinel)
	return pk
}

// allocBranch assigns the next branch id. Only ever called from the single
// goroutine driving registration for this pick, so it needs no locking of
// its own.
func (pk *pick) allocBranch() int {
	pk.branchSeq++
	return pk.branchSeq
}

// register records a new branch in this pick before that branch attempts
// its claim or enqueues a waiter, so that even if the pick is decided
// concurrently mid-registration, the branch is never lost from the loser
// bookkeeping.
func (pk *pick) register(id int, onLose func()) *branchEntry {
	e := &branchEntry{id: id, onLose: onLose}
	pk.mu.Lock()
	pk.branches = append(pk.branches, e)
	pk.mu.Unlock()
	return e
}

// checkLateLoss re-reads the pick's state after a branch finishes
// registering (enqueueing or attempting an immediate claim) and fires its
// own loser callback if some other branch already won in the interim.
// This is what makes registration safe against a counterparty committing
// to an earlier branch while a later branch is still being set up.
func (pk *pick) checkLateLoss(e *branchEntry) {
	w := pk.state.Load()
	if w != pickWaitingSentinel && int(w) != e.id {
		e.fireOnce()
	}
}

// tryClaim attempts to transition this pick from Waiting to Picked(id).
func (pk *pick) tryClaim(id int) bool {
	return pk.state.CompareAndSwap(pickWaitingSentinel, int64(id))
}

// winner reports the committed branch id, if any.
func (pk *pick) winner() (int, bool) {
	w := pk.state.Load()
	if w == pickWaitingSentinel {
		return 0, false
	}
	return int(w), true
}

// fireLosers runs the loser callback of every registered branch other
// than winnerID. Safe to call concurrently with checkLateLoss/fireOnce
// calls from branches still registering.
func (pk *pick) fireLosers(winnerID int) {
	pk.mu.Lock()
	entries := append([]*branchEntry(nil), pk.branches...)
	pk.mu.Unlock()

	for _, e := range entries {
		if e.id != winnerID {
			e.fireOnce()
		}
	}
}

func pickAddress(p *pick) uintptr { return uintptr(unsafe.Pointer(p)) }

// commitPair atomically claims branchA of pa and branchB of pb together,
// or claims neither. To avoid deadlock when two concurrent rendezvous
// attempts reference the same two picks in opposite orders, the CAS order
// is always by ascending pick address (§4.5 "Atomicity"). If the second
// CAS fails after the first succeeds, the first is rolled back — safe
// because nothing observes a Picked pick's new state except other CAS
// attempts (which simply fail and retry) until this function itself goes
// on to fire losers and resume both sides.
func commitPair(pa *pick, branchA int, pb *pick, branchB int) bool {
	if pa == pb {
		// Both branches belong to the same pick (e.g. a job selecting
		// on give and take of the same channel against itself): they
		// can never legitimately both win.
		return false
	}

	first, firstBranch, second, secondBranch := pa, branchA, pb, branchB
	if pickAddress(pb) < pickAddress(pa) {
		first, firstBranch, second, secondBranch = pb, branchB, pa, branchA
	}

	if !first.tryClaim(firstBranch) {
		return false
	}
	if !second.tryClaim(secondBranch) {
		first.state.CompareAndSwap(int64(firstBranch), pickWaitingSentinel)
		return false
	}
	return true
}
