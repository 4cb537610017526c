package loom

import "errors"

// Protocol-violation sentinels, surfaced as user exceptions at the
// suspension point that triggered them, per §7.
var (
	// ErrSchedulerShutdown is delivered to a job that calls Sync after the
	// owning Scheduler has begun shutting down, rather than registering a
	// pick that could never be woken.
	ErrSchedulerShutdown = errors.New("loom: scheduler is shutting down")

	// ErrNoAlternatives is returned by choose() when given zero
	// branches — there is nothing to ever become ready.
	ErrNoAlternatives = errors.New("loom: choose requires at least one alternative")
)
