package loom

import "runtime"

// assumedTrampolineFrameBytes approximates the native stack a single
// trampolined resumption consumes. Go does not expose the current stack
// pointer for direct comparison against a limit (unlike native runtimes),
// so stack_trampoline_bytes is converted into a resumption-depth bound
// instead — the "implementations without easy stack-pointer inspection"
// branch the reference design explicitly allows (§9).
const assumedTrampolineFrameBytes = 256

// config holds the scheduler's construction-time options, gathered into a
// config struct the way the pack's joeycumines-go-utilpkg/eventloop
// (options.go) does rather than the teacher's positional-argument
// constructors, since this surface has more independent knobs than
// NewJob/NewWork ever needed.
type config struct {
	workerCount           int
	idleHandler           Job[int]
	topLevelHandler       func(error)
	trampolineDepthLimit  int
	abortPoolSize         int
	eventSink             EventSink
	parkTimeoutWhenNoIdle int // ms; used if idleHandler is nil, fails, or does not resolve
}

// Option configures a Scheduler at construction time.
type Option func(*config)

// WithWorkerCount sets the number of OS-thread-backed workers. Defaults to
// runtime.NumCPU(). n <= 0 is treated as 1.
func WithWorkerCount(n int) Option {
	return func(c *config) {
		if n <= 0 {
			n = 1
		}
		c.workerCount = n
	}
}

// WithIdleHandler installs a Job[int] run whenever a worker finds no work
// anywhere (§4.1 "Try idle"). Its result is a park timeout in
// milliseconds: 0 means poll again immediately, -1 means park
// indefinitely, any other value is a bounded park. The job must be
// synchronous (resolve its continuation before doJob returns) — it runs
// inline on the idling worker, not as a suspended job.
func WithIdleHandler(j Job[int]) Option {
	return func(c *config) { c.idleHandler = j }
}

// WithTopLevelHandler installs the fallback sink for exceptions that reach
// no job-installed handler. If unset, such exceptions are logged via the
// standard library log package rather than silently dropped, per §7.
func WithTopLevelHandler(f func(error)) Option {
	return func(c *config) { c.topLevelHandler = f }
}

// WithStackTrampolineBytes bounds how much native stack hot-path
// resumptions (an immediate channel rendezvous, a won pick) may consume by
// recursing directly instead of pushing a fresh Work. 0 (the default)
// always pushes, which is always safe; a positive value trades a small
// amount of native stack for fewer scheduling round-trips on hot paths.
func WithStackTrampolineBytes(n int) Option {
	return func(c *config) {
		if n < 0 {
			n = 0
		}
		c.trampolineDepthLimit = n / assumedTrampolineFrameBytes
	}
}

// WithAbortPoolSize bounds how many wrap_abort nack jobs may run
// concurrently (see abortpool.go). Defaults to 4 * worker count.
func WithAbortPoolSize(n int) Option {
	return func(c *config) {
		if n <= 0 {
			n = 1
		}
		c.abortPoolSize = n
	}
}

// WithEventSink installs a diagnostics sink; see diagnostics.go. Nil (the
// default) disables event emission entirely.
func WithEventSink(sink EventSink) Option {
	return func(c *config) { c.eventSink = sink }
}

// WithIdleParkTimeoutMillis sets how long a worker parks, in milliseconds,
// when no idle handler is installed and no work exists anywhere. Defaults
// to 20ms: long enough to avoid burning CPU on an empty runtime, short
// enough that newly-spawned work (via the exported Spawn, which signals a
// parked worker directly) is picked up promptly even if the signal were
// ever missed.
func WithIdleParkTimeoutMillis(ms int) Option {
	return func(c *config) {
		if ms < 0 {
			ms = 0
		}
		c.parkTimeoutWhenNoIdle = ms
	}
}

func defaultConfig() config {
	return config{
		workerCount:           runtime.NumCPU(),
		trampolineDepthLimit:  0,
		abortPoolSize:         0, // resolved to 4*workerCount in NewScheduler
		parkTimeoutWhenNoIdle: 20,
	}
}
