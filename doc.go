/*
Package mutexwatch wraps uses of sync.Mutex with a diagnostic layer that
tracks lock ownership, times lock acquisition, and reports misuse of the
locking discipline while debugging concurrent code.

It answers the question "who currently holds this lock, and has some
goroutine been waiting too long?" without changing the mutex's external
locking semantics.

Key Features:
  - Tracks the current holder of every watched mutex in a process-wide
    registry (holder id, goroutine, file:line, acquisition time)
  - Detects probable deadlocks: a lock attempt that waits longer than a
    configurable timeout is reported with both parties' locations
  - Emits a one-time performance warning when an acquisition is slow but
    not yet deadlocked
  - Catches programmer errors: re-locking a held mutex, unlocking an
    unowned mutex, and unlocking somebody else's lock are all reported
    and fatal by default

Basic Usage:

	var mu sync.Mutex
	wm := mutexwatch.Watch(&mu, "cache")

	g, err := mutexwatch.New(wm, mutexwatch.Here())
	if err != nil {
		// deadlock timeout without assert: lock NOT held
	}
	defer g.Close()
	// ... critical section ...

Acquisition never issues a blocking wait on the real mutex. Contended
locks poll the registry at a short fixed interval instead, which trades
CPU cycles for deterministic timeout behavior and the ability to name the
current holder mid-wait. No fairness among waiters is guaranteed.

Reports are single human-readable lines written through a serialized sink,
so concurrent goroutines never interleave their diagnostics. Timing,
output, and fatality are all injectable (see Options), which keeps the
misuse conditions observable in tests without killing the test process.

This package is a debugging overlay. It is meant for development and test
builds; production code should use the bare mutex.
*/
package mutexwatch
