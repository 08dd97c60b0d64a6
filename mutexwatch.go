package mutexwatch

import (
	"sync/atomic"

	"github.com/petermattis/goid"
)

// GuardState is the acquisition state of a Guard.
type GuardState int

const (
	StateUnlocked GuardState = iota
	StateAcquiring
	StateHeld
)

// stringer for GuardState
func (s GuardState) String() string {
	return []string{"Unlocked", "Acquiring", "Held"}[s]
}

// nextHandleID hands out process-wide unique guard ids.
var nextHandleID atomic.Uint64

// Guard instruments one use of a watched mutex. It tracks where the lock
// was acquired, polls the registry while the mutex is contended, and
// reports misuse of the locking discipline through the configured sink.
//
// A Guard belongs to the goroutine that created it and must not be shared
// across goroutines; the registry is the only cross-goroutine state.
// Typical use mirrors a scoped lock:
//
//	g, err := mutexwatch.New(wm, mutexwatch.Here())
//	defer g.Close()
type Guard struct {
	id      uint64
	wm      *WatchedMutex
	opts    Options
	state   GuardState
	exitLoc Location
}

// New creates a guard for wm and immediately locks it, recording loc as
// the acquisition site. The returned guard is valid even when err is
// non-nil (deadlock timeout without assert); the caller may retry with
// Lock.
func New(wm *WatchedMutex, loc Location, opts ...Option) (*Guard, error) {
	g := NewDeferred(wm, opts...)
	return g, g.Lock(loc)
}

// NewDeferred creates a guard for wm without locking it. Call Lock to
// acquire. Unless WithRegistry overrides it, the guard consults the
// registry wm was wrapped under.
func NewDeferred(wm *WatchedMutex, opts ...Option) *Guard {
	resolved := resolveOptions(opts)
	if resolved.registry == nil {
		resolved.registry = wm.registry
	}
	return &Guard{
		id:   nextHandleID.Add(1),
		wm:   wm,
		opts: resolved,
	}
}

// ID returns the guard's process-wide unique handle id.
func (g *Guard) ID() uint64 {
	return g.id
}

// State returns the guard's current acquisition state.
func (g *Guard) State() GuardState {
	return g.state
}

// LockHere locks the mutex, recording the caller as the acquisition site.
func (g *Guard) LockHere() error {
	return g.Lock(callerLocation(1))
}

// Lock acquires the watched mutex, recording loc as the acquisition site.
//
// When the mutex is free this is a single non-blocking acquire plus a
// registry claim. When it is contended, Lock polls the registry at the
// configured interval so it can read the holder's location and enforce a
// hard timeout; it never issues a blocking wait on the real mutex. A
// one-time performance warning is emitted when the wait crosses the
// performance threshold, and a DeadlockError is returned when it crosses
// the deadlock timeout. Locking while this guard already holds the mutex
// is an IllegalReentry misuse.
func (g *Guard) Lock(loc Location) error {
	clk := g.opts.clock
	reg := g.opts.registry
	gid := goid.Get()

	if g.opts.Verbose {
		g.report(Event{Kind: EventLockAttempt, Goroutine: gid, At: loc})
	}

	rec := LockRecord{Holder: g.id, Goroutine: gid, At: loc, Since: clk.Now()}
	holder, heldByOther, acquired := reg.acquire(g.wm.id, rec, g.wm.mu.TryLock)
	if acquired {
		g.state = StateHeld
		return nil
	}
	if heldByOther && holder.Holder == g.id {
		err := &MisuseError{
			Kind:   IllegalReentry,
			Mutex:  g.wm.name,
			Handle: g.id,
			At:     loc,
			Holder: &holder,
		}
		g.report(Event{Kind: EventIllegalReentry, Goroutine: gid, At: loc, Holder: &holder})
		g.misuse(err)
		return err
	}

	if g.opts.Verbose && heldByOther {
		g.report(Event{Kind: EventLockAttempt, Goroutine: gid, At: loc, Holder: &holder})
	}

	g.state = StateAcquiring
	start := clk.Now()
	warned := false

	for {
		clk.Sleep(g.opts.PollInterval)

		rec.Since = clk.Now()
		holder, heldByOther, acquired = reg.acquire(g.wm.id, rec, g.wm.mu.TryLock)
		if acquired {
			g.state = StateHeld
			return nil
		}

		elapsed := clk.Since(start)
		if elapsed >= g.opts.DeadlockTimeout {
			break
		}
		if g.opts.PerformanceTimeout > 0 && !warned && elapsed >= g.opts.PerformanceTimeout {
			ev := Event{
				Kind:      EventPerformanceWarning,
				Goroutine: gid,
				At:        loc,
				Waited:    elapsed,
				Threshold: g.opts.PerformanceTimeout,
			}
			if heldByOther {
				ev.Holder = &holder
			}
			g.report(ev)
			warned = true
		}
	}

	// Timed out. Re-check ownership before declaring a deadlock.
	if cur, ok := reg.lookup(g.wm.id); ok {
		if cur.Holder == g.id {
			g.state = StateHeld
			return nil
		}
		holder, heldByOther = cur, true
	}

	g.state = StateUnlocked
	waited := clk.Since(start)
	err := &DeadlockError{
		Mutex:  g.wm.name,
		Handle: g.id,
		At:     loc,
		Waited: waited,
		Holder: holder,
	}
	ev := Event{Kind: EventDeadlock, Goroutine: gid, At: loc, Waited: waited}
	if heldByOther {
		ev.Holder = &holder
	}
	g.report(ev)
	if g.opts.AssertOnDeadlock {
		g.deadlock(err)
	}
	return err
}

// UnlockHere unlocks the mutex, recording the caller as the release site.
func (g *Guard) UnlockHere() error {
	return g.Unlock(callerLocation(1))
}

// Unlock releases the watched mutex, verifying through the registry that
// this guard is the recorded holder. Unlocking a mutex nobody holds is an
// UnownedUnlock misuse; unlocking one held by a different guard is an
// IllegalUnlock misuse and leaves the real mutex untouched.
func (g *Guard) Unlock(loc Location) error {
	gid := goid.Get()

	outcome, prev := g.opts.registry.release(g.wm.id, g.id)
	switch outcome {
	case Released:
		g.state = StateUnlocked
		g.wm.mu.Unlock()
		if g.opts.Verbose {
			g.report(Event{Kind: EventUnlocked, Goroutine: gid, At: loc, Holder: &prev})
		}
		return nil

	case NotLocked:
		err := &MisuseError{
			Kind:   UnlockOfUnowned,
			Mutex:  g.wm.name,
			Handle: g.id,
			At:     loc,
		}
		g.report(Event{Kind: EventUnownedUnlock, Goroutine: gid, At: loc})
		g.misuse(err)
		return err

	default: // NotOwner
		err := &MisuseError{
			Kind:   IllegalUnlock,
			Mutex:  g.wm.name,
			Handle: g.id,
			At:     loc,
			Holder: &prev,
		}
		g.report(Event{Kind: EventIllegalUnlock, Goroutine: gid, At: loc, Holder: &prev})
		g.misuse(err)
		return err
	}
}

// RecordExit stores the location where the enclosing scope logically ends,
// so an implicit release in Close is attributed accurately.
func (g *Guard) RecordExit(loc Location) {
	g.exitLoc = loc
}

// Close releases the mutex if this guard still holds it, using the
// recorded exit location or a default marker. A guard that holds nothing
// closes as a no-op, so "defer g.Close()" is always safe.
func (g *Guard) Close() error {
	cur, ok := g.opts.registry.lookup(g.wm.id)
	if !ok || cur.Holder != g.id {
		return nil
	}

	loc := g.exitLoc
	if loc.IsZero() {
		loc = defaultExitLocation
	}
	if g.opts.Verbose {
		g.report(Event{Kind: EventImplicitRelease, Goroutine: goid.Get(), At: loc, Holder: &cur})
	}
	return g.Unlock(loc)
}

func (g *Guard) report(ev Event) {
	ev.Mutex = g.wm.name
	ev.Handle = g.id
	ev.Short = g.opts.ShortModuleNames
	g.opts.sink.Report(ev)
}

func (g *Guard) misuse(err *MisuseError) {
	if g.opts.onMisuse != nil {
		g.opts.onMisuse(err)
		return
	}
	panic(err)
}

func (g *Guard) deadlock(err *DeadlockError) {
	if g.opts.onDeadlock != nil {
		g.opts.onDeadlock(err)
		return
	}
	panic(err)
}
