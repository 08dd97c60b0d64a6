package mutexwatch

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventKind identifies the diagnostic condition a report describes.
type EventKind int

const (
	EventLockAttempt EventKind = iota
	EventIllegalReentry
	EventPerformanceWarning
	EventDeadlock
	EventUnlocked
	EventIllegalUnlock
	EventUnownedUnlock
	EventImplicitRelease
)

// stringer for EventKind
func (k EventKind) String() string {
	return []string{
		"lock_attempt",
		"illegal_reentry",
		"performance_warning",
		"deadlock",
		"unlocked",
		"illegal_unlock",
		"unowned_unlock",
		"implicit_release",
	}[k]
}

func (k EventKind) level() zerolog.Level {
	switch k {
	case EventLockAttempt, EventUnlocked, EventImplicitRelease:
		return zerolog.DebugLevel
	case EventPerformanceWarning:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (k EventKind) message() string {
	switch k {
	case EventLockAttempt:
		return "attempting to lock"
	case EventIllegalReentry:
		return "illegal lock while already held"
	case EventPerformanceWarning:
		return "slow lock acquisition, potential deadlock"
	case EventDeadlock:
		return "deadlock detected"
	case EventUnlocked:
		return "unlocked"
	case EventIllegalUnlock:
		return "illegal unlock by non-holder"
	case EventUnownedUnlock:
		return "unlock of unowned mutex"
	case EventImplicitRelease:
		return "implicit release at scope exit"
	}
	return "unknown"
}

// Event is one structured diagnostic occurrence. The sink renders it to a
// single human-readable line.
type Event struct {
	Kind      EventKind
	Mutex     string
	Handle    uint64
	Goroutine int64
	At        Location
	// Holder is the other party's record, for events where one exists.
	Holder *LockRecord
	// Waited and Threshold qualify the timing events.
	Waited    time.Duration
	Threshold time.Duration
	// Short requests base-name rendering of file paths.
	Short bool
}

func (ev Event) key() string {
	return fmt.Sprintf("%s|%s|%s", ev.Kind, ev.Mutex, ev.At)
}

// Sink serializes diagnostic output under its own guard, distinct from the
// registry guard, so concurrent reporters never interleave their lines.
type Sink struct {
	mu     sync.Mutex
	logger zerolog.Logger
	dedup  bool
	once   onceTracker
}

var defaultSink = NewConsoleSink()

// DefaultSink returns the process-wide sink used when no sink is injected.
// It writes human-readable lines to stderr.
func DefaultSink() *Sink {
	return defaultSink
}

// NewSink creates a sink rendering line-oriented reports to w.
func NewSink(w io.Writer) *Sink {
	logger := zerolog.New(w).With().
		Timestamp().
		Str("component", "mutexwatch").
		Logger()
	return &Sink{logger: logger}
}

// NewConsoleSink creates a sink rendering colored console lines to stderr.
func NewConsoleSink() *Sink {
	return NewSink(zerolog.ConsoleWriter{Out: os.Stderr})
}

// WithDedup makes the sink report each distinct condition only once per
// process, collapsing the noise when a hot loop keeps hitting the same
// contended site. Returns the sink for chaining.
func (s *Sink) WithDedup() *Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dedup = true
	return s
}

// Report renders one event. Safe for concurrent use.
func (s *Sink) Report(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dedup && !s.once.first(ev.key()) {
		return
	}

	line := s.logger.WithLevel(ev.Kind.level()).
		Str("event", ev.Kind.String()).
		Str("mutex", ev.Mutex).
		Uint64("handle", ev.Handle).
		Str("at", ev.At.Render(ev.Short))
	if ev.Goroutine != 0 {
		line = line.Int64("goroutine", ev.Goroutine)
	}
	if ev.Holder != nil {
		line = line.
			Uint64("holder", ev.Holder.Holder).
			Str("held_at", ev.Holder.At.Render(ev.Short))
	}
	if ev.Waited > 0 {
		line = line.Dur("waited", ev.Waited)
	}
	if ev.Threshold > 0 {
		line = line.Dur("threshold", ev.Threshold)
	}
	line.Msg(ev.Kind.message())
}
