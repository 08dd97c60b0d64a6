package mutexwatch

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Options configures a Guard. Process-wide defaults can be changed with
// SetDefaults; individual guards override them with Option values passed
// at construction.
type Options struct {
	// AssertOnDeadlock makes a detected deadlock fatal through the
	// deadlock hook. When false the failed Lock returns a DeadlockError
	// and the caller continues WITHOUT the lock held.
	AssertOnDeadlock bool

	// PerformanceTimeout is the wait duration after which a one-time
	// non-fatal warning is emitted for an acquisition attempt. Zero
	// disables the warning.
	PerformanceTimeout time.Duration

	// DeadlockTimeout is the wait duration after which the acquisition
	// loop gives up and declares a deadlock.
	DeadlockTimeout time.Duration

	// ShortModuleNames reports file base names instead of full paths.
	ShortModuleNames bool

	// Verbose additionally reports every lock attempt and unlock.
	Verbose bool

	// PollInterval is how long the acquisition loop sleeps between
	// registry checks while the mutex is contended.
	PollInterval time.Duration

	registry   *Registry
	sink       *Sink
	clock      clockwork.Clock
	onMisuse   func(*MisuseError)
	onDeadlock func(*DeadlockError)
}

// Option mutates a single field of an Options value.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		AssertOnDeadlock:   true,
		PerformanceTimeout: time.Second,
		DeadlockTimeout:    5 * time.Second,
		ShortModuleNames:   true,
		PollInterval:       500 * time.Microsecond,
	}
}

var (
	processMu   sync.Mutex
	processOpts = defaultOptions()
)

// SetDefaults adjusts the process-wide option defaults applied to every
// guard constructed afterwards.
func SetDefaults(opts ...Option) {
	processMu.Lock()
	defer processMu.Unlock()
	for _, opt := range opts {
		opt(&processOpts)
	}
}

// ResetDefaults restores the built-in defaults. Mainly for testing.
func ResetDefaults() {
	processMu.Lock()
	defer processMu.Unlock()
	processOpts = defaultOptions()
}

func resolveOptions(opts []Option) Options {
	processMu.Lock()
	resolved := processOpts
	processMu.Unlock()

	for _, opt := range opts {
		opt(&resolved)
	}
	if resolved.sink == nil {
		resolved.sink = defaultSink
	}
	if resolved.clock == nil {
		resolved.clock = clockwork.NewRealClock()
	}
	if resolved.PollInterval <= 0 {
		resolved.PollInterval = 500 * time.Microsecond
	}
	return resolved
}

// WithAssertOnDeadlock controls whether a detected deadlock is fatal.
func WithAssertOnDeadlock(assert bool) Option {
	return func(o *Options) { o.AssertOnDeadlock = assert }
}

// WithPerformanceTimeout sets the slow-acquisition warning threshold.
// Zero disables the warning.
func WithPerformanceTimeout(d time.Duration) Option {
	return func(o *Options) { o.PerformanceTimeout = d }
}

// WithDeadlockTimeout sets how long an acquisition waits before it is
// declared deadlocked.
func WithDeadlockTimeout(d time.Duration) Option {
	return func(o *Options) { o.DeadlockTimeout = d }
}

// WithShortModuleNames controls whether reports shorten file paths to
// their base names.
func WithShortModuleNames(short bool) Option {
	return func(o *Options) { o.ShortModuleNames = short }
}

// WithVerbose enables reporting of every lock attempt and unlock.
func WithVerbose(verbose bool) Option {
	return func(o *Options) { o.Verbose = verbose }
}

// WithPollInterval sets the sleep interval of the contended-acquisition
// loop.
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) { o.PollInterval = d }
}

// WithRegistry makes the guard consult r instead of the registry its
// watched mutex was wrapped under. Tests use this for isolation.
func WithRegistry(r *Registry) Option {
	return func(o *Options) { o.registry = r }
}

// WithSink routes the guard's diagnostic reports to s.
func WithSink(s *Sink) Option {
	return func(o *Options) { o.sink = s }
}

// WithClock injects the clock used for waiting and elapsed-time tracking.
// A fake clock makes the timing thresholds testable without real sleeps.
func WithClock(c clockwork.Clock) Option {
	return func(o *Options) { o.clock = c }
}

// WithOnMisuse replaces the hook invoked after a misuse report. The
// default hook panics with the MisuseError, since continuing under a
// violated invariant would just hide the bug.
func WithOnMisuse(fn func(*MisuseError)) Option {
	return func(o *Options) { o.onMisuse = fn }
}

// WithOnDeadlock replaces the hook invoked after a deadlock report when
// AssertOnDeadlock is enabled. The default hook panics with the
// DeadlockError.
func WithOnDeadlock(fn func(*DeadlockError)) Option {
	return func(o *Options) { o.onDeadlock = fn }
}
