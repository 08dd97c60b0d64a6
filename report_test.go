package mutexwatch

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkRendersEventFields(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewSink(buf)

	holder := &LockRecord{Holder: 7, At: Location{File: "/src/db/store.go", Line: 31}}
	sink.Report(Event{
		Kind:      EventDeadlock,
		Mutex:     "store",
		Handle:    12,
		Goroutine: 99,
		At:        Location{File: "/src/api/handler.go", Line: 204},
		Holder:    holder,
		Waited:    5 * time.Second,
		Short:     true,
	})

	out := buf.String()
	assert.Contains(t, out, `"component":"mutexwatch"`)
	assert.Contains(t, out, `"event":"deadlock"`)
	assert.Contains(t, out, `"mutex":"store"`)
	assert.Contains(t, out, `"handle":12`)
	assert.Contains(t, out, `"goroutine":99`)
	assert.Contains(t, out, `"at":"handler.go:204"`)
	assert.Contains(t, out, `"holder":7`)
	assert.Contains(t, out, `"held_at":"store.go:31"`)
	assert.Contains(t, out, "deadlock detected")
}

func TestSinkFullPathsWhenShortDisabled(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewSink(buf)

	sink.Report(Event{
		Kind:  EventUnownedUnlock,
		Mutex: "cfg",
		At:    Location{File: "/src/api/handler.go", Line: 10},
		Short: false,
	})
	assert.Contains(t, buf.String(), `"at":"/src/api/handler.go:10"`)
}

// One line per event, even with many concurrent reporters.
func TestSinkSerializesConcurrentReports(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewSink(buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sink.Report(Event{
				Kind:   EventPerformanceWarning,
				Mutex:  "busy",
				Handle: uint64(n),
				At:     Location{File: "x.go", Line: n},
			})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "{"), "line not valid: %q", line)
		assert.Contains(t, line, "performance_warning")
	}
}

func TestSinkDedup(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewSink(buf).WithDedup()

	ev := Event{Kind: EventDeadlock, Mutex: "queue", At: Location{File: "q.go", Line: 5}}
	sink.Report(ev)
	sink.Report(ev)
	sink.Report(ev)

	// A different site still reports.
	other := ev
	other.At = Location{File: "q.go", Line: 9}
	sink.Report(other)

	out := strings.TrimSpace(buf.String())
	assert.Len(t, strings.Split(out, "\n"), 2)

	sink.once.reset()
	sink.Report(ev)
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 3)
}

func TestEventKindStrings(t *testing.T) {
	assert.Equal(t, "lock_attempt", EventLockAttempt.String())
	assert.Equal(t, "deadlock", EventDeadlock.String())
	assert.Equal(t, "implicit_release", EventImplicitRelease.String())
}
