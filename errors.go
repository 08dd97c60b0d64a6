package mutexwatch

import (
	"errors"
	"fmt"
	"time"
)

// MisuseKind classifies violations of the locking discipline. All of them
// indicate programmer error rather than transient contention, so none are
// retried.
type MisuseKind int

const (
	// IllegalReentry is a lock attempt by the guard that already holds the
	// mutex. The underlying mutex is not recursive, so proceeding would
	// hang forever.
	IllegalReentry MisuseKind = iota
	// UnlockOfUnowned is an unlock of a mutex no guard currently holds.
	UnlockOfUnowned
	// IllegalUnlock is an unlock by a guard that is not the recorded holder.
	IllegalUnlock
)

// stringer for MisuseKind
func (k MisuseKind) String() string {
	return []string{"IllegalReentry", "UnlockOfUnowned", "IllegalUnlock"}[k]
}

// MisuseError reports a violation of the locking discipline. The configured
// misuse hook receives it after the event has been reported; the default
// hook panics.
type MisuseError struct {
	Kind   MisuseKind
	Mutex  string
	Handle uint64
	At     Location
	// Holder is the conflicting holder's record, when one exists.
	Holder *LockRecord
}

func (e *MisuseError) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("mutexwatch: %s on mutex %q at %s (held by handle %d at %s)",
			e.Kind, e.Mutex, e.At, e.Holder.Holder, e.Holder.At)
	}
	return fmt.Sprintf("mutexwatch: %s on mutex %q at %s", e.Kind, e.Mutex, e.At)
}

// DeadlockError reports that a lock attempt exceeded the deadlock timeout.
// When it is returned the guard does NOT hold the mutex and holds no
// registry claim; the caller may call Lock again to retry.
type DeadlockError struct {
	Mutex  string
	Handle uint64
	At     Location
	Waited time.Duration
	Holder LockRecord
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("mutexwatch: deadlock detected on mutex %q at %s after %v (held by handle %d at %s)",
		e.Mutex, e.At, e.Waited, e.Holder.Holder, e.Holder.At)
}

// IsMisuse reports whether err is a MisuseError of the given kind.
func IsMisuse(err error, kind MisuseKind) bool {
	var me *MisuseError
	return errors.As(err, &me) && me.Kind == kind
}

// IsDeadlock reports whether err is a DeadlockError.
func IsDeadlock(err error) bool {
	var de *DeadlockError
	return errors.As(err, &de)
}
