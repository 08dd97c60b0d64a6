// registry.go keeps track of which guard currently holds each watched mutex
package mutexwatch

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LockRecord describes the current holder of a watched mutex. A record
// exists if and only if some guard considers itself the owner of that
// mutex identity.
type LockRecord struct {
	// Holder is the handle id of the owning guard.
	Holder uint64
	// Goroutine is the id of the goroutine that acquired the lock.
	Goroutine int64
	// At is where the lock was acquired.
	At Location
	// Since is when the lock was acquired.
	Since time.Time
}

// ReleaseOutcome is the result of asking the registry to release a claim.
type ReleaseOutcome int

const (
	Released ReleaseOutcome = iota
	NotLocked
	NotOwner
)

// stringer for ReleaseOutcome
func (o ReleaseOutcome) String() string {
	return []string{"Released", "NotLocked", "NotOwner"}[o]
}

// HeldLock pairs a mutex identity and display name with its holder record
// for registry snapshots.
type HeldLock struct {
	ID   uuid.UUID
	Name string
	LockRecord
}

// Registry maps mutex identities to the guard currently holding them. One
// process-wide instance exists (see DefaultRegistry), but tests may inject
// their own via WithRegistry for isolation.
//
// All operations hold the registry guard only for map access, never while
// waiting on anything.
type Registry struct {
	mu      sync.Mutex
	held    map[uuid.UUID]LockRecord
	names   map[uuid.UUID]string
	wrapped map[*sync.Mutex]uuid.UUID
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used when no registry
// is injected.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		held:    make(map[uuid.UUID]LockRecord),
		names:   make(map[uuid.UUID]string),
		wrapped: make(map[*sync.Mutex]uuid.UUID),
	}
}

// Watch wraps mu under this registry, assigning it a stable opaque identity.
// Watching the same *sync.Mutex again returns the same identity, so
// independent scopes instrumenting one mutex agree on who holds it.
func (r *Registry) Watch(mu *sync.Mutex, name string) *WatchedMutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.wrapped[mu]
	if !ok {
		id = uuid.New()
		r.wrapped[mu] = id
	}
	r.names[id] = name
	return &WatchedMutex{mu: mu, id: id, name: name, registry: r}
}

// Unwatch drops the identity mapping for mu. It must not be called while
// the mutex is still held through a guard.
func (r *Registry) Unwatch(mu *sync.Mutex) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.wrapped[mu]; ok {
		delete(r.names, id)
		delete(r.wrapped, mu)
	}
}

// tryClaim records rec as the holder of id. It succeeds only if no record
// exists for that identity; otherwise it returns false without modifying
// state.
func (r *Registry) tryClaim(id uuid.UUID, rec LockRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.held[id]; exists {
		return false
	}
	r.held[id] = rec
	return true
}

// lookup returns the current holder record for id, if any.
func (r *Registry) lookup(id uuid.UUID) (LockRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.held[id]
	return rec, ok
}

// acquire atomically combines the unheld check, the non-blocking acquire of
// the real mutex, and the claim. When the identity is already held it
// returns the current holder's record with heldByOther true. acquired is
// true only if tryLock succeeded and rec is now the registered holder.
func (r *Registry) acquire(id uuid.UUID, rec LockRecord, tryLock func() bool) (holder LockRecord, heldByOther bool, acquired bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, exists := r.held[id]; exists {
		return cur, true, false
	}
	if !tryLock() {
		return LockRecord{}, false, false
	}
	r.held[id] = rec
	return rec, false, true
}

// release removes the claim on id if holder is the recorded owner. On
// NotOwner the true holder's record is returned for reporting; state is
// left untouched for every outcome except Released.
func (r *Registry) release(id uuid.UUID, holder uint64) (ReleaseOutcome, LockRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.held[id]
	if !exists {
		return NotLocked, LockRecord{}
	}
	if rec.Holder != holder {
		return NotOwner, rec
	}
	delete(r.held, id)
	return Released, rec
}

// Len returns the number of currently held mutexes the registry knows about.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}

// Snapshot returns the live holder records sorted by acquisition time,
// oldest first. Useful when debugging what is holding things up.
func (r *Registry) Snapshot() []HeldLock {
	r.mu.Lock()
	defer r.mu.Unlock()

	locks := make([]HeldLock, 0, len(r.held))
	for id, rec := range r.held {
		locks = append(locks, HeldLock{ID: id, Name: r.names[id], LockRecord: rec})
	}
	sort.Slice(locks, func(i, j int) bool {
		return locks[i].Since.Before(locks[j].Since)
	})
	return locks
}
