package mutexwatch

import (
	"sync"

	"github.com/google/uuid"
)

// WatchedMutex binds a *sync.Mutex to the opaque identity the registry
// tracks it under. The identity is generated when the mutex is first
// wrapped rather than derived from its address, so a freed-and-reused
// mutex can never collide with a stale registry entry.
type WatchedMutex struct {
	mu       *sync.Mutex
	id       uuid.UUID
	name     string
	registry *Registry
}

// Watch wraps mu under the default registry. See Registry.Watch.
func Watch(mu *sync.Mutex, name string) *WatchedMutex {
	return defaultRegistry.Watch(mu, name)
}

// Name returns the display name used in diagnostic reports.
func (w *WatchedMutex) Name() string {
	return w.name
}

// ID returns the opaque identity assigned to the underlying mutex.
func (w *WatchedMutex) ID() uuid.UUID {
	return w.id
}
