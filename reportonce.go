package mutexwatch

import "sync"

// onceTracker remembers report keys so a sink with dedup enabled emits
// each distinct diagnostic only once during the process lifetime.
type onceTracker struct {
	seen sync.Map
}

// first returns true the first time key is seen, false on every repeat.
func (o *onceTracker) first(key string) bool {
	_, loaded := o.seen.LoadOrStore(key, struct{}{})
	return !loaded
}

// reset clears all tracked keys (mainly for testing)
func (o *onceTracker) reset() {
	o.seen.Range(func(key, _ any) bool {
		o.seen.Delete(key)
		return true
	})
}
