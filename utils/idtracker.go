package utils

import "sync"

// IDTracker records identities seen during a single run. It is owned by the run
// and never shared across runs.
type IDTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewIDTracker creates an empty tracker
func NewIDTracker() *IDTracker {
	return &IDTracker{seen: make(map[string]struct{})}
}

// Add returns true if the id is new (not seen before), false if duplicate
func (t *IDTracker) Add(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.seen[id]; exists {
		return false
	}
	t.seen[id] = struct{}{}
	return true
}

// Has reports whether id was already added
func (t *IDTracker) Has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[id]
	return ok
}

// Count returns the number of tracked ids
func (t *IDTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
