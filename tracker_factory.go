package visioncore

import "sync"

// trackIDFactory generates unique, ever-increasing track IDs. IDs are
// never reused, even across deletion, so a stale ID in a stream log can
// never be confused with its successor. A SORT track gets one permanent
// ID for its whole life, so only a single instance-level counter is
// needed (no initializing/permanent ID split).
type trackIDFactory struct {
	mu    sync.Mutex
	count int
}

// next returns the next unique ID, starting at 0.
func (f *trackIDFactory) next() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.count
	f.count++
	return id
}

// allocated returns how many IDs have been allocated so far.
func (f *trackIDFactory) allocated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}
