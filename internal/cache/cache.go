package cache

import "sync/atomic"

// Snapshot is a lock-free, read-optimized container
// holding any immutable structure.
type Snapshot[T any] struct{ v atomic.Value }

type boxed[T any] struct{ v T }

// Load returns the stored value and whether one was stored.
func (s *Snapshot[T]) Load() (T, bool) {
	b, ok := s.v.Load().(boxed[T])
	if !ok {
		var zero T
		return zero, false
	}
	return b.v, true
}

// Store atomically swaps in the new value.
func (s *Snapshot[T]) Store(v T) {
	// boxing keeps atomic.Value happy with interface and nil-able T.
	s.v.Store(boxed[T]{v: v})
}
