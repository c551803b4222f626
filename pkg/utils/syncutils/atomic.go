package syncutils

import "sync/atomic"

// AtomicBool is a boolean flag shared between producers and the merge
// goroutine. The zero value is false.
type AtomicBool struct {
	v atomic.Bool
}

func (b *AtomicBool) Set(v bool) {
	b.v.Store(v)
}

func (b *AtomicBool) Get() bool {
	return b.v.Load()
}

// Swap stores v and returns the previous value.
func (b *AtomicBool) Swap(v bool) bool {
	return b.v.Swap(v)
}

// SetIfUnset flips the flag to true and reports whether this call did it.
func (b *AtomicBool) SetIfUnset() bool {
	return b.v.CompareAndSwap(false, true)
}
