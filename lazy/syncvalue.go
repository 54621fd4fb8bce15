package lazy

import (
	"sync"
	"sync/atomic"
)

// SyncValue is the concurrent counterpart of Value. Under simultaneous
// first access exactly one goroutine runs the supplier while the rest
// block on its outcome. The failure contract matches Value. An attempt
// that errors caches nothing, and a later Get retries.
//
// The supplier runs with the holder's lock held. It must not call back
// into the same SyncValue, or it deadlocks.
type SyncValue[T any] struct {
	mu   sync.Mutex
	init Supplier[T]
	val  T
	done atomic.Bool
}

// NewSync returns a SyncValue that computes its content with init on
// first Get. Panics if init is nil.
func NewSync[T any](init Supplier[T]) *SyncValue[T] {
	if init == nil {
		panic("lazy: NewSync requires a non-nil supplier")
	}
	return &SyncValue[T]{init: init}
}

// Get returns the held value, invoking the supplier if no value is held
// yet. See Value.Get for the caching and failure contract.
func (v *SyncValue[T]) Get() (T, error) {
	if v.done.Load() {
		return v.val, nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done.Load() {
		return v.val, nil
	}
	if v.init == nil {
		panic("lazy: Get on a zero SyncValue with no supplier")
	}
	val, err := v.init()
	if err != nil {
		var zero T
		return zero, err
	}
	v.val = val
	v.done.Store(true)
	return v.val, nil
}

// MustGet is like Get but panics if the supplier fails.
func (v *SyncValue[T]) MustGet() T {
	val, err := v.Get()
	if err != nil {
		panic(err)
	}
	return val
}

// Set seeds the holder with an already computed value and reports
// whether it took effect. It returns false once a value is held.
func (v *SyncValue[T]) Set(val T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done.Load() {
		return false
	}
	v.val = val
	v.done.Store(true)
	return true
}

// MustSet is like Set but panics if the value did not take effect.
func (v *SyncValue[T]) MustSet(val T) {
	if !v.Set(val) {
		panic("lazy: MustSet on an initialized SyncValue")
	}
}

// Initialized reports whether a value is held.
func (v *SyncValue[T]) Initialized() bool { return v.done.Load() }
