// Package lazy provides holders for values that are expensive to produce
// and not always needed. A holder defers its supplier until the value is
// first requested, then serves the cached result on every later request.
// Failure is never cached. A supplier that returns an error leaves the
// holder uninitialized, and the next request invokes it again.
//
// Value is the single-goroutine holder. SyncValue is the concurrent
// sibling. Map memoizes one value per key. The Func family wraps plain
// functions instead of exposing a holder type.
package lazy

// A Supplier produces a value or fails. Errors reach callers unchanged,
// with no wrapping, so errors.Is and errors.As see exactly what the
// supplier returned.
type Supplier[T any] func() (T, error)

// Value holds a lazily initialized T. The zero Value is usable with Set,
// but Get requires a supplier bound via New.
//
// Value is not safe for concurrent use. Use SyncValue when multiple
// goroutines share a holder.
type Value[T any] struct {
	init    Supplier[T]
	val     T
	done    bool
	filling bool
}

// New returns a Value that computes its content with init on first Get.
// Panics if init is nil.
func New[T any](init Supplier[T]) *Value[T] {
	if init == nil {
		panic("lazy: New requires a non-nil supplier")
	}
	return &Value[T]{init: init}
}

// Get returns the held value, invoking the supplier if no value is held
// yet. On success the result is cached, zero values included, and the
// supplier is never invoked again. On failure Get returns the supplier's
// error and caches nothing, so a later Get retries.
//
// Get panics if the supplier calls Get on the same Value, or if the
// Value has no supplier and was never seeded with Set.
func (v *Value[T]) Get() (T, error) {
	if v.done {
		return v.val, nil
	}
	if v.filling {
		panic("lazy: Get called recursively from its own supplier")
	}
	if v.init == nil {
		panic("lazy: Get on a zero Value with no supplier")
	}
	v.filling = true
	defer func() { v.filling = false }()
	val, err := v.init()
	if err != nil {
		var zero T
		return zero, err
	}
	v.val = val
	v.done = true
	return v.val, nil
}

// MustGet is like Get but panics if the supplier fails.
func (v *Value[T]) MustGet() T {
	val, err := v.Get()
	if err != nil {
		panic(err)
	}
	return val
}

// Set seeds the holder with an already computed value and reports
// whether it took effect. It returns false once a value is held, and
// when called from inside the supplier.
func (v *Value[T]) Set(val T) bool {
	if v.done || v.filling {
		return false
	}
	v.val = val
	v.done = true
	return true
}

// MustSet is like Set but panics if the value did not take effect.
func (v *Value[T]) MustSet(val T) {
	if !v.Set(val) {
		panic("lazy: MustSet on an initialized or filling Value")
	}
}

// Initialized reports whether a value is held. It stays false after
// failed Get attempts.
func (v *Value[T]) Initialized() bool { return v.done }
