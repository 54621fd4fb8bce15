package lazy

import "sync"

// Func returns a memoized version of fn. The first call invokes fn and
// every later call replays its result. Not safe for concurrent use.
func Func[T any](fn func() T) func() T {
	v := New(func() (T, error) { return fn(), nil })
	return v.MustGet
}

// FuncErr returns a memoized version of fn with Value's failure
// contract. Calls after an error invoke fn again. Calls after a success
// do not. Not safe for concurrent use.
func FuncErr[T any](fn Supplier[T]) Supplier[T] {
	v := New(fn)
	return v.Get
}

// SyncFunc is like Func but safe for concurrent use. Concurrent first
// callers block until fn returns, and fn runs exactly once.
func SyncFunc[T any](fn func() T) func() T {
	var (
		once sync.Once
		val  T
	)
	return func() T {
		once.Do(func() { val = fn() })
		return val
	}
}

// SyncFuncErr is like FuncErr but safe for concurrent use, with
// SyncValue's failure contract.
func SyncFuncErr[T any](fn Supplier[T]) Supplier[T] {
	v := NewSync(fn)
	return v.Get
}
