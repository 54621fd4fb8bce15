package lazy

import "sync"

// Map memoizes one value per key. The load function bound at
// construction computes the value for a key the first time the key is
// requested. Later requests for the same key serve the cached value. A
// load that fails caches nothing for its key, and the next request for
// that key loads again.
//
// Map is safe for concurrent use. The load function runs while the
// map's write lock is held, so requests for other keys wait for an
// in-flight load. It must not call back into the same Map, for any
// key, or it deadlocks. For expensive loads over an unbounded key
// space, see package loadcache.
type Map[K comparable, V any] struct {
	mu   sync.RWMutex
	vals map[K]V
	load func(K) (V, error)
}

// NewMap returns a Map that computes values with load. Panics if load
// is nil.
func NewMap[K comparable, V any](load func(K) (V, error)) *Map[K, V] {
	if load == nil {
		panic("lazy: NewMap requires a non-nil load function")
	}
	return &Map[K, V]{
		vals: make(map[K]V),
		load: load,
	}
}

// Get returns the value for key, loading it if this is the first
// request for key. Load errors are returned to the caller and are not
// cached.
func (m *Map[K, V]) Get(key K) (V, error) {
	m.mu.RLock()
	val, ok := m.vals[key]
	m.mu.RUnlock()
	if ok {
		return val, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another goroutine may have loaded key while we waited.
	if val, ok := m.vals[key]; ok {
		return val, nil
	}

	val, err := m.load(key)
	if err != nil {
		var zero V
		return zero, err
	}
	m.vals[key] = val
	return val, nil
}

// Peek returns the cached value for key without loading.
func (m *Map[K, V]) Peek(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.vals[key]
	return val, ok
}

// Delete removes key and returns the value it held. A later Get for key
// loads again.
func (m *Map[K, V]) Delete(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.vals[key]
	if ok {
		delete(m.vals, key)
	}
	return val, ok
}

// Len returns the number of cached values.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vals)
}
