// Package loadcache memoizes keyed loads behind a bounded cache.
// Entries compete for residency instead of accumulating forever, which
// suits unbounded key spaces where a plain per-key memo would grow
// without limit.
package loadcache

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxCost bounds NewDefault caches at 100 million entries.
	DefaultMaxCost = 1e8

	defaultNumCounters = 1e6
	defaultBufferItems = 64
)

// Cache is a bounded, load-through cache. Every entry has unit cost,
// so the cache's max cost is its max entry count. Concurrent loads of
// one key collapse into a single loader call. Safe for concurrent use.
type Cache[V any] struct {
	cache *ristretto.Cache[string, V]
	group singleflight.Group
}

// New returns a Cache holding at most maxCost entries.
func New[V any](maxCost int64) (*Cache[V], error) {
	rc, err := ristretto.NewCache[string, V](&ristretto.Config[string, V]{
		NumCounters: defaultNumCounters,
		MaxCost:     maxCost,
		BufferItems: defaultBufferItems,
		Cost: func(value V) int64 {
			return 1
		},
	})
	if err != nil {
		return nil, fmt.Errorf("loadcache.New: failed to create backing cache: %w", err)
	}
	return &Cache[V]{cache: rc}, nil
}

func NewDefault[V any]() (*Cache[V], error) {
	return New[V](DefaultMaxCost)
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.cache.Get(key)
}

// Add stores value under key and waits for the write to become
// visible, so an immediate Get observes it.
func (c *Cache[V]) Add(key string, value V) {
	c.cache.Set(key, value, 0)
	c.cache.Wait()
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.cache.Del(key)
	c.cache.Wait()
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.cache.Clear()
	c.cache.Wait()
}

// Close releases the cache's background resources. The Cache must not
// be used afterward.
func (c *Cache[V]) Close() {
	c.cache.Close()
}

// GetOrLoad returns the value for key, loading and caching it on a
// miss. The second return reports whether the value came from the
// cache. Concurrent callers for one key share a single load call. A
// load that fails returns its error unchanged and caches nothing, so a
// later call loads again.
func (c *Cache[V]) GetOrLoad(key string, load func() (V, error)) (V, bool, error) {
	if value, found := c.Get(key); found {
		return value, true, nil
	}

	// Collapse concurrent misses for the same key into one load.
	res, err, _ := c.group.Do(key, func() (any, error) {
		value, err := load()
		if err != nil {
			return nil, err
		}
		c.Add(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	if res == nil {
		var zero V
		return zero, false, nil
	}
	return res.(V), false, nil
}
