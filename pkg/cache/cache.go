// Package cache provides generic in-process caches.
package cache

import "time"

// Cache defines the basic interface for a generic expiring cache.
type Cache[K comparable, V any] interface {
	// Set adds or replaces an item. A non-positive ttl never expires.
	Set(key K, value V, ttl time.Duration)
	// Get retrieves a live item.
	Get(key K) (V, bool)
	// Del removes an item.
	Del(key K)
	// Len returns the number of live items.
	Len() int
	// Keys returns the keys of live items.
	Keys() []K
	// Clear removes all items.
	Clear()
}
