package cache

import "time"

// NoExpiration keeps an item until it is deleted.
const NoExpiration time.Duration = -1

// DefaultExpiration uses the TTL the cache was created with.
const DefaultExpiration time.Duration = 0

// CacheService is a keyed in-memory store with optional per-item TTL.
type CacheService interface {
	// Get returns the value and true, or nil and false when absent or expired.
	Get(key string) (any, bool)

	Set(key string, value any, ttl time.Duration)

	Delete(key string)

	// Keys lists the live keys in no particular order.
	Keys() []string

	Flush()
}
