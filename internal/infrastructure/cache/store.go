// Package cache provides a small key/value store with Redis and in-memory
// implementations, and the cached identity-to-tenant lookup built on it.
package cache

import (
	"context"
	"time"
)

// Store is a string key/value store with per-entry expiry.
type Store interface {
	// Get returns the value for key; found is false on a miss.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
