// Package cache provides the key/value stores behind the session store and
// the write-behind buffer of the activity journal.
package cache

import (
	"context"
	"time"

	"raffle-storefront/internal/model"
)

// Cache is a TTL key/value store. MemoryCache serves single-instance
// deployments; RedisCache lets several storefront instances share sessions.
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes every entry owned by this cache.
	Clear(ctx context.Context) error

	Close() error
}

// ActivityBuffer queues journal rows until they are flushed to the database.
type ActivityBuffer interface {
	Add(ctx context.Context, a *model.Activity) error
	Count(ctx context.Context) (int64, error)
	Flush(ctx context.Context) error
	Close() error
}

// CacheError is a sentinel cache error.
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)
