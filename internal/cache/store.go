package cache

import (
	"context"
	"time"
)

// Store represents a shared cache interface used across the application.
// Implementations must be safe for concurrent use. Patterns use redis-style
// globbing restricted to the `*` wildcard.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}
