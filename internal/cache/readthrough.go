package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kestrelworks/skimmer/pkg/logger"
	"github.com/kestrelworks/skimmer/pkg/metrics"
)

// ReadThrough wraps a Store with get-or-populate semantics. Store failures
// degrade to calling the populate function directly so a broken cache backend
// never takes reads down with it.
type ReadThrough struct {
	store Store
	log   *zap.Logger
}

// NewReadThrough creates a read-through cache over the supplied store.
func NewReadThrough(store Store) *ReadThrough {
	return &ReadThrough{
		store: store,
		log:   logger.WithModule("cache"),
	}
}

// Store exposes the underlying backend for callers that need raw operations,
// such as the rate limiter.
func (rt *ReadThrough) Store() Store {
	return rt.store
}

// GetOrSet returns the cached value for key, or runs populate and caches its
// result on a miss. Populate errors are returned as-is and never cached.
// Concurrent misses for the same key may each run populate; the last write
// wins, which is acceptable because populate is expected to be deterministic
// for a given key.
func GetOrSet[T any](ctx context.Context, rt *ReadThrough, key string, ttl time.Duration, populate func(context.Context) (T, error)) (T, error) {
	var zero T
	namespace := Namespace(key)

	raw, found, err := rt.store.Get(ctx, key)
	if err != nil {
		rt.log.Warn("cache read failed, falling through to populate",
			zap.String("key", key),
			zap.Error(err))
	} else if found {
		var value T
		if unmarshalErr := json.Unmarshal(raw, &value); unmarshalErr == nil {
			metrics.CacheHits.WithLabelValues(namespace).Inc()
			return value, nil
		}
		// Undecodable entries are treated as misses and overwritten below.
		rt.log.Warn("discarding undecodable cache entry", zap.String("key", key))
	}

	metrics.CacheMisses.WithLabelValues(namespace).Inc()

	value, err := populate(ctx)
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		rt.log.Warn("cache encode failed, serving uncached result",
			zap.String("key", key),
			zap.Error(err))
		return value, nil
	}

	if err := rt.store.Set(ctx, key, encoded, ttl); err != nil {
		rt.log.Warn("cache write failed, serving uncached result",
			zap.String("key", key),
			zap.Error(err))
	}
	return value, nil
}

// Delete removes a single key.
func (rt *ReadThrough) Delete(ctx context.Context, key string) error {
	return rt.store.Delete(ctx, key)
}

// InvalidatePattern removes all keys matching each glob pattern and returns
// the total removed. Failures on one pattern do not stop the others.
func (rt *ReadThrough) InvalidatePattern(ctx context.Context, patterns ...string) (int64, error) {
	var total int64
	var errs error
	for _, pattern := range patterns {
		removed, err := rt.store.DeleteByPattern(ctx, pattern)
		total += removed
		if err != nil {
			rt.log.Error("cache invalidation failed",
				zap.String("pattern", pattern),
				zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		metrics.CacheInvalidations.WithLabelValues(pattern).Inc()
	}
	return total, errs
}
