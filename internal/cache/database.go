package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kestrelworks/skimmer/internal/models"
)

// DatabaseStore is the fallback cache backend for deployments without Redis.
// Entries live in the cache_entries table and expired rows are filtered on
// read so correctness does not depend on the reaper having run.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore creates a database-backed cache store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db, now: time.Now}
}

// IncrementWithTTL increments a counter key and ensures the expiry window is set.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := s.now()

	var count int64
	var remaining time.Duration

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.CacheEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("key = ?", key).
			First(&entry).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound), err == nil && !entry.ExpiresAt.After(now):
			entry = models.CacheEntry{
				Key:       key,
				Value:     []byte("1"),
				ExpiresAt: now.Add(window),
			}
			count = 1
			remaining = window
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				UpdateAll: true,
			}).Create(&entry).Error
		case err != nil:
			return err
		}

		count = parseCounter(entry.Value) + 1
		entry.Value = formatCounter(count)
		remaining = entry.ExpiresAt.Sub(now)
		return tx.Save(&entry).Error
	})
	if err != nil {
		return 0, 0, err
	}
	return count, remaining, nil
}

// Set stores a value with the supplied TTL, replacing any existing entry.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := models.CacheEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: s.now().Add(ttl),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&entry).Error
}

// Get retrieves a live value. Expired rows are treated as misses.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, s.now()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Value, true, nil
}

// Delete removes the named keys, ignoring ones that do not exist.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("key IN ?", keys).
		Delete(&models.CacheEntry{}).Error
}

// DeleteByPattern removes every entry whose key matches the glob pattern and
// returns the number removed. The `*` wildcard translates to a SQL LIKE `%`;
// literal `%` and `_` in the pattern are escaped so they match themselves.
func (s *DatabaseStore) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("key LIKE ? ESCAPE '\\'", globToLike(pattern)).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}

// PurgeExpired removes rows past their expiry. The scheduler runs this
// periodically to keep the table from growing without bound.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now()).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}

func globToLike(pattern string) string {
	var builder strings.Builder
	builder.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		switch ch := pattern[i]; ch {
		case '*':
			builder.WriteByte('%')
		case '%', '_', '\\':
			builder.WriteByte('\\')
			builder.WriteByte(ch)
		default:
			builder.WriteByte(ch)
		}
	}
	return builder.String()
}

func parseCounter(value []byte) int64 {
	n, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatCounter(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}
