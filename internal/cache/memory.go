package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process cache used in tests and single-node setups
// where neither Redis nor the database fallback is wanted.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// IncrementWithTTL increments a counter key, starting a fresh window when the
// key is new or expired.
func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(now) {
		s.entries[key] = memoryEntry{value: []byte("1"), expiresAt: now.Add(window)}
		return 1, window, nil
	}

	count := parseCounter(entry.value) + 1
	entry.value = formatCounter(count)
	s.entries[key] = entry
	return count, entry.expiresAt.Sub(now), nil
}

// Set stores a value with the supplied TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(value))
	copy(buf, value)
	s.entries[key] = memoryEntry{value: buf, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get retrieves a live value. Expired entries are removed and reported as misses.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.After(s.now()) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Delete removes the named keys.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// DeleteByPattern removes every key matching the glob pattern and returns the
// count removed.
func (s *MemoryStore) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key := range s.entries {
		if globMatch(pattern, key) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// globMatch matches keys against patterns whose only metacharacter is `*`,
// which matches any run of characters including ':'.
func globMatch(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}

	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]

	last := parts[len(parts)-1]
	if !strings.HasSuffix(key, last) {
		return false
	}
	key = key[:len(key)-len(last)]

	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(key, part)
		if idx < 0 {
			return false
		}
		key = key[idx+len(part):]
	}
	return true
}
