package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type articleSummary struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func TestGetOrSetPopulatesOnceThenHits(t *testing.T) {
	rt := NewReadThrough(NewMemoryStore())
	ctx := context.Background()

	calls := 0
	populate := func(context.Context) ([]articleSummary, error) {
		calls++
		return []articleSummary{{ID: "a1", Score: 9.5}}, nil
	}

	first, err := GetOrSet(ctx, rt, "articles:all", time.Minute, populate)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	second, err := GetOrSet(ctx, rt, "articles:all", time.Minute, populate)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, first, second)
}

func TestGetOrSetDoesNotCachePopulateErrors(t *testing.T) {
	rt := NewReadThrough(NewMemoryStore())
	ctx := context.Background()

	boom := errors.New("upstream down")
	calls := 0

	_, err := GetOrSet(ctx, rt, "articles:all", time.Minute, func(context.Context) ([]articleSummary, error) {
		calls++
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	// the next call must run populate again rather than serving the failure
	value, err := GetOrSet(ctx, rt, "articles:all", time.Minute, func(context.Context) ([]articleSummary, error) {
		calls++
		return []articleSummary{{ID: "a1"}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, value, 1)
}

func TestGetOrSetInvalidateThenRepopulate(t *testing.T) {
	rt := NewReadThrough(NewMemoryStore())
	ctx := context.Background()

	version := 0
	populate := func(context.Context) (int, error) {
		version++
		return version, nil
	}

	first, err := GetOrSet(ctx, rt, "articles:limit=20", time.Minute, populate)
	require.NoError(t, err)
	require.Equal(t, 1, first)

	removed, err := rt.InvalidatePattern(ctx, "articles:*")
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	second, err := GetOrSet(ctx, rt, "articles:limit=20", time.Minute, populate)
	require.NoError(t, err)
	require.Equal(t, 2, second)
}

// brokenStore fails every operation so degradation behaviour is observable.
type brokenStore struct{}

var errStoreDown = errors.New("store down")

func (brokenStore) IncrementWithTTL(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errStoreDown
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error { return errStoreDown }
func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errStoreDown
}
func (brokenStore) Delete(context.Context, ...string) error { return errStoreDown }
func (brokenStore) DeleteByPattern(context.Context, string) (int64, error) {
	return 0, errStoreDown
}

func TestGetOrSetDegradesWhenStoreFails(t *testing.T) {
	rt := NewReadThrough(brokenStore{})
	ctx := context.Background()

	value, err := GetOrSet(ctx, rt, "articles:all", time.Minute, func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	require.Equal(t, "fresh", value)
}

func TestInvalidatePatternAggregatesFailures(t *testing.T) {
	rt := NewReadThrough(brokenStore{})

	_, err := rt.InvalidatePattern(context.Background(), "articles:*", "popular:*")
	require.ErrorIs(t, err, errStoreDown)
}

func TestGetOrSetDiscardsUndecodableEntries(t *testing.T) {
	store := NewMemoryStore()
	rt := NewReadThrough(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "articles:all", []byte("not json"), time.Minute))

	value, err := GetOrSet(ctx, rt, "articles:all", time.Minute, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, value)

	// the bad entry was replaced with the populated value
	raw, found, err := store.Get(ctx, "articles:all")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "42", string(raw))
}
