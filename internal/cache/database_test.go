package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/skimmer/internal/database/testutil"
)

func TestDatabaseStoreSetGet(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "articles:all")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, "articles:all", []byte(`{"n":1}`), time.Minute))

	value, found, err := store.Get(ctx, "articles:all")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"n":1}`, string(value))

	// overwrite replaces the previous value
	require.NoError(t, store.Set(ctx, "articles:all", []byte(`{"n":2}`), time.Minute))
	value, found, err = store.Get(ctx, "articles:all")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"n":2}`, string(value))
}

func TestDatabaseStoreExpiredRowsAreMisses(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	require.NoError(t, store.Set(ctx, "articles:all", []byte("v"), time.Minute))

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, found, err := store.Get(ctx, "articles:all")
	require.NoError(t, err)
	require.False(t, found)

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)
}

func TestDatabaseStoreDeleteByPattern(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	for _, key := range []string{
		"articles:all",
		"articles:limit=20&sort=score",
		"popular:period=day",
	} {
		require.NoError(t, store.Set(ctx, key, []byte("v"), time.Minute))
	}

	removed, err := store.DeleteByPattern(ctx, "articles:*")
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	_, found, err := store.Get(ctx, "popular:period=day")
	require.NoError(t, err)
	require.True(t, found)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "ratelimit:client", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	count, _, err = store.IncrementWithTTL(ctx, "ratelimit:client", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestGlobToLike(t *testing.T) {
	require.Equal(t, "articles:%", globToLike("articles:*"))
	require.Equal(t, `articles:limit=20\%`, globToLike("articles:limit=20%"))
	require.Equal(t, `a\_b:%`, globToLike("a_b:*"))
	require.Equal(t, `a\\b`, globToLike(`a\b`))
}
