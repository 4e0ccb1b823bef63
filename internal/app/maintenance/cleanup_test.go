package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/skimmer/internal/cache"
	"github.com/kestrelworks/skimmer/internal/database/testutil"
	"github.com/kestrelworks/skimmer/internal/models"
)

func TestRunOncePurgesExpiredCacheEntries(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()

	expired := models.CacheEntry{
		Key:       "articles:all",
		Value:     []byte("stale"),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	live := models.CacheEntry{
		Key:       "sources:all",
		Value:     []byte("fresh"),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(&expired).Error)
	require.NoError(t, db.Create(&live).Error)

	cleaner := NewCleaner(db, cache.NewDatabaseStore(db))
	require.NoError(t, cleaner.RunOnce(ctx))

	var keys []string
	require.NoError(t, db.Model(&models.CacheEntry{}).Pluck("key", &keys).Error)
	require.Equal(t, []string{"sources:all"}, keys)
}

func TestRunOnceArchivesStaleArticles(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()

	source := models.Source{Name: "seed", FeedURL: "https://example.com/rss"}
	require.NoError(t, db.Create(&source).Error)

	old := models.Article{
		SourceID:    source.ID,
		Title:       "ancient",
		URL:         "https://example.com/old",
		Status:      models.ArticleStatusSummarized,
		PublishedAt: time.Now().AddDate(0, 0, -120),
	}
	recent := models.Article{
		SourceID:    source.ID,
		Title:       "current",
		URL:         "https://example.com/new",
		Status:      models.ArticleStatusSummarized,
		PublishedAt: time.Now(),
	}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&recent).Error)

	cleaner := NewCleaner(db, nil, WithArchiveAfterDays(90))
	archived, err := cleaner.ArchiveStaleArticles(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, archived)

	var gotOld models.Article
	require.NoError(t, db.First(&gotOld, "url = ?", "https://example.com/old").Error)
	require.Equal(t, models.ArticleStatusArchived, gotOld.Status)

	// a fresh struct, or gorm folds the previous primary key into the query
	var gotNew models.Article
	require.NoError(t, db.First(&gotNew, "url = ?", "https://example.com/new").Error)
	require.Equal(t, models.ArticleStatusSummarized, gotNew.Status)
}

func TestCleanerDisabledWithoutDependencies(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
	cleaner.Stop()
}
