package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kestrelworks/skimmer/internal/cache"
	"github.com/kestrelworks/skimmer/internal/database/testutil"
	"github.com/kestrelworks/skimmer/internal/models"
	"github.com/kestrelworks/skimmer/internal/pagination"
)

func newTestArticleService(t *testing.T) (*ArticleService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	rt := cache.NewReadThrough(cache.NewMemoryStore())
	codec, err := pagination.NewCodec("test-cursor-secret", time.Hour)
	require.NoError(t, err)

	svc, err := NewArticleService(db, rt, codec, time.Minute)
	require.NoError(t, err)
	return svc, db
}

func seedArticles(t *testing.T, db *gorm.DB, count int) {
	t.Helper()

	source := models.Source{Name: "seed", FeedURL: "https://example.com/seed.xml"}
	require.NoError(t, db.Create(&source).Error)

	for i := 1; i <= count; i++ {
		article := models.Article{
			SourceID:    source.ID,
			Title:       fmt.Sprintf("article %d", i),
			URL:         fmt.Sprintf("https://example.com/articles/%d", i),
			Score:       float64(i),
			Status:      models.ArticleStatusSummarized,
			PublishedAt: time.Now().Add(-time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&article).Error)
	}
}

func TestArticleListPaginatesWithCursor(t *testing.T) {
	svc, db := newTestArticleService(t)
	seedArticles(t, db, 5)
	ctx := context.Background()

	first, err := svc.List(ctx, ListArticlesOptions{Limit: 2, SortBy: "score", SortOrder: "desc"})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.Equal(t, float64(5), first.Items[0].Score)
	require.Equal(t, float64(4), first.Items[1].Score)
	require.True(t, first.PageInfo.HasNextPage)
	require.False(t, first.PageInfo.HasPreviousPage)
	require.NotNil(t, first.PageInfo.TotalCount)
	require.EqualValues(t, 5, *first.PageInfo.TotalCount)

	second, err := svc.List(ctx, ListArticlesOptions{
		Cursor: first.PageInfo.EndCursor, Limit: 2, SortBy: "score", SortOrder: "desc",
	})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	require.Equal(t, float64(3), second.Items[0].Score)
	require.Equal(t, float64(2), second.Items[1].Score)
	require.True(t, second.PageInfo.HasNextPage)
	require.True(t, second.PageInfo.HasPreviousPage)
	require.Nil(t, second.PageInfo.TotalCount)

	third, err := svc.List(ctx, ListArticlesOptions{
		Cursor: second.PageInfo.EndCursor, Limit: 2, SortBy: "score", SortOrder: "desc",
	})
	require.NoError(t, err)
	require.Len(t, third.Items, 1)
	require.Equal(t, float64(1), third.Items[0].Score)
	require.False(t, third.PageInfo.HasNextPage)
}

func TestArticleListRejectsUnknownSortField(t *testing.T) {
	svc, _ := newTestArticleService(t)

	_, err := svc.List(context.Background(), ListArticlesOptions{SortBy: "title; DROP TABLE articles"})
	require.ErrorIs(t, err, ErrInvalidSortField)
}

func TestArticleListDriftedCursorFallsBackToFirstPage(t *testing.T) {
	svc, db := newTestArticleService(t)
	seedArticles(t, db, 4)
	ctx := context.Background()

	descPage, err := svc.List(ctx, ListArticlesOptions{Limit: 2, SortBy: "score", SortOrder: "desc"})
	require.NoError(t, err)
	require.NotEmpty(t, descPage.PageInfo.EndCursor)

	// a desc cursor replayed against an asc listing must not shape the page
	ascPage, err := svc.List(ctx, ListArticlesOptions{
		Cursor: descPage.PageInfo.EndCursor, Limit: 2, SortBy: "score", SortOrder: "asc",
	})
	require.NoError(t, err)
	require.Len(t, ascPage.Items, 2)
	require.Equal(t, float64(1), ascPage.Items[0].Score)
	require.False(t, ascPage.PageInfo.HasPreviousPage)
	require.NotNil(t, ascPage.PageInfo.TotalCount)
}

func TestArticleListGarbageCursorFallsBackToFirstPage(t *testing.T) {
	svc, db := newTestArticleService(t)
	seedArticles(t, db, 3)

	page, err := svc.List(context.Background(), ListArticlesOptions{
		Cursor: "not-a-cursor", Limit: 2, SortBy: "score", SortOrder: "desc",
	})
	require.NoError(t, err)
	require.Equal(t, float64(3), page.Items[0].Score)
	require.False(t, page.PageInfo.HasPreviousPage)
}

func TestArticleListFiltersRecordedInCursor(t *testing.T) {
	svc, db := newTestArticleService(t)
	seedArticles(t, db, 3)
	ctx := context.Background()

	var source models.Source
	require.NoError(t, db.First(&source).Error)

	page, err := svc.List(ctx, ListArticlesOptions{Limit: 2, SourceID: source.ID, SortBy: "score"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	// replaying the cursor under a different filter restarts from page one
	other, err := svc.List(ctx, ListArticlesOptions{
		Cursor: page.PageInfo.EndCursor, Limit: 2, SourceID: "other-source", SortBy: "score",
	})
	require.NoError(t, err)
	require.False(t, other.PageInfo.HasPreviousPage)
	require.Empty(t, other.Items)
}

func TestArticleCreateRejectsDuplicateURL(t *testing.T) {
	svc, db := newTestArticleService(t)
	seedArticles(t, db, 1)
	ctx := context.Background()

	var source models.Source
	require.NoError(t, db.First(&source).Error)

	_, err := svc.Create(ctx, CreateArticleInput{
		SourceID: source.ID,
		Title:    "duplicate",
		URL:      "https://example.com/articles/1",
	})
	require.ErrorIs(t, err, ErrDuplicateArticle)
}

func TestArticleCreateInvalidatesListings(t *testing.T) {
	svc, db := newTestArticleService(t)
	seedArticles(t, db, 2)
	ctx := context.Background()

	before, err := svc.List(ctx, ListArticlesOptions{SortBy: "score"})
	require.NoError(t, err)
	require.Len(t, before.Items, 2)

	var source models.Source
	require.NoError(t, db.First(&source).Error)

	_, err = svc.Create(ctx, CreateArticleInput{
		SourceID: source.ID,
		Title:    "fresh",
		URL:      "https://example.com/articles/fresh",
		Score:    10,
	})
	require.NoError(t, err)

	after, err := svc.List(ctx, ListArticlesOptions{SortBy: "score"})
	require.NoError(t, err)
	require.Len(t, after.Items, 3)
}

func TestArticleUpdateAndDelete(t *testing.T) {
	svc, db := newTestArticleService(t)
	seedArticles(t, db, 1)
	ctx := context.Background()

	var article models.Article
	require.NoError(t, db.First(&article).Error)
	id := article.ID

	title := "rewritten"
	status := models.ArticleStatusArchived
	updated, err := svc.Update(ctx, id, UpdateArticleInput{Title: &title, Status: &status})
	require.NoError(t, err)
	require.Equal(t, "rewritten", updated.Title)
	require.Equal(t, models.ArticleStatusArchived, updated.Status)

	require.NoError(t, svc.Delete(ctx, id))
	require.ErrorIs(t, svc.Delete(ctx, id), ErrArticleNotFound)

	_, err = svc.Get(ctx, id)
	require.ErrorIs(t, err, ErrArticleNotFound)
}

func TestArticlePopular(t *testing.T) {
	svc, db := newTestArticleService(t)
	ctx := context.Background()

	source := models.Source{Name: "seed", FeedURL: "https://example.com/seed.xml"}
	require.NoError(t, db.Create(&source).Error)

	rows := []models.Article{
		{SourceID: source.ID, Title: "recent high", URL: "https://example.com/a", Score: 9, PublishedAt: time.Now().Add(-time.Hour), Status: models.ArticleStatusSummarized},
		{SourceID: source.ID, Title: "recent low", URL: "https://example.com/b", Score: 2, PublishedAt: time.Now().Add(-2 * time.Hour), Status: models.ArticleStatusSummarized},
		{SourceID: source.ID, Title: "stale", URL: "https://example.com/c", Score: 99, PublishedAt: time.Now().Add(-40 * 24 * time.Hour), Status: models.ArticleStatusSummarized},
		{SourceID: source.ID, Title: "archived", URL: "https://example.com/d", Score: 50, PublishedAt: time.Now().Add(-time.Hour), Status: models.ArticleStatusArchived},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	popular, err := svc.Popular(ctx, "day", 10)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	require.Equal(t, "recent high", popular[0].Title)
	require.Equal(t, "recent low", popular[1].Title)

	_, err = svc.Popular(ctx, "fortnight", 10)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}
