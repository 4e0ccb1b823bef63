package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kestrelworks/skimmer/internal/cache"
	"github.com/kestrelworks/skimmer/internal/models"
	"github.com/kestrelworks/skimmer/internal/pagination"
	"github.com/kestrelworks/skimmer/pkg/logger"
	"github.com/kestrelworks/skimmer/pkg/metrics"
)

var (
	// ErrArticleNotFound indicates the requested article does not exist.
	ErrArticleNotFound = errors.New("article service: article not found")
	// ErrDuplicateArticle indicates an article with the same URL already exists.
	ErrDuplicateArticle = errors.New("article service: article with this URL already exists")
	// ErrInvalidSortField indicates the requested sort column is not listable.
	ErrInvalidSortField = errors.New("article service: unsupported sort field")
	// ErrInvalidPeriod indicates an unknown popularity window.
	ErrInvalidPeriod = errors.New("article service: unsupported period")
)

// DefaultListTTL bounds how long listing pages stay cached.
const DefaultListTTL = 5 * time.Minute

// Columns articles may be sorted by. Anything else is rejected before it can
// reach SQL.
var articleSortFields = map[string]struct{}{
	"published_at": {},
	"created_at":   {},
	"score":        {},
}

// Popularity windows accepted by Popular.
var popularPeriods = map[string]time.Duration{
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
}

// ArticleService manages aggregated articles: cached cursor-paginated
// listings, popularity views and CRUD with cache invalidation.
type ArticleService struct {
	db    *gorm.DB
	cache *cache.ReadThrough
	codec *pagination.Codec
	ttl   time.Duration
	log   *zap.Logger
}

// NewArticleService constructs an article service. ttl <= 0 falls back to
// DefaultListTTL.
func NewArticleService(db *gorm.DB, rt *cache.ReadThrough, codec *pagination.Codec, ttl time.Duration) (*ArticleService, error) {
	if db == nil {
		return nil, errors.New("article service: db is required")
	}
	if rt == nil {
		return nil, errors.New("article service: cache is required")
	}
	if codec == nil {
		return nil, errors.New("article service: cursor codec is required")
	}
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	return &ArticleService{
		db:    db,
		cache: rt,
		codec: codec,
		ttl:   ttl,
		log:   logger.WithModule("articles"),
	}, nil
}

// ListArticlesOptions controls filtering, ordering and paging of a listing.
type ListArticlesOptions struct {
	Cursor    string
	Limit     int
	SortBy    string
	SortOrder string
	SourceID  string
	Status    string
}

// List returns one page of articles. An absent, malformed, tampered or drifted
// cursor yields the first page; the total count is computed only there.
func (s *ArticleService) List(ctx context.Context, opts ListArticlesOptions) (*pagination.Page[models.Article], error) {
	ctx = ensuredContext(ctx)

	limit := pagination.NormalizeLimit(opts.Limit)
	sortBy := strings.TrimSpace(opts.SortBy)
	if sortBy == "" {
		sortBy = "published_at"
	}
	if _, ok := articleSortFields[sortBy]; !ok {
		return nil, ErrInvalidSortField
	}
	sortOrder := pagination.NormalizeSortOrder(opts.SortOrder)

	filters := map[string]string{}
	if sourceID := strings.TrimSpace(opts.SourceID); sourceID != "" {
		filters["source_id"] = sourceID
	}
	if status := strings.TrimSpace(opts.Status); status != "" {
		filters["status"] = status
	}

	payload := s.codec.Decode(opts.Cursor)
	if payload != nil {
		// A cursor minted under a different ordering or filter set cannot
		// produce a coherent boundary; restart from the first page.
		if !s.codec.ValidateSortCondition(payload, sortBy, sortOrder) ||
			!s.codec.ValidateFilters(payload, filters) {
			metrics.CursorRejections.WithLabelValues("drift").Inc()
			s.log.Warn("cursor dropped after sort or filter drift",
				zap.String("sort_by", sortBy),
				zap.String("sort_order", sortOrder))
			payload = nil
		}
	}

	params := map[string]string{
		"limit": fmt.Sprintf("%d", limit),
		"sort":  sortBy,
		"order": sortOrder,
	}
	for key, value := range filters {
		params[key] = value
	}
	if payload != nil {
		params["cursor"] = opts.Cursor
	}
	key := cache.BuildKey(cache.NamespaceArticles, params)

	return cache.GetOrSet(ctx, s.cache, key, s.ttl, func(ctx context.Context) (*pagination.Page[models.Article], error) {
		return s.fetchPage(ctx, payload, limit, sortBy, sortOrder, filters)
	})
}

func (s *ArticleService) fetchPage(ctx context.Context, payload *pagination.Payload, limit int, sortBy, sortOrder string, filters map[string]string) (*pagination.Page[models.Article], error) {
	query := s.db.WithContext(ctx).Model(&models.Article{})
	for column, value := range filters {
		query = query.Where(column+" = ?", value)
	}

	if payload != nil {
		predicate, err := s.codec.BuildPredicate(payload, pagination.DirectionForward)
		if err != nil {
			return nil, err
		}
		query = predicate.Apply(query)
	}

	direction := "ASC"
	if sortOrder == pagination.SortDesc {
		direction = "DESC"
	}

	var rows []models.Article
	err := query.
		Order(fmt.Sprintf("%s %s, %s %s", sortBy, direction, pagination.TiebreakKey, direction)).
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	page, err := pagination.Assemble(s.codec, rows, pagination.AssembleParams{
		Limit:       limit,
		SortBy:      sortBy,
		SortOrder:   sortOrder,
		Filters:     filters,
		HasPrevious: payload != nil,
	}, articleBoundary(sortBy))
	if err != nil {
		return nil, err
	}

	// Counting the full result set is only worth it once, on the first page.
	if payload == nil {
		count := s.db.WithContext(ctx).Model(&models.Article{})
		for column, value := range filters {
			count = count.Where(column+" = ?", value)
		}
		var total int64
		if err := count.Count(&total).Error; err != nil {
			return nil, err
		}
		page.PageInfo.TotalCount = &total
	}

	return page, nil
}

// articleBoundary extracts the cursor values for an article under the given
// sort column. Timestamps are serialized explicitly so the boundary survives a
// JSON round trip byte for byte.
func articleBoundary(sortBy string) func(models.Article) map[string]any {
	return func(a models.Article) map[string]any {
		values := map[string]any{pagination.TiebreakKey: a.ID}
		switch sortBy {
		case "published_at":
			values[sortBy] = a.PublishedAt.UTC().Format(time.RFC3339Nano)
		case "created_at":
			values[sortBy] = a.CreatedAt.UTC().Format(time.RFC3339Nano)
		case "score":
			values[sortBy] = a.Score
		}
		return values
	}
}

// Popular returns the highest scored articles published inside the period
// (day, week or month). Results are cached under their own namespace so
// article writes can invalidate them independently of listings.
func (s *ArticleService) Popular(ctx context.Context, period string, limit int) ([]models.Article, error) {
	ctx = ensuredContext(ctx)

	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = "day"
	}
	window, ok := popularPeriods[period]
	if !ok {
		return nil, ErrInvalidPeriod
	}
	limit = pagination.NormalizeLimit(limit)

	key := cache.BuildKey(cache.NamespacePopular, map[string]string{
		"period": period,
		"limit":  fmt.Sprintf("%d", limit),
	})

	return cache.GetOrSet(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]models.Article, error) {
		var rows []models.Article
		err := s.db.WithContext(ctx).
			Where("published_at >= ? AND status <> ?", time.Now().Add(-window), models.ArticleStatusArchived).
			Order("score DESC, id DESC").
			Limit(limit).
			Find(&rows).Error
		return rows, err
	})
}

// Get fetches a single article with its source.
func (s *ArticleService) Get(ctx context.Context, id string) (*models.Article, error) {
	ctx = ensuredContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrArticleNotFound
	}

	var article models.Article
	err := s.db.WithContext(ctx).Preload("Source").First(&article, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// CreateArticleInput captures required fields when storing a new article.
type CreateArticleInput struct {
	SourceID    string
	Title       string
	URL         string
	Author      string
	Summary     string
	Content     string
	Tags        []string
	Score       float64
	Status      string
	PublishedAt time.Time
}

// Create stores a new article and invalidates listing caches.
func (s *ArticleService) Create(ctx context.Context, input CreateArticleInput) (*models.Article, error) {
	ctx = ensuredContext(ctx)

	input.SourceID = strings.TrimSpace(input.SourceID)
	input.Title = strings.TrimSpace(input.Title)
	input.URL = strings.TrimSpace(input.URL)
	if input.SourceID == "" || input.Title == "" || input.URL == "" {
		return nil, errors.New("article service: source_id, title and url are required")
	}

	status := input.Status
	if status == "" {
		status = models.ArticleStatusPending
	}
	publishedAt := input.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = time.Now()
	}

	article := models.Article{
		SourceID:    input.SourceID,
		Title:       input.Title,
		URL:         input.URL,
		Author:      strings.TrimSpace(input.Author),
		Summary:     input.Summary,
		Content:     input.Content,
		Tags:        input.Tags,
		Score:       input.Score,
		Status:      status,
		PublishedAt: publishedAt,
	}

	if err := s.db.WithContext(ctx).Create(&article).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateArticle
		}
		return nil, err
	}

	s.invalidate(ctx)
	return &article, nil
}

// UpdateArticleInput describes mutable article fields. A nil pointer indicates no change.
type UpdateArticleInput struct {
	Title       *string
	Author      *string
	Summary     *string
	Content     *string
	Tags        *[]string
	Score       *float64
	Status      *string
	PublishedAt *time.Time
}

// Update applies the supplied changes and invalidates listing caches.
func (s *ArticleService) Update(ctx context.Context, id string, input UpdateArticleInput) (*models.Article, error) {
	ctx = ensuredContext(ctx)

	var article models.Article
	err := s.db.WithContext(ctx).First(&article, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		article.Title = strings.TrimSpace(*input.Title)
	}
	if input.Author != nil {
		article.Author = strings.TrimSpace(*input.Author)
	}
	if input.Summary != nil {
		article.Summary = *input.Summary
	}
	if input.Content != nil {
		article.Content = *input.Content
	}
	if input.Tags != nil {
		article.Tags = *input.Tags
	}
	if input.Score != nil {
		article.Score = *input.Score
	}
	if input.Status != nil {
		article.Status = *input.Status
	}
	if input.PublishedAt != nil {
		article.PublishedAt = *input.PublishedAt
	}

	if err := s.db.WithContext(ctx).Save(&article).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateArticle
		}
		return nil, err
	}

	s.invalidate(ctx)
	return &article, nil
}

// Delete removes an article and invalidates listing caches.
func (s *ArticleService) Delete(ctx context.Context, id string) error {
	ctx = ensuredContext(ctx)

	result := s.db.WithContext(ctx).Delete(&models.Article{}, "id = ?", strings.TrimSpace(id))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrArticleNotFound
	}

	s.invalidate(ctx)
	return nil
}

// invalidate drops every cached article listing and popularity view. Failures
// are logged, not returned: a stale entry expires by TTL anyway and must not
// fail the write that triggered it.
func (s *ArticleService) invalidate(ctx context.Context) {
	if _, err := s.cache.InvalidatePattern(ctx,
		cache.NamespaceArticles+":*",
		cache.NamespacePopular+":*",
	); err != nil {
		s.log.Warn("listing cache invalidation incomplete", zap.Error(err))
	}
}
