package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kestrelworks/skimmer/internal/cache"
	"github.com/kestrelworks/skimmer/internal/models"
	"github.com/kestrelworks/skimmer/pkg/logger"
)

var (
	// ErrSourceNotFound indicates the requested source does not exist.
	ErrSourceNotFound = errors.New("source service: source not found")
	// ErrDuplicateSource indicates a source with the same feed URL already exists.
	ErrDuplicateSource = errors.New("source service: source with this feed URL already exists")
	// ErrInvalidSourceKind indicates an unsupported source kind.
	ErrInvalidSourceKind = errors.New("source service: kind must be rss or api")
)

// SourceService manages upstream feed definitions.
type SourceService struct {
	db    *gorm.DB
	cache *cache.ReadThrough
	ttl   time.Duration
	log   *zap.Logger
}

// NewSourceService constructs a source service. ttl <= 0 falls back to
// DefaultListTTL.
func NewSourceService(db *gorm.DB, rt *cache.ReadThrough, ttl time.Duration) (*SourceService, error) {
	if db == nil {
		return nil, errors.New("source service: db is required")
	}
	if rt == nil {
		return nil, errors.New("source service: cache is required")
	}
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	return &SourceService{
		db:    db,
		cache: rt,
		ttl:   ttl,
		log:   logger.WithModule("sources"),
	}, nil
}

// List returns every source ordered by name. The listing is small and changes
// rarely, so it is cached as a single entry.
func (s *SourceService) List(ctx context.Context) ([]models.Source, error) {
	ctx = ensuredContext(ctx)

	key := cache.BuildKey(cache.NamespaceSources, nil)
	return cache.GetOrSet(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]models.Source, error) {
		var sources []models.Source
		err := s.db.WithContext(ctx).Order("LOWER(name)").Find(&sources).Error
		return sources, err
	})
}

// ListDue returns enabled sources, for the ingest scheduler. It reads the
// database directly so a cache problem can never stall ingestion.
func (s *SourceService) ListDue(ctx context.Context) ([]models.Source, error) {
	ctx = ensuredContext(ctx)

	var sources []models.Source
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("LOWER(name)").Find(&sources).Error
	return sources, err
}

// Get fetches a single source by id.
func (s *SourceService) Get(ctx context.Context, id string) (*models.Source, error) {
	ctx = ensuredContext(ctx)

	var source models.Source
	err := s.db.WithContext(ctx).First(&source, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &source, nil
}

// CreateSourceInput captures required fields when registering a feed.
type CreateSourceInput struct {
	Name     string
	FeedURL  string
	Kind     string
	Schedule string
	Settings map[string]any
	Enabled  *bool
}

// Create registers a new source and invalidates the source listing cache.
func (s *SourceService) Create(ctx context.Context, input CreateSourceInput) (*models.Source, error) {
	ctx = ensuredContext(ctx)

	input.Name = strings.TrimSpace(input.Name)
	input.FeedURL = strings.TrimSpace(input.FeedURL)
	if input.Name == "" || input.FeedURL == "" {
		return nil, errors.New("source service: name and feed_url are required")
	}

	kind := strings.ToLower(strings.TrimSpace(input.Kind))
	if kind == "" {
		kind = models.SourceKindRSS
	}
	if kind != models.SourceKindRSS && kind != models.SourceKindAPI {
		return nil, ErrInvalidSourceKind
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	source := models.Source{
		Name:     input.Name,
		FeedURL:  input.FeedURL,
		Kind:     kind,
		Schedule: strings.TrimSpace(input.Schedule),
		Settings: input.Settings,
		Enabled:  enabled,
	}

	if err := s.db.WithContext(ctx).Create(&source).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateSource
		}
		return nil, err
	}

	s.invalidate(ctx)
	return &source, nil
}

// UpdateSourceInput describes mutable source fields. A nil pointer indicates no change.
type UpdateSourceInput struct {
	Name     *string
	FeedURL  *string
	Kind     *string
	Schedule *string
	Settings *map[string]any
	Enabled  *bool
}

// Update applies the supplied changes and invalidates listing caches.
func (s *SourceService) Update(ctx context.Context, id string, input UpdateSourceInput) (*models.Source, error) {
	ctx = ensuredContext(ctx)

	var source models.Source
	err := s.db.WithContext(ctx).First(&source, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		source.Name = strings.TrimSpace(*input.Name)
	}
	if input.FeedURL != nil {
		source.FeedURL = strings.TrimSpace(*input.FeedURL)
	}
	if input.Kind != nil {
		kind := strings.ToLower(strings.TrimSpace(*input.Kind))
		if kind != models.SourceKindRSS && kind != models.SourceKindAPI {
			return nil, ErrInvalidSourceKind
		}
		source.Kind = kind
	}
	if input.Schedule != nil {
		source.Schedule = strings.TrimSpace(*input.Schedule)
	}
	if input.Settings != nil {
		source.Settings = *input.Settings
	}
	if input.Enabled != nil {
		source.Enabled = *input.Enabled
	}

	if err := s.db.WithContext(ctx).Save(&source).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateSource
		}
		return nil, err
	}

	s.invalidate(ctx)
	return &source, nil
}

// Delete removes a source together with its articles.
func (s *SourceService) Delete(ctx context.Context, id string) error {
	ctx = ensuredContext(ctx)

	id = strings.TrimSpace(id)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// articles reference the source, so they go first
		if err := tx.Delete(&models.Article{}, "source_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Source{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSourceNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// MarkFetched records a successful fetch time for a source.
func (s *SourceService) MarkFetched(ctx context.Context, id string, at time.Time) error {
	ctx = ensuredContext(ctx)

	return s.db.WithContext(ctx).Model(&models.Source{}).
		Where("id = ?", strings.TrimSpace(id)).
		Update("last_fetched", at).Error
}

// invalidate drops the source listing plus article listings, which embed
// source rows and filter on source_id.
func (s *SourceService) invalidate(ctx context.Context) {
	if _, err := s.cache.InvalidatePattern(ctx,
		cache.NamespaceSources+":*",
		cache.NamespaceArticles+":*",
		cache.NamespacePopular+":*",
	); err != nil {
		s.log.Warn("source cache invalidation incomplete", zap.Error(err))
	}
}
