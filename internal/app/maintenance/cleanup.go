package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kestrelworks/skimmer/internal/models"
	"github.com/kestrelworks/skimmer/pkg/logger"
)

const (
	defaultArchiveAfterDays = 90
	defaultCacheSpec        = "@hourly"
	defaultArchiveSpec      = "@daily"
)

// CachePurger removes expired cache entries from a persistent backend.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance: purging expired database cache
// rows and archiving articles past their retention window.
type Cleaner struct {
	db      *gorm.DB
	purger  CachePurger
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger
	enabled bool

	archiveAfterDays int
	cacheSchedule    string
	archiveSchedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithArchiveAfterDays adjusts how long articles stay active before archival.
func WithArchiveAfterDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.archiveAfterDays = days
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache purging.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithArchiveSchedule overrides the cron specification for article archival.
func WithArchiveSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.archiveSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding job being skipped.
func NewCleaner(db *gorm.DB, purger CachePurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:               db,
		purger:           purger,
		now:              time.Now,
		archiveAfterDays: defaultArchiveAfterDays,
		cacheSchedule:    defaultCacheSpec,
		archiveSchedule:  defaultArchiveSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.purger != nil || cleaner.db != nil

	return cleaner
}

// Start registers maintenance jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.purger != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if _, err := c.purger.PurgeExpired(context.Background()); err != nil {
				c.log.Warn("cache purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil && c.archiveAfterDays > 0 {
		if _, err := c.cron.AddFunc(c.archiveSchedule, func() {
			if _, err := c.ArchiveStaleArticles(context.Background()); err != nil {
				c.log.Warn("article archival failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured maintenance routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.purger != nil {
		if _, err := c.purger.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil && c.archiveAfterDays > 0 {
		if _, err := c.ArchiveStaleArticles(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// ArchiveStaleArticles marks articles older than the retention window as
// archived so listings and popularity views stop surfacing them.
func (c *Cleaner) ArchiveStaleArticles(ctx context.Context) (int64, error) {
	cutoff := c.now().AddDate(0, 0, -c.archiveAfterDays)

	result := c.db.WithContext(ctx).Model(&models.Article{}).
		Where("published_at < ? AND status <> ?", cutoff, models.ArticleStatusArchived).
		Update("status", models.ArticleStatusArchived)
	return result.RowsAffected, result.Error
}
