package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kestrelworks/skimmer/internal/models"
	"github.com/kestrelworks/skimmer/internal/services"
	"github.com/kestrelworks/skimmer/pkg/logger"
	"github.com/kestrelworks/skimmer/pkg/metrics"
)

const defaultFetchSpec = "@every 15m"

// ErrNoFetcher indicates no fetcher is registered for a source kind.
var ErrNoFetcher = errors.New("ingest: no fetcher registered for source kind")

// Scheduler periodically pulls items from every enabled source, stores them as
// articles and summarizes pending ones.
type Scheduler struct {
	sources    *services.SourceService
	articles   *services.ArticleService
	fetchers   map[string]Fetcher
	summarizer Summarizer
	cron       *cron.Cron
	spec       string
	now        func() time.Time
	log        *zap.Logger
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithSchedule overrides the cron specification for the fetch loop.
func WithSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.spec = spec
		}
	}
}

// WithSummarizer attaches a summarizer run after each fetch.
func WithSummarizer(summarizer Summarizer) Option {
	return func(s *Scheduler) {
		s.summarizer = summarizer
	}
}

// WithNow overrides the clock used when stamping fetch times.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler constructs a scheduler over the supplied services and fetchers,
// keyed by source kind.
func NewScheduler(sources *services.SourceService, articles *services.ArticleService, fetchers map[string]Fetcher, opts ...Option) (*Scheduler, error) {
	if sources == nil || articles == nil {
		return nil, errors.New("ingest: source and article services are required")
	}
	if len(fetchers) == 0 {
		return nil, errors.New("ingest: at least one fetcher is required")
	}

	scheduler := &Scheduler{
		sources:  sources,
		articles: articles,
		fetchers: fetchers,
		spec:     defaultFetchSpec,
		now:      time.Now,
		log:      logger.WithModule("ingest"),
	}
	for _, opt := range opts {
		opt(scheduler)
	}

	if scheduler.cron == nil {
		scheduler.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return scheduler, nil
}

// Start registers the fetch loop with the cron scheduler and launches it.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.log.Warn("scheduled fetch incomplete", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce fetches every enabled source sequentially. A failing source does not
// stop the others; the errors are aggregated.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sources, err := s.sources.ListDue(ctx)
	if err != nil {
		return err
	}

	var errs error
	for _, source := range sources {
		if err := s.RunSource(ctx, source); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("source %s: %w", source.Name, err))
		}
	}
	return errs
}

// RunSource fetches a single source, stores its new items and records the
// fetch time. Items already stored (same URL) are skipped silently.
func (s *Scheduler) RunSource(ctx context.Context, source models.Source) error {
	fetcher, ok := s.fetchers[source.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoFetcher, source.Kind)
	}

	settings, err := DecodeSettings(source.Settings)
	if err != nil {
		metrics.IngestRuns.WithLabelValues("failure").Inc()
		return err
	}

	items, err := fetcher.Fetch(ctx, source)
	if err != nil {
		metrics.IngestRuns.WithLabelValues("failure").Inc()
		return err
	}

	stored := 0
	for _, item := range items {
		if item.Score < settings.MinScore {
			continue
		}
		if settings.MaxItems > 0 && stored >= settings.MaxItems {
			break
		}

		article, err := s.articles.Create(ctx, services.CreateArticleInput{
			SourceID:    source.ID,
			Title:       item.Title,
			URL:         item.URL,
			Author:      item.Author,
			Content:     item.Content,
			Tags:        mergeTags(item.Tags, settings.Tags),
			Score:       item.Score,
			PublishedAt: item.PublishedAt,
		})
		if errors.Is(err, services.ErrDuplicateArticle) {
			continue
		}
		if err != nil {
			metrics.IngestRuns.WithLabelValues("failure").Inc()
			return err
		}
		stored++

		if s.summarizer != nil {
			s.summarize(ctx, article)
		}
	}

	if err := s.sources.MarkFetched(ctx, source.ID, s.now()); err != nil {
		s.log.Warn("recording fetch time failed",
			zap.String("source", source.Name),
			zap.Error(err))
	}

	metrics.IngestRuns.WithLabelValues("success").Inc()
	s.log.Info("source fetched",
		zap.String("source", source.Name),
		zap.Int("fetched", len(items)),
		zap.Int("stored", stored))
	return nil
}

// summarize fills in the article summary. Failures leave the article pending
// for the next run rather than failing the fetch.
func (s *Scheduler) summarize(ctx context.Context, article *models.Article) {
	summary, err := s.summarizer.Summarize(ctx, *article)
	if err != nil {
		s.log.Warn("summarization failed",
			zap.String("article_id", article.ID),
			zap.Error(err))
		return
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return
	}

	status := models.ArticleStatusSummarized
	if _, err := s.articles.Update(ctx, article.ID, services.UpdateArticleInput{
		Summary: &summary,
		Status:  &status,
	}); err != nil {
		s.log.Warn("storing summary failed",
			zap.String("article_id", article.ID),
			zap.Error(err))
	}
}

func mergeTags(itemTags, sourceTags []string) []string {
	if len(sourceTags) == 0 {
		return itemTags
	}

	seen := make(map[string]struct{}, len(itemTags)+len(sourceTags))
	var out []string
	for _, tag := range append(append([]string{}, itemTags...), sourceTags...) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, exists := seen[tag]; exists {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
