package ingest

import (
	"context"
	"time"

	"github.com/kestrelworks/skimmer/internal/models"
)

// Item is a single entry produced by a fetcher before it becomes an article.
type Item struct {
	Title       string
	URL         string
	Author      string
	Content     string
	Tags        []string
	Score       float64
	PublishedAt time.Time
}

// Fetcher retrieves raw items from an upstream source. Implementations are
// registered per source kind and must honour context cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, source models.Source) ([]Item, error)
}

// Summarizer condenses article content into a short summary. A nil summarizer
// leaves fetched articles in the pending state.
type Summarizer interface {
	Summarize(ctx context.Context, article models.Article) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, source models.Source) ([]Item, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, source models.Source) ([]Item, error) {
	return f(ctx, source)
}
