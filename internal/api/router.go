package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelworks/skimmer/internal/handlers"
	"github.com/kestrelworks/skimmer/internal/middleware"
	"github.com/kestrelworks/skimmer/internal/services"
)

// Deps bundles everything the router needs.
type Deps struct {
	Articles *services.ArticleService
	Sources  *services.SourceService

	// Refresher enables POST /api/sources/:id/refresh when non-nil.
	Refresher handlers.SourceRefresher

	// Ingest enables POST /api/ingest/run when non-nil.
	Ingest handlers.IngestRunner

	// RateStore counts requests for the rate limiter. Nil disables limiting.
	RateStore       middleware.RateStore
	RateLimitMax    int
	RateLimitWindow time.Duration

	// AdminTokenHash guards mutating routes. Empty denies all writes.
	AdminTokenHash string

	// MetricsEnabled mounts the Prometheus endpoint at /metrics.
	MetricsEnabled bool
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Articles == nil {
		return nil, fmt.Errorf("article service must be provided")
	}
	if deps.Sources == nil {
		return nil, fmt.Errorf("source service must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.RateLimit(deps.RateStore, deps.RateLimitMax, deps.RateLimitWindow))

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	articleHandler := handlers.NewArticleHandler(deps.Articles)
	sourceHandler := handlers.NewSourceHandler(deps.Sources, deps.Refresher)

	requireAdmin := middleware.RequireAdmin(deps.AdminTokenHash)

	api := r.Group("/api")

	articles := api.Group("/articles")
	{
		articles.GET("", articleHandler.List)
		articles.GET("/popular", articleHandler.Popular)
		articles.GET("/:id", articleHandler.Get)
		articles.POST("", requireAdmin, articleHandler.Create)
		articles.PATCH("/:id", requireAdmin, articleHandler.Update)
		articles.DELETE("/:id", requireAdmin, articleHandler.Delete)
	}

	sources := api.Group("/sources")
	{
		sources.GET("", sourceHandler.List)
		sources.GET("/:id", sourceHandler.Get)
		sources.POST("", requireAdmin, sourceHandler.Create)
		sources.PATCH("/:id", requireAdmin, sourceHandler.Update)
		sources.DELETE("/:id", requireAdmin, sourceHandler.Delete)
		sources.POST("/:id/refresh", requireAdmin, sourceHandler.Refresh)
	}

	ingestHandler := handlers.NewIngestHandler(deps.Ingest)
	api.POST("/ingest/run", requireAdmin, ingestHandler.Run)

	if deps.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
