package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/skimmer/internal/api"
	"github.com/kestrelworks/skimmer/internal/app"
	"github.com/kestrelworks/skimmer/internal/app/maintenance"
	"github.com/kestrelworks/skimmer/internal/cache"
	"github.com/kestrelworks/skimmer/internal/database"
	"github.com/kestrelworks/skimmer/internal/ingest"
	"github.com/kestrelworks/skimmer/internal/middleware"
	"github.com/kestrelworks/skimmer/internal/pagination"
	"github.com/kestrelworks/skimmer/internal/services"
	"github.com/kestrelworks/skimmer/pkg/logger"
)

// fetchers returns the fetcher implementations available to this build, keyed
// by source kind. Deployments register concrete feed and API fetchers here;
// with none registered the ingest loop stays off and /api/ingest/run reports
// unavailable.
func fetchers() map[string]ingest.Fetcher {
	return map[string]ingest.Fetcher{}
}

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     cache.Store
	Cleaner   *maintenance.Cleaner
	Scheduler *ingest.Scheduler
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, cache, services, background jobs
// and the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	cacheStore := cache.Store(dbStore)
	if stack.Redis != nil {
		cacheStore = stack.Redis
	}
	readThrough := cache.NewReadThrough(cacheStore)

	codec, err := pagination.NewCodec(cfg.Pagination.CursorSecret, cfg.Pagination.CursorMaxAge)
	if err != nil {
		return nil, fmt.Errorf("initialise cursor codec: %w", err)
	}

	articleSvc, err := services.NewArticleService(stack.DB, readThrough, codec, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("initialise article service: %w", err)
	}

	sourceSvc, err := services.NewSourceService(stack.DB, readThrough, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("initialise source service: %w", err)
	}

	// The purger targets the database store even when Redis serves reads:
	// Redis expires its own keys, the cache_entries table does not.
	stack.Cleaner = maintenance.NewCleaner(stack.DB, dbStore)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	registered := fetchers()
	if cfg.Ingest.Enabled && len(registered) > 0 {
		stack.Scheduler, err = ingest.NewScheduler(sourceSvc, articleSvc, registered,
			ingest.WithSchedule(cfg.Ingest.Schedule))
		if err != nil {
			return nil, fmt.Errorf("initialise ingest scheduler: %w", err)
		}
		if err := stack.Scheduler.Start(); err != nil {
			return nil, fmt.Errorf("start ingest scheduler: %w", err)
		}
	} else {
		log.Info("ingest loop disabled",
			zap.Bool("enabled", cfg.Ingest.Enabled),
			zap.Int("fetchers", len(registered)))
	}

	if cfg.Server.RateLimit.Enabled {
		stack.RateStore = middleware.NewStoreRateStore(cacheStore)
	}

	deps := api.Deps{
		Articles:        articleSvc,
		Sources:         sourceSvc,
		RateStore:       stack.RateStore,
		RateLimitMax:    cfg.Server.RateLimit.MaxRequests,
		RateLimitWindow: cfg.Server.RateLimit.Window,
		AdminTokenHash:  cfg.Admin.TokenHash,
		MetricsEnabled:  cfg.Monitoring.Prometheus.Enabled,
	}
	if stack.Scheduler != nil {
		deps.Refresher = stack.Scheduler
		deps.Ingest = stack.Scheduler
	}

	stack.Router, err = api.NewRouter(deps)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		<-s.Scheduler.Stop().Done()
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if rc, ok := s.Redis.(*cache.RedisClient); ok && rc != nil {
		if err := rc.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.Connection()

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
