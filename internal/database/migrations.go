package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kestrelworks/skimmer/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Source{},
		&models.Article{},
		&models.CacheEntry{},
	)
}

// AutoMigrateAndSeed convenience helper used during application start-up.
func AutoMigrateAndSeed(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := SeedData(db); err != nil {
		return fmt.Errorf("seed data: %w", err)
	}

	return nil
}

// SeedData populates default sources so a fresh install has something to fetch.
func SeedData(db *gorm.DB) error {
	sources := []models.Source{
		{
			BaseModel: models.BaseModel{ID: "hn-frontpage"},
			Name:      "Hacker News Frontpage",
			FeedURL:   "https://hnrss.org/frontpage",
			Kind:      models.SourceKindRSS,
			Schedule:  "@every 15m",
			Enabled:   true,
		},
		{
			BaseModel: models.BaseModel{ID: "lobsters"},
			Name:      "Lobsters",
			FeedURL:   "https://lobste.rs/rss",
			Kind:      models.SourceKindRSS,
			Schedule:  "@every 30m",
			Enabled:   true,
		},
	}

	for _, source := range sources {
		if err := db.Where(models.Source{FeedURL: source.FeedURL}).Attrs(source).FirstOrCreate(&models.Source{}).Error; err != nil {
			return err
		}
	}

	return nil
}
