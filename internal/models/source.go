package models

import (
	"time"

	"gorm.io/datatypes"
)

// Source kinds supported by the ingestion pipeline.
const (
	SourceKindRSS = "rss"
	SourceKindAPI = "api"
)

// Source describes an upstream feed articles are aggregated from. Enabled
// carries no column default on purpose: gorm omits an explicit false on insert
// when a default is declared, so SourceService.Create always sets the value.
type Source struct {
	BaseModel
	Name        string            `gorm:"size:256;not null" json:"name"`
	FeedURL     string            `gorm:"size:2048;uniqueIndex:idx_sources_feed_url;not null" json:"feed_url"`
	Kind        string            `gorm:"size:32;default:rss" json:"kind"`
	Schedule    string            `gorm:"size:64" json:"schedule,omitempty"`
	Settings    datatypes.JSONMap `json:"settings,omitempty"`
	Enabled     bool              `gorm:"index" json:"enabled"`
	LastFetched *time.Time        `json:"last_fetched,omitempty"`
}
