package models

import (
	"time"

	"gorm.io/datatypes"
)

// Article statuses as stored in the database.
const (
	ArticleStatusPending    = "pending"
	ArticleStatusSummarized = "summarized"
	ArticleStatusArchived   = "archived"
)

// Article is a single aggregated content item fetched from a source.
type Article struct {
	BaseModel
	SourceID    string                      `gorm:"size:64;index;not null" json:"source_id"`
	Title       string                      `gorm:"size:512;not null" json:"title"`
	URL         string                      `gorm:"size:2048;uniqueIndex:idx_articles_url;not null" json:"url"`
	Author      string                      `gorm:"size:256" json:"author,omitempty"`
	Summary     string                      `gorm:"type:text" json:"summary,omitempty"`
	Content     string                      `gorm:"type:text" json:"-"`
	Tags        datatypes.JSONSlice[string] `json:"tags,omitempty"`
	Score       float64                     `gorm:"index" json:"score"`
	Status      string                      `gorm:"size:32;index;default:pending" json:"status"`
	PublishedAt time.Time                   `gorm:"index" json:"published_at"`

	Source *Source `gorm:"foreignKey:SourceID" json:"source,omitempty"`
}
