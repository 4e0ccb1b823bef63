package app

import (
	"strings"

	"github.com/kestrelworks/skimmer/internal/database"
)

// Connection converts the application settings into the database package representation.
func (c DatabaseConfig) Connection() database.Config {
	return database.Config{
		Driver:   strings.TrimSpace(c.Driver),
		Path:     strings.TrimSpace(c.Path),
		DSN:      strings.TrimSpace(c.DSN),
		Host:     strings.TrimSpace(c.Host),
		Port:     c.Port,
		Name:     strings.TrimSpace(c.Name),
		User:     strings.TrimSpace(c.User),
		Password: c.Password,
		Options:  c.Options,
	}
}
