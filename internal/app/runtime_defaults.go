package app

import (
	"fmt"
	"strings"

	"github.com/kestrelworks/skimmer/pkg/crypto"
)

const (
	cursorSecretBytes = 48
	adminTokenBytes   = 32
)

// RuntimeDefaults records secrets generated at startup so callers can log the
// event, and surface one-time values, without persisting them.
type RuntimeDefaults struct {
	Generated map[string]bool

	// AdminToken holds the plaintext of a freshly generated admin token. It is
	// only set when the token was generated this run; the config retains just
	// the hash.
	AdminToken string
}

// ApplyRuntimeDefaults fills in missing secrets outside production. Production
// deployments must configure them explicitly: a generated cursor secret would
// silently invalidate every outstanding cursor on restart, and a generated
// admin token would be unknowable to operators.
func ApplyRuntimeDefaults(cfg *Config) (*RuntimeDefaults, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	defaults := &RuntimeDefaults{Generated: make(map[string]bool)}

	if strings.TrimSpace(cfg.Pagination.CursorSecret) == "" {
		if cfg.Server.IsProduction() {
			return nil, fmt.Errorf("pagination.cursor_secret must be set in production")
		}
		secret, err := crypto.GenerateToken(cursorSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate cursor secret: %w", err)
		}
		cfg.Pagination.CursorSecret = secret
		defaults.Generated["pagination.cursor_secret"] = true
	}

	if strings.TrimSpace(cfg.Admin.TokenHash) == "" {
		if cfg.Server.IsProduction() {
			return nil, fmt.Errorf("admin.token_hash must be set in production")
		}
		token, err := crypto.GenerateToken(adminTokenBytes)
		if err != nil {
			return nil, fmt.Errorf("generate admin token: %w", err)
		}
		hash, err := crypto.HashToken(token)
		if err != nil {
			return nil, fmt.Errorf("hash admin token: %w", err)
		}
		cfg.Admin.TokenHash = hash
		defaults.AdminToken = token
		defaults.Generated["admin.token_hash"] = true
	}

	return defaults, nil
}
