package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/skimmer/pkg/crypto"
	appErrors "github.com/kestrelworks/skimmer/pkg/errors"
	"github.com/kestrelworks/skimmer/pkg/response"
)

// RequireAdmin guards mutating routes with a bearer token checked against its
// bcrypt hash. An empty hash denies everything; runtime defaults provision a
// token outside production so the guard is always active.
func RequireAdmin(hashedToken string) gin.HandlerFunc {
	hashedToken = strings.TrimSpace(hashedToken)

	return func(c *gin.Context) {
		if hashedToken == "" {
			c.Abort()
			response.Error(c, appErrors.ErrForbidden)
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.Abort()
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}

		if !crypto.VerifyToken(hashedToken, strings.TrimSpace(token)) {
			c.Abort()
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}

		c.Next()
	}
}
