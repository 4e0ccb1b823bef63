package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/kestrelworks/skimmer/pkg/errors"
	"github.com/kestrelworks/skimmer/pkg/logger"
	"github.com/kestrelworks/skimmer/pkg/response"
)

// RateLimit limits requests per (clientIP, route) within a fixed window,
// counting through the supplied store. When the store errors the request is
// allowed: a broken counter backend must not take the API down.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	log := logger.WithModule("ratelimit")

	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := "ratelimit:" + c.ClientIP() + "|" + c.FullPath()
		count, ttl, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			log.Warn("rate limit counter unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if count > maxRequests {
			c.Abort()
			response.Error(c, appErrors.ErrRateLimit)
			return
		}

		c.Next()
	}
}
