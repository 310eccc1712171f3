package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/courtnotify/pkg/errors"
	"github.com/charlesng35/courtnotify/pkg/logger"
	"github.com/charlesng35/courtnotify/pkg/response"
)

var errTooManyRequests = errors.New("RESOURCE_EXHAUSTED", "Too many notification requests", http.StatusTooManyRequests)

// RateLimit limits requests per caller and route within a fixed window. Callers
// are identified by the authenticated id, falling back to the client IP. A
// failing store lets requests through.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		subject := CallerID(c)
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}
		key := "ratelimit:" + subject + "|" + c.FullPath()

		count, ttl, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			logger.WithModule("http").Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, maxRequests-count)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if count > maxRequests {
			response.Error(c, errTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
