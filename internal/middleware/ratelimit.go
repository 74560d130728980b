// File: internal/middleware/ratelimit.go
package middleware

import (
	"net/http"
	"strconv"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/platform/cache"

	"github.com/gin-gonic/gin"
)

var errTooManyRequests = common.NewAPIError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please slow down.")

// RateLimit throttles requests per authenticated user, or per client IP before authentication.
// A nil limiter disables throttling.
func RateLimit(limiter *cache.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := "ip:" + c.ClientIP()
		if userID := common.GetUserIDFromContext(c); userID != "" {
			key = "user:" + userID
		}

		res := limiter.Allow(c.Request.Context(), key)
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			common.RespondWithError(c, errTooManyRequests)
			return
		}
		c.Next()
	}
}
