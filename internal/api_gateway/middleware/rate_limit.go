package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/carebridge-wallet-ledger/internal/platform/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimiter counts calls per key
type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// RateLimit throttles per owner, or per client IP before authentication.
// A limiter outage lets the request through.
func RateLimit(limiter RateLimiter, scope string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := scope + ":ip:" + c.ClientIP()
		if ownerID, ok := GetOwnerID(c); ok {
			key = scope + ":owner:" + ownerID.String()
		}

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request",
				"error", err,
				"key", key,
				"correlation_id", GetCorrelationID(c),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			abortWithError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again later")
			return
		}
		c.Next()
	}
}
