package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/civic-reports/pkg/common"
	"github.com/richxcame/civic-reports/pkg/logger"
	"github.com/richxcame/civic-reports/pkg/ratelimit"
	"go.uber.org/zap"
)

// RateLimiter takes a token for an identity.
type RateLimiter interface {
	Allow(ctx context.Context, endpoint, identity string, rule ratelimit.Rule) (ratelimit.Result, error)
}

// RateLimit limits requests per client IP. Limiter errors let the request
// through.
func RateLimit(limiter RateLimiter, endpoint string, rule ratelimit.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.Allow(c.Request.Context(), endpoint, c.ClientIP(), rule)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(result.Remaining, 0)))

		if !result.Allowed {
			retry := int(math.Ceil(result.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(retry, 1)))
			common.ErrorResponse(c, http.StatusTooManyRequests, "too many submissions, slow down")
			c.Abort()
			return
		}

		c.Next()
	}
}
