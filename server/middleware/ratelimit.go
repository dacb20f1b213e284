package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/qprofile/errors"
	"github.com/kbukum/qprofile/resilience"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Limiter holds one token bucket per key.
	Limiter *resilience.KeyedRateLimiter
	// KeyFunc extracts the rate limit key. Defaults to the client IP.
	KeyFunc func(*gin.Context) string
	// RetryAfterSeconds is sent in the Retry-After header when limited.
	RetryAfterSeconds int
}

// RateLimit rejects requests with 429 once the key's bucket is empty.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPBasedKey
	}
	if cfg.RetryAfterSeconds <= 0 {
		cfg.RetryAfterSeconds = 1
	}
	return func(c *gin.Context) {
		if cfg.Limiter.Allow(cfg.KeyFunc(c)) {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(cfg.RetryAfterSeconds))
		err := apperrors.RateLimited()
		c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
	}
}

// IPBasedKey extracts the client IP for use as a rate limit key.
func IPBasedKey(c *gin.Context) string {
	return c.ClientIP()
}
