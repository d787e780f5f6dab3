package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"fleet-alerts/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitMiddleware throttles requests of one category per client. Limiter
// errors let the request through.
func RateLimitMiddleware(limiter ratelimit.Limiter, category string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		clientID := getClientID(c)

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), clientID, category)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("category", category), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":    false,
				"message":    fmt.Sprintf("Too many requests. Try again in %ds", seconds),
				"code":       "RATE_LIMIT_EXCEEDED",
				"retryAfter": seconds,
			})
			return
		}

		c.Next()
	}
}

// getClientID prefers the authenticated user and falls back to the client IP.
func getClientID(c *gin.Context) string {
	if id, ok := UserID(c); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + c.ClientIP()
}
