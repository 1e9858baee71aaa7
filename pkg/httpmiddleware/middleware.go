// Package httpmiddleware holds gin middleware shared across routes.
package httpmiddleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opskb/pkg/ratelimiter"
)

// RateLimit refuses requests with 429 once the limiter runs dry. Applied to
// the endpoints that fan out to the embedding or generative models, where
// unbounded concurrency translates directly into model overload.
func RateLimit(limiter ratelimiter.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
