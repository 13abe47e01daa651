package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cutekitten000/backlog/cache"
	"github.com/cutekitten000/backlog/utils"
	"github.com/gin-gonic/gin"
)

// RateLimit is a fixed-window limiter kept in Redis, keyed by signed-in
// user or by client IP. Requests pass through when Redis is unavailable.
func RateLimit(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := scope + ":ip:" + c.ClientIP()
		if uid := c.GetString(UserIDKey); uid != "" {
			key = scope + ":user:" + uid
		}

		allowed, remaining, err := cache.CheckRateLimit(key, maxRequests, window)
		if err != nil {
			utils.Log.WithField("error", err.Error()).Warn("Rate limit check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Window", window.String())

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": fmt.Sprintf("Too many requests. Retry after %v", window),
			})
			return
		}
		c.Next()
	}
}
