package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/healthmesh/agent-coordination/internal/repository"
)

// RateLimitMiddleware limits requests per client IP within a sliding window
// backed by Redis counters.
func RateLimitMiddleware(redisRepo *repository.RedisRepository, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rate_limit:" + c.ClientIP()

		count, err := redisRepo.CountWithin(c, key, window)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to check rate limit"})
			return
		}
		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}
