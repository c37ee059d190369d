package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewel_backend/config"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter per client IP kept in Redis.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// fail open while redis is not connected
		if rl.client == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "ratelimit:" + c.ClientIP()

		count, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "RateLimiter", "incr counter", key, err)
			c.Next()
			return
		}
		if count == 1 {
			if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
				config.LogError(config.GetLogger(), "middlewares", "RateLimiter", "expire counter", key, err)
			}
		}
		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": gin.H{
				"kind":    "RATE_LIMITED",
				"message": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			}})
			return
		}
		c.Next()
	}
}
