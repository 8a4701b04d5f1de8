package admin

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed window counter per client address kept in redis.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Limit fails open when redis is unavailable.
func (rl *RateLimiter) Limit(name string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.client == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := fmt.Sprintf("rate_limit:%s:%s", name, c.ClientIP())

		count, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			slog.WarnContext(ctx, "Rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			rl.client.Expire(ctx, key, window)
		}
		if count > int64(limit) {
			ttl, _ := rl.client.TTL(ctx, key).Result()
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(ttl.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
