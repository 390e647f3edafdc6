package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"z-story-flow-api/internal/config"
	"z-story-flow-api/internal/interfaces/http/dto"
	"z-story-flow-api/pkg/logger"
)

// RateLimiter 限流器接口，Redis 与内存实现均满足
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Key(clientID, endpoint string) string
}

// RateLimit 按客户端 IP 与路由模板限流
func RateLimit(cfg config.RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	limit := cfg.RequestsPerSecond
	if limit <= 0 {
		limit = 20
	}

	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		key := limiter.Key(c.ClientIP(), c.Request.Method+" "+endpoint)

		allowed, err := limiter.Allow(c.Request.Context(), key, limit, time.Second)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		if !allowed {
			dto.TooManyRequests(c, "rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}
