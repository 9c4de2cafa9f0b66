package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/cache"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
)

// WebhookRateLimiter throttles inbound webhooks per client IP through Redis.
// With no cache configured every request passes.
type WebhookRateLimiter struct {
	cache  *cache.RedisCache
	limit  int64
	window time.Duration
	logger *logger.Logger
}

// NewWebhookRateLimiter creates a WebhookRateLimiter. cache may be nil.
func NewWebhookRateLimiter(c *cache.RedisCache, limit int64, window time.Duration, log *logger.Logger) *WebhookRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WebhookRateLimiter{cache: c, limit: limit, window: window, logger: log}
}

// Middleware enforces the limit keyed by the client IP of the request; the
// body, including its sender field, is not inspected.
func (rl *WebhookRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.cache == nil {
			c.Next()
			return
		}

		key := "webhook:rl:" + c.ClientIP()
		ok, err := rl.cache.Allow(c.Request.Context(), key, rl.limit, rl.window)
		if err != nil {
			// Rate limiting is best-effort; a cache outage never blocks events.
			rl.logger.Warn("rate limit check failed, allowing request", "error", err)
			c.Next()
			return
		}
		if !ok {
			respondError(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}
