// Package ratelimit implements IP-based rate limiting for the HTTP surface
// and WebSocket admission. The server is single-instance (rooms die with the
// process), so the in-memory limiter store suffices.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/duocall/signaling/internal/v1/logging"
	"github.com/duocall/signaling/internal/v1/metrics"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RateLimiter holds the limiter instances for the two admission points.
type RateLimiter struct {
	api   *limiter.Limiter // plain HTTP endpoints, keyed by client IP
	wsIP  *limiter.Limiter // WebSocket upgrades, keyed by client IP
	store limiter.Store
}

// New parses the formatted rates (e.g. "100-M" for 100 per minute) and
// builds the limiters on a shared in-memory store.
func New(apiRate, wsRate string) (*RateLimiter, error) {
	parsedAPI, err := limiter.NewRateFromFormatted(apiRate)
	if err != nil {
		return nil, fmt.Errorf("invalid API rate: %w", err)
	}

	parsedWs, err := limiter.NewRateFromFormatted(wsRate)
	if err != nil {
		return nil, fmt.Errorf("invalid WebSocket rate: %w", err)
	}

	store := memory.NewStore()
	return &RateLimiter{
		api:   limiter.New(store, parsedAPI),
		wsIP:  limiter.New(store, parsedWs),
		store: store,
	}, nil
}

// Middleware returns a Gin middleware enforcing the API limit per client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		lctx, err := rl.api.Get(ctx, c.ClientIP())
		if err != nil {
			// Fail open on store errors
			logging.Error(ctx, "Rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": lctx.Reset,
			})
			return
		}

		c.Next()
	}
}

// CheckWebSocket checks whether a WebSocket upgrade from this IP should be
// allowed. Returns true if allowed, false if the limit is exceeded (and the
// rejection has been written).
func (rl *RateLimiter) CheckWebSocket(c *gin.Context) bool {
	ctx := c.Request.Context()

	lctx, err := rl.wsIP.Get(ctx, c.ClientIP())
	if err != nil {
		logging.Error(ctx, "WS rate limiter store failed", zap.Error(err))
		return true // Fail open
	}

	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect").Inc()
		c.Header("X-RateLimit-Retry-After", strconv.FormatInt(lctx.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many connections from this IP"})
		return false
	}

	return true
}
