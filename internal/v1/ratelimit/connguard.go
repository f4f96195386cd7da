package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/collabboard/backend/go/internal/v1/logging"
	"github.com/collabboard/backend/go/internal/v1/metrics"
	"go.uber.org/zap"
)

// DefaultConnRate limits WebSocket upgrades per client IP.
const DefaultConnRate = "60-M"

// ConnGuard enforces a per-IP rate on WebSocket connection attempts,
// upstream of the per-user token buckets that govern in-room traffic.
type ConnGuard struct {
	limiter *limiter.Limiter
}

// NewConnGuard creates a ConnGuard backed by an in-memory store.
// rate uses the limiter format, e.g. "60-M" for 60 per minute.
func NewConnGuard(rate string) (*ConnGuard, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid connection rate: %w", err)
	}
	return &ConnGuard{limiter: limiter.New(memory.NewStore(), parsed)}, nil
}

// Check reports whether the connection attempt is allowed. On rejection the
// 429 response has already been written.
func (g *ConnGuard) Check(c *gin.Context) bool {
	ctx := c.Request.Context()
	lctx, err := g.limiter.Get(ctx, c.ClientIP())
	if err != nil {
		// Fail open: availability over strictness for an in-memory store.
		logging.Error(ctx, "connection guard store failed", zap.Error(err))
		return true
	}

	if lctx.Reached {
		metrics.RateLimitDrops.WithLabelValues("connect").Inc()
		c.Header("X-RateLimit-Retry-After", strconv.FormatInt(lctx.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many connections from this IP"})
		return false
	}
	return true
}
