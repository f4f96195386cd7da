// Package middleware contains Gin middleware for the whiteboard server.
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collabboard/backend/go/internal/v1/logging"
)

// HeaderXCorrelationID is the header key for the correlation ID.
const HeaderXCorrelationID = "X-Correlation-ID"

// CorrelationID tags every request with a correlation ID. An inbound header
// value is honored only when it parses as a UUID; anything else is replaced
// so callers cannot seed logs with arbitrary strings. The ID is echoed in
// the response header and stamped into the request context, where the
// logging package picks it up on every log line for the request.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderXCorrelationID)
		if uuid.Validate(correlationID) != nil {
			correlationID = uuid.NewString()
		}

		c.Header(HeaderXCorrelationID, correlationID)
		c.Set(string(logging.CorrelationIDKey), correlationID)

		ctx := context.WithValue(c.Request.Context(), logging.CorrelationIDKey, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequestLogger writes one structured access line per HTTP request.
// WebSocket upgrades are skipped; the hub logs their lifecycle.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.IsWebsocket() {
			return
		}
		logging.Info(c.Request.Context(), "http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
