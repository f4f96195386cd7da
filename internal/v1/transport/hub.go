// Package transport owns the WebSocket edge: connection upgrade, the
// per-client read and write pumps, heartbeats, and graceful shutdown.
// Everything protocol-aware lives in the room package.
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collabboard/backend/go/internal/v1/logging"
	"github.com/collabboard/backend/go/internal/v1/metrics"
	"github.com/collabboard/backend/go/internal/v1/protocol"
	"github.com/collabboard/backend/go/internal/v1/ratelimit"
	"github.com/collabboard/backend/go/internal/v1/room"
)

// Hub accepts WebSocket connections and tracks every live client. Room
// membership is the room service's concern; the hub only owns sockets.
type Hub struct {
	svc        *room.Service
	dispatcher *room.Dispatcher
	guard      *ratelimit.ConnGuard
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}

	stopOnce sync.Once
	stop     chan struct{}
}

// NewHub wires the hub and starts its background sweeper. Callers must
// Shutdown the hub to stop the sweeper.
func NewHub(svc *room.Service, guard *ratelimit.ConnGuard, allowedOrigins []string) *Hub {
	h := &Hub{
		svc:        svc,
		dispatcher: room.NewDispatcher(svc),
		guard:      guard,
		clients:    make(map[*Client]struct{}),
		stop:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, allowedOrigins)
		},
	}

	go h.sweepLoop()
	return h
}

// originAllowed accepts requests with no Origin header (non-browser
// clients) and any origin on the allow list. "*" allows everything.
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// ServeWs rate-limits, upgrades, and hands the socket to a new client.
func (h *Hub) ServeWs(c *gin.Context) {
	if !h.guard.Check(c) {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	h.HandleConnection(conn)
}

// HandleConnection registers a client for an established connection and
// starts its pumps. Split from ServeWs so tests can drive a fake socket.
func (h *Hub) HandleConnection(conn wsConnection) *Client {
	client := newClient(conn, h)

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	metrics.IncConnection()

	go client.writePump()
	go client.readPump()
	return client
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// sweepLoop periodically flags ghost cursors and evicts idle limiter
// buckets. Runs until Shutdown.
func (h *Hub) sweepLoop() {
	ticker := time.NewTicker(protocol.GhostCursorTimeout)
	cleanup := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-ticker.C:
			h.svc.SweepGhosts()
		case <-cleanup.C:
			h.svc.Presence().CleanupIdle()
		case <-h.stop:
			return
		}
	}
}

// Shutdown stops the sweeper and closes every client connection. Close
// frames go out through each client's write pump.
func (h *Hub) Shutdown(ctx context.Context) error {
	logging.Info(ctx, "shutting down hub, closing all connections")

	h.stopOnce.Do(func() { close(h.stop) })

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}

	logging.Info(ctx, "all connections closed", zap.Int("count", len(clients)))
	return nil
}
