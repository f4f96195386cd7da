package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the collaborative whiteboard server.
//
// Naming convention: namespace_subsystem_name
// - namespace: collabboard
// - subsystem: websocket, room
//
// Gauges track current state (connections, rooms, participants); counters
// track cumulative events (messages, broadcasts, drops).

var (
	// ActiveConnections tracks the current number of open WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "collabboard",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of live rooms, including rooms
	// in their empty-room grace period.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "collabboard",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the participant count per room.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "collabboard",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room_id"})

	// MessagesProcessed counts inbound frames by message type and outcome.
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collabboard",
		Subsystem: "websocket",
		Name:      "messages_total",
		Help:      "Total WebSocket messages processed",
	}, []string{"message_type", "status"})

	// BroadcastsSent counts frames fanned out to room participants.
	BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collabboard",
		Subsystem: "room",
		Name:      "broadcasts_total",
		Help:      "Total frames fanned out to room participants",
	})

	// RateLimitDrops counts messages and connection attempts rejected by a
	// rate limiter, by path (cursor, connect).
	RateLimitDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collabboard",
		Subsystem: "websocket",
		Name:      "rate_limit_drops_total",
		Help:      "Total messages dropped by rate limiting",
	}, []string{"path"})

	// StrokesEvicted counts strokes dropped by per-room FIFO pruning.
	StrokesEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collabboard",
		Subsystem: "room",
		Name:      "strokes_evicted_total",
		Help:      "Total strokes evicted by the per-room FIFO cap",
	})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
