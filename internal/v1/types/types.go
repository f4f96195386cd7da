// Package types holds the identifiers and interfaces shared across the
// whiteboard core. It has no dependencies on the other internal packages,
// which keeps the room, protocol, and transport layers free of import cycles.
package types

// RoomIDType represents a unique identifier for a whiteboard room.
type RoomIDType string

// UserIDType represents a server-assigned identifier for a room membership.
// A reconnecting client receives a new UserIDType.
type UserIDType string

// StrokeIDType represents a client-chosen identifier for a drawing stroke.
type StrokeIDType string

// DisplayNameType represents the human-readable name for a participant.
type DisplayNameType string

// Conn is the core's view of a client connection: deliver one text frame,
// or tear the transport down. The core never owns the connection; the
// transport's read loop keeps it alive.
type Conn interface {
	// Send hands one text frame to the connection's FIFO write queue.
	// It returns false when the connection is already closed; the core
	// skips dead connections silently.
	Send(data []byte) bool

	// Close tears down the underlying transport.
	Close()
}
