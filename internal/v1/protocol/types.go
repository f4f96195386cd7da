// Package protocol defines the whiteboard wire vocabulary: message types,
// error codes, the JSON envelope, and the builders and validators for every
// frame the server reads or writes.
package protocol

import "time"

// Type is the lowercase snake-case tag carried in every frame's "type" field.
type Type string

const (
	// Control messages (reliable, low frequency)
	TypeJoinRoom   Type = "join_room"   // C->S: request to join a room
	TypeWelcome    Type = "welcome"     // S->C: successful join response
	TypeUserJoined Type = "user_joined" // broadcast: new user joined
	TypeUserLeft   Type = "user_left"   // broadcast: user disconnected

	// Presence messages (loss-tolerant, high frequency)
	TypeCursorMove Type = "cursor_move"

	// Drawing messages (reliable, event-driven)
	TypeStrokeStart Type = "stroke_start"
	TypeStrokeAdd   Type = "stroke_add"
	TypeStrokeEnd   Type = "stroke_end"
	TypeStrokeMove  Type = "stroke_move"

	// State messages (reliable, on-demand)
	TypeRoomState Type = "room_state" // S->C: full board snapshot

	// Heartbeat messages
	TypePing Type = "ping"
	TypePong Type = "pong"

	// Error messages
	TypeError Type = "error"

	// TypeUnknown marks a frame whose type tag is missing or unrecognized.
	TypeUnknown Type = ""
)

var knownTypes = map[Type]struct{}{
	TypeJoinRoom:    {},
	TypeWelcome:     {},
	TypeUserJoined:  {},
	TypeUserLeft:    {},
	TypeCursorMove:  {},
	TypeStrokeStart: {},
	TypeStrokeAdd:   {},
	TypeStrokeEnd:   {},
	TypeStrokeMove:  {},
	TypeRoomState:   {},
	TypePing:        {},
	TypePong:        {},
	TypeError:       {},
}

// ParseType maps a raw type tag to a Type; unrecognized tags map to
// TypeUnknown.
func ParseType(s string) Type {
	if _, ok := knownTypes[Type(s)]; ok {
		return Type(s)
	}
	return TypeUnknown
}

// ErrorCode is the stable uppercase snake-case machine code carried in
// error frames.
type ErrorCode string

const (
	// Room errors
	ErrRoomNotFound    ErrorCode = "ROOM_NOT_FOUND"
	ErrRoomFull        ErrorCode = "ROOM_FULL"
	ErrInvalidPassword ErrorCode = "INVALID_PASSWORD"

	// Message errors
	ErrMalformedMessage   ErrorCode = "MALFORMED_MESSAGE"
	ErrInvalidMessageType ErrorCode = "INVALID_MESSAGE_TYPE"
	ErrMissingField       ErrorCode = "MISSING_FIELD"
	ErrInvalidField       ErrorCode = "INVALID_FIELD"

	// Rate limiting
	ErrRateLimited ErrorCode = "RATE_LIMITED"

	// Drawing errors
	ErrInvalidStroke  ErrorCode = "INVALID_STROKE"
	ErrStrokeTooLarge ErrorCode = "STROKE_TOO_LARGE"

	// Connection errors
	ErrNotInRoom     ErrorCode = "NOT_IN_ROOM"
	ErrAlreadyInRoom ErrorCode = "ALREADY_IN_ROOM"

	// Internal errors
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Message returns the canned human-readable message for the code.
func (e ErrorCode) Message() string {
	switch e {
	case ErrRoomNotFound:
		return "The requested room does not exist"
	case ErrRoomFull:
		return "Room has reached maximum capacity (15 users)"
	case ErrInvalidPassword:
		return "Incorrect room password"
	case ErrMalformedMessage:
		return "Message format is invalid"
	case ErrInvalidMessageType:
		return "Unknown message type"
	case ErrMissingField:
		return "Required field is missing"
	case ErrInvalidField:
		return "Field value is invalid"
	case ErrRateLimited:
		return "Too many messages, please slow down"
	case ErrInvalidStroke:
		return "Stroke not found or not owned by you"
	case ErrStrokeTooLarge:
		return "Stroke contains too many points"
	case ErrNotInRoom:
		return "You must join a room first"
	case ErrAlreadyInRoom:
		return "You are already in a room"
	default:
		return "An unexpected error occurred"
	}
}

// Protocol constants (wire-visible).
const (
	MaxUsersPerRoom     = 15
	MaxStrokesPerRoom   = 1000
	SnapshotStrokeLimit = 500
	MaxPointsPerStroke  = 10_000

	// MaxFrameBytes caps frame size; oversize frames are rejected before parse.
	MaxFrameBytes = 64 * 1024

	HeartbeatInterval  = 10 * time.Second
	HeartbeatTimeout   = 30 * time.Second
	GhostCursorTimeout = 3 * time.Second

	EmptyRoomGrace = 60 * time.Second
)
