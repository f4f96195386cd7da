package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Parse failure modes. The dispatcher maps both onto MALFORMED_MESSAGE.
var (
	ErrFrameTooLarge = errors.New("frame exceeds size cap")
	ErrMalformedJSON = errors.New("malformed json frame")
)

// Point is an (x, y) pair of 32-bit floats, encoded on the wire as a
// two-element array [x, y].
type Point struct {
	X float32
	Y float32
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float32{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var arr []float32
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	if len(arr) < 2 {
		return fmt.Errorf("point needs 2 coordinates, got %d", len(arr))
	}
	p.X, p.Y = arr[0], arr[1]
	return nil
}

// Message is the parsed frame envelope. Data is left raw; the per-type
// decoders below interpret it.
type Message struct {
	Type      string          `json:"type"`
	Seq       uint64          `json:"seq"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// MessageType returns the recognized Type of the frame, or TypeUnknown.
func (m *Message) MessageType() Type {
	return ParseType(m.Type)
}

// Parse decodes a raw text frame. Oversize frames are rejected before any
// JSON work.
func Parse(raw []byte) (*Message, error) {
	if len(raw) > MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, ErrMalformedJSON
	}
	if len(msg.Data) == 0 {
		msg.Data = json.RawMessage("{}")
	}
	return &msg, nil
}

// --- Inbound payloads ---
//
// Required fields decode through pointers so a missing or wrong-typed field
// is distinguishable from a zero value; both count as a missing field.

// JoinRoomData carries a join_room request.
type JoinRoomData struct {
	RoomID   string
	UserName string
	Password string
}

func DecodeJoinRoom(data json.RawMessage) (JoinRoomData, bool) {
	var raw struct {
		RoomID   *string `json:"roomId"`
		UserName *string `json:"userName"`
		Password string  `json:"password"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw.RoomID == nil || raw.UserName == nil {
		return JoinRoomData{}, false
	}
	return JoinRoomData{RoomID: *raw.RoomID, UserName: *raw.UserName, Password: raw.Password}, true
}

// CursorMoveData carries a cursor position update.
type CursorMoveData struct {
	X float32
	Y float32
}

func DecodeCursorMove(data json.RawMessage) (CursorMoveData, bool) {
	var raw struct {
		X *float32 `json:"x"`
		Y *float32 `json:"y"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw.X == nil || raw.Y == nil {
		return CursorMoveData{}, false
	}
	return CursorMoveData{X: *raw.X, Y: *raw.Y}, true
}

// StrokeStartData opens a new stroke.
type StrokeStartData struct {
	StrokeID string
	Color    string
	Width    float32
}

func DecodeStrokeStart(data json.RawMessage) (StrokeStartData, bool) {
	var raw struct {
		StrokeID *string  `json:"strokeId"`
		Color    *string  `json:"color"`
		Width    *float32 `json:"width"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw.StrokeID == nil || raw.Color == nil || raw.Width == nil {
		return StrokeStartData{}, false
	}
	return StrokeStartData{StrokeID: *raw.StrokeID, Color: *raw.Color, Width: *raw.Width}, true
}

// StrokeAddData appends points to an open stroke.
type StrokeAddData struct {
	StrokeID string
	Points   []Point
}

func DecodeStrokeAdd(data json.RawMessage) (StrokeAddData, bool) {
	var raw struct {
		StrokeID *string          `json:"strokeId"`
		Points   *json.RawMessage `json:"points"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw.StrokeID == nil || raw.Points == nil {
		return StrokeAddData{}, false
	}
	var points []Point
	if err := json.Unmarshal(*raw.Points, &points); err != nil {
		return StrokeAddData{}, false
	}
	return StrokeAddData{StrokeID: *raw.StrokeID, Points: points}, true
}

// StrokeEndData completes a stroke.
type StrokeEndData struct {
	StrokeID string
}

func DecodeStrokeEnd(data json.RawMessage) (StrokeEndData, bool) {
	var raw struct {
		StrokeID *string `json:"strokeId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw.StrokeID == nil {
		return StrokeEndData{}, false
	}
	return StrokeEndData{StrokeID: *raw.StrokeID}, true
}

// StrokeMoveData translates a completed stroke.
type StrokeMoveData struct {
	StrokeID string
	DX       float32
	DY       float32
}

func DecodeStrokeMove(data json.RawMessage) (StrokeMoveData, bool) {
	var raw struct {
		StrokeID *string  `json:"strokeId"`
		DX       *float32 `json:"dx"`
		DY       *float32 `json:"dy"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw.StrokeID == nil || raw.DX == nil || raw.DY == nil {
		return StrokeMoveData{}, false
	}
	return StrokeMoveData{StrokeID: *raw.StrokeID, DX: *raw.DX, DY: *raw.DY}, true
}

// --- Outbound builders ---

// UserSummary is the participant shape inside welcome frames.
type UserSummary struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

// StrokeState is the stroke shape inside room_state snapshots.
type StrokeState struct {
	StrokeID string  `json:"strokeId"`
	UserID   string  `json:"userId"`
	Points   []Point `json:"points"`
	Color    string  `json:"color"`
	Width    float32 `json:"width"`
	Complete bool    `json:"complete"`
}

func build(t Type, seq uint64, data any) []byte {
	frame := struct {
		Type      string `json:"type"`
		Seq       uint64 `json:"seq"`
		Timestamp int64  `json:"timestamp"`
		Data      any    `json:"data"`
	}{
		Type:      string(t),
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
	// Marshal cannot fail for the closed set of payload shapes below.
	b, _ := json.Marshal(frame)
	return b
}

// NewWelcome builds the join response. users includes the joiner.
func NewWelcome(userID, color string, users []UserSummary, seq uint64) []byte {
	if users == nil {
		users = []UserSummary{}
	}
	return build(TypeWelcome, seq, map[string]any{
		"userId": userID,
		"color":  color,
		"users":  users,
	})
}

func NewUserJoined(userID, name, color string, seq uint64) []byte {
	return build(TypeUserJoined, seq, map[string]any{
		"userId": userID,
		"name":   name,
		"color":  color,
	})
}

func NewUserLeft(userID string, seq uint64) []byte {
	return build(TypeUserLeft, seq, map[string]any{"userId": userID})
}

func NewCursorMove(userID string, x, y float32, seq uint64) []byte {
	return build(TypeCursorMove, seq, map[string]any{
		"userId": userID,
		"x":      x,
		"y":      y,
	})
}

func NewStrokeStart(strokeID, userID, color string, width float32, seq uint64) []byte {
	return build(TypeStrokeStart, seq, map[string]any{
		"strokeId": strokeID,
		"userId":   userID,
		"color":    color,
		"width":    width,
	})
}

func NewStrokeAdd(strokeID, userID string, points []Point, seq uint64) []byte {
	if points == nil {
		points = []Point{}
	}
	return build(TypeStrokeAdd, seq, map[string]any{
		"strokeId": strokeID,
		"userId":   userID,
		"points":   points,
	})
}

func NewStrokeEnd(strokeID, userID string, seq uint64) []byte {
	return build(TypeStrokeEnd, seq, map[string]any{
		"strokeId": strokeID,
		"userId":   userID,
	})
}

func NewStrokeMove(strokeID, userID string, dx, dy float32, seq uint64) []byte {
	return build(TypeStrokeMove, seq, map[string]any{
		"strokeId": strokeID,
		"userId":   userID,
		"dx":       dx,
		"dy":       dy,
	})
}

// NewRoomState builds a board snapshot. snapshotSeq is the room's current
// sequence read without increment; seq is the envelope's own draw.
func NewRoomState(strokes []StrokeState, snapshotSeq, seq uint64) []byte {
	if strokes == nil {
		strokes = []StrokeState{}
	}
	return build(TypeRoomState, seq, map[string]any{
		"strokes":     strokes,
		"snapshotSeq": snapshotSeq,
	})
}

// NewPong echoes the client's ping seq.
func NewPong(seq uint64) []byte {
	return build(TypePong, seq, map[string]any{})
}

// NewError builds an error frame with the canned message for code.
func NewError(code ErrorCode, seq uint64) []byte {
	return NewErrorWithMessage(code, code.Message(), seq)
}

// NewErrorWithMessage builds an error frame with a custom message.
func NewErrorWithMessage(code ErrorCode, message string, seq uint64) []byte {
	return build(TypeError, seq, map[string]any{
		"code":    string(code),
		"message": message,
	})
}
