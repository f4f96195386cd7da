package room

import (
	"errors"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/collabboard/backend/go/internal/v1/protocol"
	"github.com/collabboard/backend/go/internal/v1/types"
)

// Board implements the drawing operations against a Room. All methods
// return a wire error code, with the zero value "" meaning success; the
// dispatcher decides which codes reach the client.
type Board struct{}

func NewBoard() *Board {
	return &Board{}
}

// HandleStrokeStart registers a new open stroke and broadcasts it to the
// other participants. The color must parse as a CSS hex color.
func (b *Board) HandleStrokeStart(r *Room, userID types.UserIDType, d protocol.StrokeStartData) protocol.ErrorCode {
	if _, err := colorful.Hex(d.Color); err != nil {
		return protocol.ErrInvalidField
	}
	if _, exists := r.Stroke(types.StrokeIDType(d.StrokeID)); exists {
		return protocol.ErrInvalidStroke
	}

	seq := r.NextSequence()
	r.AddStroke(Stroke{
		ID:     types.StrokeIDType(d.StrokeID),
		Author: userID,
		Color:  d.Color,
		Width:  d.Width,
		Points: []protocol.Point{},
		Seq:    seq,
	})
	r.TouchUser(userID)

	r.Broadcast(protocol.NewStrokeStart(d.StrokeID, string(userID), d.Color, d.Width, r.NextSequence()), userID)
	return ""
}

// HandleStrokeAdd appends points to the caller's open stroke and relays
// them to the other participants.
func (b *Board) HandleStrokeAdd(r *Room, userID types.UserIDType, d protocol.StrokeAddData) protocol.ErrorCode {
	if err := r.AppendStrokePoints(types.StrokeIDType(d.StrokeID), userID, d.Points); err != nil {
		return strokeErrCode(err)
	}
	r.TouchUser(userID)

	r.Broadcast(protocol.NewStrokeAdd(d.StrokeID, string(userID), d.Points, r.NextSequence()), userID)
	return ""
}

// HandleStrokeEnd marks the caller's stroke complete and relays the event.
func (b *Board) HandleStrokeEnd(r *Room, userID types.UserIDType, d protocol.StrokeEndData) protocol.ErrorCode {
	if err := r.CompleteStroke(types.StrokeIDType(d.StrokeID), userID); err != nil {
		return strokeErrCode(err)
	}
	r.TouchUser(userID)

	r.Broadcast(protocol.NewStrokeEnd(d.StrokeID, string(userID), r.NextSequence()), userID)
	return ""
}

// HandleStrokeMove translates the caller's completed stroke and relays the
// delta.
func (b *Board) HandleStrokeMove(r *Room, userID types.UserIDType, d protocol.StrokeMoveData) protocol.ErrorCode {
	if err := r.TranslateStroke(types.StrokeIDType(d.StrokeID), userID, d.DX, d.DY); err != nil {
		return strokeErrCode(err)
	}
	r.TouchUser(userID)

	r.Broadcast(protocol.NewStrokeMove(d.StrokeID, string(userID), d.DX, d.DY, r.NextSequence()), userID)
	return ""
}

// Snapshot builds a room_state frame covering the most recent strokes.
// The envelope seq is the room's own draw; snapshotSeq is the counter as
// of that draw, so a client can order the snapshot against later deltas.
func (b *Board) Snapshot(r *Room) []byte {
	strokes := r.StrokeSnapshot(protocol.SnapshotStrokeLimit)
	states := make([]protocol.StrokeState, len(strokes))
	for i, s := range strokes {
		states[i] = protocol.StrokeState{
			StrokeID: string(s.ID),
			UserID:   string(s.Author),
			Points:   s.Points,
			Color:    s.Color,
			Width:    s.Width,
			Complete: s.Complete,
		}
	}
	seq := r.NextSequence()
	return protocol.NewRoomState(states, r.CurrentSequence(), seq)
}

func strokeErrCode(err error) protocol.ErrorCode {
	switch {
	case errors.Is(err, ErrTooManyPoints):
		return protocol.ErrStrokeTooLarge
	case errors.Is(err, ErrStrokeNotFound),
		errors.Is(err, ErrNotStrokeOwner),
		errors.Is(err, ErrStrokeComplete),
		errors.Is(err, ErrStrokeIncomplete):
		return protocol.ErrInvalidStroke
	default:
		return protocol.ErrInternalError
	}
}
