package room

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabboard/backend/go/internal/v1/ident"
	"github.com/collabboard/backend/go/internal/v1/protocol"
	"github.com/collabboard/backend/go/internal/v1/types"
)

func TestService_SoloJoinFrames(t *testing.T) {
	s := NewService()
	conn := &fakeConn{}

	res := s.JoinRoom("room-1", "Alice", "", conn)
	require.Empty(t, res.Err)
	assert.True(t, strings.HasPrefix(string(res.UserID), "user-"))
	assert.True(t, ident.IsValidUUID(strings.TrimPrefix(string(res.UserID), "user-")))
	assert.Equal(t, colorPalette[0], res.Color)

	msgs := conn.messages(t)
	require.Len(t, msgs, 2)

	// welcome first, then room_state, with fresh increasing seqs.
	assert.Equal(t, protocol.TypeWelcome, msgs[0].MessageType())
	assert.Equal(t, uint64(1), msgs[0].Seq)
	assert.Equal(t, protocol.TypeRoomState, msgs[1].MessageType())
	assert.Equal(t, uint64(2), msgs[1].Seq)

	var welcome struct {
		UserID string                 `json:"userId"`
		Color  string                 `json:"color"`
		Users  []protocol.UserSummary `json:"users"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Data, &welcome))
	assert.Equal(t, string(res.UserID), welcome.UserID)
	require.Len(t, welcome.Users, 1)
	assert.Equal(t, "Alice", welcome.Users[0].Name)

	var state struct {
		Strokes []protocol.StrokeState `json:"strokes"`
	}
	require.NoError(t, json.Unmarshal(msgs[1].Data, &state))
	assert.Empty(t, state.Strokes)
}

func TestService_SecondJoinAnnounced(t *testing.T) {
	s := NewService()
	c1 := &fakeConn{}
	r1 := s.JoinRoom("room-1", "Alice", "", c1)
	require.Empty(t, r1.Err)
	c1.reset()

	c2 := &fakeConn{}
	r2 := s.JoinRoom("room-1", "Bob", "", c2)
	require.Empty(t, r2.Err)
	assert.NotEqual(t, r1.UserID, r2.UserID)
	assert.NotEqual(t, r1.Color, r2.Color)

	// Alice gets exactly one user_joined, not her own welcome.
	msgs := c1.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.TypeUserJoined, msgs[0].MessageType())

	var data struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
		Color  string `json:"color"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Data, &data))
	assert.Equal(t, string(r2.UserID), data.UserID)
	assert.Equal(t, "Bob", data.Name)

	// Bob's welcome lists both users.
	bobMsgs := c2.messages(t)
	require.Len(t, bobMsgs, 2)
	var welcome struct {
		Users []protocol.UserSummary `json:"users"`
	}
	require.NoError(t, json.Unmarshal(bobMsgs[0].Data, &welcome))
	assert.Len(t, welcome.Users, 2)
}

func TestService_RoomCapacity(t *testing.T) {
	s := NewService()
	for i := 0; i < protocol.MaxUsersPerRoom; i++ {
		res := s.JoinRoom("room-1", types.DisplayNameType(fmt.Sprintf("user%d", i)), "", &fakeConn{})
		require.Empty(t, res.Err, "join %d", i)
	}

	res := s.JoinRoom("room-1", "overflow", "", &fakeConn{})
	assert.Equal(t, protocol.ErrRoomFull, res.Err)

	// Capacity is per-room.
	res = s.JoinRoom("room-2", "elsewhere", "", &fakeConn{})
	assert.Empty(t, res.Err)
}

func TestService_FirstCallerSetsPassword(t *testing.T) {
	s := NewService()

	res := s.JoinRoom("room-1", "Alice", "secret", &fakeConn{})
	require.Empty(t, res.Err)

	assert.Equal(t, protocol.ErrInvalidPassword, s.JoinRoom("room-1", "Eve", "", &fakeConn{}).Err)
	assert.Equal(t, protocol.ErrInvalidPassword, s.JoinRoom("room-1", "Eve", "wrong", &fakeConn{}).Err)
	assert.Empty(t, s.JoinRoom("room-1", "Bob", "secret", &fakeConn{}).Err)

	// A later caller's password never relocks an open room.
	s2 := NewService()
	require.Empty(t, s2.JoinRoom("room-open", "Alice", "", &fakeConn{}).Err)
	assert.Empty(t, s2.JoinRoom("room-open", "Bob", "late-password", &fakeConn{}).Err)
}

func TestService_LeaveAnnouncesAndCleansUp(t *testing.T) {
	s := NewService()
	c1 := &fakeConn{}
	r1 := s.JoinRoom("room-1", "Alice", "", c1)
	r2 := s.JoinRoom("room-1", "Bob", "", &fakeConn{})
	c1.reset()

	s.LeaveRoom("room-1", r2.UserID)

	msgs := c1.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.TypeUserLeft, msgs[0].MessageType())
	assert.Contains(t, string(msgs[0].Data), string(r2.UserID))

	room := s.GetRoom("room-1")
	require.NotNil(t, room)
	assert.Equal(t, 1, room.ParticipantCount())

	// Leaving twice is harmless.
	s.LeaveRoom("room-1", r2.UserID)
	assert.Equal(t, 1, c1.count())

	_ = r1
}

func TestService_EmptyRoomGracePeriod(t *testing.T) {
	s := NewService()
	clk := newFakeClock()
	s.SetClock(clk.Now)

	res := s.JoinRoom("room-1", "Alice", "", &fakeConn{})
	require.Empty(t, res.Err)

	room := s.GetRoom("room-1")
	require.Empty(t, s.Board().HandleStrokeStart(room, res.UserID,
		protocol.StrokeStartData{StrokeID: "s1", Color: "#000000", Width: 1}))

	s.LeaveRoom("room-1", res.UserID)

	// Within the grace window the room and its strokes survive.
	clk.Advance(protocol.EmptyRoomGrace - time.Second)
	require.True(t, s.RoomExists("room-1"))
	assert.Equal(t, 1, s.GetRoom("room-1").StrokeCount())

	// A rejoin inside the window cancels the countdown.
	res2 := s.JoinRoom("room-1", "Bob", "", &fakeConn{})
	require.Empty(t, res2.Err)
	clk.Advance(protocol.EmptyRoomGrace * 2)
	assert.True(t, s.RoomExists("room-1"))
	assert.Equal(t, 1, s.GetRoom("room-1").StrokeCount())
}

func TestService_EmptyRoomReclaimedAfterGrace(t *testing.T) {
	s := NewService()
	clk := newFakeClock()
	s.SetClock(clk.Now)

	res := s.JoinRoom("room-1", "Alice", "", &fakeConn{})
	require.Empty(t, res.Err)
	s.LeaveRoom("room-1", res.UserID)

	clk.Advance(protocol.EmptyRoomGrace + time.Second)

	assert.False(t, s.RoomExists("room-1"))
	assert.Zero(t, s.RoomCount())

	// A new join recreates the room from scratch.
	res2 := s.JoinRoom("room-1", "Bob", "", &fakeConn{})
	require.Empty(t, res2.Err)
	assert.Zero(t, s.GetRoom("room-1").StrokeCount())
}

func TestService_ReclaimSkipsRepopulatedRoom(t *testing.T) {
	s := NewService()
	clk := newFakeClock()
	s.SetClock(clk.Now)

	res := s.JoinRoom("room-1", "Alice", "", &fakeConn{})
	require.Empty(t, res.Err)
	room := s.GetRoom("room-1")

	// Arms the grace countdown.
	s.LeaveRoom("room-1", res.UserID)

	// A join that raced the countdown: the participant lands on the room
	// handle without going back through the registry.
	ok := room.AddParticipant(UserInfo{
		UserID:       "u-racer",
		Conn:         &fakeConn{},
		LastActivity: clk.Now(),
		IsActive:     true,
	})
	require.True(t, ok)

	clk.Advance(protocol.EmptyRoomGrace + time.Second)

	// The occupied room survives reclamation.
	require.True(t, s.RoomExists("room-1"))
	assert.Equal(t, 1, s.GetRoom("room-1").ParticipantCount())

	// The stale countdown is gone: emptying the room again gets a fresh
	// grace window instead of expiring on the next registry access.
	s.LeaveRoom("room-1", "u-racer")
	clk.Advance(time.Second)
	assert.True(t, s.RoomExists("room-1"))
	clk.Advance(protocol.EmptyRoomGrace)
	assert.False(t, s.RoomExists("room-1"))
}

func TestService_JoinClearsPendingDeletion(t *testing.T) {
	s := NewService()
	clk := newFakeClock()
	s.SetClock(clk.Now)

	res := s.JoinRoom("room-1", "Alice", "", &fakeConn{})
	require.Empty(t, res.Err)
	s.LeaveRoom("room-1", res.UserID)

	res2 := s.JoinRoom("room-1", "Bob", "", &fakeConn{})
	require.Empty(t, res2.Err)

	s.mu.Lock()
	_, pending := s.pendingDeletion["room-1"]
	s.mu.Unlock()
	assert.False(t, pending)
}

func TestService_ColorsCyclePalette(t *testing.T) {
	s := NewService()

	seen := make([]string, 0, len(colorPalette))
	for i := 0; i < len(colorPalette); i++ {
		res := s.JoinRoom(types.RoomIDType(fmt.Sprintf("room-%d", i)), "u", "", &fakeConn{})
		require.Empty(t, res.Err)
		seen = append(seen, res.Color)
	}
	assert.Equal(t, colorPalette[:], seen)

	// 16th join wraps around.
	res := s.JoinRoom("room-wrap", "u", "", &fakeConn{})
	require.Empty(t, res.Err)
	assert.Equal(t, colorPalette[0], res.Color)
}

func TestService_RoutingUnknownRoom(t *testing.T) {
	s := NewService()

	assert.Equal(t, protocol.ErrRoomNotFound, s.HandleCursorMove("ghost", "u1", protocol.CursorMoveData{}))
	assert.Equal(t, protocol.ErrRoomNotFound, s.HandleStrokeStart("ghost", "u1", protocol.StrokeStartData{}))
	assert.Equal(t, protocol.ErrRoomNotFound, s.HandleStrokeAdd("ghost", "u1", protocol.StrokeAddData{}))
	assert.Equal(t, protocol.ErrRoomNotFound, s.HandleStrokeEnd("ghost", "u1", protocol.StrokeEndData{}))
	assert.Equal(t, protocol.ErrRoomNotFound, s.HandleStrokeMove("ghost", "u1", protocol.StrokeMoveData{}))
}

func TestService_DeleteRoomImmediate(t *testing.T) {
	s := NewService()
	require.Empty(t, s.JoinRoom("room-1", "Alice", "", &fakeConn{}).Err)

	s.DeleteRoom("room-1")
	assert.False(t, s.RoomExists("room-1"))

	// Deleting a missing room is a no-op.
	s.DeleteRoom("room-1")
}

func TestService_SweepGhosts(t *testing.T) {
	s := NewService()
	clk := newFakeClock()
	s.SetClock(clk.Now)
	s.Presence().SetClock(clk.Now)

	res := s.JoinRoom("room-1", "Alice", "", &fakeConn{})
	require.Empty(t, res.Err)
	room := s.GetRoom("room-1")
	room.now = clk.Now

	clk.Advance(protocol.GhostCursorTimeout + time.Millisecond)
	s.SweepGhosts()

	u, ok := room.Participant(res.UserID)
	require.True(t, ok)
	assert.False(t, u.IsActive)
}
