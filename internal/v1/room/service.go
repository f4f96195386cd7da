package room

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/collabboard/backend/go/internal/v1/ident"
	"github.com/collabboard/backend/go/internal/v1/logging"
	"github.com/collabboard/backend/go/internal/v1/metrics"
	"github.com/collabboard/backend/go/internal/v1/protocol"
	"github.com/collabboard/backend/go/internal/v1/types"
)

// colorPalette is cycled round-robin across joins, server-wide. Colors
// repeat once more than 15 users are active across all rooms; that is
// acceptable since collisions are only cosmetic.
var colorPalette = [...]string{
	"#FF5733", "#33FF57", "#3357FF", "#FF33F5", "#F5FF33",
	"#33FFF5", "#FF8C33", "#8C33FF", "#33FF8C", "#FF338C",
	"#338CFF", "#8CFF33", "#FF3333", "#33FF33", "#3333FF",
}

// JoinResult reports the outcome of a join. Err is "" on success.
type JoinResult struct {
	UserID types.UserIDType
	Color  string
	Err    protocol.ErrorCode
}

// Service is the room registry. It owns room creation, the join and leave
// orchestration, and the empty-room grace period. Expired rooms are
// reclaimed lazily on the next registry access rather than by a timer.
type Service struct {
	mu              sync.Mutex
	rooms           map[types.RoomIDType]*Room
	pendingDeletion map[types.RoomIDType]time.Time
	nextColor       int

	grace time.Duration
	now   func() time.Time

	presence *Presence
	board    *Board
}

func NewService() *Service {
	return &Service{
		rooms:           make(map[types.RoomIDType]*Room),
		pendingDeletion: make(map[types.RoomIDType]time.Time),
		grace:           protocol.EmptyRoomGrace,
		now:             time.Now,
		presence:        NewPresence(),
		board:           NewBoard(),
	}
}

func (s *Service) Presence() *Presence { return s.presence }
func (s *Service) Board() *Board      { return s.board }

// SetClock overrides the registry clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetGracePeriod overrides the empty-room grace window.
func (s *Service) SetGracePeriod(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grace = d
}

// reclaimExpiredLocked drops every room whose grace deadline has passed.
// Caller holds s.mu.
func (s *Service) reclaimExpiredLocked() {
	now := s.now()
	for id, deadline := range s.pendingDeletion {
		if now.Before(deadline) {
			continue
		}
		// A join can land on the room handle after the countdown was
		// armed; an occupied room only sheds its stale entry.
		if r, ok := s.rooms[id]; ok && !r.IsEmpty() {
			delete(s.pendingDeletion, id)
			continue
		}
		delete(s.pendingDeletion, id)
		delete(s.rooms, id)
		metrics.ActiveRooms.Dec()
		metrics.RoomParticipants.DeleteLabelValues(string(id))
		logging.Info(nil, "room reclaimed after grace period", zap.String("room_id", string(id)))
	}
}

// GetOrCreateRoom returns the room, creating it if absent. A first creator
// with a non-empty password locks the room; later callers' passwords are
// checked at join, never here. Accessing a room cancels any pending
// deletion.
func (s *Service) GetOrCreateRoom(roomID types.RoomIDType, password string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reclaimExpiredLocked()
	delete(s.pendingDeletion, roomID)

	if r, ok := s.rooms[roomID]; ok {
		return r
	}
	r := NewRoom(roomID, password)
	s.rooms[roomID] = r
	metrics.ActiveRooms.Inc()
	logging.Info(nil, "room created",
		zap.String("room_id", string(roomID)),
		zap.Bool("password_protected", password != ""))
	return r
}

// GetRoom returns the room or nil. Pending deletion is not cancelled;
// only a join does that.
func (s *Service) GetRoom(roomID types.RoomIDType) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reclaimExpiredLocked()
	return s.rooms[roomID]
}

// RoomExists reports whether the room is currently registered.
func (s *Service) RoomExists(roomID types.RoomIDType) bool {
	return s.GetRoom(roomID) != nil
}

// RoomCount returns the number of registered rooms, after reclamation.
func (s *Service) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reclaimExpiredLocked()
	return len(s.rooms)
}

// DeleteRoom drops the room immediately, bypassing the grace period.
func (s *Service) DeleteRoom(roomID types.RoomIDType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return
	}
	delete(s.rooms, roomID)
	delete(s.pendingDeletion, roomID)
	metrics.ActiveRooms.Dec()
	metrics.RoomParticipants.DeleteLabelValues(string(roomID))
}

func (s *Service) pickColor() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := colorPalette[s.nextColor%len(colorPalette)]
	s.nextColor++
	return c
}

// JoinRoom runs the full join sequence: resolve or create the room, check
// the password and capacity, mint identity and color, register the
// participant, then send welcome and board snapshot to the joiner and
// announce the join to everyone else.
func (s *Service) JoinRoom(roomID types.RoomIDType, userName types.DisplayNameType, password string, conn types.Conn) JoinResult {
	r := s.GetOrCreateRoom(roomID, password)

	if !r.ValidatePassword(password) {
		return JoinResult{Err: protocol.ErrInvalidPassword}
	}
	if r.IsFull() {
		return JoinResult{Err: protocol.ErrRoomFull}
	}

	userID := types.UserIDType(ident.NewUserID())
	color := s.pickColor()

	ok := r.AddParticipant(UserInfo{
		UserID:       userID,
		DisplayName:  userName,
		Color:        color,
		Conn:         conn,
		LastActivity: s.now(),
		IsActive:     true,
	})
	if !ok {
		// Lost the race for the last slot.
		return JoinResult{Err: protocol.ErrRoomFull}
	}

	// A concurrent leave may have armed the countdown between room lookup
	// and registration; the room is occupied now.
	s.mu.Lock()
	delete(s.pendingDeletion, roomID)
	s.mu.Unlock()

	metrics.RoomParticipants.WithLabelValues(string(roomID)).Set(float64(r.ParticipantCount()))

	users := make([]protocol.UserSummary, 0, protocol.MaxUsersPerRoom)
	for _, u := range r.Participants() {
		users = append(users, protocol.UserSummary{
			UserID: string(u.UserID),
			Name:   string(u.DisplayName),
			Color:  u.Color,
		})
	}
	conn.Send(protocol.NewWelcome(string(userID), color, users, r.NextSequence()))
	conn.Send(s.board.Snapshot(r))

	r.Broadcast(protocol.NewUserJoined(string(userID), string(userName), color, r.NextSequence()), userID)

	logging.Info(nil, "user joined room",
		zap.String("room_id", string(roomID)),
		zap.String("user_id", string(userID)),
		zap.Int("participants", r.ParticipantCount()))

	return JoinResult{UserID: userID, Color: color}
}

// LeaveRoom removes the participant, announces the departure, and starts
// the grace countdown when the room empties. Idempotent.
func (s *Service) LeaveRoom(roomID types.RoomIDType, userID types.UserIDType) {
	r := s.GetRoom(roomID)
	if r == nil {
		return
	}

	if _, ok := r.Participant(userID); !ok {
		return
	}
	r.RemoveParticipant(userID)
	s.presence.RemoveUser(userID)
	metrics.RoomParticipants.WithLabelValues(string(roomID)).Set(float64(r.ParticipantCount()))

	r.Broadcast(protocol.NewUserLeft(string(userID), r.NextSequence()), userID)

	if r.IsEmpty() {
		s.mu.Lock()
		if _, ok := s.rooms[roomID]; ok {
			s.pendingDeletion[roomID] = s.now().Add(s.grace)
		}
		s.mu.Unlock()
	}

	logging.Info(nil, "user left room",
		zap.String("room_id", string(roomID)),
		zap.String("user_id", string(userID)),
		zap.Int("participants", r.ParticipantCount()))
}

// --- Per-room routing helpers for the dispatcher ---

func (s *Service) HandleCursorMove(roomID types.RoomIDType, userID types.UserIDType, d protocol.CursorMoveData) protocol.ErrorCode {
	r := s.GetRoom(roomID)
	if r == nil {
		return protocol.ErrRoomNotFound
	}
	if !s.presence.HandleCursorMove(r, userID, d) {
		return protocol.ErrRateLimited
	}
	return ""
}

func (s *Service) HandleStrokeStart(roomID types.RoomIDType, userID types.UserIDType, d protocol.StrokeStartData) protocol.ErrorCode {
	r := s.GetRoom(roomID)
	if r == nil {
		return protocol.ErrRoomNotFound
	}
	return s.board.HandleStrokeStart(r, userID, d)
}

func (s *Service) HandleStrokeAdd(roomID types.RoomIDType, userID types.UserIDType, d protocol.StrokeAddData) protocol.ErrorCode {
	r := s.GetRoom(roomID)
	if r == nil {
		return protocol.ErrRoomNotFound
	}
	return s.board.HandleStrokeAdd(r, userID, d)
}

func (s *Service) HandleStrokeEnd(roomID types.RoomIDType, userID types.UserIDType, d protocol.StrokeEndData) protocol.ErrorCode {
	r := s.GetRoom(roomID)
	if r == nil {
		return protocol.ErrRoomNotFound
	}
	return s.board.HandleStrokeEnd(r, userID, d)
}

func (s *Service) HandleStrokeMove(roomID types.RoomIDType, userID types.UserIDType, d protocol.StrokeMoveData) protocol.ErrorCode {
	r := s.GetRoom(roomID)
	if r == nil {
		return protocol.ErrRoomNotFound
	}
	return s.board.HandleStrokeMove(r, userID, d)
}

// SweepGhosts marks inactive cursors across every room. Called from the
// hub's heartbeat ticker.
func (s *Service) SweepGhosts() {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	for _, r := range rooms {
		s.presence.MarkGhostsInactive(r, protocol.GhostCursorTimeout)
	}
}
