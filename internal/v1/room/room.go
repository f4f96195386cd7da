// Package room implements the whiteboard core: the Room state model, the
// board and presence services that operate on it, the registry that owns
// room lifecycles, and the dispatcher that routes parsed frames.
//
// Concurrency design: each Room has a single mutex covering all of its
// mutable state (participants, cursors, strokes). The registry has its own
// mutex over the room table; it is always acquired before a Room's, and two
// Room locks are never held together. The sequence counter is a separate
// atomic so reads never contend with state mutation.
//
// Fan-out never holds a lock across I/O: Broadcast resolves the recipient
// list under the Room lock and hands frames to connections after release.
package room

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/collabboard/backend/go/internal/v1/metrics"
	"github.com/collabboard/backend/go/internal/v1/protocol"
	"github.com/collabboard/backend/go/internal/v1/types"
)

// Stroke mutation failures. The board service maps these onto wire codes.
var (
	ErrStrokeNotFound   = errors.New("stroke not found")
	ErrNotStrokeOwner   = errors.New("stroke not owned by user")
	ErrStrokeComplete   = errors.New("stroke already complete")
	ErrStrokeIncomplete = errors.New("stroke not complete")
	ErrTooManyPoints    = errors.New("stroke point limit exceeded")
)

// Stroke is an ordered polyline with color, width, author, completion flag,
// and a room-scoped sequence number assigned once at registration.
type Stroke struct {
	ID       types.StrokeIDType
	Author   types.UserIDType
	Color    string
	Width    float32
	Points   []protocol.Point
	Complete bool
	Seq      uint64
}

// CursorState tracks one participant's cursor. Mutated only through the
// presence path for the owning user.
type CursorState struct {
	UserID     types.UserIDType
	X          float32
	Y          float32
	LastUpdate time.Time
	Visible    bool
}

// UserInfo describes a room membership. Conn is a non-owning reference; the
// core never extends a connection's lifetime.
type UserInfo struct {
	UserID       types.UserIDType
	DisplayName  types.DisplayNameType
	Color        string
	Conn         types.Conn
	LastActivity time.Time
	IsActive     bool
}

// IsGhost reports whether the user has been inactive longer than timeout.
func (u UserInfo) IsGhost(timeout time.Duration, now time.Time) bool {
	return now.Sub(u.LastActivity) > timeout
}

// Room owns all state for one collaboration space.
type Room struct {
	ID       types.RoomIDType
	password string

	mu           sync.Mutex
	participants map[types.UserIDType]*UserInfo
	cursors      map[types.UserIDType]*CursorState
	strokes      []*Stroke
	strokeIndex  map[types.StrokeIDType]*Stroke

	nextSeq atomic.Uint64

	maxUsers   int
	maxStrokes int

	now func() time.Time
}

// NewRoom creates an empty room. An empty password leaves the room open;
// the first creator's password otherwise gates every later join.
func NewRoom(id types.RoomIDType, password string) *Room {
	return &Room{
		ID:           id,
		password:     password,
		participants: make(map[types.UserIDType]*UserInfo),
		cursors:      make(map[types.UserIDType]*CursorState),
		strokeIndex:  make(map[types.StrokeIDType]*Stroke),
		maxUsers:     protocol.MaxUsersPerRoom,
		maxStrokes:   protocol.MaxStrokesPerRoom,
		now:          time.Now,
	}
}

// ValidatePassword reports whether the supplied password grants entry.
func (r *Room) ValidatePassword(password string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.password == "" || password == r.password
}

// Password returns the room's password.
func (r *Room) Password() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.password
}

// AddParticipant inserts a participant and a zero-initialized cursor entry
// atomically. Returns false iff the room is at capacity.
func (r *Room) AddParticipant(info UserInfo) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.participants) >= r.maxUsers {
		return false
	}
	u := info
	r.participants[info.UserID] = &u
	r.cursors[info.UserID] = &CursorState{UserID: info.UserID}
	return true
}

// RemoveParticipant removes the participant and its cursor together.
// Idempotent.
func (r *Room) RemoveParticipant(userID types.UserIDType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, userID)
	delete(r.cursors, userID)
}

// Participants returns an independent snapshot of all memberships.
func (r *Room) Participants() []UserInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]UserInfo, 0, len(r.participants))
	for _, u := range r.participants {
		out = append(out, *u)
	}
	return out
}

// ParticipantIDs returns a snapshot of the member user IDs.
func (r *Room) ParticipantIDs() []types.UserIDType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.UserIDType, 0, len(r.participants))
	for id := range r.participants {
		out = append(out, id)
	}
	return out
}

// Participant returns a copy of one membership.
func (r *Room) Participant(userID types.UserIDType) (UserInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.participants[userID]
	if !ok {
		return UserInfo{}, false
	}
	return *u, true
}

// Cursors returns an independent snapshot of all cursor states.
func (r *Room) Cursors() map[types.UserIDType]CursorState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[types.UserIDType]CursorState, len(r.cursors))
	for id, c := range r.cursors {
		out[id] = *c
	}
	return out
}

// UpdateCursor moves the user's cursor and refreshes their activity.
// No-op returning false when the user is absent.
func (r *Room) UpdateCursor(userID types.UserIDType, x, y float32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cursors[userID]
	if !ok {
		return false
	}
	now := r.now()
	c.X, c.Y = x, y
	c.LastUpdate = now
	c.Visible = true

	if u, ok := r.participants[userID]; ok {
		u.LastActivity = now
	}
	return true
}

// TouchUser refreshes the participant's activity timestamp.
func (r *Room) TouchUser(userID types.UserIDType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.participants[userID]; ok {
		u.LastActivity = r.now()
	}
}

// MarkInactive flips the participant's active flag off.
func (r *Room) MarkInactive(userID types.UserIDType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.participants[userID]; ok {
		u.IsActive = false
	}
}

// AddStroke appends a stroke. When the cap is exceeded the oldest strokes
// are evicted from the front until it holds again.
func (r *Room) AddStroke(s Stroke) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := s
	r.strokes = append(r.strokes, &stored)
	r.strokeIndex[s.ID] = &stored

	if excess := len(r.strokes) - r.maxStrokes; excess > 0 {
		for _, old := range r.strokes[:excess] {
			delete(r.strokeIndex, old.ID)
		}
		r.strokes = append([]*Stroke(nil), r.strokes[excess:]...)
		metrics.StrokesEvicted.Add(float64(excess))
	}
}

// Stroke returns a deep copy of the stroke with the given ID.
func (r *Room) Stroke(id types.StrokeIDType) (Stroke, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.strokeIndex[id]
	if !ok {
		return Stroke{}, false
	}
	return copyStroke(s), true
}

// Strokes returns an independent snapshot of all strokes in seq order.
func (r *Room) Strokes() []Stroke {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Stroke, len(r.strokes))
	for i, s := range r.strokes {
		out[i] = copyStroke(s)
	}
	return out
}

// StrokeSnapshot returns the most recent strokes, up to limit, in insertion
// order. With limit <= 0 or more strokes than limit, only the tail is kept.
func (r *Room) StrokeSnapshot(limit int) []Stroke {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	if limit > 0 && len(r.strokes) > limit {
		start = len(r.strokes) - limit
	}
	out := make([]Stroke, 0, len(r.strokes)-start)
	for _, s := range r.strokes[start:] {
		out = append(out, copyStroke(s))
	}
	return out
}

// StrokeCount returns the number of retained strokes.
func (r *Room) StrokeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.strokes)
}

// AppendStrokePoints appends points to an open stroke owned by author.
func (r *Room) AppendStrokePoints(id types.StrokeIDType, author types.UserIDType, points []protocol.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.strokeIndex[id]
	if !ok {
		return ErrStrokeNotFound
	}
	if s.Author != author {
		return ErrNotStrokeOwner
	}
	if s.Complete {
		return ErrStrokeComplete
	}
	if len(s.Points)+len(points) > protocol.MaxPointsPerStroke {
		return ErrTooManyPoints
	}
	s.Points = append(s.Points, points...)
	return nil
}

// CompleteStroke sets the stroke's completion flag. The flag is monotonic;
// completing an already complete stroke is a no-op.
func (r *Room) CompleteStroke(id types.StrokeIDType, author types.UserIDType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.strokeIndex[id]
	if !ok {
		return ErrStrokeNotFound
	}
	if s.Author != author {
		return ErrNotStrokeOwner
	}
	s.Complete = true
	return nil
}

// TranslateStroke moves every point of a completed stroke by (dx, dy).
func (r *Room) TranslateStroke(id types.StrokeIDType, author types.UserIDType, dx, dy float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.strokeIndex[id]
	if !ok {
		return ErrStrokeNotFound
	}
	if s.Author != author {
		return ErrNotStrokeOwner
	}
	if !s.Complete {
		return ErrStrokeIncomplete
	}
	for i := range s.Points {
		s.Points[i].X += dx
		s.Points[i].Y += dy
	}
	return nil
}

// NextSequence atomically draws the next room-scoped sequence number,
// starting at 1.
func (r *Room) NextSequence() uint64 {
	return r.nextSeq.Add(1)
}

// CurrentSequence reads the counter without incrementing.
func (r *Room) CurrentSequence() uint64 {
	return r.nextSeq.Load()
}

// ParticipantCount returns the number of members.
func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// IsFull reports whether the room is at capacity.
func (r *Room) IsFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) >= r.maxUsers
}

// IsEmpty reports whether the room has no members.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0
}

// Broadcast hands the frame to every live participant except excludeUserID.
// Recipients are resolved under the lock; sends happen after release so a
// sender can never re-enter the room lock. Returns the delivered count.
func (r *Room) Broadcast(frame []byte, excludeUserID types.UserIDType) int {
	r.mu.Lock()
	conns := make([]types.Conn, 0, len(r.participants))
	for id, u := range r.participants {
		if id == excludeUserID || u.Conn == nil {
			continue
		}
		conns = append(conns, u.Conn)
	}
	r.mu.Unlock()

	delivered := 0
	for _, c := range conns {
		if c.Send(frame) {
			delivered++
		}
	}
	if delivered > 0 {
		metrics.BroadcastsSent.Add(float64(delivered))
	}
	return delivered
}

// SendTo delivers one frame to a single participant, if present and live.
func (r *Room) SendTo(userID types.UserIDType, frame []byte) bool {
	r.mu.Lock()
	var conn types.Conn
	if u, ok := r.participants[userID]; ok {
		conn = u.Conn
	}
	r.mu.Unlock()

	if conn == nil {
		return false
	}
	return conn.Send(frame)
}

func copyStroke(s *Stroke) Stroke {
	out := *s
	out.Points = append([]protocol.Point(nil), s.Points...)
	return out
}
