package room

import (
	"time"

	"github.com/collabboard/backend/go/internal/v1/metrics"
	"github.com/collabboard/backend/go/internal/v1/protocol"
	"github.com/collabboard/backend/go/internal/v1/ratelimit"
	"github.com/collabboard/backend/go/internal/v1/types"
)

// Presence handles cursor movement and activity tracking. It owns the
// per-user cursor rate limiter; room membership stays in the Room.
type Presence struct {
	limiter *ratelimit.Limiter
	now     func() time.Time
}

func NewPresence() *Presence {
	return &Presence{
		limiter: ratelimit.NewCursorLimiter(),
		now:     time.Now,
	}
}

// HandleCursorMove applies a rate-limited cursor update and broadcasts it
// to the other participants. Returns false when the update was dropped,
// either by the limiter or because the user is not in the room. Dropped
// updates are not errors; cursor traffic is loss-tolerant.
func (p *Presence) HandleCursorMove(r *Room, userID types.UserIDType, d protocol.CursorMoveData) bool {
	if !p.limiter.TryConsume(string(userID)) {
		metrics.RateLimitDrops.WithLabelValues("cursor").Inc()
		return false
	}
	if !r.UpdateCursor(userID, d.X, d.Y) {
		return false
	}
	r.Broadcast(protocol.NewCursorMove(string(userID), d.X, d.Y, r.NextSequence()), userID)
	return true
}

// UpdateLastSeen refreshes the user's activity without moving the cursor.
func (p *Presence) UpdateLastSeen(r *Room, userID types.UserIDType) {
	r.TouchUser(userID)
}

// GhostUsers returns the participants whose last activity is older than
// timeout.
func (p *Presence) GhostUsers(r *Room, timeout time.Duration) []types.UserIDType {
	now := p.now()
	var ghosts []types.UserIDType
	for _, u := range r.Participants() {
		if u.IsGhost(timeout, now) {
			ghosts = append(ghosts, u.UserID)
		}
	}
	return ghosts
}

// MarkGhostsInactive flags every ghost as inactive. Ghosts stay in the
// room; only a disconnect removes them.
func (p *Presence) MarkGhostsInactive(r *Room, timeout time.Duration) int {
	ghosts := p.GhostUsers(r, timeout)
	for _, id := range ghosts {
		r.MarkInactive(id)
	}
	return len(ghosts)
}

// RemoveUser drops the user's limiter state after they leave.
func (p *Presence) RemoveUser(userID types.UserIDType) {
	p.limiter.Remove(string(userID))
}

// CleanupIdle evicts limiter buckets idle past the default window.
func (p *Presence) CleanupIdle() int {
	return p.limiter.Cleanup(ratelimit.DefaultMaxIdle)
}

// SetClock overrides both the presence clock and the limiter clock.
// Test hook.
func (p *Presence) SetClock(now func() time.Time) {
	p.now = now
	p.limiter.SetClock(now)
}
