package ratelimit

import (
	"sync"
	"time"
)

// DefaultViolationsBeforeMute is how many consecutive rate-limit violations
// a key accumulates before being muted.
const DefaultViolationsBeforeMute = 3

// MutingLimiter wraps a Limiter and escalates repeat offenders into a
// temporary mute. While muted, every consume attempt fails without touching
// the underlying bucket.
type MutingLimiter struct {
	mu           sync.Mutex
	limiter      *Limiter
	muteDuration time.Duration
	threshold    int
	violations   map[string]int
	mutedUntil   map[string]time.Time
	now          func() time.Time
}

// NewMutingLimiter creates a MutingLimiter over a fresh bucket engine.
func NewMutingLimiter(refillRate, capacity float64, muteDuration time.Duration, violationsBeforeMute int) *MutingLimiter {
	return &MutingLimiter{
		limiter:      NewLimiter(refillRate, capacity),
		muteDuration: muteDuration,
		threshold:    violationsBeforeMute,
		violations:   make(map[string]int),
		mutedUntil:   make(map[string]time.Time),
		now:          time.Now,
	}
}

// TryConsume attempts to consume one token, tracking violations.
// Returns false while the key is muted or rate limited.
func (m *MutingLimiter) TryConsume(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if until, muted := m.mutedUntil[key]; muted {
		if m.now().Before(until) {
			return false
		}
		// Mute expired; forgive past violations.
		delete(m.mutedUntil, key)
		delete(m.violations, key)
	}

	if m.limiter.TryConsume(key) {
		return true
	}

	m.violations[key]++
	if m.violations[key] >= m.threshold {
		m.mutedUntil[key] = m.now().Add(m.muteDuration)
	}
	return false
}

// IsMuted reports whether the key is currently muted, expiring stale mutes.
func (m *MutingLimiter) IsMuted(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.mutedUntil[key]
	if !ok {
		return false
	}
	if !m.now().Before(until) {
		delete(m.mutedUntil, key)
		delete(m.violations, key)
		return false
	}
	return true
}

// MuteRemaining returns how long the key stays muted; zero when not muted.
func (m *MutingLimiter) MuteRemaining(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.mutedUntil[key]
	if !ok {
		return 0
	}
	now := m.now()
	if !now.Before(until) {
		delete(m.mutedUntil, key)
		return 0
	}
	return until.Sub(now)
}

// Remove drops all state for the key.
func (m *MutingLimiter) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiter.Remove(key)
	delete(m.violations, key)
	delete(m.mutedUntil, key)
}

// Clear drops all state.
func (m *MutingLimiter) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiter.Clear()
	m.violations = make(map[string]int)
	m.mutedUntil = make(map[string]time.Time)
}

// SetClock overrides the time source for both layers. Tests only.
func (m *MutingLimiter) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	m.limiter.SetClock(now)
}
