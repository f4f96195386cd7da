// Package ratelimit implements per-key token-bucket rate limiting for the
// whiteboard core, plus a per-IP guard on the WebSocket upgrade path.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Presets for the presence path and bucket housekeeping.
const (
	CursorUpdatesPerSecond = 20.0
	RateLimitBurstSize     = 5.0
	RateLimitMuteDuration  = 10 * time.Second
	DefaultMaxIdle         = 300 * time.Second
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter is a thread-safe per-key token bucket. New keys start with a full
// bucket, allowing an initial burst.
type Limiter struct {
	mu         sync.Mutex
	refillRate float64 // tokens per second
	capacity   float64
	buckets    map[string]*bucket
	now        func() time.Time
}

// NewLimiter creates a Limiter with the given refill rate (tokens/second)
// and capacity (burst size).
func NewLimiter(refillRate, capacity float64) *Limiter {
	return &Limiter{
		refillRate: refillRate,
		capacity:   capacity,
		buckets:    make(map[string]*bucket),
		now:        time.Now,
	}
}

// NewCursorLimiter returns the preset used by the presence path:
// 20 updates per second with a burst of 5.
func NewCursorLimiter() *Limiter {
	return NewLimiter(CursorUpdatesPerSecond, RateLimitBurstSize)
}

// TryConsume refills the key's bucket and consumes one token if available.
func (l *Limiter) TryConsume(key string) bool {
	return l.TryConsumeN(key, 1)
}

// TryConsumeN refills the key's bucket and atomically consumes n tokens if
// available; otherwise the bucket is left unchanged.
func (l *Limiter) TryConsumeN(key string, n float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getOrCreate(key)
	l.refill(b)

	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// CanConsume reports whether one token is available without consuming it.
func (l *Limiter) CanConsume(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getOrCreate(key)
	l.refill(b)
	return b.tokens >= 1
}

// Tokens returns the key's current token count after refill, or false when
// the key has no bucket.
func (l *Limiter) Tokens(key string) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return 0, false
	}
	l.refill(b)
	return b.tokens, true
}

// WaitTime returns how long until the key's next token is available, rounded
// up to the millisecond. Zero when a token is already available.
func (l *Limiter) WaitTime(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getOrCreate(key)
	l.refill(b)

	if b.tokens >= 1 {
		return 0
	}
	ms := math.Ceil((1 - b.tokens) / l.refillRate * 1000)
	return time.Duration(ms) * time.Millisecond
}

// Reset refills the key's bucket to capacity. No-op for unknown keys.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		b.tokens = l.capacity
		b.lastRefill = l.now()
	}
}

// Remove drops the key's bucket. Call when a user leaves.
func (l *Limiter) Remove(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Size returns the number of tracked keys.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Clear drops all buckets.
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}

// Cleanup drops every bucket idle for longer than maxIdle and returns the
// number removed. Call periodically to bound memory for churned users.
func (l *Limiter) Cleanup(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	removed := 0
	for key, b := range l.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// RefillRate returns the configured tokens-per-second rate.
func (l *Limiter) RefillRate() float64 { return l.refillRate }

// Capacity returns the configured burst size.
func (l *Limiter) Capacity() float64 { return l.capacity }

// SetClock overrides the time source. Tests only.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// getOrCreate must be called with l.mu held.
func (l *Limiter) getOrCreate(key string) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastRefill: l.now()}
		l.buckets[key] = b
	}
	return b
}

// refill must be called with l.mu held. Clamps at capacity.
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.refillRate)
	b.lastRefill = now
}
