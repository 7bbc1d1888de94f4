// internal/outreach/health.go
package outreach

import (
	"sync"
	"time"
)

// SessionHealth tracks the vital signs of one authenticated session.
// Prospects are processed strictly sequentially today, but every mutation
// still takes the lock so the counters stay correct if independent sessions
// are ever run in parallel.
type SessionHealth struct {
	mu                  sync.Mutex
	sent                int
	consecutiveFailures int
	rateLimitHits       int
	lastRateLimit       time.Time
}

// HealthSnapshot is a point-in-time copy of the session counters.
type HealthSnapshot struct {
	Sent                int
	ConsecutiveFailures int
	RateLimitHits       int
	LastRateLimit       time.Time
}

// NewSessionHealth returns a zeroed counter set.
func NewSessionHealth() *SessionHealth {
	return &SessionHealth{}
}

// RecordSent counts a delivered request and clears the failure streak.
func (h *SessionHealth) RecordSent() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent++
	h.consecutiveFailures = 0
}

// RecordFailure extends the failure streak. Skips are neutral and do not
// touch it.
func (h *SessionHealth) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures++
}

// RecordRateLimit stamps a rate-limit encounter.
func (h *SessionHealth) RecordRateLimit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rateLimitHits++
	h.lastRateLimit = time.Now()
}

// Snapshot returns a consistent copy of all counters.
func (h *SessionHealth) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		Sent:                h.sent,
		ConsecutiveFailures: h.consecutiveFailures,
		RateLimitHits:       h.rateLimitHits,
		LastRateLimit:       h.lastRateLimit,
	}
}
