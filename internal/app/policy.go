package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Voice/internal/domain"
)

// OpenGate admits every call. Used when restricted calling is disabled or no booking source is configured.
type OpenGate struct{}

func (OpenGate) IsBookingWindowValid(context.Context, domain.UserID, domain.UserID) (bool, error) {
	return true, nil
}

// RateLimiter is a sliding-window limiter keyed by identity.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(uid domain.UserID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[uid]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[uid] = fresh
		return false
	}

	rl.history[uid] = append(fresh, now)
	return true
}

// Forget drops the history of identities with no attempt inside the window.
func (rl *RateLimiter) Forget() {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	windowStart := rl.now().Add(-rl.interval)
	for uid, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, uid)
		}
	}
}
