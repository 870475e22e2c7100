// Package state holds the bot's in-memory state machines: per-identity
// rate/spam windows, moderation counters, group settings, chat transcripts and
// the ephemeral media slots. Every store guards its map with a mutex so the
// pipeline, command handlers and sweeper timers can share them freely.
package state

import (
	"sync"
	"time"
)

// RateLimiter is the per-identity cooldown gate for commands. The privileged
// owner identity is always allowed and never recorded.
type RateLimiter struct {
	ownerJID string
	window   time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// NewRateLimiter creates a rate limiter with the given cooldown window.
func NewRateLimiter(ownerJID string, window time.Duration) *RateLimiter {
	return &RateLimiter{
		ownerJID: ownerJID,
		window:   window,
		last:     make(map[string]time.Time),
	}
}

// Allow checks and records a command attempt. On rejection the state is left
// untouched and the remaining wait is returned for user-facing messaging.
func (r *RateLimiter) Allow(jid string, now time.Time) (allowed bool, remaining time.Duration) {
	if jid == r.ownerJID {
		return true, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if lastAt, ok := r.last[jid]; ok {
		elapsed := now.Sub(lastAt)
		if elapsed < r.window {
			return false, r.window - elapsed
		}
	}
	r.last[jid] = now
	return true, 0
}

// WaitSeconds converts a remaining wait to whole seconds, rounding up.
func WaitSeconds(remaining time.Duration) int {
	return int((remaining + time.Second - 1) / time.Second)
}
