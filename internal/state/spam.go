package state

import (
	"sync"
	"time"
)

// SpamDetector is a sliding-window frequency check on raw message throughput,
// distinct from the RateLimiter which guards commands. The owner identity is
// never flagged.
type SpamDetector struct {
	ownerJID string
	window   time.Duration
	max      int

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewSpamDetector creates a detector flagging identities that exceed max
// messages inside the window.
func NewSpamDetector(ownerJID string, window time.Duration, max int) *SpamDetector {
	return &SpamDetector{
		ownerJID: ownerJID,
		window:   window,
		max:      max,
		hits:     make(map[string][]time.Time),
	}
}

// Observe records a message arrival and reports whether the identity is
// spamming this tick. Entries older than the window are pruned first.
func (d *SpamDetector) Observe(jid string, now time.Time) bool {
	if jid == d.ownerJID {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := now.Add(-d.window)
	kept := d.hits[jid][:0]
	for _, ts := range d.hits[jid] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	d.hits[jid] = kept

	return len(kept) > d.max
}
