package state

import (
	"sync"
	"time"
)

// Warnings counts link-policy violations per identity.
type Warnings struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewWarnings creates an empty warning counter.
func NewWarnings() *Warnings {
	return &Warnings{counts: make(map[string]int)}
}

// Increment bumps the count for jid and returns the new value.
func (w *Warnings) Increment(jid string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[jid]++
	return w.counts[jid]
}

// Count returns the current count for jid.
func (w *Warnings) Count(jid string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[jid]
}

// Reset clears the count for jid.
func (w *Warnings) Reset(jid string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.counts, jid)
}

// Punishments maps an identity to a timeout expiry. While active, all inbound
// messages from that identity are silently dropped before any other stage.
type Punishments struct {
	mu    sync.Mutex
	until map[string]time.Time
}

// NewPunishments creates an empty punishment list.
func NewPunishments() *Punishments {
	return &Punishments{until: make(map[string]time.Time)}
}

// Punish times out jid until the given instant.
func (p *Punishments) Punish(jid string, until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.until[jid] = until
}

// Lift removes any timeout for jid.
func (p *Punishments) Lift(jid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.until, jid)
}

// Active reports whether jid is currently timed out. An entry observed
// expired is evicted on the spot.
func (p *Punishments) Active(jid string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	until, ok := p.until[jid]
	if !ok {
		return false
	}
	if !now.Before(until) {
		delete(p.until, jid)
		return false
	}
	return true
}

// Sweep evicts every expired entry and returns how many were removed.
func (p *Punishments) Sweep(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for jid, until := range p.until {
		if !now.Before(until) {
			delete(p.until, jid)
			removed++
		}
	}
	return removed
}
