package state

import (
	"errors"
	"sync"
	"time"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
)

// Ephemeral store lookup failures.
var (
	ErrNotFound = errors.New("ephemeral: no pending media")
	ErrExpired  = errors.New("ephemeral: media expired")
)

// EphemeralItem is one captured self-destructing media payload.
type EphemeralItem struct {
	OwnerJID  string
	Kind      domain.ContentKind
	Payload   []byte
	Caption   string
	CreatedAt time.Time
}

// EphemeralStore caches at most one pending view-once media item per owner
// identity, for a bounded TTL. Retrieval is destructive: an item is delivered
// to at most one successful lookup.
type EphemeralStore struct {
	ttl time.Duration

	mu    sync.Mutex
	items map[string]*EphemeralItem
}

// NewEphemeralStore creates a store with the given item TTL.
func NewEphemeralStore(ttl time.Duration) *EphemeralStore {
	return &EphemeralStore{
		ttl:   ttl,
		items: make(map[string]*EphemeralItem),
	}
}

// TTL returns the configured item lifetime.
func (s *EphemeralStore) TTL() time.Duration {
	return s.ttl
}

// Capture stores a media item for the owner, overwriting any unclaimed
// previous one.
func (s *EphemeralStore) Capture(ownerJID string, kind domain.ContentKind, payload []byte, caption string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[ownerJID] = &EphemeralItem{
		OwnerJID:  ownerJID,
		Kind:      kind,
		Payload:   payload,
		Caption:   caption,
		CreatedAt: now,
	}
}

// Retrieve consumes the owner's pending item. It returns ErrNotFound when no
// entry exists and ErrExpired (clearing the slot) when the item outlived the
// TTL. The success path also clears the slot.
func (s *EphemeralStore) Retrieve(ownerJID string, now time.Time) (*EphemeralItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[ownerJID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.items, ownerJID)
	if now.Sub(item.CreatedAt) > s.ttl {
		return nil, ErrExpired
	}
	return item, nil
}

// Sweep deletes every expired item and returns how many were removed.
func (s *EphemeralStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for owner, item := range s.items {
		if now.Sub(item.CreatedAt) > s.ttl {
			delete(s.items, owner)
			removed++
		}
	}
	return removed
}
