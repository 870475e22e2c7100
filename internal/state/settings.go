package state

import (
	"sync"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
)

// Settings is the per-conversation feature-toggle store. Records are created
// on first access with every feature enabled and live for the process
// lifetime; there is no deletion.
type Settings struct {
	mu     sync.Mutex
	groups map[string]*domain.GroupSettings
}

// NewSettings creates an empty settings store.
func NewSettings() *Settings {
	return &Settings{groups: make(map[string]*domain.GroupSettings)}
}

// Get returns a copy of the conversation's settings, lazily creating the
// default record.
func (s *Settings) Get(chatJID string) domain.GroupSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.record(chatJID)
}

// Patch merges a partial update into the conversation's settings.
func (s *Settings) Patch(chatJID string, patch domain.SettingsPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(chatJID).Apply(patch)
}

func (s *Settings) record(chatJID string) *domain.GroupSettings {
	rec, ok := s.groups[chatJID]
	if !ok {
		def := domain.DefaultGroupSettings()
		rec = &def
		s.groups[chatJID] = rec
	}
	return rec
}
