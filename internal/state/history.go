package state

import (
	"strings"
	"sync"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
)

// History is the bounded per-conversation transcript feeding the AI
// collaborator. Each conversation keeps at most cap entries, oldest evicted
// first.
type History struct {
	cap int

	mu      sync.Mutex
	entries map[string][]domain.ChatEntry
}

// NewHistory creates a transcript store with the given per-conversation cap.
func NewHistory(cap int) *History {
	return &History{
		cap:     cap,
		entries: make(map[string][]domain.ChatEntry),
	}
}

// Append pushes an entry onto the conversation's transcript, then trims from
// the front until the cap holds. Empty or whitespace text is a no-op.
func (h *History) Append(chatJID string, role domain.Role, speakerJID, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	list := append(h.entries[chatJID], domain.ChatEntry{
		Role:       role,
		SpeakerJID: speakerJID,
		Text:       text,
	})
	if over := len(list) - h.cap; over > 0 {
		list = append([]domain.ChatEntry(nil), list[over:]...)
	}
	h.entries[chatJID] = list
}

// Read returns the conversation's transcript, oldest first. Unseen
// conversations yield an empty slice.
func (h *History) Read(chatJID string) []domain.ChatEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.entries[chatJID]
	out := make([]domain.ChatEntry, len(list))
	copy(out, list)
	return out
}
