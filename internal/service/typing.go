package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zapbot-im/zapbot/internal/biz/repo"
)

// TypingManager keeps a composing-presence indicator alive per chat. Every
// qualifying inbound message re-arms the chat's timer; when a timer fires
// without renewal, presence drops back to paused. At most one timer exists
// per chat.
type TypingManager struct {
	transport repo.Transport
	hold      time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTypingManager creates a manager holding presence for the given duration.
func NewTypingManager(transport repo.Transport, hold time.Duration, logger *slog.Logger) *TypingManager {
	return &TypingManager{
		transport: transport,
		hold:      hold,
		logger:    logger,
		timers:    make(map[string]*time.Timer),
	}
}

// Arm marks the bot as composing in chatJID and extends the hold window.
func (t *TypingManager) Arm(ctx context.Context, chatJID string) {
	if err := t.transport.SetPresence(ctx, chatJID, repo.PresenceComposing); err != nil {
		t.logger.Debug("set composing presence failed", "chat", chatJID, "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[chatJID]; ok {
		timer.Reset(t.hold)
		return
	}
	t.timers[chatJID] = time.AfterFunc(t.hold, func() {
		t.release(chatJID)
	})
}

// release drops presence for one chat after its hold expires.
func (t *TypingManager) release(chatJID string) {
	t.mu.Lock()
	delete(t.timers, chatJID)
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.transport.SetPresence(ctx, chatJID, repo.PresencePaused); err != nil {
		t.logger.Debug("set paused presence failed", "chat", chatJID, "error", err)
	}
}

// ClearAll stops every pending timer and resets presence in the affected
// chats. Used on disconnect and shutdown.
func (t *TypingManager) ClearAll(ctx context.Context) {
	t.mu.Lock()
	chats := make([]string, 0, len(t.timers))
	for chat, timer := range t.timers {
		timer.Stop()
		chats = append(chats, chat)
	}
	t.timers = make(map[string]*time.Timer)
	t.mu.Unlock()

	for _, chat := range chats {
		if err := t.transport.SetPresence(ctx, chat, repo.PresencePaused); err != nil {
			t.logger.Debug("set paused presence failed", "chat", chat, "error", err)
		}
	}
}
