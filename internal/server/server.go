// Package server consumes the transport's inbound event stream and routes it
// into the message pipeline and membership handlers.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/biz/repo"
	"github.com/zapbot-im/zapbot/internal/biz/usecase"
	"github.com/zapbot-im/zapbot/internal/conf"
	"github.com/zapbot-im/zapbot/internal/service"
	"github.com/zapbot-im/zapbot/internal/state"
)

// seenTTL bounds how long processed message IDs are remembered for
// deduplication.
const seenTTL = 5 * time.Minute

// EventServer is the bot's inbound event loop.
type EventServer struct {
	transport repo.Transport
	pipeline  *service.Pipeline
	typing    *service.TypingManager
	trigger   *usecase.TriggerUsecase
	settings  *state.Settings
	messages  *conf.Messages
	logger    *slog.Logger

	// Message deduplication cache. Reconnects can replay recent history.
	seenMu sync.RWMutex
	seen   map[string]time.Time

	wg   sync.WaitGroup
	done chan struct{}
}

// NewEventServer creates a stopped event server.
func NewEventServer(
	transport repo.Transport,
	pipeline *service.Pipeline,
	typing *service.TypingManager,
	trigger *usecase.TriggerUsecase,
	settings *state.Settings,
	messages *conf.Messages,
	logger *slog.Logger,
) *EventServer {
	return &EventServer{
		transport: transport,
		pipeline:  pipeline,
		typing:    typing,
		trigger:   trigger,
		settings:  settings,
		messages:  messages,
		logger:    logger,
		seen:      make(map[string]time.Time),
		done:      make(chan struct{}),
	}
}

// Start launches the event loop. It returns immediately; the loop exits when
// the transport's event channel closes or Stop is called.
func (s *EventServer) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("event server started")
}

// Stop terminates the loop and waits for the in-flight event to finish.
func (s *EventServer) Stop() {
	close(s.done)
	s.wg.Wait()
	s.logger.Info("event server stopped")
}

func (s *EventServer) loop(ctx context.Context) {
	defer s.wg.Done()

	events := s.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case ev, ok := <-events:
			if !ok {
				s.logger.Info("transport event stream closed")
				return
			}
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *EventServer) handleEvent(ctx context.Context, ev repo.Event) {
	switch ev.Type {
	case repo.EventConnected:
		linked := domain.NormalizeJID(ev.LinkedJID)
		s.trigger.SetLinkedJID(linked)
		s.logger.Info("transport connected", "linked_jid", linked)

	case repo.EventMessageBatch:
		s.handleBatch(ctx, ev.Messages)

	case repo.EventMembership:
		if ev.Membership != nil {
			s.handleMembership(ctx, ev.Membership)
		}

	case repo.EventDisconnected:
		// Only composing timers are cleared; pending pipeline runs finish on
		// their own and swallow send failures.
		s.typing.ClearAll(ctx)
		s.logger.Warn("transport disconnected")

	default:
		s.logger.Debug("unhandled transport event", "type", ev.Type)
	}
}

func (s *EventServer) handleBatch(ctx context.Context, batch []*domain.Message) {
	fresh := batch[:0:0]
	for _, msg := range batch {
		if s.isSeen(msg.ID) {
			s.logger.Debug("duplicate message ignored", "message", msg.ID)
			continue
		}
		s.markSeen(msg.ID)
		fresh = append(fresh, msg)
	}
	if len(fresh) > 0 {
		s.pipeline.HandleBatch(ctx, fresh)
	}
}

// handleMembership announces joins and leaves when the group has them
// enabled.
func (s *EventServer) handleMembership(ctx context.Context, change *repo.MembershipChange) {
	groupJID := domain.NormalizeJID(change.GroupJID)
	if groupJID == "" {
		return
	}
	settings := s.settings.Get(groupJID)

	var format string
	switch change.Action {
	case repo.MembershipAdd:
		if !settings.WelcomeEnabled {
			return
		}
		format = s.messages.Welcome
	case repo.MembershipRemove:
		if !settings.GoodbyeEnabled {
			return
		}
		format = s.messages.Goodbye
	default:
		return
	}

	for _, raw := range change.JIDs {
		jid := domain.NormalizeJID(raw)
		if jid == "" {
			continue
		}
		text := fmt.Sprintf(format, "@"+domain.JIDNumber(jid))
		if err := s.transport.SendText(ctx, groupJID, text, []string{jid}); err != nil {
			s.logger.Warn("membership announcement failed",
				"group", groupJID, "member", jid, "error", err)
		}
	}
}

func (s *EventServer) isSeen(msgID string) bool {
	s.seenMu.RLock()
	defer s.seenMu.RUnlock()
	_, ok := s.seen[msgID]
	return ok
}

// markSeen records a processed message ID and evicts stale entries so the
// cache cannot grow without bound.
func (s *EventServer) markSeen(msgID string) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	now := time.Now()
	s.seen[msgID] = now

	cutoff := now.Add(-seenTTL)
	for id, ts := range s.seen {
		if ts.Before(cutoff) {
			delete(s.seen, id)
		}
	}
}
