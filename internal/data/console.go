package data

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/biz/repo"
)

// ConsoleTransport is a development transport: stdin lines become direct
// messages from the owner and every outbound call is printed. It lets the
// whole pipeline run without a messaging-network session.
type ConsoleTransport struct {
	ownerJID  string
	linkedJID string
	out       io.Writer

	events chan repo.Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewConsoleTransport creates a console transport impersonating ownerJID as
// the peer and linkedJID as the bot's own device.
func NewConsoleTransport(ownerJID, linkedJID string) *ConsoleTransport {
	return &ConsoleTransport{
		ownerJID:  ownerJID,
		linkedJID: linkedJID,
		out:       os.Stdout,
		events:    make(chan repo.Event, 8),
		done:      make(chan struct{}),
	}
}

// Start emits the connected event and begins reading stdin.
func (t *ConsoleTransport) Start() {
	t.events <- repo.Event{Type: repo.EventConnected, LinkedJID: t.linkedJID}
	go t.readLoop()
}

func (t *ConsoleTransport) readLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		msg := &domain.Message{
			ID:        uuid.NewString(),
			ChatJID:   t.ownerJID,
			SenderJID: t.ownerJID,
			Kind:      domain.KindText,
			Text:      text,
			Timestamp: time.Now(),
		}
		select {
		case t.events <- repo.Event{Type: repo.EventMessageBatch, Messages: []*domain.Message{msg}}:
		case <-t.done:
			return
		}
	}
	t.closeOnce.Do(func() {
		close(t.done)
		close(t.events)
	})
}

func (t *ConsoleTransport) SendText(_ context.Context, chatJID, text string, mentions []string) error {
	if len(mentions) > 0 {
		fmt.Fprintf(t.out, "[send -> %s] %s (mentions %s)\n", chatJID, text, strings.Join(mentions, ", "))
		return nil
	}
	fmt.Fprintf(t.out, "[send -> %s] %s\n", chatJID, text)
	return nil
}

func (t *ConsoleTransport) SendMedia(_ context.Context, chatJID string, kind domain.ContentKind, payload []byte, caption string, _ []string) error {
	fmt.Fprintf(t.out, "[media -> %s] %s, %d bytes, caption %q\n", chatJID, kind, len(payload), caption)
	return nil
}

func (t *ConsoleTransport) DeleteMessage(_ context.Context, chatJID, messageID string) error {
	fmt.Fprintf(t.out, "[delete -> %s] %s\n", chatJID, messageID)
	return nil
}

func (t *ConsoleTransport) React(_ context.Context, chatJID, messageID, emoji string) error {
	fmt.Fprintf(t.out, "[react -> %s] %s %s\n", chatJID, messageID, emoji)
	return nil
}

func (t *ConsoleTransport) SetPresence(context.Context, string, repo.PresenceState) error {
	return nil
}

// GroupMembers reports the owner as the only (admin) member of any group.
func (t *ConsoleTransport) GroupMembers(context.Context, string) ([]repo.GroupMember, error) {
	return []repo.GroupMember{{JID: t.ownerJID, Role: repo.RoleSuperAdmin}}, nil
}

func (t *ConsoleTransport) UpdateMembership(_ context.Context, groupJID string, jids []string, action repo.MembershipAction) error {
	fmt.Fprintf(t.out, "[membership -> %s] %s %s\n", groupJID, action, strings.Join(jids, ", "))
	return nil
}

func (t *ConsoleTransport) Download(context.Context, *domain.Message) ([]byte, error) {
	return nil, fmt.Errorf("console transport has no media store")
}

func (t *ConsoleTransport) Events() <-chan repo.Event {
	return t.events
}

func (t *ConsoleTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		close(t.events)
	})
	return nil
}
