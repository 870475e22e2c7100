package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/biz/repo"
	"github.com/zapbot-im/zapbot/internal/conf"
	"github.com/zapbot-im/zapbot/internal/state"
)

const botJID = "5511911111111@s.whatsapp.net"

type sentText struct {
	ChatJID  string
	Text     string
	Mentions []string
}

// mockTransport records every outbound call.
type mockTransport struct {
	texts    []sentText
	deleted  []string
	removed  []string
	members  map[string][]repo.GroupMember
	sendErr  error
	delErr   error
	eventsCh chan repo.Event
}

func newMockTransport() *mockTransport {
	return &mockTransport{members: make(map[string][]repo.GroupMember)}
}

func (m *mockTransport) SendText(ctx context.Context, chatJID, text string, mentions []string) error {
	m.texts = append(m.texts, sentText{chatJID, text, mentions})
	return m.sendErr
}

func (m *mockTransport) SendMedia(ctx context.Context, chatJID string, kind domain.ContentKind, payload []byte, caption string, mentions []string) error {
	return nil
}

func (m *mockTransport) DeleteMessage(ctx context.Context, chatJID, messageID string) error {
	if m.delErr != nil {
		return m.delErr
	}
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *mockTransport) React(ctx context.Context, chatJID, messageID, emoji string) error {
	return nil
}

func (m *mockTransport) SetPresence(ctx context.Context, chatJID string, state repo.PresenceState) error {
	return nil
}

func (m *mockTransport) GroupMembers(ctx context.Context, groupJID string) ([]repo.GroupMember, error) {
	return m.members[groupJID], nil
}

func (m *mockTransport) UpdateMembership(ctx context.Context, groupJID string, jids []string, action repo.MembershipAction) error {
	if action == repo.MembershipRemove {
		m.removed = append(m.removed, jids...)
	}
	return nil
}

func (m *mockTransport) Download(ctx context.Context, msg *domain.Message) ([]byte, error) {
	return []byte("media"), nil
}

func (m *mockTransport) Events() <-chan repo.Event {
	return m.eventsCh
}

func (m *mockTransport) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSecurityForTest(transport *mockTransport) (*SecurityUsecase, *state.Settings) {
	settings := state.NewSettings()
	persona := conf.DefaultPersona()
	uc := NewSecurityUsecase(
		transport,
		settings,
		state.NewWarnings(),
		state.NewSpamDetector("owner@s.whatsapp.net", 10*time.Second, 100),
		&persona.Messages,
		SecurityConfig{
			BlockedPrefixes: []string{"https://chat.whatsapp.com/"},
			MaxWarnings:     5,
		},
		discardLogger(),
	)
	return uc, settings
}

func linkMessage(i int) *domain.Message {
	return &domain.Message{
		ID:        fmt.Sprintf("msg-%d", i),
		ChatJID:   groupJID,
		SenderJID: userJID,
		IsGroup:   true,
		Kind:      domain.KindText,
		Text:      "join https://chat.whatsapp.com/abcdef",
	}
}

func TestSecurity_LinkEscalation(t *testing.T) {
	transport := newMockTransport()
	transport.members[groupJID] = []repo.GroupMember{
		{JID: botJID, Role: repo.RoleAdmin},
		{JID: userJID, Role: repo.RoleMember},
	}
	uc, _ := newSecurityForTest(transport)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if handled := uc.Evaluate(ctx, linkMessage(i), botJID); !handled {
			t.Fatalf("Violation %d must be handled", i)
		}

		// Warning i/5 was sent.
		found := false
		for _, s := range transport.texts {
			if strings.Contains(s.Text, fmt.Sprintf("%d/5", i)) {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected a warning containing %d/5", i)
		}

		// Removal only after the 5th.
		if i < 5 && len(transport.removed) != 0 {
			t.Fatalf("Removal attempted after violation %d", i)
		}
	}

	if len(transport.deleted) != 5 {
		t.Errorf("Deleted %d messages, want 5", len(transport.deleted))
	}
	if len(transport.removed) != 1 || transport.removed[0] != userJID {
		t.Errorf("Removed = %v, want the offending sender once", transport.removed)
	}
}

func TestSecurity_NoModRights(t *testing.T) {
	transport := newMockTransport()
	transport.members[groupJID] = []repo.GroupMember{
		{JID: botJID, Role: repo.RoleMember},
		{JID: userJID, Role: repo.RoleMember},
	}
	uc, _ := newSecurityForTest(transport)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		uc.Evaluate(ctx, linkMessage(i), botJID)
	}

	if len(transport.removed) != 0 {
		t.Error("Bot without admin rights must not attempt removal")
	}

	persona := conf.DefaultPersona()
	found := false
	for _, s := range transport.texts {
		if s.Text == persona.Messages.NoModRights {
			found = true
		}
	}
	if !found {
		t.Error("Expected an informational no-rights notice")
	}
}

func TestSecurity_LinkProtectionDisabled(t *testing.T) {
	transport := newMockTransport()
	uc, settings := newSecurityForTest(transport)

	off := false
	settings.Patch(groupJID, domain.SettingsPatch{LinkProtectionEnabled: &off, SpamFilterEnabled: &off})

	if handled := uc.Evaluate(context.Background(), linkMessage(1), botJID); handled {
		t.Error("Disabled link protection must not handle the message")
	}
}

func TestSecurity_SpamRemoval(t *testing.T) {
	transport := newMockTransport()
	transport.members[groupJID] = []repo.GroupMember{
		{JID: botJID, Role: repo.RoleAdmin},
		{JID: userJID, Role: repo.RoleMember},
	}

	settings := state.NewSettings()
	persona := conf.DefaultPersona()
	uc := NewSecurityUsecase(
		transport, settings, state.NewWarnings(),
		state.NewSpamDetector("owner@s.whatsapp.net", 10*time.Second, 2),
		&persona.Messages,
		SecurityConfig{BlockedPrefixes: nil, MaxWarnings: 5},
		discardLogger(),
	)

	ctx := context.Background()
	msg := &domain.Message{ID: "m", ChatJID: groupJID, SenderJID: userJID, IsGroup: true, Kind: domain.KindText, Text: "hi"}

	uc.Evaluate(ctx, msg, botJID)
	uc.Evaluate(ctx, msg, botJID)
	if handled := uc.Evaluate(ctx, msg, botJID); !handled {
		t.Fatal("Third rapid message must be handled as spam")
	}

	if len(transport.removed) != 1 {
		t.Errorf("Removed = %v, want the spammer", transport.removed)
	}
}

func TestSecurity_AdminBypassesSpam(t *testing.T) {
	transport := newMockTransport()
	transport.members[groupJID] = []repo.GroupMember{
		{JID: botJID, Role: repo.RoleAdmin},
		{JID: userJID, Role: repo.RoleAdmin},
	}

	settings := state.NewSettings()
	persona := conf.DefaultPersona()
	uc := NewSecurityUsecase(
		transport, settings, state.NewWarnings(),
		state.NewSpamDetector("owner@s.whatsapp.net", 10*time.Second, 1),
		&persona.Messages,
		SecurityConfig{MaxWarnings: 5},
		discardLogger(),
	)

	ctx := context.Background()
	msg := &domain.Message{ID: "m", ChatJID: groupJID, SenderJID: userJID, IsGroup: true, Kind: domain.KindText, Text: "hi"}
	for i := 0; i < 5; i++ {
		if handled := uc.Evaluate(ctx, msg, botJID); handled {
			t.Fatal("Group admins must bypass the spam check")
		}
	}
}
