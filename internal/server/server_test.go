package server

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/biz/repo"
	"github.com/zapbot-im/zapbot/internal/biz/usecase"
	"github.com/zapbot-im/zapbot/internal/command"
	"github.com/zapbot-im/zapbot/internal/conf"
	"github.com/zapbot-im/zapbot/internal/service"
	"github.com/zapbot-im/zapbot/internal/state"
)

const (
	testOwner = "5511999990000@s.whatsapp.net"
	testUser  = "5511988880000@s.whatsapp.net"
	testGroup = "1203630000000000@g.us"
)

type sentText struct {
	chat     string
	text     string
	mentions []string
}

type mockTransport struct {
	texts  []sentText
	events chan repo.Event
}

func (m *mockTransport) SendText(_ context.Context, chatJID, text string, mentions []string) error {
	m.texts = append(m.texts, sentText{chat: chatJID, text: text, mentions: mentions})
	return nil
}

func (m *mockTransport) SendMedia(context.Context, string, domain.ContentKind, []byte, string, []string) error {
	return nil
}

func (m *mockTransport) DeleteMessage(context.Context, string, string) error { return nil }
func (m *mockTransport) React(context.Context, string, string, string) error { return nil }
func (m *mockTransport) SetPresence(context.Context, string, repo.PresenceState) error {
	return nil
}

func (m *mockTransport) GroupMembers(context.Context, string) ([]repo.GroupMember, error) {
	return nil, nil
}

func (m *mockTransport) UpdateMembership(context.Context, string, []string, repo.MembershipAction) error {
	return nil
}

func (m *mockTransport) Download(context.Context, *domain.Message) ([]byte, error) {
	return nil, nil
}

func (m *mockTransport) Events() <-chan repo.Event { return m.events }
func (m *mockTransport) Close() error              { return nil }

type nullProfileRepo struct{}

func (nullProfileRepo) Get(context.Context, string) (*domain.Profile, error) { return nil, nil }
func (nullProfileRepo) Upsert(context.Context, *domain.Profile) error        { return nil }
func (nullProfileRepo) Top(context.Context, int) ([]*domain.Profile, error)  { return nil, nil }
func (nullProfileRepo) Close() error                                         { return nil }

type fixture struct {
	transport *mockTransport
	settings  *state.Settings
	server    *EventServer
	profiles  *countingProfileRepo
}

// countingProfileRepo records Upsert calls so tests can tell how many
// messages reached the pipeline's award stage.
type countingProfileRepo struct {
	nullProfileRepo
	upserts int
}

func (r *countingProfileRepo) Upsert(context.Context, *domain.Profile) error {
	r.upserts++
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transport := &mockTransport{events: make(chan repo.Event, 8)}
	profiles := &countingProfileRepo{}
	persona := conf.DefaultPersona()

	history := state.NewHistory(50)
	settings := state.NewSettings()
	warnings := state.NewWarnings()
	punishments := state.NewPunishments()
	spam := state.NewSpamDetector(testOwner, 10*time.Second, 5)
	ephemeral := state.NewEphemeralStore(5 * time.Minute)

	trigger := usecase.NewTriggerUsecase(history, settings, nil, usecase.TriggerConfig{
		BotName:       "Zap",
		PrimaryNumber: "5511900000000",
		PromptBudget:  4000,
	})
	security := usecase.NewSecurityUsecase(transport, settings, warnings, spam,
		&persona.Messages, usecase.SecurityConfig{MaxWarnings: 5}, logger)
	progression := usecase.NewProgressionUsecase(profiles, 5)

	env := &command.Env{
		Transport:   transport,
		Progression: progression,
		Trigger:     trigger,
		Settings:    settings,
		Warnings:    warnings,
		Punishments: punishments,
		Ephemeral:   ephemeral,
		Messages:    &persona.Messages,
		OwnerJID:    testOwner,
		Prefix:      "!",
		Logger:      logger,
	}
	registry := command.NewRegistry(env, state.NewRateLimiter(testOwner, 10*time.Second))
	command.RegisterBuiltins(registry)

	typing := service.NewTypingManager(transport, time.Second, logger)
	pipeline := service.NewPipeline(service.PipelineConfig{
		OwnerJID:      testOwner,
		CommandPrefix: "!",
		HiddenPrefix:  "$",
		AIDisabled:    true,
	}, env, registry, trigger, security, progression, history, punishments, ephemeral, typing, persona, logger)

	srv := NewEventServer(transport, pipeline, typing, trigger, settings,
		&persona.Messages, logger)

	return &fixture{transport: transport, settings: settings, server: srv, profiles: profiles}
}

func TestConnectedEventSetsLinkedJID(t *testing.T) {
	f := newFixture(t)

	f.server.handleEvent(context.Background(), repo.Event{
		Type:      repo.EventConnected,
		LinkedJID: "5511911111111@s.whatsapp.net",
	})

	// The linked JID is observable through the membership of the trigger; a
	// mention of the linked device must now trigger.
	msg := &domain.Message{
		ID:        "m1",
		ChatJID:   testGroup,
		SenderJID: testUser,
		IsGroup:   true,
		Kind:      domain.KindText,
		Text:      "look",
		Mentions:  []string{"5511911111111@s.whatsapp.net"},
	}
	if !f.server.trigger.ShouldRespond(msg) {
		t.Error("mention of the linked device does not trigger after the connected event")
	}
}

func TestBatchDeduplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := &domain.Message{
		ID:        "dup-1",
		ChatJID:   testGroup,
		SenderJID: testUser,
		IsGroup:   true,
		Kind:      domain.KindText,
		Text:      "hello",
	}
	f.server.handleBatch(ctx, []*domain.Message{msg})
	f.server.handleBatch(ctx, []*domain.Message{msg})

	if f.profiles.upserts != 1 {
		t.Errorf("duplicate message was processed %d times, want 1", f.profiles.upserts)
	}
}

func TestWelcomeGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	change := &repo.MembershipChange{
		GroupJID: testGroup,
		JIDs:     []string{testUser},
		Action:   repo.MembershipAdd,
	}

	off := false
	f.settings.Patch(testGroup, domain.SettingsPatch{WelcomeEnabled: &off})
	f.server.handleMembership(ctx, change)
	if len(f.transport.texts) != 0 {
		t.Fatalf("welcome sent despite the toggle being off: %v", f.transport.texts)
	}

	on := true
	f.settings.Patch(testGroup, domain.SettingsPatch{WelcomeEnabled: &on})
	f.server.handleMembership(ctx, change)
	if len(f.transport.texts) != 1 {
		t.Fatalf("welcome not sent with the toggle on")
	}
	sent := f.transport.texts[0]
	if sent.chat != testGroup {
		t.Errorf("welcome went to %s", sent.chat)
	}
	if !strings.Contains(sent.text, "@"+domain.JIDNumber(testUser)) {
		t.Errorf("welcome %q does not tag the member", sent.text)
	}
	if len(sent.mentions) != 1 || sent.mentions[0] != testUser {
		t.Errorf("welcome mentions = %v", sent.mentions)
	}
}

func TestGoodbyeAnnouncement(t *testing.T) {
	f := newFixture(t)

	f.server.handleMembership(context.Background(), &repo.MembershipChange{
		GroupJID: testGroup,
		JIDs:     []string{testUser},
		Action:   repo.MembershipRemove,
	})

	if len(f.transport.texts) != 1 {
		t.Fatal("goodbye not sent with default settings")
	}
	persona := conf.DefaultPersona()
	want := strings.ReplaceAll(persona.Messages.Goodbye, "%s", "@"+domain.JIDNumber(testUser))
	if f.transport.texts[0].text != want {
		t.Errorf("goodbye = %q, want %q", f.transport.texts[0].text, want)
	}
}
