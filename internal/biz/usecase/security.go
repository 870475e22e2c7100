package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/biz/repo"
	"github.com/zapbot-im/zapbot/internal/conf"
	"github.com/zapbot-im/zapbot/internal/state"
)

// SecurityConfig tunes the link/spam policy.
type SecurityConfig struct {
	BlockedPrefixes []string
	MaxWarnings     int
}

// SecurityUsecase enforces link and spam policy in groups, producing
// warnings, message deletions and removals. Moderation failures are logged
// and surfaced in-chat; they never propagate.
type SecurityUsecase struct {
	transport repo.Transport
	settings  *state.Settings
	warnings  *state.Warnings
	spam      *state.SpamDetector
	messages  *conf.Messages
	cfg       SecurityConfig
	logger    *slog.Logger
}

// NewSecurityUsecase creates a new security usecase
func NewSecurityUsecase(
	transport repo.Transport,
	settings *state.Settings,
	warnings *state.Warnings,
	spam *state.SpamDetector,
	messages *conf.Messages,
	cfg SecurityConfig,
	logger *slog.Logger,
) *SecurityUsecase {
	return &SecurityUsecase{
		transport: transport,
		settings:  settings,
		warnings:  warnings,
		spam:      spam,
		messages:  messages,
		cfg:       cfg,
		logger:    logger,
	}
}

// Evaluate runs the link check, then the spam check, against a group message.
// It reports whether the message was handled (and further pipeline stages
// should be skipped). botJID is the bot's own identity, used to verify its
// moderator rights before acting.
func (uc *SecurityUsecase) Evaluate(ctx context.Context, msg *domain.Message, botJID string) bool {
	if !msg.IsGroup {
		return false
	}

	settings := uc.settings.Get(msg.ChatJID)

	if settings.LinkProtectionEnabled && uc.matchesBlockedLink(msg.Text) {
		uc.handleLinkViolation(ctx, msg, botJID)
		return true
	}

	if settings.SpamFilterEnabled {
		if uc.isGroupAdmin(ctx, msg.ChatJID, msg.SenderJID) {
			return false
		}
		if uc.spam.Observe(msg.SenderJID, time.Now()) {
			uc.handleSpam(ctx, msg, botJID)
			return true
		}
	}

	return false
}

func (uc *SecurityUsecase) matchesBlockedLink(text string) bool {
	lowered := strings.ToLower(text)
	for _, prefix := range uc.cfg.BlockedPrefixes {
		if strings.Contains(lowered, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func (uc *SecurityUsecase) handleLinkViolation(ctx context.Context, msg *domain.Message, botJID string) {
	count := uc.warnings.Increment(msg.SenderJID)
	uc.logger.Info("link violation",
		"chat", msg.ChatJID, "sender", msg.SenderJID, "warnings", count, "max", uc.cfg.MaxWarnings)

	warning := fmt.Sprintf(uc.messages.LinkWarning, count, uc.cfg.MaxWarnings)
	if err := uc.transport.SendText(ctx, msg.ChatJID, warning, nil); err != nil {
		uc.logger.Warn("send link warning failed", "chat", msg.ChatJID, "error", err)
	}

	if err := uc.transport.DeleteMessage(ctx, msg.ChatJID, msg.ID); err != nil {
		uc.logger.Warn("delete offending message failed", "chat", msg.ChatJID, "msg", msg.ID, "error", err)
		uc.notify(ctx, msg.ChatJID, uc.messages.ModFailure)
	}

	if count >= uc.cfg.MaxWarnings {
		uc.warnings.Reset(msg.SenderJID)
		uc.remove(ctx, msg.ChatJID, msg.SenderJID, botJID, uc.messages.LinkRemoval)
	}
}

func (uc *SecurityUsecase) handleSpam(ctx context.Context, msg *domain.Message, botJID string) {
	uc.logger.Info("spam detected", "chat", msg.ChatJID, "sender", msg.SenderJID)
	uc.remove(ctx, msg.ChatJID, msg.SenderJID, botJID, uc.messages.SpamRemoval)
}

// remove kicks target from the group, gated on the bot holding moderator
// rights. Both the proactive check and a failed removal degrade to an
// informational message.
func (uc *SecurityUsecase) remove(ctx context.Context, groupJID, target, botJID, notice string) {
	if !uc.isGroupAdmin(ctx, groupJID, botJID) {
		uc.notify(ctx, groupJID, uc.messages.NoModRights)
		return
	}

	uc.notify(ctx, groupJID, notice)
	if err := uc.transport.UpdateMembership(ctx, groupJID, []string{target}, repo.MembershipRemove); err != nil {
		uc.logger.Warn("group removal failed", "chat", groupJID, "target", target, "error", err)
		uc.notify(ctx, groupJID, uc.messages.ModFailure)
	}
}

func (uc *SecurityUsecase) isGroupAdmin(ctx context.Context, groupJID, jid string) bool {
	members, err := uc.transport.GroupMembers(ctx, groupJID)
	if err != nil {
		uc.logger.Warn("group member lookup failed", "chat", groupJID, "error", err)
		return false
	}
	want := domain.NormalizeJID(jid)
	for _, m := range members {
		if domain.NormalizeJID(m.JID) == want {
			return m.IsAdmin()
		}
	}
	return false
}

func (uc *SecurityUsecase) notify(ctx context.Context, chatJID, text string) {
	if err := uc.transport.SendText(ctx, chatJID, text, nil); err != nil {
		uc.logger.Warn("send notice failed", "chat", chatJID, "error", err)
	}
}
