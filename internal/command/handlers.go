package command

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/state"
)

// RegisterBuiltins installs the bot's command surface and freezes the
// registry.
func RegisterBuiltins(r *Registry) {
	r.Register(Descriptor{Name: "help", Description: "list available commands", Handler: handleHelp(r)})
	r.Register(Descriptor{Name: "ping", Description: "check that the bot is alive", Handler: handlePing})
	r.Register(Descriptor{Name: "dice", Description: "roll a die: !dice [sides]", Handler: handleDice})
	r.Register(Descriptor{Name: "profile", Description: "show your level and XP", Handler: handleProfile})
	r.Register(Descriptor{Name: "leaderboard", Description: "show the top profiles", Handler: handleLeaderboard})
	r.Register(Descriptor{Name: "reveal", Description: "claim your saved view-once media", Handler: handleReveal})

	r.Register(Descriptor{Name: "ai", Description: "toggle AI replies: !ai on|off", Handler: settingsToggle(func(v bool) domain.SettingsPatch {
		return domain.SettingsPatch{AIEnabled: &v}
	})})
	r.Register(Descriptor{Name: "welcome", Description: "toggle welcome messages: !welcome on|off", Handler: settingsToggle(func(v bool) domain.SettingsPatch {
		return domain.SettingsPatch{WelcomeEnabled: &v}
	})})
	r.Register(Descriptor{Name: "goodbye", Description: "toggle goodbye messages: !goodbye on|off", Handler: settingsToggle(func(v bool) domain.SettingsPatch {
		return domain.SettingsPatch{GoodbyeEnabled: &v}
	})})
	r.Register(Descriptor{Name: "antilink", Description: "toggle link protection: !antilink on|off", Handler: settingsToggle(func(v bool) domain.SettingsPatch {
		return domain.SettingsPatch{LinkProtectionEnabled: &v}
	})})
	r.Register(Descriptor{Name: "antispam", Description: "toggle the spam filter: !antispam on|off", Handler: settingsToggle(func(v bool) domain.SettingsPatch {
		return domain.SettingsPatch{SpamFilterEnabled: &v}
	})})

	r.Register(Descriptor{Name: "resetwarns", Description: "clear a user's warnings", RequiresPrivilege: true, Handler: handleResetWarns})

	// Hidden owner maintenance namespace, reached through the secret prefix.
	r.Register(Descriptor{Name: "mute", RequiresPrivilege: true, Hidden: true, Handler: handleMute})
	r.Register(Descriptor{Name: "unmute", RequiresPrivilege: true, Hidden: true, Handler: handleUnmute})
	r.Register(Descriptor{Name: "bonus", RequiresPrivilege: true, Hidden: true, Handler: handleBonus})

	r.Freeze()
}

// handleHelp closes over the registry so the listing always reflects what is
// actually registered.
func handleHelp(r *Registry) HandlerFunc {
	return func(ctx context.Context, env *Env, req *Request) error {
		var sb strings.Builder
		sb.WriteString("Commands:\n")
		for _, d := range r.List() {
			fmt.Fprintf(&sb, "%s%s: %s\n", env.Prefix, d.Name, d.Description)
		}
		return env.Transport.SendText(ctx, req.Msg.ChatJID, sb.String(), nil)
	}
}

func handlePing(ctx context.Context, env *Env, req *Request) error {
	return env.Transport.SendText(ctx, req.Msg.ChatJID, "pong 🏓", nil)
}

func handleDice(ctx context.Context, env *Env, req *Request) error {
	sides := 6
	if len(req.Args) > 0 {
		if parsed, err := strconv.Atoi(req.Args[0]); err == nil && parsed >= 2 {
			sides = parsed
		}
	}
	roll := rand.Intn(sides) + 1
	return env.Transport.SendText(ctx, req.Msg.ChatJID, fmt.Sprintf("🎲 %d (d%d)", roll, sides), nil)
}

func handleProfile(ctx context.Context, env *Env, req *Request) error {
	profile, err := env.Progression.Profile(ctx, req.Msg.SenderJID)
	if err != nil {
		return err
	}
	next := (profile.Level + 1) * (profile.Level + 1) * 100
	text := fmt.Sprintf("Level %d - %s\nXP: %d / %d", profile.Level, profile.Title, profile.XP, next)
	return env.Transport.SendText(ctx, req.Msg.ChatJID, text, nil)
}

func handleLeaderboard(ctx context.Context, env *Env, req *Request) error {
	top, err := env.Progression.Leaderboard(ctx, 5)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		return env.Transport.SendText(ctx, req.Msg.ChatJID, "Nobody has earned XP yet.", nil)
	}

	var sb strings.Builder
	sb.WriteString("🏆 Leaderboard:\n")
	for i, p := range top {
		fmt.Fprintf(&sb, "%d. @%s - level %d (%d XP)\n", i+1, domain.JIDNumber(p.JID), p.Level, p.XP)
	}
	return env.Transport.SendText(ctx, req.Msg.ChatJID, sb.String(), nil)
}

func handleReveal(ctx context.Context, env *Env, req *Request) error {
	item, err := env.Ephemeral.Retrieve(req.Msg.SenderJID, time.Now())
	switch {
	case err == state.ErrNotFound:
		return env.Transport.SendText(ctx, req.Msg.ChatJID, env.Messages.EphemeralEmpty, nil)
	case err == state.ErrExpired:
		return env.Transport.SendText(ctx, req.Msg.ChatJID, env.Messages.EphemeralExpired, nil)
	case err != nil:
		return err
	}
	return env.Transport.SendMedia(ctx, req.Msg.ChatJID, item.Kind, item.Payload, item.Caption, nil)
}

// settingsToggle builds an on|off handler over one settings field. Toggles
// are group-only and restricted to group admins (and the owner).
func settingsToggle(patch func(bool) domain.SettingsPatch) HandlerFunc {
	return func(ctx context.Context, env *Env, req *Request) error {
		if !req.Msg.IsGroup {
			return env.Transport.SendText(ctx, req.Msg.ChatJID, "That toggle only applies to groups.", nil)
		}
		if !isGroupAdmin(ctx, env, req.Msg.ChatJID, req.Msg.SenderJID) {
			return env.Transport.SendText(ctx, req.Msg.ChatJID, "Only group admins can change that.", nil)
		}

		var value bool
		switch strings.ToLower(firstArg(req)) {
		case "on", "true", "1":
			value = true
		case "off", "false", "0":
			value = false
		default:
			return env.Transport.SendText(ctx, req.Msg.ChatJID, "Usage: on|off", nil)
		}

		env.Settings.Patch(req.Msg.ChatJID, patch(value))
		return env.Transport.SendText(ctx, req.Msg.ChatJID, "Done ✅", nil)
	}
}

func handleResetWarns(ctx context.Context, env *Env, req *Request) error {
	target := targetJID(req)
	if target == "" {
		return env.Transport.SendText(ctx, req.Msg.ChatJID, "Tag someone or pass their number.", nil)
	}
	env.Warnings.Reset(target)
	return env.Transport.SendText(ctx, req.Msg.ChatJID, "Warnings cleared.", nil)
}

func handleMute(ctx context.Context, env *Env, req *Request) error {
	target := targetJID(req)
	if target == "" {
		return fmt.Errorf("mute: no target")
	}
	minutes := amountArg(req, 10)
	env.Punishments.Punish(target, time.Now().Add(time.Duration(minutes)*time.Minute))
	return env.Transport.SendText(ctx, env.OwnerJID,
		fmt.Sprintf("Muted %s for %d minutes.", target, minutes), nil)
}

func handleUnmute(ctx context.Context, env *Env, req *Request) error {
	target := targetJID(req)
	if target == "" {
		return fmt.Errorf("unmute: no target")
	}
	env.Punishments.Lift(target)
	return env.Transport.SendText(ctx, env.OwnerJID, fmt.Sprintf("Unmuted %s.", target), nil)
}

func handleBonus(ctx context.Context, env *Env, req *Request) error {
	target := targetJID(req)
	if target == "" {
		return fmt.Errorf("bonus: no target")
	}
	xp := amountArg(req, 100)
	profile, _, err := env.Progression.Bonus(ctx, target, xp)
	if err != nil {
		return err
	}
	return env.Transport.SendText(ctx, env.OwnerJID,
		fmt.Sprintf("Granted %d XP to %s (now level %d).", xp, target, profile.Level), nil)
}

func firstArg(req *Request) string {
	if len(req.Args) == 0 {
		return ""
	}
	return req.Args[0]
}

// amountArg parses the numeric amount of a <target> <amount> command. The
// first argument is the target slot unless the target came as a mention.
func amountArg(req *Request, def int) int {
	args := req.Args
	if len(req.Msg.Mentions) == 0 && len(args) > 0 {
		args = args[1:]
	}
	if len(args) == 0 {
		return def
	}
	if parsed, err := strconv.Atoi(args[len(args)-1]); err == nil && parsed > 0 {
		return parsed
	}
	return def
}
