package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/biz/repo"
	"github.com/zapbot-im/zapbot/internal/biz/usecase"
	"github.com/zapbot-im/zapbot/internal/command"
	"github.com/zapbot-im/zapbot/internal/conf"
	"github.com/zapbot-im/zapbot/internal/state"
)

// stackExcerptLimit bounds the stack trace forwarded to the owner after a
// per-message panic.
const stackExcerptLimit = 1500

// stageResult tells the orchestrator whether to keep applying stages.
type stageResult int

const (
	stageContinue stageResult = iota
	stageStop
)

// stage is one ordered decision step. A stop result or an error terminates
// processing for the current message only.
type stage struct {
	name string
	run  func(ctx context.Context, msg *domain.Message) (stageResult, error)
}

// PipelineConfig carries the orchestrator's tunables.
type PipelineConfig struct {
	OwnerJID       string
	CommandPrefix  string
	HiddenPrefix   string
	ReactionChance float64
	AIDisabled     bool // no generative provider configured
}

// Pipeline routes each inbound message through the ordered stage list. Every
// stage may consult the shared state stores; any stage may short-circuit the
// rest for that message.
type Pipeline struct {
	cfg PipelineConfig

	env         *command.Env
	registry    *command.Registry
	trigger     *usecase.TriggerUsecase
	security    *usecase.SecurityUsecase
	progression *usecase.ProgressionUsecase
	history     *state.History
	punishments *state.Punishments
	ephemeral   *state.EphemeralStore
	typing      *TypingManager
	messages    *conf.Messages
	logger      *slog.Logger

	hostility []*regexp.Regexp
	comebacks []string
	reactions []string

	stages []stage
}

// NewPipeline assembles the stage list. Hostility patterns that fail to
// compile are skipped with a warning rather than aborting startup.
func NewPipeline(
	cfg PipelineConfig,
	env *command.Env,
	registry *command.Registry,
	trigger *usecase.TriggerUsecase,
	security *usecase.SecurityUsecase,
	progression *usecase.ProgressionUsecase,
	history *state.History,
	punishments *state.Punishments,
	ephemeral *state.EphemeralStore,
	typing *TypingManager,
	persona *conf.Persona,
	logger *slog.Logger,
) *Pipeline {
	p := &Pipeline{
		cfg:         cfg,
		env:         env,
		registry:    registry,
		trigger:     trigger,
		security:    security,
		progression: progression,
		history:     history,
		punishments: punishments,
		ephemeral:   ephemeral,
		typing:      typing,
		messages:    &persona.Messages,
		logger:      logger,
		comebacks:   persona.Comebacks,
		reactions:   persona.ReactionEmojis,
	}

	for _, pattern := range persona.HostilityPatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			logger.Warn("invalid hostility pattern", "pattern", pattern, "error", err)
			continue
		}
		p.hostility = append(p.hostility, re)
	}

	// Identities are normalized before the punishment gate so that a muted
	// user cannot slip past it under a non-canonical raw sender form; the
	// punishment store keys on canonical JIDs.
	p.stages = []stage{
		{name: "validate", run: p.stageValidate},
		{name: "filter", run: p.stageFilter},
		{name: "punishment_gate", run: p.stagePunishmentGate},
		{name: "typing", run: p.stageTyping},
		{name: "hidden_command", run: p.stageHiddenCommand},
		{name: "progression", run: p.stageProgression},
		{name: "hostility", run: p.stageHostility},
		{name: "transcript", run: p.stageTranscript},
		{name: "security", run: p.stageSecurity},
		{name: "command", run: p.stageCommand},
		{name: "ai_trigger", run: p.stageAITrigger},
		{name: "ephemeral_capture", run: p.stageEphemeralCapture},
		{name: "reaction", run: p.stageReaction},
	}
	return p
}

// HandleBatch processes inbound messages in source order. A failure or panic
// in one message never stops the rest of the batch.
func (p *Pipeline) HandleBatch(ctx context.Context, batch []*domain.Message) {
	for _, msg := range batch {
		p.handleOne(ctx, msg)
	}
}

func (p *Pipeline) handleOne(ctx context.Context, msg *domain.Message) {
	defer func() {
		if r := recover(); r != nil {
			p.reportPanic(ctx, msg, r, debug.Stack())
		}
	}()

	for _, s := range p.stages {
		result, err := s.run(ctx, msg)
		if err != nil {
			p.logger.Error("pipeline stage failed",
				"stage", s.name, "message", msg.ID, "chat", msg.ChatJID, "error", err)
			return
		}
		if result == stageStop {
			p.logger.Debug("pipeline stopped", "stage", s.name, "message", msg.ID)
			return
		}
	}
}

func (p *Pipeline) reportPanic(ctx context.Context, msg *domain.Message, r any, stack []byte) {
	p.logger.Error("pipeline panic", "message", msg.ID, "chat", msg.ChatJID, "panic", r)

	excerpt := string(stack)
	if len(excerpt) > stackExcerptLimit {
		excerpt = excerpt[:stackExcerptLimit] + "\n[truncated]"
	}
	report := fmt.Sprintf("Panic while processing message %s in %s: %v\n%s", msg.ID, msg.ChatJID, r, excerpt)
	if err := p.env.Transport.SendText(ctx, p.cfg.OwnerJID, report, nil); err != nil {
		p.logger.Warn("panic report failed", "error", err)
	}
}

func (p *Pipeline) stageFilter(_ context.Context, msg *domain.Message) (stageResult, error) {
	if msg.FromMe {
		return stageStop, nil
	}
	if msg.ChatJID == domain.BroadcastStatus || msg.SenderJID == domain.BroadcastStatus {
		return stageStop, nil
	}
	if !msg.HasPayload() {
		return stageStop, nil
	}
	return stageContinue, nil
}

func (p *Pipeline) stagePunishmentGate(_ context.Context, msg *domain.Message) (stageResult, error) {
	if p.punishments.Active(msg.SenderJID, time.Now()) {
		return stageStop, nil
	}
	return stageContinue, nil
}

// stageTyping arms the composing indicator for chatter the bot might answer.
// Best effort and never blocking the rest of the pipeline.
func (p *Pipeline) stageTyping(ctx context.Context, msg *domain.Message) (stageResult, error) {
	if !msg.IsGroup || p.trigger.RespondAll() {
		return stageContinue, nil
	}
	interesting := msg.Kind == domain.KindImage || msg.Kind == domain.KindVideo
	if (msg.Kind == domain.KindText && !msg.IsCommand(p.cfg.CommandPrefix)) || interesting {
		p.typing.Arm(ctx, msg.ChatJID)
	}
	return stageContinue, nil
}

// stageValidate normalizes the message's identities. A message whose chat or
// sender cannot be normalized is dropped.
func (p *Pipeline) stageValidate(_ context.Context, msg *domain.Message) (stageResult, error) {
	msg.ChatJID = domain.NormalizeJID(msg.ChatJID)
	msg.SenderJID = domain.NormalizeJID(msg.SenderJID)
	if msg.ChatJID == "" || msg.SenderJID == "" {
		return stageStop, fmt.Errorf("unparseable identities on message %s", msg.ID)
	}
	for i, m := range msg.Mentions {
		msg.Mentions[i] = domain.NormalizeJID(m)
	}
	return stageContinue, nil
}

func (p *Pipeline) stageHiddenCommand(ctx context.Context, msg *domain.Message) (stageResult, error) {
	if msg.SenderJID != p.cfg.OwnerJID || !strings.HasPrefix(msg.Text, p.cfg.HiddenPrefix) {
		return stageContinue, nil
	}

	// The triggering message disappears so the command never shows in chat.
	if err := p.env.Transport.DeleteMessage(ctx, msg.ChatJID, msg.ID); err != nil {
		p.logger.Warn("hidden command cleanup failed", "message", msg.ID, "error", err)
	}

	name, args := msg.CommandParts(p.cfg.HiddenPrefix)
	p.registry.Dispatch(ctx, name, &command.Request{Msg: msg, Args: args})
	return stageStop, nil
}

func (p *Pipeline) stageProgression(ctx context.Context, msg *domain.Message) (stageResult, error) {
	if msg.Kind == domain.KindButtonReply {
		return stageContinue, nil
	}

	profile, leveled, err := p.progression.Award(ctx, msg.SenderJID)
	if err != nil {
		p.logger.Warn("xp award failed", "sender", msg.SenderJID, "error", err)
		return stageContinue, nil
	}
	if leveled {
		tag := "@" + domain.JIDNumber(msg.SenderJID)
		text := fmt.Sprintf(p.messages.LevelUp, tag, profile.Level, profile.Title)
		if err := p.env.Transport.SendText(ctx, msg.ChatJID, text, []string{msg.SenderJID}); err != nil {
			p.logger.Warn("level-up announcement failed", "chat", msg.ChatJID, "error", err)
		}
	}
	return stageContinue, nil
}

func (p *Pipeline) stageHostility(ctx context.Context, msg *domain.Message) (stageResult, error) {
	if msg.IsGroup || msg.Kind != domain.KindText || len(p.comebacks) == 0 {
		return stageContinue, nil
	}
	for _, re := range p.hostility {
		if re.MatchString(msg.Text) {
			comeback := p.comebacks[rand.Intn(len(p.comebacks))]
			if err := p.env.Transport.SendText(ctx, msg.ChatJID, comeback, nil); err != nil {
				p.logger.Warn("comeback send failed", "chat", msg.ChatJID, "error", err)
			}
			return stageStop, nil
		}
	}
	return stageContinue, nil
}

func (p *Pipeline) stageTranscript(_ context.Context, msg *domain.Message) (stageResult, error) {
	text := msg.Text
	if text == "" && msg.IsMedia() {
		text = mediaPlaceholder(msg.Kind)
	}
	p.history.Append(msg.ChatJID, domain.RoleUser, msg.SenderJID, text)
	return stageContinue, nil
}

func (p *Pipeline) stageSecurity(ctx context.Context, msg *domain.Message) (stageResult, error) {
	if p.security.Evaluate(ctx, msg, p.trigger.LinkedJID()) {
		return stageStop, nil
	}
	return stageContinue, nil
}

func (p *Pipeline) stageCommand(ctx context.Context, msg *domain.Message) (stageResult, error) {
	if !msg.IsCommand(p.cfg.CommandPrefix) {
		return stageContinue, nil
	}
	name, args := msg.CommandParts(p.cfg.CommandPrefix)
	if p.registry.Dispatch(ctx, name, &command.Request{Msg: msg, Args: args}) {
		return stageStop, nil
	}

	// Unknown command names fall through: the AI may still answer a message
	// that merely happens to start with the prefix. When the AI won't take
	// it, tell the sender the command does not exist.
	if p.cfg.AIDisabled || !p.trigger.ShouldRespond(msg) {
		text := fmt.Sprintf(p.messages.UnknownCommand, name)
		if err := p.env.Transport.SendText(ctx, msg.ChatJID, text, nil); err != nil {
			p.logger.Warn("unknown command notice failed", "chat", msg.ChatJID, "error", err)
		}
		return stageStop, nil
	}
	return stageContinue, nil
}

func (p *Pipeline) stageAITrigger(ctx context.Context, msg *domain.Message) (stageResult, error) {
	if p.cfg.AIDisabled {
		return stageContinue, nil
	}
	if !p.trigger.ShouldRespond(msg) {
		return stageContinue, nil
	}

	var image []byte
	var imageMIME string
	if msg.Kind == domain.KindImage && !msg.ViewOnce {
		payload, err := p.env.Transport.Download(ctx, msg)
		if err != nil {
			p.logger.Warn("image download for prompt failed", "message", msg.ID, "error", err)
		} else {
			image = payload
			imageMIME = "image/jpeg"
		}
	}

	reply, mentions, err := p.trigger.Reply(ctx, msg, image, imageMIME)
	if err != nil {
		p.notifyAIFailure(ctx, msg.ChatJID, err)
		return p.stopUnlessViewOnce(msg), nil
	}

	if sendErr := p.env.Transport.SendText(ctx, msg.ChatJID, reply, mentions); sendErr != nil {
		p.logger.Warn("ai reply send failed", "chat", msg.ChatJID, "error", sendErr)
		return p.stopUnlessViewOnce(msg), nil
	}
	p.history.Append(msg.ChatJID, domain.RoleAssistant, "", reply)
	return p.stopUnlessViewOnce(msg), nil
}

// stopUnlessViewOnce lets a view-once message reach the capture stage even
// after an AI reply.
func (p *Pipeline) stopUnlessViewOnce(msg *domain.Message) stageResult {
	if msg.ViewOnce && msg.IsMedia() {
		return stageContinue
	}
	return stageStop
}

func (p *Pipeline) notifyAIFailure(ctx context.Context, chatJID string, err error) {
	var text string
	switch {
	case errors.Is(err, repo.ErrPolicyBlocked):
		text = p.messages.AIPolicyBlocked
	case errors.Is(err, repo.ErrEmptyResult):
		text = p.messages.AIEmpty
	default:
		p.logger.Error("ai generation failed", "chat", chatJID, "error", err)
		text = p.messages.AIFailure
	}
	if sendErr := p.env.Transport.SendText(ctx, chatJID, text, nil); sendErr != nil {
		p.logger.Warn("ai failure notice failed", "chat", chatJID, "error", sendErr)
	}
}

func (p *Pipeline) stageEphemeralCapture(ctx context.Context, msg *domain.Message) (stageResult, error) {
	if !msg.ViewOnce || !msg.IsMedia() {
		return stageContinue, nil
	}

	payload, err := p.env.Transport.Download(ctx, msg)
	if err != nil {
		return stageStop, fmt.Errorf("download view-once media: %w", err)
	}
	p.ephemeral.Capture(msg.SenderJID, msg.Kind, payload, msg.Text, time.Now())

	minutes := int(p.ephemeral.TTL().Minutes())
	text := fmt.Sprintf(p.messages.EphemeralSaved, minutes)
	if err := p.env.Transport.SendText(ctx, msg.ChatJID, text, nil); err != nil {
		p.logger.Warn("capture confirmation failed", "chat", msg.ChatJID, "error", err)
	}
	return stageStop, nil
}

func (p *Pipeline) stageReaction(ctx context.Context, msg *domain.Message) (stageResult, error) {
	if msg.Kind != domain.KindSticker || len(p.reactions) == 0 {
		return stageStop, nil
	}
	if rand.Float64() >= p.cfg.ReactionChance {
		return stageStop, nil
	}
	emoji := p.reactions[rand.Intn(len(p.reactions))]
	if err := p.env.Transport.React(ctx, msg.ChatJID, msg.ID, emoji); err != nil {
		p.logger.Debug("reaction failed", "message", msg.ID, "error", err)
	}
	return stageStop, nil
}

func mediaPlaceholder(kind domain.ContentKind) string {
	switch kind {
	case domain.KindImage:
		return "[image]"
	case domain.KindVideo:
		return "[video]"
	case domain.KindAudio:
		return "[voice message]"
	case domain.KindSticker:
		return "[sticker]"
	case domain.KindDocument:
		return "[document]"
	default:
		return "[media]"
	}
}
