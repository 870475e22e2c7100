// Package bot wires configuration, state stores, usecases, the command
// registry and the event server into one runnable unit.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zapbot-im/zapbot/internal/biz/repo"
	"github.com/zapbot-im/zapbot/internal/biz/usecase"
	"github.com/zapbot-im/zapbot/internal/command"
	"github.com/zapbot-im/zapbot/internal/conf"
	"github.com/zapbot-im/zapbot/internal/data"
	"github.com/zapbot-im/zapbot/internal/server"
	"github.com/zapbot-im/zapbot/internal/service"
	"github.com/zapbot-im/zapbot/internal/state"
)

// Bot owns every long-lived component of the process.
type Bot struct {
	cfg       *conf.Config
	transport repo.Transport
	profiles  repo.ProfileRepo
	server    *server.EventServer
	scheduler *service.MaintenanceScheduler
	typing    *service.TypingManager
	logger    *slog.Logger

	cancel context.CancelFunc
}

// New assembles a bot over the given transport. The transport's session
// lifecycle stays with the caller; the bot only consumes its event stream.
func New(cfg *conf.Config, transport repo.Transport, logger *slog.Logger) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	profiles, err := data.NewProfileRepo(cfg.Profile.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	history := state.NewHistory(cfg.Pipeline.HistoryCap)
	settings := state.NewSettings()
	warnings := state.NewWarnings()
	punishments := state.NewPunishments()
	ephemeral := state.NewEphemeralStore(cfg.Pipeline.EphemeralTTL)
	spam := state.NewSpamDetector(cfg.Bot.OwnerJID, cfg.Moderation.SpamWindow, cfg.Moderation.SpamMaxMessages)
	limiter := state.NewRateLimiter(cfg.Bot.OwnerJID, cfg.Moderation.RateLimitWindow)

	var ai repo.AIProvider
	if cfg.AIEnabled() {
		ai = data.NewOpenAIProvider(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)
	} else {
		logger.Warn("no AI provider configured, generative replies disabled")
	}

	trigger := usecase.NewTriggerUsecase(history, settings, ai, usecase.TriggerConfig{
		BotName:       cfg.Bot.Name,
		PrimaryNumber: cfg.Bot.PrimaryNumber,
		SystemPrompt:  cfg.Persona.SystemPrompt,
		PromptBudget:  cfg.Pipeline.PromptBudget,
		RespondAll:    cfg.Bot.RespondAll,
	})

	security := usecase.NewSecurityUsecase(transport, settings, warnings, spam,
		&cfg.Persona.Messages, usecase.SecurityConfig{
			BlockedPrefixes: cfg.Moderation.BlockedPrefixes,
			MaxWarnings:     cfg.Moderation.MaxWarnings,
		}, logger)

	progression := usecase.NewProgressionUsecase(profiles, cfg.Profile.XPPerMessage)

	env := &command.Env{
		Transport:   transport,
		Progression: progression,
		Trigger:     trigger,
		Settings:    settings,
		Warnings:    warnings,
		Punishments: punishments,
		Ephemeral:   ephemeral,
		Messages:    &cfg.Persona.Messages,
		OwnerJID:    cfg.Bot.OwnerJID,
		Prefix:      cfg.Bot.CommandPrefix,
		Logger:      logger,
	}
	registry := command.NewRegistry(env, limiter)
	command.RegisterBuiltins(registry)

	typing := service.NewTypingManager(transport, cfg.Pipeline.TypingDuration, logger)

	pipeline := service.NewPipeline(service.PipelineConfig{
		OwnerJID:       cfg.Bot.OwnerJID,
		CommandPrefix:  cfg.Bot.CommandPrefix,
		HiddenPrefix:   cfg.Bot.HiddenPrefix,
		ReactionChance: cfg.Pipeline.ReactionChance,
		AIDisabled:     !cfg.AIEnabled(),
	}, env, registry, trigger, security, progression, history, punishments, ephemeral, typing, cfg.Persona, logger)

	srv := server.NewEventServer(transport, pipeline, typing, trigger, settings,
		&cfg.Persona.Messages, logger)
	scheduler := service.NewMaintenanceScheduler(ephemeral, punishments, logger)

	return &Bot{
		cfg:       cfg,
		transport: transport,
		profiles:  profiles,
		server:    srv,
		scheduler: scheduler,
		typing:    typing,
		logger:    logger,
	}, nil
}

// Start launches the event loop and background sweeps.
func (b *Bot) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.scheduler.Start(ctx)
	b.server.Start(ctx)
	b.logger.Info("bot started", "name", b.cfg.Bot.Name, "owner", b.cfg.Bot.OwnerJID)
}

// Stop shuts everything down in dependency order.
func (b *Bot) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Pipeline.TypingDuration)
	defer cancel()
	b.typing.ClearAll(ctx)

	if b.cancel != nil {
		b.cancel()
	}
	b.server.Stop()
	b.scheduler.Stop()

	if err := b.profiles.Close(); err != nil {
		b.logger.Warn("profile store close failed", "error", err)
	}
	if err := b.transport.Close(); err != nil {
		b.logger.Warn("transport close failed", "error", err)
	}
	b.logger.Info("bot stopped")
}
