package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
)

// Config represents application configuration
type Config struct {
	// Bot identity
	Bot BotConfig

	// OpenAI-compatible provider configuration (optional; AI replies are
	// disabled when the key is empty)
	AI AIConfig

	// Progression store configuration
	Profile ProfileConfig

	// Pipeline tuning
	Pipeline PipelineConfig

	// Moderation tuning
	Moderation ModerationConfig

	// Persona and canned messages (loaded from YAML)
	Persona *Persona

	// Logging
	LogLevel  string
	LogFormat string

	// Debug mode
	Debug bool
}

// BotConfig contains the bot's identities and command surface.
type BotConfig struct {
	Name          string // display name, matched as a trigger word
	OwnerJID      string // the single privileged identity
	PrimaryNumber string // configured primary number (digits only)
	CommandPrefix string
	HiddenPrefix  string // secret prefix for unlisted owner commands
	RespondAll    bool   // global "respond to everything" override
}

// AIConfig contains the generative provider configuration.
type AIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ProfileConfig contains the progression store configuration.
type ProfileConfig struct {
	DBPath       string
	XPPerMessage int
}

// PipelineConfig contains pipeline tuning knobs.
type PipelineConfig struct {
	HistoryCap     int           // transcript entries kept per conversation
	PromptBudget   int           // hard prompt input budget, in characters
	EphemeralTTL   time.Duration // view-once slot lifetime
	TypingDuration time.Duration // composing-presence hold
	ReactionChance float64       // sticker fallback reaction probability
}

// ModerationConfig contains rate/spam/link policy knobs. The spam threshold
// and the warning maximum are configured independently.
type ModerationConfig struct {
	RateLimitWindow time.Duration
	SpamWindow      time.Duration
	SpamMaxMessages int
	MaxWarnings     int
	BlockedPrefixes []string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dbPath := os.Getenv("PROFILE_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".zapbot", "profiles.db")
	}

	blocked := []string{
		"https://chat.whatsapp.com/",
		"http://chat.whatsapp.com/",
		"https://t.me/",
		"https://discord.gg/",
	}
	if val := os.Getenv("BLOCKED_LINK_PREFIXES"); val != "" {
		blocked = nil
		for _, p := range strings.Split(val, ",") {
			if p = strings.TrimSpace(p); p != "" {
				blocked = append(blocked, p)
			}
		}
	}

	persona, _ := LoadPersona(os.Getenv("PERSONA_CONFIG_PATH"))

	return &Config{
		Bot: BotConfig{
			Name:          envString("BOT_NAME", "Zapbot"),
			OwnerJID:      domain.NormalizeJID(os.Getenv("OWNER_NUMBER")),
			PrimaryNumber: domain.JIDNumber(os.Getenv("BOT_NUMBER")),
			CommandPrefix: envString("COMMAND_PREFIX", "!"),
			HiddenPrefix:  envString("HIDDEN_PREFIX", "$"),
			RespondAll:    os.Getenv("AI_RESPOND_ALL") == "true",
		},
		AI: AIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Profile: ProfileConfig{
			DBPath:       dbPath,
			XPPerMessage: envInt("XP_PER_MESSAGE", 5),
		},
		Pipeline: PipelineConfig{
			HistoryCap:     envInt("HISTORY_CAP", 50),
			PromptBudget:   envInt("PROMPT_BUDGET", 4000),
			EphemeralTTL:   time.Duration(envInt("EPHEMERAL_TTL_MINUTES", 5)) * time.Minute,
			TypingDuration: time.Duration(envInt("TYPING_SECONDS", 6)) * time.Second,
			ReactionChance: envFloat("REACTION_CHANCE", 0.25),
		},
		Moderation: ModerationConfig{
			RateLimitWindow: time.Duration(envInt("RATE_LIMIT_SECONDS", 10)) * time.Second,
			SpamWindow:      time.Duration(envInt("SPAM_WINDOW_SECONDS", 10)) * time.Second,
			SpamMaxMessages: envInt("SPAM_MAX_MESSAGES", 5),
			MaxWarnings:     envInt("MAX_WARNINGS", 5),
			BlockedPrefixes: blocked,
		},
		Persona:   persona,
		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "text"),
		Debug:     os.Getenv("DEBUG") == "true",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Bot.OwnerJID == "" {
		return &ConfigError{Field: "OWNER_NUMBER", Message: "required and must normalize to a valid JID"}
	}
	if c.Moderation.SpamMaxMessages <= 0 {
		return &ConfigError{Field: "SPAM_MAX_MESSAGES", Message: "must be positive"}
	}
	if c.Moderation.MaxWarnings <= 0 {
		return &ConfigError{Field: "MAX_WARNINGS", Message: "must be positive"}
	}
	if c.Pipeline.HistoryCap <= 0 {
		return &ConfigError{Field: "HISTORY_CAP", Message: "must be positive"}
	}
	return nil
}

// AIEnabled reports whether a generative provider is configured.
func (c *Config) AIEnabled() bool {
	return c.AI.APIKey != ""
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
