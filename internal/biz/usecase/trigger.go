package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/biz/repo"
	"github.com/zapbot-im/zapbot/internal/state"
)

const (
	quotedSnippetMax = 160
	truncationMarker = "… [truncated]"
)

var mentionTagPattern = regexp.MustCompile(`@(\d{5,})`)

// TriggerConfig tunes the AI trigger evaluator.
type TriggerConfig struct {
	BotName       string
	PrimaryNumber string // configured primary number, digits only
	SystemPrompt  string
	PromptBudget  int // hard prompt input budget, characters
	RespondAll    bool
}

// TriggerUsecase decides whether an inbound message warrants an AI reply, and
// builds/post-processes the generation round trip.
type TriggerUsecase struct {
	history  *state.History
	settings *state.Settings
	ai       repo.AIProvider
	cfg      TriggerConfig

	namePattern *regexp.Regexp

	mu         sync.RWMutex
	linkedJID  string // bot's current device JID, set after connect
	respondAll bool
}

// NewTriggerUsecase creates a new trigger usecase
func NewTriggerUsecase(history *state.History, settings *state.Settings, ai repo.AIProvider, cfg TriggerConfig) *TriggerUsecase {
	var namePattern *regexp.Regexp
	if cfg.BotName != "" {
		namePattern = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(cfg.BotName) + `\b`)
	}
	return &TriggerUsecase{
		history:     history,
		settings:    settings,
		ai:          ai,
		cfg:         cfg,
		namePattern: namePattern,
		respondAll:  cfg.RespondAll,
	}
}

// SetLinkedJID records the bot's current device JID once the transport
// reports it.
func (uc *TriggerUsecase) SetLinkedJID(jid string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.linkedJID = domain.NormalizeJID(jid)
}

// LinkedJID returns the bot's current device JID.
func (uc *TriggerUsecase) LinkedJID() string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.linkedJID
}

// SetRespondAll toggles the global "respond to everything" override.
func (uc *TriggerUsecase) SetRespondAll(on bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.respondAll = on
}

// RespondAll reports whether the global override is active.
func (uc *TriggerUsecase) RespondAll() bool {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.respondAll
}

func (uc *TriggerUsecase) primaryJID() string {
	if uc.cfg.PrimaryNumber == "" {
		return ""
	}
	return uc.cfg.PrimaryNumber + domain.UserSuffix
}

// ShouldRespond evaluates the trigger conditions for a message. Direct chats
// always trigger; groups require the AI toggle plus one of the trigger
// predicates, unless the global override is on.
func (uc *TriggerUsecase) ShouldRespond(msg *domain.Message) bool {
	if uc.RespondAll() {
		return true
	}
	if !msg.IsGroup {
		return true
	}
	if !uc.settings.Get(msg.ChatJID).AIEnabled {
		return false
	}

	linked := uc.LinkedJID()

	// (a) the message explicitly tags the bot's current device identity
	if linked != "" && msg.MentionsJID(linked) {
		return true
	}

	// (b) the message replies to the bot. Two predicates, evaluated in this
	// order: the configured primary identity, then the current device
	// identity. Neither is semantically primary; both are kept.
	if msg.IsReply() {
		quoted := domain.NormalizeJID(msg.QuotedAuthor)
		if primary := uc.primaryJID(); primary != "" && quoted == primary {
			return true
		}
		if linked != "" && quoted == linked {
			return true
		}
	}

	// (c) the text names the bot as a whole word
	if uc.namePattern != nil && uc.namePattern.MatchString(msg.Text) {
		return true
	}

	// (d) the text carries an @-number tag for the bot
	for _, match := range mentionTagPattern.FindAllStringSubmatch(msg.Text, -1) {
		num := match[1]
		if num == uc.cfg.PrimaryNumber {
			return true
		}
		if linked != "" && num == domain.JIDNumber(linked) {
			return true
		}
	}

	return false
}

// Reply runs the full generation round trip: prompt assembly under the input
// budget, provider call, and mention post-processing. The returned mention
// set only contains identities the user tagged in the triggering message.
func (uc *TriggerUsecase) Reply(ctx context.Context, msg *domain.Message, image []byte, imageMIME string) (string, []string, error) {
	parts := uc.buildPrompt(msg)
	if len(image) > 0 {
		parts = append(parts, repo.ImagePart(image, imageMIME))
	}

	text, err := uc.ai.Generate(ctx, parts)
	if err != nil {
		return "", nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil, repo.ErrEmptyResult
	}

	return text, FilterMentions(text, msg.Mentions), nil
}

// buildPrompt concatenates persona instructions, the truncated transcript, a
// reply note when the message quotes an earlier one, and the current message.
// The transcript is truncated first, from the oldest end; only if the prompt
// is still over budget is the current message itself truncated.
func (uc *TriggerUsecase) buildPrompt(msg *domain.Message) []repo.PromptPart {
	current := fmt.Sprintf("[Message from %s]:\n%s", speakerLabel(msg.SenderName, msg.SenderJID), msg.Text)

	var replyNote string
	if msg.IsReply() {
		snippet := msg.QuotedText
		if len(snippet) > quotedSnippetMax {
			snippet = snippet[:runeBoundary(snippet, quotedSnippetMax)] + truncationMarker
		}
		replyNote = fmt.Sprintf("[The message replies to an earlier message: %q]", snippet)
	}

	budget := uc.cfg.PromptBudget
	fixed := len(uc.cfg.SystemPrompt) + len(replyNote) + len(current)

	// Drop transcript entries from the oldest end until the budget holds.
	entries := uc.history.Read(msg.ChatJID)
	historyText := formatTranscript(entries, uc.cfg.BotName)
	for len(entries) > 0 && fixed+len(historyText) > budget {
		entries = entries[1:]
		historyText = formatTranscript(entries, uc.cfg.BotName)
	}

	// Still over budget: truncate the current message itself.
	if fixed+len(historyText) > budget {
		keep := budget - len(uc.cfg.SystemPrompt) - len(replyNote) - len(historyText) - len(truncationMarker)
		if keep < 0 {
			keep = 0
		}
		if keep < len(current) {
			current = current[:runeBoundary(current, keep)] + truncationMarker
		}
	}

	parts := []repo.PromptPart{repo.TextPart(uc.cfg.SystemPrompt)}
	if historyText != "" {
		parts = append(parts, repo.TextPart(historyText))
	}
	if replyNote != "" {
		parts = append(parts, repo.TextPart(replyNote))
	}
	parts = append(parts, repo.TextPart(current))
	return parts
}

// runeBoundary backs a byte cut-off up to the nearest rune start so the
// truncated string stays valid UTF-8.
func runeBoundary(s string, n int) int {
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

func formatTranscript(entries []domain.ChatEntry, botName string) string {
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("[Recent chat messages - for reference]\n")
	for _, e := range entries {
		if e.Role == domain.RoleAssistant {
			fmt.Fprintf(&sb, "[%s (you)]: %s\n", botName, e.Text)
		} else {
			fmt.Fprintf(&sb, "[%s]: %s\n", speakerLabel("", e.SpeakerJID), e.Text)
		}
	}
	return sb.String()
}

func speakerLabel(name, jid string) string {
	if name != "" {
		return name
	}
	if num := domain.JIDNumber(jid); num != "" {
		return num
	}
	return jid
}

// FilterMentions scans generated text for @-number tags and keeps only those
// matching identities present in the inbound mention list. This prevents the
// model from inventing mentions of people the user never tagged.
func FilterMentions(reply string, inbound []string) []string {
	if len(inbound) == 0 {
		return nil
	}

	byNumber := make(map[string]string, len(inbound))
	for _, jid := range inbound {
		norm := domain.NormalizeJID(jid)
		if norm == "" {
			continue
		}
		byNumber[domain.JIDNumber(norm)] = norm
	}

	var out []string
	seen := make(map[string]bool)
	for _, match := range mentionTagPattern.FindAllStringSubmatch(reply, -1) {
		if jid, ok := byNumber[match[1]]; ok && !seen[jid] {
			seen[jid] = true
			out = append(out, jid)
		}
	}
	return out
}
