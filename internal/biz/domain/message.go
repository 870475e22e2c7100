package domain

import (
	"strings"
	"time"
)

// ContentKind is the decoded content variant of an inbound message.
type ContentKind string

const (
	KindText        ContentKind = "text"
	KindImage       ContentKind = "image"
	KindVideo       ContentKind = "video"
	KindAudio       ContentKind = "audio"
	KindSticker     ContentKind = "sticker"
	KindDocument    ContentKind = "document"
	KindButtonReply ContentKind = "button_reply"
)

// Message represents an inbound message entity, decoded once by the transport
// adapter into a closed set of content kinds. Downstream pipeline stages never
// branch on raw wire shapes again.
type Message struct {
	ID         string
	ChatJID    string
	SenderJID  string
	SenderName string
	IsGroup    bool
	FromMe     bool

	Kind     ContentKind
	Text     string // body, or caption for media
	ViewOnce bool   // self-destructing media wrapper

	// Mentions holds the JIDs explicitly tagged by the sender.
	Mentions []string

	// Reply-quote info, empty when the message is not a reply.
	QuotedAuthor string
	QuotedText   string

	// MediaRef is an opaque transport handle for downloading media payloads.
	MediaRef string

	Timestamp time.Time
}

// HasPayload reports whether the message carries any routable content.
func (m *Message) HasPayload() bool {
	if m.Kind == KindText || m.Kind == KindButtonReply {
		return strings.TrimSpace(m.Text) != ""
	}
	return m.Kind != ""
}

// IsCommand reports whether the message text starts with the given prefix.
func (m *Message) IsCommand(prefix string) bool {
	if prefix == "" {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(m.Text), prefix)
}

// CommandParts splits the message into a lowercase command name and its
// arguments, assuming IsCommand(prefix) holds.
func (m *Message) CommandParts(prefix string) (name string, args []string) {
	fields := strings.Fields(strings.TrimSpace(m.Text))
	if len(fields) == 0 {
		return "", nil
	}
	name = strings.ToLower(strings.TrimPrefix(fields[0], prefix))
	return name, fields[1:]
}

// IsReply reports whether the message quotes an earlier message.
func (m *Message) IsReply() bool {
	return m.QuotedAuthor != ""
}

// IsMedia reports whether the message carries a binary payload.
func (m *Message) IsMedia() bool {
	switch m.Kind {
	case KindImage, KindVideo, KindAudio, KindSticker, KindDocument:
		return true
	}
	return false
}

// MentionsJID reports whether jid appears in the message's mention list,
// compared in normalized form.
func (m *Message) MentionsJID(jid string) bool {
	want := NormalizeJID(jid)
	if want == "" {
		return false
	}
	for _, mj := range m.Mentions {
		if NormalizeJID(mj) == want {
			return true
		}
	}
	return false
}

// Role identifies the speaker side of a chat history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatEntry is one line of a conversation transcript.
type ChatEntry struct {
	Role       Role
	SpeakerJID string // empty for assistant entries
	Text       string
}
