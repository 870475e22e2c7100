package repo

import (
	"context"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
)

// MemberRole is a participant's role inside a group.
type MemberRole string

const (
	RoleMember     MemberRole = "member"
	RoleAdmin      MemberRole = "admin"
	RoleSuperAdmin MemberRole = "superadmin"
)

// GroupMember is one entry of a group's participant list.
type GroupMember struct {
	JID  string
	Role MemberRole
}

// IsAdmin reports whether the member can moderate the group.
func (m GroupMember) IsAdmin() bool {
	return m.Role == RoleAdmin || m.Role == RoleSuperAdmin
}

// MembershipAction is a group membership mutation.
type MembershipAction string

const (
	MembershipAdd     MembershipAction = "add"
	MembershipRemove  MembershipAction = "remove"
	MembershipPromote MembershipAction = "promote"
	MembershipDemote  MembershipAction = "demote"
)

// PresenceState is the composing-presence indicator.
type PresenceState string

const (
	PresenceComposing PresenceState = "composing"
	PresencePaused    PresenceState = "paused"
)

// EventType discriminates transport events.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventMessageBatch EventType = "message_batch"
	EventMembership   EventType = "membership"
	EventDisconnected EventType = "disconnected"
)

// MembershipChange describes a group join/leave/promote/demote notification.
type MembershipChange struct {
	GroupJID string
	JIDs     []string
	Action   MembershipAction
}

// Event is one item of the transport's inbound stream.
type Event struct {
	Type       EventType
	LinkedJID  string // set on EventConnected: the bot's current device JID
	Messages   []*domain.Message
	Membership *MembershipChange
}

// Transport abstracts the messaging network session. How the session is
// authenticated or restored and how media is encoded are the transport
// library's concern; the pipeline only depends on these primitives.
type Transport interface {
	SendText(ctx context.Context, chatJID, text string, mentions []string) error
	SendMedia(ctx context.Context, chatJID string, kind domain.ContentKind, payload []byte, caption string, mentions []string) error
	DeleteMessage(ctx context.Context, chatJID, messageID string) error
	React(ctx context.Context, chatJID, messageID, emoji string) error
	SetPresence(ctx context.Context, chatJID string, state PresenceState) error

	GroupMembers(ctx context.Context, groupJID string) ([]GroupMember, error)
	UpdateMembership(ctx context.Context, groupJID string, jids []string, action MembershipAction) error

	// Download fetches the binary payload referenced by a media message.
	Download(ctx context.Context, msg *domain.Message) ([]byte, error)

	// Events returns the inbound event stream. The channel is closed when the
	// session ends for good.
	Events() <-chan Event

	Close() error
}
