package domain

import "strings"

// Identity suffixes of the messaging network.
const (
	UserSuffix      = "@s.whatsapp.net"
	GroupSuffix     = "@g.us"
	LinkedSuffix    = "@lid"
	BroadcastStatus = "status@broadcast"
)

// NormalizeJID maps any raw identity string to its canonical form. It is
// total and idempotent: invalid input maps to "", and canonical input maps
// to itself. Rules, in order:
//
//  1. linked-device identities (@lid) pass through unchanged
//  2. group identities keep only the digits before @g.us
//  3. the broadcast-status sentinel passes through unchanged
//  4. user identities keep only the digits before @s.whatsapp.net
//  5. bare input is treated as a phone number: digits only, and too-short
//     numbers are invalid
func NormalizeJID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if strings.HasSuffix(raw, LinkedSuffix) {
		return raw
	}

	if idx := strings.Index(raw, GroupSuffix); idx >= 0 {
		digits := digitsOf(raw[:idx])
		if digits == "" {
			return ""
		}
		return digits + GroupSuffix
	}

	if raw == BroadcastStatus {
		return raw
	}

	if idx := strings.Index(raw, UserSuffix); idx >= 0 {
		digits := digitsOf(raw[:idx])
		if digits == "" {
			return ""
		}
		return digits + UserSuffix
	}

	digits := digitsOf(raw)
	if len(digits) <= 5 {
		return ""
	}
	return digits + UserSuffix
}

// IsGroupJID reports whether jid names a group conversation.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, GroupSuffix)
}

// IsUserJID reports whether jid names an individual user.
func IsUserJID(jid string) bool {
	return strings.HasSuffix(jid, UserSuffix)
}

// JIDNumber returns the numeric part of a JID, or the digits of a bare
// number.
func JIDNumber(jid string) string {
	if idx := strings.IndexByte(jid, '@'); idx >= 0 {
		jid = jid[:idx]
	}
	return digitsOf(jid)
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}
