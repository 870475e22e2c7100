package state

import (
	"fmt"
	"testing"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
)

const testChat = "120363041234567890@g.us"

func TestHistory_CapInvariant(t *testing.T) {
	cap := 10
	h := NewHistory(cap)

	for i := 0; i < cap+7; i++ {
		h.Append(testChat, domain.RoleUser, testUser, fmt.Sprintf("msg %d", i))
	}

	entries := h.Read(testChat)
	if len(entries) != cap {
		t.Fatalf("History length = %d, want %d", len(entries), cap)
	}

	// The surviving entries are the most recent cap, in original order.
	for i, e := range entries {
		want := fmt.Sprintf("msg %d", i+7)
		if e.Text != want {
			t.Errorf("Entry %d = %q, want %q", i, e.Text, want)
		}
	}
}

func TestHistory_WhitespaceNoOp(t *testing.T) {
	h := NewHistory(5)

	h.Append(testChat, domain.RoleUser, testUser, "")
	h.Append(testChat, domain.RoleUser, testUser, "   \t\n")

	if entries := h.Read(testChat); len(entries) != 0 {
		t.Errorf("Whitespace appends must be no-ops, got %d entries", len(entries))
	}
}

func TestHistory_UnseenConversation(t *testing.T) {
	h := NewHistory(5)
	if entries := h.Read("unseen@g.us"); len(entries) != 0 {
		t.Errorf("Unseen conversation must read empty, got %d entries", len(entries))
	}
}

func TestHistory_ReadReturnsCopy(t *testing.T) {
	h := NewHistory(5)
	h.Append(testChat, domain.RoleAssistant, "", "reply")

	entries := h.Read(testChat)
	entries[0].Text = "mutated"

	if h.Read(testChat)[0].Text != "reply" {
		t.Error("Read must return a copy, not the backing slice")
	}
}
