package state

import (
	"errors"
	"testing"
	"time"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
)

func TestEphemeralStore_ConsumeOnce(t *testing.T) {
	store := NewEphemeralStore(5 * time.Minute)
	now := time.Now()

	store.Capture(testUser, domain.KindImage, []byte("payload"), "hi", now)

	item, err := store.Retrieve(testUser, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if string(item.Payload) != "payload" || item.Kind != domain.KindImage {
		t.Errorf("Unexpected item: %+v", item)
	}

	// Second retrieve within the TTL: slot already consumed.
	if _, err := store.Retrieve(testUser, now.Add(2*time.Second)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Second retrieve = %v, want ErrNotFound", err)
	}
}

func TestEphemeralStore_Expiry(t *testing.T) {
	ttl := 5 * time.Minute
	store := NewEphemeralStore(ttl)
	now := time.Now()

	store.Capture(testUser, domain.KindVideo, []byte("v"), "", now)

	if _, err := store.Retrieve(testUser, now.Add(ttl+time.Millisecond)); !errors.Is(err, ErrExpired) {
		t.Fatalf("Retrieve past TTL = %v, want ErrExpired", err)
	}

	// Expiry clears the slot.
	if _, err := store.Retrieve(testUser, now.Add(ttl+time.Second)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Retrieve after expiry = %v, want ErrNotFound", err)
	}
}

func TestEphemeralStore_Overwrite(t *testing.T) {
	store := NewEphemeralStore(time.Minute)
	now := time.Now()

	store.Capture(testUser, domain.KindImage, []byte("first"), "", now)
	store.Capture(testUser, domain.KindImage, []byte("second"), "", now.Add(time.Second))

	item, err := store.Retrieve(testUser, now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if string(item.Payload) != "second" {
		t.Errorf("Payload = %q, want the overwriting capture", item.Payload)
	}
}

func TestEphemeralStore_Sweep(t *testing.T) {
	ttl := time.Minute
	store := NewEphemeralStore(ttl)
	now := time.Now()

	store.Capture("a@s.whatsapp.net", domain.KindImage, nil, "", now.Add(-2*ttl))
	store.Capture("b@s.whatsapp.net", domain.KindImage, nil, "", now.Add(-2*ttl))
	store.Capture("c@s.whatsapp.net", domain.KindImage, nil, "", now)

	if removed := store.Sweep(now); removed != 2 {
		t.Errorf("Sweep removed %d items, want 2", removed)
	}

	if _, err := store.Retrieve("c@s.whatsapp.net", now); err != nil {
		t.Errorf("Fresh item must survive the sweep, got %v", err)
	}
}
