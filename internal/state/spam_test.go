package state

import (
	"testing"
	"time"
)

func TestSpamDetector_Threshold(t *testing.T) {
	window := 10 * time.Second
	max := 5
	detector := NewSpamDetector(testOwner, window, max)
	base := time.Now()

	// N messages inside the window: never flagged.
	for i := 0; i < max; i++ {
		if detector.Observe(testUser, base.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("Message %d of %d must not be flagged", i+1, max)
		}
	}

	// N+1th within the window is spam.
	if !detector.Observe(testUser, base.Add(5*time.Second)) {
		t.Error("Message exceeding the threshold must be flagged")
	}
}

func TestSpamDetector_SpacedMessagesNeverFlag(t *testing.T) {
	window := 10 * time.Second
	detector := NewSpamDetector(testOwner, window, 2)
	base := time.Now()

	for i := 0; i < 20; i++ {
		now := base.Add(time.Duration(i) * (window + time.Second))
		if detector.Observe(testUser, now) {
			t.Fatalf("Message %d spaced beyond the window must not be flagged", i)
		}
	}
}

func TestSpamDetector_WindowSlides(t *testing.T) {
	window := 10 * time.Second
	detector := NewSpamDetector(testOwner, window, 2)
	base := time.Now()

	detector.Observe(testUser, base)
	detector.Observe(testUser, base.Add(time.Second))
	if !detector.Observe(testUser, base.Add(2*time.Second)) {
		t.Fatal("Third message inside the window must be flagged")
	}

	// Once the early hits age out, the identity is clean again.
	if detector.Observe(testUser, base.Add(13*time.Second)) {
		t.Error("Message after the window slid past the old hits must not be flagged")
	}
}

func TestSpamDetector_OwnerBypass(t *testing.T) {
	detector := NewSpamDetector(testOwner, time.Minute, 1)
	now := time.Now()

	for i := 0; i < 10; i++ {
		if detector.Observe(testOwner, now) {
			t.Fatal("Owner must never be flagged as spamming")
		}
	}
}
