package state

import (
	"testing"
	"time"
)

const (
	testOwner = "5511900000000@s.whatsapp.net"
	testUser  = "5511987654321@s.whatsapp.net"
)

func TestRateLimiter_AcceptThenReject(t *testing.T) {
	window := 10 * time.Second
	limiter := NewRateLimiter(testOwner, window)
	base := time.Now()

	allowed, _ := limiter.Allow(testUser, base)
	if !allowed {
		t.Fatal("First call must be allowed")
	}

	// W-1 seconds later: still inside the window.
	allowed, remaining := limiter.Allow(testUser, base.Add(window-time.Second))
	if allowed {
		t.Fatal("Call inside the window must be rejected")
	}
	if remaining != time.Second {
		t.Errorf("Remaining = %v, want 1s", remaining)
	}

	// Rejection must not have mutated the recorded timestamp.
	allowed, _ = limiter.Allow(testUser, base.Add(window))
	if !allowed {
		t.Error("Call at exactly window distance from the accept must pass")
	}
}

func TestRateLimiter_AcceptedCallsSeparatedByWindow(t *testing.T) {
	window := 5 * time.Second
	limiter := NewRateLimiter(testOwner, window)
	base := time.Now()

	var accepted []time.Time
	for i := 0; i < 30; i++ {
		now := base.Add(time.Duration(i) * time.Second)
		if ok, _ := limiter.Allow(testUser, now); ok {
			accepted = append(accepted, now)
		}
	}

	for i := 1; i < len(accepted); i++ {
		if gap := accepted[i].Sub(accepted[i-1]); gap < window {
			t.Errorf("Accepted calls %d and %d separated by %v, want >= %v", i-1, i, gap, window)
		}
	}
}

func TestRateLimiter_OwnerBypass(t *testing.T) {
	limiter := NewRateLimiter(testOwner, time.Minute)
	now := time.Now()

	for i := 0; i < 5; i++ {
		if ok, _ := limiter.Allow(testOwner, now); !ok {
			t.Fatal("Owner must always be allowed")
		}
	}
}

func TestWaitSeconds(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		expected  int
	}{
		{0, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{9 * time.Second, 9},
	}

	for _, tt := range tests {
		if got := WaitSeconds(tt.remaining); got != tt.expected {
			t.Errorf("WaitSeconds(%v) = %d, want %d", tt.remaining, got, tt.expected)
		}
	}
}
