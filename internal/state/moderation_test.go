package state

import (
	"testing"
	"time"
)

func TestWarnings(t *testing.T) {
	w := NewWarnings()

	if w.Count(testUser) != 0 {
		t.Error("Fresh counter must be zero")
	}
	for i := 1; i <= 3; i++ {
		if got := w.Increment(testUser); got != i {
			t.Errorf("Increment #%d = %d, want %d", i, got, i)
		}
	}

	w.Reset(testUser)
	if w.Count(testUser) != 0 {
		t.Error("Counter must be zero after reset")
	}
}

func TestPunishments_ActiveAndLazyEvict(t *testing.T) {
	p := NewPunishments()
	now := time.Now()

	p.Punish(testUser, now.Add(time.Minute))

	if !p.Active(testUser, now) {
		t.Fatal("Punishment must be active before expiry")
	}
	if p.Active(testUser, now.Add(time.Minute)) {
		t.Fatal("Punishment must lapse at expiry")
	}

	// The expired entry was evicted by the observation above.
	if p.Active(testUser, now) {
		t.Error("Expired entry must have been evicted on first observation")
	}
}

func TestPunishments_Lift(t *testing.T) {
	p := NewPunishments()
	now := time.Now()

	p.Punish(testUser, now.Add(time.Hour))
	p.Lift(testUser)

	if p.Active(testUser, now) {
		t.Error("Lifted punishment must not be active")
	}
}

func TestPunishments_Sweep(t *testing.T) {
	p := NewPunishments()
	now := time.Now()

	p.Punish("a@s.whatsapp.net", now.Add(-time.Minute))
	p.Punish("b@s.whatsapp.net", now.Add(time.Minute))

	if removed := p.Sweep(now); removed != 1 {
		t.Errorf("Sweep removed %d entries, want 1", removed)
	}
	if !p.Active("b@s.whatsapp.net", now) {
		t.Error("Unexpired punishment must survive the sweep")
	}
}
