package repo

import (
	"context"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
)

// ProfileRepo is the persistent progression store, keyed by user JID.
type ProfileRepo interface {
	// Get returns the stored profile, or (nil, nil) when the user is unseen.
	Get(ctx context.Context, jid string) (*domain.Profile, error)

	// Upsert creates or replaces the profile for its JID. Idempotent.
	Upsert(ctx context.Context, profile *domain.Profile) error

	// Top returns up to limit profiles ordered by XP descending.
	Top(ctx context.Context, limit int) ([]*domain.Profile, error)

	Close() error
}
