package usecase

import (
	"context"
	"fmt"

	"github.com/zapbot-im/zapbot/internal/biz/domain"
	"github.com/zapbot-im/zapbot/internal/biz/repo"
)

// ProgressionUsecase awards XP and keeps the persistent profile store in sync.
type ProgressionUsecase struct {
	profiles     repo.ProfileRepo
	xpPerMessage int
}

// NewProgressionUsecase creates a new progression usecase
func NewProgressionUsecase(profiles repo.ProfileRepo, xpPerMessage int) *ProgressionUsecase {
	return &ProgressionUsecase{profiles: profiles, xpPerMessage: xpPerMessage}
}

// Award grants the fixed per-message XP to jid. It returns the updated
// profile and whether the award crossed a level boundary.
func (uc *ProgressionUsecase) Award(ctx context.Context, jid string) (*domain.Profile, bool, error) {
	return uc.grant(ctx, jid, uc.xpPerMessage)
}

// Bonus grants an arbitrary amount of XP (owner maintenance action).
func (uc *ProgressionUsecase) Bonus(ctx context.Context, jid string, xp int) (*domain.Profile, bool, error) {
	return uc.grant(ctx, jid, xp)
}

// Profile returns the stored profile for jid, creating a zeroed one in memory
// (not persisted) when the user is unseen.
func (uc *ProgressionUsecase) Profile(ctx context.Context, jid string) (*domain.Profile, error) {
	profile, err := uc.profiles.Get(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		profile = &domain.Profile{JID: jid, Title: domain.TitleForLevel(0)}
	}
	return profile, nil
}

// Leaderboard returns up to limit profiles ordered by XP.
func (uc *ProgressionUsecase) Leaderboard(ctx context.Context, limit int) ([]*domain.Profile, error) {
	return uc.profiles.Top(ctx, limit)
}

func (uc *ProgressionUsecase) grant(ctx context.Context, jid string, xp int) (*domain.Profile, bool, error) {
	profile, err := uc.Profile(ctx, jid)
	if err != nil {
		return nil, false, err
	}

	leveled := profile.AddXP(xp)
	if err := uc.profiles.Upsert(ctx, profile); err != nil {
		return nil, false, fmt.Errorf("upsert profile: %w", err)
	}
	return profile, leveled, nil
}
