package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zapbot-im/zapbot/internal/state"
)

// MaintenanceScheduler periodically sweeps the in-memory stores that carry
// time-bounded entries: expired view-once media and lapsed punishments.
type MaintenanceScheduler struct {
	ephemeral   *state.EphemeralStore
	punishments *state.Punishments
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMaintenanceScheduler creates a stopped scheduler.
func NewMaintenanceScheduler(ephemeral *state.EphemeralStore, punishments *state.Punishments, logger *slog.Logger) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		ephemeral:   ephemeral,
		punishments: punishments,
		logger:      logger,
	}
}

// Start launches the sweep loops. The ephemeral sweep runs once per TTL so
// an expired item lingers at most one extra lifetime.
func (s *MaintenanceScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.sweepLoop(s.ephemeral.TTL(), func(now time.Time) (string, int) {
		return "ephemeral media", s.ephemeral.Sweep(now)
	})
	go s.sweepLoop(time.Minute, func(now time.Time) (string, int) {
		return "punishments", s.punishments.Sweep(now)
	})

	s.logger.Info("maintenance scheduler started", "ephemeral_interval", s.ephemeral.TTL())
}

// Stop cancels the loops and waits for them to exit.
func (s *MaintenanceScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("maintenance scheduler stopped")
}

func (s *MaintenanceScheduler) sweepLoop(interval time.Duration, sweep func(time.Time) (string, int)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if what, removed := sweep(now); removed > 0 {
				s.logger.Debug("swept expired entries", "what", what, "removed", removed)
			}
		}
	}
}
