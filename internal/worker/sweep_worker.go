package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/clock"
)

const sweepBatch = 200

// StatusSweeper writes back the effective status of sessions whose stored status is stale.
type StatusSweeper interface {
	SweepStatuses(ctx context.Context, limit int) (int, error)
}

// AttemptTicker finalizes in-progress attempts whose deadline has passed.
type AttemptTicker interface {
	TickOpen(ctx context.Context, staleBefore time.Time, limit int) (int, error)
}

// SweepWorker persists time-driven transitions that no request has observed yet, so stored
// states and reports catch up with the clock.
type SweepWorker struct {
	sessions StatusSweeper
	attempts AttemptTicker
	clock    clock.Clock
	interval time.Duration
	log      zerolog.Logger
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(sessions StatusSweeper, attempts AttemptTicker, clk clock.Clock, interval time.Duration, log zerolog.Logger) *SweepWorker {
	return &SweepWorker{
		sessions: sessions,
		attempts: attempts,
		clock:    clk,
		interval: interval,
		log:      log.With().Str("component", "sweep_worker").Logger(),
	}
}

// Start sweeps every interval until ctx is done. Call in a goroutine.
func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("SweepWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("SweepWorker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Sessions go first so attempts are ticked against fresh statuses.
func (w *SweepWorker) Sweep(ctx context.Context) {
	sessions, err := w.sessions.SweepStatuses(ctx, sweepBatch)
	if err != nil {
		w.log.Error().Err(err).Msg("Session sweep failed")
	}

	attempts, err := w.attempts.TickOpen(ctx, w.clock.Now(), sweepBatch)
	if err != nil {
		w.log.Error().Err(err).Msg("Attempt sweep failed")
	}

	if sessions > 0 || attempts > 0 {
		w.log.Info().Int("sessions", sessions).Int("attempts", attempts).Msg("Sweep applied")
	}
}
