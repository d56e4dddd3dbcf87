package sched

import (
	"context"
	"time"

	"langtest-practice/internal/usecase"

	"github.com/rs/zerolog"
)

const sweepBatch = 500

// ExpiryWorker periodically clears premium on accounts whose expiry passed
// without any read touching them.
type ExpiryWorker struct {
	interval time.Duration
	ents     usecase.EntitlementUseCase
	now      func() time.Time
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, ents usecase.EntitlementUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		ents:     ents,
		now:      time.Now,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep drains lapsed accounts in batches until a pass expires nothing.
func (w *ExpiryWorker) Sweep(ctx context.Context) int {
	total := 0
	for {
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		n, err := w.ents.ExpireLapsed(runCtx, w.now(), sweepBatch)
		cancel()
		if err != nil {
			w.log.Error().Err(err).Msg("expiry worker error")
			return total
		}
		total += n
		if n < sweepBatch {
			break
		}
	}
	if total > 0 {
		w.log.Info().Int("count", total).Msg("lapsed premium expired")
	}
	return total
}
