package scheduler

import (
	"context"
	"time"

	"clinic_engage_backend/platform/config"
	"clinic_engage_backend/platform/logger"
)

const sweepBatchSize = 50

// FallbackRetrier replays captured webhook events. Implemented by the webhook
// service.
type FallbackRetrier interface {
	RetrySweep(ctx context.Context, batchSize int) (retried, succeeded int, err error)
}

// FallbackSweeper periodically retries webhook events sitting in the fallback
// queue.
type FallbackSweeper struct {
	retrier  FallbackRetrier
	interval time.Duration
	log      *logger.Logger
}

// NewFallbackSweeper creates a sweeper with the configured interval.
func NewFallbackSweeper(cfg config.SchedulerConfig, retrier FallbackRetrier, log *logger.Logger) *FallbackSweeper {
	interval := cfg.GetFallbackSweepInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &FallbackSweeper{
		retrier:  retrier,
		interval: interval,
		log:      log,
	}
}

// Run sweeps until the context is cancelled.
func (s *FallbackSweeper) Run(ctx context.Context) {
	if s == nil || s.retrier == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		retried, succeeded, err := s.retrier.RetrySweep(ctx, sweepBatchSize)
		if err != nil {
			s.log.Warn("fallback retry sweep failed", "error", err)
			continue
		}
		if retried > 0 {
			s.log.Info("fallback retry sweep completed",
				"retried", retried, "succeeded", succeeded)
		}
	}
}
