package service

import (
	"context"
	"log/slog"
	"time"
)

// DefaultScanInterval is the period between revocation runs
const DefaultScanInterval = 24 * time.Hour

// Scheduler runs the revocation engine on a fixed period. Runs never overlap.
type Scheduler struct {
	engine     *RevocationEngine
	interval   time.Duration
	batchSize  int
	maxBatches int
	logger     *slog.Logger
}

// NewScheduler creates a scheduler for engine
func NewScheduler(engine *RevocationEngine, interval time.Duration, batchSize, maxBatches int, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:     engine,
		interval:   interval,
		batchSize:  batchSize,
		maxBatches: maxBatches,
		logger:     logger,
	}
}

// Run blocks until ctx is done. The first scan starts one interval after Run.
// A scan in progress is not cancelled; Run returns once it completes.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("revocation scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.engine.Run(context.WithoutCancel(ctx), s.batchSize, s.maxBatches); err != nil {
				s.logger.Error("scheduled revocation scan failed", "error", err)
			}
		}
	}
}
