package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultScanBatchSize   = 50
	DefaultScanMaxBatches  = 1000
	DefaultScanParallelism = 8
)

// ScanReport summarizes one revocation run
type ScanReport struct {
	Pages   int
	Checked int
	Revoked int
	Failed  int
}

type outcome int

const (
	outcomeKept outcome = iota
	outcomeRevoked
	outcomeFailed
)

// RevocationEngine re-checks every registered wallet and removes members whose
// balance dropped below the minimum. Records are kept so users can re-qualify.
type RevocationEngine struct {
	registry    ports.Registry
	oracle      ports.Oracle
	revoker     ports.AccessRevoker
	messenger   ports.Messenger
	events      ports.EventPublisher
	groupID     int64
	parallelism int
	logger      *slog.Logger
}

// NewRevocationEngine creates a new revocation engine. events may be nil.
func NewRevocationEngine(
	registry ports.Registry,
	oracle ports.Oracle,
	revoker ports.AccessRevoker,
	messenger ports.Messenger,
	events ports.EventPublisher,
	groupID int64,
	parallelism int,
	logger *slog.Logger,
) *RevocationEngine {
	if parallelism <= 0 {
		parallelism = DefaultScanParallelism
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RevocationEngine{
		registry:    registry,
		oracle:      oracle,
		revoker:     revoker,
		messenger:   messenger,
		events:      events,
		groupID:     groupID,
		parallelism: parallelism,
		logger:      logger,
	}
}

// Run scans the registry in pages of batchSize from offset 0 until a short page or
// maxBatches pages. Per-record failures are logged and skipped; a page read failure
// aborts the run and returns the report of the pages already processed.
func (e *RevocationEngine) Run(ctx context.Context, batchSize, maxBatches int) (ScanReport, error) {
	var report ScanReport
	if batchSize <= 0 || maxBatches <= 0 {
		return report, fmt.Errorf("batch size and max batches must be positive: %w", core.ErrInvalidInput)
	}

	started := time.Now()
	for page := 0; page < maxBatches; page++ {
		offset := page * batchSize

		records, err := e.registry.Page(ctx, batchSize, offset)
		if err != nil {
			e.logger.Error("revocation scan aborted", "offset", offset, "error", err)
			return report, fmt.Errorf("read page at offset %d: %w", offset, wrapAs(err, core.ErrRegistryFailure))
		}
		report.Pages++

		for _, o := range e.checkPage(ctx, records) {
			report.Checked++
			switch o {
			case outcomeRevoked:
				report.Revoked++
			case outcomeFailed:
				report.Failed++
			}
		}

		if len(records) < batchSize {
			break
		}
		if page == maxBatches-1 {
			e.logger.Warn("revocation scan stopped at max batches", "max_batches", maxBatches, "batch_size", batchSize)
		}
	}

	e.logger.Info("revocation scan finished",
		"pages", report.Pages,
		"checked", report.Checked,
		"revoked", report.Revoked,
		"failed", report.Failed,
		"duration", time.Since(started),
	)
	return report, nil
}

// checkPage checks all records concurrently. Each task writes only its own slot.
func (e *RevocationEngine) checkPage(ctx context.Context, records []core.MembershipRecord) []outcome {
	outcomes := make([]outcome, len(records))

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, rec := range records {
		g.Go(func() error {
			outcomes[i] = e.checkRecord(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (e *RevocationEngine) checkRecord(ctx context.Context, rec core.MembershipRecord) outcome {
	ok, err := e.oracle.CheckBalance(ctx, rec.Wallet)
	if err != nil {
		e.logger.Warn("balance check failed, skipping member", "user_id", rec.UserID, "wallet", rec.Wallet, "error", err)
		return outcomeFailed
	}
	if ok {
		return outcomeKept
	}

	if err := e.revoker.Revoke(ctx, e.groupID, rec.UserID); err != nil {
		e.logger.Error("failed to remove member", "user_id", rec.UserID, "wallet", rec.Wallet, "error", err)
		return outcomeFailed
	}
	e.logger.Info("member removed", "user_id", rec.UserID, "wallet", rec.Wallet)

	if err := e.messenger.SendMessage(ctx, rec.UserID, msgRevoked); err != nil {
		e.logger.Warn("failed to notify removed member", "user_id", rec.UserID, "error", err)
	}
	if e.events != nil {
		if err := e.events.PublishRevoked(ctx, rec.UserID, rec.Wallet); err != nil {
			e.logger.Warn("failed to publish revoked event", "user_id", rec.UserID, "error", err)
		}
	}

	return outcomeRevoked
}
