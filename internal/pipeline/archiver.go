package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// ArchiverConfig controls the retention cutoff.
type ArchiverConfig struct {
	// RetentionDays is how much ledger history stays in Postgres.
	RetentionDays int
	// BlocksPerDay converts the retention window to blocks (Polygon ~43200).
	BlocksPerDay uint64
	// Interval is how often the archival pass runs.
	Interval time.Duration
}

// Archiver periodically moves aged fills and deposits to object storage and
// then deletes them from Postgres. Deletion happens only after the archive
// upload verified, so a failed upload leaves the rows in place.
type Archiver struct {
	archive  domain.Archiver
	fills    domain.FillStore
	deposits domain.DepositStore
	cfg      ArchiverConfig
	logger   *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(archive domain.Archiver, fills domain.FillStore, deposits domain.DepositStore, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	return &Archiver{
		archive:  archive,
		fills:    fills,
		deposits: deposits,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// RunOnce archives and prunes everything older than the retention cutoff.
func (a *Archiver) RunOnce(ctx context.Context) error {
	latest, err := a.fills.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: archive: latest block: %w", err)
	}

	window := uint64(a.cfg.RetentionDays) * a.cfg.BlocksPerDay
	if latest <= window {
		return nil
	}
	cutoff := latest - window

	archivedFills, err := a.archive.ArchiveFills(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive fills: %w", err)
	}
	if archivedFills > 0 {
		deleted, err := a.fills.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pipeline: prune fills: %w", err)
		}
		a.logger.Info("archived fills",
			slog.Uint64("cutoff_block", cutoff),
			slog.Int64("archived", archivedFills),
			slog.Int64("deleted", deleted),
		)
	}

	archivedDeposits, err := a.archive.ArchiveDeposits(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive deposits: %w", err)
	}
	if archivedDeposits > 0 {
		deleted, err := a.deposits.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pipeline: prune deposits: %w", err)
		}
		a.logger.Info("archived deposits",
			slog.Uint64("cutoff_block", cutoff),
			slog.Int64("archived", archivedDeposits),
			slog.Int64("deleted", deleted),
		)
	}

	return nil
}

// RunLoop runs archival passes on the configured interval.
func (a *Archiver) RunLoop(ctx context.Context) error {
	interval := a.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.RunOnce(ctx); err != nil {
				a.logger.Error("archival pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
