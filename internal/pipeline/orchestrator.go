package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator drives the full mode: periodic index and process passes, the
// token-map refresh loop, and optional archival, each as its own goroutine.
type Orchestrator struct {
	indexer   *Indexer
	processor *Processor
	refresher *TokenMapRefresher
	archiver  *Archiver // nil when object storage is disabled

	scanInterval    time.Duration
	processInterval time.Duration
	refreshInterval time.Duration
	logger          *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	indexer *Indexer,
	processor *Processor,
	refresher *TokenMapRefresher,
	archiver *Archiver,
	scanInterval, processInterval, refreshInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		indexer:         indexer,
		processor:       processor,
		refresher:       refresher,
		archiver:        archiver,
		scanInterval:    scanInterval,
		processInterval: processInterval,
		refreshInterval: refreshInterval,
		logger:          logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts every loop under a shared errgroup. A failing index or process
// pass is logged and retried on the next tick; only a hard sub-loop failure
// (or ctx cancellation) stops the orchestrator.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator starting",
		slog.Duration("scan_interval", o.scanInterval),
		slog.Duration("process_interval", o.processInterval),
		slog.Duration("refresh_interval", o.refreshInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.runIndexLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("index loop: %w", err)
	})

	g.Go(func() error {
		err := o.runProcessLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("process loop: %w", err)
	})

	g.Go(func() error {
		err := o.refresher.RunLoop(ctx, o.refreshInterval)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("token map loop: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunLoop(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archive loop: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("orchestrator stopped cleanly")
	return nil
}

// runIndexLoop runs an index pass immediately, then on every tick.
func (o *Orchestrator) runIndexLoop(ctx context.Context) error {
	if _, err := o.indexer.RunOnce(ctx); err != nil {
		o.logger.Error("index pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(o.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := o.indexer.RunOnce(ctx); err != nil {
				o.logger.Error("index pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runProcessLoop runs a process pass immediately, then on every tick.
func (o *Orchestrator) runProcessLoop(ctx context.Context) error {
	if _, err := o.processor.RunOnce(ctx); err != nil {
		o.logger.Error("process pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(o.processInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := o.processor.RunOnce(ctx); err != nil {
				o.logger.Error("process pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
