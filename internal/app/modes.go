package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polytracker/internal/pipeline"
	"github.com/alanyoungcy/polytracker/internal/server"
	"github.com/alanyoungcy/polytracker/internal/server/handler"
	"github.com/alanyoungcy/polytracker/internal/server/ws"
)

// shutdownGrace bounds how long an HTTP drain may take after the run context
// ends.
const shutdownGrace = 10 * time.Second

// IndexMode runs a single indexing pass and exits.
func (a *App) IndexMode(ctx context.Context, deps *Dependencies) error {
	stats, err := deps.Indexer.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("app: index mode: %w", err)
	}
	a.logger.InfoContext(ctx, "index mode finished",
		slog.String("run_id", stats.RunID),
		slog.Int("fills_inserted", stats.FillsInserted),
		slog.Int("deposits_inserted", stats.DepositsInserted),
	)
	return nil
}

// ProcessMode runs a single analytics pass and exits.
func (a *App) ProcessMode(ctx context.Context, deps *Dependencies) error {
	stats, err := deps.Processor.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("app: process mode: %w", err)
	}
	a.logger.InfoContext(ctx, "process mode finished",
		slog.String("run_id", stats.RunID),
		slog.Int("traders", stats.Traders),
		slog.Int("scored", stats.Scored),
		slog.Int("signals_new", stats.SignalsNew),
	)
	return nil
}

// ServeMode runs only the read API and the WebSocket hub.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.Server.Enabled {
		return fmt.Errorf("app: serve mode requires server.enabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the indexing and analytics loops alongside the API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	orchestrator := pipeline.NewOrchestrator(
		deps.Indexer,
		deps.Processor,
		deps.Refresher,
		deps.Archiver,
		a.cfg.Pipeline.ScanInterval.Duration,
		a.cfg.Pipeline.ProcessInterval.Duration,
		a.cfg.Gamma.RefreshInterval.Duration,
		a.base,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orchestrator.Run(ctx)
	})
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}
	return g.Wait()
}

// startServer launches the HTTP server and the WebSocket hub on the group,
// plus a watcher that drains the server when the context ends.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.base)

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.Redis, a.base),
		Traders:  handler.NewTraderHandler(deps.Stats, deps.Positions, deps.Deposits, deps.Origins, a.base),
		Signals:  handler.NewSignalHandler(deps.Signals, a.base),
		Fills:    handler.NewFillHandler(deps.Fills, a.base),
		Archives: handler.NewArchiveHandler(deps.BlobReader, a.base),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.base)

	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
