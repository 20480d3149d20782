package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polytracker/internal/domain"
	"github.com/alanyoungcy/polytracker/internal/ledger"
	"github.com/alanyoungcy/polytracker/internal/origin"
	"github.com/alanyoungcy/polytracker/internal/scoring"
	"github.com/alanyoungcy/polytracker/internal/signals"
)

// ProcessStats summarizes one analytics run.
type ProcessStats struct {
	RunID           string
	Fills           int
	Positions       int
	Traders         int
	RelayersSkipped int
	Scored          int
	SignalsNew      int
	Elapsed         time.Duration
}

// Processor runs the replay -> stats -> score -> signal stage over the fill
// ledger. It is a pure re-derivation: rerunning over the same ledger writes
// the same state and zero new signals.
type Processor struct {
	fillStore     domain.FillStore
	positionStore domain.PositionStore
	statsStore    domain.TraderStatsStore
	signalStore   domain.SignalStore
	originStore   domain.OriginStore

	classifier *origin.Classifier
	generator  *signals.Generator
	bus        domain.SignalBus

	thresholds scoring.Thresholds
	weights    scoring.Weights
	logger     *slog.Logger
}

// NewProcessor creates a Processor. bus may be nil; signals are then stored
// but not published.
func NewProcessor(
	fillStore domain.FillStore,
	positionStore domain.PositionStore,
	statsStore domain.TraderStatsStore,
	signalStore domain.SignalStore,
	originStore domain.OriginStore,
	classifier *origin.Classifier,
	generator *signals.Generator,
	bus domain.SignalBus,
	thresholds scoring.Thresholds,
	weights scoring.Weights,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		fillStore:     fillStore,
		positionStore: positionStore,
		statsStore:    statsStore,
		signalStore:   signalStore,
		originStore:   originStore,
		classifier:    classifier,
		generator:     generator,
		bus:           bus,
		thresholds:    thresholds,
		weights:       weights,
		logger:        logger.With(slog.String("component", "processor")),
	}
}

// RunOnce executes one full analytics pass and returns its stats.
func (p *Processor) RunOnce(ctx context.Context) (ProcessStats, error) {
	stats := ProcessStats{RunID: uuid.NewString()}
	started := time.Now()
	logger := p.logger.With(slog.String("run_id", stats.RunID))

	fills, err := p.fillStore.ListAll(ctx)
	if err != nil {
		return stats, fmt.Errorf("pipeline: process run %s: list fills: %w", stats.RunID, err)
	}
	stats.Fills = len(fills)
	if len(fills) == 0 {
		logger.Info("process run skipped, ledger empty")
		return stats, nil
	}

	latestBlock, err := p.fillStore.LatestBlock(ctx)
	if err != nil {
		return stats, fmt.Errorf("pipeline: process run %s: latest block: %w", stats.RunID, err)
	}

	positions := ledger.Replay(fills)
	stats.Positions = len(positions)
	if err := p.positionStore.ReplaceAll(ctx, positions); err != nil {
		return stats, fmt.Errorf("pipeline: process run %s: store positions: %w", stats.RunID, err)
	}

	traderStats := ledger.Aggregate(positions, fills)
	stats.Traders = len(traderStats)

	// Classify origins before scoring so relayer infrastructure never makes
	// the leaderboard.
	metas, err := p.classifier.ClassifyAll(ctx, fills, latestBlock)
	if err != nil {
		return stats, fmt.Errorf("pipeline: process run %s: classify origins: %w", stats.RunID, err)
	}
	if _, err := p.originStore.UpsertBatch(ctx, metas); err != nil {
		return stats, fmt.Errorf("pipeline: process run %s: store origins: %w", stats.RunID, err)
	}

	relayers := make(map[string]struct{})
	for _, m := range metas {
		if m.IsRelayer {
			relayers[m.Address] = struct{}{}
		}
	}

	eligible := make([]domain.TraderStats, 0, len(traderStats))
	for _, t := range traderStats {
		if _, ok := relayers[t.Address]; ok {
			stats.RelayersSkipped++
			continue
		}
		eligible = append(eligible, t)
	}

	scored := scoring.Score(eligible, p.thresholds, p.weights)
	stats.Scored = len(scored)
	if _, err := p.statsStore.UpsertBatch(ctx, scored); err != nil {
		return stats, fmt.Errorf("pipeline: process run %s: store trader stats: %w", stats.RunID, err)
	}

	scoredSet := make(map[string]struct{}, len(scored))
	for _, t := range scored {
		scoredSet[t.Address] = struct{}{}
	}

	generated := p.generator.Generate(fills, scoredSet, latestBlock)
	newSignals, err := p.persistAndPublish(ctx, generated)
	if err != nil {
		return stats, fmt.Errorf("pipeline: process run %s: %w", stats.RunID, err)
	}
	stats.SignalsNew = newSignals

	stats.Elapsed = time.Since(started)
	logger.Info("process run complete",
		slog.Int("fills", stats.Fills),
		slog.Int("positions", stats.Positions),
		slog.Int("traders", stats.Traders),
		slog.Int("relayers_skipped", stats.RelayersSkipped),
		slog.Int("scored", stats.Scored),
		slog.Int("signals_new", stats.SignalsNew),
		slog.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}

// persistAndPublish stores generated signals and publishes only the rows that
// were actually new, so resubscribing clients never see replays.
func (p *Processor) persistAndPublish(ctx context.Context, generated []domain.Signal) (int, error) {
	if len(generated) == 0 {
		return 0, nil
	}

	// Insert one at a time so the new/duplicate distinction stays per-signal.
	newCount := 0
	for _, sig := range generated {
		inserted, err := p.signalStore.InsertBatch(ctx, []domain.Signal{sig})
		if err != nil {
			return newCount, fmt.Errorf("insert signal %s: %w", sig.ID, err)
		}
		if inserted == 0 {
			continue
		}
		newCount++

		if p.bus == nil {
			continue
		}
		payload, err := json.Marshal(sig)
		if err != nil {
			p.logger.Warn("signal marshal failed", slog.String("signal_id", sig.ID))
			continue
		}
		if err := p.bus.Publish(ctx, "signals", payload); err != nil {
			p.logger.Warn("signal publish failed",
				slog.String("signal_id", sig.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return newCount, nil
}
