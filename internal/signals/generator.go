// Package signals aggregates recent fills by scored wallets into net-buy
// conviction signals per (market, outcome).
package signals

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// Config bounds the aggregation window and the conviction threshold.
type Config struct {
	// WindowHours is the trailing window width.
	WindowHours int
	// BlocksPerHour converts the window to blocks (Polygon ~1800 at 2s).
	BlocksPerHour uint64
	// MinNetBuyUSDC is the minimum net buy pressure to emit a signal.
	MinNetBuyUSDC float64
}

// Defaults returns the production signal parameters.
func Defaults() Config {
	return Config{
		WindowHours:   24,
		BlocksPerHour: 1_800,
		MinNetBuyUSDC: 200,
	}
}

// Generator computes signals from fills and the scored-address set.
type Generator struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Generator.
func New(cfg Config, logger *slog.Logger) *Generator {
	return &Generator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "signals")),
		now:    time.Now,
	}
}

// signalKey groups fills into one candidate signal.
type signalKey struct {
	address  string
	marketID string
	side     domain.Outcome
}

// Generate aggregates fills within the trailing window by (scored address,
// market, outcome) and emits a signal wherever net buy pressure exceeds the
// threshold. Buying is cash-negative in the ledger, so net buy is the
// negated cash sum. Output is sorted descending by NetUSDC, ties broken by
// ID for determinism.
func (g *Generator) Generate(fills []domain.Fill, scored map[string]struct{}, latestBlock uint64) []domain.Signal {
	window := uint64(g.cfg.WindowHours) * g.cfg.BlocksPerHour
	var floor uint64
	if latestBlock > window {
		floor = latestBlock - window
	}

	type agg struct {
		netUSDC   float64
		lastBlock uint64
	}
	byKey := make(map[signalKey]*agg)

	for _, f := range fills {
		if f.Timestamp < floor {
			continue
		}
		addr := strings.ToLower(f.Address)
		if _, ok := scored[addr]; !ok {
			continue
		}

		key := signalKey{address: addr, marketID: f.MarketID, side: f.OutcomeSide}
		a, ok := byKey[key]
		if !ok {
			a = &agg{}
			byKey[key] = a
		}
		a.netUSDC -= f.CashDeltaUSDC
		if f.Timestamp > a.lastBlock {
			a.lastBlock = f.Timestamp
		}
	}

	createdAt := g.now()
	out := make([]domain.Signal, 0, len(byKey))
	for key, a := range byKey {
		if a.netUSDC <= g.cfg.MinNetBuyUSDC {
			continue
		}
		out = append(out, domain.Signal{
			ID:          domain.SignalID(key.address, key.marketID, key.side, a.lastBlock),
			Address:     key.address,
			MarketID:    key.marketID,
			OutcomeSide: key.side,
			NetUSDC:     a.netUSDC,
			Timestamp:   a.lastBlock,
			CreatedAt:   createdAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].NetUSDC != out[j].NetUSDC {
			return out[i].NetUSDC > out[j].NetUSDC
		}
		return out[i].ID < out[j].ID
	})

	g.logger.Info("generated signals",
		slog.Int("candidates", len(byKey)),
		slog.Int("signals", len(out)),
		slog.Uint64("floor_block", floor),
	)
	return out
}
