// Package origin classifies wallets by account kind and trading cadence so
// relayer/bot infrastructure can be excluded from smart-money output.
package origin

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// Config tunes the relayer cadence heuristic.
type Config struct {
	// MaxTrades24h: more trades than this inside one day marks a relayer.
	MaxTrades24h int
	// MinMedianGapSec: a median gap between consecutive trades below this
	// marks a relayer.
	MinMedianGapSec float64
	// SecondsPerBlock converts block gaps to wall-clock gaps (Polygon ~2s).
	SecondsPerBlock float64
	// WindowBlocks is the trailing block span counted as "24h".
	WindowBlocks uint64
	// Parallel bounds concurrent bytecode lookups; values below 1 mean
	// sequential.
	Parallel int
}

// Defaults returns the production heuristic parameters.
func Defaults() Config {
	return Config{
		MaxTrades24h:    500,
		MinMedianGapSec: 30,
		SecondsPerBlock: 2,
		WindowBlocks:    43_200,
		Parallel:        10,
	}
}

// Classifier derives OriginMetadata for traded addresses. Contract detection
// is authoritative (bytecode lookup); relayer detection is cadence-based and
// therefore a heuristic.
type Classifier struct {
	reader domain.ChainReader
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Classifier.
func New(reader domain.ChainReader, cfg Config, logger *slog.Logger) *Classifier {
	return &Classifier{
		reader: reader,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "origin")),
		now:    time.Now,
	}
}

// Classify derives metadata for one address from its fills. The fills may
// span any range; only those within WindowBlocks of latestBlock feed the
// cadence heuristic. A bytecode lookup failure downgrades to EOA rather than
// failing the whole pass, since misclassifying a contract as an EOA only
// costs one extra leaderboard row.
func (c *Classifier) Classify(ctx context.Context, address string, fills []domain.Fill, latestBlock uint64) domain.OriginMetadata {
	meta := domain.OriginMetadata{
		Address:   strings.ToLower(address),
		UpdatedAt: c.now(),
	}

	code, err := c.reader.CodeAt(ctx, address)
	if err != nil {
		c.logger.Warn("bytecode lookup failed, assuming EOA",
			slog.String("address", meta.Address),
			slog.String("error", err.Error()),
		)
	} else {
		meta.IsContract = len(code) > 0
	}

	recent := recentBlocks(fills, latestBlock, c.cfg.WindowBlocks)
	meta.TradesCount24h = len(recent) // one entry per fill, not per block

	if gap, ok := medianGapSec(recent, c.cfg.SecondsPerBlock); ok {
		meta.MedianTimeGapSec = &gap
	}

	meta.IsRelayer = meta.TradesCount24h > c.cfg.MaxTrades24h ||
		(meta.MedianTimeGapSec != nil && *meta.MedianTimeGapSec < c.cfg.MinMedianGapSec)

	return meta
}

// ClassifyAll derives metadata for every address in the fill set, grouping by
// lowercased address. Bytecode lookups fan out over Config.Parallel workers.
// Output is sorted by address.
func (c *Classifier) ClassifyAll(ctx context.Context, fills []domain.Fill, latestBlock uint64) ([]domain.OriginMetadata, error) {
	byAddr := make(map[string][]domain.Fill)
	for _, f := range fills {
		addr := strings.ToLower(f.Address)
		byAddr[addr] = append(byAddr[addr], f)
	}

	addresses := make([]string, 0, len(byAddr))
	for addr := range byAddr {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	parallel := c.cfg.Parallel
	if parallel < 1 {
		parallel = 1
	}

	out := make([]domain.OriginMetadata, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, addr := range addresses {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = c.Classify(gctx, addr, byAddr[addr], latestBlock)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	relayers := 0
	for _, m := range out {
		if m.IsRelayer {
			relayers++
		}
	}
	c.logger.Info("classified wallet origins",
		slog.Int("addresses", len(out)),
		slog.Int("relayers", relayers),
	)
	return out, nil
}

// recentBlocks returns the block numbers of fills inside the trailing window,
// ascending, one entry per fill. Block numbers stand in for timestamps, so a
// same-block burst contributes zero-second gaps.
func recentBlocks(fills []domain.Fill, latestBlock, window uint64) []uint64 {
	var floor uint64
	if latestBlock > window {
		floor = latestBlock - window
	}

	blocks := make([]uint64, 0, len(fills))
	for _, f := range fills {
		if f.Timestamp < floor {
			continue
		}
		blocks = append(blocks, f.Timestamp)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })
	return blocks
}

// medianGapSec computes the median gap in seconds between consecutive fills.
// It needs at least two fills in the window.
func medianGapSec(blocks []uint64, secondsPerBlock float64) (float64, bool) {
	if len(blocks) < 2 {
		return 0, false
	}

	gaps := make([]float64, 0, len(blocks)-1)
	for i := 1; i < len(blocks); i++ {
		gaps = append(gaps, float64(blocks[i]-blocks[i-1])*secondsPerBlock)
	}
	sort.Float64s(gaps)

	mid := len(gaps) / 2
	if len(gaps)%2 == 1 {
		return gaps[mid], true
	}
	return (gaps[mid-1] + gaps[mid]) / 2, true
}
