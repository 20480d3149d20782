// Package scanner walks block ranges in provider-sized windows and collects
// raw event logs through bounded-parallel range requests.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// Config holds the scanner parameters. Window is the provider's maximum
// inclusive block span per getLogs call; Parallel bounds the number of
// in-flight window fetches per round.
type Config struct {
	Window    uint64
	Parallel  int
	Addresses []string
	Topic     string
}

// Scanner issues windowed, concurrent log-range requests against a
// ChainReader. A failure of any window aborts the scan round rather than
// returning an incomplete log set: a completed scan always covers its entire
// claimed block range. Scans are safely resumable because downstream
// persistence is idempotent on (txHash, logIndex).
type Scanner struct {
	chain  domain.ChainReader
	cfg    Config
	logger *slog.Logger
}

// New creates a Scanner. Window and Parallel fall back to safe minimums when
// unset.
func New(chain domain.ChainReader, cfg Config, logger *slog.Logger) *Scanner {
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	return &Scanner{
		chain:  chain,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scanner")),
	}
}

// blockRange is one inclusive window of blocks.
type blockRange struct {
	from uint64
	to   uint64
}

// Scan walks backward from the chain's latest block in fixed-size windows
// until either targetMinLogs raw logs are collected or the walk reaches
// floorBlock. The caller can stop between rounds by cancelling ctx.
func (s *Scanner) Scan(ctx context.Context, targetMinLogs int, floorBlock uint64) ([]domain.RawLog, error) {
	latest, err := s.chain.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: latest block: %w", err)
	}
	if floorBlock > latest {
		return nil, fmt.Errorf("scanner: floor block %d is above chain head %d", floorBlock, latest)
	}

	s.logger.Info("starting backward scan",
		slog.Uint64("latest_block", latest),
		slog.Uint64("floor_block", floorBlock),
		slog.Int("target_min_logs", targetMinLogs),
	)

	var logs []domain.RawLog
	toBlock := latest

	for len(logs) < targetMinLogs && toBlock > floorBlock {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scanner: %w: %w", domain.ErrScanAborted, err)
		}

		// Build up to Parallel windows walking toward the floor. The
		// window span is inclusive on both ends, hence the +1 offset.
		ranges := make([]blockRange, 0, s.cfg.Parallel)
		for i := 0; i < s.cfg.Parallel && toBlock > floorBlock; i++ {
			from := floorBlock
			if toBlock >= s.cfg.Window && toBlock-s.cfg.Window+1 > floorBlock {
				from = toBlock - s.cfg.Window + 1
			}
			ranges = append(ranges, blockRange{from: from, to: toBlock})
			if from == 0 {
				toBlock = 0
				break
			}
			toBlock = from - 1
		}
		if len(ranges) == 0 {
			break
		}

		batch, err := s.fetchParallel(ctx, ranges)
		if err != nil {
			return nil, fmt.Errorf("scanner: %w: %w", domain.ErrScanAborted, err)
		}
		logs = append(logs, batch...)

		s.logger.Info("scanned window batch",
			slog.Uint64("from", ranges[len(ranges)-1].from),
			slog.Uint64("to", ranges[0].to),
			slog.Int("batch_logs", len(batch)),
			slog.Int("total_logs", len(logs)),
		)
	}

	s.logger.Info("scan complete", slog.Int("logs", len(logs)))
	return logs, nil
}

// ScanRange walks forward over the explicit closed interval [fromBlock,
// toBlock], for catch-up and backfill use.
func (s *Scanner) ScanRange(ctx context.Context, fromBlock, toBlock uint64) ([]domain.RawLog, error) {
	if fromBlock > toBlock {
		return nil, fmt.Errorf("scanner: invalid range %d-%d", fromBlock, toBlock)
	}

	s.logger.Info("scanning block range",
		slog.Uint64("from", fromBlock),
		slog.Uint64("to", toBlock),
	)

	var logs []domain.RawLog
	current := fromBlock

	for current <= toBlock {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scanner: %w: %w", domain.ErrScanAborted, err)
		}

		ranges := make([]blockRange, 0, s.cfg.Parallel)
		for i := 0; i < s.cfg.Parallel && current <= toBlock; i++ {
			end := toBlock
			if current+s.cfg.Window-1 < toBlock {
				end = current + s.cfg.Window - 1
			}
			ranges = append(ranges, blockRange{from: current, to: end})
			current = end + 1
		}
		if len(ranges) == 0 {
			break
		}

		batch, err := s.fetchParallel(ctx, ranges)
		if err != nil {
			return nil, fmt.Errorf("scanner: %w: %w", domain.ErrScanAborted, err)
		}
		logs = append(logs, batch...)
	}

	return logs, nil
}

// fetchParallel fetches all windows concurrently. Any window failure cancels
// the remaining fetches and surfaces the error; partial batches are never
// returned.
func (s *Scanner) fetchParallel(ctx context.Context, ranges []blockRange) ([]domain.RawLog, error) {
	g, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	results := make([][]domain.RawLog, len(ranges))

	for i, r := range ranges {
		g.Go(func() error {
			logs, err := s.chain.FilterLogs(ctx, domain.LogFilter{
				FromBlock: r.from,
				ToBlock:   r.to,
				Addresses: s.cfg.Addresses,
				Topics:    []string{s.cfg.Topic},
			})
			if err != nil {
				return fmt.Errorf("window %d-%d: %w", r.from, r.to, err)
			}
			mu.Lock()
			results[i] = logs
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var logs []domain.RawLog
	for _, res := range results {
		logs = append(logs, res...)
	}
	return logs, nil
}
