package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polytracker/internal/decoder"
	"github.com/alanyoungcy/polytracker/internal/deposits"
	"github.com/alanyoungcy/polytracker/internal/domain"
	"github.com/alanyoungcy/polytracker/internal/ledger"
	"github.com/alanyoungcy/polytracker/internal/resolver"
	"github.com/alanyoungcy/polytracker/internal/scanner"
)

// IndexerConfig bounds the backfill and catch-up behavior.
type IndexerConfig struct {
	// MinLogs is the backward-scan target when the ledger is empty.
	MinLogs int
	// LookbackBlocks floors the initial backward scan.
	LookbackBlocks uint64
	// DepositBatch caps the block span per deposit catch-up round.
	DepositBatch uint64
}

// IndexStats summarizes one indexing run.
type IndexStats struct {
	RunID            string
	Logs             int
	Decoded          int
	DecodeErrors     int
	Resolved         int
	Unresolved       int
	FillsInserted    int
	DepositsInserted int
	TokenMapState    domain.Freshness
	Elapsed          time.Duration
}

// Indexer runs the scan -> decode -> resolve -> normalize -> persist stage,
// plus the deposit catch-up. Every write is idempotent, so overlapping or
// repeated runs are safe.
type Indexer struct {
	chain     domain.ChainReader
	scanner   *scanner.Scanner
	decoder   *decoder.Decoder
	resolver  *resolver.Resolver
	refresher *TokenMapRefresher
	deposits  *deposits.Scanner

	fillStore    domain.FillStore
	depositStore domain.DepositStore

	cfg    IndexerConfig
	logger *slog.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(
	chain domain.ChainReader,
	scan *scanner.Scanner,
	dec *decoder.Decoder,
	res *resolver.Resolver,
	refresher *TokenMapRefresher,
	dep *deposits.Scanner,
	fillStore domain.FillStore,
	depositStore domain.DepositStore,
	cfg IndexerConfig,
	logger *slog.Logger,
) *Indexer {
	return &Indexer{
		chain:        chain,
		scanner:      scan,
		decoder:      dec,
		resolver:     res,
		refresher:    refresher,
		deposits:     dep,
		fillStore:    fillStore,
		depositStore: depositStore,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "indexer")),
	}
}

// RunOnce executes one full indexing pass and returns its stats.
func (ix *Indexer) RunOnce(ctx context.Context) (IndexStats, error) {
	stats := IndexStats{RunID: uuid.NewString()}
	started := time.Now()
	logger := ix.logger.With(slog.String("run_id", stats.RunID))

	snap, err := ix.refresher.Current(ctx)
	stats.TokenMapState = snap.Freshness
	if err != nil {
		return stats, fmt.Errorf("pipeline: index run %s: %w", stats.RunID, err)
	}

	latest, err := ix.chain.LatestBlock(ctx)
	if err != nil {
		return stats, fmt.Errorf("pipeline: index run %s: latest block: %w", stats.RunID, err)
	}

	logs, err := ix.collectTradeLogs(ctx, latest)
	if err != nil {
		return stats, fmt.Errorf("pipeline: index run %s: %w", stats.RunID, err)
	}
	stats.Logs = len(logs)

	decoded, decodeErrs := ix.decoder.Decode(logs)
	stats.Decoded = len(decoded)
	stats.DecodeErrors = len(decodeErrs)

	resolved, unresolved := ix.resolver.Resolve(decoded, snap.TokenMap)
	stats.Resolved = len(resolved)
	stats.Unresolved = len(unresolved)

	fills := ledger.NormalizeAll(resolved)
	inserted, err := ix.fillStore.InsertBatch(ctx, fills)
	if err != nil {
		return stats, fmt.Errorf("pipeline: index run %s: insert fills: %w", stats.RunID, err)
	}
	stats.FillsInserted = inserted

	depositsInserted, err := ix.catchUpDeposits(ctx, latest)
	if err != nil {
		return stats, fmt.Errorf("pipeline: index run %s: %w", stats.RunID, err)
	}
	stats.DepositsInserted = depositsInserted

	stats.Elapsed = time.Since(started)
	logger.Info("index run complete",
		slog.Int("logs", stats.Logs),
		slog.Int("decoded", stats.Decoded),
		slog.Int("decode_errors", stats.DecodeErrors),
		slog.Int("resolved", stats.Resolved),
		slog.Int("fills_inserted", stats.FillsInserted),
		slog.Int("deposits_inserted", stats.DepositsInserted),
		slog.String("token_map", string(stats.TokenMapState)),
		slog.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}

// collectTradeLogs backfills backward on an empty ledger and walks forward
// from the last indexed block otherwise.
func (ix *Indexer) collectTradeLogs(ctx context.Context, latest uint64) ([]domain.RawLog, error) {
	lastIndexed, err := ix.fillStore.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("last indexed block: %w", err)
	}

	if lastIndexed == 0 {
		var floor uint64
		if latest > ix.cfg.LookbackBlocks {
			floor = latest - ix.cfg.LookbackBlocks
		}
		return ix.scanner.Scan(ctx, ix.cfg.MinLogs, floor)
	}

	if lastIndexed >= latest {
		return nil, nil
	}
	return ix.scanner.ScanRange(ctx, lastIndexed+1, latest)
}

// catchUpDeposits walks the deposit cursor toward the chain head in bounded
// spans so a long gap cannot produce an oversized getLogs request.
func (ix *Indexer) catchUpDeposits(ctx context.Context, latest uint64) (int, error) {
	last, err := ix.depositStore.LatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("last deposit block: %w", err)
	}

	from := last + 1
	if last == 0 {
		if latest > ix.cfg.LookbackBlocks {
			from = latest - ix.cfg.LookbackBlocks
		} else {
			from = 0
		}
	}
	if from > latest {
		return 0, nil
	}

	batch := ix.cfg.DepositBatch
	if batch == 0 {
		batch = 10_000
	}

	total := 0
	for from <= latest {
		to := latest
		if from+batch-1 < latest {
			to = from + batch - 1
		}

		found, err := ix.deposits.ScanRange(ctx, from, to)
		if err != nil {
			return total, err
		}
		inserted, err := ix.depositStore.InsertBatch(ctx, found)
		if err != nil {
			return total, fmt.Errorf("insert deposits: %w", err)
		}
		total += inserted

		if to == latest {
			break
		}
		from = to + 1
	}
	return total, nil
}
