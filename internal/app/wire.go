package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/polytracker/internal/blob/s3"
	rediscache "github.com/alanyoungcy/polytracker/internal/cache/redis"
	"github.com/alanyoungcy/polytracker/internal/chain"
	"github.com/alanyoungcy/polytracker/internal/config"
	"github.com/alanyoungcy/polytracker/internal/decoder"
	"github.com/alanyoungcy/polytracker/internal/deposits"
	"github.com/alanyoungcy/polytracker/internal/domain"
	"github.com/alanyoungcy/polytracker/internal/origin"
	"github.com/alanyoungcy/polytracker/internal/pipeline"
	"github.com/alanyoungcy/polytracker/internal/platform/gamma"
	"github.com/alanyoungcy/polytracker/internal/resolver"
	"github.com/alanyoungcy/polytracker/internal/scanner"
	"github.com/alanyoungcy/polytracker/internal/scoring"
	"github.com/alanyoungcy/polytracker/internal/signals"
	"github.com/alanyoungcy/polytracker/internal/store/postgres"
)

// tokenMapTTL bounds how long a cached snapshot can serve as the stale
// fallback after Gamma goes dark.
const tokenMapTTL = 24 * time.Hour

// gammaMaxPages caps a single refresh so a pathological API response cannot
// spin the refresher forever.
const gammaMaxPages = 50

// Dependencies holds every wired component. Fields that a mode does not need
// are nil: Chain is only dialed for modes that read the chain, and the blob
// fields are only set when object storage is enabled.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *rediscache.Client
	Blob     *s3blob.Client
	Chain    *chain.Client

	Fills     domain.FillStore
	Positions domain.PositionStore
	Stats     domain.TraderStatsStore
	Signals   domain.SignalStore
	Deposits  domain.DepositStore
	Origins   domain.OriginStore
	Markets   domain.MarketStore

	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus
	BlobReader  domain.BlobReader

	Refresher *pipeline.TokenMapRefresher
	Indexer   *pipeline.Indexer
	Processor *pipeline.Processor
	Archiver  *pipeline.Archiver
}

// Wire constructs the dependency graph for the configured mode. The returned
// cleanup closes everything wired so far, in reverse order; it is safe to call
// even after a partial failure.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)
	needsChain := mode == "index" || mode == "process" || mode == "full"

	// Postgres and its stores back every mode.
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, cleanup, fmt.Errorf("app: connect postgres: %w", err)
	}
	closers = append(closers, pg.Close)
	deps.Postgres = pg

	if cfg.Postgres.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			return nil, cleanup, fmt.Errorf("app: run migrations: %w", err)
		}
	}

	pool := pg.Pool()
	deps.Fills = postgres.NewFillStore(pool)
	deps.Positions = postgres.NewPositionStore(pool)
	deps.Stats = postgres.NewTraderStatsStore(pool)
	deps.Signals = postgres.NewSignalStore(pool)
	deps.Deposits = postgres.NewDepositStore(pool)
	deps.Origins = postgres.NewOriginStore(pool)
	deps.Markets = postgres.NewMarketStore(pool)

	// Redis serves the rate limiter, the signal bus, and the token-map cache.
	rdb, err := rediscache.New(ctx, rediscache.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return nil, cleanup, fmt.Errorf("app: connect redis: %w", err)
	}
	closers = append(closers, func() { _ = rdb.Close() })
	deps.Redis = rdb
	deps.RateLimiter = rediscache.NewRateLimiter(rdb)
	deps.SignalBus = rediscache.NewSignalBus(rdb)
	tokenMapCache := rediscache.NewTokenMapCache(rdb, tokenMapTTL)

	gammaClient := gamma.New(cfg.Gamma.Host, cfg.Gamma.PageSize, gammaMaxPages)
	deps.Refresher = pipeline.NewTokenMapRefresher(gammaClient, tokenMapCache, deps.Markets, logger)

	// Object storage is optional; without it archival and the archives
	// endpoint stay off.
	var archive domain.Archiver
	if cfg.S3.Enabled {
		blob, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: connect object storage: %w", err)
		}
		closers = append(closers, func() { _ = blob.Close() })
		deps.Blob = blob

		reader := s3blob.NewReader(blob)
		deps.BlobReader = reader
		archive = s3blob.NewArchiver(s3blob.NewWriter(blob), reader, deps.Fills, deps.Deposits)
		deps.Archiver = pipeline.NewArchiver(archive, deps.Fills, deps.Deposits, pipeline.ArchiverConfig{
			RetentionDays: cfg.S3.RetentionDays,
			BlocksPerDay:  blocksPerDay(cfg.Chain.BlockTimeSec),
		}, logger)
	}

	if needsChain {
		chainClient, err := chain.New(ctx, chain.ClientConfig{
			RPCURL:          cfg.Chain.RPCURL,
			RequestTimeout:  cfg.Chain.RequestTimeout.Duration,
			MaxRetries:      cfg.Chain.MaxRetries,
			RateLimitPerSec: cfg.Chain.RateLimitPerSec,
		}, deps.RateLimiter, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: dial chain rpc: %w", err)
		}
		closers = append(closers, chainClient.Close)
		deps.Chain = chainClient

		deps.Indexer = buildIndexer(cfg, deps, logger)
		deps.Processor = buildProcessor(cfg, deps, logger)
	}

	return deps, cleanup, nil
}

// buildIndexer assembles the scan -> decode -> resolve -> persist stage.
func buildIndexer(cfg *config.Config, deps *Dependencies, logger *slog.Logger) *pipeline.Indexer {
	tradeScanner := scanner.New(deps.Chain, scanner.Config{
		Window:    cfg.Scanner.Window,
		Parallel:  cfg.Scanner.Parallel,
		Addresses: cfg.Chain.ExchangeAddresses,
		Topic:     decoder.OrderFilledTopic(),
	}, logger)

	depositScanner := deposits.New(deps.Chain, deposits.Config{
		TokenAddresses: cfg.Chain.USDCAddresses,
		VaultAddresses: cfg.Chain.VaultAddresses,
	}, logger)

	return pipeline.NewIndexer(
		deps.Chain,
		tradeScanner,
		decoder.New(logger),
		resolver.New(logger),
		deps.Refresher,
		depositScanner,
		deps.Fills,
		deps.Deposits,
		pipeline.IndexerConfig{
			MinLogs:        cfg.Scanner.MinLogs,
			LookbackBlocks: cfg.Scanner.LookbackBlocks,
			DepositBatch:   cfg.Pipeline.DepositBatch,
		},
		logger,
	)
}

// buildProcessor assembles the replay -> score -> signal stage.
func buildProcessor(cfg *config.Config, deps *Dependencies, logger *slog.Logger) *pipeline.Processor {
	classifier := origin.New(deps.Chain, origin.Config{
		MaxTrades24h:    cfg.Relayer.TradesCount24hThreshold,
		MinMedianGapSec: cfg.Relayer.MedianTimeGapSecThreshold,
		SecondsPerBlock: cfg.Chain.BlockTimeSec,
		WindowBlocks:    blocksPerDay(cfg.Chain.BlockTimeSec),
		Parallel:        cfg.Pipeline.OriginParallel,
	}, logger)

	generator := signals.New(signals.Config{
		WindowHours:   cfg.Signals.WindowHours,
		BlocksPerHour: cfg.Signals.BlocksPerHour,
		MinNetBuyUSDC: cfg.Signals.MinNetUSDC,
	}, logger)

	return pipeline.NewProcessor(
		deps.Fills,
		deps.Positions,
		deps.Stats,
		deps.Signals,
		deps.Origins,
		classifier,
		generator,
		deps.SignalBus,
		scoring.Thresholds{
			MinTradesCount:       cfg.Scoring.MinTradesCount,
			MinMarketsCount:      cfg.Scoring.MinMarketsCount,
			MinVolumeUSDC:        cfg.Scoring.MinVolumeUSDC,
			SampleCorrectionBase: cfg.Scoring.SampleCorrectionBase,
		},
		scoring.Weights{
			ROI:     cfg.Scoring.ROIWeight,
			WinRate: cfg.Scoring.WinRateWeight,
			Volume:  cfg.Scoring.VolumeWeight,
		},
		logger,
	)
}

// blocksPerDay converts the configured block time to a one-day block span.
func blocksPerDay(blockTimeSec float64) uint64 {
	if blockTimeSec <= 0 {
		blockTimeSec = 2.0
	}
	return uint64(86_400 / blockTimeSec)
}
