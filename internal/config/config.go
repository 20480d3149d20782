// Package config defines the top-level configuration for the polytracker
// indexer and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYTRACKER_* environment
// variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Scanner  ScannerConfig  `toml:"scanner"`
	Gamma    GammaConfig    `toml:"gamma"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Scoring  ScoringConfig  `toml:"scoring"`
	Relayer  RelayerConfig  `toml:"relayer"`
	Signals  SignalsConfig  `toml:"signals"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds RPC endpoint and chain parameters.
type ChainConfig struct {
	RPCURL            string   `toml:"rpc_url"`
	ChainID           int      `toml:"chain_id"`
	BlockTimeSec      float64  `toml:"block_time_sec"`
	ExchangeAddresses []string `toml:"exchange_addresses"`
	VaultAddresses    []string `toml:"vault_addresses"`
	USDCAddresses     []string `toml:"usdc_addresses"`
	RequestTimeout    duration `toml:"request_timeout"`
	MaxRetries        int      `toml:"max_retries"`
	RateLimitPerSec   int      `toml:"rate_limit_per_sec"`
}

// ScannerConfig holds block-range walking parameters. Window is the
// provider's maximum inclusive block span per getLogs call.
type ScannerConfig struct {
	Window         uint64 `toml:"window"`
	Parallel       int    `toml:"parallel"`
	MinLogs        int    `toml:"min_logs"`
	LookbackBlocks uint64 `toml:"lookback_blocks"`
}

// GammaConfig holds the market-metadata API used to refresh the token map.
type GammaConfig struct {
	Host            string   `toml:"host"`
	PageSize        int      `toml:"page_size"`
	RefreshInterval duration `toml:"refresh_interval"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for cold archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// ScoringConfig holds smart-money qualification thresholds and score weights.
type ScoringConfig struct {
	MinTradesCount       int     `toml:"min_trades_count"`
	MinMarketsCount      int     `toml:"min_markets_count"`
	MinVolumeUSDC        float64 `toml:"min_volume_usdc"`
	SampleCorrectionBase int     `toml:"sample_correction_base"`
	ROIWeight            float64 `toml:"roi_weight"`
	WinRateWeight        float64 `toml:"win_rate_weight"`
	VolumeWeight         float64 `toml:"volume_weight"`
}

// RelayerConfig holds the named thresholds of the relayer heuristic. Each
// rule is sufficient on its own.
type RelayerConfig struct {
	TradesCount24hThreshold   int     `toml:"trades_count_24h_threshold"`
	MedianTimeGapSecThreshold float64 `toml:"median_time_gap_sec_threshold"`
}

// SignalsConfig holds the trailing-window signal generation parameters.
type SignalsConfig struct {
	WindowHours   int     `toml:"window_hours"`
	MinNetUSDC    float64 `toml:"min_net_usdc"`
	BlocksPerHour uint64  `toml:"blocks_per_hour"`
}

// PipelineConfig holds loop intervals for the full mode.
type PipelineConfig struct {
	ScanInterval    duration `toml:"scan_interval"`
	ProcessInterval duration `toml:"process_interval"`
	DepositBatch    uint64   `toml:"deposit_batch"`
	OriginParallel  int      `toml:"origin_parallel"`
}

// ServerConfig holds HTTP server parameters. An empty APIKey disables
// authentication; RateLimit of 0 disables per-IP rate limiting.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values for
// Polygon mainnet and the Polymarket CTF Exchange.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:       "",
			ChainID:      137,
			BlockTimeSec: 2.0,
			ExchangeAddresses: []string{
				"0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
				"0xC5d563A36AE78145C45a50134d48A1215220f80a",
			},
			VaultAddresses: []string{
				"0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E",
				"0xC5d563A36AE78145C45a50134d48A1215220f80a",
				"0x4D97DCd97eC945f40cF65F87097ACe5EA0476045",
			},
			USDCAddresses: []string{
				"0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", // USDC.e
				"0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", // native USDC
			},
			RequestTimeout:  duration{15 * time.Second},
			MaxRetries:      3,
			RateLimitPerSec: 25,
		},
		Scanner: ScannerConfig{
			Window:         10,
			Parallel:       5,
			MinLogs:        100,
			LookbackBlocks: 130_000, // ~3 days at 2s/block
		},
		Gamma: GammaConfig{
			Host:            "https://gamma-api.polymarket.com",
			PageSize:        100,
			RefreshInterval: duration{10 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polytracker",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polytracker-archive",
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Scoring: ScoringConfig{
			MinTradesCount:       20,
			MinMarketsCount:      5,
			MinVolumeUSDC:        500,
			SampleCorrectionBase: 50,
			ROIWeight:            0.45,
			WinRateWeight:        0.35,
			VolumeWeight:         0.20,
		},
		Relayer: RelayerConfig{
			TradesCount24hThreshold:   500,
			MedianTimeGapSecThreshold: 30,
		},
		Signals: SignalsConfig{
			WindowHours:   24,
			MinNetUSDC:    200,
			BlocksPerHour: 1800,
		},
		Pipeline: PipelineConfig{
			ScanInterval:    duration{5 * time.Minute},
			ProcessInterval: duration{15 * time.Minute},
			DepositBatch:    10_000,
			OriginParallel:  10,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"index":   true,
	"process": true,
	"serve":   true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: index, process, serve, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain access is required for modes that scan or classify origins.
	needsRPC := c.Mode == "index" || c.Mode == "process" || c.Mode == "full"
	if needsRPC && strings.TrimSpace(c.Chain.RPCURL) == "" {
		errs = append(errs, "chain: rpc_url must be set for mode "+c.Mode)
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if c.Chain.BlockTimeSec <= 0 {
		errs = append(errs, "chain: block_time_sec must be > 0")
	}
	if len(c.Chain.ExchangeAddresses) == 0 {
		errs = append(errs, "chain: exchange_addresses must not be empty")
	}
	if c.Chain.MaxRetries < 1 {
		errs = append(errs, "chain: max_retries must be >= 1")
	}

	// Scanner
	if c.Scanner.Window < 1 {
		errs = append(errs, "scanner: window must be >= 1")
	}
	if c.Scanner.Parallel < 1 {
		errs = append(errs, "scanner: parallel must be >= 1")
	}
	if c.Scanner.MinLogs < 1 {
		errs = append(errs, "scanner: min_logs must be >= 1")
	}

	// Gamma
	if c.Gamma.Host == "" {
		errs = append(errs, "gamma: host must not be empty")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1 when enabled")
		}
	}

	// Scoring weights must form a convex combination.
	wsum := c.Scoring.ROIWeight + c.Scoring.WinRateWeight + c.Scoring.VolumeWeight
	if wsum < 0.999 || wsum > 1.001 {
		errs = append(errs, fmt.Sprintf("scoring: weights must sum to 1.0, got %.3f", wsum))
	}
	if c.Scoring.SampleCorrectionBase < 1 {
		errs = append(errs, "scoring: sample_correction_base must be >= 1")
	}

	// Relayer
	if c.Relayer.TradesCount24hThreshold < 1 {
		errs = append(errs, "relayer: trades_count_24h_threshold must be >= 1")
	}
	if c.Relayer.MedianTimeGapSecThreshold <= 0 {
		errs = append(errs, "relayer: median_time_gap_sec_threshold must be > 0")
	}

	// Signals
	if c.Signals.WindowHours < 1 {
		errs = append(errs, "signals: window_hours must be >= 1")
	}
	if c.Signals.BlocksPerHour < 1 {
		errs = append(errs, "signals: blocks_per_hour must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
