package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYTRACKER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYTRACKER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "POLYTRACKER_CHAIN_RPC_URL")
	setInt(&cfg.Chain.ChainID, "POLYTRACKER_CHAIN_ID")
	setFloat64(&cfg.Chain.BlockTimeSec, "POLYTRACKER_CHAIN_BLOCK_TIME_SEC")
	setStringSlice(&cfg.Chain.ExchangeAddresses, "POLYTRACKER_CHAIN_EXCHANGE_ADDRESSES")
	setStringSlice(&cfg.Chain.VaultAddresses, "POLYTRACKER_CHAIN_VAULT_ADDRESSES")
	setStringSlice(&cfg.Chain.USDCAddresses, "POLYTRACKER_CHAIN_USDC_ADDRESSES")
	setDuration(&cfg.Chain.RequestTimeout, "POLYTRACKER_CHAIN_REQUEST_TIMEOUT")
	setInt(&cfg.Chain.MaxRetries, "POLYTRACKER_CHAIN_MAX_RETRIES")
	setInt(&cfg.Chain.RateLimitPerSec, "POLYTRACKER_CHAIN_RATE_LIMIT_PER_SEC")

	// ── Scanner ──
	setUint64(&cfg.Scanner.Window, "POLYTRACKER_SCANNER_WINDOW")
	setInt(&cfg.Scanner.Parallel, "POLYTRACKER_SCANNER_PARALLEL")
	setInt(&cfg.Scanner.MinLogs, "POLYTRACKER_SCANNER_MIN_LOGS")
	setUint64(&cfg.Scanner.LookbackBlocks, "POLYTRACKER_SCANNER_LOOKBACK_BLOCKS")

	// ── Gamma ──
	setStr(&cfg.Gamma.Host, "POLYTRACKER_GAMMA_HOST")
	setInt(&cfg.Gamma.PageSize, "POLYTRACKER_GAMMA_PAGE_SIZE")
	setDuration(&cfg.Gamma.RefreshInterval, "POLYTRACKER_GAMMA_REFRESH_INTERVAL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYTRACKER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYTRACKER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYTRACKER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYTRACKER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYTRACKER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYTRACKER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYTRACKER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYTRACKER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYTRACKER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYTRACKER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYTRACKER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYTRACKER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYTRACKER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYTRACKER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYTRACKER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYTRACKER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYTRACKER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYTRACKER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYTRACKER_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYTRACKER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYTRACKER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYTRACKER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYTRACKER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYTRACKER_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "POLYTRACKER_S3_RETENTION_DAYS")

	// ── Scoring ──
	setInt(&cfg.Scoring.MinTradesCount, "POLYTRACKER_SCORING_MIN_TRADES_COUNT")
	setInt(&cfg.Scoring.MinMarketsCount, "POLYTRACKER_SCORING_MIN_MARKETS_COUNT")
	setFloat64(&cfg.Scoring.MinVolumeUSDC, "POLYTRACKER_SCORING_MIN_VOLUME_USDC")
	setInt(&cfg.Scoring.SampleCorrectionBase, "POLYTRACKER_SCORING_SAMPLE_CORRECTION_BASE")
	setFloat64(&cfg.Scoring.ROIWeight, "POLYTRACKER_SCORING_ROI_WEIGHT")
	setFloat64(&cfg.Scoring.WinRateWeight, "POLYTRACKER_SCORING_WIN_RATE_WEIGHT")
	setFloat64(&cfg.Scoring.VolumeWeight, "POLYTRACKER_SCORING_VOLUME_WEIGHT")

	// ── Relayer ──
	setInt(&cfg.Relayer.TradesCount24hThreshold, "POLYTRACKER_RELAYER_TRADES_COUNT_24H_THRESHOLD")
	setFloat64(&cfg.Relayer.MedianTimeGapSecThreshold, "POLYTRACKER_RELAYER_MEDIAN_TIME_GAP_SEC_THRESHOLD")

	// ── Signals ──
	setInt(&cfg.Signals.WindowHours, "POLYTRACKER_SIGNALS_WINDOW_HOURS")
	setFloat64(&cfg.Signals.MinNetUSDC, "POLYTRACKER_SIGNALS_MIN_NET_USDC")
	setUint64(&cfg.Signals.BlocksPerHour, "POLYTRACKER_SIGNALS_BLOCKS_PER_HOUR")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.ScanInterval, "POLYTRACKER_PIPELINE_SCAN_INTERVAL")
	setDuration(&cfg.Pipeline.ProcessInterval, "POLYTRACKER_PIPELINE_PROCESS_INTERVAL")
	setUint64(&cfg.Pipeline.DepositBatch, "POLYTRACKER_PIPELINE_DEPOSIT_BATCH")
	setInt(&cfg.Pipeline.OriginParallel, "POLYTRACKER_PIPELINE_ORIGIN_PARALLEL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYTRACKER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYTRACKER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYTRACKER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYTRACKER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "POLYTRACKER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "POLYTRACKER_SERVER_RATE_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYTRACKER_MODE")
	setStr(&cfg.LogLevel, "POLYTRACKER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
