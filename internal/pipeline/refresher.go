// Package pipeline wires the scanner, decoder, resolver, ledger, and
// analytics stages into the index/process loops.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polytracker/internal/domain"
	"github.com/alanyoungcy/polytracker/internal/platform/gamma"
)

// TokenMapRefresher keeps the token map current with explicit provenance:
// a successful Gamma fetch is fresh, a cache or database fallback is stale,
// and only when every source is dry does it report unavailable.
type TokenMapRefresher struct {
	gamma   *gamma.Client
	cache   domain.TokenMapCache
	markets domain.MarketStore
	logger  *slog.Logger
}

// NewTokenMapRefresher creates a refresher. cache may be nil.
func NewTokenMapRefresher(client *gamma.Client, cache domain.TokenMapCache, markets domain.MarketStore, logger *slog.Logger) *TokenMapRefresher {
	return &TokenMapRefresher{
		gamma:   client,
		cache:   cache,
		markets: markets,
		logger:  logger.With(slog.String("component", "tokenmap")),
	}
}

// Current returns the best available snapshot. The freshness tag tells the
// caller exactly which source served it; only the unavailable case is an
// error.
func (r *TokenMapRefresher) Current(ctx context.Context) (domain.TokenMapSnapshot, error) {
	snap, err := r.gamma.Snapshot(ctx)
	if err == nil {
		r.store(ctx, snap)
		r.logger.Info("token map refreshed",
			slog.Int("markets", len(snap.Markets)),
			slog.Int("tokens", len(snap.TokenMap)),
		)
		return snap, nil
	}
	r.logger.Warn("gamma fetch failed, falling back",
		slog.String("error", err.Error()),
	)

	if r.cache != nil {
		cached, cacheErr := r.cache.Get(ctx)
		if cacheErr == nil && len(cached.TokenMap) > 0 {
			cached.Freshness = domain.FreshnessStale
			r.logger.Info("serving stale token map from cache",
				slog.Int("tokens", len(cached.TokenMap)),
				slog.Time("fetched_at", cached.FetchedAt),
			)
			return cached, nil
		}
	}

	tokenMap, dbErr := r.markets.TokenMap(ctx)
	if dbErr == nil && len(tokenMap) > 0 {
		r.logger.Info("serving stale token map from database",
			slog.Int("tokens", len(tokenMap)),
		)
		return domain.TokenMapSnapshot{
			TokenMap:  tokenMap,
			Freshness: domain.FreshnessStale,
		}, nil
	}

	return domain.TokenMapSnapshot{Freshness: domain.FreshnessUnavailable},
		fmt.Errorf("pipeline: token map unavailable: %w (gamma: %w)", domain.ErrEmptyTokenMap, err)
}

// store persists a fresh snapshot to the cache and the markets table.
// Failures are logged, not fatal: the snapshot in hand is still good.
func (r *TokenMapRefresher) store(ctx context.Context, snap domain.TokenMapSnapshot) {
	if r.cache != nil {
		if err := r.cache.Set(ctx, snap); err != nil {
			r.logger.Warn("token map cache write failed", slog.String("error", err.Error()))
		}
	}
	if err := r.markets.UpsertBatch(ctx, snap.Markets); err != nil {
		r.logger.Warn("market store write failed", slog.String("error", err.Error()))
	}
}

// RunLoop refreshes on a fixed interval until the context ends.
func (r *TokenMapRefresher) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Current(ctx); err != nil {
				r.logger.Error("token map refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}
