package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

const tokenMapKey = "tokenmap:snapshot"

// TokenMapCache implements domain.TokenMapCache over a single Redis key. The
// cached snapshot outlives the Gamma API: on fetch failure the refresher
// serves it re-tagged as stale, so ttl here bounds staleness, not
// availability.
type TokenMapCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTokenMapCache creates a TokenMapCache. A non-positive ttl disables
// expiry.
func NewTokenMapCache(c *Client, ttl time.Duration) *TokenMapCache {
	return &TokenMapCache{rdb: c.Underlying(), ttl: ttl}
}

var _ domain.TokenMapCache = (*TokenMapCache)(nil)

type cachedSnapshot struct {
	Markets   []cachedMarket `json:"markets"`
	Freshness string         `json:"freshness"`
	FetchedAt time.Time      `json:"fetched_at"`
}

type cachedMarket struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Slug        string    `json:"slug"`
	YesTokenID  string    `json:"yes_token_id"`
	NoTokenID   string    `json:"no_token_id"`
	ConditionID string    `json:"condition_id"`
	Volume      float64   `json:"volume"`
	Active      bool      `json:"active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Set stores the snapshot. The token map itself is not serialized; Get
// rebuilds it from the markets, keeping the payload roughly half the size.
func (c *TokenMapCache) Set(ctx context.Context, snap domain.TokenMapSnapshot) error {
	cached := cachedSnapshot{
		Markets:   make([]cachedMarket, 0, len(snap.Markets)),
		Freshness: string(snap.Freshness),
		FetchedAt: snap.FetchedAt,
	}
	for _, m := range snap.Markets {
		cached.Markets = append(cached.Markets, cachedMarket(m))
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("redis: marshal token map snapshot: %w", err)
	}

	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, tokenMapKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set token map snapshot: %w", err)
	}
	return nil
}

// Get loads the cached snapshot, rebuilding the token map from its markets.
// A missing key maps to domain.ErrNotFound.
func (c *TokenMapCache) Get(ctx context.Context) (domain.TokenMapSnapshot, error) {
	data, err := c.rdb.Get(ctx, tokenMapKey).Bytes()
	if err == redis.Nil {
		return domain.TokenMapSnapshot{}, fmt.Errorf("redis: token map snapshot: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.TokenMapSnapshot{}, fmt.Errorf("redis: get token map snapshot: %w", err)
	}

	var cached cachedSnapshot
	if err := json.Unmarshal(data, &cached); err != nil {
		return domain.TokenMapSnapshot{}, fmt.Errorf("redis: unmarshal token map snapshot: %w", err)
	}

	snap := domain.TokenMapSnapshot{
		Markets:   make([]domain.Market, 0, len(cached.Markets)),
		TokenMap:  make(domain.TokenMap, 2*len(cached.Markets)),
		Freshness: domain.Freshness(cached.Freshness),
		FetchedAt: cached.FetchedAt,
	}
	for _, m := range cached.Markets {
		market := domain.Market(m)
		snap.Markets = append(snap.Markets, market)
		if market.YesTokenID != "" && market.NoTokenID != "" {
			snap.TokenMap[market.YesTokenID] = domain.TokenMapping{MarketID: market.ID, Outcome: domain.OutcomeYes}
			snap.TokenMap[market.NoTokenID] = domain.TokenMapping{MarketID: market.ID, Outcome: domain.OutcomeNo}
		}
	}
	return snap, nil
}
