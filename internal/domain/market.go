package domain

import "time"

// Market is a snapshot of a binary prediction market known to the token map.
type Market struct {
	ID          string
	Question    string
	Slug        string
	YesTokenID  string
	NoTokenID   string
	ConditionID string
	Volume      float64
	Active      bool
	UpdatedAt   time.Time
}

// TokenMapping ties one outcome token id to the market and side it
// represents.
type TokenMapping struct {
	MarketID string
	Outcome  Outcome
}

// TokenMap maps outcome token ids to their market/outcome. It is refreshed
// externally and may lag newly listed markets at any point in time.
type TokenMap map[string]TokenMapping

// Freshness tags where a token map came from, so callers can observe and
// test staleness instead of relying on an implicit fallback branch.
type Freshness string

const (
	FreshnessFresh       Freshness = "fresh"
	FreshnessStale       Freshness = "stale"
	FreshnessUnavailable Freshness = "unavailable"
)

// TokenMapSnapshot is a token map together with its markets and provenance.
type TokenMapSnapshot struct {
	Markets   []Market
	TokenMap  TokenMap
	Freshness Freshness
	FetchedAt time.Time
}
