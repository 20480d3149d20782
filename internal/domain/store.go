package domain

import "context"

// LeaderboardSort enumerates the columns the trader leaderboard can be
// ordered by.
type LeaderboardSort string

const (
	SortByScore       LeaderboardSort = "score"
	SortByROI         LeaderboardSort = "roi"
	SortByWinRate     LeaderboardSort = "win_rate"
	SortByVolume      LeaderboardSort = "volume_usdc"
	SortByRealizedPnL LeaderboardSort = "realized_pnl"
)

// FillStore persists the append-only fill ledger. InsertBatch is idempotent
// on (tx_hash, log_index, role) and reports how many rows were actually new.
type FillStore interface {
	InsertBatch(ctx context.Context, fills []Fill) (int, error)
	ListAll(ctx context.Context) ([]Fill, error)
	ListByAddress(ctx context.Context, address string) ([]Fill, error)
	LatestBlock(ctx context.Context) (uint64, error)
	EarliestBlock(ctx context.Context) (uint64, error)
	ListBefore(ctx context.Context, block uint64) ([]Fill, error)
	DeleteBefore(ctx context.Context, block uint64) (int64, error)
}

// TraderStatsStore persists scored trader statistics keyed by lowercased
// address.
type TraderStatsStore interface {
	UpsertBatch(ctx context.Context, traders []ScoredTrader) (int, error)
	GetByAddress(ctx context.Context, address string) (ScoredTrader, error)
	Leaderboard(ctx context.Context, sortBy LeaderboardSort, limit int) ([]ScoredTrader, error)
	ScoredAddresses(ctx context.Context) (map[string]struct{}, error)
}

// SignalStore persists trading signals, idempotent on
// (address, market_id, outcome_side, timestamp).
type SignalStore interface {
	InsertBatch(ctx context.Context, signals []Signal) (int, error)
	ListSinceBlock(ctx context.Context, cutoff uint64) ([]Signal, error)
	ListByAddress(ctx context.Context, address string) ([]Signal, error)
}

// DepositStore persists custodial transfers, idempotent on
// (tx_hash, log_index).
type DepositStore interface {
	InsertBatch(ctx context.Context, deposits []Deposit) (int, error)
	Summary(ctx context.Context, address string) (DepositSummary, error)
	Summaries(ctx context.Context, addresses []string) (map[string]DepositSummary, error)
	LatestBlock(ctx context.Context) (uint64, error)
	DeleteBefore(ctx context.Context, block uint64) (int64, error)
}

// OriginStore persists wallet origin classifications keyed by lowercased
// address.
type OriginStore interface {
	UpsertBatch(ctx context.Context, metas []OriginMetadata) (int, error)
	GetByAddress(ctx context.Context, address string) (OriginMetadata, error)
}

// MarketStore persists the token-map snapshot of known markets.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []Market) error
	TokenMap(ctx context.Context) (TokenMap, error)
	Count(ctx context.Context) (int64, error)
}

// PositionStore persists the replayed position view. It is fully rewritten
// from the fill ledger on every processing pass.
type PositionStore interface {
	ReplaceAll(ctx context.Context, positions []PositionState) error
	ListByAddress(ctx context.Context, address string) ([]PositionState, error)
	ListByMarket(ctx context.Context, marketID string) ([]PositionState, error)
}
