package domain

// FillRole distinguishes the two ledger entries produced by a single
// resolved trade. It is part of the natural storage key.
type FillRole string

const (
	RoleMaker FillRole = "maker"
	RoleTaker FillRole = "taker"
)

// Fill is one counterparty's side of a resolved trade expressed as signed
// share/cash deltas. Fills are append-only and keyed by
// (txHash, logIndex, role) for idempotent storage; every downstream state is
// rebuilt from them.
type Fill struct {
	Address       string
	MarketID      string
	OutcomeSide   Outcome
	SharesDelta   float64 // signed; positive = acquiring shares
	CashDeltaUSDC float64 // signed; opposite sign to SharesDelta
	Price         float64
	Timestamp     uint64 // block number
	TxHash        string
	LogIndex      uint
	Role          FillRole
}

// PositionState is the replayed holding for one (address, marketId,
// outcomeSide) key. It is a materialized view over the fill ledger, never a
// source of truth.
type PositionState struct {
	Address           string
	MarketID          string
	OutcomeSide       Outcome
	PositionShares    float64
	AvgCost           float64
	RealizedPnL       float64
	TotalBuyCost      float64
	TotalBuyShares    float64
	TotalSellProceeds float64
	TotalSellShares   float64
}

// Closed reports whether the position has been fully exited after having
// been opened at least once.
func (p PositionState) Closed() bool {
	return p.PositionShares == 0 && p.TotalBuyShares > 0
}

// Winning reports whether the position realized a profit.
func (p PositionState) Winning() bool {
	return p.RealizedPnL > 0
}

// TraderStats are per-address metrics reduced from positions and fills.
type TraderStats struct {
	Address            string
	TradesCount        int
	MarketsCount       int
	VolumeUSDC         float64
	RealizedPnL        float64
	TotalBuyCost       float64
	ROI                float64 // percent
	ClosedMarketsCount int
	WinMarketsCount    int
	WinRate            float64 // percent
}

// ScoredTrader is a TraderStats with its composite smart-money score and
// informational tags.
type ScoredTrader struct {
	TraderStats

	Score float64
	Tags  []string
}
