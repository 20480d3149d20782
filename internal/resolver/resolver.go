// Package resolver maps decoded trades to known markets and outcomes via the
// token map and computes a bounded probability-style price.
package resolver

import (
	"log/slog"
	"math"
	"math/big"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// Resolver classifies decoded trades against a token map. Unresolved trades
// are an expected steady-state condition (the token map lags newly listed
// markets), tracked as a rate metric rather than an error.
type Resolver struct {
	logger *slog.Logger
}

// New creates a Resolver.
func New(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger.With(slog.String("component", "resolver"))}
}

// ResolveOne classifies a single trade. It returns false when neither asset
// id is a known outcome token.
//
// Direction is taker-centric: when the maker leg supplies the outcome token
// the taker is buying it (BUY); when the taker leg supplies it the taker is
// selling (SELL). Price is collateral amount over outcome amount on the
// matching legs, clamped to [0,1].
func (r *Resolver) ResolveOne(trade domain.DecodedTrade, tokenMap domain.TokenMap) (domain.ResolvedTrade, bool) {
	var (
		tokenID        string
		isMakerOutcome bool
	)

	if _, ok := tokenMap[trade.MakerAssetID]; ok {
		tokenID = trade.MakerAssetID
		isMakerOutcome = true
	} else if _, ok := tokenMap[trade.TakerAssetID]; ok {
		tokenID = trade.TakerAssetID
		isMakerOutcome = false
	} else {
		return domain.ResolvedTrade{}, false
	}

	mapping := tokenMap[tokenID]

	direction := domain.DirectionSell
	if isMakerOutcome {
		direction = domain.DirectionBuy
	}

	maker, _ := new(big.Float).SetInt(trade.MakerAmount).Float64()
	taker, _ := new(big.Float).SetInt(trade.TakerAmount).Float64()

	var price float64
	if isMakerOutcome {
		// collateral = takerAmount, outcome = makerAmount
		if maker > 0 {
			price = taker / maker
		}
	} else {
		// collateral = makerAmount, outcome = takerAmount
		if taker > 0 {
			price = maker / taker
		}
	}

	// Rounding noise near 0 or 1 is expected; clamping keeps the entry in
	// the ledger instead of silently dropping it.
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 || price > 1 {
		r.logger.Warn("price anomaly clamped",
			slog.Float64("price", price),
			slog.String("tx_hash", trade.TxHash),
			slog.Uint64("log_index", uint64(trade.LogIndex)),
		)
		price = math.Max(0, math.Min(1, price))
		if math.IsNaN(price) {
			price = 0
		}
	}

	return domain.ResolvedTrade{
		DecodedTrade: trade,
		TokenID:      tokenID,
		MarketID:     mapping.MarketID,
		Outcome:      mapping.Outcome,
		Direction:    direction,
		Price:        price,
	}, true
}

// Resolve classifies a batch of trades. The hit rate (resolved/total) is a
// first-class health metric, expected above ~80% once the token map is
// current.
func (r *Resolver) Resolve(trades []domain.DecodedTrade, tokenMap domain.TokenMap) (resolved []domain.ResolvedTrade, unresolved []domain.DecodedTrade) {
	for _, trade := range trades {
		if rt, ok := r.ResolveOne(trade, tokenMap); ok {
			resolved = append(resolved, rt)
		} else {
			unresolved = append(unresolved, trade)
		}
	}

	hitRate := 0.0
	if len(trades) > 0 {
		hitRate = float64(len(resolved)) / float64(len(trades)) * 100
	}
	r.logger.Info("resolved trade batch",
		slog.Int("resolved", len(resolved)),
		slog.Int("unresolved", len(unresolved)),
		slog.Float64("hit_rate_pct", hitRate),
	)
	return resolved, unresolved
}
