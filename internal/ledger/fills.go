// Package ledger converts resolved trades into double-entry fill records and
// rebuilds positions and per-trader statistics from them.
package ledger

import (
	"math/big"
	"strings"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// USDC and CTF outcome tokens both carry 6 decimals on Polygon.
const (
	usdcDecimals  = 1e6
	tokenDecimals = 1e6
)

// ToFills expands one resolved trade into its two counterparty ledger
// entries. On a BUY the maker leg supplies outcome shares and the taker leg
// supplies collateral, so the maker fill is shares-negative/cash-positive
// and the taker fill mirrors it at matching magnitude and price. SELL swaps
// the roles. Both legs share txHash/logIndex/timestamp; role distinguishes
// them for idempotent storage.
func ToFills(trade domain.ResolvedTrade) []domain.Fill {
	if trade.MarketID == "" || trade.Outcome == "" {
		return nil
	}

	makerAmount := scaledFloat(trade.MakerAmount, tokenDecimals)
	takerAmount := scaledFloat(trade.TakerAmount, usdcDecimals)

	var shares, cash float64
	if trade.Direction == domain.DirectionBuy {
		// maker supplies outcome tokens, taker supplies USDC
		shares = makerAmount
		cash = takerAmount
	} else {
		// taker supplies outcome tokens, maker supplies USDC
		shares = scaledFloat(trade.TakerAmount, tokenDecimals)
		cash = scaledFloat(trade.MakerAmount, usdcDecimals)
	}

	price := trade.Price
	if price == 0 && shares > 0 {
		price = cash / shares
	}

	base := domain.Fill{
		MarketID:    trade.MarketID,
		OutcomeSide: trade.Outcome,
		Price:       price,
		Timestamp:   trade.BlockNumber,
		TxHash:      trade.TxHash,
		LogIndex:    trade.LogIndex,
	}

	makerFill := base
	makerFill.Address = strings.ToLower(trade.Maker)
	makerFill.Role = domain.RoleMaker

	takerFill := base
	takerFill.Address = strings.ToLower(trade.Taker)
	takerFill.Role = domain.RoleTaker

	if trade.Direction == domain.DirectionBuy {
		// Maker sells shares for USDC; taker buys them.
		makerFill.SharesDelta = -shares
		makerFill.CashDeltaUSDC = cash
		takerFill.SharesDelta = shares
		takerFill.CashDeltaUSDC = -cash
	} else {
		// Maker buys shares with USDC; taker sells them.
		makerFill.SharesDelta = shares
		makerFill.CashDeltaUSDC = -cash
		takerFill.SharesDelta = -shares
		takerFill.CashDeltaUSDC = cash
	}

	return []domain.Fill{makerFill, takerFill}
}

// NormalizeAll converts a batch of resolved trades into fills.
func NormalizeAll(trades []domain.ResolvedTrade) []domain.Fill {
	fills := make([]domain.Fill, 0, 2*len(trades))
	for _, t := range trades {
		fills = append(fills, ToFills(t)...)
	}
	return fills
}

// scaledFloat converts a base-unit integer amount to its decimal value.
func scaledFloat(amount *big.Int, decimals float64) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	return f / decimals
}
