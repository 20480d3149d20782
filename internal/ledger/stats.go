package ledger

import (
	"sort"
	"strings"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// TraderStatsFor reduces one address's positions and fills into its metrics.
//
// Volume counts buy-direction cash only (gross buying power). ROI and win
// rate are 0 rather than undefined when the denominators are empty, keeping
// downstream math total.
func TraderStatsFor(address string, positions []domain.PositionState, fills []domain.Fill) domain.TraderStats {
	stats := domain.TraderStats{
		Address:     strings.ToLower(address),
		TradesCount: len(fills),
	}

	markets := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		markets[p.MarketID+":"+string(p.OutcomeSide)] = struct{}{}
		stats.RealizedPnL += p.RealizedPnL
		stats.TotalBuyCost += p.TotalBuyCost

		if p.Closed() {
			stats.ClosedMarketsCount++
			if p.Winning() {
				stats.WinMarketsCount++
			}
		}
	}
	stats.MarketsCount = len(markets)

	for _, f := range fills {
		if f.SharesDelta > 0 {
			stats.VolumeUSDC += abs(f.CashDeltaUSDC)
		}
	}

	if stats.TotalBuyCost > 0 {
		stats.ROI = stats.RealizedPnL / stats.TotalBuyCost * 100
	}
	if stats.ClosedMarketsCount > 0 {
		stats.WinRate = float64(stats.WinMarketsCount) / float64(stats.ClosedMarketsCount) * 100
	}

	return stats
}

// Aggregate groups positions and fills by address and computes stats for
// every address that has at least one fill. Output order is deterministic
// (ascending address) so repeated runs are directly comparable.
func Aggregate(positions []domain.PositionState, fills []domain.Fill) []domain.TraderStats {
	positionsByAddr := make(map[string][]domain.PositionState)
	for _, p := range positions {
		addr := strings.ToLower(p.Address)
		positionsByAddr[addr] = append(positionsByAddr[addr], p)
	}

	fillsByAddr := make(map[string][]domain.Fill)
	for _, f := range fills {
		addr := strings.ToLower(f.Address)
		fillsByAddr[addr] = append(fillsByAddr[addr], f)
	}

	addresses := make([]string, 0, len(fillsByAddr))
	for addr := range fillsByAddr {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	stats := make([]domain.TraderStats, 0, len(addresses))
	for _, addr := range addresses {
		stats = append(stats, TraderStatsFor(addr, positionsByAddr[addr], fillsByAddr[addr]))
	}
	return stats
}
