package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// PositionKey identifies one replayed position.
func PositionKey(address, marketID string, side domain.Outcome) string {
	return fmt.Sprintf("%s:%s:%s", strings.ToLower(address), marketID, side)
}

// emptyPosition returns the zero state for a key.
func emptyPosition(address, marketID string, side domain.Outcome) domain.PositionState {
	return domain.PositionState{
		Address:     strings.ToLower(address),
		MarketID:    marketID,
		OutcomeSide: side,
	}
}

// ApplyFill folds a single fill into a position and returns the new state.
// The input is never mutated.
//
// Buys update the weighted-average cost; sells cap sold shares at the held
// amount (a position can never go negative), realize PnL against the average
// cost, and reset the average cost once the position fully closes.
func ApplyFill(pos domain.PositionState, fill domain.Fill) domain.PositionState {
	next := pos
	shares := abs(fill.SharesDelta)
	cash := abs(fill.CashDeltaUSDC)

	switch {
	case fill.SharesDelta > 0:
		totalCost := next.AvgCost*next.PositionShares + cash
		totalShares := next.PositionShares + shares

		if totalShares > 0 {
			next.AvgCost = totalCost / totalShares
		} else {
			next.AvgCost = 0
		}
		next.PositionShares = totalShares
		next.TotalBuyCost += cash
		next.TotalBuyShares += shares

	case fill.SharesDelta < 0:
		soldShares := shares
		if soldShares > next.PositionShares {
			soldShares = next.PositionShares
		}
		costBasis := next.AvgCost * soldShares

		next.RealizedPnL += cash - costBasis
		next.PositionShares -= shares
		if next.PositionShares < 0 {
			next.PositionShares = 0
		}
		next.TotalSellProceeds += cash
		next.TotalSellShares += shares

		if next.PositionShares == 0 {
			next.AvgCost = 0
		}
	}

	return next
}

// Replay rebuilds every position from a fill set. Replay order determines
// cost-basis correctness, so the engine itself sorts by (timestamp,
// logIndex) and is a pure reduction: the same fill set always produces the
// same positions.
func Replay(fills []domain.Fill) []domain.PositionState {
	sorted := make([]domain.Fill, len(fills))
	copy(sorted, fills)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp != sorted[j].Timestamp {
			return sorted[i].Timestamp < sorted[j].Timestamp
		}
		return sorted[i].LogIndex < sorted[j].LogIndex
	})

	positions := make(map[string]domain.PositionState)
	order := make([]string, 0)

	for _, fill := range sorted {
		key := PositionKey(fill.Address, fill.MarketID, fill.OutcomeSide)
		pos, ok := positions[key]
		if !ok {
			pos = emptyPosition(fill.Address, fill.MarketID, fill.OutcomeSide)
			order = append(order, key)
		}
		positions[key] = ApplyFill(pos, fill)
	}

	out := make([]domain.PositionState, 0, len(positions))
	for _, key := range order {
		out = append(out, positions[key])
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
