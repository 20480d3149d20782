package ledger

import (
	"testing"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

func TestTraderStatsFor(t *testing.T) {
	positions := []domain.PositionState{
		{
			Address: "0xA", MarketID: "m1", OutcomeSide: domain.OutcomeYes,
			RealizedPnL: 20, TotalBuyCost: 40, TotalBuyShares: 100, // closed winner
		},
		{
			Address: "0xA", MarketID: "m2", OutcomeSide: domain.OutcomeNo,
			RealizedPnL: -10, TotalBuyCost: 60, TotalBuyShares: 100, // closed loser
		},
		{
			Address: "0xA", MarketID: "m3", OutcomeSide: domain.OutcomeYes,
			PositionShares: 50, TotalBuyCost: 25, TotalBuyShares: 50, // still open
		},
	}
	fills := []domain.Fill{
		{Address: "0xA", SharesDelta: 100, CashDeltaUSDC: -40},
		{Address: "0xA", SharesDelta: 100, CashDeltaUSDC: -60},
		{Address: "0xA", SharesDelta: 50, CashDeltaUSDC: -25},
		{Address: "0xA", SharesDelta: -100, CashDeltaUSDC: 60}, // sells don't count as volume
	}

	stats := TraderStatsFor("0xA", positions, fills)

	if stats.Address != "0xa" {
		t.Errorf("address = %s, want lowercased 0xa", stats.Address)
	}
	if stats.TradesCount != 4 {
		t.Errorf("trades = %d, want 4", stats.TradesCount)
	}
	if stats.MarketsCount != 3 {
		t.Errorf("markets = %d, want 3", stats.MarketsCount)
	}
	if stats.VolumeUSDC != 125 {
		t.Errorf("volume = %v, want 125 (buys only)", stats.VolumeUSDC)
	}
	if stats.RealizedPnL != 10 {
		t.Errorf("pnl = %v, want 10", stats.RealizedPnL)
	}
	if stats.ClosedMarketsCount != 2 || stats.WinMarketsCount != 1 {
		t.Errorf("closed/win = %d/%d, want 2/1", stats.ClosedMarketsCount, stats.WinMarketsCount)
	}
	if stats.WinRate != 50 {
		t.Errorf("win rate = %v, want 50", stats.WinRate)
	}
	// 10 / 125 * 100
	if stats.ROI != 8 {
		t.Errorf("roi = %v, want 8", stats.ROI)
	}
}

func TestTraderStatsForEmpty(t *testing.T) {
	stats := TraderStatsFor("0xa", nil, nil)
	if stats.ROI != 0 || stats.WinRate != 0 || stats.VolumeUSDC != 0 {
		t.Errorf("empty trader should produce zero metrics: %+v", stats)
	}
}

func TestAggregate(t *testing.T) {
	positions := []domain.PositionState{
		{Address: "0xB", MarketID: "m1", OutcomeSide: domain.OutcomeYes},
		{Address: "0xa", MarketID: "m1", OutcomeSide: domain.OutcomeYes},
	}
	fills := []domain.Fill{
		{Address: "0xB", SharesDelta: 10, CashDeltaUSDC: -5},
		{Address: "0xa", SharesDelta: 20, CashDeltaUSDC: -10},
		{Address: "0xa", SharesDelta: -20, CashDeltaUSDC: 12},
	}

	stats := Aggregate(positions, fills)
	if len(stats) != 2 {
		t.Fatalf("expected 2 traders, got %d", len(stats))
	}
	// Deterministic ascending address order.
	if stats[0].Address != "0xa" || stats[1].Address != "0xb" {
		t.Errorf("order = [%s, %s], want [0xa, 0xb]", stats[0].Address, stats[1].Address)
	}
	if stats[0].TradesCount != 2 || stats[1].TradesCount != 1 {
		t.Errorf("trade counts = %d/%d, want 2/1", stats[0].TradesCount, stats[1].TradesCount)
	}
}
