package ledger

import (
	"math/big"
	"testing"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

func usdc(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1_000_000))
}

func TestToFillsBuy(t *testing.T) {
	// Taker buys 100 YES shares for 40 USDC: maker supplies the shares.
	trade := domain.ResolvedTrade{
		DecodedTrade: domain.DecodedTrade{
			TxHash:      "0xabc",
			LogIndex:    3,
			BlockNumber: 1000,
			Maker:       "0xMAKER",
			Taker:       "0xTAKER",
			MakerAmount: usdc(100),
			TakerAmount: usdc(40),
		},
		MarketID:  "m1",
		Outcome:   domain.OutcomeYes,
		Direction: domain.DirectionBuy,
		Price:     0.40,
	}

	fills := ToFills(trade)
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}

	maker, taker := fills[0], fills[1]
	if maker.Role != domain.RoleMaker || taker.Role != domain.RoleTaker {
		t.Fatalf("unexpected roles: %s, %s", maker.Role, taker.Role)
	}
	if maker.Address != "0xmaker" || taker.Address != "0xtaker" {
		t.Errorf("addresses not lowercased: %s, %s", maker.Address, taker.Address)
	}

	if maker.SharesDelta != -100 || maker.CashDeltaUSDC != 40 {
		t.Errorf("maker leg = (%v shares, %v cash), want (-100, 40)", maker.SharesDelta, maker.CashDeltaUSDC)
	}
	if taker.SharesDelta != 100 || taker.CashDeltaUSDC != -40 {
		t.Errorf("taker leg = (%v shares, %v cash), want (100, -40)", taker.SharesDelta, taker.CashDeltaUSDC)
	}

	for _, f := range fills {
		if f.TxHash != "0xabc" || f.LogIndex != 3 || f.Timestamp != 1000 {
			t.Errorf("fill lost trade identity: %+v", f)
		}
		if f.Price != 0.40 {
			t.Errorf("price = %v, want 0.40", f.Price)
		}
	}
}

func TestToFillsSell(t *testing.T) {
	// Taker sells 100 shares for 60 USDC: taker supplies the shares.
	trade := domain.ResolvedTrade{
		DecodedTrade: domain.DecodedTrade{
			TxHash:      "0xdef",
			Maker:       "0xMAKER",
			Taker:       "0xTAKER",
			MakerAmount: usdc(60),
			TakerAmount: usdc(100),
		},
		MarketID:  "m1",
		Outcome:   domain.OutcomeNo,
		Direction: domain.DirectionSell,
		Price:     0.60,
	}

	fills := ToFills(trade)
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}

	maker, taker := fills[0], fills[1]
	if maker.SharesDelta != 100 || maker.CashDeltaUSDC != -60 {
		t.Errorf("maker leg = (%v, %v), want (100, -60)", maker.SharesDelta, maker.CashDeltaUSDC)
	}
	if taker.SharesDelta != -100 || taker.CashDeltaUSDC != 60 {
		t.Errorf("taker leg = (%v, %v), want (-100, 60)", taker.SharesDelta, taker.CashDeltaUSDC)
	}
}

func TestToFillsPriceFallback(t *testing.T) {
	trade := domain.ResolvedTrade{
		DecodedTrade: domain.DecodedTrade{
			Maker:       "0xa",
			Taker:       "0xb",
			MakerAmount: usdc(200),
			TakerAmount: usdc(50),
		},
		MarketID:  "m1",
		Outcome:   domain.OutcomeYes,
		Direction: domain.DirectionBuy,
		Price:     0, // resolver produced no price
	}

	fills := ToFills(trade)
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if fills[0].Price != 0.25 {
		t.Errorf("derived price = %v, want 0.25", fills[0].Price)
	}
}

func TestToFillsUnresolvedTradeDropped(t *testing.T) {
	if fills := ToFills(domain.ResolvedTrade{}); fills != nil {
		t.Fatalf("expected nil for trade without market, got %d fills", len(fills))
	}
}

func TestNormalizeAll(t *testing.T) {
	trades := []domain.ResolvedTrade{
		{
			DecodedTrade: domain.DecodedTrade{Maker: "0xa", Taker: "0xb", MakerAmount: usdc(10), TakerAmount: usdc(5)},
			MarketID:     "m1", Outcome: domain.OutcomeYes, Direction: domain.DirectionBuy,
		},
		{}, // unresolved, contributes nothing
	}

	fills := NormalizeAll(trades)
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
}
