package origin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

type fakeChain struct {
	code    map[string][]byte
	codeErr error
}

func (f *fakeChain) LatestBlock(ctx context.Context) (uint64, error) { return 0, nil }

func (f *fakeChain) FilterLogs(ctx context.Context, filter domain.LogFilter) ([]domain.RawLog, error) {
	return nil, nil
}

func (f *fakeChain) CodeAt(ctx context.Context, address string) ([]byte, error) {
	if f.codeErr != nil {
		return nil, f.codeErr
	}
	return f.code[address], nil
}

func testClassifier(reader domain.ChainReader, cfg Config) *Classifier {
	return New(reader, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fillsAtBlocks(addr string, blocks ...uint64) []domain.Fill {
	fills := make([]domain.Fill, 0, len(blocks))
	for _, b := range blocks {
		fills = append(fills, domain.Fill{Address: addr, MarketID: "m1", OutcomeSide: domain.OutcomeYes, Timestamp: b})
	}
	return fills
}

func TestClassifyTradeCountRelayer(t *testing.T) {
	cfg := Defaults()
	cfg.MaxTrades24h = 5

	// 6 distinct blocks inside the window, widely spaced so the gap rule
	// stays quiet.
	blocks := make([]uint64, 0, 6)
	for i := uint64(0); i < 6; i++ {
		blocks = append(blocks, 100_000+i*1_000)
	}

	c := testClassifier(&fakeChain{}, cfg)
	meta := c.Classify(context.Background(), "0xBOT", fillsAtBlocks("0xBOT", blocks...), 106_000)

	if meta.Address != "0xbot" {
		t.Errorf("address = %s, want lowercased", meta.Address)
	}
	if meta.TradesCount24h != 6 {
		t.Errorf("trades24h = %d, want 6", meta.TradesCount24h)
	}
	if !meta.IsRelayer {
		t.Error("expected relayer flag from trade count")
	}
}

func TestClassifyMedianGapRelayer(t *testing.T) {
	cfg := Defaults() // 2s blocks, gap threshold 30s

	// Consecutive blocks: 2s median gap, far under 30s.
	c := testClassifier(&fakeChain{}, cfg)
	meta := c.Classify(context.Background(), "0xbot", fillsAtBlocks("0xbot", 100, 101, 102, 103), 200)

	if meta.MedianTimeGapSec == nil {
		t.Fatal("expected a median gap")
	}
	if *meta.MedianTimeGapSec != 2 {
		t.Errorf("median gap = %v, want 2", *meta.MedianTimeGapSec)
	}
	if !meta.IsRelayer {
		t.Error("expected relayer flag from cadence")
	}
}

func TestClassifyHumanCadence(t *testing.T) {
	// A handful of trades hours apart: no relayer flag, no contract.
	c := testClassifier(&fakeChain{}, Defaults())
	meta := c.Classify(context.Background(), "0xhuman", fillsAtBlocks("0xhuman", 10_000, 20_000, 30_000), 40_000)

	if meta.IsRelayer {
		t.Errorf("human cadence flagged as relayer: %+v", meta)
	}
	if meta.IsContract {
		t.Error("no bytecode, should not be a contract")
	}
}

func TestClassifyContractDetection(t *testing.T) {
	chain := &fakeChain{code: map[string][]byte{"0xproxy": {0x60, 0x80}}}
	c := testClassifier(chain, Defaults())

	meta := c.Classify(context.Background(), "0xproxy", nil, 100)
	if !meta.IsContract {
		t.Error("bytecode present, expected IsContract")
	}
}

func TestClassifyCodeLookupFailureDowngradesToEOA(t *testing.T) {
	chain := &fakeChain{codeErr: errors.New("rpc unavailable")}
	c := testClassifier(chain, Defaults())

	meta := c.Classify(context.Background(), "0xa", fillsAtBlocks("0xa", 100), 200)
	if meta.IsContract {
		t.Error("lookup failure must downgrade to EOA, not fail or guess contract")
	}
}

func TestClassifySingleFillHasNoGap(t *testing.T) {
	c := testClassifier(&fakeChain{}, Defaults())
	meta := c.Classify(context.Background(), "0xa", fillsAtBlocks("0xa", 100), 200)

	if meta.MedianTimeGapSec != nil {
		t.Errorf("one fill cannot have a gap, got %v", *meta.MedianTimeGapSec)
	}
	if meta.TradesCount24h != 1 {
		t.Errorf("trades24h = %d, want 1", meta.TradesCount24h)
	}
}

func TestClassifyTradeCountAloneSuffices(t *testing.T) {
	// 600 fills spaced 20 blocks (40s at 2s blocks) keep the gap rule quiet;
	// the count rule alone must flag the relayer.
	blocks := make([]uint64, 0, 600)
	for i := uint64(0); i < 600; i++ {
		blocks = append(blocks, 88_000+i*20)
	}

	c := testClassifier(&fakeChain{}, Defaults())
	meta := c.Classify(context.Background(), "0xbot", fillsAtBlocks("0xbot", blocks...), 100_000)

	if meta.TradesCount24h != 600 {
		t.Errorf("trades24h = %d, want 600", meta.TradesCount24h)
	}
	if meta.MedianTimeGapSec == nil || *meta.MedianTimeGapSec != 40 {
		t.Errorf("median gap = %v, want 40", meta.MedianTimeGapSec)
	}
	if !meta.IsRelayer {
		t.Error("600 trades in the window must flag a relayer on count alone")
	}
}

func TestClassifySameBlockBurst(t *testing.T) {
	// Every fill lands in one block: each fill counts, and the zero-second
	// gaps between them trip the cadence rule too.
	blocks := make([]uint64, 600)
	for i := range blocks {
		blocks[i] = 100_000
	}

	c := testClassifier(&fakeChain{}, Defaults())
	meta := c.Classify(context.Background(), "0xbot", fillsAtBlocks("0xbot", blocks...), 100_100)

	if meta.TradesCount24h != 600 {
		t.Errorf("trades24h = %d, want 600", meta.TradesCount24h)
	}
	if meta.MedianTimeGapSec == nil || *meta.MedianTimeGapSec != 0 {
		t.Errorf("median gap = %v, want 0", meta.MedianTimeGapSec)
	}
	if !meta.IsRelayer {
		t.Error("same-block burst must be flagged as relayer")
	}
}

func TestClassifyAllSortedByAddress(t *testing.T) {
	c := testClassifier(&fakeChain{}, Defaults())
	fills := append(fillsAtBlocks("0xBBB", 100), fillsAtBlocks("0xaaa", 100)...)

	metas, err := c.ClassifyAll(context.Background(), fills, 200)
	if err != nil {
		t.Fatalf("ClassifyAll: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 metas, got %d", len(metas))
	}
	if metas[0].Address != "0xaaa" || metas[1].Address != "0xbbb" {
		t.Errorf("order = [%s, %s], want ascending", metas[0].Address, metas[1].Address)
	}
}
