package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/polytracker/internal/domain"
	"github.com/alanyoungcy/polytracker/internal/origin"
	"github.com/alanyoungcy/polytracker/internal/scoring"
	"github.com/alanyoungcy/polytracker/internal/signals"
)

type memFillStore struct {
	fills []domain.Fill
}

func (s *memFillStore) InsertBatch(ctx context.Context, fills []domain.Fill) (int, error) {
	return len(fills), nil
}

func (s *memFillStore) ListAll(ctx context.Context) ([]domain.Fill, error) { return s.fills, nil }

func (s *memFillStore) ListByAddress(ctx context.Context, address string) ([]domain.Fill, error) {
	return nil, nil
}

func (s *memFillStore) LatestBlock(ctx context.Context) (uint64, error) {
	var latest uint64
	for _, f := range s.fills {
		if f.Timestamp > latest {
			latest = f.Timestamp
		}
	}
	return latest, nil
}

func (s *memFillStore) EarliestBlock(ctx context.Context) (uint64, error) { return 0, nil }

func (s *memFillStore) ListBefore(ctx context.Context, block uint64) ([]domain.Fill, error) {
	return nil, nil
}

func (s *memFillStore) DeleteBefore(ctx context.Context, block uint64) (int64, error) {
	return 0, nil
}

type memPositionStore struct{}

func (s *memPositionStore) ReplaceAll(ctx context.Context, positions []domain.PositionState) error {
	return nil
}

func (s *memPositionStore) ListByAddress(ctx context.Context, address string) ([]domain.PositionState, error) {
	return nil, nil
}

func (s *memPositionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.PositionState, error) {
	return nil, nil
}

type memStatsStore struct{}

func (s *memStatsStore) UpsertBatch(ctx context.Context, traders []domain.ScoredTrader) (int, error) {
	return len(traders), nil
}

func (s *memStatsStore) GetByAddress(ctx context.Context, address string) (domain.ScoredTrader, error) {
	return domain.ScoredTrader{}, domain.ErrNotFound
}

func (s *memStatsStore) Leaderboard(ctx context.Context, sortBy domain.LeaderboardSort, limit int) ([]domain.ScoredTrader, error) {
	return nil, nil
}

func (s *memStatsStore) ScoredAddresses(ctx context.Context) (map[string]struct{}, error) {
	return nil, nil
}

// memSignalStore keeps the natural-key semantics of the real store: a row
// whose id already exists inserts zero new rows.
type memSignalStore struct {
	byID map[string]domain.Signal
}

func newMemSignalStore() *memSignalStore {
	return &memSignalStore{byID: make(map[string]domain.Signal)}
}

func (s *memSignalStore) InsertBatch(ctx context.Context, sigs []domain.Signal) (int, error) {
	inserted := 0
	for _, sig := range sigs {
		if _, ok := s.byID[sig.ID]; ok {
			continue
		}
		s.byID[sig.ID] = sig
		inserted++
	}
	return inserted, nil
}

func (s *memSignalStore) ListSinceBlock(ctx context.Context, cutoff uint64) ([]domain.Signal, error) {
	return nil, nil
}

func (s *memSignalStore) ListByAddress(ctx context.Context, address string) ([]domain.Signal, error) {
	return nil, nil
}

type memOriginStore struct{}

func (s *memOriginStore) UpsertBatch(ctx context.Context, metas []domain.OriginMetadata) (int, error) {
	return len(metas), nil
}

func (s *memOriginStore) GetByAddress(ctx context.Context, address string) (domain.OriginMetadata, error) {
	return domain.OriginMetadata{}, domain.ErrNotFound
}

type recordingBus struct {
	published [][]byte
}

func (b *recordingBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.published = append(b.published, payload)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

type stubChain struct{}

func (stubChain) LatestBlock(ctx context.Context) (uint64, error) { return 0, nil }

func (stubChain) FilterLogs(ctx context.Context, filter domain.LogFilter) ([]domain.RawLog, error) {
	return nil, nil
}

func (stubChain) CodeAt(ctx context.Context, address string) ([]byte, error) { return nil, nil }

func testProcessor(fills *memFillStore, signalStore *memSignalStore, bus *recordingBus) *Processor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	classifier := origin.New(stubChain{}, origin.Defaults(), logger)
	generator := signals.New(signals.Defaults(), logger)

	return NewProcessor(
		fills,
		&memPositionStore{},
		&memStatsStore{},
		signalStore,
		&memOriginStore{},
		classifier,
		generator,
		bus,
		scoring.Thresholds{MinTradesCount: 1, MinMarketsCount: 1, MinVolumeUSDC: 1},
		scoring.DefaultWeights,
		logger,
	)
}

func TestRunOnceIsIdempotent(t *testing.T) {
	// One trader with a 300 USDC net buy: scores, and clears the 200 USDC
	// signal threshold.
	fills := &memFillStore{fills: []domain.Fill{{
		Address:       "0xaaa",
		MarketID:      "m1",
		OutcomeSide:   domain.OutcomeYes,
		SharesDelta:   1000,
		CashDeltaUSDC: -300,
		Price:         0.3,
		Timestamp:     100,
		TxHash:        "0x1",
		LogIndex:      0,
		Role:          domain.RoleTaker,
	}}}
	signalStore := newMemSignalStore()
	bus := &recordingBus{}
	p := testProcessor(fills, signalStore, bus)

	first, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Scored != 1 {
		t.Errorf("scored = %d, want 1", first.Scored)
	}
	if first.SignalsNew != 1 {
		t.Fatalf("first run signals = %d, want 1", first.SignalsNew)
	}
	if len(bus.published) != 1 {
		t.Fatalf("published = %d, want 1", len(bus.published))
	}

	// Same ledger again: every derived row already exists, so nothing is
	// reported new and nothing is re-announced.
	second, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.SignalsNew != 0 {
		t.Errorf("second run signals = %d, want 0", second.SignalsNew)
	}
	if len(bus.published) != 1 {
		t.Errorf("published after rerun = %d, want still 1", len(bus.published))
	}
	if len(signalStore.byID) != 1 {
		t.Errorf("stored signals = %d, want 1", len(signalStore.byID))
	}
}

func TestRunOnceSkipsRelayers(t *testing.T) {
	// A same-block burst well past the relayer gates: the trader is
	// classified out before scoring, so no signal fires either.
	burst := make([]domain.Fill, 0, 600)
	for i := 0; i < 600; i++ {
		burst = append(burst, domain.Fill{
			Address:       "0xbot",
			MarketID:      "m1",
			OutcomeSide:   domain.OutcomeYes,
			SharesDelta:   10,
			CashDeltaUSDC: -5,
			Price:         0.5,
			Timestamp:     100,
			TxHash:        "0x1",
			LogIndex:      uint(i),
			Role:          domain.RoleTaker,
		})
	}
	fills := &memFillStore{fills: burst}
	signalStore := newMemSignalStore()
	bus := &recordingBus{}
	p := testProcessor(fills, signalStore, bus)

	stats, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.RelayersSkipped != 1 {
		t.Errorf("relayers skipped = %d, want 1", stats.RelayersSkipped)
	}
	if stats.Scored != 0 {
		t.Errorf("scored = %d, want 0", stats.Scored)
	}
	if stats.SignalsNew != 0 || len(bus.published) != 0 {
		t.Errorf("relayer produced signals: new=%d published=%d", stats.SignalsNew, len(bus.published))
	}
}
