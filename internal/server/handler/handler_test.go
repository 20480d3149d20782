package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

const testAddr = "0x1111111111111111111111111111111111111111"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
}

// ── fakes ──

type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeStatsStore struct {
	traders  []domain.ScoredTrader
	byAddr   map[string]domain.ScoredTrader
	lastSort domain.LeaderboardSort
	lastLim  int
}

func (f *fakeStatsStore) UpsertBatch(ctx context.Context, traders []domain.ScoredTrader) (int, error) {
	return len(traders), nil
}

func (f *fakeStatsStore) GetByAddress(ctx context.Context, address string) (domain.ScoredTrader, error) {
	t, ok := f.byAddr[address]
	if !ok {
		return domain.ScoredTrader{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeStatsStore) Leaderboard(ctx context.Context, sortBy domain.LeaderboardSort, limit int) ([]domain.ScoredTrader, error) {
	f.lastSort, f.lastLim = sortBy, limit
	if limit < len(f.traders) {
		return f.traders[:limit], nil
	}
	return f.traders, nil
}

func (f *fakeStatsStore) ScoredAddresses(ctx context.Context) (map[string]struct{}, error) {
	return nil, nil
}

type fakePositionStore struct {
	positions []domain.PositionState
}

func (f *fakePositionStore) ReplaceAll(ctx context.Context, positions []domain.PositionState) error {
	return nil
}

func (f *fakePositionStore) ListByAddress(ctx context.Context, address string) ([]domain.PositionState, error) {
	return f.positions, nil
}

func (f *fakePositionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.PositionState, error) {
	return nil, nil
}

type fakeDepositStore struct {
	summary domain.DepositSummary
}

func (f *fakeDepositStore) InsertBatch(ctx context.Context, deposits []domain.Deposit) (int, error) {
	return len(deposits), nil
}

func (f *fakeDepositStore) Summary(ctx context.Context, address string) (domain.DepositSummary, error) {
	return f.summary, nil
}

func (f *fakeDepositStore) Summaries(ctx context.Context, addresses []string) (map[string]domain.DepositSummary, error) {
	return nil, nil
}

func (f *fakeDepositStore) LatestBlock(ctx context.Context) (uint64, error) { return 0, nil }

func (f *fakeDepositStore) DeleteBefore(ctx context.Context, block uint64) (int64, error) {
	return 0, nil
}

type fakeOriginStore struct {
	meta domain.OriginMetadata
	err  error
}

func (f *fakeOriginStore) UpsertBatch(ctx context.Context, metas []domain.OriginMetadata) (int, error) {
	return len(metas), nil
}

func (f *fakeOriginStore) GetByAddress(ctx context.Context, address string) (domain.OriginMetadata, error) {
	return f.meta, f.err
}

type fakeSignalStore struct {
	signals   []domain.Signal
	lastSince uint64
	byAddress string
	err       error
}

func (f *fakeSignalStore) InsertBatch(ctx context.Context, signals []domain.Signal) (int, error) {
	return len(signals), nil
}

func (f *fakeSignalStore) ListSinceBlock(ctx context.Context, cutoff uint64) ([]domain.Signal, error) {
	f.lastSince = cutoff
	return f.signals, f.err
}

func (f *fakeSignalStore) ListByAddress(ctx context.Context, address string) ([]domain.Signal, error) {
	f.byAddress = address
	return f.signals, f.err
}

// ── health ──

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name  string
		cache Pinger
		want  string
	}{
		{"cache ok", &fakePinger{}, "ok"},
		{"cache unreachable", &fakePinger{err: errors.New("down")}, "unreachable"},
		{"cache disabled", nil, "disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.cache, testLogger())
			rec := httptest.NewRecorder()
			h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var body map[string]string
			decodeBody(t, rec, &body)
			if body["cache"] != tt.want {
				t.Errorf("cache = %s, want %s", body["cache"], tt.want)
			}
		})
	}
}

// ── leaderboard / trader ──

func newTraderHandler(stats *fakeStatsStore, origins *fakeOriginStore) *TraderHandler {
	return NewTraderHandler(
		stats,
		&fakePositionStore{positions: []domain.PositionState{{Address: testAddr, MarketID: "m1"}}},
		&fakeDepositStore{summary: domain.DepositSummary{Address: testAddr, HasDeposit: true, NetDepositUSDC: 750}},
		origins,
		testLogger(),
	)
}

func TestLeaderboardDefaults(t *testing.T) {
	stats := &fakeStatsStore{traders: []domain.ScoredTrader{
		{TraderStats: domain.TraderStats{Address: "0xa"}, Score: 0.9},
	}}
	h := newTraderHandler(stats, &fakeOriginStore{err: domain.ErrNotFound})

	rec := httptest.NewRecorder()
	h.Leaderboard(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if stats.lastSort != domain.SortByScore || stats.lastLim != 50 {
		t.Errorf("defaults = %s/%d, want score/50", stats.lastSort, stats.lastLim)
	}
}

func TestLeaderboardCapsLimit(t *testing.T) {
	stats := &fakeStatsStore{}
	h := newTraderHandler(stats, &fakeOriginStore{err: domain.ErrNotFound})

	rec := httptest.NewRecorder()
	h.Leaderboard(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=99999&sort=roi", nil))

	if stats.lastLim != 500 {
		t.Errorf("limit = %d, want cap 500", stats.lastLim)
	}
	if stats.lastSort != domain.SortByROI {
		t.Errorf("sort = %s, want roi", stats.lastSort)
	}
}

func TestGetTrader(t *testing.T) {
	stats := &fakeStatsStore{byAddr: map[string]domain.ScoredTrader{
		testAddr: {TraderStats: domain.TraderStats{Address: testAddr}, Score: 0.8},
	}}
	origins := &fakeOriginStore{meta: domain.OriginMetadata{Address: testAddr, IsRelayer: true}}
	h := newTraderHandler(stats, origins)

	req := httptest.NewRequest(http.MethodGet, "/api/traders/"+testAddr, nil)
	req.SetPathValue("address", testAddr)
	rec := httptest.NewRecorder()
	h.GetTrader(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Trader struct {
			Score float64 `json:"Score"`
		} `json:"trader"`
		Positions []domain.PositionState `json:"positions"`
		Deposits  domain.DepositSummary  `json:"deposits"`
		Origin    *domain.OriginMetadata `json:"origin"`
	}
	decodeBody(t, rec, &body)

	if len(body.Positions) != 1 {
		t.Errorf("positions = %d, want 1", len(body.Positions))
	}
	if !body.Deposits.HasDeposit || body.Deposits.NetDepositUSDC != 750 {
		t.Errorf("deposits = %+v", body.Deposits)
	}
	if body.Origin == nil || !body.Origin.IsRelayer {
		t.Errorf("origin = %+v, want relayer metadata", body.Origin)
	}
}

func TestGetTraderOriginOptional(t *testing.T) {
	stats := &fakeStatsStore{byAddr: map[string]domain.ScoredTrader{
		testAddr: {TraderStats: domain.TraderStats{Address: testAddr}},
	}}
	h := newTraderHandler(stats, &fakeOriginStore{err: domain.ErrNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/traders/"+testAddr, nil)
	req.SetPathValue("address", testAddr)
	rec := httptest.NewRecorder()
	h.GetTrader(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]json.RawMessage
	decodeBody(t, rec, &body)
	if _, present := body["origin"]; present {
		t.Error("origin should be omitted when unclassified")
	}
}

func TestGetTraderValidation(t *testing.T) {
	h := newTraderHandler(&fakeStatsStore{}, &fakeOriginStore{err: domain.ErrNotFound})

	tests := []struct {
		name    string
		address string
		want    int
	}{
		{"malformed address", "not-an-address", http.StatusBadRequest},
		{"unknown trader", testAddr, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/traders/"+tt.address, nil)
			req.SetPathValue("address", tt.address)
			rec := httptest.NewRecorder()
			h.GetTrader(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

// ── signals ──

func TestListSignalsSinceBlock(t *testing.T) {
	store := &fakeSignalStore{signals: []domain.Signal{{ID: "s1", NetUSDC: 500}}}
	h := NewSignalHandler(store, testLogger())

	rec := httptest.NewRecorder()
	h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/signals?since_block=75000000", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.lastSince != 75_000_000 {
		t.Errorf("since = %d, want 75000000", store.lastSince)
	}

	var body signalsResponse
	decodeBody(t, rec, &body)
	if len(body.Signals) != 1 || body.SinceBlock != 75_000_000 {
		t.Errorf("body = %+v", body)
	}
}

func TestListSignalsByAddress(t *testing.T) {
	store := &fakeSignalStore{}
	h := NewSignalHandler(store, testLogger())

	rec := httptest.NewRecorder()
	h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/signals?address="+testAddr, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.byAddress != testAddr {
		t.Errorf("queried address = %s", store.byAddress)
	}
}

func TestListSignalsBadInput(t *testing.T) {
	h := NewSignalHandler(&fakeSignalStore{}, testLogger())

	for _, query := range []string{"?since_block=abc", "?address=nope"} {
		rec := httptest.NewRecorder()
		h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/signals"+query, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("query %s: status = %d, want 400", query, rec.Code)
		}
	}
}
