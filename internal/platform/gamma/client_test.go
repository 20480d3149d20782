package gamma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

func apiMarket(id string, yesToken, noToken string) APIMarket {
	tokens, _ := json.Marshal([]string{yesToken, noToken})
	return APIMarket{
		ID:           id,
		Question:     "Will it happen?",
		Slug:         "will-it-happen",
		ConditionID:  "0xcond" + id,
		ClobTokenIDs: string(tokens),
		Outcomes:     `["Yes","No"]`,
		Volume:       "12345.67",
		Active:       true,
	}
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestToDomainMarket(t *testing.T) {
	m := apiMarket("42", "111", "222")
	got := m.ToDomainMarket(fixedNow)

	if got.ID != "42" || got.YesTokenID != "111" || got.NoTokenID != "222" {
		t.Errorf("market = %+v", got)
	}
	if got.Volume != 12345.67 {
		t.Errorf("volume = %v, want 12345.67", got.Volume)
	}
	if !got.Active {
		t.Error("active market mapped inactive")
	}
}

func TestToDomainMarketBadTokenPayload(t *testing.T) {
	m := apiMarket("42", "111", "222")
	m.ClobTokenIDs = "not json"

	got := m.ToDomainMarket(fixedNow)
	if got.YesTokenID != "" || got.NoTokenID != "" {
		t.Errorf("unparseable token ids should stay empty, got %+v", got)
	}
}

func TestToDomainMarketClosedIsInactive(t *testing.T) {
	m := apiMarket("42", "111", "222")
	m.Closed = true
	if m.ToDomainMarket(fixedNow).Active {
		t.Error("closed market mapped active")
	}
}

func TestBuildTokenMap(t *testing.T) {
	markets := []domain.Market{
		{ID: "m1", YesTokenID: "111", NoTokenID: "222"},
		{ID: "m2"}, // missing token ids, skipped
	}

	tm := BuildTokenMap(markets)
	if len(tm) != 2 {
		t.Fatalf("token map size = %d, want 2", len(tm))
	}
	if tm["111"] != (domain.TokenMapping{MarketID: "m1", Outcome: domain.OutcomeYes}) {
		t.Errorf("yes mapping = %+v", tm["111"])
	}
	if tm["222"] != (domain.TokenMapping{MarketID: "m1", Outcome: domain.OutcomeNo}) {
		t.Errorf("no mapping = %+v", tm["222"])
	}
}

func TestFetchAllPages(t *testing.T) {
	// Page 0 full (2 markets), page 1 short (1 market): paging stops there.
	pages := [][]APIMarket{
		{apiMarket("1", "11", "12"), apiMarket("2", "21", "22")},
		{apiMarket("3", "31", "32")},
	}

	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		page := offset / 2
		if page >= len(pages) {
			_ = json.NewEncoder(w).Encode([]APIMarket{})
			return
		}
		_ = json.NewEncoder(w).Encode(pages[page])
	}))
	defer srv.Close()

	c := New(srv.URL, 2, 10)
	markets, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(markets) != 3 {
		t.Fatalf("markets = %d, want 3", len(markets))
	}
	if len(requests) != 2 {
		t.Errorf("requests = %d, want 2 (short page ends paging)", len(requests))
	}
}

func TestSnapshotFresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]APIMarket{apiMarket("1", "11", "12")})
	}))
	defer srv.Close()

	snap, err := New(srv.URL, 10, 10).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Freshness != domain.FreshnessFresh {
		t.Errorf("freshness = %s, want fresh", snap.Freshness)
	}
	if len(snap.TokenMap) != 2 {
		t.Errorf("token map size = %d, want 2", len(snap.TokenMap))
	}
	if snap.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestSnapshotEmptyTokenMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := apiMarket("1", "", "")
		m.ClobTokenIDs = "[]"
		_ = json.NewEncoder(w).Encode([]APIMarket{m})
	}))
	defer srv.Close()

	_, err := New(srv.URL, 10, 10).Snapshot(context.Background())
	if !errors.Is(err, domain.ErrEmptyTokenMap) {
		t.Fatalf("error = %v, want ErrEmptyTokenMap", err)
	}
}

func TestDoGetErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"not found", http.StatusNotFound, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := New(srv.URL, 10, 10).ListMarkets(context.Background(), 10, 0)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
