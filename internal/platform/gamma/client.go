// Package gamma is the REST client for the Polymarket Gamma API, used to
// discover markets and build the outcome-token map.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// Client is an unauthenticated Gamma API client.
type Client struct {
	baseURL    string
	pageSize   int
	maxPages   int
	httpClient *http.Client
	now        func() time.Time
}

// New creates a Gamma client.
//
// baseURL is the API root, e.g. "https://gamma-api.polymarket.com".
func New(baseURL string, pageSize, maxPages int) *Client {
	if pageSize <= 0 {
		pageSize = 500
	}
	if maxPages <= 0 {
		maxPages = 20
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		maxPages: maxPages,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// APIMarket is the Gamma wire representation of a market. ClobTokenIDs and
// Outcomes arrive as JSON-encoded string arrays inside strings.
type APIMarket struct {
	ID           string `json:"id"`
	Question     string `json:"question"`
	Slug         string `json:"slug"`
	ConditionID  string `json:"conditionId"`
	ClobTokenIDs string `json:"clobTokenIds"`
	Outcomes     string `json:"outcomes"`
	Volume       string `json:"volume"`
	Active       bool   `json:"active"`
	Closed       bool   `json:"closed"`
}

// ToDomainMarket converts the wire market to the domain type. Markets whose
// token-id payload cannot be parsed as a two-element array map to a Market
// with empty token ids; BuildTokenMap skips those.
func (m *APIMarket) ToDomainMarket(now time.Time) domain.Market {
	out := domain.Market{
		ID:          m.ID,
		Question:    m.Question,
		Slug:        m.Slug,
		ConditionID: m.ConditionID,
		Active:      m.Active && !m.Closed,
		UpdatedAt:   now,
	}
	out.Volume, _ = strconv.ParseFloat(m.Volume, 64)

	var tokenIDs []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &tokenIDs); err == nil && len(tokenIDs) == 2 {
		out.YesTokenID = tokenIDs[0]
		out.NoTokenID = tokenIDs[1]
	}
	return out
}

// ListMarkets returns one page of active markets.
func (c *Client) ListMarkets(ctx context.Context, limit, offset int) ([]domain.Market, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("active", "true")
	params.Set("closed", "false")

	body, err := c.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("gamma: list markets offset=%d: %w", offset, err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("gamma: decode markets: %w", err)
	}

	now := c.now()
	markets := make([]domain.Market, 0, len(apiMarkets))
	for i := range apiMarkets {
		markets = append(markets, apiMarkets[i].ToDomainMarket(now))
	}
	return markets, nil
}

// FetchAll pages through active markets until a short page or the page cap.
func (c *Client) FetchAll(ctx context.Context) ([]domain.Market, error) {
	var all []domain.Market
	for page := 0; page < c.maxPages; page++ {
		markets, err := c.ListMarkets(ctx, c.pageSize, page*c.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, markets...)
		if len(markets) < c.pageSize {
			break
		}
	}
	return all, nil
}

// Snapshot fetches all active markets and builds a fresh token-map snapshot.
func (c *Client) Snapshot(ctx context.Context) (domain.TokenMapSnapshot, error) {
	markets, err := c.FetchAll(ctx)
	if err != nil {
		return domain.TokenMapSnapshot{}, err
	}

	tokenMap := BuildTokenMap(markets)
	if len(tokenMap) == 0 {
		return domain.TokenMapSnapshot{}, fmt.Errorf("gamma: %w: %d markets yielded no token mappings", domain.ErrEmptyTokenMap, len(markets))
	}

	return domain.TokenMapSnapshot{
		Markets:   markets,
		TokenMap:  tokenMap,
		Freshness: domain.FreshnessFresh,
		FetchedAt: c.now(),
	}, nil
}

// BuildTokenMap indexes markets by outcome token id. Markets missing either
// token id are skipped.
func BuildTokenMap(markets []domain.Market) domain.TokenMap {
	tokenMap := make(domain.TokenMap, 2*len(markets))
	for _, m := range markets {
		if m.YesTokenID == "" || m.NoTokenID == "" {
			continue
		}
		tokenMap[m.YesTokenID] = domain.TokenMapping{MarketID: m.ID, Outcome: domain.OutcomeYes}
		tokenMap[m.NoTokenID] = domain.TokenMapping{MarketID: m.ID, Outcome: domain.OutcomeNo}
	}
	return tokenMap
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, string(body))
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, string(body))
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
