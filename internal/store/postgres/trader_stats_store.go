package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// TraderStatsStore implements domain.TraderStatsStore using PostgreSQL.
type TraderStatsStore struct {
	pool *pgxpool.Pool
}

// NewTraderStatsStore creates a TraderStatsStore backed by the given pool.
func NewTraderStatsStore(pool *pgxpool.Pool) *TraderStatsStore {
	return &TraderStatsStore{pool: pool}
}

var _ domain.TraderStatsStore = (*TraderStatsStore)(nil)

const traderSelectCols = `address, trades_count, markets_count, volume_usdc,
	realized_pnl, total_buy_cost, roi, closed_markets_count,
	win_markets_count, win_rate, score, tags`

func scanTrader(row pgx.Row) (domain.ScoredTrader, error) {
	var t domain.ScoredTrader
	err := row.Scan(
		&t.Address, &t.TradesCount, &t.MarketsCount, &t.VolumeUSDC,
		&t.RealizedPnL, &t.TotalBuyCost, &t.ROI, &t.ClosedMarketsCount,
		&t.WinMarketsCount, &t.WinRate, &t.Score, &t.Tags,
	)
	return t, err
}

// UpsertBatch writes scored traders, replacing prior rows per address.
// Returns the number of rows written.
func (s *TraderStatsStore) UpsertBatch(ctx context.Context, traders []domain.ScoredTrader) (int, error) {
	if len(traders) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO trader_stats (
			address, trades_count, markets_count, volume_usdc,
			realized_pnl, total_buy_cost, roi, closed_markets_count,
			win_markets_count, win_rate, score, tags, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		) ON CONFLICT (address) DO UPDATE SET
			trades_count = EXCLUDED.trades_count,
			markets_count = EXCLUDED.markets_count,
			volume_usdc = EXCLUDED.volume_usdc,
			realized_pnl = EXCLUDED.realized_pnl,
			total_buy_cost = EXCLUDED.total_buy_cost,
			roi = EXCLUDED.roi,
			closed_markets_count = EXCLUDED.closed_markets_count,
			win_markets_count = EXCLUDED.win_markets_count,
			win_rate = EXCLUDED.win_rate,
			score = EXCLUDED.score,
			tags = EXCLUDED.tags,
			updated_at = EXCLUDED.updated_at`

	now := time.Now()
	for _, t := range traders {
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(query,
			strings.ToLower(t.Address), t.TradesCount, t.MarketsCount, t.VolumeUSDC,
			t.RealizedPnL, t.TotalBuyCost, t.ROI, t.ClosedMarketsCount,
			t.WinMarketsCount, t.WinRate, t.Score, tags, now,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range traders {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("postgres: upsert trader stats item %d: %w", i, err)
		}
	}
	return len(traders), nil
}

// GetByAddress returns one trader's scored stats.
func (s *TraderStatsStore) GetByAddress(ctx context.Context, address string) (domain.ScoredTrader, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+traderSelectCols+` FROM trader_stats WHERE address = $1`,
		strings.ToLower(address))

	t, err := scanTrader(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoredTrader{}, fmt.Errorf("postgres: trader %s: %w", address, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ScoredTrader{}, fmt.Errorf("postgres: get trader stats: %w", err)
	}
	return t, nil
}

// leaderboardColumns whitelists sortable columns; anything else falls back to
// score so the sort key can never be injected.
var leaderboardColumns = map[domain.LeaderboardSort]string{
	domain.SortByScore:       "score",
	domain.SortByROI:         "roi",
	domain.SortByWinRate:     "win_rate",
	domain.SortByVolume:      "volume_usdc",
	domain.SortByRealizedPnL: "realized_pnl",
}

// Leaderboard returns the top traders ordered descending by the given column.
func (s *TraderStatsStore) Leaderboard(ctx context.Context, sortBy domain.LeaderboardSort, limit int) ([]domain.ScoredTrader, error) {
	col, ok := leaderboardColumns[sortBy]
	if !ok {
		col = "score"
	}
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(
		`SELECT %s FROM trader_stats ORDER BY %s DESC LIMIT $1`,
		traderSelectCols, col)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard: %w", err)
	}
	defer rows.Close()

	var traders []domain.ScoredTrader
	for rows.Next() {
		t, err := scanTrader(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan leaderboard row: %w", err)
		}
		traders = append(traders, t)
	}
	return traders, rows.Err()
}

// ScoredAddresses returns the set of all scored addresses for signal gating.
func (s *TraderStatsStore) ScoredAddresses(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT address FROM trader_stats`)
	if err != nil {
		return nil, fmt.Errorf("postgres: scored addresses: %w", err)
	}
	defer rows.Close()

	addrs := make(map[string]struct{})
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("postgres: scan scored address: %w", err)
		}
		addrs[addr] = struct{}{}
	}
	return addrs, rows.Err()
}
