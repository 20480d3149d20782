package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. Positions
// are a materialized view over the fill ledger; every write replaces the
// whole table inside one transaction.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

var _ domain.PositionStore = (*PositionStore)(nil)

const positionSelectCols = `address, market_id, outcome_side, position_shares,
	avg_cost, realized_pnl, total_buy_cost, total_buy_shares,
	total_sell_proceeds, total_sell_shares`

func scanPositionRows(rows pgx.Rows) ([]domain.PositionState, error) {
	var positions []domain.PositionState
	for rows.Next() {
		var p domain.PositionState
		if err := rows.Scan(
			&p.Address, &p.MarketID, &p.OutcomeSide, &p.PositionShares,
			&p.AvgCost, &p.RealizedPnL, &p.TotalBuyCost, &p.TotalBuyShares,
			&p.TotalSellProceeds, &p.TotalSellShares,
		); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ReplaceAll swaps the stored view for the freshly replayed one atomically.
func (s *PositionStore) ReplaceAll(ctx context.Context, positions []domain.PositionState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin position replace: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `TRUNCATE positions`); err != nil {
		return fmt.Errorf("postgres: truncate positions: %w", err)
	}

	const query = `
		INSERT INTO positions (
			address, market_id, outcome_side, position_shares, avg_cost,
			realized_pnl, total_buy_cost, total_buy_shares,
			total_sell_proceeds, total_sell_shares
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	batch := &pgx.Batch{}
	for _, p := range positions {
		batch.Queue(query,
			strings.ToLower(p.Address), p.MarketID, p.OutcomeSide, p.PositionShares,
			p.AvgCost, p.RealizedPnL, p.TotalBuyCost, p.TotalBuyShares,
			p.TotalSellProceeds, p.TotalSellShares,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range positions {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: insert position item %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close position batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit position replace: %w", err)
	}
	return nil
}

// ListByAddress returns one wallet's positions.
func (s *PositionStore) ListByAddress(ctx context.Context, address string) ([]domain.PositionState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE address = $1
		 ORDER BY market_id, outcome_side`,
		strings.ToLower(address))
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions by address: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

// ListByMarket returns all positions in one market.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.PositionState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE market_id = $1
		 ORDER BY address, outcome_side`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions by market: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}
