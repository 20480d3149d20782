package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a SignalStore backed by the given pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

var _ domain.SignalStore = (*SignalStore)(nil)

const signalSelectCols = `id, address, market_id, outcome_side, net_usdc,
	block_number, created_at`

func scanSignalRows(rows pgx.Rows) ([]domain.Signal, error) {
	var signals []domain.Signal
	for rows.Next() {
		var (
			sig   domain.Signal
			block int64
		)
		if err := rows.Scan(
			&sig.ID, &sig.Address, &sig.MarketID, &sig.OutcomeSide,
			&sig.NetUSDC, &block, &sig.CreatedAt,
		); err != nil {
			return nil, err
		}
		sig.Timestamp = uint64(block)
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// InsertBatch inserts signals, skipping rows whose natural-key ID already
// exists. Returns how many rows were new.
func (s *SignalStore) InsertBatch(ctx context.Context, signals []domain.Signal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO signals (
			id, address, market_id, outcome_side, net_usdc, block_number, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		) ON CONFLICT (id) DO NOTHING`

	for _, sig := range signals {
		batch.Queue(query,
			sig.ID, strings.ToLower(sig.Address), sig.MarketID, sig.OutcomeSide,
			sig.NetUSDC, int64(sig.Timestamp), sig.CreatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for i := range signals {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert signal batch item %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListSinceBlock returns signals at or after the cutoff block, strongest
// first.
func (s *SignalStore) ListSinceBlock(ctx context.Context, cutoff uint64) ([]domain.Signal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+signalSelectCols+` FROM signals WHERE block_number >= $1
		 ORDER BY net_usdc DESC`,
		int64(cutoff))
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals since block %d: %w", cutoff, err)
	}
	defer rows.Close()

	signals, err := scanSignalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan signals: %w", err)
	}
	return signals, nil
}

// ListByAddress returns one wallet's signals, newest first.
func (s *SignalStore) ListByAddress(ctx context.Context, address string) ([]domain.Signal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+signalSelectCols+` FROM signals WHERE address = $1
		 ORDER BY block_number DESC`,
		strings.ToLower(address))
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals by address: %w", err)
	}
	defer rows.Close()

	signals, err := scanSignalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan signals by address: %w", err)
	}
	return signals, nil
}
