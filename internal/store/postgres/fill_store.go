package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a FillStore backed by the given pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

var _ domain.FillStore = (*FillStore)(nil)

const fillSelectCols = `address, market_id, outcome_side, shares_delta,
	cash_delta_usdc, price, block_number, tx_hash, log_index, role`

func scanFillRows(rows pgx.Rows) ([]domain.Fill, error) {
	var fills []domain.Fill
	for rows.Next() {
		var (
			f        domain.Fill
			block    int64
			logIndex int64
		)
		if err := rows.Scan(
			&f.Address, &f.MarketID, &f.OutcomeSide, &f.SharesDelta,
			&f.CashDeltaUSDC, &f.Price, &block, &f.TxHash, &logIndex, &f.Role,
		); err != nil {
			return nil, err
		}
		f.Timestamp = uint64(block)
		f.LogIndex = uint(logIndex)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// InsertBatch inserts fills via pgx Batch. Duplicates on
// (tx_hash, log_index, role) are skipped and the count of actually inserted
// rows is returned, so a re-scan of the same range inserts zero.
func (s *FillStore) InsertBatch(ctx context.Context, fills []domain.Fill) (int, error) {
	if len(fills) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO fills (
			address, market_id, outcome_side, shares_delta,
			cash_delta_usdc, price, block_number, tx_hash, log_index, role
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) ON CONFLICT (tx_hash, log_index, role) DO NOTHING`

	for _, f := range fills {
		batch.Queue(query,
			strings.ToLower(f.Address), f.MarketID, f.OutcomeSide, f.SharesDelta,
			f.CashDeltaUSDC, f.Price, int64(f.Timestamp), f.TxHash, int64(f.LogIndex), f.Role,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for i := range fills {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert fill batch item %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListAll returns the whole ledger in replay order.
func (s *FillStore) ListAll(ctx context.Context) ([]domain.Fill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+fillSelectCols+` FROM fills ORDER BY block_number ASC, log_index ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	fills, err := scanFillRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan fills: %w", err)
	}
	return fills, nil
}

// ListByAddress returns one wallet's fills in replay order.
func (s *FillStore) ListByAddress(ctx context.Context, address string) ([]domain.Fill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+fillSelectCols+` FROM fills WHERE address = $1
		 ORDER BY block_number ASC, log_index ASC`,
		strings.ToLower(address))
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills by address: %w", err)
	}
	defer rows.Close()

	fills, err := scanFillRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan fills by address: %w", err)
	}
	return fills, nil
}

// LatestBlock returns the newest stored block number, 0 when empty.
func (s *FillStore) LatestBlock(ctx context.Context) (uint64, error) {
	var block *int64
	err := s.pool.QueryRow(ctx, "SELECT MAX(block_number) FROM fills").Scan(&block)
	if err != nil {
		return 0, fmt.Errorf("postgres: latest fill block: %w", err)
	}
	if block == nil {
		return 0, nil
	}
	return uint64(*block), nil
}

// EarliestBlock returns the oldest stored block number, 0 when empty.
func (s *FillStore) EarliestBlock(ctx context.Context) (uint64, error) {
	var block *int64
	err := s.pool.QueryRow(ctx, "SELECT MIN(block_number) FROM fills").Scan(&block)
	if err != nil {
		return 0, fmt.Errorf("postgres: earliest fill block: %w", err)
	}
	if block == nil {
		return 0, nil
	}
	return uint64(*block), nil
}

// ListBefore returns fills strictly older than the given block, for archival.
func (s *FillStore) ListBefore(ctx context.Context, block uint64) ([]domain.Fill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+fillSelectCols+` FROM fills WHERE block_number < $1
		 ORDER BY block_number ASC, log_index ASC`,
		int64(block))
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills before block %d: %w", block, err)
	}
	defer rows.Close()
	return scanFillRows(rows)
}

// DeleteBefore removes fills strictly older than the given block. Returns the
// number deleted.
func (s *FillStore) DeleteBefore(ctx context.Context, block uint64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fills WHERE block_number < $1`, int64(block))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete fills before block %d: %w", block, err)
	}
	return tag.RowsAffected(), nil
}
