package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// OriginStore implements domain.OriginStore using PostgreSQL.
type OriginStore struct {
	pool *pgxpool.Pool
}

// NewOriginStore creates an OriginStore backed by the given pool.
func NewOriginStore(pool *pgxpool.Pool) *OriginStore {
	return &OriginStore{pool: pool}
}

var _ domain.OriginStore = (*OriginStore)(nil)

// UpsertBatch writes origin classifications, replacing prior rows per
// address. Returns the number of rows written.
func (s *OriginStore) UpsertBatch(ctx context.Context, metas []domain.OriginMetadata) (int, error) {
	if len(metas) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO origin_metadata (
			address, is_contract, is_relayer, is_proxy_wallet,
			trades_count_24h, median_time_gap_sec, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		) ON CONFLICT (address) DO UPDATE SET
			is_contract = EXCLUDED.is_contract,
			is_relayer = EXCLUDED.is_relayer,
			is_proxy_wallet = EXCLUDED.is_proxy_wallet,
			trades_count_24h = EXCLUDED.trades_count_24h,
			median_time_gap_sec = EXCLUDED.median_time_gap_sec,
			updated_at = EXCLUDED.updated_at`

	for _, m := range metas {
		batch.Queue(query,
			strings.ToLower(m.Address), m.IsContract, m.IsRelayer, m.IsProxyWallet,
			m.TradesCount24h, m.MedianTimeGapSec, m.UpdatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range metas {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("postgres: upsert origin metadata item %d: %w", i, err)
		}
	}
	return len(metas), nil
}

// GetByAddress returns one wallet's origin classification.
func (s *OriginStore) GetByAddress(ctx context.Context, address string) (domain.OriginMetadata, error) {
	var m domain.OriginMetadata
	err := s.pool.QueryRow(ctx,
		`SELECT address, is_contract, is_relayer, is_proxy_wallet,
			trades_count_24h, median_time_gap_sec, updated_at
		 FROM origin_metadata WHERE address = $1`,
		strings.ToLower(address),
	).Scan(
		&m.Address, &m.IsContract, &m.IsRelayer, &m.IsProxyWallet,
		&m.TradesCount24h, &m.MedianTimeGapSec, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OriginMetadata{}, fmt.Errorf("postgres: origin %s: %w", address, domain.ErrNotFound)
	}
	if err != nil {
		return domain.OriginMetadata{}, fmt.Errorf("postgres: get origin metadata: %w", err)
	}
	return m, nil
}
