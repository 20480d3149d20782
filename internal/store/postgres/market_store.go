package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. It is the
// durable fallback for the token map when the Gamma API and the cache are
// both unavailable.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

var _ domain.MarketStore = (*MarketStore)(nil)

// UpsertBatch writes markets, replacing prior rows per id.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO markets (
			id, question, slug, yes_token_id, no_token_id,
			condition_id, volume, active, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		) ON CONFLICT (id) DO UPDATE SET
			question = EXCLUDED.question,
			slug = EXCLUDED.slug,
			yes_token_id = EXCLUDED.yes_token_id,
			no_token_id = EXCLUDED.no_token_id,
			condition_id = EXCLUDED.condition_id,
			volume = EXCLUDED.volume,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`

	for _, m := range markets {
		batch.Queue(query,
			m.ID, m.Question, m.Slug, m.YesTokenID, m.NoTokenID,
			m.ConditionID, m.Volume, m.Active, m.UpdatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market item %d: %w", i, err)
		}
	}
	return nil
}

// TokenMap rebuilds a token map from the stored markets.
func (s *MarketStore) TokenMap(ctx context.Context) (domain.TokenMap, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, yes_token_id, no_token_id FROM markets
		 WHERE yes_token_id <> '' AND no_token_id <> ''`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load token map: %w", err)
	}
	defer rows.Close()

	tokenMap := make(domain.TokenMap)
	for rows.Next() {
		var id, yesToken, noToken string
		if err := rows.Scan(&id, &yesToken, &noToken); err != nil {
			return nil, fmt.Errorf("postgres: scan market tokens: %w", err)
		}
		tokenMap[yesToken] = domain.TokenMapping{MarketID: id, Outcome: domain.OutcomeYes}
		tokenMap[noToken] = domain.TokenMapping{MarketID: id, Outcome: domain.OutcomeNo}
	}
	return tokenMap, rows.Err()
}

// Count returns the number of stored markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
