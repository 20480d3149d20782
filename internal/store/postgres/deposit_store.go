package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// DepositStore implements domain.DepositStore using PostgreSQL.
type DepositStore struct {
	pool *pgxpool.Pool
}

// NewDepositStore creates a DepositStore backed by the given pool.
func NewDepositStore(pool *pgxpool.Pool) *DepositStore {
	return &DepositStore{pool: pool}
}

var _ domain.DepositStore = (*DepositStore)(nil)

// InsertBatch inserts deposits, skipping duplicates on
// (tx_hash, log_index, direction). Returns how many rows were new.
func (s *DepositStore) InsertBatch(ctx context.Context, deposits []domain.Deposit) (int, error) {
	if len(deposits) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO deposits (
			tx_hash, log_index, block_number, from_address, to_address,
			amount, amount_usdc, token_address, direction
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		) ON CONFLICT (tx_hash, log_index, direction) DO NOTHING`

	for _, d := range deposits {
		batch.Queue(query,
			d.TxHash, int64(d.LogIndex), int64(d.BlockNumber),
			strings.ToLower(d.FromAddress), strings.ToLower(d.ToAddress),
			d.Amount, d.AmountUSDC, strings.ToLower(d.TokenAddress), d.Direction,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for i := range deposits {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert deposit batch item %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// summaryQuery nets IN flows where the wallet is the sender against OUT flows
// where it is the recipient.
const summaryQuery = `
	SELECT
		COALESCE(SUM(amount_usdc) FILTER (WHERE direction = 'IN' AND from_address = w.addr), 0),
		COALESCE(SUM(amount_usdc) FILTER (WHERE direction = 'OUT' AND to_address = w.addr), 0),
		MIN(block_number) FILTER (WHERE direction = 'IN' AND from_address = w.addr)
	FROM deposits, (SELECT $1::text AS addr) w
	WHERE from_address = w.addr OR to_address = w.addr`

// Summary aggregates one wallet's funding history.
func (s *DepositStore) Summary(ctx context.Context, address string) (domain.DepositSummary, error) {
	addr := strings.ToLower(address)
	summary := domain.DepositSummary{Address: addr}

	var firstBlock *int64
	err := s.pool.QueryRow(ctx, summaryQuery, addr).Scan(
		&summary.TotalDepositUSDC, &summary.TotalWithdrawUSDC, &firstBlock)
	if err != nil && err != pgx.ErrNoRows {
		return domain.DepositSummary{}, fmt.Errorf("postgres: deposit summary for %s: %w", addr, err)
	}

	summary.HasDeposit = summary.TotalDepositUSDC > 0
	summary.NetDepositUSDC = summary.TotalDepositUSDC - summary.TotalWithdrawUSDC
	if firstBlock != nil {
		block := uint64(*firstBlock)
		summary.FirstDepositBlock = &block
	}
	return summary, nil
}

// Summaries aggregates funding for a set of wallets in one round trip per
// wallet via a batch.
func (s *DepositStore) Summaries(ctx context.Context, addresses []string) (map[string]domain.DepositSummary, error) {
	out := make(map[string]domain.DepositSummary, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	batch := &pgx.Batch{}
	lowered := make([]string, len(addresses))
	for i, addr := range addresses {
		lowered[i] = strings.ToLower(addr)
		batch.Queue(summaryQuery, lowered[i])
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, addr := range lowered {
		summary := domain.DepositSummary{Address: addr}
		var firstBlock *int64
		err := br.QueryRow().Scan(
			&summary.TotalDepositUSDC, &summary.TotalWithdrawUSDC, &firstBlock)
		if err != nil && err != pgx.ErrNoRows {
			return nil, fmt.Errorf("postgres: deposit summary for %s: %w", addr, err)
		}
		summary.HasDeposit = summary.TotalDepositUSDC > 0
		summary.NetDepositUSDC = summary.TotalDepositUSDC - summary.TotalWithdrawUSDC
		if firstBlock != nil {
			block := uint64(*firstBlock)
			summary.FirstDepositBlock = &block
		}
		out[addr] = summary
	}
	return out, nil
}

// LatestBlock returns the newest stored deposit block, 0 when empty.
func (s *DepositStore) LatestBlock(ctx context.Context) (uint64, error) {
	var block *int64
	err := s.pool.QueryRow(ctx, "SELECT MAX(block_number) FROM deposits").Scan(&block)
	if err != nil {
		return 0, fmt.Errorf("postgres: latest deposit block: %w", err)
	}
	if block == nil {
		return 0, nil
	}
	return uint64(*block), nil
}

// DeleteBefore removes deposits strictly older than the given block.
func (s *DepositStore) DeleteBefore(ctx context.Context, block uint64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM deposits WHERE block_number < $1`, int64(block))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete deposits before block %d: %w", block, err)
	}
	return tag.RowsAffected(), nil
}
