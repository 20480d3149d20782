// Package deposits scans ERC-20 Transfer logs for USDC flows touching the
// known Polymarket custody addresses, and summarizes funding per wallet.
package deposits

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

const usdcDecimals = 1e6

// TransferTopic is the keccak hash of the canonical ERC-20 Transfer event.
func TransferTopic() string {
	return crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")).Hex()
}

// Config selects the token contracts to watch and the custody addresses that
// mark a transfer as a deposit or withdrawal.
type Config struct {
	// TokenAddresses holds both the bridged USDC.e and native USDC contracts.
	TokenAddresses []string
	// VaultAddresses are the exchange/custody contracts; a transfer into one
	// is a deposit, out of one a withdrawal.
	VaultAddresses []string
}

// Scanner reads Transfer logs and classifies those touching a vault.
type Scanner struct {
	reader domain.ChainReader
	cfg    Config
	vaults map[string]struct{}
	logger *slog.Logger
}

// New creates a deposit Scanner. Vault addresses are matched
// case-insensitively.
func New(reader domain.ChainReader, cfg Config, logger *slog.Logger) *Scanner {
	vaults := make(map[string]struct{}, len(cfg.VaultAddresses))
	for _, v := range cfg.VaultAddresses {
		vaults[strings.ToLower(v)] = struct{}{}
	}
	return &Scanner{
		reader: reader,
		cfg:    cfg,
		vaults: vaults,
		logger: logger.With(slog.String("component", "deposits")),
	}
}

// ScanRange fetches Transfer logs for the watched tokens over [from, to] and
// returns the classified vault-touching deposits.
func (s *Scanner) ScanRange(ctx context.Context, from, to uint64) ([]domain.Deposit, error) {
	logs, err := s.reader.FilterLogs(ctx, domain.LogFilter{
		FromBlock: from,
		ToBlock:   to,
		Addresses: s.cfg.TokenAddresses,
		Topics:    []string{TransferTopic()},
	})
	if err != nil {
		return nil, fmt.Errorf("deposits: filter transfer logs [%d, %d]: %w", from, to, err)
	}

	deposits := s.Classify(logs)
	s.logger.Info("scanned deposit range",
		slog.Uint64("from_block", from),
		slog.Uint64("to_block", to),
		slog.Int("transfer_logs", len(logs)),
		slog.Int("deposits", len(deposits)),
	)
	return deposits, nil
}

// Classify filters raw Transfer logs down to those where either side is a
// known vault. A single log can yield both an IN and an OUT entry when both
// counterparties are vaults (internal rebalances); summaries then net out.
func (s *Scanner) Classify(logs []domain.RawLog) []domain.Deposit {
	var deposits []domain.Deposit
	for _, lg := range logs {
		if len(lg.Topics) < 3 {
			continue
		}

		from := strings.ToLower(common.HexToAddress(lg.Topics[1]).Hex())
		to := strings.ToLower(common.HexToAddress(lg.Topics[2]).Hex())
		amount := new(big.Int).SetBytes(lg.Data)

		base := domain.Deposit{
			TxHash:       lg.TxHash,
			LogIndex:     lg.LogIndex,
			BlockNumber:  lg.BlockNumber,
			FromAddress:  from,
			ToAddress:    to,
			Amount:       amount.String(),
			AmountUSDC:   scaledFloat(amount),
			TokenAddress: strings.ToLower(lg.Address),
		}

		if _, ok := s.vaults[to]; ok {
			d := base
			d.Direction = domain.DepositIn
			deposits = append(deposits, d)
		}
		if _, ok := s.vaults[from]; ok {
			d := base
			d.Direction = domain.DepositOut
			deposits = append(deposits, d)
		}
	}
	return deposits
}

// Summarize folds deposits into per-wallet funding summaries. The wallet is
// the non-vault counterparty: the sender on IN, the recipient on OUT.
// Results are sorted by address for deterministic output.
func Summarize(deposits []domain.Deposit) []domain.DepositSummary {
	byAddr := make(map[string]*domain.DepositSummary)

	get := func(addr string) *domain.DepositSummary {
		addr = strings.ToLower(addr)
		if s, ok := byAddr[addr]; ok {
			return s
		}
		s := &domain.DepositSummary{Address: addr}
		byAddr[addr] = s
		return s
	}

	for _, d := range deposits {
		switch d.Direction {
		case domain.DepositIn:
			s := get(d.FromAddress)
			s.HasDeposit = true
			s.TotalDepositUSDC += d.AmountUSDC
			if s.FirstDepositBlock == nil || d.BlockNumber < *s.FirstDepositBlock {
				block := d.BlockNumber
				s.FirstDepositBlock = &block
			}
		case domain.DepositOut:
			s := get(d.ToAddress)
			s.TotalWithdrawUSDC += d.AmountUSDC
		}
	}

	out := make([]domain.DepositSummary, 0, len(byAddr))
	for _, s := range byAddr {
		s.NetDepositUSDC = s.TotalDepositUSDC - s.TotalWithdrawUSDC
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func scaledFloat(amount *big.Int) float64 {
	f, _ := new(big.Float).SetInt(amount).Float64()
	return f / usdcDecimals
}
