// Package chain implements domain.ChainReader on top of a go-ethereum RPC
// client, adding per-call timeouts, bounded retries, and distributed rate
// limiting.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// rateLimitKey buckets all RPC calls under one sliding window; the provider
// quota applies to the endpoint, not to individual methods.
const rateLimitKey = "rpc"

// limiterPollInterval is how long to wait between rate-limit checks when the
// window is saturated.
const limiterPollInterval = 50 * time.Millisecond

// ClientConfig holds the parameters of the RPC client.
type ClientConfig struct {
	RPCURL          string
	RequestTimeout  time.Duration
	MaxRetries      int
	RateLimitPerSec int
}

// Client is a rate-limited, retrying chain reader.
type Client struct {
	eth        *ethclient.Client
	limiter    domain.RateLimiter // nil disables rate limiting
	timeout    time.Duration
	maxRetries int
	ratePerSec int
	logger     *slog.Logger
}

// New dials the RPC endpoint and returns a Client. limiter may be nil, in
// which case calls are not rate limited.
func New(ctx context.Context, cfg ClientConfig, limiter domain.RateLimiter, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	return &Client{
		eth:        eth,
		limiter:    limiter,
		timeout:    timeout,
		maxRetries: retries,
		ratePerSec: cfg.RateLimitPerSec,
		logger:     logger.With(slog.String("component", "chain")),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// LatestBlock returns the current chain head number.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		height, err = c.eth.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("chain: latest block: %w", err)
	}
	return height, nil
}

// FilterLogs fetches event logs for the given closed block interval. The
// caller (the scanner) is responsible for keeping the interval within the
// provider's maximum block span.
func (c *Client) FilterLogs(ctx context.Context, filter domain.LogFilter) ([]domain.RawLog, error) {
	addresses := make([]common.Address, 0, len(filter.Addresses))
	for _, a := range filter.Addresses {
		addresses = append(addresses, common.HexToAddress(a))
	}
	topics := make([]common.Hash, 0, len(filter.Topics))
	for _, t := range filter.Topics {
		topics = append(topics, common.HexToHash(t))
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(filter.FromBlock),
		ToBlock:   new(big.Int).SetUint64(filter.ToBlock),
		Addresses: addresses,
	}
	if len(topics) > 0 {
		query.Topics = [][]common.Hash{topics}
	}

	var raw []domain.RawLog
	err := c.call(ctx, "eth_getLogs", func(ctx context.Context) error {
		logs, err := c.eth.FilterLogs(ctx, query)
		if err != nil {
			return err
		}
		raw = make([]domain.RawLog, 0, len(logs))
		for _, lg := range logs {
			topicStrs := make([]string, 0, len(lg.Topics))
			for _, t := range lg.Topics {
				topicStrs = append(topicStrs, t.Hex())
			}
			raw = append(raw, domain.RawLog{
				Address:     lg.Address.Hex(),
				Topics:      topicStrs,
				Data:        lg.Data,
				BlockNumber: lg.BlockNumber,
				TxHash:      lg.TxHash.Hex(),
				LogIndex:    lg.Index,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chain: get logs %d-%d: %w", filter.FromBlock, filter.ToBlock, err)
	}
	return raw, nil
}

// CodeAt returns the deployed bytecode at address, empty for an
// externally-owned account.
func (c *Client) CodeAt(ctx context.Context, address string) ([]byte, error) {
	var code []byte
	err := c.call(ctx, "eth_getCode", func(ctx context.Context) error {
		var err error
		code, err = c.eth.CodeAt(ctx, common.HexToAddress(address), nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chain: get code %s: %w", address, err)
	}
	return code, nil
}

// call runs fn under the per-request timeout with bounded retries and the
// shared rate limit. Exhausting retries surfaces domain.ErrRetryExhausted;
// the result is never silently empty.
func (c *Client) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.waitForSlot(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("rpc call failed, retrying",
			slog.String("method", method),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", c.maxRetries),
			slog.String("error", err.Error()),
		)

		// Linear backoff between attempts.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s after %d attempts: %w: %w", method, c.maxRetries, domain.ErrRetryExhausted, lastErr)
}

// waitForSlot blocks until the rate limiter admits another call or the
// context is cancelled.
func (c *Client) waitForSlot(ctx context.Context) error {
	if c.limiter == nil || c.ratePerSec <= 0 {
		return nil
	}
	for {
		ok, err := c.limiter.Allow(ctx, rateLimitKey, c.ratePerSec, time.Second)
		if err != nil {
			// A broken limiter must not take the indexer down with it.
			c.logger.Warn("rate limiter unavailable, proceeding", slog.String("error", err.Error()))
			return nil
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(limiterPollInterval):
		}
	}
}

// Compile-time interface check.
var _ domain.ChainReader = (*Client)(nil)
