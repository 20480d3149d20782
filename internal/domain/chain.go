package domain

import "context"

// LogFilter selects event logs over a closed, inclusive block interval.
// The upstream provider imposes a maximum block span per call; the scanner,
// not the implementation, enforces windowing.
type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []string
	Topics    []string
}

// ChainReader is the read-only chain access surface the pipeline consumes.
// Every method is failable and rate-limited upstream; implementations carry
// their own timeout and bounded retry.
type ChainReader interface {
	LatestBlock(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, filter LogFilter) ([]RawLog, error)
	CodeAt(ctx context.Context, address string) ([]byte, error)
}
