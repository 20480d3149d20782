package domain

import (
	"fmt"
	"strings"
	"time"
)

// Signal is a time-windowed aggregate of net buying conviction by a scored
// wallet in one (market, outcome). NetUSDC is reported as positive buy
// pressure even though buying is cash-negative in the ledger. Signals are
// ephemeral: recomputed from fills, never hand-edited.
type Signal struct {
	ID          string
	Address     string
	MarketID    string
	OutcomeSide Outcome
	NetUSDC     float64
	Timestamp   uint64 // block number of the newest contributing fill
	CreatedAt   time.Time
}

// SignalID builds the natural key address:marketId:outcomeSide:timestamp.
func SignalID(address, marketID string, side Outcome, timestamp uint64) string {
	return fmt.Sprintf("%s:%s:%s:%d", strings.ToLower(address), marketID, side, timestamp)
}
