package domain

import "time"

// OriginType is the on-chain account kind of a wallet.
type OriginType string

const (
	OriginEOA      OriginType = "EOA"
	OriginContract OriginType = "CONTRACT"
)

// OriginMetadata is the re-derived classification of a wallet's origin.
// Relayer detection is a heuristic (trade cadence), not a proof; consumers
// must treat it as such.
type OriginMetadata struct {
	Address          string
	IsContract       bool
	IsRelayer        bool
	IsProxyWallet    *bool // nil until explicitly classified
	TradesCount24h   int
	MedianTimeGapSec *float64
	UpdatedAt        time.Time
}
