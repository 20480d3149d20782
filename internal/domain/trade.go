package domain

import "math/big"

// RawLog is an undecoded event log fetched from the chain. It is immutable
// and consumed exactly once by the decoder.
type RawLog struct {
	Address     string
	Topics      []string
	Data        []byte
	BlockNumber uint64
	TxHash      string
	LogIndex    uint
}

// Outcome is the side of a binary market an outcome token represents.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Direction is the taker-centric direction of a resolved trade: BUY when the
// maker leg supplies the outcome token (the taker is buying it), SELL
// otherwise.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// DecodedTrade is a structurally valid OrderFilled event. Amounts are
// unsigned integers in base token units (6 decimals); asset ids are opaque
// numeric strings.
type DecodedTrade struct {
	TxHash       string
	LogIndex     uint
	BlockNumber  uint64
	Maker        string
	Taker        string
	MakerAssetID string
	TakerAssetID string
	MakerAmount  *big.Int
	TakerAmount  *big.Int
	Fee          *big.Int
}

// DecodeError records a log that failed structural decoding or validation,
// tagged with its index in the input batch.
type DecodeError struct {
	Index int
	Cause string
}

// ResolvedTrade is a DecodedTrade mapped to a known market and outcome.
// Exactly one of the trade's asset ids is the outcome token; the other side
// is the collateral leg.
type ResolvedTrade struct {
	DecodedTrade

	TokenID   string
	MarketID  string
	Outcome   Outcome
	Direction Direction
	Price     float64 // bounded probability-style price in [0,1]
}
