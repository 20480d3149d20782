// Package decoder turns raw OrderFilled logs into structured, validated
// trade events.
package decoder

import (
	"fmt"
	"log/slog"
	"math/big"
	"regexp"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Decoder decodes OrderFilled logs. Decoding is pure and order-preserving:
// a log that fails structural decoding or validation is routed to the error
// list with its batch index, never fatal to the batch.
type Decoder struct {
	logger *slog.Logger
}

// New creates a Decoder.
func New(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger.With(slog.String("component", "decoder"))}
}

// DecodeOne decodes a single OrderFilled log.
func (d *Decoder) DecodeOne(log domain.RawLog) (domain.DecodedTrade, error) {
	if len(log.Topics) != 4 {
		return domain.DecodedTrade{}, fmt.Errorf("expected 4 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != OrderFilledTopic() {
		return domain.DecodedTrade{}, fmt.Errorf("unexpected topic0 %s", log.Topics[0])
	}

	unpacked, err := exchangeABI.Unpack("OrderFilled", log.Data)
	if err != nil {
		return domain.DecodedTrade{}, fmt.Errorf("unpack data: %w", err)
	}
	if len(unpacked) != 5 {
		return domain.DecodedTrade{}, fmt.Errorf("expected 5 data fields, got %d", len(unpacked))
	}

	makerAssetID, ok := unpacked[0].(*big.Int)
	if !ok {
		return domain.DecodedTrade{}, fmt.Errorf("makerAssetId is not uint256")
	}
	takerAssetID, ok := unpacked[1].(*big.Int)
	if !ok {
		return domain.DecodedTrade{}, fmt.Errorf("takerAssetId is not uint256")
	}
	makerAmount, ok := unpacked[2].(*big.Int)
	if !ok {
		return domain.DecodedTrade{}, fmt.Errorf("makerAmountFilled is not uint256")
	}
	takerAmount, ok := unpacked[3].(*big.Int)
	if !ok {
		return domain.DecodedTrade{}, fmt.Errorf("takerAmountFilled is not uint256")
	}
	fee, ok := unpacked[4].(*big.Int)
	if !ok {
		return domain.DecodedTrade{}, fmt.Errorf("fee is not uint256")
	}

	// Indexed address topics are left-padded 32-byte words.
	maker := common.HexToAddress(log.Topics[2]).Hex()
	taker := common.HexToAddress(log.Topics[3]).Hex()

	trade := domain.DecodedTrade{
		TxHash:       log.TxHash,
		LogIndex:     log.LogIndex,
		BlockNumber:  log.BlockNumber,
		Maker:        maker,
		Taker:        taker,
		MakerAssetID: makerAssetID.String(),
		TakerAssetID: takerAssetID.String(),
		MakerAmount:  makerAmount,
		TakerAmount:  takerAmount,
		Fee:          fee,
	}

	if err := validate(trade); err != nil {
		return domain.DecodedTrade{}, err
	}
	return trade, nil
}

// Decode decodes a batch of logs, preserving input order. Malformed entries
// are excluded and reported alongside the successes.
func (d *Decoder) Decode(logs []domain.RawLog) ([]domain.DecodedTrade, []domain.DecodeError) {
	trades := make([]domain.DecodedTrade, 0, len(logs))
	var errs []domain.DecodeError

	for i, log := range logs {
		trade, err := d.DecodeOne(log)
		if err != nil {
			errs = append(errs, domain.DecodeError{Index: i, Cause: err.Error()})
			continue
		}
		trades = append(trades, trade)
	}

	d.logger.Info("decoded log batch",
		slog.Int("logs", len(logs)),
		slog.Int("trades", len(trades)),
		slog.Int("errors", len(errs)),
	)
	return trades, errs
}

// validate rejects trades that decode structurally but violate the data
// model: malformed addresses, non-positive amounts, empty asset ids.
func validate(t domain.DecodedTrade) error {
	if !addressPattern.MatchString(t.Maker) {
		return fmt.Errorf("malformed maker address %q", t.Maker)
	}
	if !addressPattern.MatchString(t.Taker) {
		return fmt.Errorf("malformed taker address %q", t.Taker)
	}
	if t.MakerAssetID == "" || t.TakerAssetID == "" {
		return fmt.Errorf("empty asset id")
	}
	if t.MakerAmount == nil || t.MakerAmount.Sign() <= 0 {
		return fmt.Errorf("maker amount must be positive")
	}
	if t.TakerAmount == nil || t.TakerAmount.Sign() <= 0 {
		return fmt.Errorf("taker amount must be positive")
	}
	return nil
}
