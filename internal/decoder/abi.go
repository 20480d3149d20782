package decoder

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// orderFilledSig is the canonical event signature of the CTF Exchange fill
// event.
const orderFilledSig = "OrderFilled(bytes32,address,address,uint256,uint256,uint256,uint256,uint256)"

// orderFilledABI describes the OrderFilled event. orderHash, maker, and
// taker are indexed; the asset ids, filled amounts, and fee live in the data
// segment.
const orderFilledABI = `[{
	"anonymous": false,
	"name": "OrderFilled",
	"type": "event",
	"inputs": [
		{"indexed": true,  "name": "orderHash",         "type": "bytes32"},
		{"indexed": true,  "name": "maker",             "type": "address"},
		{"indexed": true,  "name": "taker",             "type": "address"},
		{"indexed": false, "name": "makerAssetId",      "type": "uint256"},
		{"indexed": false, "name": "takerAssetId",      "type": "uint256"},
		{"indexed": false, "name": "makerAmountFilled", "type": "uint256"},
		{"indexed": false, "name": "takerAmountFilled", "type": "uint256"},
		{"indexed": false, "name": "fee",               "type": "uint256"}
	]
}]`

var exchangeABI = mustParseABI(orderFilledABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("decoder: invalid OrderFilled ABI: " + err.Error())
	}
	return parsed
}

// OrderFilledTopic returns the topic0 hash that identifies OrderFilled logs.
func OrderFilledTopic() string {
	return crypto.Keccak256Hash([]byte(orderFilledSig)).Hex()
}
