package domain

// DepositDirection marks a custodial transfer as funding in or out.
type DepositDirection string

const (
	DepositIn  DepositDirection = "IN"
	DepositOut DepositDirection = "OUT"
)

// Deposit is a USDC transfer touching a known vault/router address, keyed by
// (txHash, logIndex) for idempotent insert.
type Deposit struct {
	TxHash       string
	LogIndex     uint
	BlockNumber  uint64
	FromAddress  string
	ToAddress    string
	Amount       string // raw integer amount as decimal string
	AmountUSDC   float64
	TokenAddress string
	Direction    DepositDirection
}

// DepositSummary aggregates net funding for one address. HasDeposit
// separates capital-backed traders from wash/test wallets.
type DepositSummary struct {
	Address           string
	HasDeposit        bool
	TotalDepositUSDC  float64
	TotalWithdrawUSDC float64
	NetDepositUSDC    float64
	FirstDepositBlock *uint64
}
