package ledger

import "context"

// Index defines the holder-lookup interface: current token balances for a
// fractional-ownership token, as reported by the external ledger index.
type Index interface {
	// GetTopHolders returns up to limit holders of the token, sorted by
	// balance descending.
	GetTopHolders(ctx context.Context, tokenMint string, limit int) ([]Holder, error)

	// GetBalance reports a wallet's balance of the token against the
	// index's minimum-balance parameter.
	GetBalance(ctx context.Context, wallet, tokenMint string) (*Balance, error)
}

// Holder is one token holder as reported by the index.
type Holder struct {
	Wallet           string  `json:"wallet"`
	Balance          float64 `json:"balance"`
	OwnershipPercent float64 `json:"ownership_percent"`
}

// Balance is a wallet's position in one token.
type Balance struct {
	IsHolder bool    `json:"is_holder"`
	Balance  float64 `json:"balance"`
}
