package tokenmarket

import "context"

// Service defines the token-market interface: mints fractional-ownership
// tokens and reports bonding-curve graduation status.
type Service interface {
	// CreateToken mints a fractional-ownership token for a pool.
	CreateToken(ctx context.Context, meta TokenMetadata) (*CreatedToken, error)

	// GetGraduationStatus reports whether a token has crossed from
	// bonding-curve pricing to open-market trading.
	GetGraduationStatus(ctx context.Context, tokenMint string) (*GraduationStatus, error)
}

// TokenMetadata describes the token to mint.
type TokenMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	ImageURL string `json:"image_url,omitempty"`
	PoolID   string `json:"pool_id"`
}

// CreatedToken identifies a newly minted token.
type CreatedToken struct {
	TokenMint string `json:"token_mint"`
}

// GraduationStatus reports a token's bonding-curve state.
type GraduationStatus struct {
	Graduated    bool    `json:"graduated"`
	MarketCapUSD float64 `json:"market_cap_usd"`
}

// GraduationEvent is one graduation notification from the event feed.
type GraduationEvent struct {
	TokenMint    string  `json:"token_mint"`
	PoolID       string  `json:"pool_id"`
	MarketCapUSD float64 `json:"market_cap_usd"`
}
