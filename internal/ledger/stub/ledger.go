package stub

import (
	"context"
	"errors"
	"sort"

	"fracpool/internal/ledger"
)

// Index implements ledger.Index for testing. Balances are keyed by token
// mint, then wallet.
type Index struct {
	Balances map[string]map[string]float64
	Err      error // when set, every call fails with it
}

// NewIndex creates a new stub ledger index.
func NewIndex() *Index {
	return &Index{Balances: make(map[string]map[string]float64)}
}

// Compile-time interface check.
var _ ledger.Index = (*Index)(nil)

// SetBalance sets a wallet's balance of a token.
func (s *Index) SetBalance(tokenMint, wallet string, balance float64) {
	if s.Balances[tokenMint] == nil {
		s.Balances[tokenMint] = make(map[string]float64)
	}
	s.Balances[tokenMint][wallet] = balance
}

// GetTopHolders returns up to limit holders sorted by balance descending.
func (s *Index) GetTopHolders(_ context.Context, tokenMint string, limit int) ([]ledger.Holder, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	balances := s.Balances[tokenMint]
	var total float64
	for _, b := range balances {
		total += b
	}

	holders := make([]ledger.Holder, 0, len(balances))
	for wallet, b := range balances {
		h := ledger.Holder{Wallet: wallet, Balance: b}
		if total > 0 {
			h.OwnershipPercent = b / total * 100
		}
		holders = append(holders, h)
	}

	sort.Slice(holders, func(i, j int) bool {
		if holders[i].Balance != holders[j].Balance {
			return holders[i].Balance > holders[j].Balance
		}
		return holders[i].Wallet < holders[j].Wallet
	})

	if limit > 0 && limit < len(holders) {
		holders = holders[:limit]
	}
	return holders, nil
}

// GetBalance reports a wallet's balance of a token.
func (s *Index) GetBalance(_ context.Context, wallet, tokenMint string) (*ledger.Balance, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	b := s.Balances[tokenMint][wallet]
	return &ledger.Balance{IsHolder: b > 0, Balance: b}, nil
}

// ErrUnavailable is a convenience error for failure-injection tests.
var ErrUnavailable = errors.New("ledger index unavailable")
