package stub

import (
	"context"
	"fmt"
	"sync"

	"fracpool/internal/tokenmarket"
)

// Service implements tokenmarket.Service for testing.
type Service struct {
	mu        sync.Mutex
	nextID    int
	tokens    map[string]tokenmarket.TokenMetadata  // keyed by mint
	graduated map[string]*tokenmarket.GraduationStatus

	CreateErr error // injected failure for CreateToken
}

// NewService creates a new stub token service.
func NewService() *Service {
	return &Service{
		tokens:    make(map[string]tokenmarket.TokenMetadata),
		graduated: make(map[string]*tokenmarket.GraduationStatus),
	}
}

// Compile-time interface check.
var _ tokenmarket.Service = (*Service)(nil)

// CreateToken mints a stub token and records its metadata.
func (s *Service) CreateToken(_ context.Context, meta tokenmarket.TokenMetadata) (*tokenmarket.CreatedToken, error) {
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	mint := fmt.Sprintf("mint-%d", s.nextID)
	s.tokens[mint] = meta
	return &tokenmarket.CreatedToken{TokenMint: mint}, nil
}

// GetGraduationStatus reports a token's recorded graduation state.
func (s *Service) GetGraduationStatus(_ context.Context, tokenMint string) (*tokenmarket.GraduationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.graduated[tokenMint]; ok {
		cp := *st
		return &cp, nil
	}
	return &tokenmarket.GraduationStatus{}, nil
}

// SetGraduated marks a token graduated at the given market cap.
func (s *Service) SetGraduated(tokenMint string, marketCapUSD float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graduated[tokenMint] = &tokenmarket.GraduationStatus{
		Graduated:    true,
		MarketCapUSD: marketCapUSD,
	}
}
