package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fracpool/internal/domain"
	"fracpool/internal/storage"
)

// ProposalStore is an in-memory implementation of storage.ProposalStore.
type ProposalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Proposal // keyed by proposal_id
}

// NewProposalStore creates a new in-memory proposal store.
func NewProposalStore() *ProposalStore {
	return &ProposalStore{
		data: make(map[string]*domain.Proposal),
	}
}

// Verify interface compliance at compile time.
var _ storage.ProposalStore = (*ProposalStore)(nil)

// Create inserts a new proposal. Returns ErrDuplicateKey if proposal_id exists.
func (s *ProposalStore) Create(_ context.Context, p *domain.Proposal) error {
	if p == nil || p.ProposalID == "" || p.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ProposalID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := cloneProposal(p)
	cp.Version = 1
	s.data[p.ProposalID] = cp
	p.Version = 1
	return nil
}

// GetByID retrieves a proposal by its ID.
func (s *ProposalStore) GetByID(_ context.Context, proposalID string) (*domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[proposalID]
	if !exists || p.Deleted {
		return nil, storage.ErrNotFound
	}
	return cloneProposal(p), nil
}

// Update writes the proposal conditional on the stored version matching
// p.Version, then bumps it.
func (s *ProposalStore) Update(_ context.Context, p *domain.Proposal) error {
	if p == nil || p.ProposalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data[p.ProposalID]
	if !exists || existing.Deleted {
		return storage.ErrNotFound
	}
	if existing.Version != p.Version {
		return storage.ErrVersionConflict
	}

	cp := cloneProposal(p)
	cp.Version = p.Version + 1
	s.data[p.ProposalID] = cp
	p.Version = cp.Version
	return nil
}

// GetByPool retrieves all non-deleted proposals for a pool, ordered by
// creation time ASC.
func (s *ProposalStore) GetByPool(_ context.Context, poolID string) ([]*domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Proposal
	for _, p := range s.data {
		if p.PoolID == poolID && !p.Deleted {
			result = append(result, cloneProposal(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// GetActiveBefore retrieves active proposals whose voting deadline is at or
// before the cutoff.
func (s *ProposalStore) GetActiveBefore(_ context.Context, cutoff time.Time) ([]*domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Proposal
	for _, p := range s.data {
		if p.Status == domain.ProposalStatusActive && !p.Deleted && !p.VotingDeadline.After(cutoff) {
			result = append(result, cloneProposal(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].VotingDeadline.Before(result[j].VotingDeadline)
	})

	return result, nil
}

// SoftDelete marks a proposal deleted.
func (s *ProposalStore) SoftDelete(_ context.Context, proposalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[proposalID]
	if !exists || p.Deleted {
		return storage.ErrNotFound
	}
	p.Deleted = true
	p.Version++
	return nil
}

// cloneProposal deep-copies a proposal.
func cloneProposal(p *domain.Proposal) *domain.Proposal {
	cp := *p
	cp.VotesFor = append([]domain.Vote(nil), p.VotesFor...)
	cp.VotesAgainst = append([]domain.Vote(nil), p.VotesAgainst...)
	if p.Result != nil {
		res := *p.Result
		if p.Result.Data != nil {
			res.Data = make(map[string]string, len(p.Result.Data))
			for k, v := range p.Result.Data {
				res.Data[k] = v
			}
		}
		cp.Result = &res
	}
	return &cp
}
