package memory

import (
	"context"
	"sort"
	"sync"

	"fracpool/internal/domain"
	"fracpool/internal/storage"
)

// PoolStore is an in-memory implementation of storage.PoolStore.
// Conditional updates are serialized under a single mutex, which gives the
// same linearization guarantee the SQL implementation gets from its
// version-guarded UPDATE.
type PoolStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Pool // keyed by pool_id
}

// NewPoolStore creates a new in-memory pool store.
func NewPoolStore() *PoolStore {
	return &PoolStore{
		data: make(map[string]*domain.Pool),
	}
}

// Verify interface compliance at compile time.
var _ storage.PoolStore = (*PoolStore)(nil)

// Create inserts a new pool. Returns ErrDuplicateKey if pool_id exists,
// ErrAssetClaimed if the asset is held by another active pool.
func (s *PoolStore) Create(_ context.Context, p *domain.Pool) error {
	if p == nil || p.PoolID == "" || p.AssetID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PoolID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, existing := range s.data {
		if existing.AssetID == p.AssetID && !existing.Deleted && existing.Status.IsActive() {
			return storage.ErrAssetClaimed
		}
	}

	cp := clonePool(p)
	cp.Version = 1
	s.data[p.PoolID] = cp
	p.Version = 1
	return nil
}

// GetByID retrieves a pool by its ID. Returns ErrNotFound if it does not
// exist or is soft-deleted.
func (s *PoolStore) GetByID(_ context.Context, poolID string) (*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[poolID]
	if !exists || p.Deleted {
		return nil, storage.ErrNotFound
	}
	return clonePool(p), nil
}

// Update writes the pool conditional on the stored version matching
// p.Version, then bumps it.
func (s *PoolStore) Update(_ context.Context, p *domain.Pool) error {
	if p == nil || p.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data[p.PoolID]
	if !exists || existing.Deleted {
		return storage.ErrNotFound
	}
	if existing.Version != p.Version {
		return storage.ErrVersionConflict
	}

	cp := clonePool(p)
	cp.Version = p.Version + 1
	s.data[p.PoolID] = cp
	p.Version = cp.Version
	return nil
}

// GetByAsset retrieves the pool holding the active claim on an asset.
func (s *PoolStore) GetByAsset(_ context.Context, assetID string) (*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data {
		if p.AssetID == assetID && !p.Deleted && p.Status.IsActive() {
			return clonePool(p), nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByStatus retrieves non-deleted pools in a given status, ordered by
// creation time ASC.
func (s *PoolStore) GetByStatus(_ context.Context, status domain.PoolStatus) ([]*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Pool
	for _, p := range s.data {
		if p.Status == status && !p.Deleted {
			result = append(result, clonePool(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// SoftDelete marks a pool deleted, releasing its asset claim.
func (s *PoolStore) SoftDelete(_ context.Context, poolID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[poolID]
	if !exists || p.Deleted {
		return storage.ErrNotFound
	}
	p.Deleted = true
	p.Version++
	return nil
}

// clonePool deep-copies a pool so callers cannot mutate stored state.
func clonePool(p *domain.Pool) *domain.Pool {
	cp := *p
	cp.Participants = append([]domain.Participant(nil), p.Participants...)
	cp.Distributions = append([]domain.DistributionEntry(nil), p.Distributions...)
	cp.SquadMembers = make([]domain.SquadMember, len(p.SquadMembers))
	for i, m := range p.SquadMembers {
		cp.SquadMembers[i] = m
		cp.SquadMembers[i].Permissions = append([]string(nil), m.Permissions...)
	}
	return &cp
}
