package storage

import (
	"context"
	"time"

	"fracpool/internal/domain"
)

// PoolStore provides access to pools storage.
//
// The backing store guarantees single-record atomicity only: every engine
// mutation is read-modify-write on one pool row, guarded by the Version
// optimistic token. Multi-record invariants (one active pool per asset) are
// enforced by the store itself, not by callers.
type PoolStore interface {
	// Create inserts a new pool. Returns ErrDuplicateKey if pool_id exists,
	// ErrAssetClaimed if another non-deleted pool holds the asset in an
	// active status.
	Create(ctx context.Context, p *domain.Pool) error

	// GetByID retrieves a pool by its ID. Returns ErrNotFound if it does not
	// exist or is soft-deleted.
	GetByID(ctx context.Context, poolID string) (*domain.Pool, error)

	// Update writes the full pool record conditional on p.Version matching
	// the stored version, then bumps it. Returns ErrVersionConflict when a
	// concurrent writer got there first, ErrNotFound if the pool is gone.
	Update(ctx context.Context, p *domain.Pool) error

	// GetByAsset retrieves the non-deleted pool holding the active claim on
	// an asset. Returns ErrNotFound if none.
	GetByAsset(ctx context.Context, assetID string) (*domain.Pool, error)

	// GetByStatus retrieves non-deleted pools in a given status, ordered by
	// creation time ASC.
	GetByStatus(ctx context.Context, status domain.PoolStatus) ([]*domain.Pool, error)

	// SoftDelete marks a pool deleted, releasing its asset claim.
	SoftDelete(ctx context.Context, poolID string) error
}

// ProposalStore provides access to pool_proposals storage. Proposals are
// auditable governance records: soft delete only, no physical removal.
type ProposalStore interface {
	// Create inserts a new proposal. Returns ErrDuplicateKey if proposal_id exists.
	Create(ctx context.Context, p *domain.Proposal) error

	// GetByID retrieves a proposal by its ID. Returns ErrNotFound if it does
	// not exist or is soft-deleted.
	GetByID(ctx context.Context, proposalID string) (*domain.Proposal, error)

	// Update writes the full proposal conditional on p.Version, then bumps
	// it. Returns ErrVersionConflict or ErrNotFound.
	Update(ctx context.Context, p *domain.Proposal) error

	// GetByPool retrieves all non-deleted proposals for a pool, ordered by
	// creation time ASC.
	GetByPool(ctx context.Context, poolID string) ([]*domain.Proposal, error)

	// GetActiveBefore retrieves active proposals whose voting deadline is at
	// or before the cutoff. Used by the expiry sweeper.
	GetActiveBefore(ctx context.Context, cutoff time.Time) ([]*domain.Proposal, error)

	// SoftDelete marks a proposal deleted.
	SoftDelete(ctx context.Context, proposalID string) error
}

// ActivityStore records append-only audit events. Writes are best-effort;
// engines log and continue when an append fails.
type ActivityStore interface {
	// Append stores one audit event.
	Append(ctx context.Context, e *domain.ActivityEvent) error

	// GetByPool retrieves all events for a pool, ordered by occurrence ASC.
	GetByPool(ctx context.Context, poolID string) ([]*domain.ActivityEvent, error)
}
