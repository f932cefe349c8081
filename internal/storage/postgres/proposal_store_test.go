package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fracpool/internal/domain"
	"fracpool/internal/storage"
)

func testProposal(proposalID, poolID string, deadline time.Time) *domain.Proposal {
	return &domain.Proposal{
		ProposalID:        proposalID,
		PoolID:            poolID,
		Proposer:          "wallet-proposer",
		Type:              domain.ProposalTypeRelistForSale,
		Payload:           domain.ProposalPayload{AskingPriceUSD: 150000},
		ApprovalThreshold: 60,
		VotingDeadline:    deadline,
		TotalVotePower:    100,
		Status:            domain.ProposalStatusActive,
	}
}

func TestProposalStore_CreateAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProposalStore(pool)
	ctx := context.Background()

	deadline := time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Millisecond)
	p := testProposal("prop-001", "pool-001", deadline)

	err := store.Create(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)

	retrieved, err := store.GetByID(ctx, "prop-001")
	require.NoError(t, err)

	assert.Equal(t, p.ProposalID, retrieved.ProposalID)
	assert.Equal(t, p.PoolID, retrieved.PoolID)
	assert.Equal(t, p.Proposer, retrieved.Proposer)
	assert.Equal(t, domain.ProposalTypeRelistForSale, retrieved.Type)
	assert.Equal(t, float64(150000), retrieved.Payload.AskingPriceUSD)
	assert.Equal(t, float64(60), retrieved.ApprovalThreshold)
	assert.Equal(t, float64(100), retrieved.TotalVotePower)
	assert.Equal(t, domain.ProposalStatusActive, retrieved.Status)
	assert.WithinDuration(t, deadline, retrieved.VotingDeadline, time.Second)
	assert.Nil(t, retrieved.Result)

	err = store.Create(ctx, testProposal("prop-001", "pool-002", deadline))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestProposalStore_UpdateVotesAndResult(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProposalStore(pool)
	ctx := context.Background()

	deadline := time.Now().UTC().Add(24 * time.Hour)
	require.NoError(t, store.Create(ctx, testProposal("prop-upd", "pool-001", deadline)))

	p, err := store.GetByID(ctx, "prop-upd")
	require.NoError(t, err)

	votedAt := time.Now().UTC().Truncate(time.Millisecond)
	p.VotesFor = []domain.Vote{
		{Wallet: "wallet-a", TokenBalance: 59000, VotePower: 59, PowerSource: domain.VotePowerSourceSnapshot, VotedAt: votedAt},
	}
	p.VotesAgainst = []domain.Vote{
		{Wallet: "wallet-late", TokenBalance: 5000, VotePower: 0, PowerSource: domain.VotePowerSourceLive, VotedAt: votedAt},
	}
	p.RecomputeTallies()
	require.NoError(t, store.Update(ctx, p))

	p.Status = domain.ProposalStatusExecuted
	p.Result = &domain.ExecutionResult{
		ExecutedAt: votedAt,
		ExecutedBy: "wallet-a",
		ResultType: domain.ExecutionResultFailed,
		Message:    "vault execution failed",
	}
	require.NoError(t, store.Update(ctx, p))

	retrieved, err := store.GetByID(ctx, "prop-upd")
	require.NoError(t, err)

	require.Len(t, retrieved.VotesFor, 1)
	assert.Equal(t, float64(59), retrieved.VotesFor[0].VotePower)
	assert.Equal(t, domain.VotePowerSourceSnapshot, retrieved.VotesFor[0].PowerSource)
	require.Len(t, retrieved.VotesAgainst, 1)
	assert.Equal(t, domain.VotePowerSourceLive, retrieved.VotesAgainst[0].PowerSource)
	assert.Equal(t, float64(59), retrieved.ForVotePower)
	assert.Equal(t, 1, retrieved.ForVoteCount)
	assert.Equal(t, 1, retrieved.AgainstVoteCount)

	require.NotNil(t, retrieved.Result)
	assert.Equal(t, domain.ExecutionResultFailed, retrieved.Result.ResultType)
	assert.Equal(t, "wallet-a", retrieved.Result.ExecutedBy)
	assert.Equal(t, int64(3), retrieved.Version)
}

func TestProposalStore_UpdateVersionConflict(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProposalStore(pool)
	ctx := context.Background()

	deadline := time.Now().UTC().Add(24 * time.Hour)
	require.NoError(t, store.Create(ctx, testProposal("prop-ver", "pool-001", deadline)))

	first, err := store.GetByID(ctx, "prop-ver")
	require.NoError(t, err)
	second, err := store.GetByID(ctx, "prop-ver")
	require.NoError(t, err)

	first.Status = domain.ProposalStatusApproved
	require.NoError(t, store.Update(ctx, first))

	second.Status = domain.ProposalStatusCancelled
	err = store.Update(ctx, second)
	assert.ErrorIs(t, err, storage.ErrVersionConflict)

	retrieved, err := store.GetByID(ctx, "prop-ver")
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusApproved, retrieved.Status)
}

func TestProposalStore_GetByPool(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProposalStore(pool)
	ctx := context.Background()

	deadline := time.Now().UTC().Add(24 * time.Hour)
	require.NoError(t, store.Create(ctx, testProposal("prop-a", "pool-001", deadline)))
	require.NoError(t, store.Create(ctx, testProposal("prop-b", "pool-001", deadline)))
	require.NoError(t, store.Create(ctx, testProposal("prop-c", "pool-002", deadline)))

	list, err := store.GetByPool(ctx, "pool-001")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "prop-a", list[0].ProposalID)
	assert.Equal(t, "prop-b", list[1].ProposalID)
}

func TestProposalStore_GetActiveBefore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProposalStore(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, testProposal("prop-due", "pool-001", now.Add(-time.Hour))))
	require.NoError(t, store.Create(ctx, testProposal("prop-future", "pool-001", now.Add(time.Hour))))

	executed := testProposal("prop-done", "pool-001", now.Add(-2*time.Hour))
	executed.Status = domain.ProposalStatusExecuted
	require.NoError(t, store.Create(ctx, executed))

	due, err := store.GetActiveBefore(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "prop-due", due[0].ProposalID)
}

func TestProposalStore_SoftDelete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewProposalStore(pool)
	ctx := context.Background()

	deadline := time.Now().UTC().Add(24 * time.Hour)
	require.NoError(t, store.Create(ctx, testProposal("prop-del", "pool-001", deadline)))
	require.NoError(t, store.SoftDelete(ctx, "prop-del"))

	_, err := store.GetByID(ctx, "prop-del")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.SoftDelete(ctx, "prop-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
