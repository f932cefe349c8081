package lifecycle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"fracpool/internal/domain"
	"fracpool/internal/ledger"
	"fracpool/internal/vault"
)

// Finalize sets up on-chain governance for a graduated pool: it reads the
// top token holders from the ledger index, creates a multisig vault whose
// members are the eligible holders, snapshots the member list as the fixed
// vote-power table, and moves the asset's on-chain representation into the
// vault. Admin only.
//
// The steps hit three different external services with no transaction
// spanning them, so each completed step is persisted before the next one
// runs. A retry after a partial failure resumes from the recorded
// FinalizationStep instead of repeating committed external actions.
func (e *Engine) Finalize(ctx context.Context, poolID, actor string) (*domain.Pool, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, ErrNotAuthorized
	}

	p, err := e.pools.GetByID(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", poolID, err)
	}
	if !p.Graduated {
		return nil, ErrNotGraduated
	}
	if p.FinalizationStep == domain.FinalizationStepDone {
		return nil, ErrAlreadyFinalized
	}
	if p.BagsTokenMint == nil {
		return nil, ErrTokenNotCreated
	}

	if p.FinalizationStep == domain.FinalizationStepNone {
		p, err = e.snapshotHolders(ctx, p)
		if err != nil {
			return nil, err
		}
	}
	if p.FinalizationStep == domain.FinalizationStepHolders {
		p, err = e.createGovernanceVault(ctx, p)
		if err != nil {
			return nil, err
		}
	}
	if p.FinalizationStep == domain.FinalizationStepVaultCreated {
		p, err = e.transferAssetToVault(ctx, p)
		if err != nil {
			return nil, err
		}
	}

	pool, err := e.updatePool(ctx, poolID, "finalize", func(p *domain.Pool) error {
		p.FinalizationStep = domain.FinalizationStepDone
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordActivity(ctx, domain.ActivityFinalized, poolID, "", actor,
		fmt.Sprintf("members=%d vault=%s", len(pool.SquadMembers), orEmpty(pool.SquadMultisigPDA)))
	if e.metrics != nil {
		e.metrics.Finalizations.WithLabelValues("done").Inc()
	}
	e.logger.Info("pool finalized",
		zap.String("pool_id", poolID),
		zap.Int("members", len(pool.SquadMembers)))
	return pool, nil
}

// snapshotHolders queries the ledger index and persists the eligible-holder
// snapshot. This snapshot is the vote-power table for every subsequent
// proposal; it is never refreshed.
func (e *Engine) snapshotHolders(ctx context.Context, p *domain.Pool) (*domain.Pool, error) {
	callStart := time.Now()
	holders, err := e.ledger.GetTopHolders(ctx, *p.BagsTokenMint, e.config.TopHolderLimit)
	e.metrics.ObserveExternalCall("ledger", "top_holders", callStart, err)
	if err != nil {
		if e.metrics != nil {
			e.metrics.Finalizations.WithLabelValues("holders_failed").Inc()
		}
		return nil, fmt.Errorf("%w: top holders of %s: %v", ErrExternalService, *p.BagsTokenMint, err)
	}

	eligible := lo.Filter(holders, func(h ledger.Holder, _ int) bool {
		return h.Balance >= e.config.MinHolderBalance
	})
	if len(eligible) < 2 {
		return nil, fmt.Errorf("%w: %d eligible of %d reported", ErrInsufficientHolders, len(eligible), len(holders))
	}

	members := lo.Map(eligible, func(h ledger.Holder, _ int) domain.SquadMember {
		return domain.SquadMember{
			Wallet:           h.Wallet,
			TokenBalance:     h.Balance,
			OwnershipPercent: h.OwnershipPercent,
			Permissions:      vault.FullPermissions,
		}
	})

	return e.updatePool(ctx, p.PoolID, "finalize_holders", func(p *domain.Pool) error {
		if p.FinalizationStep != domain.FinalizationStepNone {
			return nil
		}
		p.SquadMembers = members
		p.FinalizationStep = domain.FinalizationStepHolders
		return nil
	})
}

// createGovernanceVault creates the multisig from the persisted snapshot.
func (e *Engine) createGovernanceVault(ctx context.Context, p *domain.Pool) (*domain.Pool, error) {
	members := lo.Map(p.SquadMembers, func(m domain.SquadMember, _ int) vault.Member {
		return vault.Member{Wallet: m.Wallet, Permissions: m.Permissions}
	})
	threshold := ApprovalCount(len(members), p.SquadThreshold)

	callStart := time.Now()
	created, err := e.vault.CreateVault(ctx, members, threshold,
		fmt.Sprintf("pool %s governance", p.PoolID))
	e.metrics.ObserveExternalCall("vault", "create_vault", callStart, err)
	if err != nil {
		if e.metrics != nil {
			e.metrics.Finalizations.WithLabelValues("vault_failed").Inc()
		}
		return nil, fmt.Errorf("%w: create vault for pool %s: %v", ErrExternalService, p.PoolID, err)
	}

	return e.updatePool(ctx, p.PoolID, "finalize_vault", func(p *domain.Pool) error {
		if p.FinalizationStep != domain.FinalizationStepHolders {
			return nil
		}
		p.SquadMultisigPDA = &created.VaultAddress
		p.FinalizationStep = domain.FinalizationStepVaultCreated
		return nil
	})
}

// transferAssetToVault moves the asset's on-chain representation into the
// governance vault's custody.
func (e *Engine) transferAssetToVault(ctx context.Context, p *domain.Pool) (*domain.Pool, error) {
	callStart := time.Now()
	_, err := e.vault.TransferAsset(ctx, *p.SquadMultisigPDA, p.AssetID)
	e.metrics.ObserveExternalCall("vault", "transfer_asset", callStart, err)
	if err != nil {
		if e.metrics != nil {
			e.metrics.Finalizations.WithLabelValues("transfer_failed").Inc()
		}
		return nil, fmt.Errorf("%w: transfer asset %s to vault: %v", ErrExternalService, p.AssetID, err)
	}

	return e.updatePool(ctx, p.PoolID, "finalize_transfer", func(p *domain.Pool) error {
		if p.FinalizationStep != domain.FinalizationStepVaultCreated {
			return nil
		}
		p.FinalizationStep = domain.FinalizationStepAssetTransferred
		return nil
	})
}

// ApprovalCount converts a percentage threshold into the absolute number
// of multisig approvals required, minimum 1.
func ApprovalCount(memberCount int, thresholdPercent float64) int {
	n := int(math.Ceil(float64(memberCount) * thresholdPercent / 100))
	if n < 1 {
		n = 1
	}
	return n
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
