// Package governance owns the proposal state machine: creation, weighted
// voting, threshold evaluation, execution dispatch, cancellation, and
// deadline expiry.
//
// Vote weights come from the pool's graduation-time holder snapshot and
// are never refreshed, while eligibility to vote at all is checked against
// live balances. The asymmetry is deliberate: late buyers may vote, but
// their votes carry zero weight.
package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"fracpool/internal/auth"
	"fracpool/internal/domain"
	"fracpool/internal/ledger"
	"fracpool/internal/observability"
	"fracpool/internal/storage"
	"fracpool/internal/vault"
)

// minHolderBalance is the live-balance floor for proposing, voting, and
// executing, in token units.
const minHolderBalance = 1.0

// Config holds governance engine tunables.
type Config struct {
	// MaxUpdateRetries bounds the optimistic-version retry loop.
	MaxUpdateRetries int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{MaxUpdateRetries: 5}
}

// Engine drives the proposal state machine. Votes on one proposal are
// linearized by the version-guarded write, so a race can never count the
// same wallet twice.
type Engine struct {
	proposals storage.ProposalStore
	pools     storage.PoolStore
	activity  storage.ActivityStore
	ledger    ledger.Index
	vault     vault.Vault
	policy    auth.Policy
	metrics   *observability.Metrics
	logger    *zap.Logger
	config    Config
}

// Option configures the Engine.
type Option func(*Engine)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.config = cfg }
}

// WithActivityStore attaches the audit log store.
func WithActivityStore(s storage.ActivityStore) Option {
	return func(e *Engine) { e.activity = s }
}

// NewEngine creates a governance engine.
func NewEngine(
	proposals storage.ProposalStore,
	pools storage.PoolStore,
	ledgerIndex ledger.Index,
	governanceVault vault.Vault,
	policy auth.Policy,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		proposals: proposals,
		pools:     pools,
		ledger:    ledgerIndex,
		vault:     governanceVault,
		policy:    policy,
		logger:    logger,
		config:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateProposal opens a governance decision for voting on a graduated
// pool. The proposer must currently hold at least one token unit (live
// check); the proposal's total vote power is frozen from the graduation
// snapshot at this moment and never recomputed.
func (e *Engine) CreateProposal(
	ctx context.Context,
	poolID, proposerWallet string,
	proposalType domain.ProposalType,
	payload domain.ProposalPayload,
	votingDeadlineDays int,
) (*domain.Proposal, error) {
	if !domain.ValidProposalType(proposalType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, proposalType)
	}
	if votingDeadlineDays <= 0 {
		return nil, ErrInvalidDeadline
	}
	if err := validatePayload(proposalType, payload); err != nil {
		return nil, err
	}

	pool, err := e.pools.GetByID(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", poolID, err)
	}
	if !pool.Graduated {
		return nil, ErrPoolNotGraduated
	}
	if pool.SquadMultisigPDA == nil || pool.BagsTokenMint == nil {
		return nil, ErrNoGovernanceVault
	}

	callStart := time.Now()
	balance, err := e.ledger.GetBalance(ctx, proposerWallet, *pool.BagsTokenMint)
	e.metrics.ObserveExternalCall("ledger", "get_balance", callStart, err)
	if err != nil {
		return nil, fmt.Errorf("%w: balance of %s: %v", ErrExternalService, proposerWallet, err)
	}
	if !balance.IsHolder || balance.Balance < minHolderBalance {
		return nil, ErrNotATokenHolder
	}

	totalVotePower := lo.SumBy(pool.SquadMembers, func(m domain.SquadMember) float64 {
		return m.OwnershipPercent
	})

	now := time.Now().UTC()
	p := &domain.Proposal{
		ProposalID:        uuid.NewString(),
		PoolID:            poolID,
		Proposer:          proposerWallet,
		Type:              proposalType,
		Payload:           payload,
		ApprovalThreshold: pool.SquadThreshold,
		VotingDeadline:    now.Add(time.Duration(votingDeadlineDays) * 24 * time.Hour),
		TotalVotePower:    totalVotePower,
		Status:            domain.ProposalStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := e.proposals.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create proposal for pool %s: %w", poolID, err)
	}

	e.recordActivity(ctx, domain.ActivityProposalCreated, poolID, p.ProposalID, proposerWallet,
		string(proposalType))
	if e.metrics != nil {
		e.metrics.ProposalsCreated.WithLabelValues(string(proposalType)).Inc()
	}
	e.logger.Info("proposal created",
		zap.String("proposal_id", p.ProposalID),
		zap.String("pool_id", poolID),
		zap.String("type", string(proposalType)),
		zap.Float64("total_vote_power", totalVotePower))
	return p, nil
}

// validatePayload checks the type-specific required fields.
func validatePayload(t domain.ProposalType, p domain.ProposalPayload) error {
	switch t {
	case domain.ProposalTypeRelistForSale:
		if p.AskingPriceUSD <= 0 {
			return fmt.Errorf("%w: asking price is required", ErrInvalidPayload)
		}
	case domain.ProposalTypeAcceptOffer:
		if p.OfferAmountUSD <= 0 {
			return fmt.Errorf("%w: offer amount is required", ErrInvalidPayload)
		}
		if p.BuyerWallet == "" {
			return fmt.Errorf("%w: buyer wallet is required", ErrInvalidPayload)
		}
	case domain.ProposalTypeChangeThreshold:
		if p.NewThreshold <= 0 || p.NewThreshold > 100 {
			return fmt.Errorf("%w: new threshold must be in (0, 100]", ErrInvalidPayload)
		}
	case domain.ProposalTypeAddMember, domain.ProposalTypeRemoveMember:
		if p.MemberWallet == "" {
			return fmt.Errorf("%w: member wallet is required", ErrInvalidPayload)
		}
	}
	return nil
}

// Vote records one wallet's vote. One wallet, one vote, no revocation.
// The voter must currently hold the token (live check) but the vote's
// weight comes from the graduation snapshot; a holder who bought in after
// graduation votes with weight zero.
func (e *Engine) Vote(ctx context.Context, proposalID, voterWallet string, inFavor bool) (*domain.Proposal, error) {
	prop, err := e.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("get proposal %s: %w", proposalID, err)
	}
	if prop.Status != domain.ProposalStatusActive {
		return nil, ErrProposalNotActive
	}

	pool, err := e.pools.GetByID(ctx, prop.PoolID)
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", prop.PoolID, err)
	}

	// The deadline check sits before the holder check so an expired
	// proposal transitions even when an ineligible wallet pokes it.
	if time.Now().UTC().After(prop.VotingDeadline) {
		if _, expireErr := e.expire(ctx, proposalID); expireErr != nil &&
			!errors.Is(expireErr, ErrProposalNotActive) {
			e.logger.Warn("expiry transition failed",
				zap.String("proposal_id", proposalID),
				zap.Error(expireErr))
		}
		return nil, ErrVotingClosed
	}
	if prop.HasVoted(voterWallet) {
		return nil, ErrAlreadyVoted
	}

	if pool.BagsTokenMint == nil {
		return nil, ErrNoGovernanceVault
	}
	callStart := time.Now()
	balance, err := e.ledger.GetBalance(ctx, voterWallet, *pool.BagsTokenMint)
	e.metrics.ObserveExternalCall("ledger", "get_balance", callStart, err)
	if err != nil {
		return nil, fmt.Errorf("%w: balance of %s: %v", ErrExternalService, voterWallet, err)
	}
	if !balance.IsHolder || balance.Balance < minHolderBalance {
		return nil, ErrNotATokenHolder
	}

	vote := domain.Vote{
		Wallet:       voterWallet,
		TokenBalance: balance.Balance,
		VotePower:    0,
		PowerSource:  domain.VotePowerSourceLive,
		VotedAt:      time.Now().UTC(),
	}
	if member := pool.SquadMember(voterWallet); member != nil {
		vote.VotePower = member.OwnershipPercent
		vote.PowerSource = domain.VotePowerSourceSnapshot
	} else {
		e.logger.Warn("vote from wallet outside graduation snapshot, weight zero",
			zap.String("proposal_id", proposalID),
			zap.String("wallet", voterWallet),
			zap.Float64("live_balance", balance.Balance))
	}

	proposal, err := e.updateProposal(ctx, proposalID, "vote", func(p *domain.Proposal) error {
		if p.Status != domain.ProposalStatusActive {
			return ErrProposalNotActive
		}
		if p.HasVoted(voterWallet) {
			return ErrAlreadyVoted
		}
		if inFavor {
			p.VotesFor = append(p.VotesFor, vote)
		} else {
			p.VotesAgainst = append(p.VotesAgainst, vote)
		}
		p.RecomputeTallies()
		if p.ThresholdReached() {
			p.Status = domain.ProposalStatusApproved
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	side := "against"
	if inFavor {
		side = "for"
	}
	e.recordActivity(ctx, domain.ActivityVoteCast, prop.PoolID, proposalID, voterWallet,
		fmt.Sprintf("%s power=%.4f", side, vote.VotePower))
	if e.metrics != nil {
		e.metrics.VotesCast.WithLabelValues(side, string(vote.PowerSource)).Inc()
	}
	e.logger.Info("vote recorded",
		zap.String("proposal_id", proposalID),
		zap.String("wallet", voterWallet),
		zap.String("side", side),
		zap.Float64("vote_power", vote.VotePower),
		zap.String("status", string(proposal.Status)))
	return proposal, nil
}

// ExecuteProposal dispatches an approved proposal's action. The proposal
// always ends up executed; whether the underlying action worked is
// captured in the result type, not in the proposal status.
func (e *Engine) ExecuteProposal(ctx context.Context, proposalID, executorWallet string) (*domain.Proposal, error) {
	prop, err := e.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("get proposal %s: %w", proposalID, err)
	}
	if prop.Status != domain.ProposalStatusApproved {
		return nil, ErrProposalNotApproved
	}
	if !domain.ValidProposalType(prop.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, prop.Type)
	}

	pool, err := e.pools.GetByID(ctx, prop.PoolID)
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", prop.PoolID, err)
	}

	if !e.policy.IsAdmin(executorWallet) {
		if pool.BagsTokenMint == nil {
			return nil, ErrNotAuthorized
		}
		callStart := time.Now()
		balance, err := e.ledger.GetBalance(ctx, executorWallet, *pool.BagsTokenMint)
		e.metrics.ObserveExternalCall("ledger", "get_balance", callStart, err)
		if err != nil {
			return nil, fmt.Errorf("%w: balance of %s: %v", ErrExternalService, executorWallet, err)
		}
		if !balance.IsHolder || balance.Balance < minHolderBalance {
			return nil, ErrNotAuthorized
		}
	}

	result := e.dispatch(ctx, prop, pool)
	result.ExecutedAt = time.Now().UTC()
	result.ExecutedBy = executorWallet

	proposal, err := e.updateProposal(ctx, proposalID, "execute", func(p *domain.Proposal) error {
		if p.Status != domain.ProposalStatusApproved {
			return ErrProposalNotApproved
		}
		p.Status = domain.ProposalStatusExecuted
		p.Result = &result
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordActivity(ctx, domain.ActivityProposalExecuted, prop.PoolID, proposalID, executorWallet,
		fmt.Sprintf("type=%s result=%s", prop.Type, result.ResultType))
	if e.metrics != nil {
		e.metrics.ProposalsExecuted.WithLabelValues(string(result.ResultType)).Inc()
	}
	e.logger.Info("proposal executed",
		zap.String("proposal_id", proposalID),
		zap.String("type", string(prop.Type)),
		zap.String("result", string(result.ResultType)),
		zap.String("message", result.Message))
	return proposal, nil
}

// dispatch performs the type-specific action and reports its outcome.
// Failures are captured in the returned result, never as an error: the
// execution attempt itself is terminal.
func (e *Engine) dispatch(ctx context.Context, prop *domain.Proposal, pool *domain.Pool) domain.ExecutionResult {
	switch prop.Type {
	case domain.ProposalTypeRelistForSale:
		return e.executeRelist(ctx, prop, pool)
	case domain.ProposalTypeAcceptOffer:
		return e.executeAcceptOffer(ctx, prop, pool)
	case domain.ProposalTypeChangeThreshold:
		return e.executeChangeThreshold(ctx, prop, pool)
	case domain.ProposalTypeAddMember:
		return e.executeAddMember(ctx, prop, pool)
	case domain.ProposalTypeRemoveMember:
		return e.executeRemoveMember(ctx, prop, pool)
	}
	return failedResult(fmt.Sprintf("unsupported proposal type %q", prop.Type))
}

// executeVaultTransaction runs the proposal's pre-built vault transaction
// if one is referenced. Returns the signature, whether a vault call
// happened at all, and any error.
func (e *Engine) executeVaultTransaction(ctx context.Context, prop *domain.Proposal, pool *domain.Pool) (string, bool, error) {
	if pool.SquadMultisigPDA == nil || prop.Payload.VaultTransactionIndex == nil {
		return "", false, nil
	}
	callStart := time.Now()
	res, err := e.vault.Execute(ctx, *pool.SquadMultisigPDA, *prop.Payload.VaultTransactionIndex)
	e.metrics.ObserveExternalCall("vault", "execute_transaction", callStart, err)
	if err != nil {
		return "", true, err
	}
	if !res.Executed {
		return res.Signature, true, fmt.Errorf("vault transaction %d not executed", *prop.Payload.VaultTransactionIndex)
	}
	return res.Signature, true, nil
}

func (e *Engine) executeRelist(ctx context.Context, prop *domain.Proposal, pool *domain.Pool) domain.ExecutionResult {
	// The pool may have advanced since the proposal was approved. Its
	// lifecycle only moves forward, so a stale action fails here before
	// anything irreversible happens on the vault.
	if !pool.Status.CanTransitionTo(domain.PoolStatusListed) {
		return failedResult(fmt.Sprintf("pool is %s, cannot relist", pool.Status))
	}

	signature, _, err := e.executeVaultTransaction(ctx, prop, pool)
	if err != nil {
		return failedResult(fmt.Sprintf("vault execution failed: %v", err))
	}

	_, err = e.updatePoolFromProposal(ctx, pool.PoolID, func(p *domain.Pool) error {
		if !p.Status.CanTransitionTo(domain.PoolStatusListed) {
			return fmt.Errorf("pool is %s, cannot relist", p.Status)
		}
		p.ResaleListingPriceUSD = prop.Payload.AskingPriceUSD
		p.Status = domain.PoolStatusListed
		return nil
	})
	if err != nil {
		return failedResult(fmt.Sprintf("pool update failed: %v", err))
	}

	return successResult(signature, fmt.Sprintf("listed at %.2f USD", prop.Payload.AskingPriceUSD),
		map[string]string{"listing_price_usd": fmt.Sprintf("%.2f", prop.Payload.AskingPriceUSD)})
}

func (e *Engine) executeAcceptOffer(ctx context.Context, prop *domain.Proposal, pool *domain.Pool) domain.ExecutionResult {
	if !pool.Status.CanTransitionTo(domain.PoolStatusSold) {
		return failedResult(fmt.Sprintf("pool is %s, cannot accept offer", pool.Status))
	}

	signature, _, err := e.executeVaultTransaction(ctx, prop, pool)
	if err != nil {
		return failedResult(fmt.Sprintf("vault execution failed: %v", err))
	}

	now := time.Now().UTC()
	buyer := prop.Payload.BuyerWallet
	_, err = e.updatePoolFromProposal(ctx, pool.PoolID, func(p *domain.Pool) error {
		if !p.Status.CanTransitionTo(domain.PoolStatusSold) {
			return fmt.Errorf("pool is %s, cannot accept offer", p.Status)
		}
		p.ResaleSoldPriceUSD = prop.Payload.OfferAmountUSD
		p.ResaleBuyerWallet = &buyer
		p.ResaleSoldAt = &now
		p.Status = domain.PoolStatusSold
		return nil
	})
	if err != nil {
		return failedResult(fmt.Sprintf("pool update failed: %v", err))
	}

	// Distribution is a separate, subsequent lifecycle step.
	return successResult(signature, fmt.Sprintf("offer accepted at %.2f USD", prop.Payload.OfferAmountUSD),
		map[string]string{
			"sold_price_usd": fmt.Sprintf("%.2f", prop.Payload.OfferAmountUSD),
			"buyer_wallet":   buyer,
		})
}

func (e *Engine) executeChangeThreshold(ctx context.Context, prop *domain.Proposal, pool *domain.Pool) domain.ExecutionResult {
	_, err := e.updatePoolFromProposal(ctx, pool.PoolID, func(p *domain.Pool) error {
		p.SquadThreshold = prop.Payload.NewThreshold
		return nil
	})
	if err != nil {
		return failedResult(fmt.Sprintf("pool update failed: %v", err))
	}
	return successResult("", fmt.Sprintf("threshold changed to %.1f%%", prop.Payload.NewThreshold), nil)
}

func (e *Engine) executeAddMember(ctx context.Context, prop *domain.Proposal, pool *domain.Pool) domain.ExecutionResult {
	wallet := prop.Payload.MemberWallet
	permissions := prop.Payload.MemberPermissions
	if len(permissions) == 0 {
		permissions = vault.FullPermissions
	}

	_, err := e.updatePoolFromProposal(ctx, pool.PoolID, func(p *domain.Pool) error {
		if p.SquadMember(wallet) != nil {
			return fmt.Errorf("wallet %s is already a member", wallet)
		}
		// Ownership comes from the payload, zero when absent. A member
		// added after graduation has no snapshot weight; existing
		// proposals keep their frozen totals either way.
		p.SquadMembers = append(p.SquadMembers, domain.SquadMember{
			Wallet:           wallet,
			OwnershipPercent: prop.Payload.MemberOwnership,
			Permissions:      permissions,
		})
		return nil
	})
	if err != nil {
		return failedResult(fmt.Sprintf("pool update failed: %v", err))
	}
	return successResult("", fmt.Sprintf("member %s added", wallet), nil)
}

func (e *Engine) executeRemoveMember(ctx context.Context, prop *domain.Proposal, pool *domain.Pool) domain.ExecutionResult {
	wallet := prop.Payload.MemberWallet
	_, err := e.updatePoolFromProposal(ctx, pool.PoolID, func(p *domain.Pool) error {
		before := len(p.SquadMembers)
		p.SquadMembers = lo.Reject(p.SquadMembers, func(m domain.SquadMember, _ int) bool {
			return m.Wallet == wallet
		})
		if len(p.SquadMembers) == before {
			return fmt.Errorf("wallet %s is not a member", wallet)
		}
		return nil
	})
	if err != nil {
		return failedResult(fmt.Sprintf("pool update failed: %v", err))
	}
	return successResult("", fmt.Sprintf("member %s removed", wallet), nil)
}

// CancelProposal withdraws a draft or active proposal. Only the proposer
// or an admin may cancel.
func (e *Engine) CancelProposal(ctx context.Context, proposalID, callerWallet string) (*domain.Proposal, error) {
	prop, err := e.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("get proposal %s: %w", proposalID, err)
	}
	if callerWallet != prop.Proposer && !e.policy.IsAdmin(callerWallet) {
		return nil, ErrNotAuthorized
	}

	proposal, err := e.updateProposal(ctx, proposalID, "cancel", func(p *domain.Proposal) error {
		if p.Status != domain.ProposalStatusDraft && p.Status != domain.ProposalStatusActive {
			return ErrNotCancellable
		}
		p.Status = domain.ProposalStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordActivity(ctx, domain.ActivityProposalCancelled, prop.PoolID, proposalID, callerWallet, "")
	if e.metrics != nil {
		e.metrics.ProposalsCancelled.Inc()
	}
	e.logger.Info("proposal cancelled",
		zap.String("proposal_id", proposalID),
		zap.String("caller", callerWallet))
	return proposal, nil
}

// ExpireDueProposals transitions every active proposal whose deadline has
// passed to expired. Returns the number expired. Invoked by the sweeper
// and available as an admin operation.
func (e *Engine) ExpireDueProposals(ctx context.Context, cutoff time.Time) (int, error) {
	due, err := e.proposals.GetActiveBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list due proposals: %w", err)
	}

	expired := 0
	for _, p := range due {
		if _, err := e.expire(ctx, p.ProposalID); err != nil {
			if errors.Is(err, ErrProposalNotActive) {
				continue // lost the race to a vote or cancel, fine
			}
			e.logger.Warn("expire failed",
				zap.String("proposal_id", p.ProposalID),
				zap.Error(err))
			continue
		}
		expired++
		e.recordActivity(ctx, domain.ActivityProposalExpired, p.PoolID, p.ProposalID, "", "")
		if e.metrics != nil {
			e.metrics.ProposalsExpired.Inc()
		}
	}
	return expired, nil
}

// expire transitions one proposal to expired.
func (e *Engine) expire(ctx context.Context, proposalID string) (*domain.Proposal, error) {
	return e.updateProposal(ctx, proposalID, "expire", func(p *domain.Proposal) error {
		if p.Status != domain.ProposalStatusActive {
			return ErrProposalNotActive
		}
		p.Status = domain.ProposalStatusExpired
		return nil
	})
}

// GetProposal retrieves a proposal.
func (e *Engine) GetProposal(ctx context.Context, proposalID string) (*domain.Proposal, error) {
	return e.proposals.GetByID(ctx, proposalID)
}

// ListProposals retrieves all proposals of a pool.
func (e *Engine) ListProposals(ctx context.Context, poolID string) ([]*domain.Proposal, error) {
	return e.proposals.GetByPool(ctx, poolID)
}

// updateProposal runs one read-mutate-write cycle, retrying on version
// conflict with exponential backoff.
func (e *Engine) updateProposal(ctx context.Context, proposalID, operation string, mutate func(*domain.Proposal) error) (*domain.Proposal, error) {
	attempt := func() (*domain.Proposal, error) {
		p, err := e.proposals.GetByID(ctx, proposalID)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("get proposal %s: %w", proposalID, err))
		}
		if err := mutate(p); err != nil {
			return nil, backoff.Permanent(err)
		}
		p.UpdatedAt = time.Now().UTC()
		if err := e.proposals.Update(ctx, p); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				if e.metrics != nil {
					e.metrics.VersionConflicts.WithLabelValues(operation).Inc()
				}
				return nil, err
			}
			return nil, backoff.Permanent(fmt.Errorf("update proposal %s: %w", proposalID, err))
		}
		return p, nil
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(e.config.MaxUpdateRetries)))
}

// updatePoolFromProposal applies a proposal outcome to the pool record,
// retrying on version conflict.
func (e *Engine) updatePoolFromProposal(ctx context.Context, poolID string, mutate func(*domain.Pool) error) (*domain.Pool, error) {
	attempt := func() (*domain.Pool, error) {
		p, err := e.pools.GetByID(ctx, poolID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := mutate(p); err != nil {
			return nil, backoff.Permanent(err)
		}
		p.UpdatedAt = time.Now().UTC()
		if err := e.pools.Update(ctx, p); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return p, nil
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(e.config.MaxUpdateRetries)))
}

// recordActivity appends one audit event, best-effort.
func (e *Engine) recordActivity(ctx context.Context, kind domain.ActivityKind, poolID, proposalID, actor, detail string) {
	if e.activity == nil {
		return
	}
	event := &domain.ActivityEvent{
		EventID:    uuid.NewString(),
		PoolID:     poolID,
		ProposalID: proposalID,
		Kind:       kind,
		Actor:      actor,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
	if err := e.activity.Append(ctx, event); err != nil {
		e.logger.Warn("activity append failed",
			zap.String("proposal_id", proposalID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

func successResult(signature, message string, data map[string]string) domain.ExecutionResult {
	return domain.ExecutionResult{
		ExecutionTx: signature,
		ResultType:  domain.ExecutionResultSuccess,
		Message:     message,
		Data:        data,
	}
}

func failedResult(message string) domain.ExecutionResult {
	return domain.ExecutionResult{
		ResultType: domain.ExecutionResultFailed,
		Message:    message,
	}
}
