// Package lifecycle owns the pool state machine: investment, fill
// detection, vendor payment, custody tracking, tokenization, graduation,
// finalization, resale, and proceeds distribution.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fracpool/internal/auth"
	"fracpool/internal/domain"
	"fracpool/internal/ledger"
	"fracpool/internal/observability"
	"fracpool/internal/storage"
	"fracpool/internal/tokenmarket"
	"fracpool/internal/vault"
)

// amountTolerance is the rounding tolerance, in USD, between the invested
// amount and shares * sharePriceUSD.
const amountTolerance = 0.01

// Config holds lifecycle engine tunables.
type Config struct {
	// TopHolderLimit caps the ledger holder query at finalization.
	TopHolderLimit int
	// MinHolderBalance is the minimum token balance for vault membership.
	MinHolderBalance float64
	// MaxUpdateRetries bounds the optimistic-version retry loop.
	MaxUpdateRetries int
	// TreasuryVaultID is the platform vault that pays vendors before a
	// pool has its own governance vault.
	TreasuryVaultID string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		TopHolderLimit:   100,
		MinHolderBalance: 1000,
		MaxUpdateRetries: 5,
	}
}

// Engine drives the pool lifecycle state machine. All mutations are
// single-record conditional writes retried on version conflict, so
// concurrent callers are linearized per pool.
type Engine struct {
	pools    storage.PoolStore
	activity storage.ActivityStore
	ledger   ledger.Index
	vault    vault.Vault
	tokens   tokenmarket.Service
	policy   auth.Policy
	metrics  *observability.Metrics
	logger   *zap.Logger
	config   Config
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

// NewEngine creates a lifecycle engine.
func NewEngine(
	pools storage.PoolStore,
	ledgerIndex ledger.Index,
	governanceVault vault.Vault,
	tokens tokenmarket.Service,
	policy auth.Policy,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		pools:  pools,
		ledger: ledgerIndex,
		vault:  governanceVault,
		tokens: tokens,
		policy: policy,
		logger: logger,
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreatePoolParams carries the inputs of CreatePool.
type CreatePoolParams struct {
	AssetID             string
	EscrowID            *string
	TotalShares         int64
	SharePriceUSD       float64
	MinBuyInUSD         float64
	MaxInvestors        int
	ProjectedROI        float64
	LiquidityModel      domain.LiquidityModel
	AMMLiquidityPercent float64
	SquadThreshold      float64
}

// CreatePool opens a new funding campaign for an asset. The store enforces
// that at most one non-deleted pool holds an active claim on the asset.
func (e *Engine) CreatePool(ctx context.Context, params CreatePoolParams) (*domain.Pool, error) {
	if params.AssetID == "" {
		return nil, fmt.Errorf("%w: asset id is required", storage.ErrInvalidInput)
	}
	if params.TotalShares <= 0 {
		return nil, fmt.Errorf("%w: total shares must be positive", storage.ErrInvalidInput)
	}
	if params.SharePriceUSD <= 0 {
		return nil, fmt.Errorf("%w: share price must be positive", storage.ErrInvalidInput)
	}
	if params.MaxInvestors <= 0 {
		return nil, fmt.Errorf("%w: max investors must be positive", storage.ErrInvalidInput)
	}
	model := params.LiquidityModel
	if model == "" {
		model = domain.LiquidityModelP2P
	}
	threshold := params.SquadThreshold
	if threshold <= 0 {
		threshold = domain.DefaultSquadThreshold
	}

	now := time.Now().UTC()
	p := &domain.Pool{
		PoolID:               uuid.NewString(),
		AssetID:              params.AssetID,
		EscrowID:             params.EscrowID,
		TotalShares:          params.TotalShares,
		SharePriceUSD:        params.SharePriceUSD,
		TargetAmountUSD:      float64(params.TotalShares) * params.SharePriceUSD,
		MinBuyInUSD:          params.MinBuyInUSD,
		MaxInvestors:         params.MaxInvestors,
		ProjectedROI:         params.ProjectedROI,
		Status:               domain.PoolStatusOpen,
		CustodyStatus:        domain.CustodyStatusPending,
		DistributionStatus:   domain.DistributionStatusNone,
		TokenStatus:          domain.TokenStatusNone,
		LiquidityModel:       model,
		AMMLiquidityPercent:  params.AMMLiquidityPercent,
		VendorPaymentPercent: (1 - domain.PlatformRoyaltyRate) * 100,
		SquadThreshold:       threshold,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := e.pools.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create pool for asset %s: %w", params.AssetID, err)
	}

	e.recordActivity(ctx, domain.ActivityPoolCreated, p.PoolID, "", "",
		fmt.Sprintf("asset=%s shares=%d price=%.2f", p.AssetID, p.TotalShares, p.SharePriceUSD))
	if e.metrics != nil {
		e.metrics.PoolsCreated.Inc()
	}
	e.logger.Info("pool created",
		zap.String("pool_id", p.PoolID),
		zap.String("asset_id", p.AssetID),
		zap.Int64("total_shares", p.TotalShares))
	return p, nil
}

// Invest buys shares in an open pool. Concurrent investors racing for the
// last shares are serialized by the version-guarded write: a losing writer
// re-reads and re-validates against the fresh share count, so the pool can
// never oversell.
func (e *Engine) Invest(ctx context.Context, poolID, investorWallet string, shares int64, investedUSD float64) (*domain.Pool, error) {
	if err := domain.ValidateAddress(investorWallet); err != nil {
		return nil, fmt.Errorf("%w: investor wallet: %s", storage.ErrInvalidInput, err)
	}
	if shares <= 0 {
		return nil, ErrInvalidShares
	}

	pool, err := e.updatePool(ctx, poolID, "invest", func(p *domain.Pool) error {
		if p.Status != domain.PoolStatusOpen {
			return ErrPoolNotOpen
		}
		if shares > p.RemainingShares() {
			return ErrInsufficientShares
		}
		if investedUSD < p.MinBuyInUSD {
			return ErrBelowMinimumBuyIn
		}
		if math.Abs(investedUSD-float64(shares)*p.SharePriceUSD) > amountTolerance {
			return ErrAmountMismatch
		}

		participant := p.Participant(investorWallet)
		if participant == nil {
			if len(p.Participants) >= p.MaxInvestors {
				return ErrInvestorCapReached
			}
			p.Participants = append(p.Participants, domain.Participant{
				Wallet:     investorWallet,
				InvestedAt: time.Now().UTC(),
			})
			participant = &p.Participants[len(p.Participants)-1]
		}

		participant.Shares += shares
		participant.InvestedUSD += investedUSD
		participant.ProjectedReturnUSD = participant.InvestedUSD * p.ProjectedROI
		p.SharesSold += shares
		p.RecomputeOwnership()

		if p.SharesSold >= p.TotalShares {
			p.Status = domain.PoolStatusFilled
		}
		return nil
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.InvestmentsRejected.WithLabelValues(rejectionReason(err)).Inc()
		}
		return nil, err
	}

	e.recordActivity(ctx, domain.ActivityInvestment, poolID, "", investorWallet,
		fmt.Sprintf("shares=%d amount=%.2f", shares, investedUSD))
	if e.metrics != nil {
		e.metrics.InvestmentsAccepted.Inc()
		e.metrics.SharesSold.Add(float64(shares))
		if pool.Status == domain.PoolStatusFilled {
			e.metrics.StatusTransitions.WithLabelValues(string(domain.PoolStatusFilled)).Inc()
		}
	}
	e.logger.Info("investment accepted",
		zap.String("pool_id", poolID),
		zap.String("wallet", investorWallet),
		zap.Int64("shares", shares),
		zap.Int64("shares_sold", pool.SharesSold),
		zap.String("status", string(pool.Status)))
	return pool, nil
}

// PayVendor submits the vendor payout to the platform treasury vault.
// Admin only. The pool keeps status filled; funding confirmation advances
// it separately once the payment is approved.
func (e *Engine) PayVendor(ctx context.Context, poolID, actor string) (*domain.Pool, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, ErrNotAuthorized
	}

	p, err := e.pools.GetByID(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", poolID, err)
	}
	if p.Status != domain.PoolStatusFilled {
		return nil, ErrNotFilled
	}
	if p.VendorPaidAt != nil {
		return nil, ErrAlreadyPaid
	}

	totalCollected := p.TotalCollectedUSD()
	royalty, vendorPayment := VendorSplit(totalCollected)

	// External boundary: a submission failure is surfaced as-is, never
	// retried. The vault call is not idempotent.
	callStart := time.Now()
	submitted, err := e.vault.SubmitTransaction(ctx, e.config.TreasuryVaultID, []vault.Instruction{
		{
			Program: "treasury",
			Action:  "transfer",
			Params: map[string]string{
				"pool_id":    p.PoolID,
				"amount_usd": formatUSD(vendorPayment),
				"memo":       "vendor payment",
			},
		},
		{
			Program: "treasury",
			Action:  "transfer",
			Params: map[string]string{
				"pool_id":    p.PoolID,
				"amount_usd": formatUSD(royalty),
				"memo":       "platform royalty",
			},
		},
	})
	e.metrics.ObserveExternalCall("vault", "submit_transaction", callStart, err)
	if err != nil {
		return nil, fmt.Errorf("%w: submit vendor payment for pool %s: %v", ErrExternalService, poolID, err)
	}

	now := time.Now().UTC()
	pool, err := e.updatePool(ctx, poolID, "pay_vendor", func(p *domain.Pool) error {
		if p.Status != domain.PoolStatusFilled {
			return ErrNotFilled
		}
		if p.VendorPaidAt != nil {
			return ErrAlreadyPaid
		}
		p.VendorPaidAt = &now
		p.VendorPaymentUSD = vendorPayment
		p.VendorPaymentTxIndex = &submitted.TransactionIndex
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordActivity(ctx, domain.ActivityVendorPaid, poolID, "", actor,
		fmt.Sprintf("payment=%.2f royalty=%.2f tx_index=%d", vendorPayment, royalty, submitted.TransactionIndex))
	if e.metrics != nil {
		e.metrics.VendorPaymentsUSD.Add(vendorPayment)
	}
	e.logger.Info("vendor payment submitted",
		zap.String("pool_id", poolID),
		zap.Float64("vendor_payment_usd", vendorPayment),
		zap.Float64("royalty_usd", royalty),
		zap.Int64("tx_index", submitted.TransactionIndex))
	return pool, nil
}

// ConfirmVendorPayment checks the treasury vault's approval tally for the
// submitted vendor payment and, once approved, advances the pool to
// funded. Admin only.
func (e *Engine) ConfirmVendorPayment(ctx context.Context, poolID, actor string) (*domain.Pool, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, ErrNotAuthorized
	}

	p, err := e.pools.GetByID(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", poolID, err)
	}
	if p.Status != domain.PoolStatusFilled {
		return nil, ErrNotFilled
	}
	if p.VendorPaidAt == nil || p.VendorPaymentTxIndex == nil {
		return nil, ErrNotPaid
	}

	callStart := time.Now()
	status, err := e.vault.GetApprovalStatus(ctx, e.config.TreasuryVaultID, *p.VendorPaymentTxIndex)
	e.metrics.ObserveExternalCall("vault", "approval_status", callStart, err)
	if err != nil {
		return nil, fmt.Errorf("%w: approval status for pool %s: %v", ErrExternalService, poolID, err)
	}
	if status.Approvals < status.Threshold {
		return nil, fmt.Errorf("%w: %d of %d approvals", ErrPaymentPending, status.Approvals, status.Threshold)
	}

	return e.transition(ctx, poolID, actor, domain.PoolStatusFilled, domain.PoolStatusFunded, ErrNotFilled, nil)
}

// SubmitTracking records the vendor's shipment tracking number and starts
// the custody workflow. Admin only.
func (e *Engine) SubmitTracking(ctx context.Context, poolID, actor, trackingNumber string) (*domain.Pool, error) {
	if trackingNumber == "" {
		return nil, fmt.Errorf("%w: tracking number is required", storage.ErrInvalidInput)
	}
	return e.advanceCustody(ctx, poolID, actor, domain.CustodyStatusShipped, func(p *domain.Pool) {
		p.CustodyTrackingNumber = &trackingNumber
		p.Status = domain.PoolStatusCustody
	})
}

// MarkReceived records physical receipt of the asset. Admin only.
func (e *Engine) MarkReceived(ctx context.Context, poolID, actor string) (*domain.Pool, error) {
	return e.advanceCustody(ctx, poolID, actor, domain.CustodyStatusReceived, nil)
}

// VerifyCustody records authentication of the received asset. Admin only.
func (e *Engine) VerifyCustody(ctx context.Context, poolID, actor string) (*domain.Pool, error) {
	return e.advanceCustody(ctx, poolID, actor, domain.CustodyStatusVerified, nil)
}

// StoreAsset records vaulted storage of the verified asset and activates
// the pool. Admin only.
func (e *Engine) StoreAsset(ctx context.Context, poolID, actor string) (*domain.Pool, error) {
	return e.advanceCustody(ctx, poolID, actor, domain.CustodyStatusStored, func(p *domain.Pool) {
		p.Status = domain.PoolStatusActive
	})
}

// advanceCustody performs one guarded custody transition. Each step must
// follow the previous one exactly; out-of-order calls are rejected.
func (e *Engine) advanceCustody(ctx context.Context, poolID, actor string, target domain.CustodyStatus, extra func(*domain.Pool)) (*domain.Pool, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, ErrNotAuthorized
	}

	pool, err := e.updatePool(ctx, poolID, "custody_"+string(target), func(p *domain.Pool) error {
		if p.Status.IsTerminalFailure() {
			return ErrPoolTerminal
		}
		if target == domain.CustodyStatusShipped && p.Status != domain.PoolStatusFunded {
			return fmt.Errorf("%w: pool status is %s", ErrCustodyOutOfOrder, p.Status)
		}
		if p.CustodyStatus.Next() != target {
			return fmt.Errorf("%w: %s cannot advance to %s", ErrCustodyOutOfOrder, p.CustodyStatus, target)
		}
		p.CustodyStatus = target
		if extra != nil {
			extra(p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordActivity(ctx, domain.ActivityCustodyAdvanced, poolID, "", actor, string(target))
	if e.metrics != nil {
		e.metrics.StatusTransitions.WithLabelValues(string(pool.Status)).Inc()
	}
	e.logger.Info("custody advanced",
		zap.String("pool_id", poolID),
		zap.String("custody_status", string(target)),
		zap.String("status", string(pool.Status)))
	return pool, nil
}

// CreatePoolToken mints the fractional-ownership token for an active pool
// via the token service. Admin only.
func (e *Engine) CreatePoolToken(ctx context.Context, poolID, actor, name, symbol, imageURL string) (*domain.Pool, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, ErrNotAuthorized
	}
	if name == "" || symbol == "" {
		return nil, fmt.Errorf("%w: token name and symbol are required", storage.ErrInvalidInput)
	}

	p, err := e.pools.GetByID(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", poolID, err)
	}
	if p.Status != domain.PoolStatusActive {
		return nil, ErrPoolNotActive
	}
	if p.BagsTokenMint != nil {
		return nil, ErrTokenAlreadyCreated
	}

	callStart := time.Now()
	created, err := e.tokens.CreateToken(ctx, tokenmarket.TokenMetadata{
		Name:     name,
		Symbol:   symbol,
		ImageURL: imageURL,
		PoolID:   poolID,
	})
	e.metrics.ObserveExternalCall("tokens", "create_token", callStart, err)
	if err != nil {
		return nil, fmt.Errorf("%w: create token for pool %s: %v", ErrExternalService, poolID, err)
	}

	pool, err := e.updatePool(ctx, poolID, "create_token", func(p *domain.Pool) error {
		if p.BagsTokenMint != nil {
			return ErrTokenAlreadyCreated
		}
		p.BagsTokenMint = &created.TokenMint
		p.TokenStatus = domain.TokenStatusCreated
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("pool token created",
		zap.String("pool_id", poolID),
		zap.String("token_mint", created.TokenMint))
	return pool, nil
}

// Graduate marks the pool's token as traded on the open market. Triggered
// by the token service (webhook or event feed). Rejects repeat calls so
// at-least-once delivery stays safe.
func (e *Engine) Graduate(ctx context.Context, poolID string) (*domain.Pool, error) {
	pool, err := e.updatePool(ctx, poolID, "graduate", func(p *domain.Pool) error {
		if p.Graduated {
			return ErrAlreadyGraduated
		}
		if p.BagsTokenMint == nil {
			return ErrTokenNotCreated
		}
		if !p.Status.CanTransitionTo(domain.PoolStatusGraduated) {
			return fmt.Errorf("%w: cannot graduate from %s", ErrPoolTerminal, p.Status)
		}
		p.Graduated = true
		p.GraduationMarketCap = p.TotalCollectedUSD()
		p.Status = domain.PoolStatusGraduated
		p.TokenStatus = domain.TokenStatusGraduated
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordActivity(ctx, domain.ActivityGraduated, poolID, "", "",
		fmt.Sprintf("market_cap=%.2f", pool.GraduationMarketCap))
	if e.metrics != nil {
		e.metrics.Graduations.Inc()
		e.metrics.StatusTransitions.WithLabelValues(string(domain.PoolStatusGraduated)).Inc()
	}
	e.logger.Info("pool graduated",
		zap.String("pool_id", poolID),
		zap.Float64("market_cap", pool.GraduationMarketCap))
	return pool, nil
}

// ListForResale lists the custodied asset for resale at the given price
// and projects per-participant returns at that price. Admin only.
func (e *Engine) ListForResale(ctx context.Context, poolID, actor string, priceUSD float64) (*domain.Pool, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, ErrNotAuthorized
	}
	if priceUSD <= 0 {
		return nil, fmt.Errorf("%w: listing price must be positive", storage.ErrInvalidInput)
	}

	pool, err := e.updatePool(ctx, poolID, "list_for_resale", func(p *domain.Pool) error {
		if p.Status != domain.PoolStatusActive && p.Status != domain.PoolStatusGraduated {
			return ErrPoolNotActive
		}
		if p.CustodyStatus != domain.CustodyStatusStored {
			return ErrAssetNotStored
		}
		p.ResaleListingPriceUSD = priceUSD
		p.Status = domain.PoolStatusListed
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Projection only, same split as distribution. Not persisted.
	projected := ComputeDistribution(pool, priceUSD)
	e.recordActivity(ctx, domain.ActivityStatusChanged, poolID, "", actor,
		fmt.Sprintf("listed price=%.2f projected_payout=%.2f", priceUSD, projected.NetProceedsUSD))
	if e.metrics != nil {
		e.metrics.StatusTransitions.WithLabelValues(string(domain.PoolStatusListed)).Inc()
	}
	e.logger.Info("pool listed for resale",
		zap.String("pool_id", poolID),
		zap.Float64("price_usd", priceUSD),
		zap.Float64("projected_payout_usd", projected.NetProceedsUSD))
	return pool, nil
}

// MarkSold records the resale of the asset. Admin only.
func (e *Engine) MarkSold(ctx context.Context, poolID, actor string, soldPriceUSD float64, buyerWallet string) (*domain.Pool, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, ErrNotAuthorized
	}
	if soldPriceUSD <= 0 {
		return nil, fmt.Errorf("%w: sold price must be positive", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	pool, err := e.updatePool(ctx, poolID, "mark_sold", func(p *domain.Pool) error {
		if p.Status != domain.PoolStatusListed {
			return ErrPoolNotListed
		}
		p.ResaleSoldPriceUSD = soldPriceUSD
		if buyerWallet != "" {
			p.ResaleBuyerWallet = &buyerWallet
		}
		p.ResaleSoldAt = &now
		p.Status = domain.PoolStatusSold
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordActivity(ctx, domain.ActivityStatusChanged, poolID, "", actor,
		fmt.Sprintf("sold price=%.2f", soldPriceUSD))
	if e.metrics != nil {
		e.metrics.StatusTransitions.WithLabelValues(string(domain.PoolStatusSold)).Inc()
	}
	e.logger.Info("pool sold",
		zap.String("pool_id", poolID),
		zap.Float64("sold_price_usd", soldPriceUSD))
	return pool, nil
}

// Distribute computes the pro-rata payout of resale proceeds and submits
// one batch payment transaction to the governance vault. The breakdown is
// persisted before the vault confirms anything. Admin only.
func (e *Engine) Distribute(ctx context.Context, poolID, actor string) (*domain.Pool, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, ErrNotAuthorized
	}

	p, err := e.pools.GetByID(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", poolID, err)
	}
	if p.Status != domain.PoolStatusSold {
		return nil, ErrPoolNotSold
	}

	plan := ComputeDistribution(p, p.ResaleSoldPriceUSD)

	instructions := make([]vault.Instruction, 0, len(plan.Entries)+1)
	instructions = append(instructions, vault.Instruction{
		Program: "treasury",
		Action:  "transfer",
		Params: map[string]string{
			"pool_id":    p.PoolID,
			"amount_usd": formatUSD(plan.RoyaltyUSD),
			"memo":       "platform royalty",
		},
	})
	for _, entry := range plan.Entries {
		instructions = append(instructions, vault.Instruction{
			Program: "treasury",
			Action:  "transfer",
			Params: map[string]string{
				"pool_id":    p.PoolID,
				"wallet":     entry.Wallet,
				"amount_usd": formatUSD(entry.AmountUSD),
				"memo":       "resale distribution",
			},
		})
	}

	vaultID := e.config.TreasuryVaultID
	if p.SquadMultisigPDA != nil {
		vaultID = *p.SquadMultisigPDA
	}
	callStart := time.Now()
	submitted, err := e.vault.SubmitTransaction(ctx, vaultID, instructions)
	e.metrics.ObserveExternalCall("vault", "submit_transaction", callStart, err)
	if err != nil {
		return nil, fmt.Errorf("%w: submit distribution for pool %s: %v", ErrExternalService, poolID, err)
	}

	pool, err := e.updatePool(ctx, poolID, "distribute", func(p *domain.Pool) error {
		if p.Status != domain.PoolStatusSold {
			return ErrPoolNotSold
		}
		p.Distributions = plan.Entries
		p.DistributionAmount = plan.NetProceedsUSD
		p.DistributionRoyalty = plan.RoyaltyUSD
		p.DistributionStatus = domain.DistributionStatusProposed
		p.Status = domain.PoolStatusDistributing
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordActivity(ctx, domain.ActivityDistributed, poolID, "", actor,
		fmt.Sprintf("net=%.2f royalty=%.2f recipients=%d tx_index=%d",
			plan.NetProceedsUSD, plan.RoyaltyUSD, len(plan.Entries), submitted.TransactionIndex))
	if e.metrics != nil {
		e.metrics.DistributionsProposed.Inc()
		e.metrics.StatusTransitions.WithLabelValues(string(domain.PoolStatusDistributing)).Inc()
	}
	e.logger.Info("distribution proposed",
		zap.String("pool_id", poolID),
		zap.Float64("net_usd", plan.NetProceedsUSD),
		zap.Int("recipients", len(plan.Entries)),
		zap.Int64("tx_index", submitted.TransactionIndex))
	return pool, nil
}

// CompleteDistribution records external confirmation that every payout
// settled. Admin only.
func (e *Engine) CompleteDistribution(ctx context.Context, poolID, actor string) (*domain.Pool, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, ErrNotAuthorized
	}
	pool, err := e.updatePool(ctx, poolID, "complete_distribution", func(p *domain.Pool) error {
		if p.Status != domain.PoolStatusDistributing {
			return ErrNotDistributing
		}
		p.DistributionStatus = domain.DistributionStatusCompleted
		p.Status = domain.PoolStatusDistributed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.StatusTransitions.WithLabelValues(string(domain.PoolStatusDistributed)).Inc()
	}
	e.logger.Info("distribution completed", zap.String("pool_id", poolID))
	return pool, nil
}

// ClosePool retires a fully distributed pool, releasing its asset claim.
// Admin only.
func (e *Engine) ClosePool(ctx context.Context, poolID, actor string) (*domain.Pool, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, ErrNotAuthorized
	}
	return e.transition(ctx, poolID, actor, domain.PoolStatusDistributed, domain.PoolStatusClosed, ErrNotDistributed, nil)
}

// FailPool moves a pool into a terminal failure state. Admin only.
func (e *Engine) FailPool(ctx context.Context, poolID, actor string, target domain.PoolStatus, reason string) (*domain.Pool, error) {
	if !e.policy.IsAdmin(actor) {
		return nil, ErrNotAuthorized
	}
	if !target.IsTerminalFailure() {
		return nil, ErrInvalidFailStatus
	}

	pool, err := e.updatePool(ctx, poolID, "fail", func(p *domain.Pool) error {
		if p.Status.IsTerminalFailure() {
			return ErrPoolTerminal
		}
		p.Status = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordActivity(ctx, domain.ActivityStatusChanged, poolID, "", actor,
		fmt.Sprintf("failed status=%s reason=%s", target, reason))
	if e.metrics != nil {
		e.metrics.StatusTransitions.WithLabelValues(string(target)).Inc()
	}
	e.logger.Warn("pool failed",
		zap.String("pool_id", poolID),
		zap.String("status", string(target)),
		zap.String("reason", reason))
	return pool, nil
}

// SoftDelete hides a pool from reads and releases its asset claim. Admin only.
func (e *Engine) SoftDelete(ctx context.Context, poolID, actor string) error {
	if !e.policy.IsAdmin(actor) {
		return ErrNotAuthorized
	}
	if err := e.pools.SoftDelete(ctx, poolID); err != nil {
		return fmt.Errorf("soft delete pool %s: %w", poolID, err)
	}
	e.logger.Info("pool soft-deleted", zap.String("pool_id", poolID), zap.String("actor", actor))
	return nil
}

// GetPool retrieves a pool.
func (e *Engine) GetPool(ctx context.Context, poolID string) (*domain.Pool, error) {
	return e.pools.GetByID(ctx, poolID)
}

// transition performs one guarded forward status move. mismatchErr is the
// sentinel surfaced when the pool is not in the expected source status.
func (e *Engine) transition(ctx context.Context, poolID, actor string, from, to domain.PoolStatus, mismatchErr error, extra func(*domain.Pool)) (*domain.Pool, error) {
	pool, err := e.updatePool(ctx, poolID, "transition_"+string(to), func(p *domain.Pool) error {
		if p.Status != from {
			return fmt.Errorf("%w: pool is %s", mismatchErr, p.Status)
		}
		p.Status = to
		if extra != nil {
			extra(p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.recordActivity(ctx, domain.ActivityStatusChanged, poolID, "", actor, string(to))
	if e.metrics != nil {
		e.metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	}
	return pool, nil
}

// updatePool runs one read-mutate-write cycle, retrying on version
// conflict with exponential backoff. mutate sees a fresh copy each
// attempt; any error it returns aborts the loop untouched.
func (e *Engine) updatePool(ctx context.Context, poolID, operation string, mutate func(*domain.Pool) error) (*domain.Pool, error) {
	attempt := func() (*domain.Pool, error) {
		p, err := e.pools.GetByID(ctx, poolID)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("get pool %s: %w", poolID, err))
		}
		if err := mutate(p); err != nil {
			return nil, backoff.Permanent(err)
		}
		p.UpdatedAt = time.Now().UTC()
		if err := e.pools.Update(ctx, p); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				if e.metrics != nil {
					e.metrics.VersionConflicts.WithLabelValues(operation).Inc()
				}
				return nil, err
			}
			return nil, backoff.Permanent(fmt.Errorf("update pool %s: %w", poolID, err))
		}
		return p, nil
	}

	pool, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(e.config.MaxUpdateRetries)))
	if err != nil {
		return nil, err
	}
	return pool, nil
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
			zap.String("pool_id", poolID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

// rejectionReason labels an investment failure for metrics.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrPoolNotOpen):
		return "pool_not_open"
	case errors.Is(err, ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ErrBelowMinimumBuyIn):
		return "below_minimum"
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, ErrInvestorCapReached):
		return "investor_cap"
	default:
		return "other"
	}
}

func formatUSD(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
