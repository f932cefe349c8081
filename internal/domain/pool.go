package domain

import "time"

// PoolStatus is the lifecycle state of a pool.
// Transitions only move forward (see Pool.CanTransitionTo), except into
// the terminal failure states which are reachable from any state.
type PoolStatus string

const (
	PoolStatusOpen         PoolStatus = "open"
	PoolStatusFilled       PoolStatus = "filled"
	PoolStatusFunded       PoolStatus = "funded"
	PoolStatusCustody      PoolStatus = "custody"
	PoolStatusActive       PoolStatus = "active"
	PoolStatusGraduated    PoolStatus = "graduated"
	PoolStatusListed       PoolStatus = "listed"
	PoolStatusSold         PoolStatus = "sold"
	PoolStatusDistributing PoolStatus = "distributing"
	PoolStatusDistributed  PoolStatus = "distributed"
	PoolStatusClosed       PoolStatus = "closed"

	// Terminal failure states, reachable from anywhere.
	PoolStatusFailed PoolStatus = "failed"
	PoolStatusDead   PoolStatus = "dead"
	PoolStatusBurned PoolStatus = "burned"
)

// poolStatusRank orders the forward lifecycle for monotonicity checks.
var poolStatusRank = map[PoolStatus]int{
	PoolStatusOpen:         0,
	PoolStatusFilled:       1,
	PoolStatusFunded:       2,
	PoolStatusCustody:      3,
	PoolStatusActive:       4,
	PoolStatusGraduated:    5,
	PoolStatusListed:       6,
	PoolStatusSold:         7,
	PoolStatusDistributing: 8,
	PoolStatusDistributed:  9,
	PoolStatusClosed:       10,
}

// IsTerminalFailure reports whether s is one of the terminal failure states.
func (s PoolStatus) IsTerminalFailure() bool {
	return s == PoolStatusFailed || s == PoolStatusDead || s == PoolStatusBurned
}

// IsActive reports whether a pool in this status still holds its asset claim.
// Closed and terminal-failure pools release the claim.
func (s PoolStatus) IsActive() bool {
	return !s.IsTerminalFailure() && s != PoolStatusClosed
}

// CanTransitionTo reports whether moving from s to next preserves the
// forward-only lifecycle. Terminal failure states are reachable from any
// non-terminal state and never left.
func (s PoolStatus) CanTransitionTo(next PoolStatus) bool {
	if s.IsTerminalFailure() {
		return false
	}
	if next.IsTerminalFailure() {
		return true
	}
	from, okFrom := poolStatusRank[s]
	to, okTo := poolStatusRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to > from
}

// CustodyStatus tracks the physical asset through the custody workflow.
type CustodyStatus string

const (
	CustodyStatusPending  CustodyStatus = "pending"
	CustodyStatusShipped  CustodyStatus = "shipped"
	CustodyStatusReceived CustodyStatus = "received"
	CustodyStatusVerified CustodyStatus = "verified"
	CustodyStatusStored   CustodyStatus = "stored"
)

// custodyStatusRank orders the custody workflow.
var custodyStatusRank = map[CustodyStatus]int{
	CustodyStatusPending:  0,
	CustodyStatusShipped:  1,
	CustodyStatusReceived: 2,
	CustodyStatusVerified: 3,
	CustodyStatusStored:   4,
}

// Next returns the custody status that follows s, or "" if s is the last one.
func (s CustodyStatus) Next() CustodyStatus {
	switch s {
	case CustodyStatusPending:
		return CustodyStatusShipped
	case CustodyStatusShipped:
		return CustodyStatusReceived
	case CustodyStatusReceived:
		return CustodyStatusVerified
	case CustodyStatusVerified:
		return CustodyStatusStored
	}
	return ""
}

// DistributionStatus tracks the proceeds distribution workflow.
type DistributionStatus string

const (
	DistributionStatusNone      DistributionStatus = "none"
	DistributionStatusProposed  DistributionStatus = "proposed"
	DistributionStatusCompleted DistributionStatus = "completed"
)

// TokenStatus tracks the fractional-ownership token of a pool.
type TokenStatus string

const (
	TokenStatusNone      TokenStatus = "none"
	TokenStatusCreated   TokenStatus = "created"
	TokenStatusGraduated TokenStatus = "graduated"
)

// LiquidityModel selects how resale liquidity is provided.
type LiquidityModel string

const (
	LiquidityModelP2P    LiquidityModel = "p2p"
	LiquidityModelAMM    LiquidityModel = "amm"
	LiquidityModelHybrid LiquidityModel = "hybrid"
)

// FinalizationStep is the persisted saga step of Finalize, so a retry can
// resume after the last committed external action instead of repeating it.
type FinalizationStep string

const (
	FinalizationStepNone             FinalizationStep = ""
	FinalizationStepHolders          FinalizationStep = "holders"
	FinalizationStepVaultCreated     FinalizationStep = "vault_created"
	FinalizationStepAssetTransferred FinalizationStep = "asset_transferred"
	FinalizationStepDone             FinalizationStep = "done"
)

// PlatformRoyaltyRate is the fixed platform cut applied to vendor payment
// and to resale distribution.
const PlatformRoyaltyRate = 0.03

// Participant is one investor position inside a pool, ordered by insertion.
type Participant struct {
	Wallet             string    `json:"wallet"`
	Shares             int64     `json:"shares"`
	OwnershipPercent   float64   `json:"ownership_percent"`
	InvestedUSD        float64   `json:"invested_usd"`
	ProjectedReturnUSD float64   `json:"projected_return_usd"`
	InvestedAt         time.Time `json:"invested_at"`
}

// SquadMember is one governance vault member, snapshotted at graduation.
// OwnershipPercent from this snapshot is the member's frozen vote power.
type SquadMember struct {
	Wallet           string   `json:"wallet"`
	TokenBalance     float64  `json:"token_balance"`
	OwnershipPercent float64  `json:"ownership_percent"`
	Permissions      []string `json:"permissions"`
}

// DistributionEntry is one participant's share of resale proceeds.
type DistributionEntry struct {
	Wallet           string  `json:"wallet"`
	Shares           int64   `json:"shares"`
	OwnershipPercent float64 `json:"ownership_percent"`
	AmountUSD        float64 `json:"amount_usd"`
	ProfitUSD        float64 `json:"profit_usd"`
	ROI              float64 `json:"roi"`
}

// Pool represents one fractionalized physical asset and its funding campaign.
// Corresponds to the pools table; list-valued fields are stored as JSONB so
// every mutation is a single-row conditional write guarded by Version.
type Pool struct {
	PoolID   string
	AssetID  string
	EscrowID *string // originating escrow listing, if any

	// Share accounting. TotalShares and SharePriceUSD are fixed at creation;
	// SharesSold is monotonically non-decreasing while status == open.
	TotalShares     int64
	SharesSold      int64
	SharePriceUSD   float64
	TargetAmountUSD float64
	MinBuyInUSD     float64
	MaxInvestors    int
	ProjectedROI    float64

	Participants []Participant

	Status             PoolStatus
	CustodyStatus      CustodyStatus
	DistributionStatus DistributionStatus
	TokenStatus        TokenStatus
	FinalizationStep   FinalizationStep

	LiquidityModel       LiquidityModel
	AMMLiquidityPercent  float64
	VendorPaymentPercent float64 // derived: 100 minus the platform royalty

	// Tokenization
	BagsTokenMint       *string
	Graduated           bool
	GraduationMarketCap float64

	// Governance. SquadMembers is the graduation-time snapshot; it is the
	// fixed vote-power table for every proposal on this pool.
	SquadMultisigPDA *string
	SquadThreshold   float64
	SquadMembers     []SquadMember

	// Vendor payment
	VendorPaidAt          *time.Time
	VendorPaymentUSD      float64
	VendorPaymentTxIndex  *int64
	CustodyTrackingNumber *string

	// Resale / distribution
	ResaleListingPriceUSD float64
	ResaleSoldPriceUSD    float64
	ResaleBuyerWallet     *string
	ResaleSoldAt          *time.Time
	DistributionAmount    float64
	DistributionRoyalty   float64
	Distributions         []DistributionEntry

	Deleted   bool
	Version   int64 // optimistic concurrency token, bumped on every write
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultSquadThreshold is the governance approval threshold, in percent,
// applied when a pool does not configure its own.
const DefaultSquadThreshold = 60.0

// Participant returns the participant entry for wallet, or nil.
func (p *Pool) Participant(wallet string) *Participant {
	for i := range p.Participants {
		if p.Participants[i].Wallet == wallet {
			return &p.Participants[i]
		}
	}
	return nil
}

// SquadMember returns the snapshot member entry for wallet, or nil.
func (p *Pool) SquadMember(wallet string) *SquadMember {
	for i := range p.SquadMembers {
		if p.SquadMembers[i].Wallet == wallet {
			return &p.SquadMembers[i]
		}
	}
	return nil
}

// RemainingShares returns the shares still available for investment.
func (p *Pool) RemainingShares() int64 {
	return p.TotalShares - p.SharesSold
}

// RecomputeOwnership refreshes every participant's ownership percentage
// from its share count. Called after every participant mutation.
func (p *Pool) RecomputeOwnership() {
	if p.TotalShares == 0 {
		return
	}
	for i := range p.Participants {
		p.Participants[i].OwnershipPercent = float64(p.Participants[i].Shares) / float64(p.TotalShares) * 100
	}
}

// TotalCollectedUSD returns the funds collected from investors so far.
func (p *Pool) TotalCollectedUSD() float64 {
	return float64(p.SharesSold) * p.SharePriceUSD
}
