package domain

import "time"

// ProposalType is the kind of governance decision put to vote.
type ProposalType string

const (
	ProposalTypeRelistForSale   ProposalType = "relist_for_sale"
	ProposalTypeAcceptOffer     ProposalType = "accept_offer"
	ProposalTypeChangeThreshold ProposalType = "change_threshold"
	ProposalTypeAddMember       ProposalType = "add_member"
	ProposalTypeRemoveMember    ProposalType = "remove_member"
)

// ValidProposalType reports whether t is a known proposal type.
func ValidProposalType(t ProposalType) bool {
	switch t {
	case ProposalTypeRelistForSale, ProposalTypeAcceptOffer,
		ProposalTypeChangeThreshold, ProposalTypeAddMember, ProposalTypeRemoveMember:
		return true
	}
	return false
}

// ProposalStatus is the lifecycle state of a proposal.
type ProposalStatus string

const (
	ProposalStatusDraft     ProposalStatus = "draft"
	ProposalStatusActive    ProposalStatus = "active"
	ProposalStatusApproved  ProposalStatus = "approved"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusExecuted  ProposalStatus = "executed"
	ProposalStatusCancelled ProposalStatus = "cancelled"
	ProposalStatusExpired   ProposalStatus = "expired"
)

// ExecutionResultType classifies the outcome of an execution attempt.
// It is deliberately decoupled from ProposalStatus: a proposal whose
// underlying action failed still ends up status executed, with the failure
// captured here.
type ExecutionResultType string

const (
	ExecutionResultPending ExecutionResultType = "pending"
	ExecutionResultSuccess ExecutionResultType = "success"
	ExecutionResultFailed  ExecutionResultType = "failed"
)

// VotePowerSource tags where a vote's weight came from: the graduation-time
// snapshot, or a live balance check that found no snapshot entry (weight 0).
type VotePowerSource string

const (
	VotePowerSourceSnapshot VotePowerSource = "snapshot"
	VotePowerSourceLive     VotePowerSource = "live"
)

// ProposalPayload carries the type-specific fields of a proposal.
type ProposalPayload struct {
	// relist_for_sale
	AskingPriceUSD      float64 `json:"asking_price_usd,omitempty"`
	ListingDurationDays int     `json:"listing_duration_days,omitempty"`

	// accept_offer
	OfferAmountUSD float64    `json:"offer_amount_usd,omitempty"`
	BuyerWallet    string     `json:"buyer_wallet,omitempty"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`

	// change_threshold
	NewThreshold float64 `json:"new_threshold,omitempty"`

	// add_member / remove_member
	MemberWallet      string   `json:"member_wallet,omitempty"`
	MemberPermissions []string `json:"member_permissions,omitempty"`
	MemberOwnership   float64  `json:"member_ownership,omitempty"`

	// optional pre-built vault transaction to execute on approval
	VaultTransactionIndex *int64 `json:"vault_transaction_index,omitempty"`
}

// Vote is one wallet's vote on a proposal. A wallet votes at most once per
// proposal, across both ledgers.
type Vote struct {
	Wallet       string          `json:"wallet"`
	TokenBalance float64         `json:"token_balance"`
	VotePower    float64         `json:"vote_power"`
	PowerSource  VotePowerSource `json:"power_source"`
	VotedAt      time.Time       `json:"voted_at"`
}

// ExecutionResult records the outcome of an execution attempt.
type ExecutionResult struct {
	ExecutedAt  time.Time           `json:"executed_at"`
	ExecutedBy  string              `json:"executed_by"`
	ExecutionTx string              `json:"execution_tx,omitempty"`
	ResultType  ExecutionResultType `json:"result_type"`
	Message     string              `json:"message,omitempty"`
	Data        map[string]string   `json:"data,omitempty"`
}

// Proposal represents one governance decision submitted to token holders
// after a pool has graduated. Never physically deleted: it is an auditable
// governance record (soft delete only).
type Proposal struct {
	ProposalID string
	PoolID     string
	Proposer   string
	Type       ProposalType
	Payload    ProposalPayload

	// Voting config, frozen at creation. TotalVotePower is the sum of the
	// snapshot members' ownership percentages, never live-recomputed.
	ApprovalThreshold float64
	VotingDeadline    time.Time
	TotalVotePower    float64

	VotesFor     []Vote
	VotesAgainst []Vote

	// Cached aggregates; always recomputed by summing the full ledgers.
	ForVotePower     float64
	AgainstVotePower float64
	ForVoteCount     int
	AgainstVoteCount int

	Status ProposalStatus
	Result *ExecutionResult

	Deleted   bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasVoted reports whether wallet already appears in either vote ledger.
func (p *Proposal) HasVoted(wallet string) bool {
	for _, v := range p.VotesFor {
		if v.Wallet == wallet {
			return true
		}
	}
	for _, v := range p.VotesAgainst {
		if v.Wallet == wallet {
			return true
		}
	}
	return false
}

// RecomputeTallies refreshes the cached aggregates from the vote ledgers.
// Summing the full ledger on every vote avoids incremental drift.
func (p *Proposal) RecomputeTallies() {
	p.ForVotePower, p.AgainstVotePower = 0, 0
	for _, v := range p.VotesFor {
		p.ForVotePower += v.VotePower
	}
	for _, v := range p.VotesAgainst {
		p.AgainstVotePower += v.VotePower
	}
	p.ForVoteCount = len(p.VotesFor)
	p.AgainstVoteCount = len(p.VotesAgainst)
}

// ThresholdReached reports whether the for-votes carry enough weight to
// approve the proposal. With TotalVotePower == 0 the threshold is treated
// as unreachable; such a proposal can only end by cancellation or expiry.
func (p *Proposal) ThresholdReached() bool {
	if p.TotalVotePower <= 0 {
		return false
	}
	return p.ForVotePower/p.TotalVotePower*100 >= p.ApprovalThreshold
}
