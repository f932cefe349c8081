package domain

import "time"

// ActivityKind classifies an audit event.
type ActivityKind string

const (
	ActivityPoolCreated       ActivityKind = "POOL_CREATED"
	ActivityInvestment        ActivityKind = "INVESTMENT"
	ActivityStatusChanged     ActivityKind = "STATUS_CHANGED"
	ActivityVendorPaid        ActivityKind = "VENDOR_PAID"
	ActivityCustodyAdvanced   ActivityKind = "CUSTODY_ADVANCED"
	ActivityGraduated         ActivityKind = "GRADUATED"
	ActivityFinalized         ActivityKind = "FINALIZED"
	ActivityDistributed       ActivityKind = "DISTRIBUTED"
	ActivityProposalCreated   ActivityKind = "PROPOSAL_CREATED"
	ActivityVoteCast          ActivityKind = "VOTE_CAST"
	ActivityProposalExecuted  ActivityKind = "PROPOSAL_EXECUTED"
	ActivityProposalCancelled ActivityKind = "PROPOSAL_CANCELLED"
	ActivityProposalExpired   ActivityKind = "PROPOSAL_EXPIRED"
)

// ActivityEvent is one append-only audit record of a lifecycle or
// governance transition. Corresponds to the pool_activity table.
type ActivityEvent struct {
	EventID    string
	PoolID     string
	ProposalID string // empty for pure lifecycle events
	Kind       ActivityKind
	Actor      string
	Detail     string
	OccurredAt time.Time
}
