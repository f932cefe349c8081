package governance

import "errors"

// Each failed precondition maps to its own sentinel: callers branch on the
// exact reason (an already-voted rejection and a voting-closed rejection
// drive different UI prompts).
var (
	ErrNotAuthorized = errors.New("caller is not authorized")

	// CreateProposal
	ErrPoolNotGraduated   = errors.New("pool has not graduated")
	ErrNoGovernanceVault  = errors.New("pool has no governance vault")
	ErrInvalidType        = errors.New("invalid proposal type")
	ErrInvalidPayload     = errors.New("missing or invalid payload field")
	ErrInvalidDeadline    = errors.New("voting deadline must be in the future")
	ErrNotATokenHolder    = errors.New("caller does not hold the pool token")

	// Vote
	ErrProposalNotActive = errors.New("proposal is not active")
	ErrVotingClosed      = errors.New("voting deadline has passed")
	ErrAlreadyVoted      = errors.New("wallet has already voted")

	// Execute / cancel
	ErrProposalNotApproved = errors.New("proposal is not approved")
	ErrUnsupportedType     = errors.New("unsupported proposal type for execution")
	ErrNotCancellable      = errors.New("proposal can no longer be cancelled")

	// ErrExternalService categorizes ledger index and governance vault
	// failures. Never retried automatically.
	ErrExternalService = errors.New("external service error")
)
