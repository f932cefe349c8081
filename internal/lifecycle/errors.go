package lifecycle

import "errors"

// Validation and precondition errors. Each failed precondition maps to its
// own sentinel so callers can branch on the exact reason.
var (
	ErrNotAuthorized = errors.New("caller is not authorized")

	// Invest
	ErrPoolNotOpen        = errors.New("pool is not open for investment")
	ErrInvalidShares      = errors.New("share count must be positive")
	ErrInsufficientShares = errors.New("not enough shares remaining")
	ErrBelowMinimumBuyIn  = errors.New("investment below minimum buy-in")
	ErrAmountMismatch     = errors.New("invested amount does not match share price")
	ErrInvestorCapReached = errors.New("maximum investor count reached")

	// Vendor payment
	ErrNotFilled      = errors.New("pool is not filled")
	ErrAlreadyPaid    = errors.New("vendor already paid")
	ErrPaymentPending = errors.New("vendor payment not yet approved")
	ErrNotPaid        = errors.New("vendor has not been paid")

	// Custody
	ErrCustodyOutOfOrder = errors.New("custody action out of order")

	// Resale / distribution
	ErrPoolNotActive   = errors.New("pool is not active")
	ErrAssetNotStored  = errors.New("asset is not in storage")
	ErrPoolNotListed   = errors.New("pool is not listed for resale")
	ErrPoolNotSold     = errors.New("pool is not sold")
	ErrNotDistributing = errors.New("pool is not distributing")
	ErrNotDistributed  = errors.New("pool is not distributed")

	// Tokenization / graduation / finalization
	ErrTokenAlreadyCreated = errors.New("pool token already created")
	ErrTokenNotCreated     = errors.New("pool token not created")
	ErrAlreadyGraduated    = errors.New("pool already graduated")
	ErrNotGraduated        = errors.New("pool is not graduated")
	ErrAlreadyFinalized    = errors.New("pool already finalized")
	ErrInsufficientHolders = errors.New("not enough eligible token holders")

	// Terminal states
	ErrPoolTerminal      = errors.New("pool is in a terminal state")
	ErrInvalidFailStatus = errors.New("not a terminal failure status")

	// ErrExternalService categorizes failures of the ledger index, the
	// governance vault, or the token service. The engine never retries
	// these automatically.
	ErrExternalService = errors.New("external service error")
)
