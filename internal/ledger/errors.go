package ledger

import "errors"

// Every operation failure surfaces as one of these kinds. They are
// returned to the dispatcher, never allowed to take the service down.
var (
	ErrNotFound         = errors.New("record not found")
	ErrAlreadyValidated = errors.New("purchase already validated")
	ErrNotEligible      = errors.New("validated buyer threshold not met")
	ErrNoPayoutAccount  = errors.New("no payout account on file")
	ErrZeroBalance      = errors.New("no unpaid balance")
	ErrInvalidState     = errors.New("withdrawal is not pending")
	ErrUnauthorized     = errors.New("operator privileges required")
	ErrSelfReferral     = errors.New("self referral is not allowed")
)
