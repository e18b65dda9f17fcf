package claimmarket

import "github.com/pkg/errors"

// Every failure is fatal to the triggering call and is never retried
// internally. Oracle gateway faults pass through without translation.
var (
	ErrInsufficientFunds = errors.New("INSUFFICIENT_FUNDS")
	ErrNotFound          = errors.New("ASSERTION_NOT_FOUND")
	ErrNotActive         = errors.New("ASSERTION_NOT_ACTIVE")
	ErrNotResolved       = errors.New("ASSERTION_NOT_RESOLVED")
	ErrAlreadyWithdrawn  = errors.New("ALREADY_WITHDRAWN")
	ErrSelfDispute       = errors.New("SELF_DISPUTE")
	ErrUnauthorized      = errors.New("UNAUTHORIZED_CALLER")
	ErrNothingToWithdraw = errors.New("NOTHING_TO_WITHDRAW")
	ErrTransferFailed    = errors.New("TRANSFER_FAILED")
)
