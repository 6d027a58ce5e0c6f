package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrMalformedTransaction = errors.New("malformed transaction payload")
	ErrUserRejected         = errors.New("signature request rejected by user")
	ErrSigningFailed        = errors.New("wallet signing failed")
	ErrCombinationFailed    = errors.New("witness combination failed")
	ErrSubmissionFailed     = errors.New("transaction submission failed")
	ErrFlowInFlight         = errors.New("signing flow already in flight")
	ErrWalletUnavailable    = errors.New("wallet not connected")
	ErrLockHeld             = errors.New("lock already held")
)
