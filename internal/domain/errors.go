package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotImplemented   = errors.New("not implemented")
	ErrOrderRejected    = errors.New("order rejected")
	ErrNoReferencePrice = errors.New("no reference price")
	ErrSigningFailed    = errors.New("signing failed")
	ErrLockHeld         = errors.New("lock already held")
)
