package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrSigningFailed       = errors.New("signing failed")
	ErrLockHeld            = errors.New("lock already held")
	ErrValidation          = errors.New("validation failed")
	ErrAlreadyResolved     = errors.New("mirror market already resolved")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrReceiptTimeout      = errors.New("receipt wait timed out")
)
