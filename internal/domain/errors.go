package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInsufficientFunds   = errors.New("insufficient credits")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderFailure     = errors.New("provider failure")
	ErrRateLimited         = errors.New("rate limited")
	ErrModelResolution     = errors.New("model resolution failed")
	ErrCompositionFailed   = errors.New("asset merge failed")
	ErrRefinementFailed    = errors.New("refinement failed")
)
