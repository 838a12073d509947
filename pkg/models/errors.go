package models

import "errors"

// Provider contract errors. Implementations must map upstream failures to
// these sentinels so the gateway can pick the right retry policy.
var (
	// ErrRateLimited is returned when the provider answers 429.
	ErrRateLimited = errors.New("ai provider rate limited")
	// ErrUpstream is returned for provider-side (5xx-class) failures.
	ErrUpstream = errors.New("ai provider upstream error")
	// ErrInvalidResponse is returned when the provider answers with a body
	// the caller cannot use (empty text, no parsable JSON).
	ErrInvalidResponse = errors.New("ai provider returned invalid response")
)
