package ai

import (
	"errors"

	"github.com/marketpartner/leadscout/pkg/models"
)

// Aliases for the provider contract sentinels, so gateway callers read
// ai.ErrRateLimited rather than reaching into models.
var (
	ErrRateLimited     = models.ErrRateLimited
	ErrUpstream        = models.ErrUpstream
	ErrInvalidResponse = models.ErrInvalidResponse
)

// isTransient reports whether err warrants a backoff before the next retry.
func isTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstream)
}
