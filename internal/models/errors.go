package models

import (
	"errors"
	"net/http"
)

// Pipeline error taxonomy. Stages wrap these with fmt.Errorf("...: %w", ...) and
// callers match them with errors.Is.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrEmptyIndex          = errors.New("empty index")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrModelLoad           = errors.New("model load error")
	ErrSynthesisFailed     = errors.New("synthesis failed")
)

// ErrorForStatus maps an HTTP status returned by a remote model provider to
// the taxonomy: 429 is ErrRateLimited, 400 and 422 are ErrInvalidInput, and
// everything else is ErrProviderUnavailable.
func ErrorForStatus(code int) error {
	switch code {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalidInput
	default:
		return ErrProviderUnavailable
	}
}
