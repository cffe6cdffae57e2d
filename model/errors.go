package model

import "errors"

var (
	ErrUnsupportedReference = errors.New("unsupported channel reference")
	ErrNotFound             = errors.New("channel not found")
	ErrProviderUnavailable  = errors.New("catalog provider unavailable")
	ErrProviderFatal        = errors.New("catalog provider failed")
	ErrRateLimited          = errors.New("rate limited upstream")
	ErrMediaFetchFailed     = errors.New("media fetch failed")
	ErrMalformedEntry       = errors.New("malformed catalog entry")
	ErrBusy                 = errors.New("a run of this kind is already in progress")
	ErrOutputDirLost        = errors.New("output directory is no longer available")
	ErrRunNotFound          = errors.New("run not found")
)

// ProviderError wraps a catalog failure with the provider and channel it concerns.
type ProviderError struct {
	Provider string
	Channel  string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + " listing " + e.Channel + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }
