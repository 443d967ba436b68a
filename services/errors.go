package services

import (
	"errors"
	"fmt"

	"trend-scan/models"
)

// FetchError is a classified failure from the market data pipeline. It
// carries the taxonomy code so callers can map it onto a symbol status
// without string matching.
type FetchError struct {
	Code   models.ErrorCode
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Symbol, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Symbol, e.Code)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError builds a FetchError wrapping an underlying cause
func NewFetchError(code models.ErrorCode, symbol string, err error) *FetchError {
	return &FetchError{Code: code, Symbol: symbol, Err: err}
}

// CodeOf extracts the taxonomy code from an error chain. Unclassified
// errors map to NETWORK_TIMEOUT, the catch-all for transport failures.
func CodeOf(err error) models.ErrorCode {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return models.ErrNetworkTimeout
}

// IsRetryable reports whether a failed fetch is worth retrying. Codes
// that describe the request itself rather than a transient condition
// never succeed on retry.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case models.ErrPeriodLimitExceeded, models.ErrSymbolNotFound:
		return false
	}
	return true
}
