package models

import (
	"time"
)

// SymbolState classifies the outcome of one symbol's pipeline run.
// The set is closed; switches over it should not need a default arm.
type SymbolState string

const (
	StateOK               SymbolState = "ok"
	StateEmpty            SymbolState = "empty"
	StateStale            SymbolState = "stale"
	StateInsufficientBars SymbolState = "insufficient_bars"
	StateAPIError         SymbolState = "api_error"
	StateCircuitBreaker   SymbolState = "circuit_breaker"
)

// ErrorCode identifies a failure class in the fetch/validate pipeline.
// Every code is recovered per symbol into a SymbolStatus; none escapes
// the orchestrator.
type ErrorCode string

const (
	ErrPeriodLimitExceeded ErrorCode = "PERIOD_LIMIT_EXCEEDED"
	ErrJSONDecode          ErrorCode = "JSON_DECODE_ERROR"
	ErrEmptyResponse       ErrorCode = "EMPTY_RESPONSE"
	ErrNetworkTimeout      ErrorCode = "NETWORK_TIMEOUT"
	ErrTimezoneMismatch    ErrorCode = "TIMEZONE_MISMATCH"
	ErrStaleData           ErrorCode = "STALE_DATA"
	ErrInsufficientBars    ErrorCode = "INSUFFICIENT_BARS"
	ErrInvalidOHLC         ErrorCode = "INVALID_OHLC"
	ErrCircuitBreaker      ErrorCode = "CIRCUIT_BREAKER"
	ErrSymbolNotFound      ErrorCode = "SYMBOL_NOT_FOUND"
)

// StateForCode maps an error code onto the symbol state it finalizes as
func StateForCode(code ErrorCode) SymbolState {
	switch code {
	case ErrEmptyResponse:
		return StateEmpty
	case ErrStaleData:
		return StateStale
	case ErrInsufficientBars:
		return StateInsufficientBars
	case ErrCircuitBreaker:
		return StateCircuitBreaker
	default:
		return StateAPIError
	}
}

// SymbolStatus is the per-symbol diagnostic record for one scan.
// Created while the symbol is processed and immutable once finalized.
type SymbolStatus struct {
	State         SymbolState `json:"state"`
	Code          ErrorCode   `json:"code,omitempty"`
	Message       string      `json:"message,omitempty"`
	BarsCount     int         `json:"bars_count"`
	LastTimestamp time.Time   `json:"last_timestamp"`
	QualityScore  float64     `json:"quality_score"`
	MarketOpen    bool        `json:"market_open"`
}

// NewOKStatus builds the status for a symbol whose pipeline completed
func NewOKStatus(barsCount int, lastTimestamp time.Time, qualityScore float64, marketOpen bool) SymbolStatus {
	return SymbolStatus{
		State:         StateOK,
		BarsCount:     barsCount,
		LastTimestamp: lastTimestamp,
		QualityScore:  qualityScore,
		MarketOpen:    marketOpen,
	}
}

// NewErrorStatus builds the status for a symbol that failed with a
// taxonomy code. The state is derived from the code.
func NewErrorStatus(code ErrorCode, message string) SymbolStatus {
	return SymbolStatus{
		State:   StateForCode(code),
		Code:    code,
		Message: message,
	}
}

// IsOK reports whether the symbol completed its pipeline
func (s SymbolStatus) IsOK() bool {
	return s.State == StateOK
}
