package models

import (
	"testing"
	"time"
)

func TestStateForCode(t *testing.T) {
	mapping := map[ErrorCode]SymbolState{
		ErrEmptyResponse:       StateEmpty,
		ErrStaleData:           StateStale,
		ErrInsufficientBars:    StateInsufficientBars,
		ErrCircuitBreaker:      StateCircuitBreaker,
		ErrPeriodLimitExceeded: StateAPIError,
		ErrJSONDecode:          StateAPIError,
		ErrNetworkTimeout:      StateAPIError,
		ErrTimezoneMismatch:    StateAPIError,
		ErrInvalidOHLC:         StateAPIError,
		ErrSymbolNotFound:      StateAPIError,
	}

	for code, want := range mapping {
		if got := StateForCode(code); got != want {
			t.Errorf("StateForCode(%v) = %v, want %v", code, got, want)
		}
	}
}

func TestNewErrorStatus(t *testing.T) {
	status := NewErrorStatus(ErrStaleData, "last bar is 7m old")

	if status.State != StateStale {
		t.Errorf("State = %v, want StateStale", status.State)
	}
	if status.Code != ErrStaleData {
		t.Errorf("Code = %v, want ErrStaleData", status.Code)
	}
	if status.IsOK() {
		t.Error("IsOK should be false for an error status")
	}
}

func TestNewOKStatus(t *testing.T) {
	last := time.Now()
	status := NewOKStatus(150, last, 0.97, true)

	if !status.IsOK() {
		t.Error("IsOK should be true")
	}
	if status.BarsCount != 150 {
		t.Errorf("BarsCount = %d, want 150", status.BarsCount)
	}
	if !status.LastTimestamp.Equal(last) {
		t.Errorf("LastTimestamp = %v, want %v", status.LastTimestamp, last)
	}
	if status.QualityScore != 0.97 {
		t.Errorf("QualityScore = %v, want 0.97", status.QualityScore)
	}
	if status.Code != "" {
		t.Errorf("Code = %v, want empty for OK status", status.Code)
	}
}
