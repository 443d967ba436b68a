package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanRunStatus represents the status of a scan run
type ScanRunStatus string

const (
	ScanRunStatusRunning   ScanRunStatus = "running"
	ScanRunStatusCompleted ScanRunStatus = "completed"
	ScanRunStatusPartial   ScanRunStatus = "partial"
	ScanRunStatusFailed    ScanRunStatus = "failed"
)

// SymbolResult is one symbol's output for a scan: its final status plus
// whatever the pipeline produced before stopping.
type SymbolResult struct {
	Symbol       string             `json:"symbol"`
	Status       SymbolStatus       `json:"status"`
	Signal       *Signal            `json:"signal,omitempty"`
	Indicators   *IndicatorSnapshot `json:"indicators,omitempty"`
	RejectReason RejectReason       `json:"reject_reason,omitempty"`
	FetchMs      int64              `json:"fetch_ms"`
	AlgoMs       int64              `json:"algo_ms"`
}

// ScanRun represents a single orchestrated scan across a symbol list
type ScanRun struct {
	ID         uuid.UUID         `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Symbols    []string          `json:"symbols"`
	Settings   AlgorithmSettings `json:"settings"`
	Results    []SymbolResult    `json:"results"`

	// Timing buckets: fetch and algorithm time summed across symbols.
	// Tasks run concurrently, so each bucket measures aggregate work,
	// not wall-clock time.
	FetchTimeMs int64 `json:"fetch_time_ms"`
	AlgoTimeMs  int64 `json:"algo_time_ms"`
	DurationMs  int64 `json:"duration_ms"`

	// ErrorCounts is the histogram of taxonomy codes hit during the run
	ErrorCounts map[ErrorCode]int `json:"error_counts,omitempty"`

	Status    ScanRunStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewScanRun creates a running ScanRun for the given symbols
func NewScanRun(symbols []string, settings AlgorithmSettings) *ScanRun {
	now := time.Now()
	return &ScanRun{
		ID:        uuid.New(),
		StartedAt: now,
		Symbols:   symbols,
		Settings:  settings,
		Results:   []SymbolResult{},
		Status:    ScanRunStatusRunning,
		CreatedAt: now,
	}
}

// Finalize records the per-symbol results, derives the run status, and
// builds the error histogram. The run is immutable afterwards.
func (r *ScanRun) Finalize(results []SymbolResult) {
	r.Results = results
	r.FinishedAt = time.Now()
	r.DurationMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()

	counts := make(map[ErrorCode]int)
	ok := 0
	for _, res := range results {
		r.FetchTimeMs += res.FetchMs
		r.AlgoTimeMs += res.AlgoMs
		if res.Status.IsOK() {
			ok++
			continue
		}
		if res.Status.Code != "" {
			counts[res.Status.Code]++
		}
	}
	if len(counts) > 0 {
		r.ErrorCounts = counts
	}

	switch {
	case len(results) == 0 || ok == 0:
		r.Status = ScanRunStatusFailed
	case ok == len(results):
		r.Status = ScanRunStatusCompleted
	default:
		r.Status = ScanRunStatusPartial
	}
}

// Fail marks the run as failed before any symbols were processed
func (r *ScanRun) Fail(err string) {
	r.Status = ScanRunStatusFailed
	r.Error = err
	r.FinishedAt = time.Now()
	r.DurationMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
}

// Signals collects the signals emitted during the run
func (r *ScanRun) Signals() []Signal {
	var signals []Signal
	for _, res := range r.Results {
		if res.Signal != nil {
			signals = append(signals, *res.Signal)
		}
	}
	return signals
}

// OKCount returns how many symbols completed their pipeline
func (r *ScanRun) OKCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Status.IsOK() {
			n++
		}
	}
	return n
}

// IsRunning returns true if the scan run is still in progress
func (r *ScanRun) IsRunning() bool {
	return r.Status == ScanRunStatusRunning
}
