// Package mocks provides an HTTP mock of the chart provider for E2E tests.
package mocks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// chartPathPrefix matches the provider's chart endpoint.
const chartPathPrefix = "/v8/finance/chart/"

// MockChartServer serves provider-shaped chart JSON for configured
// symbols. Symbols without a configuration get a default flat series
// long enough to clear the minimum-bar gate.
type MockChartServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	symbols     map[string]*SymbolConfig
	defaultBars []ChartBar

	// Request tracking for assertions
	requestLog []RequestLog
}

// NewMockChartServer creates a mock provider with 130 minutes of flat
// default bars ending at the current minute. Ending at "now" keeps the
// staleness rule satisfied no matter when the tests run.
func NewMockChartServer() *MockChartServer {
	m := &MockChartServer{
		symbols:     make(map[string]*SymbolConfig),
		defaultBars: GenerateFlatBars(130, time.Now().Truncate(time.Minute), time.Minute),
		requestLog:  make([]RequestLog, 0),
	}
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockChartServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockChartServer) Close() {
	m.server.Close()
}

// ServeHTTP implements http.Handler. Only the chart endpoint is routed;
// everything else is a 404.
func (m *MockChartServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
	})
	m.mu.Unlock()

	if !strings.HasPrefix(r.URL.Path, chartPathPrefix) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, chartPathPrefix)
	m.handleChart(w, r, symbol)
}

// SetSymbol replaces the full configuration for a symbol.
func (m *MockChartServer) SetSymbol(symbol string, cfg SymbolConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols[symbol] = &cfg
}

// SetSymbolBars configures the bars served for a symbol.
func (m *MockChartServer) SetSymbolBars(symbol string, bars []ChartBar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbolConfig(symbol).Bars = bars
}

// SetSymbolStatus makes every request for the symbol return a bare
// HTTP error with the given status.
func (m *MockChartServer) SetSymbolStatus(symbol string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbolConfig(symbol).StatusCode = status
}

// SetSymbolError makes the symbol return a chart error envelope.
func (m *MockChartServer) SetSymbolError(symbol, code, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := m.symbolConfig(symbol)
	cfg.ErrorCode = code
	cfg.ErrorDescription = description
}

// SetSymbolRawBody serves the given body verbatim with a 200 status,
// bypassing envelope assembly.
func (m *MockChartServer) SetSymbolRawBody(symbol, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbolConfig(symbol).RawBody = body
}

// SetSymbolDelay delays every response for the symbol.
func (m *MockChartServer) SetSymbolDelay(symbol string, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbolConfig(symbol).Delay = delay
}

// SetSymbolFailures makes the next n requests for the symbol fail with
// the given status before the symbol recovers.
func (m *MockChartServer) SetSymbolFailures(symbol string, n, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := m.symbolConfig(symbol)
	cfg.FailuresRemaining = n
	cfg.FailureStatus = status
}

// symbolConfig returns the symbol's config, creating an empty one if
// needed. Callers must hold the write lock.
func (m *MockChartServer) symbolConfig(symbol string) *SymbolConfig {
	cfg, ok := m.symbols[symbol]
	if !ok {
		cfg = &SymbolConfig{}
		m.symbols[symbol] = cfg
	}
	return cfg
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockChartServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// RequestCount returns how many chart requests were made for a symbol.
func (m *MockChartServer) RequestCount(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, entry := range m.requestLog {
		if entry.Path == chartPathPrefix+symbol {
			n++
		}
	}
	return n
}

// ClearRequestLog clears the request log.
func (m *MockChartServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = make([]RequestLog, 0)
}

func (m *MockChartServer) handleChart(w http.ResponseWriter, r *http.Request, symbol string) {
	m.mu.Lock()
	cfg, configured := m.symbols[symbol]
	if configured && cfg.FailuresRemaining > 0 {
		cfg.FailuresRemaining--
		status := cfg.FailureStatus
		delay := cfg.Delay
		m.mu.Unlock()
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		http.Error(w, "injected failure", status)
		return
	}

	var snapshot SymbolConfig
	if configured {
		snapshot = *cfg
	}
	m.mu.Unlock()

	if snapshot.Delay > 0 {
		time.Sleep(snapshot.Delay)
	}

	if snapshot.StatusCode != 0 {
		http.Error(w, http.StatusText(snapshot.StatusCode), snapshot.StatusCode)
		return
	}

	if snapshot.RawBody != "" {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(snapshot.RawBody))
		return
	}

	if snapshot.ErrorCode != "" {
		writeJSON(w, map[string]interface{}{
			"chart": map[string]interface{}{
				"result": nil,
				"error": map[string]string{
					"code":        snapshot.ErrorCode,
					"description": snapshot.ErrorDescription,
				},
			},
		})
		return
	}

	bars := snapshot.Bars
	if bars == nil {
		bars = m.defaultBars
	}
	timezone := snapshot.Timezone
	if timezone == "" {
		timezone = "America/New_York"
	}

	writeJSON(w, chartEnvelope(symbol, timezone, r.URL.Query().Get("interval"), bars, snapshot.NullRows))
}

// chartEnvelope assembles the provider's columnar response shape, with
// the price columns of any null row emitted as JSON null.
func chartEnvelope(symbol, timezone, granularity string, bars []ChartBar, nullRows []int) map[string]interface{} {
	nulls := make(map[int]bool, len(nullRows))
	for _, idx := range nullRows {
		nulls[idx] = true
	}

	timestamps := make([]int64, len(bars))
	opens := make([]*float64, len(bars))
	highs := make([]*float64, len(bars))
	lows := make([]*float64, len(bars))
	closes := make([]*float64, len(bars))
	volumes := make([]*int64, len(bars))

	for i := range bars {
		bar := bars[i]
		timestamps[i] = bar.Timestamp
		if nulls[i] {
			continue
		}
		opens[i] = &bar.Open
		highs[i] = &bar.High
		lows[i] = &bar.Low
		closes[i] = &bar.Close
		volumes[i] = &bar.Volume
	}

	var lastTimestamp int64
	if len(bars) > 0 {
		lastTimestamp = bars[len(bars)-1].Timestamp
	}

	return map[string]interface{}{
		"chart": map[string]interface{}{
			"result": []map[string]interface{}{
				{
					"meta": map[string]interface{}{
						"symbol":               symbol,
						"exchangeTimezoneName": timezone,
						"timezone":             timezone,
						"gmtoffset":            -18000,
						"regularMarketTime":    lastTimestamp,
						"dataGranularity":      granularity,
					},
					"timestamp": timestamps,
					"indicators": map[string]interface{}{
						"quote": []map[string]interface{}{
							{
								"open":   opens,
								"high":   highs,
								"low":    lows,
								"close":  closes,
								"volume": volumes,
							},
						},
					},
				},
			},
			"error": nil,
		},
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
