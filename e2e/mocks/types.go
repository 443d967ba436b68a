package mocks

import "time"

// ChartBar is one OHLCV row served by the mock chart provider.
type ChartBar struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// SymbolConfig controls what the mock serves for one symbol. Zero
// values mean "behave normally": serve the configured bars as a
// well-formed chart response.
type SymbolConfig struct {
	Bars     []ChartBar
	Timezone string

	// StatusCode forces a bare HTTP error response with this status.
	StatusCode int

	// ErrorCode and ErrorDescription emit a chart error envelope in
	// place of a result, the way the provider reports delisted symbols
	// and range violations.
	ErrorCode        string
	ErrorDescription string

	// NullRows lists bar indexes whose price columns are emitted as
	// null, the way the provider marks rows it has no data for.
	NullRows []int

	// RawBody is served verbatim with a 200 status in place of a chart
	// envelope. Used to exercise decode failures.
	RawBody string

	// Delay is slept before every response for the symbol.
	Delay time.Duration

	// FailuresRemaining serves FailureStatus for that many requests
	// before falling through to the normal response. Used to exercise
	// the retry path.
	FailuresRemaining int
	FailureStatus     int
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method string
	Path   string
	Query  string
}

// GenerateFlatBars returns count bars of unchanging prices ending at
// end, one per step. Flat closes keep the EMAs glued together, so a
// scan over them always completes without emitting a signal.
func GenerateFlatBars(count int, end time.Time, step time.Duration) []ChartBar {
	bars := make([]ChartBar, count)
	start := end.Add(-time.Duration(count-1) * step)
	for i := range bars {
		ts := start.Add(time.Duration(i) * step)
		bars[i] = ChartBar{
			Timestamp: ts.Unix(),
			Open:      100.0,
			High:      100.5,
			Low:       99.5,
			Close:     100.0,
			Volume:    10000,
		}
	}
	return bars
}
