package models

import (
	"time"
)

// Bar represents OHLCV price data for one interval of trading
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`

	// VolumeSpike is set by the validator when volume exceeds 10x the
	// trailing average. Flagged bars are kept, not dropped.
	VolumeSpike bool `json:"volume_spike,omitempty"`
}

// Series is an ordered sequence of bars for one symbol and interval.
// Timestamps are strictly increasing with no duplicates once the series
// has passed validation. Pipeline stages never mutate a Series in place;
// each stage derives a new one via WithBars.
type Series struct {
	Symbol   string   `json:"symbol"`
	Interval Interval `json:"interval"`

	// Timezone is the exchange timezone reported by the provider
	// (IANA name, e.g. "America/New_York").
	Timezone string `json:"timezone"`

	// MarketOpen reports whether the exchange was open at assessment
	// time. Set by the staleness guard; false outside trading hours,
	// where the last close is authoritative.
	MarketOpen bool `json:"market_open"`

	Bars []Bar `json:"bars"`
}

// NewSeries creates a Series for a symbol and interval
func NewSeries(symbol string, interval Interval, timezone string, bars []Bar) *Series {
	return &Series{
		Symbol:   symbol,
		Interval: interval,
		Timezone: timezone,
		Bars:     bars,
	}
}

// Len returns the number of bars in the series
func (s *Series) Len() int {
	return len(s.Bars)
}

// Last returns the final bar of the series, or false when empty
func (s *Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// WithBars returns a copy of the series carrying the given bars. The
// receiver is left untouched; metadata (symbol, interval, timezone,
// market-open flag) carries over.
func (s *Series) WithBars(bars []Bar) *Series {
	return &Series{
		Symbol:     s.Symbol,
		Interval:   s.Interval,
		Timezone:   s.Timezone,
		MarketOpen: s.MarketOpen,
		Bars:       bars,
	}
}

// Closes returns the close column of the series
func (s *Series) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}
