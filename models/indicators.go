package models

import (
	"math"
	"time"
)

// TrendState classifies the slope of an EMA over its lookback window
type TrendState string

const (
	TrendRising           TrendState = "rising"
	TrendFalling          TrendState = "falling"
	TrendSideways         TrendState = "sideways"
	TrendInsufficientData TrendState = "insufficient_data"
)

// TrendReading is one EMA's slope classification at a bar
type TrendReading struct {
	State TrendState `json:"state"`
	Slope float64    `json:"slope"`
}

// IndicatorSet holds per-bar indicator columns computed from one Series.
// Column values that cannot be computed yet (warmup) are NaN. The set is
// derived data: recomputed every scan and never persisted apart from the
// snapshot embedded in results.
type IndicatorSet struct {
	Symbol     string
	Interval   Interval
	Timestamps []time.Time

	EMA5  []float64
	EMA8  []float64
	EMA13 []float64
	EMA21 []float64
	EMA50 []float64

	ATR          []float64
	ATRLongLine  []float64
	ATRShortLine []float64

	// Trend readings for the final bar of the series. The three gating
	// EMAs are the only ones the evaluator classifies.
	Trend5  TrendReading
	Trend8  TrendReading
	Trend21 TrendReading

	// Sufficient is false when the series is shorter than the warmup
	// requirement (50-bar EMA seed + 14-bar ATR window) and the final
	// bar's values are not all valid.
	Sufficient bool
}

// Len returns the number of bars the set covers
func (s *IndicatorSet) Len() int {
	return len(s.Timestamps)
}

// Snapshot materializes the final bar's row for embedding in results
func (s *IndicatorSet) Snapshot() IndicatorSnapshot {
	n := len(s.Timestamps)
	if n == 0 {
		return IndicatorSnapshot{
			Trend5:  TrendReading{State: TrendInsufficientData},
			Trend8:  TrendReading{State: TrendInsufficientData},
			Trend21: TrendReading{State: TrendInsufficientData},
		}
	}
	i := n - 1
	return IndicatorSnapshot{
		Timestamp:    s.Timestamps[i],
		EMA5:         s.EMA5[i],
		EMA8:         s.EMA8[i],
		EMA13:        s.EMA13[i],
		EMA21:        s.EMA21[i],
		EMA50:        s.EMA50[i],
		ATR:          s.ATR[i],
		ATRLongLine:  s.ATRLongLine[i],
		ATRShortLine: s.ATRShortLine[i],
		Trend5:       s.Trend5,
		Trend8:       s.Trend8,
		Trend21:      s.Trend21,
		Sufficient:   s.Sufficient,
	}
}

// IndicatorSnapshot is the final-bar view of an IndicatorSet. This is
// what signals embed and what symbol results report.
type IndicatorSnapshot struct {
	Timestamp    time.Time    `json:"timestamp"`
	EMA5         float64      `json:"ema5"`
	EMA8         float64      `json:"ema8"`
	EMA13        float64      `json:"ema13"`
	EMA21        float64      `json:"ema21"`
	EMA50        float64      `json:"ema50"`
	ATR          float64      `json:"atr"`
	ATRLongLine  float64      `json:"atr_long_line"`
	ATRShortLine float64      `json:"atr_short_line"`
	Trend5       TrendReading `json:"trend5"`
	Trend8       TrendReading `json:"trend8"`
	Trend21      TrendReading `json:"trend21"`
	Sufficient   bool         `json:"sufficient"`
}

// HasGatingValues reports whether the values the evaluator gates on
// (EMA5/8/21, ATR, band lines) are all present at the snapshot bar.
func (s IndicatorSnapshot) HasGatingValues() bool {
	for _, v := range []float64{s.EMA5, s.EMA8, s.EMA21, s.ATR, s.ATRLongLine, s.ATRShortLine} {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}
