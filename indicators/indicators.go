package indicators

import (
	"math"
	"time"

	"trend-scan/models"
)

const (
	atrPeriod = 14

	// warmupBars is the minimum series length for a fully valid set:
	// the 50-bar EMA seed plus the 14-bar ATR window.
	warmupBars = 64

	slopeLookback = 3
)

// Compute derives the full indicator set for a series. Values that
// cannot be computed yet stay NaN; short input never panics.
func Compute(series *models.Series, settings models.AlgorithmSettings) *models.IndicatorSet {
	n := series.Len()
	closes := series.Closes()

	set := &models.IndicatorSet{
		Symbol:     series.Symbol,
		Interval:   series.Interval,
		Timestamps: make([]time.Time, n),
	}
	for i, bar := range series.Bars {
		set.Timestamps[i] = bar.Timestamp
	}

	set.EMA5 = EMA(closes, 5)
	set.EMA8 = EMA(closes, 8)
	set.EMA13 = EMA(closes, 13)
	set.EMA21 = EMA(closes, 21)
	set.EMA50 = EMA(closes, 50)
	set.ATR = ATR(series.Bars, atrPeriod)

	// Band arithmetic on NaN inputs yields NaN, which is exactly the
	// warmup marker the columns already use.
	set.ATRLongLine = make([]float64, n)
	set.ATRShortLine = make([]float64, n)
	for i := 0; i < n; i++ {
		band := settings.ATRMultiplier * set.ATR[i]
		set.ATRLongLine[i] = set.EMA21[i] - band
		set.ATRShortLine[i] = set.EMA21[i] + band
	}

	set.Trend5 = ClassifyTrend(set.EMA5, settings.Threshold(5))
	set.Trend8 = ClassifyTrend(set.EMA8, settings.Threshold(8))
	set.Trend21 = ClassifyTrend(set.EMA21, settings.Threshold(21))

	set.Sufficient = n >= warmupBars && set.Snapshot().HasGatingValues()
	return set
}

// EMA computes an exponential moving average column with smoothing
// alpha = 2/(period+1). The value at index period-1 is seeded with the
// simple average of the first period prices; earlier slots are NaN.
func EMA(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(prices) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	out[period-1] = sum / float64(period)

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		out[i] = (prices[i]-out[i-1])*alpha + out[i-1]
	}
	return out
}

// ATR computes the average true range as a simple rolling mean of true
// range over the window. True range needs the prior close, so the
// first valid value lands at index period.
func ATR(bars []models.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(bars) <= period {
		return out
	}

	tr := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		tr[i] = trueRange(bars[i], bars[i-1].Close)
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)

	for i := period + 1; i < len(bars); i++ {
		sum += tr[i] - tr[i-period]
		out[i] = sum / float64(period)
	}
	return out
}

func trueRange(bar models.Bar, prevClose float64) float64 {
	r := bar.High - bar.Low
	if d := math.Abs(bar.High - prevClose); d > r {
		r = d
	}
	if d := math.Abs(bar.Low - prevClose); d > r {
		r = d
	}
	return r
}

// ClassifyTrend labels the direction of an EMA column from its slope at
// the final bar, EMA_t / EMA_{t-3} - 1. Short columns, NaN values and a
// zero divisor all classify as insufficient rather than erroring.
func ClassifyTrend(ema []float64, threshold float64) models.TrendReading {
	i := len(ema) - 1
	if i < slopeLookback {
		return models.TrendReading{State: models.TrendInsufficientData}
	}

	cur, prev := ema[i], ema[i-slopeLookback]
	if math.IsNaN(cur) || math.IsNaN(prev) || prev == 0 {
		return models.TrendReading{State: models.TrendInsufficientData}
	}

	slope := cur/prev - 1
	reading := models.TrendReading{Slope: slope}
	switch {
	case slope >= threshold:
		reading.State = models.TrendRising
	case slope <= -threshold:
		reading.State = models.TrendFalling
	default:
		reading.State = models.TrendSideways
	}
	return reading
}
