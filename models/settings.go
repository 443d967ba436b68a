package models

import (
	"fmt"
)

// AlgorithmSettings is the user-tunable parameter set for the indicator
// engine and signal evaluator. Invalid values are configuration errors
// and fatal before any fetching begins.
type AlgorithmSettings struct {
	// ATRMultiplier scales the ATR band lines around EMA21.
	ATRMultiplier float64 `json:"atr_multiplier"`

	// VolatilityFilter rejects bars whose high-low range exceeds this
	// many ATRs.
	VolatilityFilter float64 `json:"volatility_filter"`

	// FOMOFilter rejects entries extended too far beyond EMA8, scaled
	// by ATR relative to price.
	FOMOFilter float64 `json:"fomo_filter"`

	// Per-EMA slope thresholds for the rising/falling classification.
	EMA5RisingThreshold  float64 `json:"ema5_rising_threshold"`
	EMA8RisingThreshold  float64 `json:"ema8_rising_threshold"`
	EMA21RisingThreshold float64 `json:"ema21_rising_threshold"`

	// HigherTimeframe is the confirmation interval derived by
	// resampling the fine series.
	HigherTimeframe Interval `json:"higher_timeframe"`

	// ExtendedHours includes pre/post-market sessions in the
	// market-open window and in fetch requests.
	ExtendedHours bool `json:"extended_hours"`
}

// DefaultAlgorithmSettings returns the shipped defaults
func DefaultAlgorithmSettings() AlgorithmSettings {
	return AlgorithmSettings{
		ATRMultiplier:        2.0,
		VolatilityFilter:     2.5,
		FOMOFilter:           1.0,
		EMA5RisingThreshold:  0.02,
		EMA8RisingThreshold:  0.01,
		EMA21RisingThreshold: 0.005,
		HigherTimeframe:      Interval15m,
		ExtendedHours:        true,
	}
}

// Validate checks every field against its allowed range
func (a AlgorithmSettings) Validate() error {
	if a.ATRMultiplier < 0.5 || a.ATRMultiplier > 10.0 {
		return fmt.Errorf("atr_multiplier must be between 0.5 and 10.0, got %v", a.ATRMultiplier)
	}
	if a.VolatilityFilter < 0.5 || a.VolatilityFilter > 5.0 {
		return fmt.Errorf("volatility_filter must be between 0.5 and 5.0, got %v", a.VolatilityFilter)
	}
	if a.FOMOFilter < 0 {
		return fmt.Errorf("fomo_filter must be non-negative, got %v", a.FOMOFilter)
	}
	thresholds := map[string]float64{
		"ema5_rising_threshold":  a.EMA5RisingThreshold,
		"ema8_rising_threshold":  a.EMA8RisingThreshold,
		"ema21_rising_threshold": a.EMA21RisingThreshold,
	}
	for name, v := range thresholds {
		if v < 0.0 || v > 0.05 {
			return fmt.Errorf("%s must be between 0.0 and 0.05, got %v", name, v)
		}
	}
	switch a.HigherTimeframe {
	case Interval5m, Interval15m, Interval30m, Interval1h:
	default:
		return fmt.Errorf("higher_timeframe must be one of 5m, 15m, 30m, 1h, got %q", a.HigherTimeframe)
	}
	return nil
}

// Threshold returns the slope threshold configured for an EMA period
func (a AlgorithmSettings) Threshold(period int) float64 {
	switch period {
	case 5:
		return a.EMA5RisingThreshold
	case 8:
		return a.EMA8RisingThreshold
	case 21:
		return a.EMA21RisingThreshold
	}
	return 0
}
