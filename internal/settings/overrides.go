package settings

import (
	"trend-scan/models"
)

// Overrides is a partial settings document: nil fields keep the base
// value. Scan requests use it to tune a single run without touching the
// persisted settings.
type Overrides struct {
	ATRMultiplier        *float64         `json:"atr_multiplier,omitempty"`
	VolatilityFilter     *float64         `json:"volatility_filter,omitempty"`
	FOMOFilter           *float64         `json:"fomo_filter,omitempty"`
	EMA5RisingThreshold  *float64         `json:"ema5_rising_threshold,omitempty"`
	EMA8RisingThreshold  *float64         `json:"ema8_rising_threshold,omitempty"`
	EMA21RisingThreshold *float64         `json:"ema21_rising_threshold,omitempty"`
	HigherTimeframe      *models.Interval `json:"higher_timeframe,omitempty"`
	ExtendedHours        *bool            `json:"extended_hours,omitempty"`
}

// Apply overlays the set fields onto base and returns the result. The
// caller validates the merged document; Apply itself never rejects.
func (o Overrides) Apply(base models.AlgorithmSettings) models.AlgorithmSettings {
	merged := base
	if o.ATRMultiplier != nil {
		merged.ATRMultiplier = *o.ATRMultiplier
	}
	if o.VolatilityFilter != nil {
		merged.VolatilityFilter = *o.VolatilityFilter
	}
	if o.FOMOFilter != nil {
		merged.FOMOFilter = *o.FOMOFilter
	}
	if o.EMA5RisingThreshold != nil {
		merged.EMA5RisingThreshold = *o.EMA5RisingThreshold
	}
	if o.EMA8RisingThreshold != nil {
		merged.EMA8RisingThreshold = *o.EMA8RisingThreshold
	}
	if o.EMA21RisingThreshold != nil {
		merged.EMA21RisingThreshold = *o.EMA21RisingThreshold
	}
	if o.HigherTimeframe != nil {
		merged.HigherTimeframe = *o.HigherTimeframe
	}
	if o.ExtendedHours != nil {
		merged.ExtendedHours = *o.ExtendedHours
	}
	return merged
}
