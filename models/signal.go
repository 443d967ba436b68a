package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the side of an emitted signal
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// RejectReason names the first gate that failed when no signal was
// produced. Empty when a signal was emitted.
type RejectReason string

const (
	RejectPolarFormation   RejectReason = "polar_formation"
	RejectEMAPositioning   RejectReason = "ema_positioning"
	RejectTrend            RejectReason = "trend"
	RejectFOMOFilter       RejectReason = "fomo_filter"
	RejectVolatilityFilter RejectReason = "volatility_filter"
	RejectHTFConfirmation  RejectReason = "htf_confirmation"
	RejectInsufficientData RejectReason = "insufficient_indicator_data"
)

// TradePlan carries the advisory price levels attached to a signal.
// Prices are decimal because they are rendered and persisted as money;
// the gate math itself stays in floats.
type TradePlan struct {
	Entry    decimal.Decimal `json:"entry"`
	Stop     decimal.Decimal `json:"stop"`
	Target   decimal.Decimal `json:"target"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Signal is an emitted trade signal. Created only when every gate in a
// branch passes; immutable afterwards.
type Signal struct {
	ID         uuid.UUID         `json:"id"`
	Symbol     string            `json:"symbol"`
	Direction  Direction         `json:"direction"`
	BarTime    time.Time         `json:"bar_time"`
	Price      float64           `json:"price"`
	Indicators IndicatorSnapshot `json:"indicators"`
	Confidence float64           `json:"confidence"`
	Plan       *TradePlan        `json:"plan,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewSignal creates a Signal at the given bar
func NewSignal(symbol string, direction Direction, barTime time.Time, price float64, indicators IndicatorSnapshot, confidence float64) *Signal {
	return &Signal{
		ID:         uuid.New(),
		Symbol:     symbol,
		Direction:  direction,
		BarTime:    barTime,
		Price:      price,
		Indicators: indicators,
		Confidence: confidence,
		CreatedAt:  time.Now(),
	}
}
