package signals

import (
	"github.com/shopspring/decimal"

	"trend-scan/models"
)

// PlanParams carries the account inputs for advisory sizing.
type PlanParams struct {
	// Equity is the configured account equity in dollars.
	Equity float64

	// RiskPercent is the fraction of equity risked per trade (0-1).
	RiskPercent float64

	// MaxPositionPercent caps the position's notional value as a
	// fraction of equity (0-1).
	MaxPositionPercent float64
}

// BuildPlan derives entry, stop and target levels plus a risk-based
// quantity for an emitted signal. Levels round to cents; quantity is
// whole shares. A zero stop distance sizes to zero shares.
func BuildPlan(direction models.Direction, closePrice, atrValue, atrMultiplier float64, params PlanParams) *models.TradePlan {
	band := atrMultiplier * atrValue

	var stopPrice, targetPrice float64
	if direction == models.DirectionLong {
		stopPrice = closePrice - band
		targetPrice = closePrice + 2*band
	} else {
		stopPrice = closePrice + band
		targetPrice = closePrice - 2*band
	}

	entry := decimal.NewFromFloat(closePrice).Round(2)
	stop := decimal.NewFromFloat(stopPrice).Round(2)
	target := decimal.NewFromFloat(targetPrice).Round(2)

	quantity := decimal.Zero
	distance := entry.Sub(stop).Abs()
	if distance.GreaterThan(decimal.Zero) {
		equity := decimal.NewFromFloat(params.Equity)
		riskAmount := equity.Mul(decimal.NewFromFloat(params.RiskPercent))
		quantity = riskAmount.Div(distance).Floor()

		if entry.GreaterThan(decimal.Zero) {
			maxQuantity := equity.Mul(decimal.NewFromFloat(params.MaxPositionPercent)).Div(entry).Floor()
			if quantity.GreaterThan(maxQuantity) {
				quantity = maxQuantity
			}
		}
	}

	return &models.TradePlan{
		Entry:    entry,
		Stop:     stop,
		Target:   target,
		Quantity: quantity,
	}
}
