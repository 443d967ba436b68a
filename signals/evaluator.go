package signals

import (
	"math"

	"trend-scan/models"
)

// Evaluation is the outcome of running the gates for one symbol at one
// bar. Signal is nil when no branch passed; Reason then names the first
// failed gate of the branch that progressed furthest.
type Evaluation struct {
	Signal *models.Signal
	Reason models.RejectReason
}

type branchResult struct {
	passed     bool
	failedGate int
	reason     models.RejectReason
}

// Evaluate runs the long and short gate branches over the final bar of
// the fine series with its higher-timeframe confirmation. A bar cannot
// close both above and below its open, so at most one branch can pass.
func Evaluate(fine *models.Series, set *models.IndicatorSet, htf *models.Series, htfSet *models.IndicatorSet, settings models.AlgorithmSettings) Evaluation {
	bar, ok := fine.Last()
	if !ok {
		return Evaluation{Reason: models.RejectInsufficientData}
	}

	snap := set.Snapshot()
	if !set.Sufficient || !snap.HasGatingValues() {
		return Evaluation{Reason: models.RejectInsufficientData}
	}

	htfBar, ok := htf.Last()
	if !ok {
		return Evaluation{Reason: models.RejectInsufficientData}
	}
	htfSnap := htfSet.Snapshot()

	long := evaluateLong(bar, snap, htfBar, htfSnap, settings)
	if long.passed {
		signal := models.NewSignal(fine.Symbol, models.DirectionLong, bar.Timestamp, bar.Close, snap, Confidence(set, settings))
		return Evaluation{Signal: signal}
	}

	short := evaluateShort(bar, snap, htfBar, htfSnap, settings)
	if short.passed {
		signal := models.NewSignal(fine.Symbol, models.DirectionShort, bar.Timestamp, bar.Close, snap, Confidence(set, settings))
		return Evaluation{Signal: signal}
	}

	reason := long.reason
	if short.failedGate > long.failedGate {
		reason = short.reason
	}
	return Evaluation{Reason: reason}
}

func evaluateLong(bar models.Bar, snap models.IndicatorSnapshot, htfBar models.Bar, htfSnap models.IndicatorSnapshot, settings models.AlgorithmSettings) branchResult {
	if !(bar.Close > bar.Open && bar.Close > snap.EMA8 && bar.Close > snap.EMA21) {
		return branchResult{failedGate: 1, reason: models.RejectPolarFormation}
	}
	if !(snap.EMA5 < snap.ATRLongLine) {
		return branchResult{failedGate: 2, reason: models.RejectEMAPositioning}
	}
	if snap.Trend5.State != models.TrendRising || snap.Trend8.State != models.TrendRising || snap.Trend21.State != models.TrendRising {
		return branchResult{failedGate: 3, reason: models.RejectTrend}
	}
	if bar.Close > snap.EMA8*(1+settings.FOMOFilter*snap.ATR/bar.Close) {
		return branchResult{failedGate: 4, reason: models.RejectFOMOFilter}
	}
	if bar.High-bar.Low > settings.VolatilityFilter*snap.ATR {
		return branchResult{failedGate: 5, reason: models.RejectVolatilityFilter}
	}
	if !(htfSnap.EMA5 > htfSnap.EMA8 && bar.Close > htfBar.Close && bar.Close > htfBar.Open) {
		return branchResult{failedGate: 6, reason: models.RejectHTFConfirmation}
	}
	return branchResult{passed: true, failedGate: 7}
}

func evaluateShort(bar models.Bar, snap models.IndicatorSnapshot, htfBar models.Bar, htfSnap models.IndicatorSnapshot, settings models.AlgorithmSettings) branchResult {
	if !(bar.Close < bar.Open && bar.Close < snap.EMA8 && bar.Close < snap.EMA21) {
		return branchResult{failedGate: 1, reason: models.RejectPolarFormation}
	}
	if !(snap.EMA5 > snap.ATRShortLine) {
		return branchResult{failedGate: 2, reason: models.RejectEMAPositioning}
	}
	if snap.Trend5.State != models.TrendFalling || snap.Trend8.State != models.TrendFalling || snap.Trend21.State != models.TrendFalling {
		return branchResult{failedGate: 3, reason: models.RejectTrend}
	}
	if bar.Close < snap.EMA8*(1-settings.FOMOFilter*snap.ATR/bar.Close) {
		return branchResult{failedGate: 4, reason: models.RejectFOMOFilter}
	}
	if bar.High-bar.Low > settings.VolatilityFilter*snap.ATR {
		return branchResult{failedGate: 5, reason: models.RejectVolatilityFilter}
	}
	if !(htfSnap.EMA5 < htfSnap.EMA8 && bar.Close < htfBar.Close && bar.Close < htfBar.Open) {
		return branchResult{failedGate: 6, reason: models.RejectHTFConfirmation}
	}
	return branchResult{passed: true, failedGate: 7}
}

// Confidence maps the three gating slopes into [0,1]: each slope
// magnitude relative to its threshold, capped at 2x, averaged, then
// normalized by the cap. Diagnostic only, never a gate.
func Confidence(set *models.IndicatorSet, settings models.AlgorithmSettings) float64 {
	readings := []struct {
		slope     float64
		threshold float64
	}{
		{set.Trend5.Slope, settings.Threshold(5)},
		{set.Trend8.Slope, settings.Threshold(8)},
		{set.Trend21.Slope, settings.Threshold(21)},
	}

	sum := 0.0
	for _, r := range readings {
		ratio := 2.0
		if r.threshold > 0 {
			ratio = math.Min(math.Abs(r.slope)/r.threshold, 2.0)
		}
		sum += ratio
	}
	return sum / (2.0 * float64(len(readings)))
}
