package marketdata

import (
	"fmt"
	"math"
	"sort"

	"trend-scan/models"
	"trend-scan/services"
)

// Drop reasons recorded by the validator
const (
	DropNaNField         = "nan_field"
	DropNonPositivePrice = "non_positive_price"
	DropEnvelope         = "envelope_violation"
	DropNegativeVolume   = "negative_volume"
	DropDuplicate        = "duplicate_timestamp"
)

// volumeSpikeWindow is the trailing-average window used for spike
// detection, and volumeSpikeFactor the multiple that flags a bar.
const (
	volumeSpikeWindow = 20
	volumeSpikeFactor = 10.0
)

// Report is the validator's account of one series: the cleaned series,
// what was dropped and why, and the resulting quality score.
type Report struct {
	Cleaned      *models.Series
	BarsReceived int
	BarsKept     int
	Dropped      map[string]int
	SpikeCount   int
	QualityScore float64
}

// Validate cleans a series and scores its quality. Rows are dropped,
// never corrected. The report is non-nil even when the minimum bar gate
// fails, so callers keep the diagnostics alongside the error.
func Validate(series *models.Series, interval models.Interval) (*Report, error) {
	report := &Report{
		BarsReceived: series.Len(),
		Dropped:      make(map[string]int),
	}

	bars := make([]models.Bar, len(series.Bars))
	copy(bars, series.Bars)

	// Out-of-order timestamps sort ascending before any other rule runs
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	bars = dedupeKeepLast(bars, report)

	cleaned := make([]models.Bar, 0, len(bars))
	for _, bar := range bars {
		if reason, ok := rejectBar(bar); !ok {
			report.Dropped[reason]++
			continue
		}
		cleaned = append(cleaned, bar)
	}

	flagVolumeSpikes(cleaned, report)

	report.BarsKept = len(cleaned)
	report.Cleaned = series.WithBars(cleaned)
	report.QualityScore = qualityScore(report)

	if len(cleaned) < interval.MinBars() {
		return report, services.NewFetchError(models.ErrInsufficientBars, series.Symbol,
			fmt.Errorf("%d bars after cleaning, need %d", len(cleaned), interval.MinBars()))
	}

	return report, nil
}

// dedupeKeepLast collapses duplicate timestamps, keeping the last row
// for each. Input must be sorted.
func dedupeKeepLast(bars []models.Bar, report *Report) []models.Bar {
	if len(bars) < 2 {
		return bars
	}

	out := make([]models.Bar, 0, len(bars))
	for i, bar := range bars {
		if i+1 < len(bars) && bars[i+1].Timestamp.Equal(bar.Timestamp) {
			report.Dropped[DropDuplicate]++
			continue
		}
		out = append(out, bar)
	}
	return out
}

// rejectBar checks one bar against the drop rules, returning the reason
// when it fails.
func rejectBar(bar models.Bar) (string, bool) {
	prices := []float64{bar.Open, bar.High, bar.Low, bar.Close}
	for _, p := range prices {
		if math.IsNaN(p) {
			return DropNaNField, false
		}
	}
	for _, p := range prices {
		if p <= 0 {
			return DropNonPositivePrice, false
		}
	}
	if bar.High < math.Max(bar.Open, bar.Close) || bar.Low > math.Min(bar.Open, bar.Close) {
		return DropEnvelope, false
	}
	if bar.Volume < 0 {
		return DropNegativeVolume, false
	}
	return "", true
}

// flagVolumeSpikes marks bars whose volume exceeds 10x the trailing
// 20-bar average. Flagged bars stay in the series.
func flagVolumeSpikes(bars []models.Bar, report *Report) {
	if len(bars) <= volumeSpikeWindow {
		return
	}

	var sum int64
	for i := 0; i < volumeSpikeWindow; i++ {
		sum += bars[i].Volume
	}

	for i := volumeSpikeWindow; i < len(bars); i++ {
		avg := float64(sum) / volumeSpikeWindow
		if avg > 0 && float64(bars[i].Volume) > volumeSpikeFactor*avg {
			bars[i].VolumeSpike = true
			report.SpikeCount++
		}
		sum += bars[i].Volume - bars[i-volumeSpikeWindow].Volume
	}
}

// qualityScore blends completeness (rows kept out of rows received,
// duplicates included in the penalty) with integrity (well-formed rows
// out of rows received). Both land in [0,1]; weights are 0.5 each.
func qualityScore(report *Report) float64 {
	if report.BarsReceived == 0 {
		return 0
	}

	invalid := 0
	for reason, count := range report.Dropped {
		if reason != DropDuplicate {
			invalid += count
		}
	}

	completeness := float64(report.BarsKept) / float64(report.BarsReceived)
	integrity := float64(report.BarsReceived-invalid) / float64(report.BarsReceived)

	return 0.5*completeness + 0.5*integrity
}
