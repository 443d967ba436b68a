package marketdata

import (
	"errors"
	"math"
	"testing"
	"time"

	"trend-scan/models"
	"trend-scan/services"
)

var testBase = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func barAt(ts time.Time, o, h, l, c float64, v int64) models.Bar {
	return models.Bar{Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: v}
}

// cleanBars builds n well-formed bars spaced by step, starting at testBase.
func cleanBars(n int, step time.Duration) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = barAt(testBase.Add(time.Duration(i)*step), 100, 101, 99, 100.5, 1000)
	}
	return bars
}

func TestValidate_CleanSeries(t *testing.T) {
	series := models.NewSeries("AAPL", models.Interval1m, "America/New_York", cleanBars(120, time.Minute))

	report, err := Validate(series, models.Interval1m)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if report.BarsReceived != 120 {
		t.Errorf("BarsReceived = %d, want 120", report.BarsReceived)
	}
	if report.BarsKept != 120 {
		t.Errorf("BarsKept = %d, want 120", report.BarsKept)
	}
	if len(report.Dropped) != 0 {
		t.Errorf("Dropped = %v, want empty", report.Dropped)
	}
	if report.QualityScore != 1.0 {
		t.Errorf("QualityScore = %v, want 1.0", report.QualityScore)
	}
	if report.Cleaned.Len() != 120 {
		t.Errorf("Cleaned.Len() = %d, want 120", report.Cleaned.Len())
	}
}

func TestValidate_DropRules(t *testing.T) {
	poisonTS := testBase.Add(200 * time.Minute)

	tests := []struct {
		name   string
		poison models.Bar
		reason string
	}{
		{
			name:   "nan open",
			poison: barAt(poisonTS, math.NaN(), 101, 99, 100, 1000),
			reason: DropNaNField,
		},
		{
			name:   "nan close",
			poison: barAt(poisonTS, 100, 101, 99, math.NaN(), 1000),
			reason: DropNaNField,
		},
		{
			name:   "zero close",
			poison: barAt(poisonTS, 100, 101, 99, 0, 1000),
			reason: DropNonPositivePrice,
		},
		{
			name:   "negative low",
			poison: barAt(poisonTS, 100, 101, -1, 100, 1000),
			reason: DropNonPositivePrice,
		},
		{
			name:   "high below open",
			poison: barAt(poisonTS, 100, 99.5, 99, 99.2, 1000),
			reason: DropEnvelope,
		},
		{
			name:   "low above close",
			poison: barAt(poisonTS, 100, 101, 100.8, 100.5, 1000),
			reason: DropEnvelope,
		},
		{
			name:   "negative volume",
			poison: barAt(poisonTS, 100, 101, 99, 100, -5),
			reason: DropNegativeVolume,
		},
		{
			name:   "nan takes precedence over non-positive",
			poison: barAt(poisonTS, math.NaN(), 101, 99, 0, 1000),
			reason: DropNaNField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := append(cleanBars(120, time.Minute), tt.poison)
			series := models.NewSeries("AAPL", models.Interval1m, "America/New_York", bars)

			report, err := Validate(series, models.Interval1m)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}

			if report.BarsKept != 120 {
				t.Errorf("BarsKept = %d, want 120", report.BarsKept)
			}
			if got := report.Dropped[tt.reason]; got != 1 {
				t.Errorf("Dropped[%q] = %d, want 1", tt.reason, got)
			}
			if len(report.Dropped) != 1 {
				t.Errorf("Dropped = %v, want only %q", report.Dropped, tt.reason)
			}
		})
	}
}

func TestValidate_SortsOutOfOrder(t *testing.T) {
	bars := cleanBars(120, time.Minute)
	bars[10], bars[50] = bars[50], bars[10]
	series := models.NewSeries("AAPL", models.Interval1m, "America/New_York", bars)

	report, err := Validate(series, models.Interval1m)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cleaned := report.Cleaned.Bars
	for i := 1; i < len(cleaned); i++ {
		if !cleaned[i-1].Timestamp.Before(cleaned[i].Timestamp) {
			t.Fatalf("bar %d (%v) not after bar %d (%v)",
				i, cleaned[i].Timestamp, i-1, cleaned[i-1].Timestamp)
		}
	}
}

func TestValidate_DuplicateKeepsLast(t *testing.T) {
	bars := cleanBars(120, time.Minute)
	revised := bars[50]
	revised.Close = 99.25
	bars = append(bars, revised)
	series := models.NewSeries("AAPL", models.Interval1m, "America/New_York", bars)

	report, err := Validate(series, models.Interval1m)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if report.BarsReceived != 121 {
		t.Errorf("BarsReceived = %d, want 121", report.BarsReceived)
	}
	if report.BarsKept != 120 {
		t.Errorf("BarsKept = %d, want 120", report.BarsKept)
	}
	if got := report.Dropped[DropDuplicate]; got != 1 {
		t.Errorf("Dropped[%q] = %d, want 1", DropDuplicate, got)
	}
	if got := report.Cleaned.Bars[50].Close; got != 99.25 {
		t.Errorf("kept duplicate Close = %v, want 99.25 (last occurrence)", got)
	}
}

func TestValidate_VolumeSpikeFlagged(t *testing.T) {
	bars := cleanBars(120, time.Minute)
	bars[100].Volume = 20000
	series := models.NewSeries("AAPL", models.Interval1m, "America/New_York", bars)

	report, err := Validate(series, models.Interval1m)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if report.SpikeCount != 1 {
		t.Errorf("SpikeCount = %d, want 1", report.SpikeCount)
	}
	if !report.Cleaned.Bars[100].VolumeSpike {
		t.Error("bar 100 not flagged as volume spike")
	}
	if report.BarsKept != 120 {
		t.Errorf("BarsKept = %d, want 120 (spikes are kept, not dropped)", report.BarsKept)
	}
	for i, bar := range report.Cleaned.Bars {
		if i != 100 && bar.VolumeSpike {
			t.Errorf("bar %d unexpectedly flagged", i)
		}
	}
}

func TestValidate_VolumeSpikeBelowThresholdNotFlagged(t *testing.T) {
	bars := cleanBars(120, time.Minute)
	// Exactly 10x the trailing average is not a spike; the rule is strict.
	bars[100].Volume = 10000
	series := models.NewSeries("AAPL", models.Interval1m, "America/New_York", bars)

	report, err := Validate(series, models.Interval1m)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if report.SpikeCount != 0 {
		t.Errorf("SpikeCount = %d, want 0", report.SpikeCount)
	}
}

func TestValidate_VolumeSpikeNeedsFullWindow(t *testing.T) {
	bars := cleanBars(20, time.Minute)
	bars[19].Volume = 1000000
	series := models.NewSeries("AAPL", models.Interval1m, "America/New_York", bars)

	report, err := Validate(series, models.Interval1m)
	if err == nil {
		t.Fatal("Validate() error = nil, want insufficient-bars error")
	}

	if report.SpikeCount != 0 {
		t.Errorf("SpikeCount = %d, want 0 without a full trailing window", report.SpikeCount)
	}
}

func TestValidate_QualityScore(t *testing.T) {
	bars := cleanBars(90, 15*time.Minute)
	for i := 0; i < 6; i++ {
		ts := testBase.Add(time.Duration(90+i) * 15 * time.Minute)
		bars = append(bars, barAt(ts, math.NaN(), 101, 99, 100, 1000))
	}
	for i := 0; i < 4; i++ {
		bars = append(bars, bars[i])
	}
	series := models.NewSeries("AAPL", models.Interval15m, "America/New_York", bars)

	report, err := Validate(series, models.Interval15m)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	// 90 of 100 kept, 6 of 100 malformed: 0.5*0.90 + 0.5*0.94
	want := 0.92
	if math.Abs(report.QualityScore-want) > 1e-9 {
		t.Errorf("QualityScore = %v, want %v", report.QualityScore, want)
	}
}

func TestValidate_MinBarGate(t *testing.T) {
	series := models.NewSeries("AAPL", models.Interval1m, "America/New_York", cleanBars(30, time.Minute))

	report, err := Validate(series, models.Interval1m)
	if err == nil {
		t.Fatal("Validate() error = nil, want insufficient-bars error")
	}

	if got := services.CodeOf(err); got != models.ErrInsufficientBars {
		t.Errorf("CodeOf(err) = %v, want %v", got, models.ErrInsufficientBars)
	}

	var fetchErr *services.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error %v is not a *FetchError", err)
	}
	if fetchErr.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want %q", fetchErr.Symbol, "AAPL")
	}

	if report == nil {
		t.Fatal("report is nil, want diagnostics alongside the error")
	}
	if report.BarsKept != 30 {
		t.Errorf("BarsKept = %d, want 30", report.BarsKept)
	}
	if report.Cleaned == nil {
		t.Error("report.Cleaned is nil")
	}
}

func TestValidate_EmptySeries(t *testing.T) {
	series := models.NewSeries("AAPL", models.Interval1m, "America/New_York", nil)

	report, err := Validate(series, models.Interval1m)
	if err == nil {
		t.Fatal("Validate() error = nil, want insufficient-bars error")
	}

	if report.QualityScore != 0 {
		t.Errorf("QualityScore = %v, want 0 for an empty series", report.QualityScore)
	}
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	bars := cleanBars(120, time.Minute)
	bars[0], bars[1] = bars[1], bars[0]
	first := bars[0].Timestamp
	series := models.NewSeries("AAPL", models.Interval1m, "America/New_York", bars)

	if _, err := Validate(series, models.Interval1m); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if !series.Bars[0].Timestamp.Equal(first) {
		t.Error("input series was reordered in place")
	}
}
