package models

import (
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	for _, s := range []string{"1m", "5m", "15m", "30m", "1h"} {
		interval, err := ParseInterval(s)
		if err != nil {
			t.Errorf("ParseInterval(%q) returned error: %v", s, err)
		}
		if string(interval) != s {
			t.Errorf("ParseInterval(%q) = %v, want %v", s, interval, s)
		}
	}

	if _, err := ParseInterval("2m"); err == nil {
		t.Error("ParseInterval(\"2m\") should fail")
	}
	if _, err := ParseInterval(""); err == nil {
		t.Error("ParseInterval(\"\") should fail")
	}
}

func TestInterval_MaxLookback(t *testing.T) {
	if got := Interval1m.MaxLookback(); got != 7*24*time.Hour {
		t.Errorf("1m MaxLookback = %v, want 7 days", got)
	}
	if got := Interval15m.MaxLookback(); got != 60*24*time.Hour {
		t.Errorf("15m MaxLookback = %v, want 60 days", got)
	}
}

func TestInterval_StalenessThreshold(t *testing.T) {
	if got := Interval1m.StalenessThreshold(); got != 2*time.Minute {
		t.Errorf("1m StalenessThreshold = %v, want 2m", got)
	}
	if got := Interval15m.StalenessThreshold(); got != 20*time.Minute {
		t.Errorf("15m StalenessThreshold = %v, want 20m", got)
	}
}

func TestInterval_MinBars(t *testing.T) {
	if got := Interval1m.MinBars(); got != 100 {
		t.Errorf("1m MinBars = %d, want 100", got)
	}
	if got := Interval15m.MinBars(); got != 50 {
		t.Errorf("15m MinBars = %d, want 50", got)
	}
}

func TestSeries_WithBars(t *testing.T) {
	orig := NewSeries("AAPL", Interval1m, "America/New_York", []Bar{
		{Timestamp: time.Now(), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
	})
	orig.MarketOpen = true

	derived := orig.WithBars(nil)

	if derived.Symbol != "AAPL" || derived.Interval != Interval1m {
		t.Error("WithBars should carry over symbol and interval")
	}
	if derived.Timezone != "America/New_York" {
		t.Errorf("Timezone = %v, want America/New_York", derived.Timezone)
	}
	if !derived.MarketOpen {
		t.Error("WithBars should carry over the market-open flag")
	}
	if derived.Len() != 0 {
		t.Errorf("derived Len = %d, want 0", derived.Len())
	}
	if orig.Len() != 1 {
		t.Errorf("original Len = %d, want 1 (receiver must not change)", orig.Len())
	}
}
