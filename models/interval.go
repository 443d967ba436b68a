package models

import (
	"fmt"
	"time"
)

// Interval identifies a bar size supported by the pipeline
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
)

// ParseInterval converts a string into a supported Interval
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case Interval1m, Interval5m, Interval15m, Interval30m, Interval1h:
		return Interval(s), nil
	}
	return "", fmt.Errorf("unsupported interval %q", s)
}

// Valid reports whether the interval is one the pipeline supports
func (i Interval) Valid() bool {
	_, err := ParseInterval(string(i))
	return err == nil
}

// Duration returns the bar size as a time.Duration
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	}
	return 0
}

// MaxLookback returns the provider's hard lookback ceiling for the
// interval. Requests beyond the ceiling are rejected before any network
// call is made.
func (i Interval) MaxLookback() time.Duration {
	switch i {
	case Interval1m:
		return 7 * 24 * time.Hour
	case Interval5m, Interval15m, Interval30m:
		return 60 * 24 * time.Hour
	case Interval1h:
		return 730 * 24 * time.Hour
	}
	return 0
}

// StalenessThreshold returns how old the last bar may be, while the
// market is open, before the series is considered stale.
func (i Interval) StalenessThreshold() time.Duration {
	switch i {
	case Interval1m:
		return 2 * time.Minute
	case Interval5m:
		return 10 * time.Minute
	case Interval15m:
		return 20 * time.Minute
	case Interval30m:
		return 40 * time.Minute
	case Interval1h:
		return 75 * time.Minute
	}
	return 0
}

// MinBars returns the minimum cleaned bar count required before
// indicators are attempted for a series of this interval.
func (i Interval) MinBars() int {
	switch i {
	case Interval1m:
		return 100
	case Interval15m:
		return 50
	default:
		return 50
	}
}
