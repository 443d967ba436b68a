package marketdata

import (
	"context"
	"fmt"
	"time"

	"trend-scan/models"
	"trend-scan/services"
)

// HoursGuard decides whether a fetched series is current enough to
// trust, exchange-timezone aware. Outside trading hours the last close
// is authoritative and no staleness rule applies.
type HoursGuard struct {
	calendar  services.CalendarSource
	preOpen   wallClock
	postClose wallClock
}

type wallClock struct {
	hour   int
	minute int
}

func parseWallClock(s string) (wallClock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return wallClock{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return wallClock{hour: t.Hour(), minute: t.Minute()}, nil
}

func (w wallClock) on(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), w.hour, w.minute, 0, 0, loc)
}

// NewHoursGuard creates a guard over the given calendar. preOpen and
// postClose bound the extended-hours window ("04:00", "20:00").
func NewHoursGuard(calendar services.CalendarSource, preOpen, postClose string) (*HoursGuard, error) {
	pre, err := parseWallClock(preOpen)
	if err != nil {
		return nil, err
	}
	post, err := parseWallClock(postClose)
	if err != nil {
		return nil, err
	}
	return &HoursGuard{
		calendar:  calendar,
		preOpen:   pre,
		postClose: post,
	}, nil
}

// Assess normalizes the series to the exchange timezone, determines
// whether the market is open at now, and enforces the staleness rule
// while it is. The returned series carries the market-open flag; the
// input is never mutated.
func (g *HoursGuard) Assess(ctx context.Context, series *models.Series, interval models.Interval, now time.Time, extendedHours bool) (*models.Series, error) {
	if series.Len() == 0 {
		return nil, services.NewFetchError(models.ErrEmptyResponse, series.Symbol,
			fmt.Errorf("no bars to assess"))
	}

	loc, err := time.LoadLocation(series.Timezone)
	if err != nil {
		return nil, services.NewFetchError(models.ErrTimezoneMismatch, series.Symbol,
			fmt.Errorf("unloadable exchange timezone %q: %w", series.Timezone, err))
	}

	// The provider's timezone must agree with the configured exchange
	// calendar. Compare UTC offsets rather than names so aliases of the
	// same zone pass.
	_, seriesOffset := now.In(loc).Zone()
	_, calendarOffset := now.In(g.calendar.Location()).Zone()
	if seriesOffset != calendarOffset {
		return nil, services.NewFetchError(models.ErrTimezoneMismatch, series.Symbol,
			fmt.Errorf("provider timezone %q conflicts with exchange calendar %q",
				series.Timezone, g.calendar.Location()))
	}

	normalized := make([]models.Bar, len(series.Bars))
	copy(normalized, series.Bars)
	for i := range normalized {
		normalized[i].Timestamp = normalized[i].Timestamp.In(loc)
	}

	open := g.marketOpen(ctx, now.In(loc), extendedHours)

	if open {
		last := normalized[len(normalized)-1]
		age := now.Sub(last.Timestamp)
		if age > interval.StalenessThreshold() {
			return nil, services.NewFetchError(models.ErrStaleData, series.Symbol,
				fmt.Errorf("last bar is %s old, threshold %s", age.Round(time.Second), interval.StalenessThreshold()))
		}
	}

	assessed := series.WithBars(normalized)
	assessed.MarketOpen = open
	return assessed, nil
}

// marketOpen reports whether the exchange is trading at the given
// exchange-local instant. Days without a calendar session are closed;
// extended hours widen the window on trading days only.
func (g *HoursGuard) marketOpen(ctx context.Context, local time.Time, extendedHours bool) bool {
	session, ok := g.calendar.SessionFor(ctx, local)
	if !ok {
		return false
	}

	start, end := session.Open, session.Close
	if extendedHours {
		loc := g.calendar.Location()
		start = g.preOpen.on(local, loc)
		end = g.postClose.on(local, loc)
	}

	return !local.Before(start) && local.Before(end)
}
