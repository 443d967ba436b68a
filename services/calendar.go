package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"gopkg.in/yaml.v3"

	"trend-scan/observability"
)

// Session is one trading day's regular hours in exchange-local time
type Session struct {
	Open  time.Time
	Close time.Time
}

// CalendarSource supplies the regular trading session for a date. A
// false return means the exchange is closed that day; absence of an
// entry is never an error.
type CalendarSource interface {
	SessionFor(ctx context.Context, date time.Time) (Session, bool)
	Location() *time.Location
}

const dateKeyLayout = "2006-01-02"

// dayTime is a wall-clock time of day
type dayTime struct {
	hour   int
	minute int
}

func parseDayTime(s string) (dayTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return dayTime{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return dayTime{hour: t.Hour(), minute: t.Minute()}, nil
}

func (d dayTime) on(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), d.hour, d.minute, 0, 0, loc)
}

// calendarFile is the YAML shape of an exchange calendar
type calendarFile struct {
	Timezone     string   `yaml:"timezone"`
	RegularOpen  string   `yaml:"regular_open"`
	RegularClose string   `yaml:"regular_close"`
	Holidays     []string `yaml:"holidays"`
	HalfDays     []struct {
		Date  string `yaml:"date"`
		Close string `yaml:"close"`
	} `yaml:"half_days"`
}

// FileCalendar answers session queries from a YAML calendar: regular
// weekday hours plus holiday and half-day exceptions. Weekends are
// always closed.
type FileCalendar struct {
	location *time.Location
	open     dayTime
	close    dayTime
	holidays map[string]struct{}
	halfDays map[string]dayTime
}

// LoadFileCalendar reads an exchange calendar from a YAML file
func LoadFileCalendar(path string) (*FileCalendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar file: %w", err)
	}

	var cf calendarFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse calendar file: %w", err)
	}

	cal, err := NewFileCalendar(cf.Timezone, cf.RegularOpen, cf.RegularClose)
	if err != nil {
		return nil, err
	}

	for _, h := range cf.Holidays {
		if _, err := time.Parse(dateKeyLayout, h); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", h, err)
		}
		cal.holidays[h] = struct{}{}
	}
	for _, hd := range cf.HalfDays {
		if _, err := time.Parse(dateKeyLayout, hd.Date); err != nil {
			return nil, fmt.Errorf("invalid half day date %q: %w", hd.Date, err)
		}
		earlyClose, err := parseDayTime(hd.Close)
		if err != nil {
			return nil, err
		}
		cal.halfDays[hd.Date] = earlyClose
	}

	return cal, nil
}

// NewFileCalendar builds a calendar with regular weekday hours and no
// exceptions. Used directly as the built-in default when no calendar
// file is configured.
func NewFileCalendar(timezone, regularOpen, regularClose string) (*FileCalendar, error) {
	if timezone == "" {
		timezone = "America/New_York"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar timezone %q: %w", timezone, err)
	}
	if regularOpen == "" {
		regularOpen = "09:30"
	}
	if regularClose == "" {
		regularClose = "16:00"
	}
	open, err := parseDayTime(regularOpen)
	if err != nil {
		return nil, err
	}
	closeTime, err := parseDayTime(regularClose)
	if err != nil {
		return nil, err
	}

	return &FileCalendar{
		location: loc,
		open:     open,
		close:    closeTime,
		holidays: make(map[string]struct{}),
		halfDays: make(map[string]dayTime),
	}, nil
}

// SessionFor returns the regular session for the given date
func (c *FileCalendar) SessionFor(_ context.Context, date time.Time) (Session, bool) {
	local := date.In(c.location)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return Session{}, false
	}

	key := local.Format(dateKeyLayout)
	if _, holiday := c.holidays[key]; holiday {
		return Session{}, false
	}

	closeAt := c.close
	if early, ok := c.halfDays[key]; ok {
		closeAt = early
	}

	return Session{
		Open:  c.open.on(local, c.location),
		Close: closeAt.on(local, c.location),
	}, true
}

// Location returns the exchange timezone
func (c *FileCalendar) Location() *time.Location {
	return c.location
}

// AlpacaCalendar serves sessions from Alpaca's trading calendar,
// refreshed on a TTL. Refresh failures and dates outside the cached
// span fall back to the wrapped source.
type AlpacaCalendar struct {
	client    *alpaca.Client
	fallback  CalendarSource
	location  *time.Location
	ttl       time.Duration
	lookahead int

	mu        sync.RWMutex
	sessions  map[string]Session
	spanStart time.Time
	spanEnd   time.Time
	fetchedAt time.Time
}

// NewAlpacaCalendar creates a calendar backed by the Alpaca trading API
func NewAlpacaCalendar(apiKey, apiSecret, baseURL string, ttl time.Duration, lookaheadDays int, fallback CalendarSource) *AlpacaCalendar {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	return &AlpacaCalendar{
		client:    client,
		fallback:  fallback,
		location:  fallback.Location(),
		ttl:       ttl,
		lookahead: lookaheadDays,
		sessions:  make(map[string]Session),
	}
}

// SessionFor returns the session for the given date, refreshing the
// cached calendar when the TTL has lapsed.
func (c *AlpacaCalendar) SessionFor(ctx context.Context, date time.Time) (Session, bool) {
	local := date.In(c.location)

	c.mu.RLock()
	fresh := time.Since(c.fetchedAt) < c.ttl
	inSpan := c.covers(local)
	c.mu.RUnlock()

	if !fresh || !inSpan {
		if err := c.refresh(local); err != nil {
			observability.Warn("alpaca calendar refresh failed, using fallback", "error", err)
			return c.fallback.SessionFor(ctx, date)
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.covers(local) {
		return c.fallback.SessionFor(ctx, date)
	}

	session, ok := c.sessions[local.Format(dateKeyLayout)]
	return session, ok
}

// Location returns the exchange timezone
func (c *AlpacaCalendar) Location() *time.Location {
	return c.location
}

// covers reports whether the date falls inside the cached span.
// Callers must hold the lock.
func (c *AlpacaCalendar) covers(local time.Time) bool {
	if c.spanStart.IsZero() {
		return false
	}
	day := local.Format(dateKeyLayout)
	return day >= c.spanStart.Format(dateKeyLayout) && day <= c.spanEnd.Format(dateKeyLayout)
}

// refresh pulls the trading calendar around the given date
func (c *AlpacaCalendar) refresh(around time.Time) error {
	start := around.AddDate(0, 0, -7)
	end := around.AddDate(0, 0, c.lookahead)

	days, err := c.client.GetCalendar(alpaca.GetCalendarRequest{
		Start: start,
		End:   end,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch trading calendar: %w", err)
	}

	sessions := make(map[string]Session, len(days))
	for _, day := range days {
		date, err := time.ParseInLocation(dateKeyLayout, day.Date, c.location)
		if err != nil {
			return fmt.Errorf("invalid calendar date %q: %w", day.Date, err)
		}
		open, err := parseDayTime(day.Open)
		if err != nil {
			return err
		}
		closeAt, err := parseDayTime(day.Close)
		if err != nil {
			return err
		}
		sessions[day.Date] = Session{
			Open:  open.on(date, c.location),
			Close: closeAt.on(date, c.location),
		}
	}

	c.mu.Lock()
	c.sessions = sessions
	c.spanStart = start
	c.spanEnd = end
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	observability.Debug("alpaca calendar refreshed",
		"days", len(sessions),
		"span_start", start.Format(dateKeyLayout),
		"span_end", end.Format(dateKeyLayout))

	return nil
}
