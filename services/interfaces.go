package services

import (
	"context"
	"time"

	"trend-scan/models"
)

// BarProvider defines the interface for historical bar retrieval
type BarProvider interface {
	GetBars(ctx context.Context, symbol string, interval models.Interval, start, end time.Time) (*models.Series, error)
}

// Compile-time interface verification
var _ BarProvider = (*ChartService)(nil)
var _ CalendarSource = (*FileCalendar)(nil)
var _ CalendarSource = (*AlpacaCalendar)(nil)
