package repository

import (
	"context"
	"time"

	"trend-scan/models"

	"github.com/google/uuid"
)

// RepositoryInterface defines all repository operations
type RepositoryInterface interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error

	// Scan runs
	CreateScanRun(ctx context.Context, run *models.ScanRun) error
	UpdateScanRun(ctx context.Context, run *models.ScanRun) error
	GetScanRun(ctx context.Context, id uuid.UUID) (*models.ScanRun, error)
	GetLatestScanRun(ctx context.Context) (*models.ScanRun, error)
	GetScanRunHistory(ctx context.Context, limit int) ([]models.ScanRun, error)

	// Signals
	CreateSignal(ctx context.Context, sig *models.Signal) error
	GetSignal(ctx context.Context, id uuid.UUID) (*models.Signal, error)
	GetSignals(ctx context.Context, symbol string, direction models.Direction, limit int) ([]models.Signal, error)

	// Series cache
	GetCachedSeries(ctx context.Context, symbol string, interval models.Interval) (*models.Series, error)
	SetCachedSeries(ctx context.Context, series *models.Series, ttl time.Duration) error
	InvalidateCachedSeries(ctx context.Context, symbol string) error
	CleanExpiredCache(ctx context.Context) (int64, error)
}

// Compile-time interface verification
var _ RepositoryInterface = (*Repository)(nil)
