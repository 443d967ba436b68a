package app

import (
	"context"
	"errors"
	"fmt"

	"trend-scan/config"
	"trend-scan/models"
	"trend-scan/services"

	"github.com/google/uuid"
)

// ErrScanInProgress is returned when a scan trigger arrives while an
// earlier scan still holds the semaphore. The API maps it to 409.
var ErrScanInProgress = errors.New("a scan is already running")

// RepositoryInterface defines the repository operations needed by App
type RepositoryInterface interface {
	Close()
	Health(ctx context.Context) error
	GetScanRun(ctx context.Context, id uuid.UUID) (*models.ScanRun, error)
	GetLatestScanRun(ctx context.Context) (*models.ScanRun, error)
	GetScanRunHistory(ctx context.Context, limit int) ([]models.ScanRun, error)
	GetSignal(ctx context.Context, id uuid.UUID) (*models.Signal, error)
	GetSignals(ctx context.Context, symbol string, direction models.Direction, limit int) ([]models.Signal, error)
}

// ScannerInterface defines the scan operation the App triggers
type ScannerInterface interface {
	Scan(ctx context.Context, symbols []string, settings models.AlgorithmSettings) *models.ScanRun
}

// SettingsStore defines the persisted algorithm-settings operations
type SettingsStore interface {
	Get() models.AlgorithmSettings
	Update(settings models.AlgorithmSettings) error
}

// App holds application dependencies behind interfaces for testability
type App struct {
	ctx      context.Context
	cfg      *config.Config
	repo     RepositoryInterface
	scanner  ScannerInterface
	settings SettingsStore
	breakers *services.BreakerRegistry

	// scanSem serializes scans so an HTTP trigger and the scheduler
	// can never overlap.
	scanSem chan struct{}
}

// New creates a new App application struct
func New(cfg *config.Config, repo RepositoryInterface, scanner ScannerInterface, settings SettingsStore, breakers *services.BreakerRegistry) *App {
	return &App{
		ctx:      context.Background(),
		cfg:      cfg,
		repo:     repo,
		scanner:  scanner,
		settings: settings,
		breakers: breakers,
		scanSem:  make(chan struct{}, 1),
	}
}

// Startup is called when the app starts
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
}

// Shutdown is called when the app is closing
func (a *App) Shutdown(ctx context.Context) {
	if a.repo != nil {
		a.repo.Close()
	}
}

// Repo returns the repository interface for API handlers
func (a *App) Repo() RepositoryInterface {
	return a.repo
}

// TriggerScan runs one scan over the given symbols. An empty symbol
// list falls back to the configured universe. Scans run on the app
// context, not a request context: a disconnecting HTTP client does not
// abort a scan already underway.
func (a *App) TriggerScan(symbols []string, settings models.AlgorithmSettings) (*models.ScanRun, error) {
	if a.scanner == nil {
		return nil, fmt.Errorf("scanner not initialized")
	}

	if len(symbols) == 0 {
		symbols = a.cfg.Scan.Symbols
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested and no universe configured")
	}

	select {
	case a.scanSem <- struct{}{}:
		defer func() { <-a.scanSem }()
	default:
		return nil, ErrScanInProgress
	}

	return a.scanner.Scan(a.ctx, symbols, settings), nil
}

// GetSettings returns the active algorithm settings: the persisted
// overrides when a store is attached, the env defaults otherwise.
func (a *App) GetSettings() models.AlgorithmSettings {
	if a.settings == nil {
		return a.cfg.Algorithm
	}
	return a.settings.Get()
}

// UpdateSettings validates and persists a replacement settings document
func (a *App) UpdateSettings(settings models.AlgorithmSettings) error {
	if a.settings == nil {
		return fmt.Errorf("settings store not initialized")
	}
	return a.settings.Update(settings)
}

// GetScanRunByID returns a single scan run by ID
func (a *App) GetScanRunByID(id string) (*models.ScanRun, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	uuid, err := ParseUUID(id)
	if err != nil {
		return nil, err
	}

	return a.repo.GetScanRun(a.ctx, uuid)
}

// GetLatestScanRun returns the most recent scan run
func (a *App) GetLatestScanRun() (*models.ScanRun, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.repo.GetLatestScanRun(a.ctx)
}

// GetScanHistory returns recent scan runs
func (a *App) GetScanHistory(limit int) ([]models.ScanRun, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.repo.GetScanRunHistory(a.ctx, limit)
}

// GetSignals returns recent signals with optional symbol and direction filters
func (a *App) GetSignals(symbol string, direction models.Direction, limit int) ([]models.Signal, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.repo.GetSignals(a.ctx, symbol, direction, limit)
}

// GetSignalByID returns a single signal by ID
func (a *App) GetSignalByID(id string) (*models.Signal, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	uuid, err := ParseUUID(id)
	if err != nil {
		return nil, err
	}

	return a.repo.GetSignal(a.ctx, uuid)
}

// BreakerStatus returns the per-symbol circuit breaker snapshot
func (a *App) BreakerStatus() map[string]services.BreakerStatus {
	if a.breakers == nil {
		return map[string]services.BreakerStatus{}
	}
	return a.breakers.Status()
}

// ParseUUID parses a string UUID into a [16]byte
func ParseUUID(id string) ([16]byte, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return [16]byte{}, fmt.Errorf("invalid UUID: %w", err)
	}
	return parsed, nil
}

// ScanSemCapacity returns the capacity of the scan semaphore (for testing)
func (a *App) ScanSemCapacity() int {
	return cap(a.scanSem)
}
