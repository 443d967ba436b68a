// Package main provides a standalone HTTP server for E2E testing. It
// runs the same routes and handlers as the main server, but against an
// in-process mock chart provider, so the full scan API can be exercised
// without touching the real quote service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trend-scan/config"
	"trend-scan/e2e/mocks"
	"trend-scan/internal/api"
	"trend-scan/internal/app"
	"trend-scan/internal/settings"
	"trend-scan/marketdata"
	"trend-scan/observability"
	"trend-scan/repository"
	"trend-scan/scanner"
	"trend-scan/services"
	"trend-scan/signals"
)

func main() {
	// Development-mode logging for test runs
	observability.InitLogger(false)
	observability.InitMetrics()

	port := os.Getenv("E2E_SERVER_PORT")
	if port == "" {
		port = "9090"
	}

	ctx := context.Background()

	// Mock chart provider with a few seeded failure modes alongside
	// the flat default series every other symbol gets
	mockChart := mocks.NewMockChartServer()
	defer mockChart.Close()
	seedSymbols(mockChart)
	observability.Info("mock chart provider started", "url", mockChart.URL())

	cfg := config.NewTestConfig()
	cfg.Provider.BaseURL = mockChart.URL()
	cfg.HTTP.Addr = ":" + port

	// Persistence is optional: with no database URL the server still
	// scans, it just keeps no history
	var repo *repository.Repository
	if databaseURL := os.Getenv("E2E_DATABASE_URL"); databaseURL != "" {
		var err error
		repo, err = repository.NewRepository(ctx, databaseURL)
		if err != nil {
			observability.Fatal("failed to connect to test database", "error", err)
		}
		defer repo.Close()
		observability.Info("connected to test database")
	} else {
		observability.Warn("E2E_DATABASE_URL not set, running without persistence")
	}

	provider := services.NewChartService(
		cfg.Provider.BaseURL,
		cfg.Provider.UserAgent,
		cfg.Provider.RateLimitRPS,
		cfg.Provider.RateLimitBurst,
	)
	calendar, err := services.NewFileCalendar(cfg.Calendar.Timezone, cfg.Calendar.RegularOpen, cfg.Calendar.RegularClose)
	if err != nil {
		observability.Fatal("failed to build calendar", "error", err)
	}
	breakers := services.NewBreakerRegistry(services.DefaultBreakerConfig)
	retry := services.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: 50 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
	fetcher := marketdata.NewFetcher(provider, breakers, retry, nil)
	guard, err := marketdata.NewHoursGuard(calendar, cfg.Calendar.PreMarketOpen, cfg.Calendar.PostMarketClose)
	if err != nil {
		observability.Fatal("failed to build hours guard", "error", err)
	}
	plan := signals.PlanParams{
		Equity:             cfg.Account.Equity,
		RiskPercent:        cfg.Account.RiskPercent,
		MaxPositionPercent: cfg.Account.MaxPositionPercent,
	}

	var scanRepo scanner.Repository
	if repo != nil {
		scanRepo = repo
	}
	scn := scanner.New(fetcher, guard, scanRepo, cfg.Scan, plan)

	// Settings store in a scratch directory unless one is pinned
	settingsDir := os.Getenv("E2E_SETTINGS_DIR")
	if settingsDir == "" {
		settingsDir, err = os.MkdirTemp("", "trend-scan-e2e-settings-*")
		if err != nil {
			observability.Fatal("failed to create temp settings dir", "error", err)
		}
		defer os.RemoveAll(settingsDir)
	}
	store, err := settings.NewStore(settingsDir, cfg.Algorithm)
	if err != nil {
		observability.Fatal("failed to initialize settings store", "error", err)
	}
	observability.Info("settings store initialized", "dir", settingsDir)

	var appRepo app.RepositoryInterface
	if repo != nil {
		appRepo = repo
	}
	application := app.New(cfg, appRepo, scn, store, breakers)
	application.Startup(ctx)

	handler := api.NewHandler(application, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.Scan.TimeoutSeconds+30) * time.Second,
	}

	go func() {
		observability.Info("starting E2E test server", "port", port, "url", fmt.Sprintf("http://localhost:%s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down E2E test server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Fatal("server forced to shutdown", "error", err)
	}

	application.Shutdown(shutdownCtx)
	observability.Info("E2E test server stopped")
}

// seedSymbols configures deterministic failure modes so manual testing
// can hit every branch of the error taxonomy:
//
//	GONE    404 from the provider
//	THIN    too few bars to clear validation
//	FLAKY   one failure, then recovery via retry
//	DOWN    permanent 500s, trips the breaker after three scans
//	SLOW    a well-formed response after a 300ms pause
//	HOLLOW  a well-formed envelope with no bars in it
//
// Any other symbol serves the flat default series.
func seedSymbols(m *mocks.MockChartServer) {
	end := time.Now().Truncate(time.Minute)

	m.SetSymbolStatus("GONE", http.StatusNotFound)
	m.SetSymbolBars("THIN", mocks.GenerateFlatBars(40, end, time.Minute))
	m.SetSymbolFailures("FLAKY", 1, http.StatusInternalServerError)
	m.SetSymbolStatus("DOWN", http.StatusInternalServerError)
	m.SetSymbolDelay("SLOW", 300*time.Millisecond)
	m.SetSymbolBars("HOLLOW", []mocks.ChartBar{})
}
