package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trend-scan/config"
	"trend-scan/internal/api"
	"trend-scan/internal/app"
	"trend-scan/internal/settings"
	"trend-scan/marketdata"
	"trend-scan/observability"
	"trend-scan/repository"
	"trend-scan/scanner"
	"trend-scan/services"
	"trend-scan/signals"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	observability.InitLogger(cfg.Observability.Production)
	observability.InitMetrics()

	ctx := context.Background()

	// Initialize database (optional; scans still run without persistence)
	var repo *repository.Repository
	if cfg.HasDatabase() {
		repo, err = repository.NewRepository(ctx, cfg.Database.URL)
		if err != nil {
			observability.Warn("failed to initialize database, running without persistence", "error", err)
			repo = nil
		}
	} else {
		observability.Warn("DATABASE_URL not set, running without persistence")
	}

	// Chart provider with client-side rate limiting
	provider := services.NewChartService(cfg.Provider.BaseURL, cfg.Provider.UserAgent,
		cfg.Provider.RateLimitRPS, cfg.Provider.RateLimitBurst)

	// Trading calendar: holiday file when provided, weekday sessions
	// otherwise, with the Alpaca calendar layered on top when
	// credentials are set.
	var calendar services.CalendarSource
	if cfg.Calendar.File != "" {
		fileCal, err := services.LoadFileCalendar(cfg.Calendar.File)
		if err != nil {
			observability.Fatal("failed to load calendar file", "path", cfg.Calendar.File, "error", err)
		}
		calendar = fileCal
	} else {
		fileCal, err := services.NewFileCalendar(cfg.Calendar.Timezone, cfg.Calendar.RegularOpen, cfg.Calendar.RegularClose)
		if err != nil {
			observability.Fatal("failed to build exchange calendar", "error", err)
		}
		calendar = fileCal
	}
	if cfg.HasAlpaca() {
		calendar = services.NewAlpacaCalendar(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL,
			time.Duration(cfg.Calendar.RefreshMinutes)*time.Minute, cfg.Calendar.LookaheadDays, calendar)
		observability.Info("alpaca trading calendar enabled")
	} else {
		observability.Warn("Alpaca credentials not set, using the static calendar")
	}

	// Per-symbol circuit breakers
	breakers := services.NewBreakerRegistry(services.BreakerConfig{
		FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
		Window:           time.Duration(cfg.Breaker.WindowSeconds) * time.Second,
		Open:             time.Duration(cfg.Breaker.OpenSeconds) * time.Second,
		MaxProbes:        services.DefaultBreakerConfig.MaxProbes,
	})

	// Series cache requires both a database and a positive TTL
	var cache marketdata.BarCache
	if repo != nil && cfg.Provider.CacheTTLSeconds > 0 {
		cache = repository.NewSeriesCache(repo, time.Duration(cfg.Provider.CacheTTLSeconds)*time.Second)
		observability.Info("series cache enabled", "ttl_seconds", cfg.Provider.CacheTTLSeconds)
	}

	fetcher := marketdata.NewFetcher(provider, breakers, services.DefaultRetryConfig, cache)

	guard, err := marketdata.NewHoursGuard(calendar, cfg.Calendar.PreMarketOpen, cfg.Calendar.PostMarketClose)
	if err != nil {
		observability.Fatal("failed to build trading hours guard", "error", err)
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

	// Resolve the scan universe up front so the scheduler and bare
	// scan triggers have symbols to work with.
	if symbols, err := cfg.ResolveSymbols(); err != nil {
		observability.Warn("no scan universe configured, scan requests must supply symbols", "error", err)
	} else {
		cfg.Scan.Symbols = symbols
		observability.Info("scan universe loaded", "symbols", len(symbols))
	}

	// Persisted algorithm settings
	var store app.SettingsStore
	if s, err := settings.NewStore("", cfg.Algorithm); err != nil {
		observability.Warn("failed to initialize settings store, using env defaults", "error", err)
	} else {
		store = s
	}

	var appRepo app.RepositoryInterface
	if repo != nil {
		appRepo = repo
	}
	application := app.New(cfg, appRepo, scn, store, breakers)
	application.Startup(ctx)

	handler := api.NewHandler(application, cfg)
	router := api.NewRouter(handler, cfg)

	// WriteTimeout must outlive the scan deadline: POST /scan replies
	// only after the run finishes.
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.Scan.TimeoutSeconds+30) * time.Second,
	}

	schedCtx, stopScheduler := context.WithCancel(ctx)
	go application.RunScheduler(schedCtx)

	go func() {
		observability.Info("server started", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down...")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}

	application.Shutdown(shutdownCtx)
	observability.Info("server stopped")
}
