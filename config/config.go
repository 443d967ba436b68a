package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"trend-scan/models"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Chart data provider configuration
	Provider ProviderConfig

	// Alpaca configuration (trading-calendar source)
	Alpaca AlpacaConfig

	// Exchange calendar configuration
	Calendar CalendarConfig

	// Scan orchestration configuration
	Scan ScanConfig

	// Circuit breaker configuration
	Breaker BreakerConfig

	// Account assumptions for trade-plan sizing
	Account AccountConfig

	// Algorithm settings (evaluator thresholds and filters)
	Algorithm models.AlgorithmSettings

	// HTTP configuration
	HTTP HTTPConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// ProviderConfig holds chart data provider configuration
type ProviderConfig struct {
	BaseURL         string
	UserAgent       string
	RateLimitRPS    float64
	RateLimitBurst  int
	CacheTTLSeconds int // 0 disables the series cache
}

// AlpacaConfig holds Alpaca API configuration
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// CalendarConfig holds exchange calendar configuration
type CalendarConfig struct {
	File            string // YAML calendar file; empty uses built-in NYSE sessions
	Timezone        string // exchange timezone expected from the provider
	RefreshMinutes  int    // TTL for the live (Alpaca) calendar cache
	LookaheadDays   int    // days of calendar fetched from the live source
	PreMarketOpen   string // HH:MM exchange-local
	PostMarketClose string // HH:MM exchange-local
	RegularOpen     string
	RegularClose    string
}

// ScanConfig holds scan orchestration configuration
type ScanConfig struct {
	BaseInterval    models.Interval
	LookbackDays    int
	BatchSize       int
	TimeoutSeconds  int // global scan deadline
	IntervalSeconds int // scheduler period; 0 disables scheduled scans
	UniverseFile    string
	Symbols         []string // overrides the universe file when set
}

// BreakerConfig holds circuit breaker configuration
type BreakerConfig struct {
	FailureThreshold int
	WindowSeconds    int // failure-count window while closed
	OpenSeconds      int // how long a tripped symbol stays suspended
}

// AccountConfig holds the account assumptions used for trade plans
type AccountConfig struct {
	Equity             float64
	RiskPercent        float64
	MaxPositionPercent float64
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr               string
	CORSAllowedOrigins string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	Production bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Provider: ProviderConfig{
			BaseURL:         getEnvString("CHART_BASE_URL", "https://query1.finance.yahoo.com"),
			UserAgent:       getEnvString("CHART_USER_AGENT", "trend-scan/1.0"),
			RateLimitRPS:    getEnvFloatRange("CHART_RATE_LIMIT_RPS", 5.0, 0.1, 100),
			RateLimitBurst:  getEnvInt("CHART_RATE_LIMIT_BURST", 10),
			CacheTTLSeconds: getEnvIntAllowZero("CHART_CACHE_TTL_SECONDS", 30),
		},
		Alpaca: AlpacaConfig{
			APIKey:    os.Getenv("ALPACA_API_KEY"),
			APISecret: os.Getenv("ALPACA_API_SECRET"),
			BaseURL:   getEnvString("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
		},
		Calendar: CalendarConfig{
			File:            os.Getenv("CALENDAR_FILE"),
			Timezone:        getEnvString("EXCHANGE_TIMEZONE", "America/New_York"),
			RefreshMinutes:  getEnvInt("CALENDAR_REFRESH_MINUTES", 720),
			LookaheadDays:   getEnvInt("CALENDAR_LOOKAHEAD_DAYS", 14),
			PreMarketOpen:   getEnvString("PRE_MARKET_OPEN", "04:00"),
			PostMarketClose: getEnvString("POST_MARKET_CLOSE", "20:00"),
			RegularOpen:     getEnvString("REGULAR_MARKET_OPEN", "09:30"),
			RegularClose:    getEnvString("REGULAR_MARKET_CLOSE", "16:00"),
		},
		Scan: ScanConfig{
			BaseInterval:    models.Interval(getEnvString("SCAN_BASE_INTERVAL", "1m")),
			LookbackDays:    getEnvInt("SCAN_LOOKBACK_DAYS", 1),
			BatchSize:       getEnvInt("SCAN_BATCH_SIZE", 20),
			TimeoutSeconds:  getEnvInt("SCAN_TIMEOUT_SECONDS", 120),
			IntervalSeconds: getEnvIntAllowZero("SCAN_INTERVAL_SECONDS", 0),
			UniverseFile:    os.Getenv("UNIVERSE_FILE"),
			Symbols:         splitSymbols(os.Getenv("SCAN_SYMBOLS")),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 3),
			WindowSeconds:    getEnvInt("BREAKER_WINDOW_SECONDS", 300),
			OpenSeconds:      getEnvInt("BREAKER_OPEN_SECONDS", 900),
		},
		Account: AccountConfig{
			Equity:             getEnvFloatUnbounded("ACCOUNT_EQUITY", 100_000),
			RiskPercent:        getEnvFloatRange("ACCOUNT_RISK_PERCENT", 0.01, 0.001, 0.1),
			MaxPositionPercent: getEnvFloatRange("ACCOUNT_MAX_POSITION_PERCENT", 0.10, 0.01, 1.0),
		},
		Algorithm: models.AlgorithmSettings{
			ATRMultiplier:        getEnvFloatUnbounded("ATR_MULTIPLIER", 2.0),
			VolatilityFilter:     getEnvFloatUnbounded("VOLATILITY_FILTER", 2.5),
			FOMOFilter:           getEnvFloatUnbounded("FOMO_FILTER", 1.0),
			EMA5RisingThreshold:  getEnvFloatUnbounded("EMA5_RISING_THRESHOLD", 0.02),
			EMA8RisingThreshold:  getEnvFloatUnbounded("EMA8_RISING_THRESHOLD", 0.01),
			EMA21RisingThreshold: getEnvFloatUnbounded("EMA21_RISING_THRESHOLD", 0.005),
			HigherTimeframe:      models.Interval(getEnvString("HIGHER_TIMEFRAME", "15m")),
			ExtendedHours:        getEnvBool("EXTENDED_HOURS", true),
		},
		HTTP: HTTPConfig{
			Addr:               getEnvString("HTTP_ADDR", ":8080"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
		Observability: ObservabilityConfig{
			Production: getEnvBool("PRODUCTION", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration. A validation failure here is
// fatal: it surfaces before any fetching begins.
func (c *Config) Validate() error {
	if err := c.Algorithm.Validate(); err != nil {
		return err
	}

	switch c.Scan.BaseInterval {
	case models.Interval1m, models.Interval15m:
	default:
		return fmt.Errorf("SCAN_BASE_INTERVAL must be 1m or 15m, got %q", c.Scan.BaseInterval)
	}

	lookback := 24 * 60 * 60 * c.Scan.LookbackDays
	if float64(lookback) > c.Scan.BaseInterval.MaxLookback().Seconds() {
		return fmt.Errorf("SCAN_LOOKBACK_DAYS %d exceeds the %s lookback ceiling", c.Scan.LookbackDays, c.Scan.BaseInterval)
	}

	if c.Scan.BatchSize <= 0 {
		return fmt.Errorf("SCAN_BATCH_SIZE must be positive, got %d", c.Scan.BatchSize)
	}
	if c.Scan.TimeoutSeconds <= 0 {
		return fmt.Errorf("SCAN_TIMEOUT_SECONDS must be positive, got %d", c.Scan.TimeoutSeconds)
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be positive, got %d", c.Breaker.FailureThreshold)
	}
	if c.Account.Equity <= 0 {
		return fmt.Errorf("ACCOUNT_EQUITY must be positive, got %v", c.Account.Equity)
	}

	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasAlpaca returns true if Alpaca configuration is available
func (c *Config) HasAlpaca() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvIntAllowZero(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatRange(key string, defaultValue, minVal, maxVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= minVal && parsed <= maxVal {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatUnbounded(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			symbols = append(symbols, strings.ToUpper(s))
		}
	}
	return symbols
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL: "",
		},
		Provider: ProviderConfig{
			BaseURL:         "http://localhost:0",
			UserAgent:       "trend-scan-test",
			RateLimitRPS:    100,
			RateLimitBurst:  100,
			CacheTTLSeconds: 0,
		},
		Alpaca: AlpacaConfig{
			BaseURL: "https://paper-api.alpaca.markets",
		},
		Calendar: CalendarConfig{
			Timezone:        "America/New_York",
			RefreshMinutes:  720,
			LookaheadDays:   14,
			PreMarketOpen:   "04:00",
			PostMarketClose: "20:00",
			RegularOpen:     "09:30",
			RegularClose:    "16:00",
		},
		Scan: ScanConfig{
			BaseInterval:   models.Interval1m,
			LookbackDays:   1,
			BatchSize:      20,
			TimeoutSeconds: 30,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			WindowSeconds:    300,
			OpenSeconds:      900,
		},
		Account: AccountConfig{
			Equity:             100_000,
			RiskPercent:        0.01,
			MaxPositionPercent: 0.10,
		},
		Algorithm: models.DefaultAlgorithmSettings(),
		HTTP: HTTPConfig{
			Addr:               ":0",
			CORSAllowedOrigins: "*",
		},
	}
}
