package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Scan metrics
	ScansTotal        *prometheus.CounterVec
	ScanDuration      *prometheus.HistogramVec
	SymbolsTotal      *prometheus.CounterVec
	SignalsTotal      *prometheus.CounterVec
	SignalConfidence  *prometheus.HistogramVec
	SignalRejections  *prometheus.CounterVec
	LastScanTimestamp prometheus.Gauge

	// Fetch metrics
	FetchRequestsTotal *prometheus.CounterVec
	FetchErrorsTotal   *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec
	FetchCacheHits     *prometheus.CounterVec

	// Validation metrics
	DroppedBarsTotal *prometheus.CounterVec
	QualityScore     *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryTotal    *prometheus.CounterVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// scanBuckets are histogram buckets for full scan durations (in seconds)
var scanBuckets = []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// unitBuckets are histogram buckets for values on a 0.0 to 1.0 scale
var unitBuckets = []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		// Scan metrics
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "scan",
				Name:      "runs_total",
				Help:      "Total number of scan runs by final status",
			},
			[]string{"status"},
		),
		ScanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trend_scan",
				Subsystem: "scan",
				Name:      "duration_seconds",
				Help:      "Wall-clock duration of scan runs in seconds",
				Buckets:   scanBuckets,
			},
			[]string{"status"},
		),
		SymbolsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "scan",
				Name:      "symbols_total",
				Help:      "Total number of symbols processed by per-symbol status",
			},
			[]string{"status"},
		),
		SignalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "signal",
				Name:      "emitted_total",
				Help:      "Total number of signals emitted by direction",
			},
			[]string{"direction"},
		),
		SignalConfidence: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trend_scan",
				Subsystem: "signal",
				Name:      "confidence",
				Help:      "Distribution of signal confidence values",
				Buckets:   unitBuckets,
			},
			[]string{"direction"},
		),
		SignalRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "signal",
				Name:      "rejections_total",
				Help:      "Total number of evaluations rejected by gate",
			},
			[]string{"reason"},
		),
		LastScanTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "trend_scan",
				Subsystem: "scan",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix timestamp of the most recently completed scan run",
			},
		),

		// Fetch metrics
		FetchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "fetch",
				Name:      "requests_total",
				Help:      "Total number of market data fetch requests",
			},
			[]string{"interval"},
		),
		FetchErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "fetch",
				Name:      "errors_total",
				Help:      "Total number of fetch errors by error code",
			},
			[]string{"interval", "error_code"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trend_scan",
				Subsystem: "fetch",
				Name:      "duration_seconds",
				Help:      "Duration of market data fetches in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"interval"},
		),
		FetchCacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "fetch",
				Name:      "cache_hits_total",
				Help:      "Total number of fetches served from the bar cache",
			},
			[]string{"interval"},
		),

		// Validation metrics
		DroppedBarsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "validation",
				Name:      "dropped_bars_total",
				Help:      "Total number of bars dropped during validation by reason",
			},
			[]string{"reason"},
		),
		QualityScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trend_scan",
				Subsystem: "validation",
				Name:      "quality_score",
				Help:      "Distribution of per-series data quality scores",
				Buckets:   unitBuckets,
			},
			[]string{"interval"},
		),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trend_scan",
				Subsystem: "database",
				Name:      "query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "table"},
		),
		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "database",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "database",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trend_scan",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trend_scan",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		// Circuit breaker metrics
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "trend_scan",
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"symbol"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trend_scan",
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"symbol"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// RecordScan records a completed scan run
func (m *Metrics) RecordScan(status string, duration time.Duration) {
	m.ScansTotal.WithLabelValues(status).Inc()
	m.ScanDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.LastScanTimestamp.SetToCurrentTime()
}

// RecordSymbolStatus records the per-symbol outcome of a scan
func (m *Metrics) RecordSymbolStatus(status string) {
	m.SymbolsTotal.WithLabelValues(status).Inc()
}

// RecordSignal records an emitted signal
func (m *Metrics) RecordSignal(direction string, confidence float64) {
	m.SignalsTotal.WithLabelValues(direction).Inc()
	m.SignalConfidence.WithLabelValues(direction).Observe(confidence)
}

// RecordSignalRejection records an evaluation rejected by a gate
func (m *Metrics) RecordSignalRejection(reason string) {
	m.SignalRejections.WithLabelValues(reason).Inc()
}

// RecordFetchRequest records a market data fetch request
func (m *Metrics) RecordFetchRequest(interval string) {
	m.FetchRequestsTotal.WithLabelValues(interval).Inc()
}

// RecordFetchError records a fetch error
func (m *Metrics) RecordFetchError(interval, errorCode string) {
	m.FetchErrorsTotal.WithLabelValues(interval, errorCode).Inc()
}

// RecordFetchDuration records the duration of a market data fetch
func (m *Metrics) RecordFetchDuration(interval string, duration time.Duration) {
	m.FetchDuration.WithLabelValues(interval).Observe(duration.Seconds())
}

// RecordFetchCacheHit records a fetch served from the bar cache
func (m *Metrics) RecordFetchCacheHit(interval string) {
	m.FetchCacheHits.WithLabelValues(interval).Inc()
}

// RecordDroppedBars records bars dropped during validation
func (m *Metrics) RecordDroppedBars(reason string, count int) {
	if count <= 0 {
		return
	}
	m.DroppedBarsTotal.WithLabelValues(reason).Add(float64(count))
}

// RecordQualityScore records a per-series data quality score
func (m *Metrics) RecordQualityScore(interval string, score float64) {
	m.QualityScore.WithLabelValues(interval).Observe(score)
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database error
func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(symbol string, state int) {
	m.CircuitBreakerState.WithLabelValues(symbol).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(symbol string) {
	m.CircuitBreakerTrips.WithLabelValues(symbol).Inc()
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObserveScan records the scan duration and status
func (t *Timer) ObserveScan(status string) {
	t.metrics.RecordScan(status, time.Since(t.start))
}

// ObserveFetch records the fetch duration
func (t *Timer) ObserveFetch(interval string) {
	t.metrics.RecordFetchDuration(interval, time.Since(t.start))
}

// ObserveDB records the database query duration
func (t *Timer) ObserveDB(operation, table string) {
	t.metrics.RecordDBQuery(operation, table, time.Since(t.start))
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
