package api

import (
	"net/http"
	"time"

	"trend-scan/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack. The request timeout outlives the scan deadline
	// so a triggered scan can still return its run.
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.Scan.TimeoutSeconds+15) * time.Second))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	// Health check and Prometheus metrics
	r.Get("/healthz", h.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Scans
		r.Post("/scan", h.HandleTriggerScan)
		r.Route("/scans", func(r chi.Router) {
			r.Get("/", h.HandleGetScanHistory)
			r.Get("/latest", h.HandleGetLatestScan)
			r.Get("/{id}", h.HandleGetScanRun)
		})

		// Signals
		r.Route("/signals", func(r chi.Router) {
			r.Get("/", h.HandleGetSignals)
			r.Get("/{id}", h.HandleGetSignal)
		})

		// Algorithm settings
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.HandleGetSettings)
			r.Put("/", h.HandleUpdateSettings)
		})

		// Circuit breakers
		r.Get("/breakers", h.HandleGetBreakers)
	})

	return r
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
