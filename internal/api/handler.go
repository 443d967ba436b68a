package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"trend-scan/config"
	"trend-scan/internal/app"
	"trend-scan/internal/settings"
	"trend-scan/models"

	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// ScanRequest is the body of a scan trigger. Both fields are optional:
// an empty symbol list scans the configured universe and absent
// overrides scan with the persisted settings.
type ScanRequest struct {
	Symbols           []string            `json:"symbols,omitempty"`
	SettingsOverrides *settings.Overrides `json:"settings_overrides,omitempty"`
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"services": map[string]string{
			"database": "unknown",
		},
	}

	if h.app.Repo() != nil {
		ctx := r.Context()
		if err := h.app.Repo().Health(ctx); err == nil {
			status["services"].(map[string]string)["database"] = "connected"
		} else {
			status["services"].(map[string]string)["database"] = "disconnected"
			status["status"] = "degraded"
		}
	} else {
		status["services"].(map[string]string)["database"] = "not_configured"
	}

	// Add circuit breaker status
	cbStatus := h.app.BreakerStatus()
	status["circuit_breakers"] = cbStatus

	// Check if any breakers are open (degraded state)
	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}

	h.jsonResponse(w, status)
}

// HandleTriggerScan runs one scan and returns the finished run
func (h *Handler) HandleTriggerScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	symbols := make([]string, 0, len(req.Symbols))
	for _, symbol := range req.Symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		if err := h.ValidateSymbol(symbol); err != nil {
			h.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		symbols = append(symbols, symbol)
	}

	merged := h.app.GetSettings()
	if req.SettingsOverrides != nil {
		merged = req.SettingsOverrides.Apply(merged)
	}
	if err := merged.Validate(); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.app.TriggerScan(symbols, merged)
	if err != nil {
		if errors.Is(err, app.ErrScanInProgress) {
			h.jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, run)
}

// HandleGetScanHistory returns recent scan runs
func (h *Handler) HandleGetScanHistory(w http.ResponseWriter, r *http.Request) {
	limit := h.ParseLimitParam(r, 10)

	runs, err := h.app.GetScanHistory(limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.ScanRun{}
	}

	h.jsonResponse(w, runs)
}

// HandleGetLatestScan returns the most recent scan run
func (h *Handler) HandleGetLatestScan(w http.ResponseWriter, r *http.Request) {
	run, err := h.app.GetLatestScanRun()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if run == nil {
		h.jsonResponse(w, map[string]interface{}{"run": nil})
		return
	}

	h.jsonResponse(w, run)
}

// HandleGetScanRun returns a specific scan run by ID
func (h *Handler) HandleGetScanRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.jsonError(w, "Missing scan run ID", http.StatusBadRequest)
		return
	}
	if _, err := app.ParseUUID(id); err != nil {
		h.jsonError(w, "Invalid scan run ID", http.StatusBadRequest)
		return
	}

	run, err := h.app.GetScanRunByID(id)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if run == nil {
		h.jsonError(w, "Scan run not found", http.StatusNotFound)
		return
	}

	h.jsonResponse(w, run)
}

// HandleGetSignals returns recent signals, optionally filtered by symbol
// and direction
func (h *Handler) HandleGetSignals(w http.ResponseWriter, r *http.Request) {
	limit := h.ParseLimitParam(r, 50)

	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol != "" {
		if err := h.ValidateSymbol(symbol); err != nil {
			h.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	direction := models.Direction(r.URL.Query().Get("direction"))
	if direction != "" && direction != models.DirectionLong && direction != models.DirectionShort {
		h.jsonError(w, "Invalid direction (use long or short)", http.StatusBadRequest)
		return
	}

	signals, err := h.app.GetSignals(symbol, direction, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if signals == nil {
		signals = []models.Signal{}
	}

	h.jsonResponse(w, signals)
}

// HandleGetSignal returns a specific signal by ID
func (h *Handler) HandleGetSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.jsonError(w, "Missing signal ID", http.StatusBadRequest)
		return
	}
	if _, err := app.ParseUUID(id); err != nil {
		h.jsonError(w, "Invalid signal ID", http.StatusBadRequest)
		return
	}

	signal, err := h.app.GetSignalByID(id)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if signal == nil {
		h.jsonError(w, "Signal not found", http.StatusNotFound)
		return
	}

	h.jsonResponse(w, signal)
}

// HandleGetSettings returns the active algorithm settings
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.GetSettings())
}

// HandleUpdateSettings replaces the persisted algorithm settings. The
// body is an overrides document: absent fields keep their current
// values.
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var overrides settings.Overrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	merged := overrides.Apply(h.app.GetSettings())
	if err := merged.Validate(); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.app.UpdateSettings(merged); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, merged)
}

// HandleGetBreakers returns the per-symbol circuit breaker snapshot
func (h *Handler) HandleGetBreakers(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.BreakerStatus())
}

// Helper functions

// ValidateSymbol validates a ticker symbol
func (h *Handler) ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 10 {
		return fmt.Errorf("symbol too long (max 10 characters)")
	}

	matched, _ := regexp.MatchString("^[A-Z0-9.-]+$", symbol)
	if !matched {
		return fmt.Errorf("invalid symbol format (alphanumeric, dots, and dashes only)")
	}

	return nil
}

// ParseLimitParam parses the limit query parameter
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
