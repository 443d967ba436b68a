package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"trend-scan/models"
	"trend-scan/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateScanRun inserts a scan run in its running state. The symbol
// results arrive later via UpdateScanRun once the run finalizes.
func (r *Repository) CreateScanRun(ctx context.Context, run *models.ScanRun) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "scan_runs")

	settingsJSON, err := json.Marshal(run.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	countsJSON, err := json.Marshal(run.ErrorCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal error counts: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO scan_runs (id, started_at, finished_at, symbols, settings, results,
			fetch_time_ms, algo_time_ms, duration_ms, error_counts, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, run.ID, run.StartedAt, run.FinishedAt, run.Symbols, settingsJSON, resultsJSON,
		run.FetchTimeMs, run.AlgoTimeMs, run.DurationMs, countsJSON, run.Status, run.Error, run.CreatedAt)

	if err != nil {
		metrics.RecordDBError("insert", "scan_runs")
		return fmt.Errorf("failed to create scan run: %w", err)
	}

	return nil
}

// UpdateScanRun writes the finalized state of an existing scan run
func (r *Repository) UpdateScanRun(ctx context.Context, run *models.ScanRun) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "scan_runs")

	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	countsJSON, err := json.Marshal(run.ErrorCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal error counts: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		UPDATE scan_runs
		SET finished_at = $2, results = $3, fetch_time_ms = $4, algo_time_ms = $5,
			duration_ms = $6, error_counts = $7, status = $8, error = $9
		WHERE id = $1
	`, run.ID, run.FinishedAt, resultsJSON, run.FetchTimeMs, run.AlgoTimeMs,
		run.DurationMs, countsJSON, run.Status, run.Error)

	if err != nil {
		metrics.RecordDBError("update", "scan_runs")
		return fmt.Errorf("failed to update scan run: %w", err)
	}

	return nil
}

// GetScanRun returns a scan run by ID, or nil when no such run exists
func (r *Repository) GetScanRun(ctx context.Context, id uuid.UUID) (*models.ScanRun, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "scan_runs")

	row := r.db.QueryRow(ctx, `
		SELECT id, started_at, finished_at, symbols, settings, results,
			fetch_time_ms, algo_time_ms, duration_ms, error_counts, status, error, created_at
		FROM scan_runs
		WHERE id = $1
	`, id)

	run, err := scanScanRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "scan_runs")
		return nil, fmt.Errorf("failed to get scan run: %w", err)
	}

	return run, nil
}

// GetLatestScanRun returns the most recent scan run, or nil when the
// history is empty
func (r *Repository) GetLatestScanRun(ctx context.Context) (*models.ScanRun, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "scan_runs")

	row := r.db.QueryRow(ctx, `
		SELECT id, started_at, finished_at, symbols, settings, results,
			fetch_time_ms, algo_time_ms, duration_ms, error_counts, status, error, created_at
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT 1
	`)

	run, err := scanScanRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "scan_runs")
		return nil, fmt.Errorf("failed to get latest scan run: %w", err)
	}

	return run, nil
}

// GetScanRunHistory returns recent scan runs, newest first
func (r *Repository) GetScanRunHistory(ctx context.Context, limit int) ([]models.ScanRun, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "scan_runs")

	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, started_at, finished_at, symbols, settings, results,
			fetch_time_ms, algo_time_ms, duration_ms, error_counts, status, error, created_at
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		metrics.RecordDBError("select", "scan_runs")
		return nil, fmt.Errorf("failed to get scan run history: %w", err)
	}
	defer rows.Close()

	var runs []models.ScanRun
	for rows.Next() {
		run, err := scanScanRun(rows)
		if err != nil {
			metrics.RecordDBError("select", "scan_runs")
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, nil
}

// scanScanRun scans a scan_runs row into a ScanRun struct
func scanScanRun(row pgx.Row) (*models.ScanRun, error) {
	var run models.ScanRun
	var settingsJSON, resultsJSON, countsJSON []byte

	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Symbols, &settingsJSON, &resultsJSON,
		&run.FetchTimeMs, &run.AlgoTimeMs, &run.DurationMs, &countsJSON, &run.Status, &run.Error, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(settingsJSON, &run.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := json.Unmarshal(resultsJSON, &run.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}

	if len(countsJSON) > 0 {
		if err := json.Unmarshal(countsJSON, &run.ErrorCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error counts: %w", err)
		}
	}

	return &run, nil
}
