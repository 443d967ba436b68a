package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"trend-scan/models"
	"trend-scan/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateSignal persists an emitted signal
func (r *Repository) CreateSignal(ctx context.Context, sig *models.Signal) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "signals")

	indicatorsJSON, err := json.Marshal(sig.Indicators)
	if err != nil {
		return fmt.Errorf("failed to marshal indicators: %w", err)
	}

	var planJSON []byte
	if sig.Plan != nil {
		planJSON, err = json.Marshal(sig.Plan)
		if err != nil {
			return fmt.Errorf("failed to marshal trade plan: %w", err)
		}
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO signals (id, symbol, direction, bar_time, price, confidence, indicators, plan, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sig.ID, sig.Symbol, sig.Direction, sig.BarTime, sig.Price, sig.Confidence, indicatorsJSON, planJSON, sig.CreatedAt)

	if err != nil {
		metrics.RecordDBError("insert", "signals")
		return fmt.Errorf("failed to create signal: %w", err)
	}

	return nil
}

// GetSignal returns a single signal by ID, or nil when no such signal exists
func (r *Repository) GetSignal(ctx context.Context, id uuid.UUID) (*models.Signal, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
		SELECT id, symbol, direction, bar_time, price, confidence, indicators, plan, created_at
		FROM signals WHERE id = $1
	`, id)

	sig, err := scanSignal(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query signal: %w", err)
	}

	return sig, nil
}

// GetSignals returns recent signals, newest first. Empty symbol or
// direction means no filter on that column.
func (r *Repository) GetSignals(ctx context.Context, symbol string, direction models.Direction, limit int) ([]models.Signal, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "signals")

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, symbol, direction, bar_time, price, confidence, indicators, plan, created_at
		FROM signals`
	var conds []string
	var args []any
	if symbol != "" {
		args = append(args, symbol)
		conds = append(conds, fmt.Sprintf("symbol = $%d", len(args)))
	}
	if direction != "" {
		args = append(args, direction)
		conds = append(conds, fmt.Sprintf("direction = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf("\n\t\tORDER BY created_at DESC\n\t\tLIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		metrics.RecordDBError("select", "signals")
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var sigs []models.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			metrics.RecordDBError("select", "signals")
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		sigs = append(sigs, *sig)
	}

	return sigs, nil
}

// scanSignal scans a signals row into a Signal struct
func scanSignal(row pgx.Row) (*models.Signal, error) {
	var sig models.Signal
	var indicatorsJSON, planJSON []byte

	err := row.Scan(&sig.ID, &sig.Symbol, &sig.Direction, &sig.BarTime, &sig.Price,
		&sig.Confidence, &indicatorsJSON, &planJSON, &sig.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(indicatorsJSON, &sig.Indicators); err != nil {
		return nil, fmt.Errorf("failed to unmarshal indicators: %w", err)
	}

	if len(planJSON) > 0 {
		var plan models.TradePlan
		if err := json.Unmarshal(planJSON, &plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trade plan: %w", err)
		}
		sig.Plan = &plan
	}

	return &sig, nil
}
