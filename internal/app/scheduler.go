package app

import (
	"context"
	"errors"
	"time"

	"trend-scan/observability"
)

// RunScheduler runs scans over the configured universe on a fixed
// period until ctx is canceled. A zero or negative period disables the
// scheduler and returns immediately. Blocks; callers run it in a
// goroutine.
func (a *App) RunScheduler(ctx context.Context) {
	period := time.Duration(a.cfg.Scan.IntervalSeconds) * time.Second
	if period <= 0 {
		return
	}

	observability.Info("scan scheduler started", "period", period.String())

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			observability.Info("scan scheduler stopped")
			return
		case <-ticker.C:
			a.runScheduledScan()
		}
	}
}

func (a *App) runScheduledScan() {
	run, err := a.TriggerScan(nil, a.GetSettings())
	switch {
	case errors.Is(err, ErrScanInProgress):
		observability.Warn("scheduled scan skipped, previous scan still running")
	case err != nil:
		observability.Error("scheduled scan failed", "error", err)
	default:
		observability.Info("scheduled scan finished",
			"scan_id", run.ID.String(),
			"status", string(run.Status),
			"signals", len(run.Signals()))
	}
}
