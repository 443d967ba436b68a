package scanner

import (
	"context"
	"sync"
	"time"

	"trend-scan/config"
	"trend-scan/indicators"
	"trend-scan/marketdata"
	"trend-scan/models"
	"trend-scan/observability"
	"trend-scan/services"
	"trend-scan/signals"
)

// minConfirmationBuckets is how many closed higher-timeframe buckets
// the resampled fine series must cover before it is trusted over a
// direct coarse fetch.
const minConfirmationBuckets = 5

// BarFetcher is the fetch pipeline the scanner drives per symbol.
type BarFetcher interface {
	Fetch(ctx context.Context, symbol string, interval models.Interval, period time.Duration) (*models.Series, error)
}

// HoursAssessor normalizes a fetched series to exchange time and
// enforces the staleness rule while the market is open.
type HoursAssessor interface {
	Assess(ctx context.Context, series *models.Series, interval models.Interval, now time.Time, extendedHours bool) (*models.Series, error)
}

// Repository persists finalized runs and emitted signals. A nil
// repository disables persistence without changing scan behavior.
type Repository interface {
	CreateScanRun(ctx context.Context, run *models.ScanRun) error
	UpdateScanRun(ctx context.Context, run *models.ScanRun) error
	CreateSignal(ctx context.Context, signal *models.Signal) error
}

var _ BarFetcher = (*marketdata.Fetcher)(nil)
var _ HoursAssessor = (*marketdata.HoursGuard)(nil)

// Scanner fans the per-symbol pipeline out in bounded batches and
// assembles one ScanRun from whatever each symbol produced.
type Scanner struct {
	fetcher BarFetcher
	guard   HoursAssessor
	repo    Repository
	cfg     config.ScanConfig
	plan    signals.PlanParams
}

// New creates a Scanner. repo may be nil to run without persistence.
func New(fetcher BarFetcher, guard HoursAssessor, repo Repository, cfg config.ScanConfig, plan signals.PlanParams) *Scanner {
	return &Scanner{
		fetcher: fetcher,
		guard:   guard,
		repo:    repo,
		cfg:     cfg,
		plan:    plan,
	}
}

// Scan runs the full pipeline for each symbol and returns the finalized
// run. A single symbol's failure never aborts the others; symbols still
// pending when the global deadline fires report a timeout status.
func (s *Scanner) Scan(ctx context.Context, symbols []string, settings models.AlgorithmSettings) *models.ScanRun {
	run := models.NewScanRun(symbols, settings)
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()

	if err := settings.Validate(); err != nil {
		observability.Error("scan rejected by settings validation", "error", err)
		run.Fail(err.Error())
		timer.ObserveScan(string(run.Status))
		return run
	}

	observability.Info("scan started",
		"scan_id", run.ID.String(),
		"symbols", len(symbols),
		"interval", string(s.cfg.BaseInterval),
		"batch_size", s.batchSize())

	if s.repo != nil {
		if err := s.repo.CreateScanRun(ctx, run); err != nil {
			observability.Warn("failed to create scan run record", "scan_id", run.ID.String(), "error", err)
		}
	}

	scanCtx := ctx
	if s.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	results := make([]models.SymbolResult, len(symbols))
	batch := s.batchSize()
	for start := 0; start < len(symbols); start += batch {
		end := min(start+batch, len(symbols))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int, symbol string) {
				defer wg.Done()
				results[idx] = s.scanSymbol(scanCtx, symbol, settings)
			}(i, symbols[i])
		}
		wg.Wait()

		if scanCtx.Err() != nil {
			for i := end; i < len(symbols); i++ {
				results[i] = models.SymbolResult{
					Symbol: symbols[i],
					Status: models.NewErrorStatus(models.ErrNetworkTimeout, "scan deadline exceeded before symbol was attempted"),
				}
			}
			observability.Warn("scan deadline expired",
				"scan_id", run.ID.String(),
				"attempted", end,
				"skipped", len(symbols)-end)
			break
		}
	}

	run.Finalize(results)
	s.record(metrics, timer, run)
	s.persist(ctx, run)

	observability.Info("scan finished",
		"scan_id", run.ID.String(),
		"status", string(run.Status),
		"ok", run.OKCount(),
		"signals", len(run.Signals()),
		"duration_ms", run.DurationMs)

	return run
}

// scanSymbol runs fetch, hours assessment, validation, resampling,
// indicators and evaluation for one symbol. Every failure folds into
// the returned result; nothing escapes.
func (s *Scanner) scanSymbol(ctx context.Context, symbol string, settings models.AlgorithmSettings) models.SymbolResult {
	result := models.SymbolResult{Symbol: symbol}
	metrics := observability.GetMetrics()

	fetchStart := time.Now()
	fine, err := s.fetcher.Fetch(ctx, symbol, s.cfg.BaseInterval, s.lookback())
	result.FetchMs = time.Since(fetchStart).Milliseconds()
	if err != nil {
		result.Status = statusFromError(err, nil)
		return result
	}

	assessed, err := s.guard.Assess(ctx, fine, s.cfg.BaseInterval, time.Now(), settings.ExtendedHours)
	if err != nil {
		result.Status = statusFromError(err, nil)
		return result
	}

	report, err := marketdata.Validate(assessed, s.cfg.BaseInterval)
	if report != nil {
		metrics.RecordQualityScore(string(s.cfg.BaseInterval), report.QualityScore)
		for reason, count := range report.Dropped {
			metrics.RecordDroppedBars(reason, count)
		}
	}
	if err != nil {
		result.Status = statusFromError(err, report)
		return result
	}
	cleaned := report.Cleaned

	htf, htfFetchMs := s.higherTimeframe(ctx, symbol, cleaned, settings)
	result.FetchMs += htfFetchMs

	algoStart := time.Now()
	set := indicators.Compute(cleaned, settings)
	htfSet := indicators.Compute(htf, settings)
	eval := signals.Evaluate(cleaned, set, htf, htfSet, settings)
	result.AlgoMs = time.Since(algoStart).Milliseconds()

	snap := set.Snapshot()
	result.Indicators = &snap

	last, _ := cleaned.Last()
	result.Status = models.NewOKStatus(cleaned.Len(), last.Timestamp, report.QualityScore, cleaned.MarketOpen)

	if eval.Signal != nil {
		eval.Signal.Plan = signals.BuildPlan(eval.Signal.Direction, last.Close, snap.ATR, settings.ATRMultiplier, s.plan)
		result.Signal = eval.Signal
		observability.Info("signal emitted",
			"symbol", symbol,
			"direction", string(eval.Signal.Direction),
			"price", eval.Signal.Price,
			"confidence", eval.Signal.Confidence)
	} else {
		result.RejectReason = eval.Reason
	}

	return result
}

// higherTimeframe derives the confirmation series. Resampling the fine
// series is the primary path; a direct coarse fetch happens only when
// too few closed buckets are covered, and its failure degrades back to
// the resampled series. Either way the trailing bucket is dropped: it
// contains the bar under evaluation, and confirming a bar against a
// bucket it belongs to would compare the close with itself.
func (s *Scanner) higherTimeframe(ctx context.Context, symbol string, fine *models.Series, settings models.AlgorithmSettings) (*models.Series, int64) {
	htf := dropFormingBucket(marketdata.Resample(fine, settings.HigherTimeframe))
	if htf.Len() >= minConfirmationBuckets {
		return htf, 0
	}

	fetchStart := time.Now()
	coarse, err := s.fetcher.Fetch(ctx, symbol, settings.HigherTimeframe, s.lookback())
	elapsed := time.Since(fetchStart).Milliseconds()
	if err != nil {
		observability.Warn("higher timeframe fetch failed, keeping resampled series",
			"symbol", symbol,
			"interval", string(settings.HigherTimeframe),
			"error", err)
		return htf, elapsed
	}
	return dropFormingBucket(coarse), elapsed
}

func dropFormingBucket(series *models.Series) *models.Series {
	n := series.Len()
	if n == 0 {
		return series
	}
	return series.WithBars(series.Bars[:n-1])
}

func (s *Scanner) record(metrics *observability.Metrics, timer *observability.Timer, run *models.ScanRun) {
	timer.ObserveScan(string(run.Status))
	for _, res := range run.Results {
		metrics.RecordSymbolStatus(string(res.Status.State))
		if res.Signal != nil {
			metrics.RecordSignal(string(res.Signal.Direction), res.Signal.Confidence)
		} else if res.RejectReason != "" {
			metrics.RecordSignalRejection(string(res.RejectReason))
		}
	}
}

// persist writes the finalized run and its signals. Failures log and
// degrade; the returned run is never altered by persistence problems.
func (s *Scanner) persist(ctx context.Context, run *models.ScanRun) {
	if s.repo == nil {
		return
	}

	if err := s.repo.UpdateScanRun(ctx, run); err != nil {
		observability.Warn("failed to persist scan run", "scan_id", run.ID.String(), "error", err)
	}
	for _, res := range run.Results {
		if res.Signal == nil {
			continue
		}
		if err := s.repo.CreateSignal(ctx, res.Signal); err != nil {
			observability.Warn("failed to persist signal",
				"scan_id", run.ID.String(),
				"symbol", res.Signal.Symbol,
				"error", err)
		}
	}
}

func (s *Scanner) batchSize() int {
	if s.cfg.BatchSize <= 0 {
		return 20
	}
	return s.cfg.BatchSize
}

func (s *Scanner) lookback() time.Duration {
	days := s.cfg.LookbackDays
	if days <= 0 {
		days = 1
	}
	return time.Duration(days) * 24 * time.Hour
}

func statusFromError(err error, report *marketdata.Report) models.SymbolStatus {
	status := models.NewErrorStatus(services.CodeOf(err), err.Error())
	if report != nil {
		status.BarsCount = report.BarsKept
		status.QualityScore = report.QualityScore
	}
	return status
}
