package marketdata

import (
	"context"
	"fmt"
	"time"

	"trend-scan/models"
	"trend-scan/observability"
	"trend-scan/services"
)

// BarCache is an optional read-through cache in front of the provider.
// Freshness is the cache's concern; a miss and an expired entry look
// the same to the fetcher.
type BarCache interface {
	GetSeries(ctx context.Context, symbol string, interval models.Interval) (*models.Series, bool, error)
	PutSeries(ctx context.Context, series *models.Series) error
}

// Fetcher wraps the provider with the per-interval lookback ceilings,
// the retry policy, and the per-symbol circuit breakers. One fetch runs
// at a time per symbol; concurrency happens across symbols.
type Fetcher struct {
	provider services.BarProvider
	breakers *services.BreakerRegistry
	retry    services.RetryConfig
	cache    BarCache
}

// NewFetcher creates a Fetcher. cache may be nil to disable caching.
func NewFetcher(provider services.BarProvider, breakers *services.BreakerRegistry, retry services.RetryConfig, cache BarCache) *Fetcher {
	return &Fetcher{
		provider: provider,
		breakers: breakers,
		retry:    retry,
		cache:    cache,
	}
}

// Fetch returns bars for the symbol covering the trailing period at the
// given interval. Lookback ceilings are enforced before any network
// activity; cache errors degrade to a normal fetch.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, interval models.Interval, period time.Duration) (*models.Series, error) {
	metrics := observability.GetMetrics()
	metrics.RecordFetchRequest(string(interval))

	if period > interval.MaxLookback() {
		err := services.NewFetchError(models.ErrPeriodLimitExceeded, symbol,
			fmt.Errorf("period %s exceeds the %s ceiling of %s", period, interval, interval.MaxLookback()))
		metrics.RecordFetchError(string(interval), string(models.ErrPeriodLimitExceeded))
		return nil, err
	}

	if f.cache != nil {
		series, ok, err := f.cache.GetSeries(ctx, symbol, interval)
		if err != nil {
			observability.Warn("bar cache read failed", "symbol", symbol, "error", err)
		} else if ok {
			metrics.RecordFetchCacheHit(string(interval))
			return series, nil
		}
	}

	timer := metrics.NewTimer()
	series, err := services.Protect(ctx, f.breakers, symbol, func() (*models.Series, error) {
		var out *models.Series
		retryErr := services.WithRetry(ctx, f.retry, func() error {
			end := time.Now()
			start := end.Add(-period)
			fetched, fetchErr := f.provider.GetBars(ctx, symbol, interval, start, end)
			if fetchErr != nil {
				return fetchErr
			}
			out = fetched
			return nil
		})
		if retryErr != nil {
			return nil, retryErr
		}
		return out, nil
	})
	timer.ObserveFetch(string(interval))

	if err != nil {
		metrics.RecordFetchError(string(interval), string(services.CodeOf(err)))
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.PutSeries(ctx, series); err != nil {
			observability.Warn("bar cache write failed", "symbol", symbol, "error", err)
		}
	}

	return series, nil
}
