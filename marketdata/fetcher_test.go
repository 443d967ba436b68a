package marketdata

import (
	"context"
	"testing"
	"time"

	"trend-scan/models"
	"trend-scan/services"
)

type stubProvider struct {
	getBars func(ctx context.Context, symbol string, interval models.Interval, start, end time.Time) (*models.Series, error)
}

func (s *stubProvider) GetBars(ctx context.Context, symbol string, interval models.Interval, start, end time.Time) (*models.Series, error) {
	return s.getBars(ctx, symbol, interval, start, end)
}

type stubCache struct {
	get func(ctx context.Context, symbol string, interval models.Interval) (*models.Series, bool, error)
	put func(ctx context.Context, series *models.Series) error
}

func (s *stubCache) GetSeries(ctx context.Context, symbol string, interval models.Interval) (*models.Series, bool, error) {
	return s.get(ctx, symbol, interval)
}

func (s *stubCache) PutSeries(ctx context.Context, series *models.Series) error {
	return s.put(ctx, series)
}

func fastRetry() services.RetryConfig {
	return services.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Multiplier:     2.0,
	}
}

func providerSeries(symbol string) *models.Series {
	return models.NewSeries(symbol, models.Interval1m, "America/New_York", cleanBars(5, time.Minute))
}

func TestFetch_PeriodCeilingRejectedBeforeNetwork(t *testing.T) {
	calls := 0
	provider := &stubProvider{
		getBars: func(context.Context, string, models.Interval, time.Time, time.Time) (*models.Series, error) {
			calls++
			return providerSeries("AAPL"), nil
		},
	}
	fetcher := NewFetcher(provider, services.NewBreakerRegistry(services.DefaultBreakerConfig), fastRetry(), nil)

	_, err := fetcher.Fetch(context.Background(), "AAPL", models.Interval1m, 8*24*time.Hour)
	if got := services.CodeOf(err); got != models.ErrPeriodLimitExceeded {
		t.Errorf("CodeOf(err) = %v, want %v", got, models.ErrPeriodLimitExceeded)
	}
	if calls != 0 {
		t.Errorf("provider called %d times, want 0", calls)
	}
}

func TestFetch_Success(t *testing.T) {
	want := providerSeries("AAPL")
	provider := &stubProvider{
		getBars: func(_ context.Context, symbol string, interval models.Interval, _, _ time.Time) (*models.Series, error) {
			if symbol != "AAPL" {
				t.Errorf("symbol = %q, want %q", symbol, "AAPL")
			}
			if interval != models.Interval1m {
				t.Errorf("interval = %q, want %q", interval, models.Interval1m)
			}
			return want, nil
		},
	}
	fetcher := NewFetcher(provider, services.NewBreakerRegistry(services.DefaultBreakerConfig), fastRetry(), nil)

	got, err := fetcher.Fetch(context.Background(), "AAPL", models.Interval1m, 24*time.Hour)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != want {
		t.Error("Fetch() did not return the provider series")
	}
}

func TestFetch_RequestWindowCoversPeriod(t *testing.T) {
	var gotStart, gotEnd time.Time
	provider := &stubProvider{
		getBars: func(_ context.Context, _ string, _ models.Interval, start, end time.Time) (*models.Series, error) {
			gotStart, gotEnd = start, end
			return providerSeries("AAPL"), nil
		},
	}
	fetcher := NewFetcher(provider, services.NewBreakerRegistry(services.DefaultBreakerConfig), fastRetry(), nil)

	if _, err := fetcher.Fetch(context.Background(), "AAPL", models.Interval1m, 24*time.Hour); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if span := gotEnd.Sub(gotStart); span != 24*time.Hour {
		t.Errorf("request span = %s, want 24h", span)
	}
	if age := time.Since(gotEnd); age < 0 || age > time.Minute {
		t.Errorf("request end %v is not recent", gotEnd)
	}
}

func TestFetch_CacheHit(t *testing.T) {
	cached := providerSeries("AAPL")
	calls := 0
	provider := &stubProvider{
		getBars: func(context.Context, string, models.Interval, time.Time, time.Time) (*models.Series, error) {
			calls++
			return providerSeries("AAPL"), nil
		},
	}
	cache := &stubCache{
		get: func(context.Context, string, models.Interval) (*models.Series, bool, error) {
			return cached, true, nil
		},
		put: func(context.Context, *models.Series) error {
			t.Error("PutSeries called on a cache hit")
			return nil
		},
	}
	fetcher := NewFetcher(provider, services.NewBreakerRegistry(services.DefaultBreakerConfig), fastRetry(), cache)

	got, err := fetcher.Fetch(context.Background(), "AAPL", models.Interval1m, 24*time.Hour)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != cached {
		t.Error("Fetch() did not return the cached series")
	}
	if calls != 0 {
		t.Errorf("provider called %d times on a cache hit, want 0", calls)
	}
}

func TestFetch_CacheReadErrorDegradesToFetch(t *testing.T) {
	calls := 0
	provider := &stubProvider{
		getBars: func(context.Context, string, models.Interval, time.Time, time.Time) (*models.Series, error) {
			calls++
			return providerSeries("AAPL"), nil
		},
	}
	cache := &stubCache{
		get: func(context.Context, string, models.Interval) (*models.Series, bool, error) {
			return nil, false, context.DeadlineExceeded
		},
		put: func(context.Context, *models.Series) error { return nil },
	}
	fetcher := NewFetcher(provider, services.NewBreakerRegistry(services.DefaultBreakerConfig), fastRetry(), cache)

	if _, err := fetcher.Fetch(context.Background(), "AAPL", models.Interval1m, 24*time.Hour); err != nil {
		t.Fatalf("Fetch() error = %v, cache failure should not be fatal", err)
	}
	if calls != 1 {
		t.Errorf("provider called %d times, want 1", calls)
	}
}

func TestFetch_CacheMissStoresResult(t *testing.T) {
	fetched := providerSeries("AAPL")
	provider := &stubProvider{
		getBars: func(context.Context, string, models.Interval, time.Time, time.Time) (*models.Series, error) {
			return fetched, nil
		},
	}
	var stored *models.Series
	cache := &stubCache{
		get: func(context.Context, string, models.Interval) (*models.Series, bool, error) {
			return nil, false, nil
		},
		put: func(_ context.Context, series *models.Series) error {
			stored = series
			return nil
		},
	}
	fetcher := NewFetcher(provider, services.NewBreakerRegistry(services.DefaultBreakerConfig), fastRetry(), cache)

	if _, err := fetcher.Fetch(context.Background(), "AAPL", models.Interval1m, 24*time.Hour); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if stored != fetched {
		t.Error("fetched series was not stored in the cache")
	}
}

func TestFetch_CacheWriteErrorIsNotFatal(t *testing.T) {
	provider := &stubProvider{
		getBars: func(context.Context, string, models.Interval, time.Time, time.Time) (*models.Series, error) {
			return providerSeries("AAPL"), nil
		},
	}
	cache := &stubCache{
		get: func(context.Context, string, models.Interval) (*models.Series, bool, error) {
			return nil, false, nil
		},
		put: func(context.Context, *models.Series) error {
			return context.DeadlineExceeded
		},
	}
	fetcher := NewFetcher(provider, services.NewBreakerRegistry(services.DefaultBreakerConfig), fastRetry(), cache)

	got, err := fetcher.Fetch(context.Background(), "AAPL", models.Interval1m, 24*time.Hour)
	if err != nil {
		t.Fatalf("Fetch() error = %v, cache write failure should not be fatal", err)
	}
	if got == nil {
		t.Error("Fetch() returned nil series")
	}
}

func TestFetch_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	provider := &stubProvider{
		getBars: func(context.Context, string, models.Interval, time.Time, time.Time) (*models.Series, error) {
			calls++
			if calls < 3 {
				return nil, services.NewFetchError(models.ErrNetworkTimeout, "AAPL", context.DeadlineExceeded)
			}
			return providerSeries("AAPL"), nil
		},
	}
	fetcher := NewFetcher(provider, services.NewBreakerRegistry(services.DefaultBreakerConfig), fastRetry(), nil)

	if _, err := fetcher.Fetch(context.Background(), "AAPL", models.Interval1m, 24*time.Hour); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("provider called %d times, want 3", calls)
	}
}

func TestFetch_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	provider := &stubProvider{
		getBars: func(context.Context, string, models.Interval, time.Time, time.Time) (*models.Series, error) {
			calls++
			return nil, services.NewFetchError(models.ErrSymbolNotFound, "NOPE", nil)
		},
	}
	fetcher := NewFetcher(provider, services.NewBreakerRegistry(services.DefaultBreakerConfig), fastRetry(), nil)

	_, err := fetcher.Fetch(context.Background(), "NOPE", models.Interval1m, 24*time.Hour)
	if got := services.CodeOf(err); got != models.ErrSymbolNotFound {
		t.Errorf("CodeOf(err) = %v, want %v", got, models.ErrSymbolNotFound)
	}
	if calls != 1 {
		t.Errorf("provider called %d times, want 1", calls)
	}
}

func TestFetch_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	provider := &stubProvider{
		getBars: func(context.Context, string, models.Interval, time.Time, time.Time) (*models.Series, error) {
			calls++
			return nil, services.NewFetchError(models.ErrNetworkTimeout, "FAIL", context.DeadlineExceeded)
		},
	}
	breakers := services.NewBreakerRegistry(services.BreakerConfig{
		FailureThreshold: 2,
		Window:           time.Minute,
		Open:             time.Minute,
		MaxProbes:        1,
	})
	// One attempt per fetch so each failed fetch is one breaker count.
	retry := services.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, Multiplier: 2.0}
	fetcher := NewFetcher(provider, breakers, retry, nil)

	for i := 0; i < 2; i++ {
		if _, err := fetcher.Fetch(context.Background(), "FAIL", models.Interval1m, 24*time.Hour); err == nil {
			t.Fatalf("Fetch() %d error = nil, want failure", i)
		}
	}
	if calls != 2 {
		t.Fatalf("provider called %d times, want 2", calls)
	}

	_, err := fetcher.Fetch(context.Background(), "FAIL", models.Interval1m, 24*time.Hour)
	if got := services.CodeOf(err); got != models.ErrCircuitBreaker {
		t.Errorf("CodeOf(err) = %v, want %v", got, models.ErrCircuitBreaker)
	}
	if calls != 2 {
		t.Errorf("provider called %d times with the breaker open, want 2", calls)
	}
}
