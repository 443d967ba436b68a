package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trend-scan/models"

	"github.com/jackc/pgx/v5"
)

// GetCachedSeries retrieves a cached bar series for a symbol and
// interval. Returns nil when there is no entry or it has expired.
func (r *Repository) GetCachedSeries(ctx context.Context, symbol string, interval models.Interval) (*models.Series, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}

	var data []byte

	// Let the database handle expiry check to avoid timezone issues
	err := r.pool.QueryRow(ctx, `
		SELECT data FROM series_cache
		WHERE symbol = $1 AND interval = $2 AND expires_at > NOW()
	`, symbol, interval).Scan(&data)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query series cache: %w", err)
	}

	var series models.Series
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached series: %w", err)
	}

	return &series, nil
}

// SetCachedSeries stores a bar series in the cache with a TTL
func (r *Repository) SetCachedSeries(ctx context.Context, series *models.Series, ttl time.Duration) error {
	if err := r.checkDB(); err != nil {
		return err
	}

	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("failed to marshal series: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO series_cache (symbol, interval, data, expires_at)
		VALUES ($1, $2, $3, NOW() + $4::interval)
		ON CONFLICT (symbol, interval)
		DO UPDATE SET data = EXCLUDED.data, expires_at = NOW() + $4::interval, created_at = NOW()
	`, series.Symbol, series.Interval, data, ttl.String())

	if err != nil {
		return fmt.Errorf("failed to set series cache: %w", err)
	}

	return nil
}

// InvalidateCachedSeries removes all cached series for a symbol
func (r *Repository) InvalidateCachedSeries(ctx context.Context, symbol string) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM series_cache WHERE symbol = $1`, symbol)
	if err != nil {
		return fmt.Errorf("failed to invalidate series cache: %w", err)
	}
	return nil
}

// CleanExpiredCache removes all expired cache entries
func (r *Repository) CleanExpiredCache(ctx context.Context) (int64, error) {
	if err := r.checkDB(); err != nil {
		return 0, err
	}
	result, err := r.pool.Exec(ctx, `DELETE FROM series_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}
	return result.RowsAffected(), nil
}

// SeriesCache adapts the series_cache table to the read-through shape
// the bar fetcher accepts. A single TTL covers every interval; per-bar
// freshness is the staleness guard's job, not the cache's.
type SeriesCache struct {
	repo *Repository
	ttl  time.Duration
}

// NewSeriesCache creates a SeriesCache writing entries with the given TTL
func NewSeriesCache(repo *Repository, ttl time.Duration) *SeriesCache {
	return &SeriesCache{repo: repo, ttl: ttl}
}

// GetSeries returns the cached series and whether it was present
func (c *SeriesCache) GetSeries(ctx context.Context, symbol string, interval models.Interval) (*models.Series, bool, error) {
	series, err := c.repo.GetCachedSeries(ctx, symbol, interval)
	if err != nil {
		return nil, false, err
	}
	if series == nil {
		return nil, false, nil
	}
	return series, true, nil
}

// PutSeries stores the series under its own symbol and interval
func (c *SeriesCache) PutSeries(ctx context.Context, series *models.Series) error {
	return c.repo.SetCachedSeries(ctx, series, c.ttl)
}
