package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"trend-scan/models"
)

// ChartService fetches OHLCV history from a Yahoo-style chart JSON API.
// Outbound requests pass through a token-bucket rate limiter so a large
// universe cannot hammer the provider.
type ChartService struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewChartService creates a new ChartService instance
func NewChartService(baseURL, userAgent string, rps float64, burst int) *ChartService {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 1
	}
	return &ChartService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// chartEnvelope is the provider's top-level response shape
type chartEnvelope struct {
	Chart struct {
		Result []chartResult  `json:"result"`
		Error  *chartAPIError `json:"error"`
	} `json:"chart"`
}

type chartAPIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
		Timezone             string `json:"timezone"`
		GMTOffset            int    `json:"gmtoffset"`
		RegularMarketTime    int64  `json:"regularMarketTime"`
		DataGranularity      string `json:"dataGranularity"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quoteBlock `json:"quote"`
	} `json:"indicators"`
}

// quoteBlock carries parallel OHLCV arrays. The provider emits null for
// rows it has no data for, hence the pointer elements.
type quoteBlock struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// GetBars fetches bars for a symbol between start and end at the given
// interval. Extended-hours rows and provider-side repair are always
// requested. Failures come back as *FetchError with a taxonomy code.
func (s *ChartService) GetBars(ctx context.Context, symbol string, interval models.Interval, start, end time.Time) (*models.Series, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, NewFetchError(models.ErrNetworkTimeout, symbol, err)
	}

	params := url.Values{}
	params.Set("interval", string(interval))
	params.Set("period1", fmt.Sprintf("%d", start.Unix()))
	params.Set("period2", fmt.Sprintf("%d", end.Unix()))
	params.Set("includePrePost", "true")
	params.Set("repair", "true")

	endpoint := s.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewFetchError(models.ErrNetworkTimeout, symbol, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, NewFetchError(models.ErrNetworkTimeout, symbol, fmt.Errorf("failed to fetch chart: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, NewFetchError(models.ErrSymbolNotFound, symbol, fmt.Errorf("provider returned 404"))
	}
	if resp.StatusCode != http.StatusOK {
		// Error statuses may still carry a classifiable error envelope
		var envelope chartEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Chart.Error != nil {
			apiErr := envelope.Chart.Error
			return nil, NewFetchError(classifyProviderError(apiErr), symbol,
				fmt.Errorf("provider error %q: %s", apiErr.Code, apiErr.Description))
		}
		return nil, NewFetchError(models.ErrNetworkTimeout, symbol,
			fmt.Errorf("provider returned status %d", resp.StatusCode))
	}

	var envelope chartEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, NewFetchError(models.ErrJSONDecode, symbol, fmt.Errorf("failed to decode chart response: %w", err))
	}

	if apiErr := envelope.Chart.Error; apiErr != nil {
		return nil, NewFetchError(classifyProviderError(apiErr), symbol,
			fmt.Errorf("provider error %q: %s", apiErr.Code, apiErr.Description))
	}

	if len(envelope.Chart.Result) == 0 {
		return nil, NewFetchError(models.ErrEmptyResponse, symbol, fmt.Errorf("empty result set"))
	}

	result := envelope.Chart.Result[0]
	if len(result.Timestamp) == 0 {
		return nil, NewFetchError(models.ErrEmptyResponse, symbol, fmt.Errorf("no timestamps in result"))
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, NewFetchError(models.ErrEmptyResponse, symbol, fmt.Errorf("no quote block in result"))
	}

	quote := result.Indicators.Quote[0]
	if len(quote.Open) != len(result.Timestamp) ||
		len(quote.High) != len(result.Timestamp) ||
		len(quote.Low) != len(result.Timestamp) ||
		len(quote.Close) != len(result.Timestamp) {
		return nil, NewFetchError(models.ErrJSONDecode, symbol,
			fmt.Errorf("quote columns do not match %d timestamps", len(result.Timestamp)))
	}

	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bars = append(bars, models.Bar{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      deref(quote.Open[i]),
			High:      deref(quote.High[i]),
			Low:       deref(quote.Low[i]),
			Close:     deref(quote.Close[i]),
			Volume:    derefVolume(quote.Volume, i),
		})
	}

	timezone := result.Meta.ExchangeTimezoneName
	if timezone == "" {
		timezone = result.Meta.Timezone
	}

	return models.NewSeries(symbol, interval, timezone, bars), nil
}

// classifyProviderError maps a provider error payload onto the taxonomy
func classifyProviderError(apiErr *chartAPIError) models.ErrorCode {
	code := strings.ToLower(apiErr.Code)
	desc := strings.ToLower(apiErr.Description)

	switch {
	case strings.Contains(code, "not found") || strings.Contains(desc, "delisted"):
		return models.ErrSymbolNotFound
	case strings.Contains(desc, "granularity") || strings.Contains(desc, "period") || strings.Contains(desc, "range"):
		return models.ErrPeriodLimitExceeded
	default:
		return models.ErrNetworkTimeout
	}
}

// deref reads a nullable column value, mapping null to NaN so the
// validator drops the row instead of treating it as a free zero.
func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func derefVolume(col []*int64, i int) int64 {
	if i >= len(col) || col[i] == nil {
		return 0
	}
	return *col[i]
}
