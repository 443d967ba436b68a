package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"trend-scan/models"
	"trend-scan/observability"
)

// BreakerConfig holds configuration for per-symbol circuit breakers
type BreakerConfig struct {
	FailureThreshold uint32        // consecutive failures before the breaker opens
	Window           time.Duration // cyclic period of the closed state to clear counts
	Open             time.Duration // period of the open state before allowing a probe
	MaxProbes        uint32        // requests allowed through in half-open state
}

// DefaultBreakerConfig opens after 3 consecutive failures inside a
// 5-minute window and holds the symbol out for 15 minutes.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 3,
	Window:           5 * time.Minute,
	Open:             15 * time.Minute,
	MaxProbes:        1,
}

// BreakerRegistry manages one circuit breaker per symbol. It is an
// explicit handle: callers construct it and pass it down, there is no
// package-global instance.
type BreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   BreakerConfig
}

// NewBreakerRegistry creates a new registry with the given config
func NewBreakerRegistry(config BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   config,
	}
}

// GetBreaker returns (or creates) the circuit breaker for a symbol
func (r *BreakerRegistry) GetBreaker(symbol string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, exists := r.breakers[symbol]
	r.mu.RUnlock()

	if exists {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if cb, exists = r.breakers[symbol]; exists {
		return cb
	}

	threshold := r.config.FailureThreshold
	settings := gobreaker.Settings{
		Name:        symbol,
		MaxRequests: r.config.MaxProbes,
		Interval:    r.config.Window,
		Timeout:     r.config.Open,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(symbol string, from gobreaker.State, to gobreaker.State) {
			observability.Warn("circuit breaker state change",
				"symbol", symbol,
				"from", from.String(),
				"to", to.String())

			metrics := observability.GetMetrics()
			metrics.SetCircuitBreakerState(symbol, stateToInt(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(symbol)
			}
		},
	}

	cb = gobreaker.NewCircuitBreaker[any](settings)
	r.breakers[symbol] = cb

	return cb
}

// Execute runs fn through the symbol's circuit breaker. When the
// breaker is open the function is never invoked and the error carries
// the CIRCUIT_BREAKER code. Context cancellation is checked before the
// breaker so aborted scans do not count against the symbol.
func (r *BreakerRegistry) Execute(ctx context.Context, symbol string, fn func() (any, error)) (any, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cb := r.GetBreaker(symbol)

	result, err := cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.Debug("circuit breaker open, skipping symbol", "symbol", symbol)
			return nil, NewFetchError(models.ErrCircuitBreaker, symbol, err)
		}
	}

	return result, err
}

// Protect runs a typed function through the registry's breaker for the
// given symbol.
func Protect[T any](ctx context.Context, r *BreakerRegistry, symbol string, fn func() (T, error)) (T, error) {
	result, err := r.Execute(ctx, symbol, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// State returns the current state of the symbol's breaker without
// creating one for unseen symbols.
func (r *BreakerRegistry) State(symbol string) gobreaker.State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cb, exists := r.breakers[symbol]; exists {
		return cb.State()
	}
	return gobreaker.StateClosed
}

// Status returns the current state of all tracked breakers
func (r *BreakerRegistry) Status() map[string]BreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]BreakerStatus)
	for symbol, cb := range r.breakers {
		counts := cb.Counts()
		status[symbol] = BreakerStatus{
			Symbol:           symbol,
			State:            cb.State().String(),
			Requests:         counts.Requests,
			TotalSuccesses:   counts.TotalSuccesses,
			TotalFailures:    counts.TotalFailures,
			ConsecutiveSucc:  counts.ConsecutiveSuccesses,
			ConsecutiveFails: counts.ConsecutiveFailures,
		}
	}
	return status
}

// BreakerStatus represents the current state of one symbol's breaker
type BreakerStatus struct {
	Symbol           string `json:"symbol"`
	State            string `json:"state"`
	Requests         uint32 `json:"requests"`
	TotalSuccesses   uint32 `json:"total_successes"`
	TotalFailures    uint32 `json:"total_failures"`
	ConsecutiveSucc  uint32 `json:"consecutive_successes"`
	ConsecutiveFails uint32 `json:"consecutive_failures"`
}

// stateToInt converts a circuit breaker state to an integer for metrics
// 0=closed, 1=half-open, 2=open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
