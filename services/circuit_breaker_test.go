package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"trend-scan/models"
)

func TestNewBreakerRegistry(t *testing.T) {
	config := BreakerConfig{
		FailureThreshold: 3,
		Window:           30 * time.Second,
		Open:             10 * time.Second,
		MaxProbes:        1,
	}

	registry := NewBreakerRegistry(config)

	if registry == nil {
		t.Fatal("expected registry to be created")
	}
	if registry.breakers == nil {
		t.Error("expected breakers map to be initialized")
	}
	if registry.config != config {
		t.Error("expected config to be set")
	}
}

func TestDefaultBreakerConfig(t *testing.T) {
	if DefaultBreakerConfig.FailureThreshold != 3 {
		t.Errorf("expected FailureThreshold=3, got %d", DefaultBreakerConfig.FailureThreshold)
	}
	if DefaultBreakerConfig.Window != 5*time.Minute {
		t.Errorf("expected Window=5m, got %v", DefaultBreakerConfig.Window)
	}
	if DefaultBreakerConfig.Open != 15*time.Minute {
		t.Errorf("expected Open=15m, got %v", DefaultBreakerConfig.Open)
	}
	if DefaultBreakerConfig.MaxProbes != 1 {
		t.Errorf("expected MaxProbes=1, got %d", DefaultBreakerConfig.MaxProbes)
	}
}

func TestBreakerRegistry_GetBreaker(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig)

	// First call should create a new breaker
	breaker1 := registry.GetBreaker("AAPL")
	if breaker1 == nil {
		t.Fatal("expected breaker to be created")
	}

	// Second call should return the same breaker
	breaker2 := registry.GetBreaker("AAPL")
	if breaker1 != breaker2 {
		t.Error("expected same breaker instance")
	}

	// Different symbol should create different breaker
	breaker3 := registry.GetBreaker("MSFT")
	if breaker1 == breaker3 {
		t.Error("expected different breaker for different symbol")
	}
}

func TestBreakerRegistry_Execute_Success(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig)
	ctx := context.Background()

	result, err := registry.Execute(ctx, "AAPL", func() (any, error) {
		return "success", nil
	})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got %v", result)
	}
}

func TestBreakerRegistry_Execute_Error(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig)
	ctx := context.Background()

	expectedErr := errors.New("test error")
	result, err := registry.Execute(ctx, "AAPL", func() (any, error) {
		return nil, expectedErr
	})

	if err == nil {
		t.Error("expected error")
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}
}

func TestBreakerRegistry_Execute_ContextCanceled(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := registry.Execute(ctx, "AAPL", func() (any, error) {
		return "should not reach", nil
	})

	if err == nil {
		t.Error("expected error due to cancelled context")
	}

	// Cancelled work never reaches the breaker, so no breaker should
	// have been created and no failure counted.
	if len(registry.Status()) != 0 {
		t.Errorf("expected no breakers after cancelled execute, got %d", len(registry.Status()))
	}
}

func TestBreakerRegistry_OpensAfterConsecutiveFailures(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = registry.Execute(ctx, "FAIL", func() (any, error) {
			return nil, errors.New("provider down")
		})
	}

	status := registry.Status()
	if status["FAIL"].State != "open" {
		t.Fatalf("expected breaker open after 3 consecutive failures, got %s", status["FAIL"].State)
	}

	// Next call must be rejected without invoking the function
	executed := false
	_, err := registry.Execute(ctx, "FAIL", func() (any, error) {
		executed = true
		return "should not execute", nil
	})

	if executed {
		t.Error("function should not execute while breaker is open")
	}
	if err == nil {
		t.Fatal("expected error from open breaker")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if fe.Code != models.ErrCircuitBreaker {
		t.Errorf("Code = %v, want %v", fe.Code, models.ErrCircuitBreaker)
	}
	if fe.Symbol != "FAIL" {
		t.Errorf("Symbol = %v, want FAIL", fe.Symbol)
	}
}

func TestBreakerRegistry_SuccessResetsFailureCount(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig)
	ctx := context.Background()

	fail := func() (any, error) { return nil, errors.New("fail") }
	succeed := func() (any, error) { return "ok", nil }

	// Two failures, then a success, then two more failures: the success
	// resets the consecutive count so the breaker must stay closed.
	_, _ = registry.Execute(ctx, "AAPL", fail)
	_, _ = registry.Execute(ctx, "AAPL", fail)
	_, _ = registry.Execute(ctx, "AAPL", succeed)
	_, _ = registry.Execute(ctx, "AAPL", fail)
	_, _ = registry.Execute(ctx, "AAPL", fail)

	status := registry.Status()
	if status["AAPL"].State != "closed" {
		t.Errorf("expected breaker closed after reset, got %s", status["AAPL"].State)
	}

	// A third consecutive failure opens it
	_, _ = registry.Execute(ctx, "AAPL", fail)

	status = registry.Status()
	if status["AAPL"].State != "open" {
		t.Errorf("expected breaker open after third consecutive failure, got %s", status["AAPL"].State)
	}
}

func TestBreakerRegistry_ProbesAfterOpenWindow(t *testing.T) {
	config := BreakerConfig{
		FailureThreshold: 3,
		Window:           1 * time.Minute,
		Open:             100 * time.Millisecond,
		MaxProbes:        1,
	}
	registry := NewBreakerRegistry(config)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = registry.Execute(ctx, "RECOVER", func() (any, error) {
			return nil, errors.New("fail")
		})
	}

	if registry.State("RECOVER") != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %v", registry.State("RECOVER"))
	}

	// Wait past the open window so a probe is allowed
	time.Sleep(150 * time.Millisecond)

	result, err := registry.Execute(ctx, "RECOVER", func() (any, error) {
		return "probe ok", nil
	})
	if err != nil {
		t.Fatalf("probe should be allowed after open window: %v", err)
	}
	if result != "probe ok" {
		t.Errorf("result = %v, want 'probe ok'", result)
	}

	// Successful probe closes the breaker
	if registry.State("RECOVER") != gobreaker.StateClosed {
		t.Errorf("expected closed breaker after successful probe, got %v", registry.State("RECOVER"))
	}
}

func TestBreakerRegistry_FailedProbeReopens(t *testing.T) {
	config := BreakerConfig{
		FailureThreshold: 3,
		Window:           1 * time.Minute,
		Open:             100 * time.Millisecond,
		MaxProbes:        1,
	}
	registry := NewBreakerRegistry(config)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = registry.Execute(ctx, "FLAKY", func() (any, error) {
			return nil, errors.New("fail")
		})
	}

	time.Sleep(150 * time.Millisecond)

	// Probe fails, breaker snaps back open
	_, err := registry.Execute(ctx, "FLAKY", func() (any, error) {
		return nil, errors.New("still failing")
	})
	if err == nil {
		t.Fatal("expected probe failure")
	}

	if registry.State("FLAKY") != gobreaker.StateOpen {
		t.Errorf("expected breaker open after failed probe, got %v", registry.State("FLAKY"))
	}
}

func TestBreakerRegistry_State_UnknownSymbol(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig)

	if registry.State("NEVER") != gobreaker.StateClosed {
		t.Error("unknown symbol should report closed without creating a breaker")
	}
	if len(registry.Status()) != 0 {
		t.Error("State should not create breakers")
	}
}

func TestBreakerRegistry_Status(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig)
	ctx := context.Background()

	_, _ = registry.Execute(ctx, "AAPL", func() (any, error) {
		return "ok", nil
	})
	_, _ = registry.Execute(ctx, "MSFT", func() (any, error) {
		return nil, errors.New("fail")
	})

	status := registry.Status()

	if len(status) != 2 {
		t.Errorf("expected 2 breakers in status, got %d", len(status))
	}

	if status["AAPL"].TotalSuccesses != 1 {
		t.Errorf("expected 1 success for AAPL, got %d", status["AAPL"].TotalSuccesses)
	}
	if status["MSFT"].TotalFailures != 1 {
		t.Errorf("expected 1 failure for MSFT, got %d", status["MSFT"].TotalFailures)
	}
	if status["MSFT"].ConsecutiveFails != 1 {
		t.Errorf("expected 1 consecutive failure for MSFT, got %d", status["MSFT"].ConsecutiveFails)
	}
}

func TestProtect_TypedResults(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig)
	ctx := context.Background()

	series, err := Protect(ctx, registry, "AAPL", func() (*models.Series, error) {
		return models.NewSeries("AAPL", models.Interval1m, "America/New_York", nil), nil
	})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if series == nil || series.Symbol != "AAPL" {
		t.Errorf("unexpected series: %+v", series)
	}
}

func TestProtect_OpenBreakerReturnsZeroValue(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = registry.Execute(ctx, "DOWN", func() (any, error) {
			return nil, errors.New("fail")
		})
	}

	series, err := Protect(ctx, registry, "DOWN", func() (*models.Series, error) {
		return models.NewSeries("DOWN", models.Interval1m, "America/New_York", nil), nil
	})

	if err == nil {
		t.Fatal("expected error from open breaker")
	}
	if series != nil {
		t.Errorf("expected nil series, got %+v", series)
	}
	if CodeOf(err) != models.ErrCircuitBreaker {
		t.Errorf("CodeOf = %v, want %v", CodeOf(err), models.ErrCircuitBreaker)
	}
}

func TestBreakerRegistry_Concurrent(t *testing.T) {
	registry := NewBreakerRegistry(DefaultBreakerConfig)
	ctx := context.Background()

	done := make(chan bool)
	errChan := make(chan error, 10)

	// Run concurrent requests
	for i := 0; i < 10; i++ {
		go func(id int) {
			_, err := registry.Execute(ctx, "AAPL", func() (any, error) {
				return id, nil
			})
			if err != nil {
				errChan <- err
			}
			done <- true
		}(i)
	}

	// Wait for all goroutines
	for i := 0; i < 10; i++ {
		<-done
	}

	close(errChan)
	for err := range errChan {
		t.Errorf("concurrent execution error: %v", err)
	}

	status := registry.Status()
	if status["AAPL"].TotalSuccesses != 10 {
		t.Errorf("expected 10 successes, got %d", status["AAPL"].TotalSuccesses)
	}
}

func TestBreakerRegistry_GetBreaker_Concurrent(t *testing.T) {
	// Concurrent GetBreaker calls for the same symbol exercise the
	// double-check path.
	registry := NewBreakerRegistry(DefaultBreakerConfig)

	const goroutines = 100
	var wg sync.WaitGroup
	breakers := make(chan *gobreaker.CircuitBreaker[any], goroutines)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			cb := registry.GetBreaker("AAPL")
			breakers <- cb
		}()
	}

	wg.Wait()
	close(breakers)

	// All goroutines should get the same breaker instance
	var first *gobreaker.CircuitBreaker[any]
	for cb := range breakers {
		if first == nil {
			first = cb
		} else if cb != first {
			t.Error("all goroutines should get the same breaker instance")
		}
	}

	status := registry.Status()
	if len(status) != 1 {
		t.Errorf("expected 1 breaker, got %d", len(status))
	}
}
