package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testResilienceConfig() ResilienceConfig {
	cfg := DefaultResilienceConfig()
	cfg.RatePerSecond = 1000
	cfg.RateBurst = 1000
	cfg.PermitWait = 100 * time.Millisecond
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	return cfg
}

func TestResilientClientRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current": {"time": "2025-01-01T00:00", "temperature_2m": 7.0}}`))
	}))
	defer server.Close()

	client := NewResilientClient(NewOpenMeteoClient(server.Client(), server.URL), testResilienceConfig())

	obs, err := client.FetchCurrent(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.TemperatureC == nil || *obs.TemperatureC != 7.0 {
		t.Errorf("temperature = %v, want 7.0", obs.TemperatureC)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("provider called %d times, want 3", got)
	}
}

func TestResilientClientDegradesToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testResilienceConfig()
	cfg.MaxRetries = 1
	client := NewResilientClient(NewOpenMeteoClient(server.Client(), server.URL), cfg)

	_, err := client.FetchCurrent(context.Background(), 0, 0)
	if err != ErrUnavailable {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestOpenBreakerShortCircuitsWithoutNetworkCalls(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testResilienceConfig()
	cfg.MaxRetries = 0
	cfg.MinRequests = 2
	cfg.FailureRatio = 0.5
	cfg.OpenTimeout = time.Minute
	client := NewResilientClient(NewOpenMeteoClient(server.Client(), server.URL), cfg)

	// Trip the breaker.
	for i := 0; i < 3; i++ {
		_, _ = client.FetchCurrent(context.Background(), 0, 0)
	}
	tripped := atomic.LoadInt32(&calls)

	// While open, calls short-circuit to the fallback immediately.
	for i := 0; i < 5; i++ {
		if _, err := client.FetchCurrent(context.Background(), 0, 0); err != ErrUnavailable {
			t.Fatalf("err = %v, want ErrUnavailable", err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != tripped {
		t.Errorf("open breaker still hit the network: %d calls after trip (had %d)", got, tripped)
	}
}

func TestRatePermitFailsFast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current": {"time": "2025-01-01T00:00"}}`))
	}))
	defer server.Close()

	cfg := testResilienceConfig()
	cfg.RatePerSecond = 0.1 // one permit every 10s after the burst
	cfg.RateBurst = 1
	cfg.PermitWait = 10 * time.Millisecond
	client := NewResilientClient(NewOpenMeteoClient(server.Client(), server.URL), cfg)

	if _, err := client.FetchCurrent(context.Background(), 0, 0); err != nil {
		t.Fatalf("first call should pass on burst, got %v", err)
	}

	start := time.Now()
	_, err := client.FetchCurrent(context.Background(), 0, 0)
	if err != ErrUnavailable {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("permit wait took %v, want fail-fast within the permit wait", elapsed)
	}
}
