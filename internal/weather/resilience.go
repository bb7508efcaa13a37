package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-alert-service/internal/domain"
)

// ResilienceConfig bundles the rate-limit, retry and circuit-breaker
// settings applied around provider calls.
type ResilienceConfig struct {
	// Rate limiting: sustained calls per second with a burst allowance.
	// Callers over the rate block up to PermitWait for a permit, then fail
	// fast.
	RatePerSecond float64
	RateBurst     int
	PermitWait    time.Duration

	// Retry on transient failures with exponential backoff.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Circuit breaker: opens when the failure ratio over the rolling
	// interval exceeds FailureRatio with at least MinRequests observed;
	// half-opens after OpenTimeout.
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	OpenTimeout  time.Duration
}

// DefaultResilienceConfig mirrors the production provider settings.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		RatePerSecond:   5,
		RateBurst:       5,
		PermitWait:      2 * time.Second,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MinRequests:     5,
		FailureRatio:    0.5,
		Interval:        time.Minute,
		OpenTimeout:     2 * time.Minute,
	}
}

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
)

// checkStatus classifies an HTTP response. 429 and 5xx are transient and
// retryable; other non-2xx codes are not.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
	}
	return nil
}

// ResilientClient decorates a raw Client with, in order, a rate limiter, a
// bounded retry loop and a circuit breaker around each network call. Every
// failure path degrades to ErrUnavailable; no transport error ever reaches
// a caller.
type ResilientClient struct {
	inner   Client
	cfg     ResilienceConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewResilientClient wraps inner with the resilience policy.
func NewResilientClient(inner Client, cfg ResilienceConfig) *ResilientClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "open-meteo",
		Interval: cfg.Interval,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
	})

	return &ResilientClient{
		inner:   inner,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		breaker: breaker,
	}
}

// FetchCurrent fetches the current observation, degrading to ErrUnavailable
// on any failure.
func (c *ResilientClient) FetchCurrent(ctx context.Context, lat, lon float64) (domain.Observation, error) {
	result, err := execute(ctx, c, func(ctx context.Context) (domain.Observation, error) {
		return c.inner.FetchCurrent(ctx, lat, lon)
	})
	if err != nil {
		log.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("current observation unavailable")
		return domain.Observation{}, ErrUnavailable
	}
	return result, nil
}

// FetchHourly fetches an hourly forecast, degrading to ErrUnavailable on
// any failure.
func (c *ResilientClient) FetchHourly(ctx context.Context, lat, lon float64, hours int) (domain.HourlyForecast, error) {
	result, err := execute(ctx, c, func(ctx context.Context) (domain.HourlyForecast, error) {
		return c.inner.FetchHourly(ctx, lat, lon, hours)
	})
	if err != nil {
		log.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Int("hours", hours).Msg("hourly forecast unavailable")
		return domain.HourlyForecast{}, ErrUnavailable
	}
	return result, nil
}

// execute runs call under the full policy: a rate permit per attempt, the
// breaker around the call itself, and exponential backoff between attempts.
// An open breaker short-circuits immediately without burning retries.
func execute[T any](ctx context.Context, c *ResilientClient, call func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if err := c.waitForPermit(ctx); err != nil {
			return zero, err
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return call(ctx)
		})
		if err == nil {
			value, ok := result.(T)
			if !ok {
				return zero, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return value, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("circuit breaker open: %w", err)
		}

		lastErr = err
		if attempt >= c.cfg.MaxRetries {
			return zero, lastErr
		}

		delay := c.cfg.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.cfg.MaxInterval > 0 && delay > c.cfg.MaxInterval {
			delay = c.cfg.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

var _ Client = (*ResilientClient)(nil)

// waitForPermit blocks up to PermitWait for a rate permit, then fails fast.
func (c *ResilientClient) waitForPermit(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.PermitWait)
	defer cancel()

	if err := c.limiter.Wait(waitCtx); err != nil {
		return fmt.Errorf("rate permit: %w", err)
	}
	return nil
}
