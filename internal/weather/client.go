// Package weather talks to the external weather provider and serves the
// cached read path on top of it.
package weather

import (
	"context"
	"errors"

	"github.com/i474232898/weather-alert-service/internal/domain"
)

// ErrUnavailable is the only error a resilient client surfaces: the
// provider could not be reached within the resilience budget (retries
// exhausted, breaker open, or rate permit unavailable). Transport and parse
// errors never escape as anything else.
var ErrUnavailable = errors.New("weather provider unavailable")

// Client fetches weather data for a coordinate pair.
type Client interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (domain.Observation, error)
	FetchHourly(ctx context.Context, lat, lon float64, hours int) (domain.HourlyForecast, error)
}

// ClampHours bounds a requested forecast window to [1,168] hours. A
// non-positive request defaults to 24.
func ClampHours(hours int) int {
	if hours <= 0 {
		return 24
	}
	if hours > 168 {
		return 168
	}
	return hours
}
