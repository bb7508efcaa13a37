package weather

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-alert-service/internal/cache"
	"github.com/i474232898/weather-alert-service/internal/domain"
	"github.com/i474232898/weather-alert-service/internal/store"
)

// CurrentWeather is the current-weather read payload.
type CurrentWeather struct {
	LocationID           uuid.UUID `json:"locationId"`
	ObservedAt           time.Time `json:"observedAt"`
	TemperatureC         *float64  `json:"temperatureC"`
	ApparentTemperatureC *float64  `json:"apparentTemperatureC"`
	PrecipitationMm      *float64  `json:"precipitationMm"`
	WeatherCode          *int      `json:"weatherCode"`
	Source               string    `json:"source"`
}

// TemperatureStats summarizes one measurement over a forecast window.
type TemperatureStats struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
	Avg *float64 `json:"avg"`
}

// HourlyWeather is the hourly-forecast read payload.
type HourlyWeather struct {
	LocationID          uuid.UUID                    `json:"locationId"`
	Hours               int                          `json:"hours"`
	FetchedAt           time.Time                    `json:"fetchedAt"`
	Points              []domain.HourlyForecastPoint `json:"points"`
	Temperature         TemperatureStats             `json:"temperature"`
	ApparentTemperature TemperatureStats             `json:"apparentTemperature"`
}

// Service is the cached read path for weather data. Current weather comes
// from the snapshot store, hourly forecasts straight from the provider;
// both are cached with their class TTL.
type Service struct {
	locations store.LocationStore
	snapshots store.SnapshotStore
	client    Client
	cache     *cache.ReadCache
}

// NewService creates the read-path service.
func NewService(locations store.LocationStore, snapshots store.SnapshotStore, client Client, readCache *cache.ReadCache) *Service {
	return &Service{
		locations: locations,
		snapshots: snapshots,
		client:    client,
		cache:     readCache,
	}
}

// GetCurrent returns the latest stored observation for the location.
// A location that was never ingested is a not-found condition, never an
// empty payload.
func (s *Service) GetCurrent(ctx context.Context, locationID uuid.UUID) (CurrentWeather, error) {
	return cache.GetOrComputeCurrent(ctx, s.cache, locationID, func(ctx context.Context) (CurrentWeather, error) {
		loc, err := s.locations.FindLocation(ctx, locationID)
		if err != nil {
			return CurrentWeather{}, err
		}
		snap, err := s.snapshots.FindLatest(ctx, loc.ID)
		if err != nil {
			return CurrentWeather{}, err
		}

		return CurrentWeather{
			LocationID:           snap.LocationID,
			ObservedAt:           snap.ObservedAt,
			TemperatureC:         snap.TemperatureC,
			ApparentTemperatureC: snap.ApparentTemperatureC,
			PrecipitationMm:      snap.PrecipitationMm,
			WeatherCode:          snap.WeatherCode,
			Source:               snap.Source,
		}, nil
	})
}

// GetHourly returns the hourly forecast for the location, hours clamped to
// [1,168]. Provider failure surfaces as ErrUnavailable, distinct from
// not-found.
func (s *Service) GetHourly(ctx context.Context, locationID uuid.UUID, hours int) (HourlyWeather, error) {
	hours = ClampHours(hours)

	return cache.GetOrComputeHourly(ctx, s.cache, locationID, hours, func(ctx context.Context) (HourlyWeather, error) {
		loc, err := s.locations.FindLocation(ctx, locationID)
		if err != nil {
			return HourlyWeather{}, err
		}

		forecast, err := s.client.FetchHourly(ctx, loc.Latitude, loc.Longitude, hours)
		if err != nil {
			return HourlyWeather{}, err
		}

		return HourlyWeather{
			LocationID: loc.ID,
			Hours:      hours,
			FetchedAt:  time.Now().UTC(),
			Points:     forecast.Points,
			Temperature: stats(forecast.Points, func(p domain.HourlyForecastPoint) *float64 {
				return p.TemperatureC
			}),
			ApparentTemperature: stats(forecast.Points, func(p domain.HourlyForecastPoint) *float64 {
				return p.ApparentTemperatureC
			}),
		}, nil
	})
}

func stats(points []domain.HourlyForecastPoint, extract func(domain.HourlyForecastPoint) *float64) TemperatureStats {
	var (
		min, max, sum float64
		count         int
	)
	for _, p := range points {
		v := extract(p)
		if v == nil {
			continue
		}
		if count == 0 || *v < min {
			min = *v
		}
		if count == 0 || *v > max {
			max = *v
		}
		sum += *v
		count++
	}

	if count == 0 {
		return TemperatureStats{}
	}
	avg := sum / float64(count)
	return TemperatureStats{Min: &min, Max: &max, Avg: &avg}
}
