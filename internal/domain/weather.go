package domain

import (
	"time"

	"github.com/google/uuid"
)

// Location is a logical place tracked by the service. Identity is immutable
// once created.
type Location struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"createdAt"`
}

// User owns subscriptions and receives alerts.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Observation is a single normalized provider reading. Any measurement may
// be absent: the provider omits fields freely.
type Observation struct {
	ObservedAt           time.Time
	TemperatureC         *float64
	ApparentTemperatureC *float64
	PrecipitationMm      *float64
	WeatherCode          *int
}

// WeatherSnapshot is one persisted observation, unique per
// (LocationID, ObservedAt, Source).
type WeatherSnapshot struct {
	ID                   uuid.UUID `json:"id"`
	LocationID           uuid.UUID `json:"locationId"`
	ObservedAt           time.Time `json:"observedAt"`
	TemperatureC         *float64  `json:"temperatureC"`
	ApparentTemperatureC *float64  `json:"apparentTemperatureC"`
	PrecipitationMm      *float64  `json:"precipitationMm"`
	WeatherCode          *int      `json:"weatherCode"`
	Source               string    `json:"source"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Apply overwrites each measurement for which the observation carries a
// non-nil value differing from the stored one. It reports whether anything
// changed.
func (s *WeatherSnapshot) Apply(obs Observation) bool {
	changed := false

	if obs.TemperatureC != nil && !equalFloat(s.TemperatureC, obs.TemperatureC) {
		s.TemperatureC = obs.TemperatureC
		changed = true
	}
	if obs.ApparentTemperatureC != nil && !equalFloat(s.ApparentTemperatureC, obs.ApparentTemperatureC) {
		s.ApparentTemperatureC = obs.ApparentTemperatureC
		changed = true
	}
	if obs.PrecipitationMm != nil && !equalFloat(s.PrecipitationMm, obs.PrecipitationMm) {
		s.PrecipitationMm = obs.PrecipitationMm
		changed = true
	}
	if obs.WeatherCode != nil && !equalInt(s.WeatherCode, obs.WeatherCode) {
		s.WeatherCode = obs.WeatherCode
		changed = true
	}

	return changed
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// UpsertResult describes what a snapshot upsert did.
type UpsertResult int

const (
	UpsertUnchanged UpsertResult = iota
	UpsertCreated
	UpsertUpdated
)

func (r UpsertResult) String() string {
	switch r {
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// HourlyForecastPoint is one hour of forecast data. Fields other than Time
// may be nil when the provider arrays are shorter than the time array.
type HourlyForecastPoint struct {
	Time                 time.Time `json:"time"`
	TemperatureC         *float64  `json:"temperatureC"`
	ApparentTemperatureC *float64  `json:"apparentTemperatureC"`
	WeatherCode          *int      `json:"weatherCode"`
}

// HourlyForecast is an ordered series of hourly points.
type HourlyForecast struct {
	Points []HourlyForecastPoint
}
