package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-alert-service/internal/domain"
)

// Source identifies Open-Meteo observations in snapshot storage.
const Source = "open-meteo"

// OpenMeteoClient is the raw Open-Meteo client without resilience. Wrap it
// with NewResilientClient before handing it to the pipeline.
type OpenMeteoClient struct {
	baseURL string
	client  *http.Client
}

var _ Client = (*OpenMeteoClient)(nil)

// NewOpenMeteoClient creates a raw client against baseURL
// (e.g. https://api.open-meteo.com).
func NewOpenMeteoClient(client *http.Client, baseURL string) *OpenMeteoClient {
	return &OpenMeteoClient{baseURL: baseURL, client: client}
}

// FetchCurrent fetches the current observation for a coordinate pair.
func (c *OpenMeteoClient) FetchCurrent(ctx context.Context, lat, lon float64) (domain.Observation, error) {
	values := url.Values{}
	values.Set("latitude", formatCoord(lat))
	values.Set("longitude", formatCoord(lon))
	values.Set("current", "temperature_2m,apparent_temperature,precipitation,weather_code")
	values.Set("timezone", "UTC")

	var payload openMeteoResponse
	if err := c.get(ctx, values, &payload); err != nil {
		return domain.Observation{}, err
	}
	if payload.Current == nil {
		return domain.Observation{}, fmt.Errorf("open-meteo response missing current block")
	}

	return domain.Observation{
		ObservedAt:           parseProviderTime(payload.Current.Time),
		TemperatureC:         payload.Current.Temperature2m,
		ApparentTemperatureC: payload.Current.ApparentTemperature,
		PrecipitationMm:      payload.Current.Precipitation,
		WeatherCode:          payload.Current.WeatherCode,
	}, nil
}

// FetchHourly fetches an hourly forecast. The point count equals the
// shortest of the provider's parallel arrays; shorter value arrays yield
// nil fields, not errors.
func (c *OpenMeteoClient) FetchHourly(ctx context.Context, lat, lon float64, hours int) (domain.HourlyForecast, error) {
	hours = ClampHours(hours)

	values := url.Values{}
	values.Set("latitude", formatCoord(lat))
	values.Set("longitude", formatCoord(lon))
	values.Set("hourly", "temperature_2m,apparent_temperature,weather_code")
	values.Set("forecast_hours", strconv.Itoa(hours))
	values.Set("timezone", "UTC")

	var payload openMeteoResponse
	if err := c.get(ctx, values, &payload); err != nil {
		return domain.HourlyForecast{}, err
	}
	if payload.Hourly == nil || len(payload.Hourly.Time) == 0 {
		return domain.HourlyForecast{}, fmt.Errorf("open-meteo response missing hourly block")
	}

	// Effective length is the minimum across the arrays the provider sent;
	// an omitted array contributes nil fields rather than bounding the
	// series.
	size := len(payload.Hourly.Time)
	size = minPresent(size, len(payload.Hourly.Temperature2m))
	size = minPresent(size, len(payload.Hourly.ApparentTemperature))
	size = minPresent(size, len(payload.Hourly.WeatherCode))

	points := make([]domain.HourlyForecastPoint, 0, size)
	for i := 0; i < size; i++ {
		points = append(points, domain.HourlyForecastPoint{
			Time:                 parseProviderTime(payload.Hourly.Time[i]),
			TemperatureC:         floatAt(payload.Hourly.Temperature2m, i),
			ApparentTemperatureC: floatAt(payload.Hourly.ApparentTemperature, i),
			WeatherCode:          intAt(payload.Hourly.WeatherCode, i),
		})
	}

	return domain.HourlyForecast{Points: points}, nil
}

func (c *OpenMeteoClient) get(ctx context.Context, values url.Values, out any) error {
	u := fmt.Sprintf("%s/v1/forecast?%s", c.baseURL, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseProviderTime accepts offset-qualified RFC3339 or naive timestamps;
// naive values are read as UTC. Anything else falls back to the current
// wall clock, which is lossy, so it is logged loudly instead of failing the
// fetch.
func parseProviderTime(raw string) time.Time {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC()
	}
	if ts, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return ts.UTC()
	}
	if ts, err := time.Parse("2006-01-02T15:04", raw); err == nil {
		return ts.UTC()
	}
	log.Warn().Str("time", raw).Msg("unparseable provider timestamp; falling back to now")
	return time.Now().UTC()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func minPresent(size, length int) int {
	if length > 0 && length < size {
		return length
	}
	return size
}

func floatAt(list []*float64, i int) *float64 {
	if i >= len(list) {
		return nil
	}
	return list[i]
}

func intAt(list []*int, i int) *int {
	if i >= len(list) {
		return nil
	}
	return list[i]
}

type openMeteoResponse struct {
	Current *struct {
		Time                string   `json:"time"`
		Temperature2m       *float64 `json:"temperature_2m"`
		ApparentTemperature *float64 `json:"apparent_temperature"`
		Precipitation       *float64 `json:"precipitation"`
		WeatherCode         *int     `json:"weather_code"`
	} `json:"current"`

	Hourly *struct {
		Time                []string   `json:"time"`
		Temperature2m       []*float64 `json:"temperature_2m"`
		ApparentTemperature []*float64 `json:"apparent_temperature"`
		WeatherCode         []*int     `json:"weather_code"`
	} `json:"hourly"`
}
