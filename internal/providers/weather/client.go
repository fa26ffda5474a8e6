// Package weather wraps the Open-Meteo forecast endpoint. The cleaned
// projection aligns the "current" instant with the nearest hourly sample to
// backfill fields the current block itself does not carry.
package weather

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/providers/upstream"
	"github.com/terradart/terradart-api/internal/types"
)

const defaultBaseURL = "https://api.open-meteo.com/v1/forecast"

var _ Provider = (*Client)(nil)

// Provider fetches the current conditions and next-day outlook for a
// coordinate pair.
type Provider interface {
	Forecast(ctx context.Context, loc types.GeoLocation) (*Report, error)
}

// Report is the weather payload merged into a city detail response. Raw
// carries the untouched upstream body alongside the cleaned projection.
type Report struct {
	Current Current         `json:"current"`
	NextDay *NextDay        `json:"next_day,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Current is the cleaned "now" block. The pointer fields come from aligning
// the current timestamp with the nearest hourly sample; they stay nil when no
// timestamp parses.
type Current struct {
	Time          string  `json:"time"`
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
	WeatherCode   int     `json:"weathercode"`

	ApparentTemperature      *float64 `json:"apparent_temperature,omitempty"`
	Humidity                 *float64 `json:"humidity,omitempty"`
	Precipitation            *float64 `json:"precipitation,omitempty"`
	PrecipitationProbability *float64 `json:"precipitation_probability,omitempty"`
	CloudCover               *float64 `json:"cloud_cover,omitempty"`
}

// NextDay is the tomorrow projection from the daily series.
type NextDay struct {
	Date                        string  `json:"date"`
	TemperatureMax              float64 `json:"temperature_max"`
	TemperatureMin              float64 `json:"temperature_min"`
	PrecipitationSum            float64 `json:"precipitation_sum"`
	PrecipitationProbabilityMax float64 `json:"precipitation_probability_max"`
	WeatherCode                 int     `json:"weathercode"`
}

// Client is the Open-Meteo adapter.
type Client struct {
	http    *upstream.Client
	baseURL string
	store   cache.Store
	ttl     time.Duration
	sink    observability.FailureSink
	logger  *slog.Logger
}

func NewClient(store cache.Store, ttl time.Duration, timeout time.Duration, sink observability.FailureSink, logger *slog.Logger) *Client {
	return &Client{
		http:    upstream.New("open-meteo", timeout, 10),
		baseURL: defaultBaseURL,
		store:   store,
		ttl:     ttl,
		sink:    sink,
		logger:  logger,
	}
}

// WithBaseURL overrides the upstream base URL. Used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// Forecast fetches current weather plus the next-day outlook, cache-aside by
// rounded coordinates.
func (c *Client) Forecast(ctx context.Context, loc types.GeoLocation) (*Report, error) {
	key := cache.Key("weather",
		strconv.FormatFloat(loc.Latitude, 'f', 4, 64),
		strconv.FormatFloat(loc.Longitude, 'f', 4, 64),
	)
	if cached, found := c.store.Get(key); found {
		return cached.(*Report), nil
	}

	query := url.Values{
		"latitude":        {strconv.FormatFloat(loc.Latitude, 'f', -1, 64)},
		"longitude":       {strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		"current_weather": {"true"},
		"hourly":          {"temperature_2m,apparent_temperature,relativehumidity_2m,precipitation,precipitation_probability,windspeed_10m,winddirection_10m,cloudcover"},
		"daily":           {"temperature_2m_max,temperature_2m_min,precipitation_sum,precipitation_probability_max,weathercode"},
		"forecast_days":   {"2"},
		"timezone":        {"auto"},
	}

	var raw json.RawMessage
	if err := c.http.GetJSON(ctx, c.baseURL, query, nil, &raw); err != nil {
		apiErr := types.AsAPIError(err)
		c.sink.Record(ctx, "weather", err.Error(), map[string]any{
			"latitude":  loc.Latitude,
			"longitude": loc.Longitude,
			"status":    apiErr.Status,
		}, slog.LevelWarn)
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, types.NewUpstream("open-meteo: unexpected response shape", 0)
	}

	report := buildReport(resp, raw)
	c.store.Set(key, report, c.ttl)
	return report, nil
}

func buildReport(resp apiResponse, raw json.RawMessage) *Report {
	current := Current{
		Time:          resp.CurrentWeather.Time,
		Temperature:   resp.CurrentWeather.Temperature,
		WindSpeed:     resp.CurrentWeather.WindSpeed,
		WindDirection: resp.CurrentWeather.WindDirection,
		WeatherCode:   resp.CurrentWeather.WeatherCode,
	}

	if idx := nearestIndex(resp.CurrentWeather.Time, resp.Hourly.Time); idx != nil {
		current.ApparentTemperature = pickIndexed(resp.Hourly.ApparentTemperature, *idx)
		current.Humidity = pickIndexed(resp.Hourly.Humidity, *idx)
		current.Precipitation = pickIndexed(resp.Hourly.Precipitation, *idx)
		current.PrecipitationProbability = pickIndexed(resp.Hourly.PrecipitationProbability, *idx)
		current.CloudCover = pickIndexed(resp.Hourly.CloudCover, *idx)
	}

	report := &Report{Current: current, Raw: raw}

	// Index 0 is today; index 1 is tomorrow.
	if len(resp.Daily.Time) > 1 {
		report.NextDay = &NextDay{
			Date:                        resp.Daily.Time[1],
			TemperatureMax:              indexOrZero(resp.Daily.TemperatureMax, 1),
			TemperatureMin:              indexOrZero(resp.Daily.TemperatureMin, 1),
			PrecipitationSum:            indexOrZero(resp.Daily.PrecipitationSum, 1),
			PrecipitationProbabilityMax: indexOrZero(resp.Daily.PrecipitationProbabilityMax, 1),
			WeatherCode:                 int(indexOrZero(resp.Daily.WeatherCode, 1)),
		}
	}
	return report
}

// parseISO parses the timestamp shapes Open-Meteo emits. Returns nil when the
// value does not parse.
func parseISO(value string) *time.Time {
	if value == "" {
		return nil
	}
	layouts := []string{
		"2006-01-02T15:04",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006-01-02",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}

// nearestIndex finds the hourly sample closest in time to current, ties
// broken by the lowest index. Returns nil when nothing parses.
func nearestIndex(current string, series []string) *int {
	target := parseISO(current)
	if target == nil || len(series) == 0 {
		return nil
	}

	var best *int
	var bestDelta time.Duration
	for i, value := range series {
		ts := parseISO(value)
		if ts == nil {
			continue
		}
		delta := target.Sub(*ts)
		if delta < 0 {
			delta = -delta
		}
		if best == nil || delta < bestDelta {
			idx := i
			best = &idx
			bestDelta = delta
		}
	}
	return best
}

func pickIndexed(series []float64, idx int) *float64 {
	if idx < 0 || idx >= len(series) {
		return nil
	}
	v := series[idx]
	return &v
}

func indexOrZero(series []float64, idx int) float64 {
	if idx < 0 || idx >= len(series) {
		return 0
	}
	return series[idx]
}

// Open-Meteo response shape, limited to the requested series.

type apiResponse struct {
	CurrentWeather currentWeather `json:"current_weather"`
	Hourly         hourlySeries   `json:"hourly"`
	Daily          dailySeries    `json:"daily"`
}

type currentWeather struct {
	Time          string  `json:"time"`
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
	WeatherCode   int     `json:"weathercode"`
}

type hourlySeries struct {
	Time                     []string  `json:"time"`
	Temperature              []float64 `json:"temperature_2m"`
	ApparentTemperature      []float64 `json:"apparent_temperature"`
	Humidity                 []float64 `json:"relativehumidity_2m"`
	Precipitation            []float64 `json:"precipitation"`
	PrecipitationProbability []float64 `json:"precipitation_probability"`
	WindSpeed                []float64 `json:"windspeed_10m"`
	WindDirection            []float64 `json:"winddirection_10m"`
	CloudCover               []float64 `json:"cloudcover"`
}

type dailySeries struct {
	Time                        []string  `json:"time"`
	TemperatureMax              []float64 `json:"temperature_2m_max"`
	TemperatureMin              []float64 `json:"temperature_2m_min"`
	PrecipitationSum            []float64 `json:"precipitation_sum"`
	PrecipitationProbabilityMax []float64 `json:"precipitation_probability_max"`
	WeatherCode                 []float64 `json:"weathercode"`
}
