// Package geocode wraps the Nominatim search endpoint. Resolution tries up
// to three query shapes, treating timeouts as "no result, try the next
// attempt" rather than hard failures.
package geocode

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/providers/upstream"
	"github.com/terradart/terradart-api/internal/types"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	userAgent      = "terradart-api"
)

var _ Geocoder = (*Client)(nil)

// Geocoder resolves a place descriptor to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, city, state, country string) (*types.GeoLocation, error)
	CanGeocode(ctx context.Context, city, state, country string) bool
}

// Client is the Nominatim adapter. Nominatim's usage policy caps clients at
// one request per second.
type Client struct {
	http    *upstream.Client
	baseURL string
	sink    observability.FailureSink
	logger  *slog.Logger
}

func NewClient(timeout time.Duration, sink observability.FailureSink, logger *slog.Logger) *Client {
	return &Client{
		http:    upstream.New("nominatim", timeout, 1),
		baseURL: defaultBaseURL,
		sink:    sink,
		logger:  logger,
	}
}

// WithBaseURL overrides the upstream base URL. Used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type attempt struct {
	query       string
	countryBias string
}

// attemptsFor builds the resolution ladder: the full descriptor first, then
// "city, country" when both state and country were given, then the bare city.
func attemptsFor(city, state, country string) []attempt {
	var out []attempt
	if state != "" || country != "" {
		parts := make([]string, 0, 3)
		for _, p := range []string{city, state, country} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		out = append(out, attempt{query: strings.Join(parts, ", "), countryBias: country})
	}
	if state != "" && country != "" {
		out = append(out, attempt{query: city + ", " + country, countryBias: country})
	}
	out = append(out, attempt{query: city})
	return out
}

// Geocode resolves (city, state, country) with the attempt ladder. Only a
// non-timeout provider error aborts immediately; exhausting every attempt
// without a hit returns NotFound.
func (c *Client) Geocode(ctx context.Context, city, state, country string) (*types.GeoLocation, error) {
	ctx, span := otel.Tracer("Geocoder").Start(ctx, "Geocode")
	defer span.End()
	span.SetAttributes(attribute.String("geocode.city", city))

	if strings.TrimSpace(city) == "" {
		return nil, types.NewNotFound("City not found")
	}

	for _, a := range attemptsFor(city, state, country) {
		loc, err := c.search(ctx, a)
		if err != nil {
			apiErr := types.AsAPIError(err)
			if apiErr.Timeout {
				c.logger.WarnContext(ctx, "geocode attempt timed out, trying next",
					slog.String("query", a.query))
				continue
			}
			span.RecordError(err)
			c.sink.Record(ctx, "geocoding", err.Error(), map[string]any{
				"query":  a.query,
				"status": apiErr.Status,
			}, slog.LevelWarn)
			return nil, types.NewUpstream("Geocoding failed: "+apiErr.Message, apiErr.Status)
		}
		if loc != nil {
			span.SetAttributes(
				attribute.Float64("geocode.latitude", loc.Latitude),
				attribute.Float64("geocode.longitude", loc.Longitude),
			)
			return loc, nil
		}
	}

	return nil, types.NewNotFound("City not found")
}

// CanGeocode is the lightweight existence check used by the region resolver.
// Any failure counts as "not geocodable".
func (c *Client) CanGeocode(ctx context.Context, city, state, country string) bool {
	if strings.TrimSpace(city) == "" {
		return false
	}
	attempts := attemptsFor(city, state, country)
	loc, err := c.search(ctx, attempts[0])
	return err == nil && loc != nil
}

func (c *Client) search(ctx context.Context, a attempt) (*types.GeoLocation, error) {
	query := url.Values{
		"q":      {a.query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if a.countryBias != "" {
		query.Set("countrycodes", strings.ToLower(a.countryBias))
	}

	var results []searchResult
	headers := http.Header{"User-Agent": {userAgent}}
	if err := c.http.GetJSON(ctx, c.baseURL+"/search", query, headers, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, nil
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, nil
	}
	return &types.GeoLocation{Latitude: lat, Longitude: lon}, nil
}

// Nominatim returns coordinates as strings.
type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
