// Package places wraps the Foursquare place search. The provider is feature
// flagged: disabled means an empty success, enabled without a key is a
// configuration error since the section is then assumed required.
package places

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/providers/upstream"
	"github.com/terradart/terradart-api/internal/types"
)

const (
	defaultBaseURL = "https://places-api.foursquare.com"

	// Foursquare rejects radii above 100km.
	maxRadiusMeters = 100_000

	resultLimit = 10
)

var _ Provider = (*Client)(nil)

// Provider fetches ranked points of interest around a coordinate pair.
type Provider interface {
	Nearby(ctx context.Context, loc types.GeoLocation, radiusKm int) ([]Place, error)
}

// Place is one point of interest.
type Place struct {
	ID         string     `json:"fsq_place_id"`
	Name       string     `json:"name"`
	Categories []Category `json:"categories,omitempty"`
	Location   Location   `json:"location"`
	Rating     float64    `json:"rating,omitempty"`
}

type Category struct {
	Name string `json:"name"`
}

type Location struct {
	Address string `json:"address,omitempty"`
}

// Client is the Foursquare adapter.
type Client struct {
	http    *upstream.Client
	baseURL string
	apiKey  string
	enabled bool
	store   cache.Store
	ttl     time.Duration
	sink    observability.FailureSink
	logger  *slog.Logger
}

func NewClient(apiKey string, enabled bool, store cache.Store, ttl time.Duration, timeout time.Duration, sink observability.FailureSink, logger *slog.Logger) *Client {
	return &Client{
		http:    upstream.New("foursquare", timeout, 10),
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		enabled: enabled,
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

// Nearby returns the top places around loc, ranked by rating. The radius is
// converted to meters and capped at the upstream maximum.
func (c *Client) Nearby(ctx context.Context, loc types.GeoLocation, radiusKm int) ([]Place, error) {
	if !c.enabled {
		return []Place{}, nil
	}
	if c.apiKey == "" {
		err := types.NewMisconfigured("places provider enabled without API key")
		c.sink.Record(ctx, "places", err.Message, nil, slog.LevelError)
		return nil, err
	}

	radiusMeters := radiusKm * 1000
	if radiusMeters > maxRadiusMeters {
		radiusMeters = maxRadiusMeters
	}

	key := cache.Key("places",
		strconv.FormatFloat(loc.Latitude, 'f', 4, 64),
		strconv.FormatFloat(loc.Longitude, 'f', 4, 64),
		strconv.Itoa(radiusMeters),
	)
	if cached, found := c.store.Get(key); found {
		return cached.([]Place), nil
	}

	query := url.Values{
		"ll":     {strconv.FormatFloat(loc.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		"radius": {strconv.Itoa(radiusMeters)},
		"limit":  {strconv.Itoa(resultLimit)},
		"sort":   {"RATING"},
	}
	headers := http.Header{
		"Authorization": {"Bearer " + c.apiKey},
		"Accept":        {"application/json"},
	}

	var resp searchResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/places/search", query, headers, &resp); err != nil {
		apiErr := types.AsAPIError(err)
		c.sink.Record(ctx, "places", err.Error(), map[string]any{
			"latitude":  loc.Latitude,
			"longitude": loc.Longitude,
			"status":    apiErr.Status,
		}, slog.LevelWarn)
		return nil, err
	}

	c.store.Set(key, resp.Results, c.ttl)
	return resp.Results, nil
}

type searchResponse struct {
	Results []Place `json:"results"`
}
