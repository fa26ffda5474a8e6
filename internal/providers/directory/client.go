// Package directory wraps the countrystatecity.in state/city listings.
// City-level resolution is an enhancement, not a requirement: the adapter
// degrades to empty results when the API key is absent.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/providers/upstream"
	"github.com/terradart/terradart-api/internal/types"
)

const defaultBaseURL = "https://api.countrystatecity.in/v1"

var _ StateCityDirectory = (*Client)(nil)

// StateCityDirectory lists states per country and cities per country/state.
type StateCityDirectory interface {
	StatesByCountry(ctx context.Context, iso2 string) ([]types.State, error)
	CitiesByCountry(ctx context.Context, iso2 string) ([]types.City, error)
	CitiesByState(ctx context.Context, countryISO2, stateISO2 string) ([]types.City, error)
}

// Client is the countrystatecity.in adapter.
type Client struct {
	http    *upstream.Client
	baseURL string
	apiKey  string
	store   cache.Store
	ttl     time.Duration
	sink    observability.FailureSink
	logger  *slog.Logger
}

func NewClient(apiKey string, store cache.Store, ttl time.Duration, timeout time.Duration, sink observability.FailureSink, logger *slog.Logger) *Client {
	return &Client{
		http:    upstream.New("countrystatecity", timeout, 5),
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
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

// StatesByCountry lists the first-level divisions of a country.
func (c *Client) StatesByCountry(ctx context.Context, iso2 string) ([]types.State, error) {
	if iso2 == "" || c.apiKey == "" {
		return nil, nil
	}
	key := cache.Key("states", iso2)
	path := fmt.Sprintf("/countries/%s/states", url.PathEscape(iso2))
	return fetchList[types.State](ctx, c, key, path, "states_by_country")
}

// CitiesByCountry lists every city of a country.
func (c *Client) CitiesByCountry(ctx context.Context, iso2 string) ([]types.City, error) {
	if iso2 == "" || c.apiKey == "" {
		return nil, nil
	}
	key := cache.Key("cities", iso2)
	path := fmt.Sprintf("/countries/%s/cities", url.PathEscape(iso2))
	return fetchList[types.City](ctx, c, key, path, "cities_by_country")
}

// CitiesByState lists the cities of one state.
func (c *Client) CitiesByState(ctx context.Context, countryISO2, stateISO2 string) ([]types.City, error) {
	if countryISO2 == "" || stateISO2 == "" || c.apiKey == "" {
		return nil, nil
	}
	key := cache.Key("cities", countryISO2, stateISO2)
	path := fmt.Sprintf("/countries/%s/states/%s/cities", url.PathEscape(countryISO2), url.PathEscape(stateISO2))
	return fetchList[types.City](ctx, c, key, path, "cities_by_state")
}

// fetchList is the shared cache-aside GET. Failed calls are not cached, so
// the next lookup retries immediately.
func fetchList[T any](ctx context.Context, c *Client, key, path, event string) ([]T, error) {
	if cached, found := c.store.Get(key); found {
		return cached.([]T), nil
	}

	var list []T
	headers := http.Header{"X-CSCAPI-KEY": {c.apiKey}}
	if err := c.http.GetJSON(ctx, c.baseURL+path, nil, headers, &list); err != nil {
		c.sink.Record(ctx, event, err.Error(), map[string]any{
			"path":   path,
			"status": types.AsAPIError(err).Status,
		}, slog.LevelWarn)
		return nil, err
	}

	c.store.Set(key, list, c.ttl)
	return list, nil
}
