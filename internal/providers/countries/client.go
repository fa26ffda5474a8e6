// Package countries wraps the REST Countries directory upstream.
package countries

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/providers/upstream"
	"github.com/terradart/terradart-api/internal/types"
)

const defaultBaseURL = "https://restcountries.com/v3.1"

// Only the fields the resolvers need.
const listFields = "name,capital,cca2,cca3,population"

var _ Directory = (*Client)(nil)

// Directory exposes the country listing and per-country detail lookups.
type Directory interface {
	ByRegion(ctx context.Context, region string) ([]types.Country, error)
	All(ctx context.Context) ([]types.Country, error)
	Details(ctx context.Context, iso2 string) (*types.CountryDetails, error)
}

// Client is the REST Countries adapter: one outbound call per invocation,
// cache-aside on success.
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
		http:    upstream.New("restcountries", timeout, 5),
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

// ByRegion fetches the countries of one geographic region.
func (c *Client) ByRegion(ctx context.Context, region string) ([]types.Country, error) {
	key := cache.Key("countries", region)
	if cached, found := c.store.Get(key); found {
		return cached.([]types.Country), nil
	}

	var list []types.Country
	u := fmt.Sprintf("%s/region/%s", c.baseURL, url.PathEscape(region))
	if err := c.http.GetJSON(ctx, u, url.Values{"fields": {listFields}}, nil, &list); err != nil {
		c.report(ctx, "countries_by_region", err, map[string]any{"region": region})
		return nil, err
	}

	c.store.Set(key, list, c.ttl)
	return list, nil
}

// All fetches the full country list.
func (c *Client) All(ctx context.Context) ([]types.Country, error) {
	key := "countries:all"
	if cached, found := c.store.Get(key); found {
		return cached.([]types.Country), nil
	}

	var list []types.Country
	if err := c.http.GetJSON(ctx, c.baseURL+"/all", url.Values{"fields": {listFields}}, nil, &list); err != nil {
		c.report(ctx, "countries_all", err, nil)
		return nil, err
	}

	c.store.Set(key, list, c.ttl)
	return list, nil
}

// Details fetches display details for one country, cached per ISO2 code.
// Lookup failures degrade to (nil, nil): the detail block is decorative.
func (c *Client) Details(ctx context.Context, iso2 string) (*types.CountryDetails, error) {
	if iso2 == "" {
		return nil, nil
	}

	key := cache.Key("country-details", iso2)
	if cached, found := c.store.Get(key); found {
		return cached.(*types.CountryDetails), nil
	}

	var raw json.RawMessage
	u := fmt.Sprintf("%s/alpha/%s", c.baseURL, url.PathEscape(iso2))
	if err := c.http.GetJSON(ctx, u, nil, nil, &raw); err != nil {
		c.report(ctx, "country_details", err, map[string]any{"iso2": iso2})
		return nil, nil
	}

	// The alpha endpoint answers with either an object or a one-element list.
	var single detailsResponse
	if err := json.Unmarshal(raw, &single); err != nil {
		var list []detailsResponse
		if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
			return nil, nil
		}
		single = list[0]
	}

	details := single.toDetails()
	c.store.Set(key, details, c.ttl)
	return details, nil
}

func (c *Client) report(ctx context.Context, event string, err error, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["status"] = types.AsAPIError(err).Status
	c.sink.Record(ctx, event, err.Error(), fields, slog.LevelWarn)
}

type detailsResponse struct {
	Name struct {
		Common   string `json:"common"`
		Official string `json:"official"`
	} `json:"name"`
	Flags struct {
		PNG string `json:"png"`
		SVG string `json:"svg"`
	} `json:"flags"`
	Region    string `json:"region"`
	Subregion string `json:"subregion"`
}

func (r detailsResponse) toDetails() *types.CountryDetails {
	flag := r.Flags.PNG
	if flag == "" {
		flag = r.Flags.SVG
	}
	return &types.CountryDetails{
		CommonName:   r.Name.Common,
		OfficialName: r.Name.Official,
		FlagRef:      flag,
		Region:       r.Region,
		Subregion:    r.Subregion,
	}
}
