// Package activities wraps the Amadeus bookable-activities API. The OAuth
// token is fetched lazily on first use and refreshed when it expires; the
// exchange is mutex guarded so racing requests cannot corrupt credentials.
package activities

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/providers/upstream"
	"github.com/terradart/terradart-api/internal/types"
)

const defaultBaseURL = "https://test.api.amadeus.com"

var _ Provider = (*Client)(nil)

// Provider fetches bookable activities around a coordinate pair.
type Provider interface {
	ByCoordinates(ctx context.Context, loc types.GeoLocation, radiusKm int) ([]*Activity, error)
}

// Activity is one bookable offer. Description fields may carry
// venue-submitted HTML and must pass the sanitization filter before leaving
// the service.
type Activity struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	ShortDescription string   `json:"shortDescription,omitempty"`
	Description      string   `json:"description,omitempty"`
	Rating           string   `json:"rating,omitempty"`
	Price            *Price   `json:"price,omitempty"`
	Pictures         []string `json:"pictures,omitempty"`
	BookingLink      string   `json:"bookingLink,omitempty"`
}

type Price struct {
	Amount       string `json:"amount,omitempty"`
	CurrencyCode string `json:"currencyCode,omitempty"`
}

// Client is the Amadeus adapter.
type Client struct {
	http         *upstream.Client
	baseURL      string
	clientID     string
	clientSecret string
	enabled      bool
	store        cache.Store
	ttl          time.Duration
	sink         observability.FailureSink
	logger       *slog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(clientID, clientSecret string, enabled bool, store cache.Store, ttl time.Duration, timeout time.Duration, sink observability.FailureSink, logger *slog.Logger) *Client {
	return &Client{
		http:         upstream.New("amadeus", timeout, 5),
		baseURL:      defaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		enabled:      enabled,
		store:        store,
		ttl:          ttl,
		sink:         sink,
		logger:       logger,
	}
}

// WithBaseURL overrides the upstream base URL. Used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// ByCoordinates fetches activities around loc. Provider-reported statuses
// pass through; generic transport failures surface as 502.
func (c *Client) ByCoordinates(ctx context.Context, loc types.GeoLocation, radiusKm int) ([]*Activity, error) {
	if !c.enabled {
		return []*Activity{}, nil
	}
	if c.clientID == "" || c.clientSecret == "" {
		err := types.NewMisconfigured("activities provider enabled without credentials")
		c.sink.Record(ctx, "activities", err.Message, nil, slog.LevelError)
		return nil, err
	}

	key := cache.Key("activities",
		strconv.FormatFloat(loc.Latitude, 'f', 4, 64),
		strconv.FormatFloat(loc.Longitude, 'f', 4, 64),
		strconv.Itoa(radiusKm),
	)
	if cached, found := c.store.Get(key); found {
		return cached.([]*Activity), nil
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"latitude":  {strconv.FormatFloat(loc.Latitude, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		"radius":    {strconv.Itoa(radiusKm)},
	}
	headers := http.Header{"Authorization": {"Bearer " + token}}

	var resp struct {
		Data []*Activity `json:"data"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/v1/shopping/activities", query, headers, &resp); err != nil {
		apiErr := types.AsAPIError(err)
		c.sink.Record(ctx, "activities", err.Error(), map[string]any{
			"latitude":  loc.Latitude,
			"longitude": loc.Longitude,
			"status":    apiErr.Status,
		}, slog.LevelWarn)
		return nil, types.NewUpstream("Failed to fetch activities: "+apiErr.Message, apiErr.Status)
	}

	c.store.Set(key, resp.Data, c.ttl)
	return resp.Data, nil
}

// token returns a valid access token, exchanging client credentials when the
// cached one is missing or within a minute of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := c.http.PostForm(ctx, c.baseURL+"/v1/security/oauth2/token", form, &resp); err != nil {
		apiErr := types.AsAPIError(err)
		c.sink.Record(ctx, "activities_auth", err.Error(), map[string]any{
			"status": apiErr.Status,
		}, slog.LevelError)
		return "", types.NewUpstream("Failed to fetch activities: auth failed", apiErr.Status)
	}

	c.accessToken = resp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
