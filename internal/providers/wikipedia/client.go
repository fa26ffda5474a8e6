// Package wikipedia wraps the Wikipedia REST page-summary endpoint.
package wikipedia

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/providers/upstream"
	"github.com/terradart/terradart-api/internal/types"
)

const defaultBaseURL = "https://en.wikipedia.org/api/rest_v1"

var _ Provider = (*Client)(nil)

// Provider fetches the encyclopedia extract section.
type Provider interface {
	Extract(ctx context.Context, title string) (*Extract, error)
}

// Extract is the cleaned page summary.
type Extract struct {
	Title   string `json:"title"`
	Text    string `json:"extract"`
	PageURL string `json:"page_url,omitempty"`
}

// Client is the Wikipedia adapter.
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
		http:    upstream.New("wikipedia", timeout, 10),
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

// Extract fetches the page summary for title, cache-aside by normalized
// title. An unknown page surfaces as NotFound.
func (c *Client) Extract(ctx context.Context, title string) (*Extract, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, types.NewNotFound("no page title")
	}

	key := cache.Key("wikipedia", title)
	if cached, found := c.store.Get(key); found {
		return cached.(*Extract), nil
	}

	// Page titles use underscores for spaces.
	slug := strings.ReplaceAll(title, " ", "_")
	u := c.baseURL + "/page/summary/" + url.PathEscape(slug)

	var resp summaryResponse
	headers := http.Header{"Accept": {"application/json"}}
	if err := c.http.GetJSON(ctx, u, nil, headers, &resp); err != nil {
		apiErr := types.AsAPIError(err)
		if apiErr.Kind != types.KindNotFound {
			c.sink.Record(ctx, "wikipedia", err.Error(), map[string]any{
				"title":  title,
				"status": apiErr.Status,
			}, slog.LevelWarn)
		}
		return nil, err
	}

	extract := &Extract{
		Title:   resp.Title,
		Text:    resp.Extract,
		PageURL: resp.ContentURLs.Desktop.Page,
	}
	c.store.Set(key, extract, c.ttl)
	return extract, nil
}

type summaryResponse struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}
