// Package upstream is the shared outbound HTTP client used by every provider
// adapter. It applies a fixed per-call timeout, a client-side rate limiter to
// stay inside upstream quotas, and a circuit breaker per upstream, and maps
// transport failures into the APIError taxonomy.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/terradart/terradart-api/internal/types"
)

// Client performs GET/POST calls against one upstream. Safe for concurrent
// use; construct once per provider and share.
type Client struct {
	name    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// New creates a Client for the named upstream. rps bounds the sustained
// outbound request rate; zero or negative means unlimited.
func New(name string, timeout time.Duration, rps float64) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	return &Client{
		name: name,
		http: &http.Client{Timeout: timeout},
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
	}
}

// GetJSON issues a GET with query parameters and headers, decoding a 2xx JSON
// body into out. A non-nil return is always a *types.APIError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, headers http.Header, out any) error {
	u := rawURL
	if len(query) > 0 {
		u = rawURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.NewUpstream(fmt.Sprintf("%s: build request: %v", c.name, err), 0)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.do(req, out)
}

// PostForm issues a POST with URL-encoded form values, decoding a 2xx JSON
// body into out.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return types.NewUpstream(fmt.Sprintf("%s: build request: %v", c.name, err), 0)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return mapTransportErr(c.name, err)
	}

	body, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &statusError{status: resp.StatusCode, body: string(snippet)}
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return mapStatus(c.name, se)
		}
		return mapTransportErr(c.name, err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return types.NewUpstream(fmt.Sprintf("%s: decode response: %v", c.name, err), 0)
	}
	return nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func mapStatus(name string, se *statusError) *types.APIError {
	msg := fmt.Sprintf("%s: upstream returned %d", name, se.status)
	switch {
	case se.status == http.StatusNotFound:
		return &types.APIError{Kind: types.KindNotFound, Status: http.StatusNotFound, Message: msg}
	case se.status == http.StatusTooManyRequests:
		return types.NewRateLimited(msg, se.status)
	default:
		return types.NewUpstream(msg, se.status)
	}
}

func mapTransportErr(name string, err error) *types.APIError {
	if isTimeout(err) {
		return types.NewTimeout(fmt.Sprintf("%s: request timed out", name))
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewUpstream(fmt.Sprintf("%s: circuit open", name), 0)
	}
	return types.NewUpstream(fmt.Sprintf("%s: %v", name, err), 0)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
