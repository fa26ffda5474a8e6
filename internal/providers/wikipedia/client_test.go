package wikipedia

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := cache.NewMemory(time.Minute)
	return NewClient(store, time.Minute, time.Second, observability.Nop{}, logger).WithBaseURL(srv.URL)
}

func TestExtract_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page/summary/New_York", r.URL.Path)
		w.Write([]byte(`{
			"title": "New York",
			"extract": "New York is a city in the United States.",
			"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/New_York"}}
		}`))
	})

	got, err := c.Extract(context.Background(), "New York")
	require.NoError(t, err)
	assert.Equal(t, "New York", got.Title)
	assert.Equal(t, "New York is a city in the United States.", got.Text)
	assert.Equal(t, "https://en.wikipedia.org/wiki/New_York", got.PageURL)
}

func TestExtract_UnknownPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Extract(context.Background(), "NowhereVille")
	apiErr := types.AsAPIError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, types.KindNotFound, apiErr.Kind)
}

func TestExtract_EmptyTitle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.Extract(context.Background(), "   ")
	assert.Equal(t, types.KindNotFound, types.AsAPIError(err).Kind)
}

func TestExtract_CacheAside(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"title": "Paris", "extract": "Paris is the capital of France."}`))
	})

	_, err := c.Extract(context.Background(), "Paris")
	require.NoError(t, err)
	got, err := c.Extract(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Paris", got.Title)
	assert.Equal(t, 1, calls)
}
