package geocode

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(timeout, observability.Nop{}, testLogger()).WithBaseURL(srv.URL)
}

func writeResult(w http.ResponseWriter, lat, lon string) {
	json.NewEncoder(w).Encode([]map[string]any{{"lat": lat, "lon": lon, "display_name": "somewhere"}})
}

func TestGeocode_FullDescriptorFirstAttempt(t *testing.T) {
	var queries []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		assert.Equal(t, "us", r.URL.Query().Get("countrycodes"))
		writeResult(w, "40.7128", "-74.0060")
	}, time.Second)

	loc, err := c.Geocode(context.Background(), "New York", "NY", "US")
	require.NoError(t, err)
	assert.Equal(t, &types.GeoLocation{Latitude: 40.7128, Longitude: -74.0060}, loc)
	require.Len(t, queries, 1)
	assert.Equal(t, "New York, NY, US", queries[0])
}

func TestGeocode_SucceedsOnThirdAttempt(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Write([]byte("[]"))
			return
		}
		assert.Equal(t, "TestCity", r.URL.Query().Get("q"))
		writeResult(w, "40.0", "-74.0")
	}, time.Second)

	loc, err := c.Geocode(context.Background(), "TestCity", "TestState", "US")
	require.NoError(t, err)
	assert.Equal(t, 40.0, loc.Latitude)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeocode_TimeoutTreatedAsNoResult(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			time.Sleep(300 * time.Millisecond)
			return
		}
		writeResult(w, "40.0", "-74.0")
	}, 50*time.Millisecond)

	loc, err := c.Geocode(context.Background(), "TestCity", "TestState", "US")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeocode_NoResultAnywhere(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}, time.Second)

	_, err := c.Geocode(context.Background(), "NowhereVille", "", "")
	apiErr := types.AsAPIError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, types.KindNotFound, apiErr.Kind)
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, "City not found", apiErr.Message)
}

func TestGeocode_NonTimeoutErrorAborts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, time.Second)

	_, err := c.Geocode(context.Background(), "TestCity", "TestState", "US")
	apiErr := types.AsAPIError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, types.KindUpstreamUnavailable, apiErr.Kind)
	assert.Equal(t, int32(1), calls.Load(), "a hard provider error must abort the ladder")
}

func TestGeocode_EmptyCity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}, time.Second)

	_, err := c.Geocode(context.Background(), "   ", "", "")
	assert.Equal(t, types.KindNotFound, types.AsAPIError(err).Kind)
}

func TestCanGeocode(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeResult(w, "1.0", "2.0")
		}, time.Second)
		assert.True(t, c.CanGeocode(context.Background(), "New York", "NY", "US"))
	})

	t.Run("not found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("[]"))
		}, time.Second)
		assert.False(t, c.CanGeocode(context.Background(), "NowhereVille", "", ""))
	})

	t.Run("empty city", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		}, time.Second)
		assert.False(t, c.CanGeocode(context.Background(), "", "", ""))
	})
}

func TestAttemptsFor(t *testing.T) {
	tests := []struct {
		name                string
		city, state, country string
		want                []string
	}{
		{"city only", "Paris", "", "", []string{"Paris"}},
		{"city and country", "Paris", "", "FR", []string{"Paris, FR", "Paris"}},
		{"full descriptor", "Paris", "Ile-de-France", "FR", []string{"Paris, Ile-de-France, FR", "Paris, FR", "Paris"}},
		{"city and state", "Austin", "TX", "", []string{"Austin, TX", "Austin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := attemptsFor(tt.city, tt.state, tt.country)
			queries := make([]string, len(got))
			for i, a := range got {
				queries[i] = a.query
			}
			assert.Equal(t, tt.want, queries)
		})
	}
}
