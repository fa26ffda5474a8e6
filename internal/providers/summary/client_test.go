package summary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/types"
)

func newTestClient(apiKey string, enabled bool) (*Client, cache.Store) {
	store := cache.NewMemory(time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(apiKey, enabled, store, time.Minute, observability.Nop{}, logger), store
}

func TestSummarize_DisabledReturnsNullPayload(t *testing.T) {
	c, _ := newTestClient("", false)

	text, err := c.Summarize(context.Background(), "New York", "NY", "United States")
	require.NoError(t, err)
	assert.Nil(t, text)
}

func TestSummarize_EnabledWithoutKeyIsMisconfigured(t *testing.T) {
	c, _ := newTestClient("", true)

	_, err := c.Summarize(context.Background(), "New York", "NY", "United States")
	apiErr := types.AsAPIError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, types.KindMisconfigured, apiErr.Kind)
	assert.Equal(t, 500, apiErr.Status)
}

func TestSummarize_Success(t *testing.T) {
	c, _ := newTestClient("key", true)
	var gotPrompt string
	c.generate = func(ctx context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "New York  is a\n major   city.", nil
	}

	text, err := c.Summarize(context.Background(), "New York", "NY", "United States")
	require.NoError(t, err)
	require.NotNil(t, text)
	assert.Equal(t, "New York is a major city.", *text, "internal whitespace must collapse")
	assert.Contains(t, gotPrompt, "New York, NY, United States")
}

func TestSummarize_CachedBeforeCredentialCheck(t *testing.T) {
	c, store := newTestClient("", true)
	store.Set(cache.Key("summary", "New York", "NY", "United States"), "Cached summary text", time.Minute)

	text, err := c.Summarize(context.Background(), "New York", "NY", "United States")
	require.NoError(t, err)
	require.NotNil(t, text)
	assert.Equal(t, "Cached summary text", *text)
}

func TestSummarize_ModelError(t *testing.T) {
	c, _ := newTestClient("key", true)
	c.generate = func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model unavailable")
	}

	_, err := c.Summarize(context.Background(), "Austin", "TX", "")
	apiErr := types.AsAPIError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, 502, apiErr.Status)
}
