// Package summary generates a short narrative description of a place with
// the Gemini API. The feature is optional colour: disabled means a null
// payload success, never an error.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/types"
)

const model = "gemini-2.0-flash"

var _ Provider = (*Client)(nil)

// Provider produces the optional narrative summary section.
type Provider interface {
	Summarize(ctx context.Context, city, state, countryName string) (*string, error)
}

// Client is the Gemini adapter. The underlying genai client is constructed
// at most once per process and reused; sync.Once keeps racing requests from
// initializing credentials twice.
type Client struct {
	apiKey  string
	enabled bool
	store   cache.Store
	ttl     time.Duration
	sink    observability.FailureSink
	logger  *slog.Logger

	once    sync.Once
	genai   *genai.Client
	initErr error

	// Test seam: replaces the genai call when set.
	generate func(ctx context.Context, prompt string) (string, error)
}

func NewClient(apiKey string, enabled bool, store cache.Store, ttl time.Duration, sink observability.FailureSink, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		enabled: enabled,
		store:   store,
		ttl:     ttl,
		sink:    sink,
		logger:  logger,
	}
}

// Summarize returns a 1-2 paragraph neutral description of the place, cached
// by the normalized (city, state, country) triple.
func (c *Client) Summarize(ctx context.Context, city, state, countryName string) (*string, error) {
	if !c.enabled {
		return nil, nil
	}

	key := cache.Key("summary", city, state, countryName)
	if cached, found := c.store.Get(key); found {
		text := cached.(string)
		return &text, nil
	}

	if c.apiKey == "" {
		err := types.NewMisconfigured("summary provider enabled without API key")
		c.sink.Record(ctx, "summary", err.Message, nil, slog.LevelError)
		return nil, err
	}

	text, err := c.generateText(ctx, buildPrompt(city, state, countryName))
	if err != nil {
		c.sink.Record(ctx, "summary", err.Error(), map[string]any{"city": city}, slog.LevelWarn)
		return nil, types.NewUpstream("Failed to generate summary: "+err.Error(), 0)
	}

	text = collapseWhitespace(text)
	if text == "" {
		return nil, types.NewUpstream("empty summary from model", 0)
	}

	c.store.Set(key, text, c.ttl)
	return &text, nil
}

func buildPrompt(city, state, countryName string) string {
	label := city
	if state != "" {
		label += ", " + state
	}
	if countryName != "" {
		label += ", " + countryName
	}
	return fmt.Sprintf(
		"Write a neutral, factual one-to-two paragraph travel summary of %s. "+
			"Cover its character, notable sights and typical climate. Plain text only.",
		label,
	)
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	if c.generate != nil {
		return c.generate(ctx, prompt)
	}

	c.once.Do(func() {
		c.genai, c.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if c.initErr != nil {
		return "", fmt.Errorf("init genai client: %w", c.initErr)
	}

	resp, err := c.genai.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.3),
	})
	if err != nil {
		return "", err
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}
	return "", fmt.Errorf("no text content in model response")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
