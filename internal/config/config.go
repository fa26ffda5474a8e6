// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	CacheTTL        time.Duration
	ProviderTimeout time.Duration

	// Directory and places credentials.
	CSCAPIKey        string
	FoursquareAPIKey string

	// Activities (Amadeus-style) credentials.
	AmadeusClientID     string
	AmadeusClientSecret string

	// Narrative summary credentials.
	GeminiAPIKey string

	// Feature flags for the optional providers. A disabled provider
	// degrades to an empty success, never an error.
	ActivitiesEnabled bool
	PlacesEnabled     bool
	SummaryEnabled    bool
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	cacheTTL, err := parseSeconds("CACHE_TIMEOUT_SECONDS", 300)
	if err != nil {
		return nil, err
	}

	providerTimeout, err := parseDuration("PROVIDER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:  envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		CacheTTL:        cacheTTL,
		ProviderTimeout: providerTimeout,

		CSCAPIKey:        os.Getenv("CSC_API_KEY"),
		FoursquareAPIKey: os.Getenv("FOURSQUARE_API_KEY"),

		AmadeusClientID:     os.Getenv("AMADEUS_CLIENT_ID"),
		AmadeusClientSecret: os.Getenv("AMADEUS_CLIENT_SECRET"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),

		ActivitiesEnabled: parseBool("AMADEUS_ENABLED", false),
		PlacesEnabled:     parseBool("FOURSQUARE_ENABLED", false),
		SummaryEnabled:    parseBool("LLM_SUMMARY_ENABLED", false),
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseSeconds(key string, fallbackSeconds int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallbackSeconds) * time.Second, nil
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}
