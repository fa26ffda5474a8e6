package main

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/config"
	"github.com/terradart/terradart-api/internal/domain/citydetail"
	"github.com/terradart/terradart-api/internal/domain/region"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/providers/activities"
	"github.com/terradart/terradart-api/internal/providers/countries"
	"github.com/terradart/terradart-api/internal/providers/directory"
	"github.com/terradart/terradart-api/internal/providers/geocode"
	"github.com/terradart/terradart-api/internal/providers/places"
	"github.com/terradart/terradart-api/internal/providers/summary"
	"github.com/terradart/terradart-api/internal/providers/weather"
	"github.com/terradart/terradart-api/internal/providers/wikipedia"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    cache.Store
	Metrics  *observability.Metrics
	Sink     observability.FailureSink
	Validate *validator.Validate

	// Upstream adapters
	Countries  countries.Directory
	Directory  directory.StateCityDirectory
	Geocoder   geocode.Geocoder
	Weather    weather.Provider
	Places     places.Provider
	Activities activities.Provider
	Summary    summary.Provider
	Wikipedia  wikipedia.Provider

	// Services
	CityDetailService citydetail.Service
	RegionService     region.Service
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) *Dependencies {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Metrics:  observability.NewMetrics(prometheus.DefaultRegisterer),
		Validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	deps.Store = cache.WithMetrics(cache.NewMemory(cfg.CacheTTL), deps.Metrics)
	deps.Sink = observability.NewLogSink(logger, deps.Metrics)

	deps.initAdapters()
	deps.initServices()

	logger.Info("all dependencies initialized successfully")
	return deps
}

// initAdapters initializes the upstream provider adapters
func (d *Dependencies) initAdapters() {
	cfg, ttl, timeout := d.Config, d.Config.CacheTTL, d.Config.ProviderTimeout

	d.Countries = countries.NewClient(d.Store, ttl, timeout, d.Sink, d.Logger)
	d.Directory = directory.NewClient(cfg.CSCAPIKey, d.Store, ttl, timeout, d.Sink, d.Logger)
	d.Geocoder = geocode.NewClient(timeout, d.Sink, d.Logger)
	d.Weather = weather.NewClient(d.Store, ttl, timeout, d.Sink, d.Logger)
	d.Places = places.NewClient(cfg.FoursquareAPIKey, cfg.PlacesEnabled, d.Store, ttl, timeout, d.Sink, d.Logger)
	d.Activities = activities.NewClient(cfg.AmadeusClientID, cfg.AmadeusClientSecret, cfg.ActivitiesEnabled, d.Store, ttl, timeout, d.Sink, d.Logger)
	d.Summary = summary.NewClient(cfg.GeminiAPIKey, cfg.SummaryEnabled, d.Store, ttl, d.Sink, d.Logger)
	d.Wikipedia = wikipedia.NewClient(d.Store, ttl, timeout, d.Sink, d.Logger)

	d.Logger.Info("upstream adapters initialized",
		"places_enabled", cfg.PlacesEnabled,
		"activities_enabled", cfg.ActivitiesEnabled,
		"summary_enabled", cfg.SummaryEnabled)
}

// initServices initializes the resolver services
func (d *Dependencies) initServices() {
	d.CityDetailService = citydetail.NewCityDetailService(citydetail.Deps{
		Geocoder:   d.Geocoder,
		Countries:  d.Countries,
		Weather:    d.Weather,
		Places:     d.Places,
		Activities: d.Activities,
		Summary:    d.Summary,
		Wikipedia:  d.Wikipedia,
	}, d.Store, d.Config.CacheTTL, d.Sink, d.Logger)

	d.RegionService = region.NewRegionService(d.Countries, d.Directory, d.Geocoder, d.Sink, d.Logger)

	d.Logger.Info("services initialized")
}
