package citydetail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/providers/activities"
	"github.com/terradart/terradart-api/internal/providers/countries"
	"github.com/terradart/terradart-api/internal/providers/geocode"
	"github.com/terradart/terradart-api/internal/providers/places"
	"github.com/terradart/terradart-api/internal/providers/summary"
	"github.com/terradart/terradart-api/internal/providers/weather"
	"github.com/terradart/terradart-api/internal/providers/wikipedia"
	"github.com/terradart/terradart-api/internal/types"
)

// Service assembles the detail response for a single city. Section fetches
// run concurrently and fail independently: one broken upstream degrades its
// own section, never the whole response.
type Service interface {
	GetCityDetail(ctx context.Context, query types.PlaceQuery) (*types.AggregateResponse, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	store     cache.Store
	ttl       time.Duration
	sink      observability.FailureSink
	sanitizer *Sanitizer

	geocoder   geocode.Geocoder
	countries  countries.Directory
	weather    weather.Provider
	places     places.Provider
	activities activities.Provider
	summary    summary.Provider
	wikipedia  wikipedia.Provider
}

var _ Service = (*ServiceImpl)(nil)

// Deps bundles the upstream adapters the resolver fans out to.
type Deps struct {
	Geocoder   geocode.Geocoder
	Countries  countries.Directory
	Weather    weather.Provider
	Places     places.Provider
	Activities activities.Provider
	Summary    summary.Provider
	Wikipedia  wikipedia.Provider
}

func NewCityDetailService(deps Deps, store cache.Store, ttl time.Duration, sink observability.FailureSink, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		store:      store,
		ttl:        ttl,
		sink:       sink,
		sanitizer:  NewSanitizer(),
		geocoder:   deps.Geocoder,
		countries:  deps.Countries,
		weather:    deps.Weather,
		places:     deps.Places,
		activities: deps.Activities,
		summary:    deps.Summary,
		wikipedia:  deps.Wikipedia,
	}
}

// GetCityDetail resolves the base record for the queried city, then fetches
// every requested section concurrently. Only a geocoding failure or a missing
// coordinate pair is terminal; section failures are reported per section in
// the Errors map.
func (s *ServiceImpl) GetCityDetail(ctx context.Context, query types.PlaceQuery) (*types.AggregateResponse, error) {
	ctx, span := otel.Tracer("CityDetailService").Start(ctx, "GetCityDetail")
	defer span.End()

	l := s.logger.With(
		slog.String("method", "GetCityDetail"),
		slog.String("city", query.City),
		slog.String("country", query.Country),
	)
	span.SetAttributes(attribute.String("city.name", query.City))

	base, err := s.resolveBase(ctx, query)
	if err != nil {
		l.WarnContext(ctx, "Base record resolution failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Geocoding failed")
		return nil, err
	}
	if base.Coordinates == nil {
		// A cached record without coordinates means an earlier write went
		// wrong; surface it loudly instead of fanning out with garbage.
		err := types.NewInternal("Missing coordinates for city")
		l.ErrorContext(ctx, "Base record has no coordinates", slog.String("city", base.City))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Missing coordinates")
		return nil, err
	}

	sections := types.FilterSections(query.Sections)
	resp := &types.AggregateResponse{Data: make(map[string]any, len(sections)+4)}

	var (
		mu    sync.Mutex
		fails = make(map[types.SectionName]*types.APIError)
	)
	record := func(name types.SectionName, payload any, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			fails[name] = types.AsAPIError(err)
			return
		}
		resp.Data[string(name)] = payload
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range sections {
		fetch, ok := s.sectionFetch(name, query, base)
		if !ok {
			continue
		}
		name := name
		g.Go(func() error {
			payload, err := fetch(gctx)
			if err != nil {
				s.sink.Record(gctx, "section_fetch_failed", err.Error(), map[string]any{
					"section": string(name),
					"city":    query.City,
				}, slog.LevelWarn)
			}
			record(name, payload, err)
			// Sections degrade independently; never cancel siblings.
			return nil
		})
	}
	_ = g.Wait() // tasks always return nil

	s.mergeBase(resp, sections, base)
	if len(fails) > 0 {
		resp.Errors = fails
	}

	l.InfoContext(ctx, "City detail assembled",
		slog.Int("sections", len(sections)),
		slog.Int("failed", len(fails)))
	span.SetAttributes(attribute.Int("sections.failed", len(fails)))
	span.SetStatus(codes.Ok, "City detail assembled")
	return resp, nil
}

// resolveBase returns the cached base record for the query, geocoding on a
// miss. Geocoding errors pass through untouched so the handler can map them.
func (s *ServiceImpl) resolveBase(ctx context.Context, query types.PlaceQuery) (*types.BaseRecord, error) {
	key := cache.Key("city-detail-base", query.City, query.State, query.Country)
	if cached, ok := s.store.Get(key); ok {
		if rec, ok := cached.(*types.BaseRecord); ok {
			return rec, nil
		}
	}

	loc, err := s.geocoder.Geocode(ctx, query.City, query.State, query.Country)
	if err != nil {
		return nil, err
	}

	var details *types.CountryDetails
	if query.Country != "" {
		// Details degrades to nil on upstream trouble; the record is still
		// usable without it.
		details, _ = s.countries.Details(ctx, query.Country)
	}

	rec := &types.BaseRecord{
		City:           query.City,
		Coordinates:    loc,
		State:          query.State,
		Country:        query.Country,
		CountryDetails: details,
	}
	s.store.Set(key, rec, s.ttl)
	return rec, nil
}

type sectionFetchFunc func(ctx context.Context) (any, error)

// sectionFetch maps a section name to its fetch closure. The base section has
// no fetch; it is merged from the already-resolved record.
func (s *ServiceImpl) sectionFetch(name types.SectionName, query types.PlaceQuery, base *types.BaseRecord) (sectionFetchFunc, bool) {
	loc := *base.Coordinates
	switch name {
	case types.SectionWeather:
		return func(ctx context.Context) (any, error) {
			report, err := s.weather.Forecast(ctx, loc)
			if err != nil {
				return nil, err
			}
			return report, nil
		}, true
	case types.SectionPlaces:
		return func(ctx context.Context) (any, error) {
			found, err := s.places.Nearby(ctx, loc, query.RadiusKm)
			if err != nil {
				return nil, err
			}
			return found, nil
		}, true
	case types.SectionActivities:
		return func(ctx context.Context) (any, error) {
			found, err := s.activities.ByCoordinates(ctx, loc, query.RadiusKm)
			if err != nil {
				return nil, err
			}
			return s.sanitizer.Activities(found), nil
		}, true
	case types.SectionSummary:
		countryName := query.Country
		if base.CountryDetails != nil && base.CountryDetails.CommonName != "" {
			countryName = base.CountryDetails.CommonName
		}
		return func(ctx context.Context) (any, error) {
			text, err := s.summary.Summarize(ctx, query.City, query.State, countryName)
			if err != nil {
				return nil, err
			}
			if text == nil {
				return nil, nil
			}
			return *text, nil
		}, true
	case types.SectionWikipedia:
		return func(ctx context.Context) (any, error) {
			extract, err := s.wikipedia.Extract(ctx, query.City)
			if err != nil {
				return nil, err
			}
			return extract, nil
		}, true
	default:
		return nil, false
	}
}

// mergeBase flattens the base record into the top level of Data when the base
// section was requested. Empty optional fields are omitted.
func (s *ServiceImpl) mergeBase(resp *types.AggregateResponse, sections []types.SectionName, base *types.BaseRecord) {
	for _, name := range sections {
		if name != types.SectionBase {
			continue
		}
		resp.Data["city"] = base.City
		resp.Data["coordinates"] = base.Coordinates
		if base.State != "" {
			resp.Data["state"] = base.State
		}
		if base.Country != "" {
			resp.Data["country"] = base.Country
		}
		if base.CountryDetails != nil {
			resp.Data["country_details"] = base.CountryDetails
		}
		return
	}
}
