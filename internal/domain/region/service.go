package region

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/providers/countries"
	"github.com/terradart/terradart-api/internal/providers/directory"
	"github.com/terradart/terradart-api/internal/types"
)

// maxStateAttempts bounds how many random states are probed before falling
// back to the country's capital.
const maxStateAttempts = 5

// Service resolves a world region to one representative city that the
// geocoder is known to handle.
type Service interface {
	ResolveCity(ctx context.Context, region string, wantsCapital bool) (*types.RegionPick, error)
}

// CapitalChecker is the geocoder subset the resolver needs.
type CapitalChecker interface {
	CanGeocode(ctx context.Context, city, state, country string) bool
}

type ServiceImpl struct {
	logger    *slog.Logger
	countries countries.Directory
	directory directory.StateCityDirectory
	geocoder  CapitalChecker
	sink      observability.FailureSink

	// intn is swappable so tests can pin the random walk.
	intn func(n int) int
}

var _ Service = (*ServiceImpl)(nil)

func NewRegionService(countryDir countries.Directory, stateDir directory.StateCityDirectory, geocoder CapitalChecker, sink observability.FailureSink, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		countries: countryDir,
		directory: stateDir,
		geocoder:  geocoder,
		sink:      sink,
		intn:      rand.IntN,
	}
}

// ResolveCity picks a random country in the region, then walks random states
// looking for a city the geocoder accepts. When every probe comes up empty it
// falls back to the country's capital.
func (s *ServiceImpl) ResolveCity(ctx context.Context, region string, wantsCapital bool) (*types.RegionPick, error) {
	ctx, span := otel.Tracer("RegionService").Start(ctx, "ResolveCity")
	defer span.End()

	l := s.logger.With(
		slog.String("method", "ResolveCity"),
		slog.String("region", region),
	)
	span.SetAttributes(attribute.String("region.name", region))

	all, err := s.countries.ByRegion(ctx, region)
	if err != nil {
		l.WarnContext(ctx, "Country listing failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Country listing failed")
		return nil, err
	}
	if len(all) == 0 {
		err := types.NewNotFound("No country data found for region")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Empty region")
		return nil, err
	}

	country := s.pickCountry(all)
	pick := &types.RegionPick{
		Region:          region,
		ISO2CountryCode: country.CCA2,
		ISO3CountryCode: country.CCA3,
	}
	capital := country.CapitalCity()
	l = l.With(slog.String("country", country.CCA2))
	span.SetAttributes(attribute.String("country.iso2", country.CCA2))

	if wantsCapital {
		if capital == "" {
			err := types.NewNotFound("No capital city found for country")
			span.RecordError(err)
			span.SetStatus(codes.Error, "No capital")
			return nil, err
		}
		pick.City = capital
		l.InfoContext(ctx, "Resolved region to capital", slog.String("city", capital))
		span.SetStatus(codes.Ok, "Capital selected")
		return pick, nil
	}

	states, err := s.directory.StatesByCountry(ctx, country.CCA2)
	if err != nil {
		l.WarnContext(ctx, "State listing failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "State listing failed")
		return nil, err
	}
	if len(states) == 0 {
		err := types.NewNotFound("No states found for country")
		span.RecordError(err)
		span.SetStatus(codes.Error, "No states")
		return nil, err
	}

	tries := min(maxStateAttempts, len(states))
	for _, idx := range s.perm(len(states))[:tries] {
		st := states[idx]
		cities, err := s.directory.CitiesByState(ctx, country.CCA2, st.ISO2)
		if err != nil || len(cities) == 0 {
			continue
		}
		cand := cities[s.intn(len(cities))]
		if !s.geocoder.CanGeocode(ctx, cand.Name, st.Name, country.CCA2) {
			l.DebugContext(ctx, "Candidate city not geocodable",
				slog.String("city", cand.Name), slog.String("state", st.Name))
			continue
		}
		pick.City = cand.Name
		pick.StateName = st.Name
		pick.ISO2StateCode = st.ISO2
		l.InfoContext(ctx, "Resolved region to city",
			slog.String("city", cand.Name), slog.String("state", st.Name))
		span.SetStatus(codes.Ok, "City selected")
		return pick, nil
	}

	if capital != "" {
		s.sink.Record(ctx, "region_city_starvation",
			"no geocodable city found in sampled states, using capital",
			map[string]any{"region": region, "country": country.CCA2}, slog.LevelWarn)
		pick.City = capital
		l.WarnContext(ctx, "Falling back to capital", slog.String("city", capital))
		span.SetStatus(codes.Ok, "Capital fallback")
		return pick, nil
	}

	err = types.NewNotFound("Could not resolve a city for region")
	span.RecordError(err)
	span.SetStatus(codes.Error, "Resolution exhausted")
	return nil, err
}

// pickCountry draws random countries until one with a recorded population
// turns up, giving each entry on average one chance. Microstates with no
// population data are only selected when nothing else is available.
func (s *ServiceImpl) pickCountry(all []types.Country) types.Country {
	for range all {
		c := all[s.intn(len(all))]
		if c.Population > 0 {
			return c
		}
	}
	return all[s.intn(len(all))]
}

// perm is a Fisher-Yates shuffle driven by the injected source.
func (s *ServiceImpl) perm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := s.intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
