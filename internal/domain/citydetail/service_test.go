package citydetail

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/terradart/terradart-api/internal/cache"
	"github.com/terradart/terradart-api/internal/observability"
	"github.com/terradart/terradart-api/internal/providers/activities"
	"github.com/terradart/terradart-api/internal/providers/places"
	"github.com/terradart/terradart-api/internal/providers/weather"
	"github.com/terradart/terradart-api/internal/providers/wikipedia"
	"github.com/terradart/terradart-api/internal/types"
)

// MockGeocoder is a mock implementation of geocode.Geocoder
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, city, state, country string) (*types.GeoLocation, error) {
	args := m.Called(ctx, city, state, country)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.GeoLocation), args.Error(1)
}

func (m *MockGeocoder) CanGeocode(ctx context.Context, city, state, country string) bool {
	args := m.Called(ctx, city, state, country)
	return args.Bool(0)
}

// MockCountryDirectory is a mock implementation of countries.Directory
type MockCountryDirectory struct {
	mock.Mock
}

func (m *MockCountryDirectory) ByRegion(ctx context.Context, region string) ([]types.Country, error) {
	args := m.Called(ctx, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Country), args.Error(1)
}

func (m *MockCountryDirectory) All(ctx context.Context) ([]types.Country, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Country), args.Error(1)
}

func (m *MockCountryDirectory) Details(ctx context.Context, iso2 string) (*types.CountryDetails, error) {
	args := m.Called(ctx, iso2)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CountryDetails), args.Error(1)
}

// MockWeatherProvider is a mock implementation of weather.Provider
type MockWeatherProvider struct {
	mock.Mock
}

func (m *MockWeatherProvider) Forecast(ctx context.Context, loc types.GeoLocation) (*weather.Report, error) {
	args := m.Called(ctx, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*weather.Report), args.Error(1)
}

// MockPlacesProvider is a mock implementation of places.Provider
type MockPlacesProvider struct {
	mock.Mock
}

func (m *MockPlacesProvider) Nearby(ctx context.Context, loc types.GeoLocation, radiusKm int) ([]places.Place, error) {
	args := m.Called(ctx, loc, radiusKm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]places.Place), args.Error(1)
}

// MockActivitiesProvider is a mock implementation of activities.Provider
type MockActivitiesProvider struct {
	mock.Mock
}

func (m *MockActivitiesProvider) ByCoordinates(ctx context.Context, loc types.GeoLocation, radiusKm int) ([]*activities.Activity, error) {
	args := m.Called(ctx, loc, radiusKm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*activities.Activity), args.Error(1)
}

// MockSummaryProvider is a mock implementation of summary.Provider
type MockSummaryProvider struct {
	mock.Mock
}

func (m *MockSummaryProvider) Summarize(ctx context.Context, city, state, countryName string) (*string, error) {
	args := m.Called(ctx, city, state, countryName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

// MockWikipediaProvider is a mock implementation of wikipedia.Provider
type MockWikipediaProvider struct {
	mock.Mock
}

func (m *MockWikipediaProvider) Extract(ctx context.Context, title string) (*wikipedia.Extract, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wikipedia.Extract), args.Error(1)
}

type testMocks struct {
	geocoder   *MockGeocoder
	countries  *MockCountryDirectory
	weather    *MockWeatherProvider
	places     *MockPlacesProvider
	activities *MockActivitiesProvider
	summary    *MockSummaryProvider
	wikipedia  *MockWikipediaProvider
}

func newTestService(store cache.Store) (*ServiceImpl, *testMocks) {
	m := &testMocks{
		geocoder:   new(MockGeocoder),
		countries:  new(MockCountryDirectory),
		weather:    new(MockWeatherProvider),
		places:     new(MockPlacesProvider),
		activities: new(MockActivitiesProvider),
		summary:    new(MockSummaryProvider),
		wikipedia:  new(MockWikipediaProvider),
	}
	svc := NewCityDetailService(Deps{
		Geocoder:   m.geocoder,
		Countries:  m.countries,
		Weather:    m.weather,
		Places:     m.places,
		Activities: m.activities,
		Summary:    m.summary,
		Wikipedia:  m.wikipedia,
	}, store, 5*time.Minute, observability.Nop{}, slog.Default())
	return svc, m
}

var nycLoc = types.GeoLocation{Latitude: 40.7127281, Longitude: -74.0060152}

func TestGetCityDetailAllSectionsSucceed(t *testing.T) {
	svc, m := newTestService(cache.NewMemory(time.Minute))
	ctx := context.Background()

	m.geocoder.On("Geocode", mock.Anything, "New York", "New York", "US").Return(&nycLoc, nil)
	m.countries.On("Details", mock.Anything, "US").Return(&types.CountryDetails{CommonName: "United States"}, nil)
	m.weather.On("Forecast", mock.Anything, nycLoc).Return(&weather.Report{}, nil)
	m.places.On("Nearby", mock.Anything, nycLoc, 10).Return([]places.Place{{Name: "Central Park"}}, nil)
	m.activities.On("ByCoordinates", mock.Anything, nycLoc, 10).Return([]*activities.Activity{}, nil)
	text := "A dense, iconic city."
	m.summary.On("Summarize", mock.Anything, "New York", "New York", "United States").Return(&text, nil)
	m.wikipedia.On("Extract", mock.Anything, "New York").Return(&wikipedia.Extract{Title: "New York City"}, nil)

	resp, err := svc.GetCityDetail(ctx, types.PlaceQuery{
		City: "New York", State: "New York", Country: "US", RadiusKm: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, "New York", resp.Data["city"])
	assert.Equal(t, &nycLoc, resp.Data["coordinates"])
	assert.Equal(t, "New York", resp.Data["state"])
	assert.Equal(t, "US", resp.Data["country"])
	assert.Contains(t, resp.Data, "weather")
	assert.Contains(t, resp.Data, "places")
	assert.Contains(t, resp.Data, "activities")
	assert.Contains(t, resp.Data, "wikipedia")
	assert.Equal(t, text, resp.Data["summary"])
	assert.Nil(t, resp.Errors)

	m.geocoder.AssertExpectations(t)
	m.weather.AssertExpectations(t)
}

func TestGetCityDetailSectionFailureIsIsolated(t *testing.T) {
	svc, m := newTestService(cache.NewMemory(time.Minute))
	ctx := context.Background()

	m.geocoder.On("Geocode", mock.Anything, "New York", "", "").Return(&nycLoc, nil)
	m.weather.On("Forecast", mock.Anything, nycLoc).
		Return(nil, types.NewUpstream("Weather upstream returned 503", 503))
	m.places.On("Nearby", mock.Anything, nycLoc, 5).Return([]places.Place{{Name: "Central Park"}}, nil)

	resp, err := svc.GetCityDetail(ctx, types.PlaceQuery{
		City:     "New York",
		RadiusKm: 5,
		Sections: []types.SectionName{types.SectionBase, types.SectionWeather, types.SectionPlaces},
	})
	require.NoError(t, err)

	assert.Equal(t, "New York", resp.Data["city"])
	assert.Contains(t, resp.Data, "places")
	assert.NotContains(t, resp.Data, "weather")
	require.Contains(t, resp.Errors, types.SectionWeather)
	assert.Equal(t, 503, resp.Errors[types.SectionWeather].Status)
}

func TestGetCityDetailGeocodeFailureIsTerminal(t *testing.T) {
	svc, m := newTestService(cache.NewMemory(time.Minute))
	ctx := context.Background()

	m.geocoder.On("Geocode", mock.Anything, "Atlantis", "", "").
		Return(nil, types.NewNotFound("City not found"))

	resp, err := svc.GetCityDetail(ctx, types.PlaceQuery{City: "Atlantis"})
	assert.Nil(t, resp)
	require.Error(t, err)
	apiErr := types.AsAPIError(err)
	assert.Equal(t, types.KindNotFound, apiErr.Kind)
	assert.Equal(t, 404, apiErr.Status)
	m.weather.AssertNotCalled(t, "Forecast", mock.Anything, mock.Anything)
}

func TestGetCityDetailUsesCachedBaseRecord(t *testing.T) {
	store := cache.NewMemory(time.Minute)
	svc, m := newTestService(store)
	ctx := context.Background()

	store.Set(cache.Key("city-detail-base", "Lisbon", "", "PT"), &types.BaseRecord{
		City:        "Lisbon",
		Coordinates: &types.GeoLocation{Latitude: 38.7, Longitude: -9.1},
		Country:     "PT",
	}, time.Minute)

	resp, err := svc.GetCityDetail(ctx, types.PlaceQuery{
		City: "Lisbon", Country: "PT",
		Sections: []types.SectionName{types.SectionBase},
	})
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", resp.Data["city"])
	m.geocoder.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetCityDetailCachedRecordWithoutCoordinates(t *testing.T) {
	store := cache.NewMemory(time.Minute)
	svc, _ := newTestService(store)
	ctx := context.Background()

	store.Set(cache.Key("city-detail-base", "Ghost", "", ""), &types.BaseRecord{City: "Ghost"}, time.Minute)

	resp, err := svc.GetCityDetail(ctx, types.PlaceQuery{City: "Ghost"})
	assert.Nil(t, resp)
	require.Error(t, err)
	apiErr := types.AsAPIError(err)
	assert.Equal(t, 500, apiErr.Status)
	assert.Equal(t, "Missing coordinates for city", apiErr.Message)
}

func TestGetCityDetailSectionFilter(t *testing.T) {
	svc, m := newTestService(cache.NewMemory(time.Minute))
	ctx := context.Background()

	m.geocoder.On("Geocode", mock.Anything, "Porto", "", "").Return(&types.GeoLocation{Latitude: 41.1, Longitude: -8.6}, nil)
	m.weather.On("Forecast", mock.Anything, mock.Anything).Return(&weather.Report{}, nil)

	resp, err := svc.GetCityDetail(ctx, types.PlaceQuery{
		City:     "Porto",
		Sections: []types.SectionName{types.SectionWeather, "bogus"},
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Data, "weather")
	assert.NotContains(t, resp.Data, "city")
	assert.NotContains(t, resp.Data, "summary")
	m.places.AssertNotCalled(t, "Nearby", mock.Anything, mock.Anything, mock.Anything)
	m.wikipedia.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestGetCityDetailActivitiesAreSanitized(t *testing.T) {
	svc, m := newTestService(cache.NewMemory(time.Minute))
	ctx := context.Background()

	m.geocoder.On("Geocode", mock.Anything, "Paris", "", "FR").Return(&types.GeoLocation{Latitude: 48.85, Longitude: 2.35}, nil)
	m.countries.On("Details", mock.Anything, "FR").Return(nil, nil)
	m.activities.On("ByCoordinates", mock.Anything, mock.Anything, 1).Return([]*activities.Activity{
		{
			Name:        "Seine Cruise",
			Description: `<p>Lovely <script>alert("xss")</script><b>evening</b> cruise</p>`,
		},
		nil,
	}, nil)

	resp, err := svc.GetCityDetail(ctx, types.PlaceQuery{
		City: "Paris", Country: "FR", RadiusKm: 1,
		Sections: []types.SectionName{types.SectionActivities},
	})
	require.NoError(t, err)

	got, ok := resp.Data["activities"].([]*activities.Activity)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.NotContains(t, got[0].Description, "<script>")
	assert.NotContains(t, got[0].Description, "alert")
	assert.Contains(t, got[0].Description, "<b>evening</b>")
}

func TestGetCityDetailDisabledSummaryIsNull(t *testing.T) {
	svc, m := newTestService(cache.NewMemory(time.Minute))
	ctx := context.Background()

	m.geocoder.On("Geocode", mock.Anything, "Oslo", "", "").Return(&types.GeoLocation{Latitude: 59.9, Longitude: 10.7}, nil)
	m.summary.On("Summarize", mock.Anything, "Oslo", "", "").Return(nil, nil)

	resp, err := svc.GetCityDetail(ctx, types.PlaceQuery{
		City:     "Oslo",
		Sections: []types.SectionName{types.SectionSummary},
	})
	require.NoError(t, err)

	require.Contains(t, resp.Data, "summary")
	assert.Nil(t, resp.Data["summary"])
	assert.Nil(t, resp.Errors)
}
