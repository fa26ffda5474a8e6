package types

// SectionName identifies one independently fetchable facet of a city detail
// response.
type SectionName string

const (
	SectionBase       SectionName = "base"
	SectionSummary    SectionName = "summary"
	SectionWeather    SectionName = "weather"
	SectionActivities SectionName = "activities"
	SectionPlaces     SectionName = "places"
	SectionWikipedia  SectionName = "wikipedia"
)

// AllowedSections is the closed set of sections, in canonical response order.
var AllowedSections = []SectionName{
	SectionBase,
	SectionSummary,
	SectionWeather,
	SectionActivities,
	SectionPlaces,
	SectionWikipedia,
}

// IsAllowedSection reports whether name is a member of the closed section set.
func IsAllowedSection(name SectionName) bool {
	for _, s := range AllowedSections {
		if s == name {
			return true
		}
	}
	return false
}

// FilterSections intersects requested with the allowed set, preserving
// canonical order and silently dropping unrecognized names. A nil or empty
// request means "everything".
func FilterSections(requested []SectionName) []SectionName {
	if len(requested) == 0 {
		out := make([]SectionName, len(AllowedSections))
		copy(out, AllowedSections)
		return out
	}
	want := make(map[SectionName]bool, len(requested))
	for _, s := range requested {
		want[s] = true
	}
	var out []SectionName
	for _, s := range AllowedSections {
		if want[s] {
			out = append(out, s)
		}
	}
	return out
}

// PlaceQuery is the immutable input to the city detail resolver.
type PlaceQuery struct {
	City     string
	State    string
	Country  string // ISO 3166-1 alpha-2
	RadiusKm int
	Sections []SectionName
}

// GeoLocation is a resolved coordinate pair. It is produced once per
// distinct (city, state, country) triple and never mutated afterwards.
type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CountryDetails carries the display fields fetched per ISO2 code.
type CountryDetails struct {
	CommonName   string `json:"common_name"`
	OfficialName string `json:"official_name"`
	FlagRef      string `json:"flag_ref,omitempty"`
	Region       string `json:"region,omitempty"`
	Subregion    string `json:"subregion,omitempty"`
}

// BaseRecord is the cached geolocation prerequisite for every other section.
type BaseRecord struct {
	City           string          `json:"city"`
	Coordinates    *GeoLocation    `json:"coordinates"`
	State          string          `json:"state,omitempty"`
	Country        string          `json:"country,omitempty"`
	CountryDetails *CountryDetails `json:"country_details,omitempty"`
}

// RegionPick is the result of resolving a region to a representative city.
// It is ephemeral; only its sub-fetches are cached.
type RegionPick struct {
	Region          string `json:"region"`
	City            string `json:"city"`
	ISO2CountryCode string `json:"iso2_country_code,omitempty"`
	ISO3CountryCode string `json:"iso3_country_code,omitempty"`
	StateName       string `json:"state_name,omitempty"`
	ISO2StateCode   string `json:"iso2_state_code,omitempty"`
}

// Country is a directory entry from the country listing upstream.
type Country struct {
	Name       CountryName `json:"name"`
	Capital    []string    `json:"capital"`
	CCA2       string      `json:"cca2"`
	CCA3       string      `json:"cca3"`
	Population int64       `json:"population"`
}

type CountryName struct {
	Common   string `json:"common"`
	Official string `json:"official"`
}

// CapitalCity returns the first listed capital, or "" when none is known.
func (c Country) CapitalCity() string {
	if len(c.Capital) == 0 {
		return ""
	}
	return c.Capital[0]
}

// State is a directory entry for a first-level administrative division.
type State struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ISO2        string `json:"iso2"`
	CountryCode string `json:"country_code"`
}

// City is a directory entry for a settlement within a state or country.
type City struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AggregateResponse is the merged outcome of a city detail resolution. Data
// and Errors partition the requested section set: a section appears in
// exactly one of them.
type AggregateResponse struct {
	Data   map[string]any            `json:"data"`
	Errors map[SectionName]*APIError `json:"errors,omitempty"`
}
