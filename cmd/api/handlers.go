package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/terradart/terradart-api/internal/domain/citydetail"
	"github.com/terradart/terradart-api/internal/domain/region"
	"github.com/terradart/terradart-api/internal/providers/countries"
	"github.com/terradart/terradart-api/internal/providers/directory"
	"github.com/terradart/terradart-api/internal/types"
)

type handlers struct {
	logger     *slog.Logger
	validate   *validator.Validate
	city       citydetail.Service
	region     region.Service
	countries  countries.Directory
	directory  directory.StateCityDirectory
}

func newHandlers(deps *Dependencies) *handlers {
	return &handlers{
		logger:     deps.Logger,
		validate:   deps.Validate,
		city:       deps.CityDetailService,
		region:     deps.RegionService,
		countries:  deps.Countries,
		directory:  deps.Directory,
	}
}

type cityDetailParams struct {
	City     string `validate:"required"`
	Country  string `validate:"omitempty,len=2,alpha"`
	RadiusKm int    `validate:"gte=0"`
}

// cityDetail handles GET /api/city/{city}.
func (h *handlers) cityDetail(w http.ResponseWriter, r *http.Request) {
	city := r.PathValue("city")

	radius := 1
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, types.NewInvalidInput("radius must be an integer"))
			return
		}
		radius = parsed
	}

	params := cityDetailParams{
		City:     city,
		Country:  r.URL.Query().Get("country"),
		RadiusKm: radius,
	}
	if err := h.validate.Struct(params); err != nil {
		h.writeError(w, types.NewInvalidInput("invalid query parameters: "+err.Error()))
		return
	}

	sections, ok := parseIncludes(r.URL.Query().Get("includes"))
	if !ok {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":            "No valid details requested",
			"allowed_includes": types.AllowedSections,
		})
		return
	}

	resp, err := h.city.GetCityDetail(r.Context(), types.PlaceQuery{
		City:     city,
		State:    r.URL.Query().Get("state"),
		Country:  strings.ToUpper(params.Country),
		RadiusKm: radius,
		Sections: sections,
	})
	if err != nil {
		h.writeError(w, types.AsAPIError(err))
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// cityFromRegion handles GET /api/region/{region}/city.
func (h *handlers) cityFromRegion(w http.ResponseWriter, r *http.Request) {
	regionName := r.PathValue("region")
	wantsCapital := strings.EqualFold(r.URL.Query().Get("capital"), "true")

	pick, err := h.region.ResolveCity(r.Context(), regionName, wantsCapital)
	if err != nil {
		h.writeError(w, types.AsAPIError(err))
		return
	}
	h.writeJSON(w, http.StatusOK, pick)
}

// listCountries handles GET /api/countries.
func (h *handlers) listCountries(w http.ResponseWriter, r *http.Request) {
	all, err := h.countries.All(r.Context())
	if err != nil {
		h.writeError(w, types.AsAPIError(err))
		return
	}
	if all == nil {
		all = []types.Country{}
	}
	h.writeJSON(w, http.StatusOK, all)
}

// listStates handles GET /api/countries/{iso2}/states.
func (h *handlers) listStates(w http.ResponseWriter, r *http.Request) {
	iso2, ok := h.countryCode(w, r)
	if !ok {
		return
	}
	states, err := h.directory.StatesByCountry(r.Context(), iso2)
	if err != nil {
		h.writeError(w, types.AsAPIError(err))
		return
	}
	if states == nil {
		states = []types.State{}
	}
	h.writeJSON(w, http.StatusOK, states)
}

// listCitiesByCountry handles GET /api/countries/{iso2}/cities.
func (h *handlers) listCitiesByCountry(w http.ResponseWriter, r *http.Request) {
	iso2, ok := h.countryCode(w, r)
	if !ok {
		return
	}
	cities, err := h.directory.CitiesByCountry(r.Context(), iso2)
	if err != nil {
		h.writeError(w, types.AsAPIError(err))
		return
	}
	if cities == nil {
		cities = []types.City{}
	}
	h.writeJSON(w, http.StatusOK, cities)
}

// listCitiesByState handles GET /api/countries/{iso2}/states/{state}/cities.
func (h *handlers) listCitiesByState(w http.ResponseWriter, r *http.Request) {
	iso2, ok := h.countryCode(w, r)
	if !ok {
		return
	}
	state := r.PathValue("state")
	if state == "" {
		h.writeError(w, types.NewInvalidInput("state code is required"))
		return
	}
	cities, err := h.directory.CitiesByState(r.Context(), iso2, state)
	if err != nil {
		h.writeError(w, types.AsAPIError(err))
		return
	}
	if cities == nil {
		cities = []types.City{}
	}
	h.writeJSON(w, http.StatusOK, cities)
}

// countryCode extracts and validates the {iso2} path segment.
func (h *handlers) countryCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	iso2 := r.PathValue("iso2")
	if err := h.validate.Var(iso2, "required,len=2,alpha"); err != nil {
		h.writeError(w, types.NewInvalidInput("country must be an ISO 3166-1 alpha-2 code"))
		return "", false
	}
	return strings.ToUpper(iso2), true
}

// parseIncludes splits the includes parameter into section names. The second
// return is false when the caller asked for sections but none were valid.
func parseIncludes(raw string) ([]types.SectionName, bool) {
	if raw == "" {
		return nil, true
	}
	var requested []types.SectionName
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		requested = append(requested, types.SectionName(part))
	}
	if requested == nil {
		return nil, true
	}
	valid := types.FilterSections(requested)
	if len(valid) == 0 {
		return nil, false
	}
	return valid, true
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *handlers) writeError(w http.ResponseWriter, apiErr *types.APIError) {
	h.writeJSON(w, apiErr.Status, apiErr)
}
