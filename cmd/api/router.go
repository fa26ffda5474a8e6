package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/terradart/terradart-api/pkg/middleware"
)

// SetupRouter configures all routes and returns the HTTP handler
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	h := newHandlers(deps)

	mux.HandleFunc("GET /api/city/{city}", h.cityDetail)
	mux.HandleFunc("GET /api/region/{region}/city", h.cityFromRegion)
	mux.HandleFunc("GET /api/countries", h.listCountries)
	mux.HandleFunc("GET /api/countries/{iso2}/states", h.listStates)
	mux.HandleFunc("GET /api/countries/{iso2}/cities", h.listCitiesByCountry)
	mux.HandleFunc("GET /api/countries/{iso2}/states/{state}/cities", h.listCitiesByState)

	registerUtilityRoutes(mux, deps)

	var handler http.Handler = mux
	handler = middleware.Recovery(deps.Logger)(handler)
	handler = middleware.Logging(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	// Enable CORS for browser clients (local frontend)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			middleware.RequestIDHeader,
		},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})

	return corsHandler.Handler(handler)
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	deps.Logger.Info("registered utility routes", "paths", []string{"/health", "/ready", "/metrics"})
}
