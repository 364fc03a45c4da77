package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kceleski/agent-healthproassist-sub000/internal/api/handlers"
	"github.com/kceleski/agent-healthproassist-sub000/internal/api/middleware"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/observability"
)

// ReadinessCheck reports the health of each backing service by name.
type ReadinessCheck func(ctx context.Context) map[string]error

const readinessTimeout = 2 * time.Second

// Router holds all route handlers

type Router struct {
	mux *http.ServeMux

	facilityHandler *handlers.FacilityHandler

	geolocationHandler *handlers.GeolocationHandler

	analyticsHandler *handlers.AnalyticsHandler

	readinessCheck ReadinessCheck

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. geolocationHandler and analyticsHandler may be nil.
func NewRouter(
	facilityHandler *handlers.FacilityHandler,
	geolocationHandler *handlers.GeolocationHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux: http.NewServeMux(),

		facilityHandler:    facilityHandler,
		geolocationHandler: geolocationHandler,
		analyticsHandler:   analyticsHandler,

		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// SetReadinessCheck enables GET /health/ready
func (r *Router) SetReadinessCheck(check ReadinessCheck) {
	r.readinessCheck = check
}

// SetupRoutes configures all application routes

func (r *Router) SetupRoutes() http.Handler {

	// Health check endpoint

	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {

		w.WriteHeader(http.StatusOK)

		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}

	})

	if r.readinessCheck != nil {
		r.mux.HandleFunc("GET /health/ready", r.ready)
	}

	// Facility search endpoints

	r.mux.HandleFunc("GET /api/facilities/search", r.facilityHandler.SearchFacilities)

	r.mux.HandleFunc("GET /api/facilities/search/status", r.facilityHandler.SearchStatus)

	// Geolocation endpoints
	if r.geolocationHandler != nil {
		r.mux.HandleFunc("GET /api/geocode", r.geolocationHandler.Geocode)
	}

	// Analytics endpoints
	if r.analyticsHandler != nil {
		r.mux.HandleFunc("GET /api/analytics/zero-result-queries", r.analyticsHandler.GetZeroResultQueries)
	}

	// Apply middleware in reverse order (last middleware wraps first)

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// Apply HTTP performance optimizations (compression, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set on every response
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

func (r *Router) ready(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), readinessTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := make(map[string]string)
	for name, err := range r.readinessCheck(ctx) {
		if err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
