package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/api/middleware"
	"github.com/kceleski/agent-healthproassist-sub000/internal/application/services"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

// Error codes returned to presentation clients.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeLocationNotFound   = "LOCATION_NOT_FOUND"
	CodeNoResults          = "NO_RESULTS"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeSuperseded         = "SUPERSEDED"
	CodeInternal           = "INTERNAL_ERROR"
)

// FacilityHandler handles facility search requests
type FacilityHandler struct {
	sessions *services.SessionRegistry
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(sessions *services.SessionRegistry) *FacilityHandler {
	return &FacilityHandler{sessions: sessions}
}

type searchResponse struct {
	SessionID string `json:"session_id,omitempty"`
	Count     int    `json:"count"`
	*entities.SearchResult
}

// SearchFacilities handles GET /api/facilities/search
func (h *FacilityHandler) SearchFacilities(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchQuery(r)
	if err != nil {
		respondWithCode(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	session := h.sessions.Get(strings.TrimSpace(r.Header.Get(middleware.SessionHeader)))
	if session.ID() != "" {
		w.Header().Set(middleware.SessionHeader, session.ID())
	}

	result, err := session.Search(r.Context(), query)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nobody is left to read a response.
			log.Debug().Str("session_id", session.ID()).Msg("Search request cancelled by client")
			return
		}
		status, code, message := searchErrorResponse(err)
		if status >= 500 && code != CodeServiceUnavailable {
			log.Error().Err(err).Str("session_id", session.ID()).Msg("Search failed")
		}
		respondWithCode(w, status, code, message)
		return
	}

	respondWithJSON(w, http.StatusOK, searchResponse{
		SessionID:    session.ID(),
		Count:        len(result.Records),
		SearchResult: result,
	})
}

// SearchStatus handles GET /api/facilities/search/status
func (h *FacilityHandler) SearchStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get(middleware.SessionHeader))
	if id == "" {
		respondWithCode(w, http.StatusBadRequest, CodeInvalidRequest, middleware.SessionHeader+" header is required")
		return
	}
	state, ok := h.sessions.State(id)
	if !ok {
		respondWithCode(w, http.StatusNotFound, "SESSION_NOT_FOUND", "unknown search session")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"state":      state,
	})
}

// searchErrorResponse maps a search failure to what the client should do next.
func searchErrorResponse(err error) (int, string, string) {
	switch {
	case errors.Is(err, apperrors.ErrSearchSuperseded):
		return http.StatusConflict, CodeSuperseded, "a newer search replaced this one"
	case errors.Is(err, apperrors.ErrSearchGeocodeFailed):
		return http.StatusUnprocessableEntity, CodeLocationNotFound, "we couldn't find that location; try a city, address or ZIP code"
	case errors.Is(err, apperrors.ErrSearchNoResults):
		return http.StatusNotFound, CodeNoResults, "no facilities match these filters; try widening the distance or removing a filter"
	case errors.Is(err, apperrors.ErrSearchAllSourcesUnavailable):
		return http.StatusServiceUnavailable, CodeServiceUnavailable, "facility search is temporarily unavailable; please retry"
	case errors.Is(err, context.Canceled):
		return http.StatusConflict, CodeSuperseded, "search was cancelled"
	}
	return http.StatusInternalServerError, CodeInternal, "internal server error"
}

// parseSearchQuery reads a SearchQuery from URL parameters and request headers.
func parseSearchQuery(r *http.Request) (entities.SearchQuery, error) {
	q := r.URL.Query()
	query := entities.SearchQuery{
		LocationText: strings.TrimSpace(q.Get("location")),
		Role:         strings.ToLower(strings.TrimSpace(r.Header.Get(middleware.RoleHeader))),
	}

	latText, lonText := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lon"))
	if latText != "" || lonText != "" {
		lat, err := strconv.ParseFloat(latText, 64)
		if err != nil {
			return query, fmt.Errorf("invalid lat parameter")
		}
		lon, err := strconv.ParseFloat(lonText, 64)
		if err != nil {
			return query, fmt.Errorf("invalid lon parameter")
		}
		center, err := entities.NewGeoPoint(lat, lon)
		if err != nil {
			return query, err
		}
		query.CenterOverride = &center
	}
	if query.LocationText == "" && query.CenterOverride == nil {
		return query, fmt.Errorf("location or lat/lon parameters are required")
	}

	for _, v := range listParam(q["types"]) {
		t, ok := entities.ParseFacilityType(v)
		if !ok {
			return query, fmt.Errorf("unknown facility type %q", v)
		}
		query.Filters.FacilityTypes = append(query.Filters.FacilityTypes, t)
	}
	query.Filters.CareLevels = listParam(q["care_levels"])
	query.Filters.Insurance = listParam(q["insurance"])
	query.Filters.MedicalNeeds = listParam(q["medical_needs"])
	query.Filters.Amenities = listParam(q["amenities"])
	for _, v := range listParam(q["price_tiers"]) {
		tier, ok := entities.ParsePriceTier(v)
		if !ok {
			return query, fmt.Errorf("unknown price tier %q", v)
		}
		query.Filters.PriceTiers = append(query.Filters.PriceTiers, tier)
	}

	if v := strings.TrimSpace(q.Get("min_rating")); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil || rating < 0 || rating > 5 {
			return query, fmt.Errorf("min_rating must be between 0 and 5")
		}
		query.Filters.MinRating = rating
	}
	if v := strings.TrimSpace(q.Get("max_distance_miles")); v != "" {
		miles, err := strconv.ParseFloat(v, 64)
		if err != nil || miles <= 0 {
			return query, fmt.Errorf("max_distance_miles must be a positive number")
		}
		query.Filters.MaxDistanceMiles = &miles
	}
	if v := strings.TrimSpace(q.Get("available_only")); v != "" {
		available, err := strconv.ParseBool(v)
		if err != nil {
			return query, fmt.Errorf("invalid available_only parameter")
		}
		query.Filters.AvailabilityOnly = available
	}

	for _, v := range listParam(q["sources"]) {
		p, err := entities.ParseProvenance(v)
		if err != nil {
			return query, err
		}
		query.SourcePreference = append(query.SourcePreference, p)
	}

	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return query, fmt.Errorf("limit must be a non-negative integer")
		}
		query.Limit = limit
	}
	return query, nil
}

// listParam flattens repeated and comma-separated parameter values.
func listParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Helper functions

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

func respondWithCode(w http.ResponseWriter, statusCode int, code, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
		"code":  code,
	})
}
