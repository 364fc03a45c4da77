package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

// GeolocationHandler handles geolocation endpoints.
type GeolocationHandler struct {
	geocoder providers.AddressGeocoder
}

// NewGeolocationHandler creates a new geolocation handler.
func NewGeolocationHandler(geocoder providers.AddressGeocoder) *GeolocationHandler {
	return &GeolocationHandler{geocoder: geocoder}
}

// Geocode handles GET /api/geocode?address=...
func (h *GeolocationHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		respondWithCode(w, http.StatusBadRequest, CodeInvalidRequest, "address parameter is required")
		return
	}

	addr, err := h.geocoder.Geocode(r.Context(), address)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrGeocodeNotFound):
			respondWithCode(w, http.StatusUnprocessableEntity, CodeLocationNotFound, "no location matches that address")
		case errors.Is(err, apperrors.ErrGeocodeRateLimited):
			w.Header().Set("Retry-After", "1")
			respondWithCode(w, http.StatusTooManyRequests, "RATE_LIMITED", "geocoding is rate limited; please retry")
		default:
			log.Warn().Err(err).Str("address", address).Msg("Geocode failed")
			respondWithCode(w, http.StatusBadGateway, CodeServiceUnavailable, "failed to geocode address")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"address":           address,
		"formatted_address": addr.FormattedAddress,
		"city":              addr.City,
		"state":             addr.State,
		"lat":               addr.Location.Latitude,
		"lon":               addr.Location.Longitude,
	})
}
