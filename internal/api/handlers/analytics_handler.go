package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

// ZeroResultQueryReader lists searches that matched nothing.
type ZeroResultQueryReader interface {
	GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error)
}

// AnalyticsHandler serves search analytics.
type AnalyticsHandler struct {
	analytics ZeroResultQueryReader
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics ZeroResultQueryReader) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// GetZeroResultQueries handles GET /api/analytics/zero-result-queries
func (h *AnalyticsHandler) GetZeroResultQueries(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			respondWithError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	events, err := h.analytics.GetZeroResultQueries(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load zero result queries")
		respondWithError(w, http.StatusInternalServerError, "failed to load zero result queries")
		return
	}
	if events == nil {
		events = []*entities.SearchEvent{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"queries": events,
		"count":   len(events),
	})
}
