package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/geo"
)

const sseHeartbeatInterval = 30 * time.Second

// SSEHandler streams finished searches to operations dashboards over Server-Sent Events.
type SSEHandler struct {
	eventBus  providers.EventBus
	clients   map[string]int // channel -> connected clients
	mu        sync.RWMutex
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		clients:   make(map[string]int),
		heartbeat: sseHeartbeatInterval,
	}
}

// regionFilter keeps events whose search center lies within radius of center.
type regionFilter struct {
	center      entities.GeoPoint
	radiusMiles float64
}

func (f *regionFilter) allows(e *entities.SearchEvent) bool {
	if f == nil {
		return true
	}
	point := entities.GeoPoint{Latitude: e.CenterLatitude, Longitude: e.CenterLongitude}
	return geo.DistanceMiles(f.center, point) <= f.radiusMiles
}

// StreamSearchEvents handles GET /api/stream/searches?role=R&lat=X&lon=Y&radius_miles=Z.
// role selects a role channel; lat/lon narrow the stream to searches centered nearby.
func (h *SSEHandler) StreamSearchEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	channel := providers.EventChannelSearchCompleted
	role := strings.ToLower(strings.TrimSpace(query.Get("role")))
	if role != "" {
		channel = providers.GetRoleChannel(role)
	}

	var region *regionFilter
	if query.Get("lat") != "" || query.Get("lon") != "" {
		lat, latErr := strconv.ParseFloat(query.Get("lat"), 64)
		lon, lonErr := strconv.ParseFloat(query.Get("lon"), 64)
		if latErr != nil || lonErr != nil {
			respondWithError(w, http.StatusBadRequest, "invalid lat/lon parameters")
			return
		}
		center, err := entities.NewGeoPoint(lat, lon)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		radius := 50.0
		if v := query.Get("radius_miles"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil || parsed <= 0 {
				respondWithError(w, http.StatusBadRequest, "radius_miles must be a positive number")
				return
			}
			radius = parsed
		}
		region = &regionFilter{center: center, radiusMiles: radius}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("Failed to subscribe to search events")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	h.registerClient(channel)
	defer h.unregisterClient(channel)

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	connected := map[string]interface{}{
		"channel":   channel,
		"timestamp": time.Now(),
	}
	if region != nil {
		connected["lat"] = region.center.Latitude
		connected["lon"] = region.center.Longitude
		connected["radius_miles"] = region.radiusMiles
	}
	h.sendEvent(w, "connected", connected)
	flusher.Flush()

	clientChan := make(chan *entities.SearchEvent, 50)
	go h.forwardEvents(r.Context(), eventChan, clientChan, region)

	// Keep connection alive and send events
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("channel", channel).Msg("Client disconnected from search stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event := <-clientChan:
			if event == nil {
				continue
			}
			h.sendEvent(w, "search."+string(event.Outcome), event)
			flusher.Flush()
		}
	}
}

// forwardEvents copies matching events to the client, dropping them when the client lags.
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.SearchEvent, clientChan chan<- *entities.SearchEvent, region *regionFilter) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil || !region.allows(event) {
				continue
			}
			select {
			case clientChan <- event:
			default:
				// Client channel full, skip event
			}
		}
	}
}

func (h *SSEHandler) registerClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]++
	log.Debug().Str("channel", channel).Int("clients", h.clients[channel]).Msg("Stream client registered")
}

func (h *SSEHandler) unregisterClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[channel]--; h.clients[channel] <= 0 {
		delete(h.clients, channel)
	}
}

// sendEvent sends an SSE event to the client
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, n := range h.clients {
		count += n
	}
	return count
}
