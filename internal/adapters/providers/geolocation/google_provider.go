package geolocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/observability"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/utils"
)

const (
	googleGeocodeURL       = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultGeocodeCacheTTL = 30 * 24 * time.Hour
	defaultHTTPTimeout     = 8 * time.Second
	geocodeCachePrefix     = "geo:v3:geocode:"
)

// GoogleGeocoder resolves locations with the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey     string
	httpClient *http.Client
	cache      providers.CacheProvider
	cacheTTL   time.Duration
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
}

// GoogleOption configures a GoogleGeocoder
type GoogleOption func(*GoogleGeocoder)

// WithBaseURL overrides the API endpoint (used for tests).
func WithBaseURL(baseURL string) GoogleOption {
	return func(g *GoogleGeocoder) {
		if strings.TrimSpace(baseURL) != "" {
			g.baseURL = baseURL
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(g *GoogleGeocoder) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithCacheTTL sets how long resolved locations stay cached.
func WithCacheTTL(ttl time.Duration) GoogleOption {
	return func(g *GoogleGeocoder) {
		if ttl > 0 {
			g.cacheTTL = ttl
		}
	}
}

// WithRateLimit caps outbound requests per second. Zero disables the limiter.
func WithRateLimit(rps float64) GoogleOption {
	return func(g *GoogleGeocoder) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps))))
		} else {
			g.limiter = nil
		}
	}
}

// WithMetrics records cache hits and misses.
func WithMetrics(m *observability.Metrics) GoogleOption {
	return func(g *GoogleGeocoder) { g.metrics = m }
}

// NewGoogleGeocoder creates a new Google geocoder. cache may be nil.
func NewGoogleGeocoder(apiKey string, cache providers.CacheProvider, opts ...GoogleOption) *GoogleGeocoder {
	g := &GoogleGeocoder{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		cache:      cache,
		cacheTTL:   defaultGeocodeCacheTTL,
		baseURL:    googleGeocodeURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve implements providers.Geocoder.
func (g *GoogleGeocoder) Resolve(ctx context.Context, locationText string) (entities.GeoPoint, error) {
	addr, err := g.Geocode(ctx, locationText)
	if err != nil {
		return entities.GeoPoint{}, err
	}
	return addr.Location, nil
}

// Geocode converts an address to a full geocoded address.
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (*providers.GeocodedAddress, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeNotFound, address, fmt.Errorf("address is required"))
	}

	cacheKey := geocodeCachePrefix + utils.HashKey(strings.ToLower(trimmed))
	if addr, ok := g.cached(ctx, cacheKey); ok {
		return addr, nil
	}

	resp, err := g.doGeocodeRequest(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	result := resp.Results[0]
	location, err := entities.NewGeoPoint(result.Geometry.Location.Lat, result.Geometry.Location.Lng)
	if err != nil {
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, trimmed, err)
	}
	addr := &providers.GeocodedAddress{
		FormattedAddress: result.FormattedAddress,
		City:             component(result.AddressComponents, "locality", "administrative_area_level_2"),
		State:            component(result.AddressComponents, "administrative_area_level_1"),
		ZipCode:          component(result.AddressComponents, "postal_code"),
		Country:          component(result.AddressComponents, "country"),
		Location:         location,
	}

	if g.cache != nil {
		if payload, err := json.Marshal(addr); err == nil {
			if err := g.cache.Set(ctx, cacheKey, payload, g.cacheTTL); err != nil {
				log.Warn().Err(err).Msg("Failed to cache geocode result")
			}
		}
	}
	return addr, nil
}

func (g *GoogleGeocoder) cached(ctx context.Context, key string) (*providers.GeocodedAddress, bool) {
	if g.cache == nil {
		return nil, false
	}
	payload, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			log.Warn().Err(err).Msg("Geocode cache read failed")
		}
		observability.RecordGeocodeCache(ctx, g.metrics, false)
		return nil, false
	}
	var addr providers.GeocodedAddress
	if err := json.Unmarshal(payload, &addr); err != nil || addr.Location.IsZero() {
		observability.RecordGeocodeCache(ctx, g.metrics, false)
		return nil, false
	}
	observability.RecordGeocodeCache(ctx, g.metrics, true)
	return &addr, true
}

func (g *GoogleGeocoder) doGeocodeRequest(ctx context.Context, address string) (*googleGeocodeResponse, error) {
	if g.apiKey == "" {
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, address, fmt.Errorf("google maps api key is required"))
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, address, err)
		}
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)
	reqURL := fmt.Sprintf("%s?%s", g.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, address, fmt.Errorf("failed to build geocode request: %w", err))
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, address, fmt.Errorf("geocode request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeRateLimited, address, fmt.Errorf("geocode request returned status %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, address, fmt.Errorf("geocode request returned status %d", resp.StatusCode))
	}

	var payload googleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, address, fmt.Errorf("failed to decode geocode response: %w", err))
	}

	switch payload.Status {
	case "OK":
		if len(payload.Results) == 0 {
			return nil, apperrors.NewGeocodeError(apperrors.GeocodeNotFound, address, nil)
		}
		return &payload, nil
	case "ZERO_RESULTS":
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeNotFound, address, nil)
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeRateLimited, address, payload.err())
	default:
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, address, payload.err())
	}
}

func component(components []googleAddressComponent, primary string, fallback ...string) string {
	for _, t := range append([]string{primary}, fallback...) {
		for _, comp := range components {
			if containsType(comp.Types, t) {
				return comp.LongName
			}
		}
	}
	return ""
}

func containsType(types []string, target string) bool {
	for _, t := range types {
		if t == target {
			return true
		}
	}
	return false
}

type googleGeocodeResponse struct {
	Status       string                `json:"status"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Results      []googleGeocodeResult `json:"results"`
}

func (r *googleGeocodeResponse) err() error {
	if r.ErrorMessage != "" {
		return fmt.Errorf("geocode request failed: %s - %s", r.Status, r.ErrorMessage)
	}
	return fmt.Errorf("geocode request failed: %s", r.Status)
}

type googleGeocodeResult struct {
	FormattedAddress  string                   `json:"formatted_address"`
	AddressComponents []googleAddressComponent `json:"address_components"`
	Geometry          googleGeometry           `json:"geometry"`
}

type googleAddressComponent struct {
	LongName string   `json:"long_name"`
	Types    []string `json:"types"`
}

type googleGeometry struct {
	Location googleLocation `json:"location"`
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
