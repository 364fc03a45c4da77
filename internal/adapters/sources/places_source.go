package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/retry"
)

const (
	googlePlacesTextURL = "https://maps.googleapis.com/maps/api/place/textsearch/json"
	// maxPlacesRadiusMeters is the largest location bias radius the API accepts.
	maxPlacesRadiusMeters = 50000
	metersPerMile         = 1609.344
	defaultPlacesQuery    = "senior living"
)

// PlacesSourceConfig configures a PlacesSource
type PlacesSourceConfig struct {
	Name              string
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRecords        int
	HTTPClient        *http.Client
	Retry             *retry.Config
}

// PlacesSource queries a live business-listing text search API.
type PlacesSource struct {
	name       string
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRecords int
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      retry.Config
}

// NewPlacesSource creates a live source
func NewPlacesSource(cfg PlacesSourceConfig) *PlacesSource {
	s := &PlacesSource{
		name:       cfg.Name,
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		apiKey:     cfg.APIKey,
		timeout:    orDefault(cfg.Timeout, DefaultNetworkTimeout),
		maxRecords: cfg.MaxRecords,
		httpClient: cfg.HTTPClient,
	}
	if s.name == "" {
		s.name = "places"
	}
	if s.baseURL == "" {
		s.baseURL = googlePlacesTextURL
	}
	if s.maxRecords <= 0 {
		s.maxRecords = DefaultMaxRecords
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{}
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		s.limiter = rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps))))
	}

	if cfg.Retry != nil {
		s.retry = *cfg.Retry
	} else {
		s.retry = retry.RequestConfig()
	}
	s.retry.Retryable = isRetryablePlacesError
	return s
}

// Name implements providers.FacilitySource.
func (s *PlacesSource) Name() string { return s.name }

// Provenance implements providers.FacilitySource.
func (s *PlacesSource) Provenance() entities.Provenance { return entities.ProvenanceLiveQuery }

// Timeout implements providers.FacilitySource.
func (s *PlacesSource) Timeout() time.Duration { return s.timeout }

// Fetch runs one text search biased to center.
func (s *PlacesSource) Fetch(ctx context.Context, query entities.SearchQuery, center entities.GeoPoint) (*providers.FetchResult, error) {
	params := url.Values{}
	params.Set("query", placesQueryText(query.Filters.FacilityTypes))
	params.Set("location", fmt.Sprintf("%f,%f", center.Latitude, center.Longitude))
	params.Set("radius", strconv.Itoa(placesRadiusMeters(query.Filters.MaxDistanceMiles)))
	if s.apiKey != "" {
		params.Set("key", s.apiKey)
	}
	reqURL := s.baseURL + "?" + params.Encode()

	var payload placesTextSearchResponse
	err := retry.DoWithLog(ctx, s.retry, s.name, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		return s.do(ctx, reqURL, &payload)
	}, func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).Str("source", s.name).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Places request failed")
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextError(s.name, ctxErr)
		}
		var adapterErr *apperrors.AdapterError
		if errors.As(err, &adapterErr) {
			return nil, adapterErr
		}
		return nil, apperrors.NewAdapterError(apperrors.AdapterUnavailable, s.name, err)
	}

	switch payload.Status {
	case "OK", "ZERO_RESULTS":
	default:
		msg := payload.Status
		if payload.ErrorMessage != "" {
			msg += " - " + payload.ErrorMessage
		}
		return nil, apperrors.NewAdapterError(apperrors.AdapterUnavailable, s.name, fmt.Errorf("places text search failed: %s", msg))
	}

	result := &providers.FetchResult{
		Records:   make([]entities.RawSourceRecord, 0, len(payload.Results)),
		Truncated: payload.NextPageToken != "",
	}
	for _, place := range payload.Results {
		if len(result.Records) == s.maxRecords {
			result.Truncated = true
			break
		}
		result.Records = append(result.Records, place.raw())
	}
	return result, nil
}

// placesStatusError is a non-2xx HTTP response.
type placesStatusError struct {
	status int
}

func (e *placesStatusError) Error() string {
	return fmt.Sprintf("places text search returned status %d", e.status)
}

// placesAPIStatusError is a body status the API documents as transient.
type placesAPIStatusError struct {
	status string
}

func (e *placesAPIStatusError) Error() string {
	return "places text search failed: " + e.status
}

func isRetryablePlacesError(err error) bool {
	var statusErr *placesStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status >= 500
	}
	var apiErr *placesAPIStatusError
	if errors.As(err, &apiErr) {
		return true
	}
	var adapterErr *apperrors.AdapterError
	// Decode failures do not heal on retry.
	return !errors.As(err, &adapterErr)
}

func (s *PlacesSource) do(ctx context.Context, reqURL string, payload *placesTextSearchResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return retry.Permanent(apperrors.NewAdapterError(apperrors.AdapterUnavailable, s.name, err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("places text search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &placesStatusError{status: resp.StatusCode}
	}

	*payload = placesTextSearchResponse{}
	if err := json.NewDecoder(resp.Body).Decode(payload); err != nil {
		return apperrors.NewAdapterError(apperrors.AdapterMalformed, s.name, fmt.Errorf("failed to decode places response: %w", err))
	}
	if payload.Status == "UNKNOWN_ERROR" {
		return &placesAPIStatusError{status: payload.Status}
	}
	return nil
}

var placesTypeQueries = map[entities.FacilityType]string{
	entities.FacilityTypeAssistedLiving:    "assisted living",
	entities.FacilityTypeMemoryCare:        "memory care",
	entities.FacilityTypeIndependentLiving: "independent living",
	entities.FacilityTypeSkilledNursing:    "skilled nursing facility",
	entities.FacilityTypeHomeCare:          "home care agency",
	entities.FacilityTypeAdultDayCare:      "adult day care",
	entities.FacilityTypeHospice:           "hospice",
	entities.FacilityTypeContinuingCare:    "continuing care retirement community",
	entities.FacilityTypeResidentialCare:   "residential care home",
}

func placesQueryText(types []entities.FacilityType) string {
	terms := make([]string, 0, len(types))
	for _, t := range types {
		if q, ok := placesTypeQueries[t]; ok {
			terms = append(terms, q)
		}
	}
	if len(terms) == 0 {
		return defaultPlacesQuery
	}
	return strings.Join(terms, " or ")
}

func placesRadiusMeters(maxMiles *float64) int {
	if maxMiles == nil || *maxMiles <= 0 {
		return maxPlacesRadiusMeters
	}
	return int(math.Min(math.Ceil(*maxMiles*metersPerMile), maxPlacesRadiusMeters))
}

type placesTextSearchResponse struct {
	Status        string        `json:"status"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Results       []placeResult `json:"results"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

type placeResult struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Types            []string `json:"types"`
	Geometry         struct {
		Location struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal *int     `json:"user_ratings_total"`
	PriceLevel       *int     `json:"price_level"`
	Website          string   `json:"website,omitempty"`
	Phone            string   `json:"formatted_phone_number,omitempty"`
}

func (p placeResult) raw() entities.RawSourceRecord {
	rec := entities.RawSourceRecord{
		SourceID:    p.PlaceID,
		Name:        p.Name,
		TypeText:    strings.Join(p.Types, " "),
		Latitude:    p.Geometry.Location.Lat,
		Longitude:   p.Geometry.Location.Lng,
		Address:     p.FormattedAddress,
		Phone:       p.Phone,
		Website:     p.Website,
		Rating:      p.Rating,
		ReviewCount: p.UserRatingsTotal,
	}
	// price_level 0 means free, which has no tier.
	if p.PriceLevel != nil && *p.PriceLevel > 0 {
		rec.PriceTier = strconv.Itoa(*p.PriceLevel)
	}
	return rec
}
