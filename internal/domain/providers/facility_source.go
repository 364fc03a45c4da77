package providers

import (
	"context"
	"time"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

// FetchResult is what one source returned for a search.
type FetchResult struct {
	Records []entities.RawSourceRecord
	// Truncated is set when the source capped its results.
	Truncated bool
	// SkippedRows counts malformed rows the source dropped.
	SkippedRows int
}

// FacilitySource produces raw facility records for a search.
type FacilitySource interface {
	// Name identifies the source in logs and diagnostics.
	Name() string

	// Provenance tags every record the source produces.
	Provenance() entities.Provenance

	// Timeout bounds a single Fetch call.
	Timeout() time.Duration

	// Fetch returns raw records near center. Failures are *errors.AdapterError
	// with kind Timeout, Malformed or Unavailable.
	Fetch(ctx context.Context, query entities.SearchQuery, center entities.GeoPoint) (*FetchResult, error)
}
