package sources

import (
	"context"
	"time"

	"github.com/kceleski/agent-healthproassist-sub000/internal/adapters/search"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

// GeoSearcher runs a geo-filtered index search. Implemented by *search.TypesenseAdapter.
type GeoSearcher interface {
	GeoSearch(ctx context.Context, params search.GeoSearchParams) (*search.GeoSearchResult, error)
}

// TypesenseSourceConfig configures a TypesenseSource
type TypesenseSourceConfig struct {
	Name       string
	Timeout    time.Duration
	MaxRecords int
}

// TypesenseSource serves the bulk dataset from the facility search index.
type TypesenseSource struct {
	index      GeoSearcher
	name       string
	timeout    time.Duration
	maxRecords int
}

// NewTypesenseSource creates a source over index
func NewTypesenseSource(index GeoSearcher, cfg TypesenseSourceConfig) *TypesenseSource {
	s := &TypesenseSource{
		index:      index,
		name:       cfg.Name,
		timeout:    orDefault(cfg.Timeout, DefaultNetworkTimeout),
		maxRecords: cfg.MaxRecords,
	}
	if s.name == "" {
		s.name = "typesense"
	}
	if s.maxRecords <= 0 || s.maxRecords > search.MaxPerPage {
		s.maxRecords = search.MaxPerPage
	}
	return s
}

// Name implements providers.FacilitySource.
func (s *TypesenseSource) Name() string { return s.name }

// Provenance implements providers.FacilitySource.
func (s *TypesenseSource) Provenance() entities.Provenance { return entities.ProvenanceBulkDataset }

// Timeout implements providers.FacilitySource.
func (s *TypesenseSource) Timeout() time.Duration { return s.timeout }

// Fetch pushes the distance, type and rating predicates down to the index. The
// filter engine re-applies them, so the pushdown only narrows.
func (s *TypesenseSource) Fetch(ctx context.Context, query entities.SearchQuery, center entities.GeoPoint) (*providers.FetchResult, error) {
	result, err := s.index.GeoSearch(ctx, search.GeoSearchParams{
		Center:        center,
		RadiusMiles:   query.Filters.MaxDistanceMiles,
		FacilityTypes: query.Filters.FacilityTypes,
		MinRating:     query.Filters.MinRating,
		Limit:         s.maxRecords,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextError(s.name, ctx.Err())
		}
		return nil, apperrors.NewAdapterError(apperrors.AdapterUnavailable, s.name, err)
	}
	return &providers.FetchResult{
		Records:     result.Records,
		Truncated:   result.Truncated,
		SkippedRows: result.Skipped,
	}, nil
}
