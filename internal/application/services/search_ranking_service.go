package services

import (
	"math"
	"sort"
	"strings"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/geo"
)

// SearchRankingService orders filtered facilities for presentation.
type SearchRankingService struct{}

// NewSearchRankingService creates a new ranking service
func NewSearchRankingService() *SearchRankingService {
	return &SearchRankingService{}
}

type rankedEntry struct {
	result  entities.RankedFacility
	scored  bool
	score   float64
	nameKey string
}

// Rank sorts records by distance from center, then rating (unknown last), then name.
// When scoring is non-nil, records are ordered by score descending first and records
// without a score follow the scored ones. The sort is stable.
func (s *SearchRankingService) Rank(records []*entities.FacilityRecord, center entities.GeoPoint, scoring entities.ScoreInputs) []entities.RankedFacility {
	if len(records) == 0 {
		return []entities.RankedFacility{}
	}

	entries := make([]rankedEntry, len(records))
	for i, r := range records {
		e := rankedEntry{
			result: entities.RankedFacility{
				Facility:      r,
				DistanceMiles: geo.DistanceMiles(center, r.Location),
			},
			nameKey: strings.ToLower(r.Name),
		}
		if scoring != nil {
			if v, ok := scoring[r.ID]; ok {
				v = clampScore(v)
				e.scored = true
				e.score = v
				e.result.MatchScore = &v
			}
		}
		entries[i] = e
	}

	useScores := scoring != nil
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if useScores {
			if a.scored != b.scored {
				return a.scored
			}
			if a.scored && a.score != b.score {
				return a.score > b.score
			}
		}
		return defaultLess(a, b)
	})

	out := make([]entities.RankedFacility, len(entries))
	for i, e := range entries {
		out[i] = e.result
	}
	return out
}

func defaultLess(a, b rankedEntry) bool {
	if a.result.DistanceMiles != b.result.DistanceMiles {
		return a.result.DistanceMiles < b.result.DistanceMiles
	}
	ra, rb := a.result.Facility.Rating, b.result.Facility.Rating
	switch {
	case ra != nil && rb == nil:
		return true
	case ra == nil && rb != nil:
		return false
	case ra != nil && rb != nil && *ra != *rb:
		return *ra > *rb
	}
	return a.nameKey < b.nameKey
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
