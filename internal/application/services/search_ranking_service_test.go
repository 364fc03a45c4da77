package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

func rankFixtures() []*entities.FacilityRecord {
	return []*entities.FacilityRecord{
		{ID: "far", Name: "Far", Location: entities.GeoPoint{Latitude: 33.60, Longitude: -112.07}, Rating: f64(5)},
		{ID: "tie-unrated", Name: "Alpha", Location: entities.GeoPoint{Latitude: 33.50, Longitude: -112.07}},
		{ID: "tie-rated", Name: "Zulu", Location: entities.GeoPoint{Latitude: 33.50, Longitude: -112.07}, Rating: f64(3)},
		{ID: "tie-name-b", Name: "bravo", Location: entities.GeoPoint{Latitude: 33.50, Longitude: -112.07}, Rating: f64(3)},
		{ID: "near", Name: "Near", Location: entities.GeoPoint{Latitude: 33.45, Longitude: -112.07}},
	}
}

func rankedIDs(results []entities.RankedFacility) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Facility.ID
	}
	return out
}

func TestRank_DefaultComparator(t *testing.T) {
	svc := NewSearchRankingService()
	results := svc.Rank(rankFixtures(), phoenix, nil)

	assert.Equal(t, []string{"near", "tie-name-b", "tie-rated", "tie-unrated", "far"}, rankedIDs(results))
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].DistanceMiles, results[i].DistanceMiles)
	}
	for _, r := range results {
		assert.Nil(t, r.MatchScore)
	}
}

func TestRank_Deterministic(t *testing.T) {
	svc := NewSearchRankingService()
	first := rankedIDs(svc.Rank(rankFixtures(), phoenix, nil))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, rankedIDs(svc.Rank(rankFixtures(), phoenix, nil)))
	}
}

func TestRank_ScoringMode(t *testing.T) {
	svc := NewSearchRankingService()
	scores := entities.ScoreInputs{
		"far":         90,
		"tie-unrated": 40,
		"tie-rated":   40,
		"near":        150,
	}

	results := svc.Rank(rankFixtures(), phoenix, scores)
	assert.Equal(t, []string{"near", "far", "tie-rated", "tie-unrated", "tie-name-b"}, rankedIDs(results))

	require.NotNil(t, results[0].MatchScore)
	assert.Equal(t, 100.0, *results[0].MatchScore, "scores are clamped to 0-100")
	assert.Nil(t, results[4].MatchScore)
}

func TestRank_StableForEqualKeys(t *testing.T) {
	svc := NewSearchRankingService()
	loc := entities.GeoPoint{Latitude: 33.5, Longitude: -112}
	records := []*entities.FacilityRecord{
		{ID: "1", Name: "Same", Location: loc},
		{ID: "2", Name: "Same", Location: loc},
		{ID: "3", Name: "Same", Location: loc},
	}
	assert.Equal(t, []string{"1", "2", "3"}, rankedIDs(svc.Rank(records, phoenix, nil)))
}

func TestRank_EmptyResults(t *testing.T) {
	svc := NewSearchRankingService()
	results := svc.Rank([]*entities.FacilityRecord{}, phoenix, nil)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}
