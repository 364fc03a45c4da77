package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

var phoenix = entities.GeoPoint{Latitude: 33.4484, Longitude: -112.0740}

func filterFixtures() []*entities.FacilityRecord {
	return []*entities.FacilityRecord{
		{
			ID: "a", Name: "Camelback Memory Care", Type: entities.FacilityTypeMemoryCare,
			Location:   entities.GeoPoint{Latitude: 33.5092, Longitude: -112.0290},
			Rating:     f64(4.6),
			PriceTier:  entities.PriceTierUpscale,
			CareLevels: []string{"memory care"}, InsuranceAccepted: []string{"medicare", "private pay"},
			MedicalNeedsSupported: []string{"dementia"}, Amenities: []string{"garden"},
			AvailableNow: boolPtr(true),
		},
		{
			ID: "b", Name: "Tempe Assisted", Type: entities.FacilityTypeAssistedLiving,
			Location:  entities.GeoPoint{Latitude: 33.4255, Longitude: -111.9400},
			PriceTier: entities.PriceTierModerate,
			CareLevels: []string{"assisted living"}, InsuranceAccepted: []string{"medicaid"},
			AvailableNow: boolPtr(false),
		},
		{
			ID: "c", Name: "Tucson Skilled", Type: entities.FacilityTypeSkilledNursing,
			Location: entities.GeoPoint{Latitude: 32.2226, Longitude: -110.9747},
			Rating:   f64(3.9),
		},
	}
}

func ids(records []*entities.FacilityRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilterEngine_InactiveFiltersPassAll(t *testing.T) {
	e := NewFilterEngine()
	out := e.Apply(filterFixtures(), entities.FilterSet{}, phoenix)
	assert.Equal(t, []string{"a", "b", "c"}, ids(out.Records))
	assert.Zero(t, out.FilteredOut)
}

func TestFilterEngine_InactiveFiltersStillExcludeMissingCoordinates(t *testing.T) {
	records := append(filterFixtures(), &entities.FacilityRecord{ID: "d", Name: "Null Island Care"})
	out := NewFilterEngine().Apply(records, entities.FilterSet{}, phoenix)
	assert.Equal(t, []string{"a", "b", "c"}, ids(out.Records))
	assert.Equal(t, 1, out.ExcludedMissingCoordinates)
	assert.Zero(t, out.FilteredOut)
}

func TestFilterEngine_Facets(t *testing.T) {
	e := NewFilterEngine()
	tests := []struct {
		name    string
		filters entities.FilterSet
		want    []string
	}{
		{"type or-match", entities.FilterSet{FacilityTypes: []entities.FacilityType{entities.FacilityTypeMemoryCare, entities.FacilityTypeSkilledNursing}}, []string{"a", "c"}},
		{"care level normalized", entities.FilterSet{CareLevels: []string{"Assisted  Living"}}, []string{"b"}},
		{"insurance", entities.FilterSet{Insurance: []string{"medicare", "medicaid"}}, []string{"a", "b"}},
		{"medical needs", entities.FilterSet{MedicalNeeds: []string{"dementia"}}, []string{"a"}},
		{"amenities", entities.FilterSet{Amenities: []string{"pool"}}, []string{}},
		{"price tier", entities.FilterSet{PriceTiers: []entities.PriceTier{entities.PriceTierModerate}}, []string{"b"}},
		{"unknown rating fails floor", entities.FilterSet{MinRating: 4}, []string{"a"}},
		{"availability", entities.FilterSet{AvailabilityOnly: true}, []string{"a"}},
		{"distance", entities.FilterSet{MaxDistanceMiles: f64(20)}, []string{"a", "b"}},
		{"conjunction", entities.FilterSet{MaxDistanceMiles: f64(20), Insurance: []string{"medicaid"}}, []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := e.Apply(filterFixtures(), tt.filters, phoenix)
			assert.Equal(t, tt.want, ids(out.Records))
			assert.Equal(t, 3-len(tt.want), out.FilteredOut)
		})
	}
}

func TestFilterEngine_Soundness(t *testing.T) {
	e := NewFilterEngine()
	filters := entities.FilterSet{
		CareLevels:       []string{"memory care"},
		MinRating:        4,
		MaxDistanceMiles: f64(20),
	}
	records := filterFixtures()
	out := e.Apply(records, filters, phoenix)
	for _, r := range out.Records {
		assert.True(t, e.Matches(r, filters, phoenix))
	}

	// b fails only the rating floor; relaxing that facet alone re-admits it.
	b := records[1]
	b.CareLevels = []string{"memory care"}
	assert.NotContains(t, ids(out.Records), "b")
	assert.False(t, e.Matches(b, filters, phoenix))

	relaxed := filters
	relaxed.MinRating = 0
	assert.True(t, e.Matches(b, relaxed, phoenix))
}

func TestFilterEngine_ExcludesMissingCoordinates(t *testing.T) {
	e := NewFilterEngine()
	records := append(filterFixtures(), &entities.FacilityRecord{ID: "d", Name: "Nowhere"})

	out := e.Apply(records, entities.FilterSet{}, phoenix)
	require.Len(t, out.Records, 3)
	assert.Equal(t, 1, out.ExcludedMissingCoordinates)
	assert.False(t, e.Matches(records[3], entities.FilterSet{}, phoenix))
}
