package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriceTier(t *testing.T) {
	for in, want := range map[string]PriceTier{
		"$":        PriceTierBudget,
		" $$ ":     PriceTierModerate,
		"3":        PriceTierUpscale,
		"Luxury":   PriceTierLuxury,
		"moderate": PriceTierModerate,
	} {
		got, ok := ParsePriceTier(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := ParsePriceTier("call for pricing")
	assert.False(t, ok)
	assert.Equal(t, PriceTierUnknown, got)
}

func TestPriceTier_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A PriceTier `json:"a"`
		B PriceTier `json:"b"`
	}{A: PriceTierUpscale})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"$$$","b":null}`, string(data))

	var v struct {
		A PriceTier `json:"a"`
		B PriceTier `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"$$","b":4}`), &v))
	assert.Equal(t, PriceTierModerate, v.A)
	assert.Equal(t, PriceTierLuxury, v.B)
}

func TestKnownFieldCount(t *testing.T) {
	addr := "1 Main St"
	rating := 4.5
	rec := &FacilityRecord{Name: "Sunrise", Address: &addr, Rating: &rating, Amenities: []string{"garden"}}
	assert.Equal(t, 3, rec.KnownFieldCount())
	assert.Equal(t, 0, (&FacilityRecord{Name: "Bare"}).KnownFieldCount())
}

func TestClone_DoesNotAlias(t *testing.T) {
	addr := "1 Main St"
	rec := &FacilityRecord{Address: &addr, Amenities: []string{"garden"}}
	c := rec.Clone()
	*c.Address = "2 Elm St"
	c.Amenities[0] = "pool"
	assert.Equal(t, "1 Main St", *rec.Address)
	assert.Equal(t, []string{"garden"}, rec.Amenities)
}

func TestNormalizeSet(t *testing.T) {
	assert.Equal(t, []string{"medicaid", "medicare"}, NormalizeSet([]string{" Medicare", "MEDICAID", "medicare ", ""}))
	assert.Nil(t, NormalizeSet([]string{" ", ""}))
	assert.Equal(t, []string{"a", "b", "c"}, UnionSets([]string{"a", "c"}, []string{"b", "c"}))
}

func TestSourcePreference_Restrict(t *testing.T) {
	bulkOnly := SourcePreference{ProvenanceBulkDataset}

	assert.Equal(t, bulkOnly, SourcePreference(nil).Restrict(bulkOnly))
	assert.Equal(t, SourcePreference{}, SourcePreference{ProvenanceLiveQuery}.Restrict(bulkOnly))
	assert.Equal(t, SourcePreference{ProvenanceLiveQuery}, SourcePreference{ProvenanceLiveQuery}.Restrict(nil))
	assert.True(t, SourcePreference(nil).Allows(ProvenanceLiveQuery))
}

func TestFilterSet_Active(t *testing.T) {
	assert.False(t, FilterSet{}.Active())
	assert.False(t, FilterSet{CareLevels: []string{}}.Active())

	radius := 0.0
	assert.True(t, FilterSet{MaxDistanceMiles: &radius}.Active())
	assert.True(t, FilterSet{MinRating: 3}.Active())
	assert.True(t, FilterSet{AvailabilityOnly: true}.Active())
	assert.True(t, FilterSet{PriceTiers: []PriceTier{PriceTierBudget}}.Active())
	assert.True(t, FilterSet{Insurance: []string{"medicare"}}.Active())
}
