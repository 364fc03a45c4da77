package typesense

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/typesense/typesense-go/v2/typesense"
)

func TestFacilitySchema_GeoAndFacets(t *testing.T) {
	schema := FacilitySchema("care_facilities")

	types := map[string]string{}
	for _, f := range schema.Fields {
		types[f.Name] = f.Type
	}
	assert.Equal(t, "geopoint", types["location"])
	assert.Equal(t, "string[]", types["care_levels"])
	assert.Equal(t, "int32", types["price_tier"])
	assert.Equal(t, "indexed_at", *schema.DefaultSortingField)
}

func TestNewFromTypesense_DefaultCollection(t *testing.T) {
	c := NewFromTypesense(typesense.NewClient(typesense.WithServer("http://localhost:8108")), "")
	assert.Equal(t, DefaultCollection, c.Collection())
}
