package utils

import (
	"testing"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/stretchr/testify/assert"
)

func TestClassifyFacilityType_Declared(t *testing.T) {
	cases := map[string]entities.FacilityType{
		"Memory Care":              entities.FacilityTypeMemoryCare,
		"ALZHEIMER'S unit":         entities.FacilityTypeMemoryCare,
		"Skilled Nursing Facility": entities.FacilityTypeSkilledNursing,
		"nursing_home":             entities.FacilityTypeSkilledNursing,
		"Assisted Living":          entities.FacilityTypeAssistedLiving,
		"independent-living":       entities.FacilityTypeIndependentLiving,
		"Adult Day Care":           entities.FacilityTypeAdultDayCare,
		"Home Health Agency":       entities.FacilityTypeHomeCare,
		"Hospice":                  entities.FacilityTypeHospice,
		"CCRC":                     entities.FacilityTypeContinuingCare,
		"Board and Care Home":      entities.FacilityTypeResidentialCare,
	}
	for declared, want := range cases {
		got, inferred := ClassifyFacilityType(declared, "")
		assert.Equal(t, want, got, declared)
		assert.False(t, inferred, declared)
	}
}

func TestClassifyFacilityType_FallsBackToName(t *testing.T) {
	got, inferred := ClassifyFacilityType("point_of_interest", "Desert Dementia Care Cottage")
	assert.Equal(t, entities.FacilityTypeMemoryCare, got)
	assert.True(t, inferred)
}

func TestClassifyFacilityType_Default(t *testing.T) {
	got, inferred := ClassifyFacilityType("", "Sunny Acres")
	assert.Equal(t, DefaultFacilityType, got)
	assert.True(t, inferred)

	got, inferred = ClassifyFacilityType("establishment", "")
	assert.Equal(t, entities.FacilityTypeAssistedLiving, got)
	assert.True(t, inferred)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "sunrise of phoenix inc", NormalizeKey("  Sunrise  of Phoenix, Inc. "))
	assert.Equal(t, "123 n main st", NormalizeKey("123 N. Main St."))
	assert.Equal(t, NormalizeKey("Camelback-Road"), NormalizeKey("camelback road"))
	assert.Equal(t, "", NormalizeKey(" ,. "))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Medicare", "Medicaid", "VA"}, SplitList("Medicare; Medicaid|VA ;"))
	assert.Nil(t, SplitList("  "))
}
