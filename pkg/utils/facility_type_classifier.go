package utils

import (
	"strings"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

// typeKeyword maps a lowercase substring to a facility type. Order matters: the first match wins,
// so more specific phrases sit above the generic ones they contain.
type typeKeyword struct {
	keyword string
	ftype   entities.FacilityType
}

var facilityTypeKeywords = []typeKeyword{
	{"memory", entities.FacilityTypeMemoryCare},
	{"alzheimer", entities.FacilityTypeMemoryCare},
	{"dementia", entities.FacilityTypeMemoryCare},
	{"hospice", entities.FacilityTypeHospice},
	{"palliative", entities.FacilityTypeHospice},
	{"continuing care", entities.FacilityTypeContinuingCare},
	{"ccrc", entities.FacilityTypeContinuingCare},
	{"life plan", entities.FacilityTypeContinuingCare},
	{"adult day", entities.FacilityTypeAdultDayCare},
	{"day care", entities.FacilityTypeAdultDayCare},
	{"home care", entities.FacilityTypeHomeCare},
	{"home health", entities.FacilityTypeHomeCare},
	{"in-home", entities.FacilityTypeHomeCare},
	{"in home", entities.FacilityTypeHomeCare},
	{"skilled nursing", entities.FacilityTypeSkilledNursing},
	{"nursing home", entities.FacilityTypeSkilledNursing},
	{"nursing", entities.FacilityTypeSkilledNursing},
	{"snf", entities.FacilityTypeSkilledNursing},
	{"rehab", entities.FacilityTypeSkilledNursing},
	{"independent", entities.FacilityTypeIndependentLiving},
	{"retirement", entities.FacilityTypeIndependentLiving},
	{"board and care", entities.FacilityTypeResidentialCare},
	{"board & care", entities.FacilityTypeResidentialCare},
	{"residential care", entities.FacilityTypeResidentialCare},
	{"group home", entities.FacilityTypeResidentialCare},
	{"care home", entities.FacilityTypeResidentialCare},
	{"assisted", entities.FacilityTypeAssistedLiving},
}

// DefaultFacilityType is used when nothing matches.
const DefaultFacilityType = entities.FacilityTypeAssistedLiving

// MatchFacilityType classifies free text by keyword. ok is false when no keyword matched.
func MatchFacilityType(text string) (entities.FacilityType, bool) {
	lowered := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(text, "_", " ")), " "))
	if lowered == "" {
		return "", false
	}
	if t, ok := entities.ParseFacilityType(lowered); ok {
		return t, true
	}
	for _, kw := range facilityTypeKeywords {
		if strings.Contains(lowered, kw.keyword) {
			return kw.ftype, true
		}
	}
	return "", false
}

// ClassifyFacilityType maps a declared type string into the closed enumeration. When the declared
// text does not classify, the facility name is tried; anything other than a declared match reports
// inferred=true so callers can discount confidence.
func ClassifyFacilityType(declared, name string) (ftype entities.FacilityType, inferred bool) {
	if t, ok := MatchFacilityType(declared); ok {
		return t, false
	}
	if t, ok := MatchFacilityType(name); ok {
		return t, true
	}
	return DefaultFacilityType, true
}
