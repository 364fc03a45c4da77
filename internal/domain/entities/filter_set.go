package entities

// FilterSet is the closed set of search facets.
// Empty sets are inactive. Facets combine with AND; values inside one facet combine with OR.
type FilterSet struct {
	FacilityTypes    []FacilityType `json:"facility_types,omitempty"`
	CareLevels       []string       `json:"care_levels,omitempty"`
	Insurance        []string       `json:"insurance,omitempty"`
	MedicalNeeds     []string       `json:"medical_needs,omitempty"`
	Amenities        []string       `json:"amenities,omitempty"`
	PriceTiers       []PriceTier    `json:"price_tiers,omitempty"`
	MaxDistanceMiles *float64       `json:"max_distance_miles,omitempty"`
	MinRating        float64        `json:"min_rating,omitempty"`
	AvailabilityOnly bool           `json:"availability_only,omitempty"`
}

// Active reports whether any facet constrains results.
func (f FilterSet) Active() bool {
	return len(f.FacilityTypes) > 0 ||
		len(f.CareLevels) > 0 ||
		len(f.Insurance) > 0 ||
		len(f.MedicalNeeds) > 0 ||
		len(f.Amenities) > 0 ||
		len(f.PriceTiers) > 0 ||
		f.MaxDistanceMiles != nil ||
		f.MinRating > 0 ||
		f.AvailabilityOnly
}
