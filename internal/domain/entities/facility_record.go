package entities

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FacilityType is the closed set of care facility categories.
type FacilityType string

const (
	FacilityTypeAssistedLiving    FacilityType = "assisted-living"
	FacilityTypeMemoryCare        FacilityType = "memory-care"
	FacilityTypeIndependentLiving FacilityType = "independent-living"
	FacilityTypeSkilledNursing    FacilityType = "skilled-nursing"
	FacilityTypeHomeCare          FacilityType = "home-care"
	FacilityTypeAdultDayCare      FacilityType = "adult-day-care"
	FacilityTypeHospice           FacilityType = "hospice"
	FacilityTypeContinuingCare    FacilityType = "continuing-care"
	FacilityTypeResidentialCare   FacilityType = "residential-care"
)

// FacilityTypes lists every FacilityType.
var FacilityTypes = []FacilityType{
	FacilityTypeAssistedLiving,
	FacilityTypeMemoryCare,
	FacilityTypeIndependentLiving,
	FacilityTypeSkilledNursing,
	FacilityTypeHomeCare,
	FacilityTypeAdultDayCare,
	FacilityTypeHospice,
	FacilityTypeContinuingCare,
	FacilityTypeResidentialCare,
}

// ParseFacilityType returns the FacilityType named by s.
func ParseFacilityType(s string) (FacilityType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range FacilityTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Provenance identifies the source that produced a record.
type Provenance string

const (
	ProvenanceBulkDataset Provenance = "bulk-dataset"
	ProvenanceLiveQuery   Provenance = "live-query"
)

// ParseProvenance accepts the canonical names plus the short "bulk" / "live" forms.
func ParseProvenance(s string) (Provenance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bulk", string(ProvenanceBulkDataset):
		return ProvenanceBulkDataset, nil
	case "live", string(ProvenanceLiveQuery):
		return ProvenanceLiveQuery, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// PriceTier is the ordinal $..$$$$ price band. PriceTierUnknown means the source did not say.
type PriceTier int

const (
	PriceTierUnknown PriceTier = iota
	PriceTierBudget
	PriceTierModerate
	PriceTierUpscale
	PriceTierLuxury
)

func (p PriceTier) String() string {
	if p < PriceTierBudget || p > PriceTierLuxury {
		return ""
	}
	return strings.Repeat("$", int(p))
}

// ParsePriceTier parses "$".."$$$$", "1".."4" and the tier words. ok is false for anything else.
func ParsePriceTier(s string) (PriceTier, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "$", "1", "budget", "low", "inexpensive":
		return PriceTierBudget, true
	case "$$", "2", "moderate", "mid", "medium":
		return PriceTierModerate, true
	case "$$$", "3", "upscale", "high", "expensive":
		return PriceTierUpscale, true
	case "$$$$", "4", "luxury", "premium", "very expensive":
		return PriceTierLuxury, true
	}
	return PriceTierUnknown, false
}

// MarshalJSON renders the tier as its dollar string, or null when unknown.
func (p PriceTier) MarshalJSON() ([]byte, error) {
	if p == PriceTierUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(p.String())
}

// FacilityRecord is the unified facility schema produced by the normalizer.
// Nil optional fields mean "unknown", which filters treat differently from zero values.
type FacilityRecord struct {
	ID                    string       `json:"id"`
	Name                  string       `json:"name"`
	Type                  FacilityType `json:"type"`
	TypeInferred          bool         `json:"type_inferred"`
	Location              GeoPoint     `json:"location"`
	Address               *string      `json:"address,omitempty"`
	City                  *string      `json:"city,omitempty"`
	State                 *string      `json:"state,omitempty"`
	ZipCode               *string      `json:"zip_code,omitempty"`
	Phone                 *string      `json:"phone,omitempty"`
	Website               *string      `json:"website,omitempty"`
	Description           *string      `json:"description,omitempty"`
	ImageURL              *string      `json:"image_url,omitempty"`
	Rating                *float64     `json:"rating,omitempty"`
	ReviewCount           *int         `json:"review_count,omitempty"`
	PriceTier             PriceTier    `json:"price_tier"`
	CareLevels            []string     `json:"care_levels,omitempty"`
	InsuranceAccepted     []string     `json:"insurance_accepted,omitempty"`
	MedicalNeedsSupported []string     `json:"medical_needs_supported,omitempty"`
	Amenities             []string     `json:"amenities,omitempty"`
	AvailableNow          *bool        `json:"available_now,omitempty"`
	SourceProvenance      Provenance   `json:"source_provenance"`
	MergedFrom            []string     `json:"merged_from,omitempty"`
}

// KnownFieldCount counts the optional fields that carry a value. Used to pick the richer duplicate.
func (f *FacilityRecord) KnownFieldCount() int {
	n := 0
	for _, s := range []*string{f.Address, f.City, f.State, f.ZipCode, f.Phone, f.Website, f.Description, f.ImageURL} {
		if s != nil {
			n++
		}
	}
	if f.Rating != nil {
		n++
	}
	if f.ReviewCount != nil {
		n++
	}
	if f.PriceTier != PriceTierUnknown {
		n++
	}
	if f.AvailableNow != nil {
		n++
	}
	for _, set := range [][]string{f.CareLevels, f.InsuranceAccepted, f.MedicalNeedsSupported, f.Amenities} {
		if len(set) > 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so merges never alias another record's slices.
func (f *FacilityRecord) Clone() *FacilityRecord {
	c := *f
	c.Address = cloneString(f.Address)
	c.City = cloneString(f.City)
	c.State = cloneString(f.State)
	c.ZipCode = cloneString(f.ZipCode)
	c.Phone = cloneString(f.Phone)
	c.Website = cloneString(f.Website)
	c.Description = cloneString(f.Description)
	c.ImageURL = cloneString(f.ImageURL)
	if f.Rating != nil {
		v := *f.Rating
		c.Rating = &v
	}
	if f.ReviewCount != nil {
		v := *f.ReviewCount
		c.ReviewCount = &v
	}
	if f.AvailableNow != nil {
		v := *f.AvailableNow
		c.AvailableNow = &v
	}
	c.CareLevels = cloneStrings(f.CareLevels)
	c.InsuranceAccepted = cloneStrings(f.InsuranceAccepted)
	c.MedicalNeedsSupported = cloneStrings(f.MedicalNeedsSupported)
	c.Amenities = cloneStrings(f.Amenities)
	c.MergedFrom = cloneStrings(f.MergedFrom)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// UnmarshalJSON accepts null, a dollar string or a tier number.
func (p *PriceTier) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = PriceTierUnknown
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid price tier %s", data)
		}
		s = fmt.Sprint(n)
	}
	tier, ok := ParsePriceTier(s)
	if !ok {
		return fmt.Errorf("invalid price tier %q", s)
	}
	*p = tier
	return nil
}
