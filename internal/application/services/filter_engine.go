package services

import (
	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/geo"
)

// FilterOutcome is the result of one FilterEngine pass.
type FilterOutcome struct {
	Records                    []*entities.FacilityRecord
	ExcludedMissingCoordinates int
	FilteredOut                int
}

// FilterEngine applies a FilterSet to normalized records.
type FilterEngine struct{}

// NewFilterEngine creates a new filter engine
func NewFilterEngine() *FilterEngine {
	return &FilterEngine{}
}

// compiledFilters holds the facet sets as lookup maps so one pass costs O(values) per record.
type compiledFilters struct {
	filters    entities.FilterSet
	types      map[entities.FacilityType]struct{}
	careLevels map[string]struct{}
	insurance  map[string]struct{}
	medical    map[string]struct{}
	amenities  map[string]struct{}
	priceTiers map[entities.PriceTier]struct{}
}

func compileFilters(f entities.FilterSet) compiledFilters {
	c := compiledFilters{
		filters:    f,
		careLevels: stringLookup(f.CareLevels),
		insurance:  stringLookup(f.Insurance),
		medical:    stringLookup(f.MedicalNeeds),
		amenities:  stringLookup(f.Amenities),
	}
	if len(f.FacilityTypes) > 0 {
		c.types = make(map[entities.FacilityType]struct{}, len(f.FacilityTypes))
		for _, t := range f.FacilityTypes {
			c.types[t] = struct{}{}
		}
	}
	if len(f.PriceTiers) > 0 {
		c.priceTiers = make(map[entities.PriceTier]struct{}, len(f.PriceTiers))
		for _, p := range f.PriceTiers {
			c.priceTiers[p] = struct{}{}
		}
	}
	return c
}

func stringLookup(values []string) map[string]struct{} {
	set := entities.NormalizeSet(values)
	if len(set) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(set))
	for _, v := range set {
		m[v] = struct{}{}
	}
	return m
}

func (c compiledFilters) matches(r *entities.FacilityRecord, center entities.GeoPoint) bool {
	if c.types != nil {
		if _, ok := c.types[r.Type]; !ok {
			return false
		}
	}
	if c.careLevels != nil && !entities.Intersects(r.CareLevels, c.careLevels) {
		return false
	}
	if c.insurance != nil && !entities.Intersects(r.InsuranceAccepted, c.insurance) {
		return false
	}
	if c.medical != nil && !entities.Intersects(r.MedicalNeedsSupported, c.medical) {
		return false
	}
	if c.amenities != nil && !entities.Intersects(r.Amenities, c.amenities) {
		return false
	}
	if c.priceTiers != nil {
		if _, ok := c.priceTiers[r.PriceTier]; !ok {
			return false
		}
	}
	if c.filters.MinRating > 0 && (r.Rating == nil || *r.Rating < c.filters.MinRating) {
		return false
	}
	if c.filters.AvailabilityOnly && (r.AvailableNow == nil || !*r.AvailableNow) {
		return false
	}
	if c.filters.MaxDistanceMiles != nil && !geo.WithinRadius(center, r.Location, *c.filters.MaxDistanceMiles) {
		return false
	}
	return true
}

// Apply keeps the records that pass every active facet, preserving input order.
// Records without usable coordinates are excluded and counted separately.
func (e *FilterEngine) Apply(records []*entities.FacilityRecord, filters entities.FilterSet, center entities.GeoPoint) FilterOutcome {
	active := filters.Active()
	var c compiledFilters
	if active {
		c = compileFilters(filters)
	}
	out := FilterOutcome{Records: make([]*entities.FacilityRecord, 0, len(records))}
	for _, r := range records {
		if r == nil {
			continue
		}
		if !hasCoordinates(r) {
			log.Warn().Str("facility_id", r.ID).Msg("Excluding facility without coordinates")
			out.ExcludedMissingCoordinates++
			continue
		}
		if active && !c.matches(r, center) {
			out.FilteredOut++
			continue
		}
		out.Records = append(out.Records, r)
	}
	return out
}

// Matches reports whether a single record passes filters.
func (e *FilterEngine) Matches(record *entities.FacilityRecord, filters entities.FilterSet, center entities.GeoPoint) bool {
	if record == nil || !hasCoordinates(record) {
		return false
	}
	return compileFilters(filters).matches(record, center)
}

func hasCoordinates(r *entities.FacilityRecord) bool {
	return r.Location.Valid() && !r.Location.IsZero()
}
