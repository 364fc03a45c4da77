package services

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/geo"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/utils"
)

// DefaultDuplicateRadiusMiles is how close two unaddressed records must be to count as one facility.
const DefaultDuplicateRadiusMiles = 0.05

// FacilityNormalizer turns raw source rows into FacilityRecords and merges duplicates.
type FacilityNormalizer struct {
	duplicateRadiusMiles float64
}

// NormalizerOption configures a FacilityNormalizer
type NormalizerOption func(*FacilityNormalizer)

// WithDuplicateRadius overrides the coordinate match radius used when an address is missing.
func WithDuplicateRadius(miles float64) NormalizerOption {
	return func(n *FacilityNormalizer) {
		if miles >= 0 {
			n.duplicateRadiusMiles = miles
		}
	}
}

// NewFacilityNormalizer creates a new normalizer
func NewFacilityNormalizer(opts ...NormalizerOption) *FacilityNormalizer {
	n := &FacilityNormalizer{duplicateRadiusMiles: DefaultDuplicateRadiusMiles}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts one raw record. A missing name or coordinate pair drops the record.
func (n *FacilityNormalizer) Normalize(raw entities.RawSourceRecord, provenance entities.Provenance) (*entities.FacilityRecord, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return nil, &apperrors.NormalizationError{Kind: apperrors.MissingRequiredField, Field: "name", SourceID: raw.SourceID}
	}
	if raw.Latitude == nil || raw.Longitude == nil {
		return nil, &apperrors.NormalizationError{Kind: apperrors.MissingRequiredField, Field: "location", SourceID: raw.SourceID}
	}
	location, err := entities.NewGeoPoint(*raw.Latitude, *raw.Longitude)
	if err != nil || location.IsZero() {
		return nil, &apperrors.NormalizationError{Kind: apperrors.MissingRequiredField, Field: "location", SourceID: raw.SourceID}
	}

	ftype, inferred := utils.ClassifyFacilityType(raw.TypeText, name)

	record := &entities.FacilityRecord{
		Name:                  name,
		Type:                  ftype,
		TypeInferred:          inferred,
		Location:              location,
		Address:               optionalString(raw.Address),
		City:                  optionalString(raw.City),
		State:                 optionalString(raw.State),
		ZipCode:               optionalString(raw.ZipCode),
		Phone:                 optionalString(raw.Phone),
		Website:               optionalString(raw.Website),
		Description:           optionalString(raw.Description),
		ImageURL:              optionalString(raw.ImageURL),
		CareLevels:            entities.NormalizeSet(raw.CareLevels),
		InsuranceAccepted:     entities.NormalizeSet(raw.Insurance),
		MedicalNeedsSupported: entities.NormalizeSet(raw.MedicalNeeds),
		Amenities:             entities.NormalizeSet(raw.Amenities),
		SourceProvenance:      provenance,
	}

	if raw.Rating != nil {
		if r := *raw.Rating; r >= 0 && r <= 5 {
			record.Rating = &r
		} else {
			log.Debug().Str("source_id", raw.SourceID).Float64("rating", r).Msg("Discarding out-of-range rating")
		}
	}
	if raw.ReviewCount != nil && *raw.ReviewCount >= 0 {
		c := *raw.ReviewCount
		record.ReviewCount = &c
	}
	if raw.AvailableNow != nil {
		a := *raw.AvailableNow
		record.AvailableNow = &a
	}
	if tier, ok := entities.ParsePriceTier(raw.PriceTier); ok {
		record.PriceTier = tier
	}

	record.ID = facilityID(provenance, raw.SourceID, name, raw.Address)
	return record, nil
}

// NormalizeAll normalizes a batch and reports how many records were dropped.
func (n *FacilityNormalizer) NormalizeAll(raws []entities.RawSourceRecord, provenance entities.Provenance) ([]*entities.FacilityRecord, int) {
	records := make([]*entities.FacilityRecord, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		record, err := n.Normalize(raw, provenance)
		if err != nil {
			var nerr *apperrors.NormalizationError
			if errors.As(err, &nerr) {
				log.Debug().Str("source_id", nerr.SourceID).Str("field", nerr.Field).Msg("Dropping raw record")
			}
			dropped++
			continue
		}
		records = append(records, record)
	}
	return records, dropped
}

// Deduplicate merges records that describe the same facility and returns the survivors
// in first-seen order together with the number of merges.
// The output contains no further duplicates, so running it again merges nothing.
func (n *FacilityNormalizer) Deduplicate(records []*entities.FacilityRecord) ([]*entities.FacilityRecord, int) {
	out := make([]*entities.FacilityRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, r.Clone())
		}
	}

	merged := 0
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(out); i++ {
			for j := i + 1; j < len(out); j++ {
				if !n.SameFacility(out[i], out[j]) {
					continue
				}
				out[i] = mergeRecords(out[i], out[j])
				out = append(out[:j], out[j+1:]...)
				merged++
				changed = true
				j--
			}
		}
	}

	seen := make(map[string]int, len(out))
	for _, r := range out {
		seen[r.ID]++
		if seen[r.ID] > 1 {
			r.ID = r.ID + "#" + utils.HashKey(r.Location.String())[:8]
		}
	}
	return out, merged
}

// SameFacility reports whether a and b describe one physical facility.
func (n *FacilityNormalizer) SameFacility(a, b *entities.FacilityRecord) bool {
	if utils.NormalizeKey(a.Name) != utils.NormalizeKey(b.Name) {
		return false
	}
	addrA, addrB := addressKey(a), addressKey(b)
	if addrA != "" && addrB != "" {
		return addrA == addrB
	}
	return geo.WithinRadius(a.Location, b.Location, n.duplicateRadiusMiles)
}

// mergeRecords folds two duplicates into one. The live record is the base; between equal
// provenances the one with more known fields wins, and a tie keeps a.
func mergeRecords(a, b *entities.FacilityRecord) *entities.FacilityRecord {
	base, other := a, b
	switch {
	case a.SourceProvenance == b.SourceProvenance:
		if b.KnownFieldCount() > a.KnownFieldCount() {
			base, other = b, a
		}
	case b.SourceProvenance == entities.ProvenanceLiveQuery:
		base, other = b, a
	}

	m := base.Clone()
	fill(&m.Address, other.Address)
	fill(&m.City, other.City)
	fill(&m.State, other.State)
	fill(&m.ZipCode, other.ZipCode)
	fill(&m.Phone, other.Phone)
	fill(&m.Website, other.Website)
	fill(&m.Description, other.Description)
	fill(&m.ImageURL, other.ImageURL)
	if m.Rating == nil && other.Rating != nil {
		v := *other.Rating
		m.Rating = &v
	}
	if m.ReviewCount == nil && other.ReviewCount != nil {
		v := *other.ReviewCount
		m.ReviewCount = &v
	}
	if m.AvailableNow == nil && other.AvailableNow != nil {
		v := *other.AvailableNow
		m.AvailableNow = &v
	}
	if m.PriceTier == entities.PriceTierUnknown {
		m.PriceTier = other.PriceTier
	}
	if m.TypeInferred && !other.TypeInferred {
		m.Type = other.Type
		m.TypeInferred = false
	}
	m.CareLevels = entities.UnionSets(m.CareLevels, other.CareLevels)
	m.InsuranceAccepted = entities.UnionSets(m.InsuranceAccepted, other.InsuranceAccepted)
	m.MedicalNeedsSupported = entities.UnionSets(m.MedicalNeedsSupported, other.MedicalNeedsSupported)
	m.Amenities = entities.UnionSets(m.Amenities, other.Amenities)
	m.MergedFrom = append(m.MergedFrom, other.ID)
	m.MergedFrom = append(m.MergedFrom, other.MergedFrom...)
	return m
}

func fill(dst **string, src *string) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

func addressKey(r *entities.FacilityRecord) string {
	if r.Address == nil {
		return ""
	}
	return utils.NormalizeKey(*r.Address)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func facilityID(provenance entities.Provenance, sourceID, name, address string) string {
	if id := strings.TrimSpace(sourceID); id != "" {
		return string(provenance) + ":" + id
	}
	return string(provenance) + ":" + utils.HashKey(utils.NormalizeKey(name)+"|"+utils.NormalizeKey(address))[:16]
}
