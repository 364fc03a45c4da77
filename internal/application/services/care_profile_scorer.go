package services

import (
	"context"
	"math"
	"strings"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

// facetWeights weights each care-profile facet in a match score.
type facetWeights struct {
	careLevels   float64
	medicalNeeds float64
	insurance    float64
	amenities    float64
	rating       float64
	availability float64
}

var defaultFacetWeights = facetWeights{
	careLevels:   0.30,
	medicalNeeds: 0.25,
	insurance:    0.20,
	amenities:    0.10,
	rating:       0.10,
	availability: 0.05,
}

// roleFacetWeights shifts emphasis by caller role. Unknown roles use the defaults.
var roleFacetWeights = map[string]facetWeights{
	"family": {
		careLevels:   0.25,
		medicalNeeds: 0.15,
		insurance:    0.15,
		amenities:    0.20,
		rating:       0.15,
		availability: 0.10,
	},
	"agent": {
		careLevels:   0.30,
		medicalNeeds: 0.30,
		insurance:    0.25,
		amenities:    0.05,
		rating:       0.05,
		availability: 0.05,
	},
}

// CareProfileScorer scores how well each facility fits the care profile expressed by the
// query's facet selections. Scores are 0-100 and depend only on the inputs.
type CareProfileScorer struct{}

// NewCareProfileScorer creates a new care profile scorer
func NewCareProfileScorer() *CareProfileScorer {
	return &CareProfileScorer{}
}

// Score implements providers.MatchScorer.
func (s *CareProfileScorer) Score(ctx context.Context, query entities.SearchQuery, records []*entities.FacilityRecord) (entities.ScoreInputs, error) {
	w, ok := roleFacetWeights[strings.ToLower(strings.TrimSpace(query.Role))]
	if !ok {
		w = defaultFacetWeights
	}

	careLevels := stringLookup(query.Filters.CareLevels)
	medical := stringLookup(query.Filters.MedicalNeeds)
	insurance := stringLookup(query.Filters.Insurance)
	amenities := stringLookup(query.Filters.Amenities)

	scores := make(entities.ScoreInputs, len(records))
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var total, weight float64
		add := func(wt, fraction float64) {
			total += wt * fraction
			weight += wt
		}
		if careLevels != nil {
			add(w.careLevels, overlap(r.CareLevels, careLevels))
		}
		if medical != nil {
			add(w.medicalNeeds, overlap(r.MedicalNeedsSupported, medical))
		}
		if insurance != nil {
			add(w.insurance, overlap(r.InsuranceAccepted, insurance))
		}
		if amenities != nil {
			add(w.amenities, overlap(r.Amenities, amenities))
		}
		if r.Rating != nil {
			add(w.rating, *r.Rating/5)
		} else {
			add(w.rating, 0)
		}
		if r.AvailableNow != nil && *r.AvailableNow {
			add(w.availability, 1)
		} else {
			add(w.availability, 0)
		}

		score := 0.0
		if weight > 0 {
			score = math.Round(total/weight*1000) / 10
		}
		scores[r.ID] = score
	}
	return scores, nil
}

// overlap is the fraction of wanted values the record offers.
func overlap(values []string, wanted map[string]struct{}) float64 {
	if len(wanted) == 0 {
		return 0
	}
	hits := 0
	for _, v := range entities.NormalizeSet(values) {
		if _, ok := wanted[v]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(wanted))
}
