package evaluation

import (
	"time"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

// Category groups golden queries by what they exercise.
type Category string

const (
	CategoryLocation Category = "location" // plain "near X" searches
	CategoryFiltered Category = "filtered" // facet-constrained searches
	CategoryRole     Category = "role"     // role source policy and match scoring
)

// ValidCategories returns all valid category values.
func ValidCategories() []Category {
	return []Category{CategoryLocation, CategoryFiltered, CategoryRole}
}

// IsValid checks if the category value is one of the defined constants.
func (c Category) IsValid() bool {
	switch c {
	case CategoryLocation, CategoryFiltered, CategoryRole:
		return true
	}
	return false
}

// GoldenQuery is a labeled search with the facilities a good ranking surfaces.
type GoldenQuery struct {
	ID                 string             `json:"id"`
	Location           string             `json:"location"`
	Category           Category           `json:"category"`
	Role               string             `json:"role,omitempty"`
	Filters            entities.FilterSet `json:"filters"`
	ExpectedFacilities []string           `json:"expected_facilities"`
	Difficulty         string             `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single query.
type EvalResult struct {
	QueryID        string
	Location       string
	Category       Category
	RecallAt10     float64
	MRRAt10        float64
	ResultCount    int
	PartialFailure bool
	Retrieved      []string
	Error          string `json:",omitempty"`
	Latency        time.Duration
}

// EvalSummary holds aggregate metrics across all golden queries.
type EvalSummary struct {
	TotalQueries    int
	FailedQueries   int
	AvgRecallAt10   float64
	AvgMRRAt10      float64
	AvgLatency      time.Duration
	QueriesWithHits int // queries that returned at least 1 result
	ByCategory      map[Category]*CategorySummary
	Results         []EvalResult
}

// CategorySummary holds metrics grouped by category.
type CategorySummary struct {
	Count         int
	AvgRecallAt10 float64
	AvgMRRAt10    float64
}
