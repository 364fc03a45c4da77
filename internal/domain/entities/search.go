package entities

import (
	"time"
)

// SourcePreference selects which provenances a search may query. Empty means all.
type SourcePreference []Provenance

// Allows reports whether p is selected.
func (s SourcePreference) Allows(p Provenance) bool {
	if len(s) == 0 {
		return true
	}
	for _, v := range s {
		if v == p {
			return true
		}
	}
	return false
}

// Restrict intersects s with allowed. An empty allowed list leaves s untouched.
func (s SourcePreference) Restrict(allowed SourcePreference) SourcePreference {
	if len(allowed) == 0 {
		return s
	}
	if len(s) == 0 {
		return append(SourcePreference(nil), allowed...)
	}
	out := SourcePreference{}
	for _, p := range s {
		if allowed.Allows(p) {
			out = append(out, p)
		}
	}
	return out
}

// ScoreInputs holds externally computed 0-100 match scores keyed by facility ID.
type ScoreInputs map[string]float64

// SearchQuery is one search request.
type SearchQuery struct {
	LocationText     string           `json:"location_text"`
	CenterOverride   *GeoPoint        `json:"center_override,omitempty"`
	Filters          FilterSet        `json:"filters"`
	SourcePreference SourcePreference `json:"source_preference,omitempty"`
	Role             string           `json:"role,omitempty"`
	Scoring          ScoreInputs      `json:"-"`
	Limit            int              `json:"limit,omitempty"`
}

// RankedFacility is one result row in final order.
type RankedFacility struct {
	Facility      *FacilityRecord `json:"facility"`
	DistanceMiles float64         `json:"distance_miles"`
	MatchScore    *float64        `json:"match_score,omitempty"`
}

// SourceReport describes what one adapter contributed.
type SourceReport struct {
	Source      string        `json:"source"`
	Provenance  Provenance    `json:"provenance"`
	Records     int           `json:"records"`
	SkippedRows int           `json:"skipped_rows,omitempty"`
	Truncated   bool          `json:"truncated,omitempty"`
	Error       string        `json:"error,omitempty"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// Failed reports whether the adapter errored.
func (r SourceReport) Failed() bool {
	return r.ErrorKind != ""
}

// SearchDiagnostics aggregates absorbed per-record and per-adapter problems.
type SearchDiagnostics struct {
	Sources                    []SourceReport `json:"sources"`
	DroppedRecords             int            `json:"dropped_records"`
	DuplicatesMerged           int            `json:"duplicates_merged"`
	ExcludedMissingCoordinates int            `json:"excluded_missing_coordinates"`
	FilteredOut                int            `json:"filtered_out"`
}

// SearchResult is the published outcome of one search. It is never mutated after publish.
type SearchResult struct {
	ID             string            `json:"id"`
	Sequence       uint64            `json:"sequence"`
	Center         GeoPoint          `json:"center"`
	Records        []RankedFacility  `json:"records"`
	Truncated      bool              `json:"truncated"`
	PartialFailure bool              `json:"partial_failure"`
	GeneratedAt    time.Time         `json:"generated_at"`
	Diagnostics    SearchDiagnostics `json:"diagnostics"`
}

// SessionState is the search session state machine position.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionResolving  SessionState = "resolving"
	SessionAssembling SessionState = "assembling"
	SessionReady      SessionState = "ready"
	SessionFailed     SessionState = "failed"
)
