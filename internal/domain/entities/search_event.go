package entities

import (
	"time"
)

// SearchOutcome is the terminal state of a search, recorded for analytics.
type SearchOutcome string

const (
	SearchOutcomeReady                 SearchOutcome = "ready"
	SearchOutcomeGeocodeFailed         SearchOutcome = "geocode_failed"
	SearchOutcomeNoResults             SearchOutcome = "no_results"
	SearchOutcomeAllSourcesUnavailable SearchOutcome = "all_sources_unavailable"
	SearchOutcomeCancelled             SearchOutcome = "cancelled"
)

// SearchEvent represents a single search interaction for analytics.
type SearchEvent struct {
	ID              string        `json:"id" db:"id"`
	SessionID       string        `json:"session_id,omitempty" db:"session_id"`
	Sequence        uint64        `json:"sequence" db:"sequence"`
	Query           string        `json:"query" db:"query"`
	Role            string        `json:"role,omitempty" db:"role"`
	Outcome         SearchOutcome `json:"outcome" db:"outcome"`
	ResultCount     int           `json:"result_count" db:"result_count"`
	PartialFailure  bool          `json:"partial_failure" db:"partial_failure"`
	Truncated       bool          `json:"truncated" db:"truncated"`
	LatencyMs       int64         `json:"latency_ms" db:"latency_ms"`
	CenterLatitude  float64       `json:"center_latitude" db:"center_latitude"`
	CenterLongitude float64       `json:"center_longitude" db:"center_longitude"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}
