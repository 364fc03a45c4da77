package providers

import (
	"context"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

// MatchScorer computes 0-100 match scores for ranked ordering. Any non-determinism
// lives behind this interface, never in filtering or ranking.
type MatchScorer interface {
	Score(ctx context.Context, query entities.SearchQuery, records []*entities.FacilityRecord) (entities.ScoreInputs, error)
}
