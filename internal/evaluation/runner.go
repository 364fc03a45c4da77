package evaluation

import (
	"context"
	"time"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/utils"
)

// evalK is the rank cutoff for every metric.
const evalK = 10

// Searcher runs one facility search. *services.SearchSession satisfies it.
type Searcher interface {
	Search(ctx context.Context, query entities.SearchQuery) (*entities.SearchResult, error)
}

// Runner runs evaluation across a set of golden queries.
type Runner struct {
	searcher Searcher
}

func NewRunner(searcher Searcher) *Runner {
	return &Runner{searcher: searcher}
}

// Run executes every golden query in order. A failed search scores zero and is counted
// in FailedQueries; only context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalQueries: len(queries),
		ByCategory:   make(map[Category]*CategorySummary),
	}

	for _, gq := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		result, err := r.searcher.Search(ctx, entities.SearchQuery{
			LocationText: gq.Location,
			Filters:      gq.Filters,
			Role:         gq.Role,
			Limit:        evalK,
		})
		duration := time.Since(start)

		res := EvalResult{
			QueryID:  gq.ID,
			Location: gq.Location,
			Category: gq.Category,
			Latency:  duration,
		}
		if err != nil {
			res.Error = err.Error()
			summary.FailedQueries++
		} else {
			res.Retrieved = make([]string, len(result.Records))
			for i, rec := range result.Records {
				res.Retrieved[i] = utils.NormalizeKey(rec.Facility.Name)
			}
			res.ResultCount = len(result.Records)
			res.PartialFailure = result.PartialFailure
		}

		expected := make([]string, len(gq.ExpectedFacilities))
		for i, name := range gq.ExpectedFacilities {
			expected[i] = utils.NormalizeKey(name)
		}
		res.RecallAt10 = RecallAtK(expected, res.Retrieved, evalK)
		res.MRRAt10 = MRRAtK(expected, res.Retrieved, evalK)

		r.updateSummary(summary, res)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.Results = append(s.Results, res)
	s.AvgRecallAt10 += res.RecallAt10
	s.AvgMRRAt10 += res.MRRAt10
	s.AvgLatency += res.Latency
	if res.ResultCount > 0 {
		s.QueriesWithHits++
	}

	if _, ok := s.ByCategory[res.Category]; !ok {
		s.ByCategory[res.Category] = &CategorySummary{}
	}
	cs := s.ByCategory[res.Category]
	cs.Count++
	cs.AvgRecallAt10 += res.RecallAt10
	cs.AvgMRRAt10 += res.MRRAt10
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalQueries > 0 {
		n := float64(s.TotalQueries)
		s.AvgRecallAt10 /= n
		s.AvgMRRAt10 /= n
		s.AvgLatency /= time.Duration(s.TotalQueries)
	}

	for _, cs := range s.ByCategory {
		if cs.Count > 0 {
			n := float64(cs.Count)
			cs.AvgRecallAt10 /= n
			cs.AvgMRRAt10 /= n
		}
	}
}
