package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/repositories"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/clients/postgres"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

const searchAnalyticsTable = "search_analytics"

var searchEventColumns = []interface{}{
	"id", "session_id", "sequence", "query", "role", "outcome", "result_count",
	"partial_failure", "truncated", "latency_ms", "center_latitude", "center_longitude", "created_at",
}

// SearchAnalyticsAdapter implements SearchAnalyticsRepository
type SearchAnalyticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSearchAnalyticsAdapter creates a new search analytics adapter
func NewSearchAnalyticsAdapter(client *postgres.Client) repositories.SearchAnalyticsRepository {
	return &SearchAnalyticsAdapter{
		client: client,
		db:     client.Goqu(),
	}
}

// LogEvent appends one search event
func (a *SearchAnalyticsAdapter) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	record := goqu.Record{
		"id":               event.ID,
		"session_id":       event.SessionID,
		"sequence":         int64(event.Sequence),
		"query":            event.Query,
		"role":             event.Role,
		"outcome":          string(event.Outcome),
		"result_count":     event.ResultCount,
		"partial_failure":  event.PartialFailure,
		"truncated":        event.Truncated,
		"latency_ms":       event.LatencyMs,
		"center_latitude":  event.CenterLatitude,
		"center_longitude": event.CenterLongitude,
		"created_at":       event.CreatedAt,
	}

	query, args, err := a.db.Insert(searchAnalyticsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to log search event", err)
	}
	return nil
}

// GetZeroResultQueries returns the most recent searches that matched nothing
func (a *SearchAnalyticsAdapter) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := a.db.Select(searchEventColumns...).
		From(searchAnalyticsTable).
		Where(goqu.Ex{"outcome": string(entities.SearchOutcomeNoResults)}).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get zero result queries", err)
	}
	defer rows.Close()

	var events []*entities.SearchEvent
	for rows.Next() {
		e := &entities.SearchEvent{}
		var seq int64
		var outcome string
		err := rows.Scan(
			&e.ID,
			&e.SessionID,
			&seq,
			&e.Query,
			&e.Role,
			&outcome,
			&e.ResultCount,
			&e.PartialFailure,
			&e.Truncated,
			&e.LatencyMs,
			&e.CenterLatitude,
			&e.CenterLongitude,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan search event", err)
		}
		e.Sequence = uint64(seq)
		e.Outcome = entities.SearchOutcome(outcome)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to read search events", err)
	}

	return events, nil
}
