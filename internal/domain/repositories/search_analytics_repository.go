package repositories

import (
	"context"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

// SearchAnalyticsRepository stores search events
type SearchAnalyticsRepository interface {
	LogEvent(ctx context.Context, event *entities.SearchEvent) error
	GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error)
}
