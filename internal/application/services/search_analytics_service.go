package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/repositories"
)

// SearchAnalyticsService records finished searches in the analytics store and
// broadcasts them on the event bus. Either sink may be nil.
type SearchAnalyticsService struct {
	repo    repositories.SearchAnalyticsRepository
	bus     providers.EventBus
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewSearchAnalyticsService creates a new analytics service
func NewSearchAnalyticsService(repo repositories.SearchAnalyticsRepository, bus providers.EventBus) *SearchAnalyticsService {
	return &SearchAnalyticsService{repo: repo, bus: bus, timeout: 5 * time.Second}
}

// PublishSearchEvent implements providers.SearchEventPublisher. The sinks are written
// in the background so the search response is never held up.
func (s *SearchAnalyticsService) PublishSearchEvent(ctx context.Context, event *entities.SearchEvent) error {
	if event == nil {
		return errors.New("nil search event")
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Use a fresh context since the request context might be cancelled
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		s.deliver(bgCtx, event)
	}()
	return nil
}

func (s *SearchAnalyticsService) deliver(ctx context.Context, event *entities.SearchEvent) {
	if s.repo != nil {
		if err := s.repo.LogEvent(ctx, event); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to log search event")
		}
	}
	if s.bus != nil {
		if err := s.bus.PublishSearchEvent(ctx, event); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to broadcast search event")
		}
	}
}

// Flush waits for background deliveries to finish.
func (s *SearchAnalyticsService) Flush() {
	s.wg.Wait()
}

// GetZeroResultQueries returns recent searches that found nothing, for tuning the dataset.
func (s *SearchAnalyticsService) GetZeroResultQueries(ctx context.Context, limit int) ([]*entities.SearchEvent, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.GetZeroResultQueries(ctx, limit)
}
