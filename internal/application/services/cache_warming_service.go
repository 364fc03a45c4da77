package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

// CacheWarmingService keeps geocodes for commonly searched locations in the geocoder's
// cache so the first search from those places skips the provider round trip.
type CacheWarmingService struct {
	geocoder  providers.Geocoder
	locations []string
	timeout   time.Duration
}

// WarmingStats summarises one warming pass.
type WarmingStats struct {
	Warmed   int
	NotFound int
	Failed   int
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(geocoder providers.Geocoder, locations []string) *CacheWarmingService {
	seen := make(map[string]struct{}, len(locations))
	deduped := make([]string, 0, len(locations))
	for _, l := range locations {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if _, ok := seen[key]; ok || l == "" {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, l)
	}
	return &CacheWarmingService{geocoder: geocoder, locations: deduped, timeout: 5 * time.Second}
}

// WarmCache resolves every configured location once. Rate limiting stops the pass early
// since the remaining lookups would fail the same way.
func (s *CacheWarmingService) WarmCache(ctx context.Context) WarmingStats {
	var stats WarmingStats
	for _, location := range s.locations {
		if ctx.Err() != nil {
			break
		}
		lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
		_, err := s.geocoder.Resolve(lookupCtx, location)
		cancel()

		switch {
		case err == nil:
			stats.Warmed++
		case errors.Is(err, apperrors.ErrGeocodeNotFound):
			stats.NotFound++
			log.Debug().Str("location", location).Msg("Warm-up location did not geocode")
		case errors.Is(err, apperrors.ErrGeocodeRateLimited):
			stats.Failed++
			log.Warn().Str("location", location).Msg("Geocoder rate limited, stopping cache warm-up")
			return stats
		default:
			stats.Failed++
			log.Warn().Err(err).Str("location", location).Msg("Failed to warm geocode")
		}
	}
	log.Info().
		Int("warmed", stats.Warmed).
		Int("not_found", stats.NotFound).
		Int("failed", stats.Failed).
		Msg("Geocode cache warming completed")
	return stats
}

// StartPeriodicWarming warms once, then again every interval until ctx is done.
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if len(s.locations) == 0 {
		return
	}
	s.WarmCache(ctx)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Stopping cache warming service")
				return
			case <-ticker.C:
				s.WarmCache(ctx)
			}
		}
	}()
	log.Info().Dur("interval", interval).Int("locations", len(s.locations)).Msg("Started periodic geocode cache warming")
}
