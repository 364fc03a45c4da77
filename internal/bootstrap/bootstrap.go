// Package bootstrap wires configuration into the search engine's geocoder, sources and
// analytics sinks. Every binary builds its components here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/adapters/cache"
	"github.com/kceleski/agent-healthproassist-sub000/internal/adapters/database"
	"github.com/kceleski/agent-healthproassist-sub000/internal/adapters/events"
	"github.com/kceleski/agent-healthproassist-sub000/internal/adapters/providers/geolocation"
	"github.com/kceleski/agent-healthproassist-sub000/internal/adapters/search"
	"github.com/kceleski/agent-healthproassist-sub000/internal/adapters/sources"
	"github.com/kceleski/agent-healthproassist-sub000/internal/application/services"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/repositories"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/clients/postgres"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/clients/redis"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/clients/typesense"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/observability"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/config"
)

const (
	cacheKeyPrefix  = "healthproassist:"
	memoryCacheSize = 10000
)

// Components holds everything a search session needs plus the clients behind them.
type Components struct {
	Config    *config.Config
	Metrics   *observability.Metrics
	Geocoder  providers.AddressGeocoder
	Sources   []providers.FacilitySource
	Cache     providers.CacheProvider
	EventBus  providers.EventBus
	Analytics *services.SearchAnalyticsService
	Index     *search.TypesenseAdapter

	closers []func() error
	pingers map[string]func(context.Context) error
}

// Build connects the backing services enabled in cfg. Optional services that cannot be
// reached are logged and skipped; the build fails only when no facility source is left.
func Build(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (*Components, error) {
	c := &Components{Config: cfg, Metrics: metrics, pingers: make(map[string]func(context.Context) error)}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, continuing with in-memory cache and no event bus")
		} else {
			redisClient = client
			c.closers = append(c.closers, client.Close)
			c.pingers["redis"] = client.Ping
		}
	}

	if redisClient != nil {
		c.Cache = cache.NewRedisAdapter(redisClient, cacheKeyPrefix)
		c.EventBus = events.NewRedisEventBus(redisClient)
		c.closers = append(c.closers, c.EventBus.Close)
	} else {
		c.Cache = cache.NewMemoryCache(memoryCacheSize, cfg.Geolocation.CacheTTL)
	}

	c.Geocoder = newGeocoder(cfg.Geolocation, c.Cache, metrics)

	var pgClient *postgres.Client
	if cfg.Database.Enabled {
		client, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("PostgreSQL unavailable, skipping database source and analytics store")
		} else {
			pgClient = client
			c.closers = append(c.closers, client.Close)
			c.pingers["postgres"] = client.Ping
		}
	}

	var analyticsRepo repositories.SearchAnalyticsRepository
	if pgClient != nil {
		analyticsRepo = database.NewSearchAnalyticsAdapter(pgClient)
	}
	if analyticsRepo != nil || c.EventBus != nil {
		c.Analytics = services.NewSearchAnalyticsService(analyticsRepo, c.EventBus)
	}

	if cfg.Typesense.Enabled {
		client, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, skipping index source")
		} else {
			c.Index = search.NewTypesenseAdapter(client)
			if err := c.Index.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to init Typesense schema")
			}
		}
	}

	if err := c.buildSources(pgClient); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func newGeocoder(cfg config.GeolocationConfig, cacheProvider providers.CacheProvider, metrics *observability.Metrics) providers.AddressGeocoder {
	if !strings.EqualFold(cfg.Provider, "google") {
		return geolocation.NewStaticGeocoder()
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("GEOLOCATION_API_KEY is not set; using static geocoder")
		return geolocation.NewStaticGeocoder()
	}
	opts := []geolocation.GoogleOption{
		geolocation.WithCacheTTL(cfg.CacheTTL),
		geolocation.WithRateLimit(cfg.RequestsPerSecond),
		geolocation.WithMetrics(metrics),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, geolocation.WithBaseURL(cfg.BaseURL))
	}
	return geolocation.NewGoogleGeocoder(cfg.APIKey, cacheProvider, opts...)
}

func (c *Components) buildSources(pgClient *postgres.Client) error {
	cfg := c.Config.Sources

	if cfg.CSVPath != "" {
		src, err := sources.OpenCSVSource(cfg.CSVPath, sources.CSVSourceConfig{
			Timeout:    cfg.CSVTimeout,
			MaxRecords: cfg.MaxRecords,
		})
		if err != nil {
			return fmt.Errorf("failed to load facility dataset %s: %w", cfg.CSVPath, err)
		}
		log.Info().Str("path", cfg.CSVPath).Int("records", src.Len()).Int("skipped_rows", src.SkippedRows()).Msg("Facility dataset loaded")
		c.Sources = append(c.Sources, src)
	}

	if pgClient != nil {
		c.Sources = append(c.Sources, sources.NewPostgresSource(pgClient, sources.PostgresSourceConfig{
			Timeout:    cfg.PostgresTimeout,
			MaxRecords: cfg.MaxRecords,
		}))
	}

	if c.Index != nil {
		c.Sources = append(c.Sources, sources.NewTypesenseSource(c.Index, sources.TypesenseSourceConfig{
			Timeout:    cfg.TypesenseTimeout,
			MaxRecords: cfg.MaxRecords,
		}))
	}

	if cfg.PlacesEnabled {
		c.Sources = append(c.Sources, sources.NewPlacesSource(sources.PlacesSourceConfig{
			BaseURL:           cfg.PlacesURL,
			APIKey:            cfg.PlacesAPIKey,
			Timeout:           cfg.PlacesTimeout,
			RequestsPerSecond: cfg.PlacesRate,
			MaxRecords:        cfg.MaxRecords,
		}))
	}

	if len(c.Sources) == 0 {
		return errors.New("no facility sources configured: set FACILITY_CSV_PATH, DB_ENABLED, TYPESENSE_ENABLED or PLACES_ENABLED")
	}
	names := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		names[i] = s.Name()
	}
	log.Info().Strs("sources", names).Msg("Facility sources ready")
	return nil
}

// SessionOptions returns the options every search session is built with.
func (c *Components) SessionOptions() []services.SessionOption {
	opts := []services.SessionOption{
		services.WithNormalizer(services.NewFacilityNormalizer(
			services.WithDuplicateRadius(c.Config.Search.DuplicateRadiusMiles),
		)),
		services.WithMatchScorer(services.NewCareProfileScorer()),
		services.WithMetrics(c.Metrics),
		services.WithBulkOnlyRoles(c.Config.Search.BulkOnlyRoles...),
	}
	if c.Analytics != nil {
		opts = append(opts, services.WithEventPublisher(c.Analytics))
	}
	return opts
}

// NewSession builds one search session with the given id.
func (c *Components) NewSession(id string) *services.SearchSession {
	opts := append(c.SessionOptions(), services.WithSessionID(id))
	return services.NewSearchSession(c.Geocoder, c.Sources, opts...)
}

// CheckReady pings every connected backing service. A nil entry means the service answered.
func (c *Components) CheckReady(ctx context.Context) map[string]error {
	results := make(map[string]error, len(c.pingers))
	for name, ping := range c.pingers {
		results[name] = ping(ctx)
	}
	return results
}

// Close flushes analytics and closes clients in reverse order of creation.
func (c *Components) Close() {
	if c.Analytics != nil {
		c.Analytics.Flush()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Error closing client")
		}
	}
	c.closers = nil
}
