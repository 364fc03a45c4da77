package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/kceleski/agent-healthproassist-sub000/internal/api/handlers"
	"github.com/kceleski/agent-healthproassist-sub000/internal/api/routes"
	"github.com/kceleski/agent-healthproassist-sub000/internal/application/services"
	"github.com/kceleski/agent-healthproassist-sub000/internal/bootstrap"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/observability"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/config"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/secrets"
)

func main() {

	// Pull secrets into the environment before configuration is read
	if result, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv("")); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault secrets: %v\n", err)
		os.Exit(1)
	} else if result.Enabled {
		fmt.Fprintf(os.Stderr, "Loaded %d secrets from Vault (%d already set)\n", result.Loaded, result.Skipped)
	}

	// Load configuration

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env, cfg.LogLevel)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
				log.Warn().Err(err).Msg("Failed to start runtime instrumentation")
			}
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Connect backing services and build facility sources
	components, err := bootstrap.Build(ctx, cfg, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize search engine")
	}
	defer components.Close()

	// Keep popular locations geocoded
	warmingService := services.NewCacheWarmingService(components.Geocoder, cfg.Geolocation.WarmLocations)
	go warmingService.StartPeriodicWarming(ctx, cfg.Geolocation.WarmInterval)

	// Initialize handlers

	registry := services.NewSessionRegistry(cfg.Search.SessionCapacity, cfg.Search.SessionTTL, components.NewSession)

	facilityHandler := handlers.NewFacilityHandler(registry)

	geolocationHandler := handlers.NewGeolocationHandler(components.Geocoder)

	var analyticsHandler *handlers.AnalyticsHandler
	if components.Analytics != nil {
		analyticsHandler = handlers.NewAnalyticsHandler(components.Analytics)
	}

	// Set up router

	router := routes.NewRouter(
		facilityHandler,
		geolocationHandler,
		analyticsHandler,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	router.SetReadinessCheck(components.CheckReady)

	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}
