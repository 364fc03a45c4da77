package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/adapters/search"
	"github.com/kceleski/agent-healthproassist-sub000/internal/adapters/sources"
	"github.com/kceleski/agent-healthproassist-sub000/internal/application/services"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/clients/typesense"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/observability"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/config"
)

// facilityIndex is the part of the search adapter the indexer writes through.
type facilityIndex interface {
	Index(ctx context.Context, facility *entities.FacilityRecord) error
}

type indexStats struct {
	Indexed int
	Dropped int
	Merged  int
	Failed  int
}

func main() {
	var reset bool
	var intervalFlag, csvPath string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.StringVar(&csvPath, "csv", "", "facility dataset to index (defaults to FACILITY_CSV_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("facility-indexer", cfg.Env, cfg.LogLevel)

	if csvPath == "" {
		csvPath = cfg.Sources.CSVPath
	}
	if csvPath == "" {
		log.Fatal().Msg("No dataset given: pass -csv or set FACILITY_CSV_PATH")
	}

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("Invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, csvPath, reset); err != nil {
			log.Error().Err(err).Msg("Reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_run_in", interval).Msg("Reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, csvPath string, reset bool) error {
	dataset, err := sources.OpenCSVSource(csvPath, sources.CSVSourceConfig{})
	if err != nil {
		return err
	}

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Str("collection", tsClient.Collection()).Msg("Deleting facility collection before reindex")
		if _, err := tsClient.Client().Collection(tsClient.Collection()).Delete(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to delete collection")
		}
	}

	adapter := search.NewTypesenseAdapter(tsClient)
	if err := adapter.InitSchema(ctx); err != nil {
		return err
	}

	normalizer := services.NewFacilityNormalizer(services.WithDuplicateRadius(cfg.Search.DuplicateRadiusMiles))
	log.Info().Str("path", csvPath).Int("rows", dataset.Len()).Int("skipped_rows", dataset.SkippedRows()).Msg("Indexing facility dataset")

	stats, err := indexRecords(ctx, adapter, normalizer, dataset.Records())
	log.Info().
		Int("indexed", stats.Indexed).
		Int("dropped", stats.Dropped).
		Int("merged", stats.Merged).
		Int("failed", stats.Failed).
		Msg("Indexing finished")
	return err
}

// indexRecords normalizes and de-duplicates raws exactly as a search would, then writes
// each surviving record. Individual write failures are counted, not fatal.
func indexRecords(ctx context.Context, index facilityIndex, normalizer *services.FacilityNormalizer, raws []entities.RawSourceRecord) (indexStats, error) {
	var stats indexStats
	records, dropped := normalizer.NormalizeAll(raws, entities.ProvenanceBulkDataset)
	stats.Dropped = dropped
	records, stats.Merged = normalizer.Deduplicate(records)

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := index.Index(ctx, r); err != nil {
			stats.Failed++
			log.Warn().Err(err).Str("facility_id", r.ID).Msg("Failed to index facility")
			continue
		}
		stats.Indexed++
	}
	return stats, nil
}
