package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/bootstrap"
	"github.com/kceleski/agent-healthproassist-sub000/internal/evaluation"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/observability"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("facility-evaluate", cfg.Env, cfg.LogLevel)

	// Fall back to the bundled dataset when no source is configured
	if cfg.Sources.CSVPath == "" && !cfg.Database.Enabled && !cfg.Typesense.Enabled && !cfg.Sources.PlacesEnabled {
		cfg.Sources.CSVPath = resolvePath("data/facilities.csv")
	}

	ctx := context.Background()
	components, err := bootstrap.Build(ctx, cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize search engine")
	}
	defer components.Close()

	// Load Golden Queries
	goldenPath := os.Getenv("GOLDEN_QUERIES_PATH")
	if goldenPath == "" {
		goldenPath = resolvePath("config/golden_queries.json")
	}

	queries, err := evaluation.LoadGoldenQueries(goldenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load golden queries")
	}
	if err := evaluation.ValidateGoldenQueries(queries); err != nil {
		log.Fatal().Err(err).Msg("Invalid golden queries")
	}

	runner := evaluation.NewRunner(components.NewSession("evaluate"))
	summary, err := runner.Run(ctx, queries)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}

	log.Info().
		Int("queries", summary.TotalQueries).
		Int("failed", summary.FailedQueries).
		Float64("recall_at_10", summary.AvgRecallAt10).
		Float64("mrr_at_10", summary.AvgMRRAt10).
		Msg("Evaluation complete")

	// Output results as JSON
	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}

// resolvePath also checks under backend/ when run from the parent directory.
func resolvePath(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if _, err := os.Stat("backend/" + path); err == nil {
		return "backend/" + path
	}
	return path
}
