// Command seed loads the facility dataset into PostgreSQL so the database source can serve it.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/adapters/sources"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/clients/postgres"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/observability"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/config"
)

const careFacilitiesTable = "care_facilities"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS care_facilities (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		facility_type TEXT,
		latitude      DOUBLE PRECISION NOT NULL,
		longitude     DOUBLE PRECISION NOT NULL,
		address       TEXT,
		city          TEXT,
		state         TEXT,
		zip_code      TEXT,
		phone         TEXT,
		website       TEXT,
		description   TEXT,
		image_url     TEXT,
		rating        DOUBLE PRECISION,
		review_count  INTEGER,
		price_tier    TEXT,
		care_levels   TEXT[],
		insurance     TEXT[],
		medical_needs TEXT[],
		amenities     TEXT[],
		available_now BOOLEAN,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_care_facilities_lat_lon ON care_facilities (latitude, longitude)`,
	`CREATE TABLE IF NOT EXISTS search_analytics (
		id               TEXT PRIMARY KEY,
		session_id       TEXT NOT NULL,
		sequence         BIGINT NOT NULL,
		query            TEXT NOT NULL,
		role             TEXT,
		outcome          TEXT NOT NULL,
		result_count     INTEGER NOT NULL,
		partial_failure  BOOLEAN NOT NULL DEFAULT FALSE,
		truncated        BOOLEAN NOT NULL DEFAULT FALSE,
		latency_ms       BIGINT NOT NULL,
		center_latitude  DOUBLE PRECISION,
		center_longitude DOUBLE PRECISION,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_search_analytics_outcome ON search_analytics (outcome, created_at DESC)`,
}

// upsertColumns are rewritten when a facility id is seeded again.
var upsertColumns = []string{
	"name", "facility_type", "latitude", "longitude", "address", "city", "state", "zip_code",
	"phone", "website", "description", "image_url", "rating", "review_count", "price_tier",
	"care_levels", "insurance", "medical_needs", "amenities", "available_now", "updated_at",
}

type seedStats struct {
	Inserted int
	Skipped  int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("facility-seed", cfg.Env, cfg.LogLevel)

	path := cfg.Sources.CSVPath
	if path == "" {
		path = "data/facilities.csv"
	}
	src, err := sources.OpenCSVSource(path, sources.CSVSourceConfig{Name: "seed"})
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to load facility dataset")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()
	if err := ensureSchema(ctx, pgClient, os.Getenv("RESET_DB") == "true"); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare schema")
	}

	stats, err := seedFacilities(ctx, pgClient, src.Records())
	if err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}
	log.Info().
		Int("inserted", stats.Inserted).
		Int("skipped", stats.Skipped).
		Int("unreadable_rows", src.SkippedRows()).
		Msg("Seeding completed successfully")
}

func ensureSchema(ctx context.Context, client *postgres.Client, reset bool) error {
	for _, stmt := range schemaStatements {
		if _, err := client.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	if reset {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		if _, err := client.DB().ExecContext(ctx, `TRUNCATE TABLE care_facilities, search_analytics`); err != nil {
			return fmt.Errorf("failed to reset tables: %w", err)
		}
	}
	return nil
}

// seedFacilities upserts every record with an id, a name and coordinates. Other records are
// counted as skipped; a database error stops the run.
func seedFacilities(ctx context.Context, client *postgres.Client, records []entities.RawSourceRecord) (seedStats, error) {
	var stats seedStats
	db := client.Goqu()

	update := goqu.Record{}
	for _, col := range upsertColumns {
		update[col] = goqu.I("excluded." + col)
	}

	now := time.Now().UTC()
	for _, rec := range records {
		if rec.SourceID == "" || rec.Name == "" || rec.Latitude == nil || rec.Longitude == nil {
			stats.Skipped++
			continue
		}

		query, args, err := db.Insert(careFacilitiesTable).
			Prepared(true).
			Rows(facilityRow(rec, now)).
			OnConflict(goqu.DoUpdate("id", update)).
			ToSQL()
		if err != nil {
			return stats, fmt.Errorf("failed to build insert for %s: %w", rec.SourceID, err)
		}
		if _, err := client.DB().ExecContext(ctx, query, args...); err != nil {
			return stats, fmt.Errorf("failed to insert facility %s: %w", rec.SourceID, err)
		}
		stats.Inserted++
	}
	return stats, nil
}

func facilityRow(rec entities.RawSourceRecord, now time.Time) goqu.Record {
	return goqu.Record{
		"id":            rec.SourceID,
		"name":          rec.Name,
		"facility_type": nullable(rec.TypeText),
		"latitude":      *rec.Latitude,
		"longitude":     *rec.Longitude,
		"address":       nullable(rec.Address),
		"city":          nullable(rec.City),
		"state":         nullable(rec.State),
		"zip_code":      nullable(rec.ZipCode),
		"phone":         nullable(rec.Phone),
		"website":       nullable(rec.Website),
		"description":   nullable(rec.Description),
		"image_url":     nullable(rec.ImageURL),
		"rating":        deref(rec.Rating),
		"review_count":  deref(rec.ReviewCount),
		"price_tier":    nullable(rec.PriceTier),
		"care_levels":   textArray(rec.CareLevels),
		"insurance":     textArray(rec.Insurance),
		"medical_needs": textArray(rec.MedicalNeeds),
		"amenities":     textArray(rec.Amenities),
		"available_now": deref(rec.AvailableNow),
		"updated_at":    now,
	}
}

// nullable maps an empty cell to NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// textArray renders a facet list as a postgres array literal.
func textArray(values []string) interface{} {
	if len(values) == 0 {
		return nil
	}
	v, _ := pq.StringArray(values).Value()
	return v
}

func deref[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
