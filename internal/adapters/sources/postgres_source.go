package sources

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/clients/postgres"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/geo"
)

const careFacilitiesTable = "care_facilities"

var careFacilityColumns = []interface{}{
	"id", "name", "facility_type", "latitude", "longitude", "address", "city", "state", "zip_code",
	"phone", "website", "description", "image_url", "rating", "review_count", "price_tier",
	"care_levels", "insurance", "medical_needs", "amenities", "available_now",
}

// PostgresSourceConfig configures a PostgresSource
type PostgresSourceConfig struct {
	Name       string
	Timeout    time.Duration
	MaxRecords int
}

// PostgresSource reads the bulk dataset from the care_facilities table.
type PostgresSource struct {
	client     *postgres.Client
	db         *goqu.Database
	name       string
	timeout    time.Duration
	maxRecords int
}

// NewPostgresSource creates a source over client
func NewPostgresSource(client *postgres.Client, cfg PostgresSourceConfig) *PostgresSource {
	s := &PostgresSource{
		client:     client,
		db:         client.Goqu(),
		name:       cfg.Name,
		timeout:    orDefault(cfg.Timeout, DefaultNetworkTimeout),
		maxRecords: cfg.MaxRecords,
	}
	if s.name == "" {
		s.name = "postgres"
	}
	if s.maxRecords <= 0 {
		s.maxRecords = DefaultMaxRecords
	}
	return s
}

// Name implements providers.FacilitySource.
func (s *PostgresSource) Name() string { return s.name }

// Provenance implements providers.FacilitySource.
func (s *PostgresSource) Provenance() entities.Provenance { return entities.ProvenanceBulkDataset }

// Timeout implements providers.FacilitySource.
func (s *PostgresSource) Timeout() time.Duration { return s.timeout }

// Fetch selects facilities inside the max-distance bounding box. One extra row is
// requested to detect truncation.
func (s *PostgresSource) Fetch(ctx context.Context, query entities.SearchQuery, center entities.GeoPoint) (*providers.FetchResult, error) {
	ds := s.db.Select(careFacilityColumns...).From(careFacilitiesTable)
	if query.Filters.MaxDistanceMiles != nil {
		ds = ds.Where(boxExpression(geo.BoundingBox(center, *query.Filters.MaxDistanceMiles)))
	}
	sqlQuery, args, err := ds.Order(goqu.I("id").Asc()).
		Limit(uint(s.maxRecords + 1)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewAdapterError(apperrors.AdapterMalformed, s.name, err)
	}

	rows, err := s.client.DB().QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, contextError(s.name, ctx.Err())
		}
		return nil, apperrors.NewAdapterError(apperrors.AdapterUnavailable, s.name, err)
	}
	defer rows.Close()

	result := &providers.FetchResult{}
	for rows.Next() {
		if len(result.Records) == s.maxRecords {
			result.Truncated = true
			break
		}
		rec, err := scanFacility(rows)
		if err != nil {
			result.SkippedRows++
			log.Debug().Err(err).Str("source", s.name).Msg("Skipping unreadable facility row")
			continue
		}
		result.Records = append(result.Records, rec)
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, contextError(s.name, ctx.Err())
		}
		return nil, apperrors.NewAdapterError(apperrors.AdapterUnavailable, s.name, err)
	}
	return result, nil
}

func boxExpression(box geo.Box) exp.Expression {
	lat := goqu.C("latitude").Between(goqu.Range(box.MinLat, box.MaxLat))
	if box.CrossesAntimeridian {
		return goqu.And(lat, goqu.Or(goqu.C("longitude").Gte(box.MinLon), goqu.C("longitude").Lte(box.MaxLon)))
	}
	return goqu.And(lat, goqu.C("longitude").Between(goqu.Range(box.MinLon, box.MaxLon)))
}

func scanFacility(rows *sql.Rows) (entities.RawSourceRecord, error) {
	var (
		rec                                            entities.RawSourceRecord
		typeText, address, city, state, zip, phone     sql.NullString
		website, description, image, price             sql.NullString
		lat, lon, rating                               sql.NullFloat64
		reviews                                        sql.NullInt64
		available                                      sql.NullBool
		careLevels, insurance, medicalNeeds, amenities pq.StringArray
	)
	err := rows.Scan(
		&rec.SourceID, &rec.Name, &typeText, &lat, &lon, &address, &city, &state, &zip,
		&phone, &website, &description, &image, &rating, &reviews, &price,
		&careLevels, &insurance, &medicalNeeds, &amenities, &available,
	)
	if err != nil {
		return rec, err
	}

	rec.TypeText = typeText.String
	rec.Address = address.String
	rec.City = city.String
	rec.State = state.String
	rec.ZipCode = zip.String
	rec.Phone = phone.String
	rec.Website = website.String
	rec.Description = description.String
	rec.ImageURL = image.String
	rec.PriceTier = price.String
	if lat.Valid && lon.Valid {
		rec.Latitude, rec.Longitude = &lat.Float64, &lon.Float64
	}
	if rating.Valid {
		rec.Rating = &rating.Float64
	}
	if reviews.Valid {
		n := int(reviews.Int64)
		rec.ReviewCount = &n
	}
	if available.Valid {
		rec.AvailableNow = &available.Bool
	}
	rec.CareLevels = []string(careLevels)
	rec.Insurance = []string(insurance)
	rec.MedicalNeeds = []string(medicalNeeds)
	rec.Amenities = []string(amenities)
	return rec, nil
}
