package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/geo"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/utils"
)

// csvColumn is a canonical dataset column.
type csvColumn int

const (
	colID csvColumn = iota
	colName
	colType
	colLatitude
	colLongitude
	colAddress
	colCity
	colState
	colZip
	colPhone
	colWebsite
	colDescription
	colImage
	colRating
	colReviews
	colPrice
	colCareLevels
	colInsurance
	colMedicalNeeds
	colAmenities
	colAvailable
	numColumns
)

// headerAliases maps normalized header text to a column.
var headerAliases = map[string]csvColumn{
	"id": colID, "facility id": colID, "license number": colID,
	"name": colName, "facility name": colName,
	"type": colType, "facility type": colType, "category": colType,
	"latitude": colLatitude, "lat": colLatitude,
	"longitude": colLongitude, "lon": colLongitude, "lng": colLongitude, "long": colLongitude,
	"address": colAddress, "street": colAddress, "street address": colAddress,
	"city": colCity,
	"state": colState,
	"zip": colZip, "zip code": colZip, "zipcode": colZip, "postal code": colZip,
	"phone": colPhone, "phone number": colPhone,
	"website": colWebsite, "url": colWebsite,
	"description": colDescription,
	"image": colImage, "image url": colImage, "photo": colImage,
	"rating": colRating,
	"reviews": colReviews, "review count": colReviews, "review_count": colReviews,
	"price": colPrice, "price tier": colPrice, "price range": colPrice,
	"care levels": colCareLevels, "care level": colCareLevels, "services": colCareLevels,
	"insurance": colInsurance, "insurance accepted": colInsurance, "payment options": colInsurance,
	"medical needs": colMedicalNeeds, "medical needs supported": colMedicalNeeds, "specialties": colMedicalNeeds,
	"amenities": colAmenities,
	"available": colAvailable, "available now": colAvailable, "availability": colAvailable,
}

var requiredColumns = []csvColumn{colName, colLatitude, colLongitude}

var requiredColumnNames = map[csvColumn]string{
	colName:      "name",
	colLatitude:  "latitude",
	colLongitude: "longitude",
}

// CSVSourceConfig configures a CSVSource
type CSVSourceConfig struct {
	Name       string
	Timeout    time.Duration
	MaxRecords int
}

// CSVSource serves a tabular bulk dataset parsed once at construction.
type CSVSource struct {
	name        string
	timeout     time.Duration
	maxRecords  int
	records     []entities.RawSourceRecord
	skippedRows int
}

// OpenCSVSource loads the dataset at path.
func OpenCSVSource(path string, cfg CSVSourceConfig) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewAdapterError(apperrors.AdapterUnavailable, sourceName(cfg.Name), err)
	}
	defer f.Close()
	return NewCSVSource(f, cfg)
}

// NewCSVSource parses a dataset. Malformed rows are skipped and counted; a header
// without the name or coordinate columns fails construction.
func NewCSVSource(r io.Reader, cfg CSVSourceConfig) (*CSVSource, error) {
	s := &CSVSource{
		name:       sourceName(cfg.Name),
		timeout:    orDefault(cfg.Timeout, DefaultLocalTimeout),
		maxRecords: cfg.MaxRecords,
	}
	if s.maxRecords <= 0 {
		s.maxRecords = DefaultMaxRecords
	}

	reader := csv.NewReader(r)
	// Row widths are validated against the header below.
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewAdapterError(apperrors.AdapterMalformed, s.name, fmt.Errorf("read header: %w", err))
	}
	index, err := mapHeader(header)
	if err != nil {
		return nil, apperrors.NewAdapterError(apperrors.AdapterMalformed, s.name, err)
	}

	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			s.skip(line, err)
			continue
		}
		if err != nil {
			return nil, apperrors.NewAdapterError(apperrors.AdapterUnavailable, s.name, err)
		}
		if len(row) != len(header) {
			s.skip(line, fmt.Errorf("expected %d columns, got %d", len(header), len(row)))
			continue
		}
		rec, err := parseRow(row, index)
		if err != nil {
			s.skip(line, err)
			continue
		}
		s.records = append(s.records, rec)
	}

	log.Info().Str("source", s.name).Int("records", len(s.records)).Int("skipped_rows", s.skippedRows).Msg("Loaded facility dataset")
	return s, nil
}

func sourceName(name string) string {
	if name == "" {
		return "csv"
	}
	return name
}

func (s *CSVSource) skip(line int, err error) {
	s.skippedRows++
	log.Debug().Err(err).Str("source", s.name).Int("line", line).Msg("Skipping malformed dataset row")
}

func mapHeader(header []string) ([]int, error) {
	index := make([]int, numColumns)
	for i := range index {
		index[i] = -1
	}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.ReplaceAll(key, "_", " ")
		if col, ok := headerAliases[key]; ok && index[col] < 0 {
			index[col] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if index[col] < 0 {
			missing = append(missing, requiredColumnNames[col])
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func parseRow(row []string, index []int) (entities.RawSourceRecord, error) {
	cell := func(col csvColumn) string {
		if i := index[col]; i >= 0 {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	rec := entities.RawSourceRecord{
		SourceID:     cell(colID),
		Name:         cell(colName),
		TypeText:     cell(colType),
		Address:      cell(colAddress),
		City:         cell(colCity),
		State:        cell(colState),
		ZipCode:      cell(colZip),
		Phone:        cell(colPhone),
		Website:      cell(colWebsite),
		Description:  cell(colDescription),
		ImageURL:     cell(colImage),
		Rating:       parseOptionalFloat(cell(colRating)),
		ReviewCount:  parseOptionalInt(cell(colReviews)),
		PriceTier:    cell(colPrice),
		CareLevels:   utils.SplitList(cell(colCareLevels)),
		Insurance:    utils.SplitList(cell(colInsurance)),
		MedicalNeeds: utils.SplitList(cell(colMedicalNeeds)),
		Amenities:    utils.SplitList(cell(colAmenities)),
		AvailableNow: parseOptionalBool(cell(colAvailable)),
	}

	latText, lonText := cell(colLatitude), cell(colLongitude)
	if latText == "" && lonText == "" {
		// Left for the normalizer to drop and count.
		return rec, nil
	}
	lat, err := strconv.ParseFloat(latText, 64)
	if err != nil {
		return rec, fmt.Errorf("latitude %q: %w", latText, err)
	}
	lon, err := strconv.ParseFloat(lonText, 64)
	if err != nil {
		return rec, fmt.Errorf("longitude %q: %w", lonText, err)
	}
	if _, err := geo.NewPoint(lat, lon); err != nil {
		return rec, err
	}
	rec.Latitude, rec.Longitude = &lat, &lon
	return rec, nil
}

// Name implements providers.FacilitySource.
func (s *CSVSource) Name() string { return s.name }

// Provenance implements providers.FacilitySource.
func (s *CSVSource) Provenance() entities.Provenance { return entities.ProvenanceBulkDataset }

// Timeout implements providers.FacilitySource.
func (s *CSVSource) Timeout() time.Duration { return s.timeout }

// Len returns the number of parsed records.
func (s *CSVSource) Len() int { return len(s.records) }

// SkippedRows returns the number of rows dropped while parsing.
func (s *CSVSource) SkippedRows() int { return s.skippedRows }

// Records returns every parsed record.
func (s *CSVSource) Records() []entities.RawSourceRecord {
	return append([]entities.RawSourceRecord(nil), s.records...)
}

// Fetch returns dataset rows near center. With a max distance the rows are pre-filtered
// by its bounding box; rows without coordinates always pass through.
func (s *CSVSource) Fetch(ctx context.Context, query entities.SearchQuery, center entities.GeoPoint) (*providers.FetchResult, error) {
	var box *geo.Box
	if query.Filters.MaxDistanceMiles != nil {
		b := geo.BoundingBox(center, *query.Filters.MaxDistanceMiles)
		box = &b
	}

	result := &providers.FetchResult{SkippedRows: s.skippedRows}
	for i, rec := range s.records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, contextError(s.name, err)
			}
		}
		if box != nil && rec.Latitude != nil && rec.Longitude != nil &&
			!box.Contains(geo.Point{Latitude: *rec.Latitude, Longitude: *rec.Longitude}) {
			continue
		}
		if len(result.Records) == s.maxRecords {
			result.Truncated = true
			break
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}
