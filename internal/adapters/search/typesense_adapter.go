package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	tsclient "github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/clients/typesense"
)

// MaxPerPage is the largest page Typesense serves.
const MaxPerPage = 250

// GeoSearchParams selects facilities around a center.
type GeoSearchParams struct {
	Center entities.GeoPoint
	// RadiusMiles limits hits to a circle; nil searches the whole index sorted by distance.
	RadiusMiles   *float64
	FacilityTypes []entities.FacilityType
	MinRating     float64
	Limit         int
}

// GeoSearchResult holds the decoded hits of one geo search.
type GeoSearchResult struct {
	Records   []entities.RawSourceRecord
	Found     int
	Truncated bool
	// Skipped counts hits whose document could not be decoded.
	Skipped int
}

// TypesenseAdapter indexes and searches normalized facilities in Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
	now    func() time.Time
}

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client, now: time.Now}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Index upserts a facility document
func (a *TypesenseAdapter) Index(ctx context.Context, facility *entities.FacilityRecord) error {
	document := FacilityDocument(facility, a.now())
	_, err := a.client.Client().Collection(a.client.Collection()).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index facility %s: %w", facility.ID, err)
	}
	return nil
}

// Delete removes a facility from index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(a.client.Collection()).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete facility from index: %w", err)
	}
	return nil
}

// GeoSearch returns facilities near params.Center ordered by distance
func (a *TypesenseAdapter) GeoSearch(ctx context.Context, params GeoSearchParams) (*GeoSearchResult, error) {
	perPage := params.Limit
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String("*"),
		QueryBy: pointer.String("name"),
		SortBy:  pointer.String(fmt.Sprintf("location(%f, %f):asc", params.Center.Latitude, params.Center.Longitude)),
		Page:    pointer.Int(1),
		PerPage: pointer.Int(perPage),
	}
	if filter := buildFilter(params); filter != "" {
		searchParams.FilterBy = pointer.String(filter)
	}

	result, err := a.client.Client().Collection(a.client.Collection()).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search facilities: %w", err)
	}

	out := &GeoSearchResult{Records: []entities.RawSourceRecord{}}
	if result.Hits != nil {
		for _, hit := range *result.Hits {
			if hit.Document == nil {
				out.Skipped++
				continue
			}
			raw, err := RawFromDocument(*hit.Document)
			if err != nil {
				out.Skipped++
				continue
			}
			out.Records = append(out.Records, raw)
		}
	}
	if result.Found != nil {
		out.Found = *result.Found
	}
	out.Truncated = out.Found > len(out.Records)+out.Skipped
	return out, nil
}

func buildFilter(params GeoSearchParams) string {
	var clauses []string
	if params.RadiusMiles != nil {
		clauses = append(clauses, fmt.Sprintf("location:(%f, %f, %f mi)", params.Center.Latitude, params.Center.Longitude, *params.RadiusMiles))
	}
	if len(params.FacilityTypes) > 0 {
		types := make([]string, len(params.FacilityTypes))
		for i, t := range params.FacilityTypes {
			types[i] = "`" + string(t) + "`"
		}
		clauses = append(clauses, "facility_type:["+strings.Join(types, ",")+"]")
	}
	if params.MinRating > 0 {
		clauses = append(clauses, "rating:>="+strconv.FormatFloat(params.MinRating, 'f', -1, 64))
	}
	return strings.Join(clauses, " && ")
}

// FacilityDocument maps a normalized facility to its index document. The document id is the
// source id so records read back normalize to the same facility id.
func FacilityDocument(f *entities.FacilityRecord, indexedAt time.Time) map[string]interface{} {
	doc := map[string]interface{}{
		"id":            strings.TrimPrefix(f.ID, string(f.SourceProvenance)+":"),
		"name":          f.Name,
		"facility_type": string(f.Type),
		"type_inferred": f.TypeInferred,
		"location":      []float64{f.Location.Latitude, f.Location.Longitude},
		"indexed_at":    indexedAt.Unix(),
	}
	for field, v := range map[string]*string{
		"address":     f.Address,
		"city":        f.City,
		"state":       f.State,
		"zip_code":    f.ZipCode,
		"phone":       f.Phone,
		"website":     f.Website,
		"description": f.Description,
		"image_url":   f.ImageURL,
	} {
		if v != nil {
			doc[field] = *v
		}
	}
	if f.Rating != nil {
		doc["rating"] = *f.Rating
	}
	if f.ReviewCount != nil {
		doc["review_count"] = *f.ReviewCount
	}
	if f.PriceTier != entities.PriceTierUnknown {
		doc["price_tier"] = int(f.PriceTier)
	}
	if f.AvailableNow != nil {
		doc["available_now"] = *f.AvailableNow
	}
	for field, set := range map[string][]string{
		"care_levels":   f.CareLevels,
		"insurance":     f.InsuranceAccepted,
		"medical_needs": f.MedicalNeedsSupported,
		"amenities":     f.Amenities,
	} {
		if len(set) > 0 {
			doc[field] = set
		}
	}
	return doc
}

// RawFromDocument decodes an index document into a raw record. Typesense returns
// numbers as float64 and arrays as []interface{}.
func RawFromDocument(doc map[string]interface{}) (entities.RawSourceRecord, error) {
	id, _ := doc["id"].(string)
	if id == "" {
		return entities.RawSourceRecord{}, fmt.Errorf("document without id")
	}
	raw := entities.RawSourceRecord{
		SourceID:    id,
		Name:        stringField(doc, "name"),
		Address:     stringField(doc, "address"),
		City:        stringField(doc, "city"),
		State:       stringField(doc, "state"),
		ZipCode:     stringField(doc, "zip_code"),
		Phone:       stringField(doc, "phone"),
		Website:     stringField(doc, "website"),
		Description: stringField(doc, "description"),
		ImageURL:    stringField(doc, "image_url"),
	}
	if inferred, _ := doc["type_inferred"].(bool); !inferred {
		raw.TypeText = stringField(doc, "facility_type")
	}

	loc, ok := doc["location"].([]interface{})
	if !ok || len(loc) != 2 {
		return entities.RawSourceRecord{}, fmt.Errorf("document %s has no location", id)
	}
	lat, latOK := loc[0].(float64)
	lon, lonOK := loc[1].(float64)
	if !latOK || !lonOK {
		return entities.RawSourceRecord{}, fmt.Errorf("document %s has a malformed location", id)
	}
	raw.Latitude, raw.Longitude = &lat, &lon

	if v, ok := doc["rating"].(float64); ok {
		raw.Rating = &v
	}
	if v, ok := doc["review_count"].(float64); ok {
		n := int(v)
		raw.ReviewCount = &n
	}
	if v, ok := doc["price_tier"].(float64); ok {
		raw.PriceTier = strconv.Itoa(int(v))
	}
	if v, ok := doc["available_now"].(bool); ok {
		raw.AvailableNow = &v
	}
	raw.CareLevels = stringsField(doc, "care_levels")
	raw.Insurance = stringsField(doc, "insurance")
	raw.MedicalNeeds = stringsField(doc, "medical_needs")
	raw.Amenities = stringsField(doc, "amenities")
	return raw, nil
}

func stringField(doc map[string]interface{}, key string) string {
	s, _ := doc[key].(string)
	return s
}

func stringsField(doc map[string]interface{}, key string) []string {
	values, ok := doc[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
