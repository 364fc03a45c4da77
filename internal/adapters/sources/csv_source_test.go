package sources

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

var phoenix = entities.GeoPoint{Latitude: 33.4484, Longitude: -112.0740}

func f64(v float64) *float64 { return &v }

const sampleDataset = `Facility ID,Facility Name,Facility_Type,Lat,Lng,Street Address,City,State,Zip,Rating,Reviews,Price Range,Care Levels,Insurance Accepted,Amenities,Available Now
az-1,Camelback Memory Care,Memory Care,33.5092,-112.0290,5002 N 40th St,Phoenix,AZ,85018,4.6,"1,204",$$$,memory care;respite,medicare|private pay,garden,yes
az-2,Tempe Gardens,Assisted Living,33.4255,-111.9400,,Tempe,AZ,85281,not rated,12,2,assisted living,medicaid,,no
az-3,Broken Row,Assisted Living,abc,-111.9,,,,,,,,,,,
az-4,Short Row,Assisted Living,33.1
az-5,Tucson Skilled Nursing,Skilled Nursing,32.2226,-110.9747,,Tucson,AZ,,3.9,,,,,,
az-6,Unplaced Home,,,,,,,,,,,,,,
az-7,Polar Home,,95.0,10.0,,,,,,,,,,,
`

func TestNewCSVSource_ParsesAndSkips(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader(sampleDataset), CSVSourceConfig{})
	require.NoError(t, err)

	assert.Equal(t, "csv", src.Name())
	assert.Equal(t, entities.ProvenanceBulkDataset, src.Provenance())
	assert.Equal(t, DefaultLocalTimeout, src.Timeout())
	assert.Equal(t, 4, src.Len())
	assert.Equal(t, 3, src.SkippedRows())

	records := src.Records()
	first := records[0]
	assert.Equal(t, "az-1", first.SourceID)
	assert.Equal(t, "Memory Care", first.TypeText)
	assert.Equal(t, 33.5092, *first.Latitude)
	assert.Equal(t, 1204, *first.ReviewCount)
	assert.Equal(t, "$$$", first.PriceTier)
	assert.Equal(t, []string{"memory care", "respite"}, first.CareLevels)
	assert.Equal(t, []string{"medicare", "private pay"}, first.Insurance)
	assert.True(t, *first.AvailableNow)

	second := records[1]
	assert.Nil(t, second.Rating, "non-numeric rating is unknown")
	assert.Empty(t, second.Address)
	assert.False(t, *second.AvailableNow)

	// Rows without coordinates pass through for the normalizer to drop.
	assert.Equal(t, "az-6", records[3].SourceID)
	assert.Nil(t, records[3].Latitude)
}

func TestNewCSVSource_MissingRequiredHeaders(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader("id,name,city\n1,Somewhere,Phoenix\n"), CSVSourceConfig{Name: "state-registry"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAdapterMalformed)

	var adapterErr *apperrors.AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, "state-registry", adapterErr.Source)
	assert.Contains(t, err.Error(), "latitude, longitude")
}

func TestNewCSVSource_EmptyInput(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader(""), CSVSourceConfig{})
	assert.ErrorIs(t, err, apperrors.ErrAdapterMalformed)
}

func TestCSVSource_FetchBoundingBox(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader(sampleDataset), CSVSourceConfig{})
	require.NoError(t, err)

	all, err := src.Fetch(context.Background(), entities.SearchQuery{}, phoenix)
	require.NoError(t, err)
	assert.Len(t, all.Records, 4)
	assert.Equal(t, 3, all.SkippedRows)
	assert.False(t, all.Truncated)

	near, err := src.Fetch(context.Background(), entities.SearchQuery{Filters: entities.FilterSet{MaxDistanceMiles: f64(25)}}, phoenix)
	require.NoError(t, err)
	var ids []string
	for _, r := range near.Records {
		ids = append(ids, r.SourceID)
	}
	assert.Equal(t, []string{"az-1", "az-2", "az-6"}, ids)
}

func TestCSVSource_FetchTruncates(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader(sampleDataset), CSVSourceConfig{MaxRecords: 2})
	require.NoError(t, err)

	result, err := src.Fetch(context.Background(), entities.SearchQuery{}, phoenix)
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	assert.True(t, result.Truncated)
}

func TestCSVSource_FetchHonoursContext(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader(sampleDataset), CSVSourceConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Fetch(ctx, entities.SearchQuery{}, phoenix)
	assert.ErrorIs(t, err, apperrors.ErrAdapterUnavailable)
}

func TestOpenCSVSource_MissingFile(t *testing.T) {
	_, err := OpenCSVSource("/nonexistent/facilities.csv", CSVSourceConfig{})
	assert.ErrorIs(t, err, apperrors.ErrAdapterUnavailable)
}
