package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_TypesenseConfig(t *testing.T) {
	t.Setenv("TYPESENSE_URL", "http://test-typesense:8108")
	t.Setenv("TYPESENSE_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
	assert.Equal(t, "test-key", cfg.Typesense.APIKey)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
	assert.Equal(t, "static", cfg.Geolocation.Provider)
	assert.Equal(t, 10*time.Second, cfg.Sources.PlacesTimeout)
	assert.Equal(t, 0.05, cfg.Search.DuplicateRadiusMiles)
	assert.Equal(t, []string{"family", "basic"}, cfg.Search.BulkOnlyRoles)
	assert.Equal(t, 500, cfg.Sources.MaxRecords)
}

func TestLoad_ParsesDurationsAndLists(t *testing.T) {
	t.Setenv("PLACES_TIMEOUT", "3s")
	t.Setenv("SEARCH_BULK_ONLY_ROLES", " guest , family ,")
	t.Setenv("SEARCH_DUPLICATE_RADIUS_MILES", "0.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Sources.PlacesTimeout)
	assert.Equal(t, []string{"guest", "family"}, cfg.Search.BulkOnlyRoles)
	assert.Equal(t, 0.1, cfg.Search.DuplicateRadiusMiles)
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FACILITY_CSV_PATH=/data/facilities.csv\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("FACILITY_CSV_PATH", "")
	os.Unsetenv("FACILITY_CSV_PATH")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/facilities.csv", cfg.Sources.CSVPath)
}

func TestLoad_RejectsPlacesWithoutKey(t *testing.T) {
	t.Setenv("PLACES_ENABLED", "true")
	t.Setenv("PLACES_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}
