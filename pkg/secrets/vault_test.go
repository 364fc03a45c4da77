package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vaultServer(t *testing.T, failures int32) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, "/v1/secret/data/search", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"data":{"PLACES_API_KEY":"places-key","GEOLOCATION_API_KEY":"geo-key","UNRELATED":"x","PLACES_RPS":3}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestApplyVaultSecrets_ExportsAllowedKeys(t *testing.T) {
	srv, _ := vaultServer(t, 0)
	t.Setenv("PLACES_API_KEY", "")
	t.Setenv("GEOLOCATION_API_KEY", "already-set")
	defer os.Unsetenv("UNRELATED")

	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{
		Enabled: true, Addr: srv.URL, Token: "root", Mount: "secret", Path: "search", KVVersion: 2,
		Keys: []string{"PLACES_API_KEY", "GEOLOCATION_API_KEY"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "places-key", os.Getenv("PLACES_API_KEY"))
	assert.Equal(t, "already-set", os.Getenv("GEOLOCATION_API_KEY"))
	assert.Empty(t, os.Getenv("UNRELATED"))
}

func TestApplyVaultSecrets_RetriesServerErrors(t *testing.T) {
	srv, hits := vaultServer(t, 1)
	t.Setenv("PLACES_API_KEY", "")

	_, err := ApplyVaultSecrets(context.Background(), VaultConfig{
		Enabled: true, Addr: srv.URL, Token: "root", Mount: "secret", Path: "search", KVVersion: 2,
		Keys: []string{"PLACES_API_KEY"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestApplyVaultSecrets_ForbiddenIsNotRetried(t *testing.T) {
	srv, hits := vaultServer(t, 0)

	_, err := ApplyVaultSecrets(context.Background(), VaultConfig{
		Enabled: true, Addr: srv.URL, Token: "wrong", Mount: "secret", Path: "search", KVVersion: 2,
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestApplyVaultSecrets_Disabled(t *testing.T) {
	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{})
	require.NoError(t, err)
	assert.False(t, result.Enabled)
	assert.Zero(t, result.Loaded)
}

func TestBuildVaultURL(t *testing.T) {
	url, err := buildVaultURL("http://vault:8200/", "/secret/", "/search", 1)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/secret/search", url)

	_, err = buildVaultURL("", "secret", "search", 2)
	assert.Error(t, err)
}
