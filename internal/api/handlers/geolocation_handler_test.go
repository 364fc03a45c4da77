package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kceleski/agent-healthproassist-sub000/internal/adapters/providers/geolocation"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

type MockAddressGeocoder struct {
	mock.Mock
}

func (m *MockAddressGeocoder) Resolve(ctx context.Context, locationText string) (entities.GeoPoint, error) {
	args := m.Called(ctx, locationText)
	return args.Get(0).(entities.GeoPoint), args.Error(1)
}

func (m *MockAddressGeocoder) Geocode(ctx context.Context, address string) (*providers.GeocodedAddress, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.GeocodedAddress), args.Error(1)
}

func TestGeocode_StaticCity(t *testing.T) {
	h := NewGeolocationHandler(geolocation.NewStaticGeocoder())

	req := httptest.NewRequest(http.MethodGet, "/api/geocode?address=Tempe,+AZ", nil)
	rec := httptest.NewRecorder()
	h.Geocode(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Tempe", body["city"])
	assert.InDelta(t, 33.4255, body["lat"], 1e-4)
	assert.InDelta(t, -111.9400, body["lon"], 1e-4)
}

func TestGeocode_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperrors.NewGeocodeError(apperrors.GeocodeNotFound, "nowhere", nil), http.StatusUnprocessableEntity, CodeLocationNotFound},
		{"rate limited", apperrors.NewGeocodeError(apperrors.GeocodeRateLimited, "nowhere", nil), http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unavailable", apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, "nowhere", errors.New("dial tcp")), http.StatusBadGateway, CodeServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := new(MockAddressGeocoder)
			g.On("Geocode", mock.Anything, "nowhere").Return(nil, tt.err)
			h := NewGeolocationHandler(g)

			req := httptest.NewRequest(http.MethodGet, "/api/geocode?address=nowhere", nil)
			rec := httptest.NewRecorder()
			h.Geocode(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
			g.AssertExpectations(t)
		})
	}
}

func TestGeocode_MissingAddress(t *testing.T) {
	g := new(MockAddressGeocoder)
	h := NewGeolocationHandler(g)

	rec := httptest.NewRecorder()
	h.Geocode(rec, httptest.NewRequest(http.MethodGet, "/api/geocode", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	g.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}
