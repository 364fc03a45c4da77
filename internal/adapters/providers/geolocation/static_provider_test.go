package geolocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

func TestStaticGeocoder_Resolve(t *testing.T) {
	g := NewStaticGeocoder()

	point, err := g.Resolve(context.Background(), "phoenix, az 85018")
	require.NoError(t, err)
	assert.Equal(t, 33.4484, point.Latitude)

	_, err = g.Resolve(context.Background(), "Zzyzx Nowhere")
	assert.ErrorIs(t, err, apperrors.ErrGeocodeNotFound)

	_, err = g.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.ErrGeocodeNotFound)
}

func TestStaticGeocoder_LongestNameWins(t *testing.T) {
	g := NewStaticGeocoder(
		City{Name: "Mesa", State: "AZ", Location: entities.GeoPoint{Latitude: 33.4152, Longitude: -111.8315}},
		City{Name: "Mesa Verde", State: "CO", Location: entities.GeoPoint{Latitude: 37.2309, Longitude: -108.4618}},
	)
	addr, err := g.Geocode(context.Background(), "near Mesa Verde")
	require.NoError(t, err)
	assert.Equal(t, "CO", addr.State)
}

func TestStaticGeocoder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStaticGeocoder().Resolve(ctx, "Phoenix")
	assert.ErrorIs(t, err, apperrors.ErrGeocodeUnavailable)
}
