package providers

import (
	"context"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

// Geocoder resolves free-text locations to coordinates.
type Geocoder interface {
	// Resolve returns the point for locationText. Failures are *errors.GeocodeError
	// with kind NotFound, RateLimited or Unavailable.
	Resolve(ctx context.Context, locationText string) (entities.GeoPoint, error)
}

// GeocodedAddress is a resolved location with its address components.
type GeocodedAddress struct {
	FormattedAddress string            `json:"formatted_address"`
	City             string            `json:"city,omitempty"`
	State            string            `json:"state,omitempty"`
	ZipCode          string            `json:"zip_code,omitempty"`
	Country          string            `json:"country,omitempty"`
	Location         entities.GeoPoint `json:"location"`
}

// AddressGeocoder is a Geocoder that also returns address components.
type AddressGeocoder interface {
	Geocoder
	Geocode(ctx context.Context, address string) (*GeocodedAddress, error)
}
