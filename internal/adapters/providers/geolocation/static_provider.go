package geolocation

import (
	"context"
	"sort"
	"strings"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

// City is one entry of a StaticGeocoder table.
type City struct {
	Name     string
	State    string
	Location entities.GeoPoint
}

// DefaultCities covers the metro areas used in local development.
var DefaultCities = []City{
	{Name: "Phoenix", State: "AZ", Location: entities.GeoPoint{Latitude: 33.4484, Longitude: -112.0740}},
	{Name: "Scottsdale", State: "AZ", Location: entities.GeoPoint{Latitude: 33.4942, Longitude: -111.9261}},
	{Name: "Tempe", State: "AZ", Location: entities.GeoPoint{Latitude: 33.4255, Longitude: -111.9400}},
	{Name: "Mesa", State: "AZ", Location: entities.GeoPoint{Latitude: 33.4152, Longitude: -111.8315}},
	{Name: "Tucson", State: "AZ", Location: entities.GeoPoint{Latitude: 32.2226, Longitude: -110.9747}},
	{Name: "Sedona", State: "AZ", Location: entities.GeoPoint{Latitude: 34.8697, Longitude: -111.7610}},
	{Name: "Flagstaff", State: "AZ", Location: entities.GeoPoint{Latitude: 35.1983, Longitude: -111.6513}},
	{Name: "New York", State: "NY", Location: entities.GeoPoint{Latitude: 40.7128, Longitude: -74.0060}},
	{Name: "Los Angeles", State: "CA", Location: entities.GeoPoint{Latitude: 34.0522, Longitude: -118.2437}},
	{Name: "San Francisco", State: "CA", Location: entities.GeoPoint{Latitude: 37.7749, Longitude: -122.4194}},
	{Name: "Chicago", State: "IL", Location: entities.GeoPoint{Latitude: 41.8781, Longitude: -87.6298}},
	{Name: "Houston", State: "TX", Location: entities.GeoPoint{Latitude: 29.7604, Longitude: -95.3698}},
	{Name: "Dallas", State: "TX", Location: entities.GeoPoint{Latitude: 32.7767, Longitude: -96.7970}},
	{Name: "Denver", State: "CO", Location: entities.GeoPoint{Latitude: 39.7392, Longitude: -104.9903}},
	{Name: "Seattle", State: "WA", Location: entities.GeoPoint{Latitude: 47.6062, Longitude: -122.3321}},
	{Name: "Miami", State: "FL", Location: entities.GeoPoint{Latitude: 25.7617, Longitude: -80.1918}},
}

// StaticGeocoder resolves locations from an in-memory city table.
type StaticGeocoder struct {
	cities []City
}

// NewStaticGeocoder creates a geocoder over cities, or DefaultCities when none are given.
// Longer names are matched first so "West Phoenix Heights" style tables stay unambiguous.
func NewStaticGeocoder(cities ...City) *StaticGeocoder {
	if len(cities) == 0 {
		cities = DefaultCities
	}
	sorted := append([]City(nil), cities...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Name) > len(sorted[j].Name) })
	return &StaticGeocoder{cities: sorted}
}

// Resolve implements providers.Geocoder.
func (s *StaticGeocoder) Resolve(ctx context.Context, locationText string) (entities.GeoPoint, error) {
	addr, err := s.Geocode(ctx, locationText)
	if err != nil {
		return entities.GeoPoint{}, err
	}
	return addr.Location, nil
}

// Geocode returns the first city whose name appears in address, case-insensitively.
func (s *StaticGeocoder) Geocode(ctx context.Context, address string) (*providers.GeocodedAddress, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, address, err)
	}
	text := strings.ToLower(address)
	for _, c := range s.cities {
		if strings.TrimSpace(text) != "" && strings.Contains(text, strings.ToLower(c.Name)) {
			return &providers.GeocodedAddress{
				FormattedAddress: c.Name + ", " + c.State,
				City:             c.Name,
				State:            c.State,
				Country:          "US",
				Location:         c.Location,
			}, nil
		}
	}
	return nil, apperrors.NewGeocodeError(apperrors.GeocodeNotFound, address, nil)
}
