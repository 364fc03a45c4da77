package entities

import "github.com/kceleski/agent-healthproassist-sub000/pkg/geo"

// GeoPoint represents validated geographical coordinates
type GeoPoint = geo.Point

// NewGeoPoint validates lat/lon and returns a GeoPoint
func NewGeoPoint(lat, lon float64) (GeoPoint, error) {
	return geo.NewPoint(lat, lon)
}
