// Package geo provides great-circle distance and bounding-box helpers.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMiles is the mean Earth radius used for haversine distances.
const EarthRadiusMiles = 3958.8

// milesPerDegreeLat is the length of one degree of latitude.
const milesPerDegreeLat = math.Pi * EarthRadiusMiles / 180

// Point represents a validated geographical coordinate.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPoint validates and builds a Point. Out-of-range values are rejected, never clamped.
func NewPoint(lat, lon float64) (Point, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return Point{}, fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return Point{}, fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}
	return Point{Latitude: lat, Longitude: lon}, nil
}

// Valid reports whether p is inside the coordinate ranges.
func (p Point) Valid() bool {
	_, err := NewPoint(p.Latitude, p.Longitude)
	return err == nil
}

// IsZero reports whether p is the zero value, which sources use for "no coordinates".
func (p Point) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
}

// DistanceMiles returns the haversine distance between a and b.
func DistanceMiles(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

// WithinRadius reports whether point lies within radiusMiles of center.
func WithinRadius(center, point Point, radiusMiles float64) bool {
	return DistanceMiles(center, point) <= radiusMiles
}

// Box is a latitude/longitude rectangle.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
	// CrossesAntimeridian is set when the box wraps past ±180; MinLon > MaxLon in that case.
	CrossesAntimeridian bool
}

// BoundingBox returns the smallest lat/lon box enclosing the circle of radiusMiles around center.
func BoundingBox(center Point, radiusMiles float64) Box {
	if radiusMiles < 0 {
		radiusMiles = 0
	}
	dLat := radiusMiles / milesPerDegreeLat
	box := Box{
		MinLat: center.Latitude - dLat,
		MaxLat: center.Latitude + dLat,
	}

	// A box touching a pole spans every longitude.
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.MinLat = math.Max(box.MinLat, -90)
		box.MaxLat = math.Min(box.MaxLat, 90)
		box.MinLon = -180
		box.MaxLon = 180
		return box
	}

	dLon := dLat / math.Cos(toRadians(center.Latitude))
	if dLon >= 180 {
		box.MinLon = -180
		box.MaxLon = 180
		return box
	}

	box.MinLon = center.Longitude - dLon
	box.MaxLon = center.Longitude + dLon
	if box.MinLon < -180 {
		box.MinLon += 360
		box.CrossesAntimeridian = true
	}
	if box.MaxLon > 180 {
		box.MaxLon -= 360
		box.CrossesAntimeridian = true
	}
	return box
}

// Contains reports whether p is inside the box.
func (b Box) Contains(p Point) bool {
	if p.Latitude < b.MinLat || p.Latitude > b.MaxLat {
		return false
	}
	if b.CrossesAntimeridian {
		return p.Longitude >= b.MinLon || p.Longitude <= b.MaxLon
	}
	return p.Longitude >= b.MinLon && p.Longitude <= b.MaxLon
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
