package spatial

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// GreatCircleLength sums the haversine distances along a lon/lat line string
func GreatCircleLength(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += HaversineDistance(ls[i-1].Lat(), ls[i-1].Lon(), ls[i].Lat(), ls[i].Lon())
	}
	return total
}

// Projector maps lon/lat degrees onto a local planar frame in metres.
// It is an equirectangular projection around Anchor, accurate enough for
// city-sized road networks.
type Projector struct {
	Anchor s2.LatLng
	cosLat float64
}

// NewProjector creates a projector anchored at the given lon/lat
func NewProjector(lon, lat float64) *Projector {
	anchor := s2.LatLngFromDegrees(lat, lon)
	return &Projector{
		Anchor: anchor,
		cosLat: math.Cos(anchor.Lat.Radians()),
	}
}

// Project converts lon/lat degrees into planar metres east/north of the anchor
func (p *Projector) Project(lon, lat float64) Point {
	ll := s2.LatLngFromDegrees(lat, lon)
	dLng := (ll.Lng - p.Anchor.Lng).Radians()
	dLat := (ll.Lat - p.Anchor.Lat).Radians()
	return Point{
		X: dLng * p.cosLat * EarthRadiusMeters,
		Y: dLat * EarthRadiusMeters,
	}
}

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)
