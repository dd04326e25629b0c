package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"freshdeal/models"
)

const earthRadiusKm = 6371.0

// CellPrecision is the geohash length used to bucket nearby origins (~150m cells).
const CellPrecision = 7

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HaversineDistanceKm returns the great-circle distance between two coordinates.
// Inputs are not validated; NaN in gives NaN out.
func HaversineDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * (math.Pi / 180.0)
	dLon := (lon2 - lon1) * (math.Pi / 180.0)

	lat1 = lat1 * (math.Pi / 180.0)
	lat2 = lat2 * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DistanceFrom returns the distance from origin to r. ok is false when r has no
// coordinates, in which case callers omit the distance instead of showing zero.
func DistanceFrom(r models.Restaurant, origin Point) (km float64, ok bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return 0, false
	}
	return HaversineDistanceKm(origin.Lat, origin.Lon, *r.Latitude, *r.Longitude), true
}

// Cell returns the geohash of p at CellPrecision.
func Cell(p Point) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lon, CellPrecision)
}

// Valid reports whether p is a usable coordinate.
func Valid(p Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}
