package geo

import (
	"math"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/types"
)

const earthRadiusMeters = 6371000

// DistanceMeters returns the great-circle distance between two points using
// the haversine formula. Accuracy is well within the scan-radius tolerances
// this platform works with.
func DistanceMeters(a, b types.GeographyPoint) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLng*sinLng

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// WithinRadius reports whether b lies within radiusMeters of a.
func WithinRadius(a, b types.GeographyPoint, radiusMeters float64) bool {
	if radiusMeters <= 0 {
		return false
	}
	return DistanceMeters(a, b) <= radiusMeters
}
