package standardize

import (
	"math"
	"strconv"
	"strings"
)

// mercatorRadius is the sphere radius of EPSG:3857
const mercatorRadius = 6378137.0

// LooksLikeMercator reports whether x, y are EPSG:3857 meters rather than degrees
func LooksLikeMercator(x, y float64) bool {
	degrees := x >= -180 && x <= 180 && y >= -90 && y <= 90
	meters := math.Abs(x) > 1000 || math.Abs(y) > 1000
	return !degrees && meters
}

// MercatorToWGS84 converts EPSG:3857 meters to longitude and latitude
func MercatorToWGS84(x, y float64) (lon, lat float64) {
	lon = x / mercatorRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/mercatorRadius)) - math.Pi/2) * 180 / math.Pi
	return clamp(lon, -180, 180), clamp(lat, -90, 90)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Coordinates parses a longitude/latitude pair, repairing Web Mercator
// values. ok is false when either value is missing or out of range.
func Coordinates(lonText, latText string) (lon, lat float64, ok bool) {
	lonText, latText = strings.TrimSpace(lonText), strings.TrimSpace(latText)
	if lonText == "" || latText == "" {
		return 0, 0, false
	}
	x, err := strconv.ParseFloat(lonText, 64)
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.ParseFloat(latText, 64)
	if err != nil {
		return 0, 0, false
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, 0, false
	}

	if LooksLikeMercator(x, y) {
		x, y = MercatorToWGS84(x, y)
	}
	if x < -180 || x > 180 || y < -90 || y > 90 {
		return 0, 0, false
	}
	return x, y, true
}
