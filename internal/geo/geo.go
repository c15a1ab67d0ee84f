package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

const earthRadiusMeters = 6371000

var ErrInvalidPoint = errors.New("location must be \"lat, lng\"")

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Parse reads the "lat, lng" form browsers report.
func Parse(s string) (Point, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, ErrInvalidPoint
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Point{}, ErrInvalidPoint
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return Point{}, ErrInvalidPoint
	}
	// NaN fails every comparison, so it has to be rejected on its own
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Point{}, ErrInvalidPoint
	}
	return Point{Lat: lat, Lng: lng}, nil
}

func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within reports whether b lies inside radius meters of a.
func Within(a, b Point, radius float64) bool {
	return Distance(a, b) <= radius
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
