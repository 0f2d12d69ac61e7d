package route

import (
	"errors"
	"math"

	"github.com/MohammedFaisal0/masari-safe/internal/trip"
)

// Route is a fixed ordered polyline from home (first point) to school (last point).
type Route struct {
	Name   string
	points []trip.Coordinate
}

var ErrTooFewPoints = errors.New("route needs at least two waypoints")

func New(name string, points []trip.Coordinate) (*Route, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}
	cp := make([]trip.Coordinate, len(points))
	copy(cp, points)
	return &Route{Name: name, points: cp}, nil
}

// Default is the demo route through Riyadh.
func Default() *Route {
	r, _ := New("riyadh-demo", []trip.Coordinate{
		{Lat: 24.7136, Lon: 46.6753}, // home
		{Lat: 24.7150, Lon: 46.6780},
		{Lat: 24.7170, Lon: 46.6810},
		{Lat: 24.7190, Lon: 46.6850},
		{Lat: 24.7210, Lon: 46.6880},
		{Lat: 24.7230, Lon: 46.6900}, // school
	})
	return r
}

// Points returns a copy of the waypoints.
func (r *Route) Points() []trip.Coordinate {
	cp := make([]trip.Coordinate, len(r.points))
	copy(cp, r.points)
	return cp
}

func (r *Route) Home() trip.Coordinate   { return r.points[0] }
func (r *Route) School() trip.Coordinate { return r.points[len(r.points)-1] }

// segment maps progress in percent to the bounding segment index and the
// fraction travelled inside it. The index is clamped to len-2 so that
// progress >= 100 lands on the final endpoint.
func (r *Route) segment(progress float64) (int, float64) {
	if progress < 0 || math.IsNaN(progress) {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	n := len(r.points) - 1
	f := progress / 100 * float64(n)
	i := int(math.Floor(f))
	if i > n-1 {
		i = n - 1
	}
	return i, f - float64(i)
}

// Position interpolates the bus coordinate for progress in [0,100].
func (r *Route) Position(progress float64) trip.Coordinate {
	i, frac := r.segment(progress)
	p0, p1 := r.points[i], r.points[i+1]
	return trip.Coordinate{
		Lat: p0.Lat + (p1.Lat-p0.Lat)*frac,
		Lon: p0.Lon + (p1.Lon-p0.Lon)*frac,
	}
}

// Bearing returns the heading in degrees of the segment the bus is on.
func (r *Route) Bearing(progress float64) float64 {
	i, _ := r.segment(progress)
	return bearingDeg(r.points[i], r.points[i+1])
}

// LengthMeters is the haversine length of the polyline.
func (r *Route) LengthMeters() float64 {
	sum := 0.0
	for i := 1; i < len(r.points); i++ {
		sum += haversine(r.points[i-1], r.points[i])
	}
	return sum
}

func haversine(a, b trip.Coordinate) float64 {
	const R = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return R * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func bearingDeg(a, b trip.Coordinate) float64 {
	y := math.Sin((b.Lon-a.Lon)*math.Pi/180.0) * math.Cos(b.Lat*math.Pi/180.0)
	x := math.Cos(a.Lat*math.Pi/180.0)*math.Sin(b.Lat*math.Pi/180.0) - math.Sin(a.Lat*math.Pi/180.0)*math.Cos(b.Lat*math.Pi/180.0)*math.Cos((b.Lon-a.Lon)*math.Pi/180.0)
	brng := math.Atan2(y, x) * 180.0 / math.Pi
	if brng < 0 {
		brng += 360
	}
	return brng
}
