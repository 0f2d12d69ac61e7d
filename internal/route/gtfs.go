package route

import (
	"fmt"
	"os"

	"github.com/jamespfennell/gtfs"

	"github.com/MohammedFaisal0/masari-safe/internal/trip"
)

// LoadGTFSShape builds a route from one shape of a GTFS static zip.
// An empty shapeID selects the first shape in the feed.
func LoadGTFSShape(path, shapeID string) (*Route, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gtfs feed: %w", err)
	}
	static, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("parse gtfs feed: %w", err)
	}
	return FromShapes(static.Shapes, shapeID)
}

// FromShapes picks shapeID (or the first shape) and converts its points.
func FromShapes(shapes []gtfs.Shape, shapeID string) (*Route, error) {
	for _, s := range shapes {
		if shapeID != "" && s.ID != shapeID {
			continue
		}
		pts := make([]trip.Coordinate, 0, len(s.Points))
		for _, p := range s.Points {
			pts = append(pts, trip.Coordinate{Lat: p.Latitude, Lon: p.Longitude})
		}
		r, err := New(s.ID, pts)
		if err != nil {
			return nil, fmt.Errorf("shape %q: %w", s.ID, err)
		}
		return r, nil
	}
	if shapeID == "" {
		return nil, fmt.Errorf("gtfs feed has no shapes")
	}
	return nil, fmt.Errorf("shape %q not found in gtfs feed", shapeID)
}
