// Package routesrc builds planner routes from recorded or exported GPS files.
package routesrc

import (
	"errors"
	"fmt"
	"io"

	"github.com/rubiojr/gasroute/internal/fuelroute"
	"github.com/tkrajina/gpxgo/gpx"
)

var ErrNoPoints = errors.New("gpx file has fewer than two points")

// FromGPX reads a GPX document and returns one segment per pair of consecutive
// points. Routes (<rte>) are preferred; without them the track segments (<trkseg>)
// are joined in file order.
func FromGPX(r io.Reader) ([]fuelroute.Segment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading gpx: %w", err)
	}
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing gpx: %w", err)
	}

	points := routePoints(doc)
	if len(points) < 2 {
		return nil, ErrNoPoints
	}

	segments := make([]fuelroute.Segment, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		meters := gpx.Distance2D(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude, true)
		segments = append(segments, fuelroute.Segment{
			Distance:     fuelroute.MetersToMiles(meters),
			EndLatitude:  cur.Latitude,
			EndLongitude: cur.Longitude,
		})
	}
	return segments, nil
}

func routePoints(doc *gpx.GPX) []gpx.GPXPoint {
	var points []gpx.GPXPoint
	for _, rte := range doc.Routes {
		points = append(points, rte.Points...)
	}
	if len(points) > 0 {
		return points
	}
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			points = append(points, seg.Points...)
		}
	}
	return points
}
