package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// The operator UI's map layer consumes EPSG:3857 geometry, so positions and routes are
// projected here at the boundary rather than in the presentation code.

// PointMercator projects a WGS84 longitude/latitude into an EPSG:3857 point.
func PointMercator(longitude, latitude float64) geom.Point {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return geom.NewPoint(geom.Coordinates{
		XY: geom.XY{X: x, Y: y},
	})
}

// RoutePoint is one vertex of a mission route in WGS84 coordinates.
type RoutePoint struct {
	Lat float64
	Lon float64
}

// RoutePolyline builds an EPSG:3857 LineString from mission waypoints for
// the map layer. Returns an empty LineString for fewer than 2 points.
func RoutePolyline(points []RoutePoint) geom.LineString {
	if len(points) < 2 {
		return geom.LineString{}
	}
	f := wgs84.EPSG().Transform(4326, 3857)
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		x, y, _ := f(p.Lon, p.Lat, 0)
		flat = append(flat, x, y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}
