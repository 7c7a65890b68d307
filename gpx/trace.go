package gpx

import (
	gpxgo "github.com/tkrajina/gpxgo/gpx"

	"overlayscript/fileerr"
)

// TracePoint is a bare coordinate used for drawing the route on a map.
type TracePoint struct {
	Lat float64
	Lon float64
}

// LoadTrace reads a GPX file and flattens every segment of every track into
// a single polyline. Unlike Parse it only needs coordinates, so points
// without time or telemetry are kept.
func LoadTrace(path string) ([]TracePoint, error) {
	data, err := gpxgo.ParseFile(path)
	if err != nil {
		return nil, fileerr.Wrap(path, err)
	}

	var trace []TracePoint
	for _, track := range data.Tracks {
		for _, segment := range track.Segments {
			for _, point := range segment.Points {
				trace = append(trace, TracePoint{
					Lat: point.Latitude,
					Lon: point.Longitude,
				})
			}
		}
	}
	if len(trace) == 0 {
		return nil, &FormatError{File: path, Msg: "no usable track points in GPX file"}
	}

	return trace, nil
}
