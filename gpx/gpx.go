// Package gpx parses GPS track files and answers "what was the telemetry at
// time T" queries against the result.
package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"overlayscript/fileerr"
)

// MaxTimeGap is how far (in seconds) a query may fall from a sample before
// the sample is considered unrelated to it. Gaps wider than this come from
// the GPS recorder pausing and interpolating across them would invent
// movement that never happened.
const MaxTimeGap = 5

// earthRadius is the WGS84 equatorial radius in metres.
const earthRadius = 6378137.0

// Sample is one usable track point. Time is seconds since the Unix epoch.
type Sample struct {
	Lat       float64
	Lon       float64
	Time      float64
	Speed     float64 // m/s
	Elevation float64 // m
	Distance  float64 // cumulative m from the start of the track
}

// Track is an immutable, time-sorted, duplicate-free sequence of samples.
type Track struct {
	samples []Sample
}

// FormatError reports a malformed or unusable GPX file.
type FormatError struct {
	File string
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

type xmlGpx struct {
	Tracks []xmlTrk `xml:"trk"`
}

type xmlTrk struct {
	Segments []xmlSeg `xml:"trkseg"`
}

type xmlSeg struct {
	Points []xmlTrkpt `xml:"trkpt"`
}

// xmlTrkpt matches a track point. Speed may appear as a direct child (GPX
// 1.0) or inside a TrackPointExtension block (Garmin's vendor extension);
// matching by local name covers both extension namespace versions.
type xmlTrkpt struct {
	Lat      float64  `xml:"lat,attr"`
	Lon      float64  `xml:"lon,attr"`
	Time     string   `xml:"time"`
	Ele      *float64 `xml:"ele"`
	Speed    *float64 `xml:"speed"`
	ExtSpeed *float64 `xml:"extensions>TrackPointExtension>speed"`
}

// Parse reads a GPX file into a Track.
func Parse(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fileerr.Wrap(path, err)
	}
	defer f.Close()

	return Read(f, path)
}

// Read parses GPX data from r; name is used in error messages.
func Read(r io.Reader, name string) (*Track, error) {
	var doc xmlGpx
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &FormatError{File: name, Msg: err.Error()}
	}

	var samples []Sample
	distance := 0.0

	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, pt := range seg.Points {
				if pt.Lat < -90 || pt.Lat > 90 {
					return nil, &FormatError{File: name, Msg: "invalid lat"}
				}
				if pt.Lon < -180 || pt.Lon > 180 {
					return nil, &FormatError{File: name, Msg: "invalid lon"}
				}

				speed := pt.Speed
				if speed == nil {
					speed = pt.ExtSpeed
				}
				// A point missing any of time, speed or elevation
				// carries no usable telemetry.
				if pt.Time == "" || speed == nil || pt.Ele == nil {
					continue
				}

				t, err := parseTime(pt.Time)
				if err != nil {
					return nil, &FormatError{File: name, Msg: err.Error()}
				}

				s := Sample{
					Lat:       pt.Lat,
					Lon:       pt.Lon,
					Time:      t,
					Speed:     *speed,
					Elevation: *pt.Ele,
				}
				if len(samples) > 0 {
					distance += haversine(samples[len(samples)-1], s)
				}
				s.Distance = distance
				samples = append(samples, s)
			}
		}
	}

	if len(samples) == 0 {
		return nil, &FormatError{File: name, Msg: "no usable track points in GPX file"}
	}

	return NewTrack(samples), nil
}

// NewTrack builds a track from raw samples, sorting by time and collapsing
// exact-time duplicates. The slice is taken over by the track.
func NewTrack(samples []Sample) *Track {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Time < samples[j].Time
	})

	dst := samples[:0]
	for i, s := range samples {
		if i > 0 && s.Time == dst[len(dst)-1].Time {
			continue
		}
		dst = append(dst, s)
	}

	return &Track{samples: dst}
}

// Len returns the number of samples in the track.
func (t *Track) Len() int {
	return len(t.samples)
}

// Start returns the time of the first sample.
func (t *Track) Start() float64 {
	return t.samples[0].Time
}

// Lookup finds the telemetry at the given absolute time. Samples further
// than MaxTimeGap from the query are ignored; when the two bracketing
// samples are both close enough the result is interpolated between them.
// The second return value is false when no sample is in range.
func (t *Track) Lookup(timestamp float64) (Sample, bool) {
	points := t.samples
	n := len(points)

	// First sample with time >= timestamp.
	idx := sort.Search(n, func(i int) bool {
		return points[i].Time >= timestamp
	})
	if idx >= n || points[idx].Time != timestamp {
		idx--
	}

	if idx <= 0 && timestamp <= points[0].Time {
		if points[0].Time-timestamp <= MaxTimeGap {
			return points[0], true
		}
		return Sample{}, false
	}

	if idx >= n-1 {
		if timestamp-points[n-1].Time <= MaxTimeGap {
			return points[n-1], true
		}
		return Sample{}, false
	}

	if timestamp-points[idx].Time > MaxTimeGap {
		if points[idx+1].Time-timestamp <= MaxTimeGap {
			return points[idx+1], true
		}
		return Sample{}, false
	}

	if points[idx+1].Time-timestamp > MaxTimeGap {
		return points[idx], true
	}

	// Both neighbours are in range, interpolate.
	a, b := points[idx], points[idx+1]
	f := (timestamp - a.Time) / (b.Time - a.Time)

	return Sample{
		Lat:       a.Lat + f*(b.Lat-a.Lat),
		Lon:       a.Lon + f*(b.Lon-a.Lon),
		Time:      timestamp,
		Speed:     a.Speed + f*(b.Speed-a.Speed),
		Elevation: a.Elevation + f*(b.Elevation-a.Elevation),
		Distance:  a.Distance + f*(b.Distance-a.Distance),
	}, true
}

// parseTime accepts only ISO-8601 UTC timestamps with a literal Z suffix.
func parseTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "Z") {
		return 0, fmt.Errorf("timezone of %q is not Z", s)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return float64(t.UnixNano()) / float64(time.Second), nil
}

// haversine returns the great-circle distance between two samples in metres.
func haversine(a, b Sample) float64 {
	lat1 := a.Lat * math.Pi / 180
	lon1 := a.Lon * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lon2 := b.Lon * math.Pi / 180

	sinHalfLat := math.Sin((lat1 - lat2) / 2)
	sinHalfLon := math.Sin((lon1 - lon2) / 2)

	d := 2 * math.Asin(math.Sqrt(sinHalfLat*sinHalfLat+
		math.Cos(lat1)*math.Cos(lat2)*sinHalfLon*sinHalfLon))

	return d * earthRadius
}
