// Package scene holds the data model built by the parser and consumed by the
// renderer: a video canvas, an ordered list of typed objects, and each
// object's time-ordered key frames. Everything here is passive; once parsing
// finishes a Scene is read-only and safe to render at any timestamp.
package scene

import (
	"image/color"

	"overlayscript/gpx"
)

// Position is one of the six screen anchors (three horizontal, two vertical)
// that text-style objects attach to.
type Position int

const (
	TopLeft Position = iota
	TopMiddle
	TopRight
	BottomLeft
	BottomMiddle
	BottomRight

	NumPositions
)

// Top reports whether the anchor is on the top row.
func (p Position) Top() bool {
	return p <= TopRight
}

// Scene is the parsed script: canvas size, objects in file order, and the
// map-provider configuration used by gpx map widgets.
type Scene struct {
	VideoWidth  int
	VideoHeight int

	Objects []Object

	MapURLBase string
	MapAPIKey  string
}

// Object is implemented by every scene object variant. The two methods give
// the renderer a uniform view of an object's key-frame timeline; everything
// else is variant-specific and reached by a type switch.
type Object interface {
	FrameCount() int
	FrameTime(i int) float64
}

type Rectangle struct {
	Color  color.NRGBA
	Frames []RectangleFrame
}

type RectangleFrame struct {
	Timestamp      float64
	X1, Y1, X2, Y2 int
}

func (r *Rectangle) FrameCount() int         { return len(r.Frames) }
func (r *Rectangle) FrameTime(i int) float64 { return r.Frames[i].Timestamp }

// Svg is an embedded vector graphic drawn scaled into a moving viewport.
// Path is resolved against the script's base directory at parse time; the
// asset itself is loaded lazily by the renderer.
type Svg struct {
	Path   string
	Frames []SvgFrame
}

type SvgFrame struct {
	Timestamp      float64
	X1, Y1, X2, Y2 int
}

func (s *Svg) FrameCount() int         { return len(s.Frames) }
func (s *Svg) FrameTime(i int) float64 { return s.Frames[i].Timestamp }

type Score struct {
	Label    string
	Name     string
	Position Position
	Frames   []ScoreFrame
}

type ScoreFrame struct {
	Timestamp float64
	Value     int
}

func (s *Score) FrameCount() int         { return len(s.Frames) }
func (s *Score) FrameTime(i int) float64 { return s.Frames[i].Timestamp }

type TimeCounter struct {
	Position Position
	Frames   []TimeFrame
}

type TimeFrame struct {
	Timestamp float64
	Value     float64
}

func (t *TimeCounter) FrameCount() int         { return len(t.Frames) }
func (t *TimeCounter) FrameTime(i int) float64 { return t.Frames[i].Timestamp }

type Point struct {
	X, Y float64
}

type Curve struct {
	Color  color.NRGBA
	Frames []CurveFrame
}

type CurveFrame struct {
	Timestamp   float64
	Points      [4]Point
	T           float64
	StrokeWidth float64
}

func (c *Curve) FrameCount() int         { return len(c.Frames) }
func (c *Curve) FrameTime(i int) float64 { return c.Frames[i].Timestamp }

type Text struct {
	Position Position
	Frames   []TextFrame
}

type TextFrame struct {
	Timestamp float64
	Text      string
}

func (t *Text) FrameCount() int         { return len(t.Frames) }
func (t *Text) FrameTime(i int) float64 { return t.Frames[i].Timestamp }

// Gpx binds a parsed track to the overlay timeline. Each key frame maps a
// video timestamp to a track time (seconds relative to the track's first
// sample); the renderer interpolates between them and looks the result up in
// the track. Sub-object pointers are nil when the script leaves them out.
type Gpx struct {
	Track *gpx.Track

	Speed     *SpeedWidget
	Elevation *ElevationWidget
	Distance  *DistanceWidget
	Map       *MapWidget

	Frames []GpxFrame
}

type GpxFrame struct {
	Timestamp float64
	TrackTime float64
}

func (g *Gpx) FrameCount() int         { return len(g.Frames) }
func (g *Gpx) FrameTime(i int) float64 { return g.Frames[i].Timestamp }

type SpeedWidget struct {
	Position Position
	Dial     bool
}

type ElevationWidget struct {
	Position Position
}

type DistanceWidget struct {
	Position Position
}

type MapWidget struct {
	Position Position
	Zoom     int
	Trace    []gpx.TracePoint
}
