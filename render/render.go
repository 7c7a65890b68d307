// Package render evaluates a scene at a timestamp and paints it. Each object
// is animated by locating the two key frames bracketing the timestamp and
// interpolating between them with a rule specific to the object kind.
package render

import (
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"

	"overlayscript/fileerr"
	"overlayscript/maptile"
	"overlayscript/scene"
)

// scoreSlideTime is the window before a score key frame during which the
// changing digits slide into place.
const scoreSlideTime = 0.5

// Renderer paints frames for one scene. It owns lazily loaded fonts, vector
// assets and the map tile cache, so it must not be shared between
// goroutines; several renderers may share one read-only scene.
type Renderer struct {
	scene *scene.Scene
	maps  *maptile.Renderer

	fonts fontSet
	svgs  map[string]*svgAsset

	// Per-frame vertical stacking offset for each screen anchor.
	offsets [scene.NumPositions]float64
}

func New(s *scene.Scene, maps *maptile.Renderer) *Renderer {
	return &Renderer{
		scene: s,
		maps:  maps,
		svgs:  make(map[string]*svgAsset),
	}
}

// Render paints the scene at the given timestamp. The second return value is
// false when nothing was drawn (every object inactive); the pixel buffer has
// straight alpha and the scene's configured resolution.
func (r *Renderer) Render(timestamp float64) (*image.RGBA, bool, error) {
	dc := gg.NewContext(r.scene.VideoWidth, r.scene.VideoHeight)

	for i := range r.offsets {
		r.offsets[i] = 0
	}

	painted := false
	for _, obj := range r.scene.Objects {
		idx, factor, active := findSpan(obj, timestamp)
		if !active {
			continue
		}

		var err error
		switch o := obj.(type) {
		case *scene.Rectangle:
			r.drawRectangle(dc, o, idx, factor)
		case *scene.Svg:
			err = r.drawSvg(dc, o, idx, factor)
		case *scene.Score:
			err = r.drawScore(dc, o, idx, factor, timestamp)
		case *scene.TimeCounter:
			err = r.drawTimeCounter(dc, o, idx, factor)
		case *scene.Curve:
			r.drawCurve(dc, o, idx, factor)
		case *scene.Text:
			err = r.drawText(dc, o, idx)
		case *scene.Gpx:
			err = r.drawGpx(dc, o, idx, factor)
		default:
			err = fmt.Errorf("unknown scene object %T", obj)
		}
		if err != nil {
			return nil, false, err
		}
		painted = true
	}

	return dc.Image().(*image.RGBA), painted, nil
}

// findSpan locates the key frames bracketing timestamp. The returned index
// is the end frame; factor is the interpolation position between the frame
// before it and itself. active is false when the object has not started yet
// or has already ended.
func findSpan(obj scene.Object, timestamp float64) (int, float64, bool) {
	n := obj.FrameCount()

	end := -1
	for i := 0; i < n; i++ {
		if obj.FrameTime(i) > timestamp {
			end = i
			break
		}
	}
	if end <= 0 {
		return 0, 0, false
	}

	s := obj.FrameTime(end - 1)
	e := obj.FrameTime(end)
	return end, (timestamp - s) / (e - s), true
}

func lerp(a, b, factor float64) float64 {
	return a + factor*(b-a)
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (r *Renderer) drawRectangle(dc *gg.Context, rect *scene.Rectangle,
	idx int, factor float64) {
	s, e := rect.Frames[idx-1], rect.Frames[idx]

	x1 := int(math.Round(lerp(float64(s.X1), float64(e.X1), factor)))
	y1 := int(math.Round(lerp(float64(s.Y1), float64(e.Y1), factor)))
	x2 := int(math.Round(lerp(float64(s.X2), float64(e.X2), factor)))
	y2 := int(math.Round(lerp(float64(s.Y2), float64(e.Y2), factor)))

	x1 = clamp(x1, 0, r.scene.VideoWidth)
	y1 = clamp(y1, 0, r.scene.VideoHeight)
	x2 = clamp(x2, x1, r.scene.VideoWidth)
	y2 = clamp(y2, y1, r.scene.VideoHeight)

	dc.SetColor(rect.Color)
	dc.DrawRectangle(float64(x1), float64(y1), float64(x2-x1), float64(y2-y1))
	dc.Fill()
}

func (r *Renderer) drawSvg(dc *gg.Context, svg *scene.Svg,
	idx int, factor float64) error {
	asset, err := r.loadSvg(svg.Path)
	if err != nil {
		return err
	}

	s, e := svg.Frames[idx-1], svg.Frames[idx]
	x1 := lerp(float64(s.X1), float64(e.X1), factor)
	y1 := lerp(float64(s.Y1), float64(e.Y1), factor)
	x2 := lerp(float64(s.X2), float64(e.X2), factor)
	y2 := lerp(float64(s.Y2), float64(e.Y2), factor)

	return asset.draw(dc, x1, y1, x2-x1, y2-y1)
}

func (r *Renderer) drawCurve(dc *gg.Context, curve *scene.Curve,
	idx int, factor float64) {
	s, e := curve.Frames[idx-1], curve.Frames[idx]

	var points [4]scene.Point
	for i := range points {
		points[i].X = lerp(s.Points[i].X, e.Points[i].X, factor)
		points[i].Y = lerp(s.Points[i].Y, e.Points[i].Y, factor)
	}

	t := lerp(s.T, e.T, factor)
	if t <= 0 {
		return
	}
	if t < 1 {
		points = clipCurve(points, t)
	}

	dc.MoveTo(points[0].X, points[0].Y)
	dc.CubicTo(points[1].X, points[1].Y,
		points[2].X, points[2].Y,
		points[3].X, points[3].Y)
	dc.SetColor(curve.Color)
	dc.SetLineWidth(lerp(s.StrokeWidth, e.StrokeWidth, factor))
	dc.Stroke()
}

// clipCurve returns the control points of the sub-curve from parameter 0 to
// t, the leading half of a De Casteljau subdivision at t.
func clipCurve(p [4]scene.Point, t float64) [4]scene.Point {
	clip := func(a, b, c, d float64) (float64, float64, float64, float64) {
		ab := lerp(a, b, t)
		bc := lerp(b, c, t)
		cd := lerp(c, d, t)
		abc := lerp(ab, bc, t)
		bcd := lerp(bc, cd, t)
		return a, ab, abc, lerp(abc, bcd, t)
	}

	var out [4]scene.Point
	out[0].X, out[1].X, out[2].X, out[3].X = clip(p[0].X, p[1].X, p[2].X, p[3].X)
	out[0].Y, out[1].Y, out[2].Y, out[3].Y = clip(p[0].Y, p[1].Y, p[2].Y, p[3].Y)
	return out
}

func (r *Renderer) drawTimeCounter(dc *gg.Context, counter *scene.TimeCounter,
	idx int, factor float64) error {
	s, e := counter.Frames[idx-1], counter.Frames[idx]
	value := lerp(s.Value, e.Value, factor)

	face, err := r.fonts.mono(counterFontSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	r.drawAnchored(dc, counter.Position, formatTimeValue(value))
	return nil
}

// formatTimeValue renders a second count in the shortest of the "1 h 02 m
// 03 s", "2 m 03 s" and "3 s" shapes that fits its magnitude.
func formatTimeValue(value float64) string {
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}

	total := int(math.Round(value))
	h := total / 3600
	m := total % 3600 / 60
	s := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%s%d h %02d m %02d s", sign, h, m, s)
	case m > 0:
		return fmt.Sprintf("%s%d m %02d s", sign, m, s)
	default:
		return fmt.Sprintf("%s%d s", sign, s)
	}
}

func (r *Renderer) drawText(dc *gg.Context, text *scene.Text, idx int) error {
	face, err := r.fonts.regular(textFontSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	// The earlier frame's string stays up until the next frame starts.
	r.drawAnchored(dc, text.Position, text.Frames[idx-1].Text)
	return nil
}

func (r *Renderer) drawScore(dc *gg.Context, score *scene.Score,
	idx int, factor float64, timestamp float64) error {
	s, e := score.Frames[idx-1], score.Frames[idx]

	face, err := r.fonts.mono(counterFontSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)

	prefix := ""
	if score.Label != "" {
		prefix = score.Label + " "
	}

	remaining := e.Timestamp - timestamp
	if s.Value != e.Value && remaining < scoreSlideTime {
		r.drawScoreSlide(dc, score, prefix, s.Value, e.Value,
			remaining/scoreSlideTime)
	} else {
		r.drawAnchored(dc, score.Position,
			fmt.Sprintf("%s%d", prefix, s.Value))
	}

	if score.Name != "" {
		regular, err := r.fonts.regular(textFontSize)
		if err != nil {
			return err
		}
		dc.SetFontFace(regular)
		r.drawAnchored(dc, mirrorPosition(score.Position), score.Name)
	}
	return nil
}

// drawScoreSlide paints the digit transition: the old value slides up out of
// the line while the new one slides in from below, both clipped to one line
// height. shift is the fraction of the slide still remaining.
func (r *Renderer) drawScoreSlide(dc *gg.Context, score *scene.Score,
	prefix string, oldValue, newValue int, shift float64) {
	lineHeight := dc.FontHeight() * lineSpacing

	x, y := r.anchorPoint(score.Position, lineHeight)

	dc.Push()
	dc.DrawRectangle(0, y, float64(r.scene.VideoWidth), lineHeight)
	dc.Clip()

	offset := (1 - shift) * lineHeight
	drawPositionedText(dc, score.Position,
		fmt.Sprintf("%s%d", prefix, oldValue), x, y-offset, lineHeight)
	drawPositionedText(dc, score.Position,
		fmt.Sprintf("%s%d", prefix, newValue), x, y+lineHeight-offset,
		lineHeight)

	dc.ResetClip()
	dc.Pop()

	r.offsets[score.Position] += lineHeight
}

func (r *Renderer) drawGpx(dc *gg.Context, obj *scene.Gpx,
	idx int, factor float64) error {
	s, e := obj.Frames[idx-1], obj.Frames[idx]
	trackTime := lerp(s.TrackTime, e.TrackTime, factor)

	sample, ok := obj.Track.Lookup(obj.Track.Start() + trackTime)
	if !ok {
		// A recording gap is a normal no-draw outcome.
		return nil
	}

	if obj.Speed != nil {
		if err := r.drawSpeed(dc, obj.Speed, sample.Speed); err != nil {
			return err
		}
	}
	if obj.Elevation != nil {
		if err := r.drawElevation(dc, obj.Elevation, sample.Elevation); err != nil {
			return err
		}
	}
	if obj.Distance != nil {
		if err := r.drawDistance(dc, obj.Distance, sample.Distance); err != nil {
			return err
		}
	}
	if obj.Map != nil {
		if err := r.drawMap(dc, obj.Map, sample.Lat, sample.Lon); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) loadSvg(path string) (*svgAsset, error) {
	if asset, ok := r.svgs[path]; ok {
		return asset, nil
	}
	asset, err := loadSvgAsset(path)
	if err != nil {
		return nil, fileerr.Wrap(path, err)
	}
	r.svgs[path] = asset
	return asset, nil
}
