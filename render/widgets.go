package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"overlayscript/maptile"
	"overlayscript/scene"
)

func colorRGBA(r, g, b, a float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(r * 255),
		G: uint8(g * 255),
		B: uint8(b * 255),
		A: uint8(a * 255),
	}
}

const (
	mapSize      = 256.0
	markerRadius = 7.0

	dialRadius = 56.0
	// The needle sweeps from 135 degrees (pointing down-left) through a
	// 270 degree arc as the speed goes from zero to dialMaxSpeed km/h.
	dialStartAngle = 0.75 * math.Pi
	dialSweep      = 1.5 * math.Pi
	dialMaxSpeed   = 60.0
)

func (r *Renderer) drawSpeed(dc *gg.Context, widget *scene.SpeedWidget,
	speed float64) error {
	kmh := speed * 3.6

	if widget.Dial {
		r.drawSpeedDial(dc, widget.Position, kmh)
		return nil
	}

	face, err := r.fonts.mono(counterFontSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	r.drawAnchored(dc, widget.Position, fmt.Sprintf("%.1f km/h", kmh))
	return nil
}

// drawSpeedDial paints a round gauge with a needle, stacked on the widget's
// anchor like a text line of dial height.
func (r *Renderer) drawSpeedDial(dc *gg.Context, pos scene.Position, kmh float64) {
	size := 2 * dialRadius
	x, y := r.anchorPoint(pos, size)

	// anchorPoint gives the anchor edge; shift so the dial body stays on
	// screen for middle and right anchors.
	switch pos % 3 {
	case 1:
		x -= dialRadius
	case 2:
		x -= size
	}
	cx, cy := x+dialRadius, y+dialRadius

	dc.SetRGBA(0, 0, 0, 0.6)
	dc.DrawCircle(cx, cy, dialRadius)
	dc.Fill()

	dc.SetRGBA(1, 1, 1, 0.9)
	dc.SetLineWidth(2)
	for i := 0; i <= 6; i++ {
		a := dialStartAngle + dialSweep*float64(i)/6
		dc.DrawLine(
			cx+math.Cos(a)*(dialRadius-10),
			cy+math.Sin(a)*(dialRadius-10),
			cx+math.Cos(a)*(dialRadius-4),
			cy+math.Sin(a)*(dialRadius-4))
		dc.Stroke()
	}

	frac := kmh / dialMaxSpeed
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	angle := dialStartAngle + dialSweep*frac

	dc.SetRGB(1, 0.2, 0.2)
	dc.SetLineWidth(3)
	dc.DrawLine(cx, cy,
		cx+math.Cos(angle)*(dialRadius-12),
		cy+math.Sin(angle)*(dialRadius-12))
	dc.Stroke()

	dc.SetRGB(1, 1, 1)
	dc.DrawCircle(cx, cy, 4)
	dc.Fill()

	face, err := r.fonts.mono(textFontSize / 2)
	if err == nil {
		dc.SetFontFace(face)
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", kmh),
			cx, cy+dialRadius/2, 0.5, 0.5)
	}

	r.offsets[pos] += size
}

func (r *Renderer) drawElevation(dc *gg.Context, widget *scene.ElevationWidget,
	elevation float64) error {
	face, err := r.fonts.mono(counterFontSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	r.drawAnchored(dc, widget.Position,
		fmt.Sprintf("%d m", int(math.Round(elevation))))
	return nil
}

func (r *Renderer) drawDistance(dc *gg.Context, widget *scene.DistanceWidget,
	distance float64) error {
	face, err := r.fonts.mono(counterFontSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)

	var text string
	if distance < 1000 {
		text = fmt.Sprintf("%d m", int(math.Round(distance)))
	} else {
		text = fmt.Sprintf("%.1f km", distance/1000)
	}
	r.drawAnchored(dc, widget.Position, text)
	return nil
}

func (r *Renderer) drawMap(dc *gg.Context, widget *scene.MapWidget,
	lat, lon float64) error {
	if r.maps == nil {
		return errors.New("scene uses a map widget but no tile source is configured")
	}

	x, y := r.anchorPoint(widget.Position, mapSize)
	switch widget.Position % 3 {
	case 1:
		x -= mapSize / 2
	case 2:
		x -= mapSize
	}

	err := r.maps.Draw(dc, maptile.View{
		Lat:  lat,
		Lon:  lon,
		Zoom: widget.Zoom,
		X:    int(x), Y: int(y),
		Width: mapSize, Height: mapSize,
		Trace: widget.Trace,
	})
	if err != nil {
		return err
	}

	// Position marker: a soft radial dot centered on the coordinate.
	cx, cy := x+mapSize/2, y+mapSize/2
	grad := gg.NewRadialGradient(cx, cy, 0, cx, cy, markerRadius)
	grad.AddColorStop(0, colorRGBA(0.9, 0.1, 0.1, 1))
	grad.AddColorStop(0.7, colorRGBA(0.9, 0.1, 0.1, 0.9))
	grad.AddColorStop(1, colorRGBA(0.9, 0.1, 0.1, 0))
	dc.SetFillStyle(grad)
	dc.DrawCircle(cx, cy, markerRadius)
	dc.Fill()

	r.offsets[widget.Position] += mapSize
	return nil
}
