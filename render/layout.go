package render

import (
	"github.com/fogleman/gg"

	"overlayscript/scene"
)

const (
	textFontSize    = 36.0
	counterFontSize = 40.0

	lineSpacing  = 1.3
	anchorMargin = 20.0
)

// anchorX returns the horizontal anchor coordinate and text alignment for a
// screen position.
func (r *Renderer) anchorX(pos scene.Position) (float64, float64) {
	switch pos % 3 {
	case 0:
		return anchorMargin, 0
	case 1:
		return float64(r.scene.VideoWidth) / 2, 0.5
	default:
		return float64(r.scene.VideoWidth) - anchorMargin, 1
	}
}

// anchorPoint returns the anchor coordinate and the top of the next free
// line slot for a position, given the element height about to be drawn.
// Top-row elements stack downward, bottom-row elements upward.
func (r *Renderer) anchorPoint(pos scene.Position, height float64) (float64, float64) {
	x, _ := r.anchorX(pos)

	var y float64
	if pos.Top() {
		y = anchorMargin + r.offsets[pos]
	} else {
		y = float64(r.scene.VideoHeight) - anchorMargin -
			r.offsets[pos] - height
	}
	return x, y
}

// drawAnchored draws one line of text at its screen anchor and advances the
// anchor's stacking offset. The current font face must already be set.
func (r *Renderer) drawAnchored(dc *gg.Context, pos scene.Position, text string) {
	height := dc.FontHeight() * lineSpacing
	x, y := r.anchorPoint(pos, height)
	drawPositionedText(dc, pos, text, x, y, height)
	r.offsets[pos] += height
}

// drawPositionedText draws text in a line slot whose top edge is y, with a
// small drop shadow for legibility over video.
func drawPositionedText(dc *gg.Context, pos scene.Position, text string,
	x, y, height float64) {
	var align float64
	switch pos % 3 {
	case 0:
		align = 0
	case 1:
		align = 0.5
	default:
		align = 1
	}

	cy := y + height/2
	dc.SetRGBA(0, 0, 0, 0.8)
	dc.DrawStringAnchored(text, x+2, cy+2, align, 0.35)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, x, cy, align, 0.35)
}

// mirrorPosition flips a position to the opposite horizontal anchor on the
// same row.
func mirrorPosition(pos scene.Position) scene.Position {
	row := pos / 3 * 3
	switch pos % 3 {
	case 0:
		return row + 2
	case 2:
		return row
	default:
		return pos
	}
}
