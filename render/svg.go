package render

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// svgAsset is a parsed vector graphic, loaded once per path and redrawn at
// whatever viewport each frame asks for.
type svgAsset struct {
	icon *oksvg.SvgIcon
}

func loadSvgAsset(path string) (*svgAsset, error) {
	icon, err := oksvg.ReadIcon(path, oksvg.StrictErrorMode)
	if err != nil {
		return nil, err
	}
	return &svgAsset{icon: icon}, nil
}

// draw rasterizes the asset scaled and translated into the given viewport of
// the context's backing image.
func (a *svgAsset) draw(dc *gg.Context, x, y, w, h float64) error {
	if w <= 0 || h <= 0 {
		return nil
	}

	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return fmt.Errorf("unsupported render target %T", dc.Image())
	}

	bounds := img.Bounds()
	scanner := rasterx.NewScannerGV(bounds.Dx(), bounds.Dy(), img, bounds)
	raster := rasterx.NewDasher(bounds.Dx(), bounds.Dy(), scanner)

	a.icon.SetTarget(x, y, w, h)
	a.icon.Draw(raster, 1.0)
	return nil
}
