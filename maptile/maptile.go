// Package maptile composes background maps from square Web-Mercator tiles.
// Tiles pass through three levels: a small in-memory LRU, a persisted copy on
// disk, and finally a pluggable fetch capability for tiles seen for the
// first time.
package maptile

import (
	"bytes"
	"container/list"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"overlayscript/fileerr"
	"overlayscript/gpx"
)

// TileSize is the edge length of a map tile in pixels.
const TileSize = 256

// cacheCapacity bounds the in-memory tile cache. A map viewport needs at
// most a 2x2 tile neighbourhood plus a little slack for camera movement
// between frames.
const cacheCapacity = 8

// Fetcher retrieves the encoded bytes of a tile that is not available
// locally. It is the only blocking call in the package; callers needing
// timeouts must build them into the implementation.
type Fetcher interface {
	Fetch(zoom, x, y int) ([]byte, error)
}

// TileError reports a failure to load or decode one tile.
type TileError struct {
	Zoom, X, Y int
	Err        error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile %d/%d/%d: %s", e.Zoom, e.X, e.Y, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}

type tileKey struct {
	zoom, x, y int
}

type cachedTile struct {
	key tileKey
	img image.Image
}

// Renderer draws map viewports centered on a coordinate. It owns the tile
// cache and must not be shared between goroutines.
type Renderer struct {
	fetcher  Fetcher
	cacheDir string

	lru   *list.List
	index map[tileKey]*list.Element
}

func NewRenderer(fetcher Fetcher, cacheDir string) *Renderer {
	return &Renderer{
		fetcher:  fetcher,
		cacheDir: cacheDir,
		lru:      list.New(),
		index:    make(map[tileKey]*list.Element),
	}
}

// View describes one map widget invocation: the coordinate to center on, the
// zoom level, the destination rectangle in the target context, and an
// optional route polyline to draw on top.
type View struct {
	Lat, Lon float64
	Zoom     int

	X, Y          int
	Width, Height int

	Trace []gpx.TracePoint
}

// TileX converts longitude to a fractional tile column at the given zoom.
func TileX(lon float64, zoom int) float64 {
	return (lon + 180) / 360 * float64(int(1)<<zoom)
}

// TileY converts latitude to a fractional tile row at the given zoom.
func TileY(lat float64, zoom int) float64 {
	rad := lat * math.Pi / 180
	return (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) /
		2 * float64(int(1)<<zoom)
}

// Draw paints the map for view into dc, clipped to the view rectangle.
func (r *Renderer) Draw(dc *gg.Context, view View) error {
	// Global pixel coordinates of the centered point.
	cx := TileX(view.Lon, view.Zoom) * TileSize
	cy := TileY(view.Lat, view.Zoom) * TileSize

	// Top-left of the viewport in global pixels, rounded once so that
	// every tile lands on an integer offset and tiles meet seamlessly.
	originX := int(math.Round(cx)) - view.Width/2
	originY := int(math.Round(cy)) - view.Height/2

	dc.Push()
	dc.DrawRectangle(float64(view.X), float64(view.Y),
		float64(view.Width), float64(view.Height))
	dc.Clip()

	maxTile := 1 << view.Zoom
	firstTileX := floorDiv(originX, TileSize)
	firstTileY := floorDiv(originY, TileSize)
	lastTileX := floorDiv(originX+view.Width-1, TileSize)
	lastTileY := floorDiv(originY+view.Height-1, TileSize)

	for ty := firstTileY; ty <= lastTileY; ty++ {
		for tx := firstTileX; tx <= lastTileX; tx++ {
			if tx < 0 || ty < 0 || tx >= maxTile || ty >= maxTile {
				continue
			}
			img, err := r.Tile(view.Zoom, tx, ty)
			if err != nil {
				dc.ResetClip()
				dc.Pop()
				return err
			}
			dc.DrawImage(img,
				view.X+tx*TileSize-originX,
				view.Y+ty*TileSize-originY)
		}
	}

	if len(view.Trace) > 0 {
		r.drawTrace(dc, view, originX, originY)
	}

	dc.ResetClip()
	dc.Pop()
	return nil
}

func (r *Renderer) drawTrace(dc *gg.Context, view View, originX, originY int) {
	for _, pt := range view.Trace {
		px := TileX(pt.Lon, view.Zoom)*TileSize - float64(originX)
		py := TileY(pt.Lat, view.Zoom)*TileSize - float64(originY)
		dc.LineTo(float64(view.X)+px, float64(view.Y)+py)
	}
	dc.SetRGBA(0.8, 0, 0, 0.8)
	dc.SetLineWidth(3)
	dc.Stroke()
}

// Tile returns the decoded image for one tile, loading it through the cache
// hierarchy as needed.
func (r *Renderer) Tile(zoom, x, y int) (image.Image, error) {
	key := tileKey{zoom, x, y}
	if elem, ok := r.index[key]; ok {
		r.lru.MoveToFront(elem)
		return elem.Value.(*cachedTile).img, nil
	}

	img, err := r.loadTile(key)
	if err != nil {
		return nil, &TileError{Zoom: zoom, X: x, Y: y, Err: err}
	}

	r.index[key] = r.lru.PushFront(&cachedTile{key: key, img: img})
	for r.lru.Len() > cacheCapacity {
		oldest := r.lru.Back()
		delete(r.index, oldest.Value.(*cachedTile).key)
		r.lru.Remove(oldest)
	}

	return img, nil
}

func (r *Renderer) loadTile(key tileKey) (image.Image, error) {
	path := r.tilePath(key)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:

	case fileerr.KindOf(err) == fileerr.NotFound:
		data, err = r.fetcher.Fetch(key.zoom, key.x, key.y)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}
		if err := r.persistTile(path, data); err != nil {
			return nil, err
		}

	default:
		return nil, fileerr.Wrap(path, err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func (r *Renderer) tilePath(key tileKey) string {
	return filepath.Join(r.cacheDir,
		fmt.Sprintf("%d-%d-%d.png", key.zoom, key.x, key.y))
}

func (r *Renderer) persistTile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fileerr.Wrap(path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fileerr.Wrap(path, err)
	}
	return nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
