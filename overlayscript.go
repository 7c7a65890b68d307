// Package overlayscript renders scripted graphic overlays (boxes, counters,
// telemetry readouts, animated curves, map widgets) for video frames. A
// script is compiled once into a scene; the scene can then be rendered at
// arbitrary timestamps.
package overlayscript

import (
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"overlayscript/maptile"
	"overlayscript/parser"
	"overlayscript/render"
	"overlayscript/scene"
)

// DefaultTileCacheDir is where downloaded map tiles are persisted when the
// caller does not choose a directory.
const DefaultTileCacheDir = "map-tiles"

// Overlay is a compiled script plus a renderer for it. An Overlay must not
// be used from several goroutines at once; create one per goroutine from a
// shared Scene instead.
type Overlay struct {
	scene    *scene.Scene
	renderer *render.Renderer
}

// Options configures overlay creation. The zero value is usable.
type Options struct {
	// TileCacheDir is the map tile persistence directory. Defaults to
	// DefaultTileCacheDir.
	TileCacheDir string

	// Logger receives tile download progress. Defaults to a disabled
	// logger.
	Logger *zerolog.Logger
}

// LoadScript compiles a script read from r. File references in the script
// are resolved against baseDir.
func LoadScript(baseDir string, r io.Reader) (*Overlay, error) {
	return LoadScriptOptions(baseDir, r, Options{})
}

// LoadScriptFile compiles the script in the named file, resolving relative
// file references against the script's own directory.
func LoadScriptFile(path string) (*Overlay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadScript(filepath.Dir(path), f)
}

func LoadScriptOptions(baseDir string, r io.Reader, opts Options) (*Overlay, error) {
	s, err := parser.Parse(r, baseDir)
	if err != nil {
		return nil, err
	}
	return NewOverlay(s, opts), nil
}

// NewOverlay builds an overlay for an already parsed scene. Several overlays
// may share one scene; each gets its own tile cache and font state.
func NewOverlay(s *scene.Scene, opts Options) *Overlay {
	var maps *maptile.Renderer
	if s.MapURLBase != "" {
		cacheDir := opts.TileCacheDir
		if cacheDir == "" {
			cacheDir = DefaultTileCacheDir
		}
		log := zerolog.Nop()
		if opts.Logger != nil {
			log = *opts.Logger
		}
		fetcher := maptile.NewHTTPFetcher(s.MapURLBase, s.MapAPIKey, log)
		maps = maptile.NewRenderer(fetcher, cacheDir)
	}

	return &Overlay{
		scene:    s,
		renderer: render.New(s, maps),
	}
}

// Scene returns the compiled scene. It is read-only.
func (o *Overlay) Scene() *scene.Scene {
	return o.scene
}

// Render paints the overlay at the given timestamp in seconds. The returned
// flag is false when no object was active at that time; the image is always
// a fully transparent-backed frame at the script's video resolution.
func (o *Overlay) Render(timestamp float64) (*image.RGBA, bool, error) {
	return o.renderer.Render(timestamp)
}
