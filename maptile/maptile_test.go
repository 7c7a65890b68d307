package maptile

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher generates a solid-color tile per request and counts how
// often each tile is asked for.
type countingFetcher struct {
	calls map[tileKey]int
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{calls: make(map[tileKey]int)}
}

func (f *countingFetcher) Fetch(zoom, x, y int) ([]byte, error) {
	f.calls[tileKey{zoom, x, y}]++

	img := image.NewNRGBA(image.Rect(0, 0, TileSize, TileSize))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *countingFetcher) total() int {
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func TestTileCacheHit(t *testing.T) {
	fetcher := newCountingFetcher()
	r := NewRenderer(fetcher, t.TempDir())

	for i := 0; i < 5; i++ {
		_, err := r.Tile(10, 3, 4)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fetcher.total())
}

func TestTileCacheEviction(t *testing.T) {
	fetcher := newCountingFetcher()
	dir := t.TempDir()
	r := NewRenderer(fetcher, dir)

	// Fill the cache past capacity.
	for x := 0; x < cacheCapacity+1; x++ {
		_, err := r.Tile(10, x, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, cacheCapacity, r.lru.Len())

	// Tile 0 was the least recently used and got evicted; re-requesting
	// it must not hit the network because the disk copy survives.
	_, err := r.Tile(10, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls[tileKey{10, 0, 0}])

	// Remove the disk copy too: eviction plus a cleared disk cache means
	// exactly one re-fetch.
	for x := 1; x < cacheCapacity+2; x++ {
		_, err := r.Tile(10, x, 0)
		require.NoError(t, err)
	}
	require.NoError(t, os.Remove(r.tilePath(tileKey{10, 0, 0})))
	_, err = r.Tile(10, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls[tileKey{10, 0, 0}])
}

func TestTileCacheRecentUseSurvives(t *testing.T) {
	fetcher := newCountingFetcher()
	r := NewRenderer(fetcher, t.TempDir())

	_, err := r.Tile(10, 0, 0)
	require.NoError(t, err)

	for x := 1; x < cacheCapacity; x++ {
		_, err := r.Tile(10, x, 0)
		require.NoError(t, err)
	}

	// Touch tile 0 so it becomes most recently used, then overflow.
	_, err = r.Tile(10, 0, 0)
	require.NoError(t, err)
	_, err = r.Tile(10, cacheCapacity, 0)
	require.NoError(t, err)

	_, ok := r.index[tileKey{10, 0, 0}]
	assert.True(t, ok, "recently used tile should not be evicted")
	_, ok = r.index[tileKey{10, 1, 0}]
	assert.False(t, ok, "oldest tile should be evicted")
}

func TestTileDecodeFailure(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(newCountingFetcher(), dir)

	key := tileKey{10, 0, 0}
	require.NoError(t, os.WriteFile(r.tilePath(key), []byte("not a png"), 0o644))

	_, err := r.Tile(10, 0, 0)
	require.Error(t, err)

	var terr *TileError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 10, terr.Zoom)
}

func TestTileProjection(t *testing.T) {
	// At zoom 0 the whole world is one tile; the origin of the
	// projection is the top-left corner.
	assert.InDelta(t, 0.5, TileX(0, 0), 1e-9)
	assert.InDelta(t, 0.5, TileY(0, 0), 1e-9)
	assert.InDelta(t, 0, TileX(-180, 0), 1e-9)
	assert.InDelta(t, 1, TileX(180, 0), 1e-9)

	// Higher zoom doubles the tile count per axis.
	assert.InDelta(t, 2*TileX(7, 4), TileX(7, 5), 1e-9)
}

func TestDraw(t *testing.T) {
	fetcher := newCountingFetcher()
	r := NewRenderer(fetcher, t.TempDir())

	dc := gg.NewContext(400, 300)
	err := r.Draw(dc, View{
		Lat: 45, Lon: 7, Zoom: 10,
		X: 50, Y: 50, Width: 300, Height: 200,
	})
	require.NoError(t, err)

	// The viewport is covered by white tiles; outside stays transparent.
	img := dc.Image()
	assert.Equal(t, color.NRGBA{0xff, 0xff, 0xff, 0xff},
		color.NRGBAModel.Convert(img.At(200, 150)))
	_, _, _, a := img.At(10, 10).RGBA()
	assert.Equal(t, uint32(0), a)
}
