package overlayscript

import (
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScript = `
video_width 320
video_height 240

rectangle {
        color 0x00ff00
        key_frame 0 { x1 0 y1 0 x2 100 y2 100 }
        key_frame 10 { x1 100 y1 100 x2 200 y2 200 }
}
`

func TestLoadScriptAndRender(t *testing.T) {
	overlay, err := LoadScript("", strings.NewReader(testScript))
	require.NoError(t, err)

	s := overlay.Scene()
	assert.Equal(t, 320, s.VideoWidth)
	assert.Equal(t, 240, s.VideoHeight)
	require.Len(t, s.Objects, 1)

	img, painted, err := overlay.Render(5)
	require.NoError(t, err)
	assert.True(t, painted)
	assert.Equal(t, 320, img.Bounds().Dx())

	green := color.NRGBA{G: 0xff, A: 0xff}
	assert.Equal(t, green, color.NRGBAModel.Convert(img.At(120, 120)))

	// Before the first key frame nothing is active.
	_, painted, err = overlay.Render(-1)
	require.NoError(t, err)
	assert.False(t, painted)
}

func TestLoadScriptError(t *testing.T) {
	_, err := LoadScript("", strings.NewReader("rectangle { bogus }"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}
