package parser

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overlayscript/scene"
)

func parseString(t *testing.T, src string) (*scene.Scene, error) {
	t.Helper()
	return Parse(strings.NewReader(src), "")
}

func TestParseRectangle(t *testing.T) {
	s, err := parseString(t, `
video_width 1280
video_height 720

rectangle {
        color 0xff8000
        key_frame 0 { x1 10 y1 20 x2 30 y2 40 }
        key_frame 2.5 { x2 50 }
}
`)
	require.NoError(t, err)

	assert.Equal(t, 1280, s.VideoWidth)
	assert.Equal(t, 720, s.VideoHeight)
	require.Len(t, s.Objects, 1)

	rect, ok := s.Objects[0].(*scene.Rectangle)
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0x80, B: 0x00, A: 0xff}, rect.Color)

	require.Len(t, rect.Frames, 2)
	assert.Equal(t, scene.RectangleFrame{
		Timestamp: 0, X1: 10, Y1: 20, X2: 30, Y2: 40,
	}, rect.Frames[0])
	// Unset properties carry over from the previous frame.
	assert.Equal(t, scene.RectangleFrame{
		Timestamp: 2.5, X1: 10, Y1: 20, X2: 50, Y2: 40,
	}, rect.Frames[1])
}

func TestParseDefaults(t *testing.T) {
	s, err := parseString(t, `
text {
        key_frame 0 { text "hello" }
}
`)
	require.NoError(t, err)
	assert.Equal(t, 1920, s.VideoWidth)
	assert.Equal(t, 1080, s.VideoHeight)

	text := s.Objects[0].(*scene.Text)
	assert.Equal(t, scene.TopLeft, text.Position)
}

func TestParseScore(t *testing.T) {
	s, err := parseString(t, `
score {
        label "COWS"
        name "Brand"
        position bottom_right
        key_frame 0 { value 3 }
        key_frame 10 { }
        key_frame 20 { value 4 }
}
`)
	require.NoError(t, err)

	score := s.Objects[0].(*scene.Score)
	assert.Equal(t, "COWS", score.Label)
	assert.Equal(t, "Brand", score.Name)
	assert.Equal(t, scene.BottomRight, score.Position)
	require.Len(t, score.Frames, 3)
	assert.Equal(t, 3, score.Frames[1].Value)
	assert.Equal(t, 4, score.Frames[2].Value)
}

func TestParseCurve(t *testing.T) {
	s, err := parseString(t, `
curve {
        color 0x0000ff
        key_frame 1:10 {
                x1 0 y1 0 x2 100 y2 0 x3 100 y3 100 x4 0 y4 100
                t 0.5
                stroke_width 4
        }
}
`)
	require.NoError(t, err)

	curve := s.Objects[0].(*scene.Curve)
	require.Len(t, curve.Frames, 1)
	f := curve.Frames[0]
	assert.Equal(t, 70.0, f.Timestamp)
	assert.Equal(t, scene.Point{X: 100, Y: 100}, f.Points[2])
	assert.Equal(t, 0.5, f.T)
	assert.Equal(t, 4.0, f.StrokeWidth)
}

func TestParseTimeCounter(t *testing.T) {
	s, err := parseString(t, `
time {
        position top_right
        key_frame 0 { value 0 }
        key_frame 60 { value 60 }
}
`)
	require.NoError(t, err)

	counter := s.Objects[0].(*scene.TimeCounter)
	assert.Equal(t, scene.TopRight, counter.Position)
	require.Len(t, counter.Frames, 2)
	assert.Equal(t, 60.0, counter.Frames[1].Value)
}

const testTrack = `<?xml version="1.0"?>
<gpx><trk><trkseg>
 <trkpt lat="45.0" lon="7.0">
  <ele>100</ele><speed>5</speed><time>2023-06-01T10:00:00Z</time>
 </trkpt>
 <trkpt lat="45.001" lon="7.0">
  <ele>110</ele><speed>6</speed><time>2023-06-01T10:00:10Z</time>
 </trkpt>
</trkseg></trk></gpx>`

func TestParseGpx(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "ride.gpx"), []byte(testTrack), 0o644)
	require.NoError(t, err)

	src := `
gpx {
        file "ride.gpx"
        speed { position bottom_left dial }
        elevation { }
        distance { position bottom_right }
        map { zoom 15 }
        key_frame 0 { timestamp 0 }
        key_frame 30 { timestamp 30 }
}
gpx {
        file "ride.gpx"
        speed { }
        key_frame 40 { timestamp 40 }
}
`
	s, err := Parse(strings.NewReader(src), dir)
	require.NoError(t, err)
	require.Len(t, s.Objects, 2)

	first := s.Objects[0].(*scene.Gpx)
	require.NotNil(t, first.Track)
	assert.Equal(t, 2, first.Track.Len())

	require.NotNil(t, first.Speed)
	assert.True(t, first.Speed.Dial)
	assert.Equal(t, scene.BottomLeft, first.Speed.Position)
	require.NotNil(t, first.Map)
	assert.Equal(t, 15, first.Map.Zoom)

	require.Len(t, first.Frames, 2)
	assert.Equal(t, 30.0, first.Frames[1].TrackTime)

	// Both objects reference the same file and share one parsed track.
	second := s.Objects[1].(*scene.Gpx)
	assert.Same(t, first.Track, second.Track)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{
			"frames out of order",
			"rectangle {\nkey_frame 1.0 { }\nkey_frame 0.5 { }\n}",
			"line 3: frame numbers out of order",
		},
		{
			"no key frames",
			"rectangle { }",
			"rectangle has no key frames",
		},
		{
			"unknown object item",
			"rectangle { zoom 3 }",
			"Expected rectangle item (like a key_frame)",
		},
		{
			"unknown key frame item",
			"rectangle { key_frame 0 { zoom 3 } }",
			"Expected key_frame item",
		},
		{
			"duplicate property",
			"rectangle { color 1 color 2 key_frame 0 { } }",
			"color already set",
		},
		{
			"duplicate frame property",
			"rectangle { key_frame 0 { x1 1 x1 2 } }",
			"x1 already set",
		},
		{
			"svg without file",
			"svg { key_frame 0 { } }",
			"svg has no file",
		},
		{
			"gpx without widgets",
			`gpx { file "x.gpx" key_frame 0 { } }`,
			// The track is loaded before the widget check, so the
			// nonexistent path is reported first.
			"x.gpx",
		},
		{
			"video width range",
			"video_width 0",
			"video_width out of range",
		},
		{
			"bad position",
			"text { position 3 key_frame 0 { } }",
			"Expected position",
		},
		{
			"missing bracket",
			"rectangle color 3",
			"Expected '{'",
		},
		{
			"bad toplevel",
			`"hello"`,
			"Expected toplevel item",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := parseString(t, test.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.msg)
		})
	}
}

func TestParseErrorLineNumbers(t *testing.T) {
	_, err := parseString(t, "\n\nrectangle {\nbogus\n}")
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 4, perr.Line)
}
