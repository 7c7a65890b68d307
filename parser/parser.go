// Package parser compiles overlay scripts into a scene graph. It is a
// recursive-descent parser over the lexer's token stream; each block kind has
// a property table declaring the keywords it accepts, their value kinds and
// numeric ranges, and properties may be set at most once per block.
package parser

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"

	"overlayscript/gpx"
	"overlayscript/lexer"
	"overlayscript/scene"
)

const (
	maxVideoSize = 65535
	defaultZoom  = 17
)

// Error is a syntactic or semantic script error. Line is 1-based.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// property is one row of a block's property table. dst decides the value
// kind: *int and *int64 take a number token (checked against min/max),
// *float64 a number or float token, *string a string token, *scene.Position
// a position keyword, *color.NRGBA a number in 0..0xffffff, and *bool is a
// bare flag with no value token.
type property struct {
	sym      lexer.Symbol
	dst      any
	min, max int64
}

type Parser struct {
	lex     *lexer.Lexer
	baseDir string
	scene   *scene.Scene

	// Tracks are shared by resolved path so that several gpx objects
	// referencing the same file parse it once.
	tracks map[string]*gpx.Track
}

// Parse compiles a script into a scene. Relative file references inside the
// script are resolved against baseDir.
func Parse(r io.Reader, baseDir string) (*scene.Scene, error) {
	p := &Parser{
		lex:     lexer.New(r),
		baseDir: baseDir,
		scene: &scene.Scene{
			VideoWidth:  1920,
			VideoHeight: 1080,
		},
		tracks: make(map[string]*gpx.Track),
	}

	if err := p.parseTopLevel(); err != nil {
		return nil, err
	}

	return p.scene, nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return &Error{Line: p.lex.Line(), Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) next() (lexer.Token, error) {
	return p.lex.Next()
}

func (p *Parser) expectOpenBracket() error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok.Type != lexer.TokenOpenBracket {
		return p.errorf("Expected '{'")
	}
	return nil
}

func (p *Parser) parseTopLevel() error {
	for {
		tok, err := p.next()
		if err != nil {
			return err
		}

		switch {
		case tok.Type == lexer.TokenEOF:
			return nil

		case tok.Type != lexer.TokenSymbol:
			return p.errorf("Expected toplevel item")

		case tok.Symbol == lexer.KeywordVideoWidth:
			err = p.parseIntValue(&p.scene.VideoWidth, "video_width", 1, maxVideoSize)

		case tok.Symbol == lexer.KeywordVideoHeight:
			err = p.parseIntValue(&p.scene.VideoHeight, "video_height", 1, maxVideoSize)

		case tok.Symbol == lexer.KeywordMapURLBase:
			err = p.parseStringValue(&p.scene.MapURLBase, "map_url_base")

		case tok.Symbol == lexer.KeywordMapAPIKey:
			err = p.parseStringValue(&p.scene.MapAPIKey, "map_api_key")

		case tok.Symbol == lexer.KeywordRectangle:
			err = p.parseRectangle()

		case tok.Symbol == lexer.KeywordSvg:
			err = p.parseSvg()

		case tok.Symbol == lexer.KeywordScore:
			err = p.parseScore()

		case tok.Symbol == lexer.KeywordGpx:
			err = p.parseGpx()

		case tok.Symbol == lexer.KeywordTime:
			err = p.parseTime()

		case tok.Symbol == lexer.KeywordCurve:
			err = p.parseCurve()

		case tok.Symbol == lexer.KeywordText:
			err = p.parseText()

		default:
			return p.errorf("Expected toplevel item")
		}

		if err != nil {
			return err
		}
	}
}

// parseItems runs a block's item loop until the closing bracket. Symbols are
// tried against special first (key_frame blocks, gpx sub-objects), then the
// property table. expected names the block kind for the error message.
func (p *Parser) parseItems(expected string, props []property,
	special func(sym lexer.Symbol) (bool, error)) error {
	seen := make(map[lexer.Symbol]bool)

	for {
		tok, err := p.next()
		if err != nil {
			return err
		}

		if tok.Type == lexer.TokenCloseBracket {
			return nil
		}
		if tok.Type != lexer.TokenSymbol {
			return p.errorf("Expected %s", expected)
		}

		if special != nil {
			handled, err := special(tok.Symbol)
			if err != nil {
				return err
			}
			if handled {
				continue
			}
		}

		prop := findProperty(props, tok.Symbol)
		if prop == nil {
			return p.errorf("Expected %s", expected)
		}
		if seen[tok.Symbol] {
			return p.errorf("%s already set", p.lex.SymbolName(tok.Symbol))
		}
		seen[tok.Symbol] = true

		if err := p.parseValue(prop); err != nil {
			return err
		}
	}
}

func findProperty(props []property, sym lexer.Symbol) *property {
	for i := range props {
		if props[i].sym == sym {
			return &props[i]
		}
	}
	return nil
}

func (p *Parser) parseValue(prop *property) error {
	name := p.lex.SymbolName(prop.sym)

	switch dst := prop.dst.(type) {
	case *bool:
		*dst = true
		return nil

	case *string:
		return p.parseStringValue(dst, name)

	case *int:
		min, max := prop.min, prop.max
		if min == 0 && max == 0 {
			min, max = math.MinInt64, math.MaxInt64
		}
		return p.parseIntValue(dst, name, min, max)

	case *float64:
		tok, err := p.next()
		if err != nil {
			return err
		}
		if tok.Type != lexer.TokenNumber && tok.Type != lexer.TokenFloat {
			return p.errorf("Expected number after %s", name)
		}
		*dst = tok.Float()
		return nil

	case *scene.Position:
		return p.parsePosition(dst)

	case *color.NRGBA:
		tok, err := p.next()
		if err != nil {
			return err
		}
		if tok.Type != lexer.TokenNumber ||
			tok.Number < 0 || tok.Number > 0xffffff {
			return p.errorf("Expected color after %s", name)
		}
		*dst = color.NRGBA{
			R: uint8(tok.Number >> 16),
			G: uint8(tok.Number >> 8),
			B: uint8(tok.Number),
			A: 0xff,
		}
		return nil

	default:
		panic(fmt.Sprintf("parser: bad property destination %T", prop.dst))
	}
}

func (p *Parser) parseIntValue(dst *int, name string, min, max int64) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok.Type != lexer.TokenNumber {
		return p.errorf("Expected number after %s", name)
	}
	if tok.Number < min || tok.Number > max {
		return p.errorf("%s out of range", name)
	}
	*dst = int(tok.Number)
	return nil
}

func (p *Parser) parseStringValue(dst *string, name string) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok.Type != lexer.TokenString {
		return p.errorf("Expected string after %s", name)
	}
	*dst = tok.String
	return nil
}

var positionKeywords = map[lexer.Symbol]scene.Position{
	lexer.KeywordTopLeft:      scene.TopLeft,
	lexer.KeywordTopMiddle:    scene.TopMiddle,
	lexer.KeywordTopRight:     scene.TopRight,
	lexer.KeywordBottomLeft:   scene.BottomLeft,
	lexer.KeywordBottomMiddle: scene.BottomMiddle,
	lexer.KeywordBottomRight:  scene.BottomRight,
}

func (p *Parser) parsePosition(dst *scene.Position) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok.Type == lexer.TokenSymbol {
		if pos, ok := positionKeywords[tok.Symbol]; ok {
			*dst = pos
			return nil
		}
	}
	return p.errorf("Expected position such as top_left")
}

// parseKeyFrameHeader consumes the timestamp and opening bracket after a
// key_frame keyword. lastTime is the previous frame's timestamp, or NaN for
// the first frame. Frames must be strictly increasing in time.
func (p *Parser) parseKeyFrameHeader(lastTime float64) (float64, error) {
	tok, err := p.next()
	if err != nil {
		return 0, err
	}
	if tok.Type != lexer.TokenNumber && tok.Type != lexer.TokenFloat {
		return 0, p.errorf("Expected frame number after key_frame")
	}
	t := tok.Float()
	if !math.IsNaN(lastTime) && t <= lastTime {
		return 0, p.errorf("frame numbers out of order")
	}
	if err := p.expectOpenBracket(); err != nil {
		return 0, err
	}
	return t, nil
}

func (p *Parser) lastFrameTime(obj scene.Object) float64 {
	if n := obj.FrameCount(); n > 0 {
		return obj.FrameTime(n - 1)
	}
	return math.NaN()
}

// resolvePath resolves a script file reference against the base directory.
func (p *Parser) resolvePath(path string) string {
	if filepath.IsAbs(path) || p.baseDir == "" {
		return path
	}
	return filepath.Join(p.baseDir, path)
}

func (p *Parser) finishObject(obj scene.Object, kind string) error {
	if obj.FrameCount() == 0 {
		return p.errorf("%s has no key frames", kind)
	}
	p.scene.Objects = append(p.scene.Objects, obj)
	return nil
}

func (p *Parser) parseRectangle() error {
	if err := p.expectOpenBracket(); err != nil {
		return err
	}

	rect := &scene.Rectangle{Color: color.NRGBA{A: 0xff}}

	err := p.parseItems("rectangle item (like a key_frame)",
		[]property{
			{sym: lexer.KeywordColor, dst: &rect.Color},
		},
		func(sym lexer.Symbol) (bool, error) {
			if sym != lexer.KeywordKeyFrame {
				return false, nil
			}
			t, err := p.parseKeyFrameHeader(p.lastFrameTime(rect))
			if err != nil {
				return false, err
			}

			// Every new key frame starts as a copy of the previous
			// one so that unchanged properties carry over.
			frame := scene.RectangleFrame{Timestamp: t}
			if n := len(rect.Frames); n > 0 {
				frame = rect.Frames[n-1]
				frame.Timestamp = t
			}
			err = p.parseItems("key_frame item", []property{
				{sym: lexer.KeywordX1, dst: &frame.X1},
				{sym: lexer.KeywordY1, dst: &frame.Y1},
				{sym: lexer.KeywordX2, dst: &frame.X2},
				{sym: lexer.KeywordY2, dst: &frame.Y2},
			}, nil)
			if err != nil {
				return false, err
			}
			rect.Frames = append(rect.Frames, frame)
			return true, nil
		})
	if err != nil {
		return err
	}

	return p.finishObject(rect, "rectangle")
}

func (p *Parser) parseSvg() error {
	if err := p.expectOpenBracket(); err != nil {
		return err
	}

	svg := &scene.Svg{}
	var file string

	err := p.parseItems("svg item (like a key_frame)",
		[]property{
			{sym: lexer.KeywordFile, dst: &file},
		},
		func(sym lexer.Symbol) (bool, error) {
			if sym != lexer.KeywordKeyFrame {
				return false, nil
			}
			t, err := p.parseKeyFrameHeader(p.lastFrameTime(svg))
			if err != nil {
				return false, err
			}

			frame := scene.SvgFrame{Timestamp: t}
			if n := len(svg.Frames); n > 0 {
				frame = svg.Frames[n-1]
				frame.Timestamp = t
			}
			err = p.parseItems("key_frame item", []property{
				{sym: lexer.KeywordX1, dst: &frame.X1},
				{sym: lexer.KeywordY1, dst: &frame.Y1},
				{sym: lexer.KeywordX2, dst: &frame.X2},
				{sym: lexer.KeywordY2, dst: &frame.Y2},
			}, nil)
			if err != nil {
				return false, err
			}
			svg.Frames = append(svg.Frames, frame)
			return true, nil
		})
	if err != nil {
		return err
	}

	if file == "" {
		return p.errorf("svg has no file")
	}
	svg.Path = p.resolvePath(file)

	return p.finishObject(svg, "svg")
}

func (p *Parser) parseScore() error {
	if err := p.expectOpenBracket(); err != nil {
		return err
	}

	score := &scene.Score{}

	err := p.parseItems("score item (like a key_frame)",
		[]property{
			{sym: lexer.KeywordLabel, dst: &score.Label},
			{sym: lexer.KeywordName, dst: &score.Name},
			{sym: lexer.KeywordPosition, dst: &score.Position},
		},
		func(sym lexer.Symbol) (bool, error) {
			if sym != lexer.KeywordKeyFrame {
				return false, nil
			}
			t, err := p.parseKeyFrameHeader(p.lastFrameTime(score))
			if err != nil {
				return false, err
			}

			frame := scene.ScoreFrame{Timestamp: t}
			if n := len(score.Frames); n > 0 {
				frame.Value = score.Frames[n-1].Value
			}
			err = p.parseItems("key_frame item", []property{
				{sym: lexer.KeywordValue, dst: &frame.Value},
			}, nil)
			if err != nil {
				return false, err
			}
			score.Frames = append(score.Frames, frame)
			return true, nil
		})
	if err != nil {
		return err
	}

	return p.finishObject(score, "score")
}

func (p *Parser) parseTime() error {
	if err := p.expectOpenBracket(); err != nil {
		return err
	}

	counter := &scene.TimeCounter{}

	err := p.parseItems("time item (like a key_frame)",
		[]property{
			{sym: lexer.KeywordPosition, dst: &counter.Position},
		},
		func(sym lexer.Symbol) (bool, error) {
			if sym != lexer.KeywordKeyFrame {
				return false, nil
			}
			t, err := p.parseKeyFrameHeader(p.lastFrameTime(counter))
			if err != nil {
				return false, err
			}

			frame := scene.TimeFrame{Timestamp: t}
			if n := len(counter.Frames); n > 0 {
				frame.Value = counter.Frames[n-1].Value
			}
			err = p.parseItems("key_frame item", []property{
				{sym: lexer.KeywordValue, dst: &frame.Value},
			}, nil)
			if err != nil {
				return false, err
			}
			counter.Frames = append(counter.Frames, frame)
			return true, nil
		})
	if err != nil {
		return err
	}

	return p.finishObject(counter, "time")
}

func (p *Parser) parseCurve() error {
	if err := p.expectOpenBracket(); err != nil {
		return err
	}

	curve := &scene.Curve{Color: color.NRGBA{A: 0xff}}

	err := p.parseItems("curve item (like a key_frame)",
		[]property{
			{sym: lexer.KeywordColor, dst: &curve.Color},
		},
		func(sym lexer.Symbol) (bool, error) {
			if sym != lexer.KeywordKeyFrame {
				return false, nil
			}
			t, err := p.parseKeyFrameHeader(p.lastFrameTime(curve))
			if err != nil {
				return false, err
			}

			frame := scene.CurveFrame{Timestamp: t, T: 1, StrokeWidth: 1}
			if n := len(curve.Frames); n > 0 {
				frame = curve.Frames[n-1]
				frame.Timestamp = t
			}
			err = p.parseItems("key_frame item", []property{
				{sym: lexer.KeywordX1, dst: &frame.Points[0].X},
				{sym: lexer.KeywordY1, dst: &frame.Points[0].Y},
				{sym: lexer.KeywordX2, dst: &frame.Points[1].X},
				{sym: lexer.KeywordY2, dst: &frame.Points[1].Y},
				{sym: lexer.KeywordX3, dst: &frame.Points[2].X},
				{sym: lexer.KeywordY3, dst: &frame.Points[2].Y},
				{sym: lexer.KeywordX4, dst: &frame.Points[3].X},
				{sym: lexer.KeywordY4, dst: &frame.Points[3].Y},
				{sym: lexer.KeywordT, dst: &frame.T},
				{sym: lexer.KeywordStrokeWidth, dst: &frame.StrokeWidth},
			}, nil)
			if err != nil {
				return false, err
			}
			curve.Frames = append(curve.Frames, frame)
			return true, nil
		})
	if err != nil {
		return err
	}

	return p.finishObject(curve, "curve")
}

func (p *Parser) parseText() error {
	if err := p.expectOpenBracket(); err != nil {
		return err
	}

	text := &scene.Text{}

	err := p.parseItems("text item (like a key_frame)",
		[]property{
			{sym: lexer.KeywordPosition, dst: &text.Position},
		},
		func(sym lexer.Symbol) (bool, error) {
			if sym != lexer.KeywordKeyFrame {
				return false, nil
			}
			t, err := p.parseKeyFrameHeader(p.lastFrameTime(text))
			if err != nil {
				return false, err
			}

			frame := scene.TextFrame{Timestamp: t}
			if n := len(text.Frames); n > 0 {
				frame.Text = text.Frames[n-1].Text
			}
			err = p.parseItems("key_frame item", []property{
				{sym: lexer.KeywordText, dst: &frame.Text},
			}, nil)
			if err != nil {
				return false, err
			}
			text.Frames = append(text.Frames, frame)
			return true, nil
		})
	if err != nil {
		return err
	}

	return p.finishObject(text, "text")
}

func (p *Parser) parseGpx() error {
	if err := p.expectOpenBracket(); err != nil {
		return err
	}

	obj := &scene.Gpx{}
	var file string

	err := p.parseItems("gpx item (like a key_frame)",
		[]property{
			{sym: lexer.KeywordFile, dst: &file},
		},
		func(sym lexer.Symbol) (bool, error) {
			switch sym {
			case lexer.KeywordKeyFrame:
				t, err := p.parseKeyFrameHeader(p.lastFrameTime(obj))
				if err != nil {
					return false, err
				}

				frame := scene.GpxFrame{Timestamp: t}
				if n := len(obj.Frames); n > 0 {
					frame.TrackTime = obj.Frames[n-1].TrackTime
				}
				err = p.parseItems("key_frame item", []property{
					{sym: lexer.KeywordTimestamp, dst: &frame.TrackTime},
				}, nil)
				if err != nil {
					return false, err
				}
				obj.Frames = append(obj.Frames, frame)
				return true, nil

			case lexer.KeywordSpeed:
				if obj.Speed != nil {
					return false, p.errorf("speed already set")
				}
				obj.Speed = &scene.SpeedWidget{}
				if err := p.expectOpenBracket(); err != nil {
					return false, err
				}
				return true, p.parseItems("speed item", []property{
					{sym: lexer.KeywordPosition, dst: &obj.Speed.Position},
					{sym: lexer.KeywordDial, dst: &obj.Speed.Dial},
				}, nil)

			case lexer.KeywordElevation:
				if obj.Elevation != nil {
					return false, p.errorf("elevation already set")
				}
				obj.Elevation = &scene.ElevationWidget{}
				if err := p.expectOpenBracket(); err != nil {
					return false, err
				}
				return true, p.parseItems("elevation item", []property{
					{sym: lexer.KeywordPosition, dst: &obj.Elevation.Position},
				}, nil)

			case lexer.KeywordDistance:
				if obj.Distance != nil {
					return false, p.errorf("distance already set")
				}
				obj.Distance = &scene.DistanceWidget{}
				if err := p.expectOpenBracket(); err != nil {
					return false, err
				}
				return true, p.parseItems("distance item", []property{
					{sym: lexer.KeywordPosition, dst: &obj.Distance.Position},
				}, nil)

			case lexer.KeywordMap:
				return true, p.parseMapWidget(obj)

			default:
				return false, nil
			}
		})
	if err != nil {
		return err
	}

	if file == "" {
		return p.errorf("gpx has no file")
	}
	track, err := p.loadTrack(file)
	if err != nil {
		return err
	}
	obj.Track = track

	if obj.Speed == nil && obj.Elevation == nil &&
		obj.Distance == nil && obj.Map == nil {
		return p.errorf("gpx has no widgets")
	}

	return p.finishObject(obj, "gpx")
}

func (p *Parser) parseMapWidget(obj *scene.Gpx) error {
	if obj.Map != nil {
		return p.errorf("map already set")
	}
	obj.Map = &scene.MapWidget{Zoom: defaultZoom}

	if err := p.expectOpenBracket(); err != nil {
		return err
	}

	var trace string
	err := p.parseItems("map item", []property{
		{sym: lexer.KeywordPosition, dst: &obj.Map.Position},
		{sym: lexer.KeywordZoom, dst: &obj.Map.Zoom, min: 0, max: 24},
		{sym: lexer.KeywordTrace, dst: &trace},
	}, nil)
	if err != nil {
		return err
	}

	if trace != "" {
		points, err := gpx.LoadTrace(p.resolvePath(trace))
		if err != nil {
			return p.errorf("%s", err)
		}
		obj.Map.Trace = points
	}
	return nil
}

func (p *Parser) loadTrack(file string) (*gpx.Track, error) {
	path := p.resolvePath(file)
	if track, ok := p.tracks[path]; ok {
		return track, nil
	}
	track, err := gpx.Parse(path)
	if err != nil {
		return nil, p.errorf("%s", err)
	}
	p.tracks[path] = track
	return track, nil
}
