package lexer

// FractionScale is the fixed denominator used for the fractional part of
// float tokens. A literal "1.25" is stored as Number=1, Fraction=250000000.
const FractionScale = 1_000_000_000

type TokenType int

const (
	TokenOpenBracket TokenType = iota
	TokenCloseBracket
	TokenSymbol
	TokenString
	TokenNumber
	TokenFloat
	TokenEOF
)

// Symbol identifies an interned symbol. Values below numKeywords are the
// reserved keywords; anything else is a script-defined identifier. After
// interning, symbols are only ever compared by value, never by spelling.
type Symbol int

const (
	symbolNone Symbol = iota

	KeywordRectangle
	KeywordSvg
	KeywordScore
	KeywordGpx
	KeywordTime
	KeywordCurve
	KeywordText
	KeywordKeyFrame
	KeywordVideoWidth
	KeywordVideoHeight
	KeywordMapURLBase
	KeywordMapAPIKey
	KeywordFile
	KeywordX1
	KeywordY1
	KeywordX2
	KeywordY2
	KeywordX3
	KeywordY3
	KeywordX4
	KeywordY4
	KeywordT
	KeywordStrokeWidth
	KeywordColor
	KeywordValue
	KeywordLabel
	KeywordName
	KeywordPosition
	KeywordTimestamp
	KeywordSpeed
	KeywordElevation
	KeywordDistance
	KeywordMap
	KeywordDial
	KeywordZoom
	KeywordTrace
	KeywordTopLeft
	KeywordTopMiddle
	KeywordTopRight
	KeywordBottomLeft
	KeywordBottomMiddle
	KeywordBottomRight

	numKeywords
)

var keywordNames = [numKeywords]string{
	KeywordRectangle:    "rectangle",
	KeywordSvg:          "svg",
	KeywordScore:        "score",
	KeywordGpx:          "gpx",
	KeywordTime:         "time",
	KeywordCurve:        "curve",
	KeywordText:         "text",
	KeywordKeyFrame:     "key_frame",
	KeywordVideoWidth:   "video_width",
	KeywordVideoHeight:  "video_height",
	KeywordMapURLBase:   "map_url_base",
	KeywordMapAPIKey:    "map_api_key",
	KeywordFile:         "file",
	KeywordX1:           "x1",
	KeywordY1:           "y1",
	KeywordX2:           "x2",
	KeywordY2:           "y2",
	KeywordX3:           "x3",
	KeywordY3:           "y3",
	KeywordX4:           "x4",
	KeywordY4:           "y4",
	KeywordT:            "t",
	KeywordStrokeWidth:  "stroke_width",
	KeywordColor:        "color",
	KeywordValue:        "value",
	KeywordLabel:        "label",
	KeywordName:         "name",
	KeywordPosition:     "position",
	KeywordTimestamp:    "timestamp",
	KeywordSpeed:        "speed",
	KeywordElevation:    "elevation",
	KeywordDistance:     "distance",
	KeywordMap:          "map",
	KeywordDial:         "dial",
	KeywordZoom:         "zoom",
	KeywordTrace:        "trace",
	KeywordTopLeft:      "top_left",
	KeywordTopMiddle:    "top_middle",
	KeywordTopRight:     "top_right",
	KeywordBottomLeft:   "bottom_left",
	KeywordBottomMiddle: "bottom_middle",
	KeywordBottomRight:  "bottom_right",
}

var keywordTable = func() map[string]Symbol {
	m := make(map[string]Symbol, numKeywords)
	for sym := symbolNone + 1; sym < numKeywords; sym++ {
		m[keywordNames[sym]] = sym
	}
	return m
}()

// Token is the lexer output. Which fields are meaningful depends on Type:
// Symbol for TokenSymbol, String for TokenString, Number for TokenNumber,
// and Number+Fraction for TokenFloat. Fraction carries the same sign as the
// literal, scaled by FractionScale.
type Token struct {
	Type     TokenType
	Symbol   Symbol
	String   string
	Number   int64
	Fraction int64
}

// Float returns the numeric value of a TokenNumber or TokenFloat token.
func (t Token) Float() float64 {
	return float64(t.Number) + float64(t.Fraction)/FractionScale
}
