package lexer

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexOne(t *testing.T, src string) (Token, error) {
	t.Helper()
	return New(strings.NewReader(src)).Next()
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		source   string
		number   int64
		fraction int64
		isFloat  bool
	}{
		{source: "0", number: 0},
		{source: "0.999999999", fraction: 999999999, isFloat: true},
		{source: "-0.999999999", fraction: -999999999, isFloat: true},
		{source: "-128.123456789", number: -128, fraction: -123456789, isFloat: true},
		// Fraction digits beyond the configured precision are truncated.
		{source: "0.1234567899", fraction: 123456789, isFloat: true},
		{source: "-9223372036854775808", number: math.MinInt64},
		{source: "9223372036854775807", number: math.MaxInt64},
		{source: "0:0:9223372036854775807", number: math.MaxInt64},
		{source: "153722867280912930:7", number: math.MaxInt64},
		{source: "1:2:3:4", number: 223384},
		{source: "-1:2:3:4", number: -223384},
		{source: "1:34.12", number: 94, fraction: 120000000, isFloat: true},
		{source: "-1:34.12", number: -94, fraction: -120000000, isFloat: true},
		{source: "010", number: 10},
		{source: "-010", number: -10},
		{source: "0x10", number: 16},
		{source: "-0x10", number: -16},
		{source: "0x7fffffffffffffff", number: math.MaxInt64},
		{source: "-0x8000000000000000", number: math.MinInt64},
		{source: "0X10", number: 16},
		{source: "0x0123456789abcdef", number: 0x0123456789abcdef},
		{source: "1_000_000", number: 1000000},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			tok, err := lexOne(t, tt.source)
			require.NoError(t, err)

			if tt.isFloat {
				require.Equal(t, TokenFloat, tok.Type)
				assert.Equal(t, tt.fraction, tok.Fraction)
			} else {
				require.Equal(t, TokenNumber, tok.Type)
			}
			assert.Equal(t, tt.number, tok.Number)

			if tok.Fraction != 0 && tok.Number != 0 {
				assert.Equal(t, tok.Number < 0, tok.Fraction < 0,
					"fraction sign must mirror integer part")
			}
		})
	}
}

func TestNumberErrors(t *testing.T) {
	tests := []struct {
		source string
		kind   ErrorKind
		msg    string
	}{
		{"0:", ErrInvalidNumber, `line 1: invalid number "0:"`},
		{"-9223372036854775809", ErrInvalidNumber, `line 1: invalid number "-9223372036854775809"`},
		{"9223372036854775808", ErrInvalidNumber, `line 1: invalid number "9223372036854775808"`},
		{"153722867280912930:8", ErrInvalidNumber, `line 1: invalid number "153722867280912930:8"`},
		{"153722867280912931:0", ErrInvalidNumber, `line 1: invalid number "153722867280912931:0"`},
		{"1::0", ErrInvalidNumber, `line 1: invalid number "1::0"`},
		{"0.12:", ErrInvalidFloat, `line 1: invalid float "0.12:"`},
		{"1ĉ", ErrInvalidNumber, `line 1: invalid number "1ĉ"`},
		{"0:18446744073709551616", ErrInvalidNumber, `line 1: invalid number "0:18446744073709551616"`},
		{"0x50x5", ErrInvalidNumber, `line 1: invalid number "0x50x5"`},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := lexOne(t, tt.source)
			require.Error(t, err)

			var lexErr *Error
			require.ErrorAs(t, err, &lexErr)
			assert.Equal(t, tt.kind, lexErr.Kind)
			assert.Equal(t, 1, lexErr.Line)
			assert.Equal(t, tt.msg, lexErr.Error())
		})
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"plain", `"hello"`, "hello"},
		{"escapes", `"a \"b\" \\c"`, `a "b" \c`},
		{"surrounding whitespace trimmed", "\"  padded \t\"", "padded"},
		{"space run collapses", "\"a  \t b\"", "a b"},
		{"single newline becomes space", "\"a \n b\"", "a b"},
		{"multiple newlines kept", "\"a\n\n\nb\"", "a\n\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := lexOne(t, tt.source)
			require.NoError(t, err)
			require.Equal(t, TokenString, tok.Type)
			assert.Equal(t, tt.want, tok.String)
		})
	}
}

func TestStringErrors(t *testing.T) {
	t.Run("unterminated reports opening line", func(t *testing.T) {
		l := New(strings.NewReader("\n\n\"never closed"))
		_, err := l.Next()
		var lexErr *Error
		require.ErrorAs(t, err, &lexErr)
		assert.Equal(t, 3, lexErr.Line)
	})

	t.Run("unknown escape", func(t *testing.T) {
		_, err := lexOne(t, `"a\n"`)
		var lexErr *Error
		require.ErrorAs(t, err, &lexErr)
		assert.Equal(t, ErrInvalidString, lexErr.Kind)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := lexOne(t, "\"a\xff\"")
		var lexErr *Error
		require.ErrorAs(t, err, &lexErr)
		assert.Equal(t, ErrInvalidString, lexErr.Kind)
	})
}

func TestSymbolInterning(t *testing.T) {
	l := New(strings.NewReader("rectangle foo bar foo"))

	tok, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, KeywordRectangle, tok.Symbol)

	foo, err := l.Next()
	require.NoError(t, err)
	bar, err := l.Next()
	require.NoError(t, err)
	foo2, err := l.Next()
	require.NoError(t, err)

	assert.Equal(t, foo.Symbol, foo2.Symbol, "same spelling interns to same id")
	assert.NotEqual(t, foo.Symbol, bar.Symbol)
	assert.Equal(t, "foo", l.SymbolName(foo.Symbol))
	assert.Equal(t, "rectangle", l.SymbolName(KeywordRectangle))
}

func TestPutBack(t *testing.T) {
	l := New(strings.NewReader("rectangle { }"))

	first, err := l.Next()
	require.NoError(t, err)
	second, err := l.Next()
	require.NoError(t, err)
	third, err := l.Next()
	require.NoError(t, err)

	l.PutBack()
	l.PutBack()
	l.PutBack()

	for _, want := range []Token{first, second, third} {
		got, err := l.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEOFIsRepeatable(t *testing.T) {
	l := New(strings.NewReader("# only a comment"))

	for i := 0; i < 3; i++ {
		tok, err := l.Next()
		require.NoError(t, err)
		assert.Equal(t, TokenEOF, tok.Type)
	}
}

func TestCommentsAndLines(t *testing.T) {
	l := New(strings.NewReader("# comment\nrectangle # trailing\n{"))

	tok, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, KeywordRectangle, tok.Symbol)
	assert.Equal(t, 2, l.Line())

	tok, err = l.Next()
	require.NoError(t, err)
	assert.Equal(t, TokenOpenBracket, tok.Type)
	assert.Equal(t, 3, l.Line())
}
