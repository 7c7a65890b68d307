// Package lexer turns overlay script text into a stream of tokens: brackets,
// interned symbols, normalized strings, and 64-bit fixed-point numbers.
package lexer

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrorKind classifies lexical errors.
type ErrorKind int

const (
	ErrInvalidString ErrorKind = iota
	ErrInvalidSymbol
	ErrInvalidNumber
	ErrInvalidFloat
	ErrUnexpectedChar
)

// Error is a lexical error. Line is 1-based and points at the line where the
// error was detected.
type Error struct {
	Line int
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// putBackLimit is how many tokens may be un-consumed at once.
const putBackLimit = 3

type queuedToken struct {
	tok  Token
	line int
}

// Lexer reads tokens from a byte stream. It keeps the last few tokens in a
// ring so that the parser can put them back while deciding between grammar
// alternatives.
type Lexer struct {
	r    *bufio.Reader
	line int

	queue      [putBackLimit]queuedToken
	queueStart int
	nPut       int

	symbolNames []string
	symbolIDs   map[string]Symbol
}

func New(r io.Reader) *Lexer {
	return &Lexer{
		r:         bufio.NewReader(r),
		line:      1,
		symbolIDs: make(map[string]Symbol),
	}
}

// Line returns the current 1-based line number.
func (l *Lexer) Line() int {
	return l.line
}

// PutBack un-consumes the most recently returned token. At most putBackLimit
// tokens may be pending at once; exceeding that is a programming error.
func (l *Lexer) PutBack() {
	if l.nPut >= putBackLimit {
		panic("lexer: too many tokens put back")
	}
	l.nPut++
}

// SymbolName returns the spelling of an interned symbol, for error messages.
func (l *Lexer) SymbolName(sym Symbol) string {
	if sym > symbolNone && sym < numKeywords {
		return keywordNames[sym]
	}
	return l.symbolNames[int(sym-numKeywords)]
}

func (l *Lexer) errorf(kind ErrorKind, format string, args ...any) *Error {
	return l.errorAtf(l.line, kind, format, args...)
}

func (l *Lexer) errorAtf(line int, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Line: line, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

const eofByte = -1

func (l *Lexer) readByte() int {
	b, err := l.r.ReadByte()
	if err != nil {
		return eofByte
	}
	if b == '\n' {
		l.line++
	}
	return int(b)
}

func (l *Lexer) unreadByte(ch int) {
	if ch == eofByte {
		return
	}
	if ch == '\n' {
		l.line--
	}
	l.r.UnreadByte()
}

func isSpace(ch int) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

func isDigit(ch int) bool {
	return ch >= '0' && ch <= '9'
}

func isSymbolChar(ch int) bool {
	return isDigit(ch) ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		ch == '_' ||
		ch >= 0x80
}

// Next returns the next token. Once the input is exhausted it keeps
// returning a TokenEOF token.
func (l *Lexer) Next() (Token, error) {
	if l.nPut > 0 {
		qt := &l.queue[(l.queueStart+putBackLimit-l.nPut)%putBackLimit]
		l.nPut--
		l.line = qt.line
		return qt.tok, nil
	}

	tok, line, err := l.scan()
	if err != nil {
		return Token{}, err
	}

	l.queue[l.queueStart] = queuedToken{tok: tok, line: line}
	l.queueStart = (l.queueStart + 1) % putBackLimit

	return tok, nil
}

func (l *Lexer) scan() (Token, int, error) {
	for {
		ch := l.readByte()

		switch {
		case isSpace(ch):
			continue
		case ch == '#':
			for ch != '\n' && ch != eofByte {
				ch = l.readByte()
			}
			continue
		case ch == '{':
			return Token{Type: TokenOpenBracket}, l.line, nil
		case ch == '}':
			return Token{Type: TokenCloseBracket}, l.line, nil
		case ch == '"':
			return l.scanString()
		case isDigit(ch) || ch == '-':
			l.unreadByte(ch)
			return l.scanNumber()
		case isSymbolChar(ch):
			l.unreadByte(ch)
			return l.scanSymbol()
		case ch == eofByte:
			return Token{Type: TokenEOF}, l.line, nil
		default:
			return Token{}, 0, l.errorf(ErrUnexpectedChar,
				"unexpected character %q", rune(ch))
		}
	}
}

func (l *Lexer) scanSymbol() (Token, int, error) {
	line := l.line

	var buf strings.Builder
	for {
		ch := l.readByte()
		if !isSymbolChar(ch) {
			l.unreadByte(ch)
			break
		}
		buf.WriteByte(byte(ch))
	}

	name := buf.String()

	if !utf8.ValidString(name) {
		return Token{}, 0, l.errorf(ErrInvalidSymbol,
			"invalid UTF-8 encountered")
	}

	if sym, ok := keywordTable[name]; ok {
		return Token{Type: TokenSymbol, Symbol: sym}, line, nil
	}
	if sym, ok := l.symbolIDs[name]; ok {
		return Token{Type: TokenSymbol, Symbol: sym}, line, nil
	}

	sym := numKeywords + Symbol(len(l.symbolNames))
	l.symbolNames = append(l.symbolNames, name)
	l.symbolIDs[name] = sym

	return Token{Type: TokenSymbol, Symbol: sym}, line, nil
}

// scanNumber collects the whole literal (digits, letters so that malformed
// literals like "1x" are reported as one unit, '.', ':', and a leading '-')
// and then parses it. '_' digit grouping is dropped during collection.
func (l *Lexer) scanNumber() (Token, int, error) {
	line := l.line

	var buf strings.Builder
	first := true
	for {
		ch := l.readByte()

		ok := isDigit(ch) ||
			(ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			ch == '.' || ch == ':' || ch >= 0x80 ||
			(first && ch == '-')
		if ch == '_' {
			first = false
			continue
		}
		if !ok {
			l.unreadByte(ch)
			break
		}
		buf.WriteByte(byte(ch))
		first = false
	}

	tok, err := l.parseNumber(line, buf.String())
	if err != nil {
		return Token{}, 0, err
	}
	return tok, line, nil
}

// parseNumber handles decimal and 0x-prefixed hex integers, colon-grouped
// time shorthand (each ':' multiplies the value so far by 60) and a decimal
// fraction in the final group, stored scaled by FractionScale with the same
// sign as the integer part. Values outside the 64-bit range are errors.
func (l *Lexer) parseNumber(line int, word string) (Token, error) {
	invalid := func() error {
		return l.errorAtf(line, ErrInvalidNumber, "invalid number %q", word)
	}

	rest := word
	neg := strings.HasPrefix(rest, "-")
	if neg {
		rest = rest[1:]
	}

	// Largest representable magnitude for the final value.
	limit := uint64(math.MaxInt64)
	if neg {
		limit++
	}

	groups := strings.Split(rest, ":")
	last := len(groups) - 1

	var value uint64
	isFloat := false
	var fraction int64

	for i, group := range groups {
		if i == last {
			if dot := strings.IndexByte(group, '.'); dot != -1 {
				frac, err := l.parseFraction(line, word, group[dot+1:])
				if err != nil {
					return Token{}, err
				}
				isFloat = true
				fraction = frac
				group = group[:dot]
			}
		}
		if group == "" {
			// Empty groups like "0:", "1::2" or ".5" are malformed.
			return Token{}, invalid()
		}

		var part uint64
		var err error
		if strings.HasPrefix(group, "0x") || strings.HasPrefix(group, "0X") {
			part, err = strconv.ParseUint(group[2:], 16, 64)
		} else {
			part, err = strconv.ParseUint(group, 10, 64)
		}
		if err != nil {
			return Token{}, invalid()
		}

		if value > limit/60 && i > 0 {
			return Token{}, invalid()
		}
		if i > 0 {
			value *= 60
		}
		if part > limit-value {
			return Token{}, invalid()
		}
		value += part
	}

	var number int64
	if neg {
		// Wraps to MinInt64 when value is 1<<63, which is the intent.
		number = -int64(value)
		fraction = -fraction
	} else {
		number = int64(value)
	}

	if isFloat {
		return Token{Type: TokenFloat, Number: number, Fraction: fraction}, nil
	}
	return Token{Type: TokenNumber, Number: number}, nil
}

func (l *Lexer) parseFraction(line int, word, digits string) (int64, error) {
	multiplier := int64(FractionScale)
	var fraction int64

	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, l.errorAtf(line, ErrInvalidFloat,
				"invalid float %q", word)
		}
		multiplier /= 10
		fraction += int64(digits[i]-'0') * multiplier
	}

	return fraction, nil
}

func (l *Lexer) scanString() (Token, int, error) {
	startLine := l.line

	var buf []byte
	for {
		ch := l.readByte()

		switch ch {
		case eofByte:
			return Token{}, 0, l.errorAtf(startLine, ErrInvalidString,
				"unterminated string")
		case '\\':
			esc := l.readByte()
			if esc != '"' && esc != '\\' {
				return Token{}, 0, l.errorf(ErrInvalidString,
					"invalid escape sequence")
			}
			buf = append(buf, byte(esc))
		case '"':
			str, err := l.normalizeString(buf)
			if err != nil {
				return Token{}, 0, err
			}
			return Token{Type: TokenString, String: str}, l.line, nil
		default:
			buf = append(buf, byte(ch))
		}
	}
}

// normalizeString trims surrounding whitespace and collapses interior runs:
// a run containing a single newline becomes one space, a run with several
// newlines is kept as that many newlines, and any other whitespace run
// becomes one space. The result must be valid UTF-8.
func (l *Lexer) normalizeString(src []byte) (string, error) {
	const (
		start = iota
		hadSpace
		hadNewline
		hadOther
	)

	dst := src[:0]
	state := start
	newlineCount := 0

	for _, c := range src {
		ch := int(c)
		switch state {
		case start:
			if !isSpace(ch) {
				dst = append(dst, c)
				state = hadOther
			}
		case hadSpace:
			if ch == '\n' {
				state = hadNewline
				newlineCount = 1
			} else if !isSpace(ch) {
				dst = append(dst, ' ', c)
				state = hadOther
			}
		case hadNewline:
			if ch == '\n' {
				newlineCount++
			} else if !isSpace(ch) {
				if newlineCount == 1 {
					dst = append(dst, ' ')
				} else {
					for i := 0; i < newlineCount; i++ {
						dst = append(dst, '\n')
					}
				}
				dst = append(dst, c)
				state = hadOther
			}
		case hadOther:
			if ch == '\n' {
				state = hadNewline
				newlineCount = 1
			} else if isSpace(ch) {
				state = hadSpace
			} else {
				dst = append(dst, c)
			}
		}
	}

	if !utf8.Valid(dst) {
		return "", l.errorf(ErrInvalidString,
			"string contains invalid UTF-8")
	}

	return string(dst), nil
}
