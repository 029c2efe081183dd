package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString // "..."
	tokDesc   // <"...">
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokColon
	tokDot
	tokDotDot
	tokStar
	tokComma
	tokSymbol // any other printable rune, kept for verbatim expression capture
)

type token struct {
	kind   tokenKind
	text   string
	line   int // 1-based
	column int // 1-based, in runes
	offset int // byte offset of the token start
	stop   int // byte offset one past the consumed token
}

func (t token) end() int { return t.stop }

type scanner struct {
	src  string
	pos  int // byte position
	line int
	col  int
}

// scan tokenizes source and groups the tokens by their starting line.
// Newlines are structural in this dialect, so the parser works line by line.
// lineEnds[i] is the byte offset one past the content of line i+1, used to
// compute raw declaration spans.
func scan(source string) (lines [][]token, lineEnds []int) {
	lineEnds = computeLineEnds(source)
	lines = make([][]token, len(lineEnds))

	s := &scanner{src: source, line: 1, col: 1}
	for {
		tok := s.next()
		if tok.kind == tokEOF {
			break
		}
		idx := tok.line - 1
		if idx >= 0 && idx < len(lines) {
			lines[idx] = append(lines[idx], tok)
		}
	}
	return lines, lineEnds
}

// computeLineEnds returns, for every physical line, the byte offset just past
// its content (excluding the newline itself).
func computeLineEnds(source string) []int {
	ends := make([]int, 0, strings.Count(source, "\n")+1)
	start := 0
	for {
		nl := strings.IndexByte(source[start:], '\n')
		if nl < 0 {
			ends = append(ends, len(source))
			return ends
		}
		end := start + nl
		if end > start && source[end-1] == '\r' {
			end--
		}
		ends = append(ends, end)
		start = start + nl + 1
	}
}

func (s *scanner) next() token {
	for s.pos < len(s.src) {
		ch, size := utf8.DecodeRuneInString(s.src[s.pos:])

		switch {
		case ch == '\n':
			s.pos += size
			s.line++
			s.col = 1

		case ch == ' ' || ch == '\t' || ch == '\r':
			s.pos += size
			s.col++

		case ch == '/' && s.peekByte(1) == '/':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}

		case ch == '<' && s.peekByte(1) == '"':
			return s.scanDescription()

		case ch == '"':
			return s.scanString()

		case isIdentStart(ch):
			return s.scanIdent()

		case unicode.IsDigit(ch):
			return s.scanNumber()

		case ch == '.':
			tok := s.startToken(tokDot, ".")
			s.pos++
			s.col++
			if s.pos < len(s.src) && s.src[s.pos] == '.' {
				tok.kind = tokDotDot
				tok.text = ".."
				s.pos++
				s.col++
			}
			tok.stop = s.pos
			return tok

		default:
			kind := tokSymbol
			switch ch {
			case '{':
				kind = tokLBrace
			case '}':
				kind = tokRBrace
			case '[':
				kind = tokLBracket
			case ']':
				kind = tokRBracket
			case '(':
				kind = tokLParen
			case ')':
				kind = tokRParen
			case ':':
				kind = tokColon
			case '*':
				kind = tokStar
			case ',':
				kind = tokComma
			}
			tok := s.startToken(kind, s.src[s.pos:s.pos+size])
			s.pos += size
			s.col++
			tok.stop = s.pos
			return tok
		}
	}
	return token{kind: tokEOF, line: s.line, column: s.col, offset: len(s.src), stop: len(s.src)}
}

func (s *scanner) startToken(kind tokenKind, text string) token {
	return token{kind: kind, text: text, line: s.line, column: s.col, offset: s.pos}
}

func (s *scanner) peekByte(n int) byte {
	if s.pos+n >= len(s.src) {
		return 0
	}
	return s.src[s.pos+n]
}

func (s *scanner) scanIdent() token {
	tok := s.startToken(tokIdent, "")
	start := s.pos
	for s.pos < len(s.src) {
		ch, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if !isIdentPart(ch) {
			break
		}
		s.pos += size
		s.col++
	}
	tok.text = s.src[start:s.pos]
	tok.stop = s.pos
	return tok
}

func (s *scanner) scanNumber() token {
	tok := s.startToken(tokNumber, "")
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
		s.pos++
		s.col++
	}
	tok.text = s.src[start:s.pos]
	tok.stop = s.pos
	return tok
}

// scanString consumes a double-quoted string. The token text carries the
// unquoted content; an unterminated string runs to end of line.
func (s *scanner) scanString() token {
	tok := s.startToken(tokString, "")
	s.pos++ // opening quote
	s.col++
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] != '"' && s.src[s.pos] != '\n' {
		s.pos++
		s.col++
	}
	tok.text = s.src[start:s.pos]
	if s.pos < len(s.src) && s.src[s.pos] == '"' {
		s.pos++
		s.col++
	}
	tok.stop = s.pos
	return tok
}

// scanDescription consumes a <"..."> documentation literal, which may span
// lines. The token stays anchored to its starting line.
func (s *scanner) scanDescription() token {
	tok := s.startToken(tokDesc, "")
	s.pos += 2 // <"
	s.col += 2
	start := s.pos
	for s.pos < len(s.src) {
		if s.src[s.pos] == '"' && s.peekByte(1) == '>' {
			break
		}
		if s.src[s.pos] == '\n' {
			s.line++
			s.col = 0
		}
		_, size := utf8.DecodeRuneInString(s.src[s.pos:])
		s.pos += size
		s.col++
	}
	tok.text = s.src[start:s.pos]
	if s.pos < len(s.src) {
		s.pos += 2 // ">
		s.col += 2
	}
	tok.stop = s.pos
	return tok
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}
