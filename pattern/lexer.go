package pattern

import "strings"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokMetavariable
	tokEllipsisMetavariable
	tokNodeType
	tokWildcard
	tokPipe
	tokLParen
	tokRParen
	tokString
	tokBare
)

type token struct {
	kind tokenKind
	text string
	pos  int // 1-based position of the token's first character
}

type lexer struct {
	src []rune
	i   int // 0-based index into src
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

func (l *lexer) peekByte() (rune, bool) {
	if l.i >= len(l.src) {
		return 0, false
	}
	return l.src[l.i], true
}

func (l *lexer) skipSpace() {
	for {
		r, ok := l.peekByte()
		if !ok || !isSpace(r) {
			return
		}
		l.i++
	}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// next returns the next token, or a *ParseError for malformed input.
func (l *lexer) next() (token, error) {
	l.skipSpace()
	r, ok := l.peekByte()
	if !ok {
		return token{kind: tokEOF, pos: l.i + 1}, nil
	}
	start := l.i + 1 // 1-based

	switch {
	case r == '(':
		l.i++
		return token{kind: tokLParen, pos: start}, nil
	case r == ')':
		l.i++
		return token{kind: tokRParen, pos: start}, nil
	case r == '|':
		l.i++
		return token{kind: tokPipe, pos: start}, nil
	case r == '"':
		return l.lexString(start)
	case r == '.':
		return l.lexDotsOrWildcard(start)
	case r == '$':
		return l.lexMetavariable(start)
	case r == '@':
		return l.lexNodeType(start)
	default:
		return l.lexBare(start)
	}
}

func (l *lexer) lexString(start int) (token, error) {
	l.i++ // consume opening quote
	var b strings.Builder
	for {
		r, ok := l.peekByte()
		if !ok {
			return token{}, &ParseError{Message: "Unterminated string literal", Position: start}
		}
		if r == '"' {
			l.i++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		}
		if r == '\\' {
			l.i++
			esc, ok := l.peekByte()
			if !ok {
				return token{}, &ParseError{Message: "Unterminated string literal", Position: start}
			}
			l.i++
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			default:
				b.WriteRune(esc)
			}
			continue
		}
		b.WriteRune(r)
		l.i++
	}
}

// lexDotsOrWildcard handles "..." (wildcard) and rejects any other run of
// dots, since the only valid use of '.' in pattern source is the
// three-dot wildcard token.
func (l *lexer) lexDotsOrWildcard(start int) (token, error) {
	count := 0
	for {
		r, ok := l.peekByte()
		if !ok || r != '.' {
			break
		}
		l.i++
		count++
	}
	if count == 3 {
		return token{kind: tokWildcard, text: "...", pos: start}, nil
	}
	return token{}, &ParseError{Message: "Invalid wildcard token", Position: start}
}

func (l *lexer) lexMetavariable(start int) (token, error) {
	l.i++ // consume '$'
	ellipsis := false
	if r, ok := l.peekByte(); ok && r == '.' {
		save := l.i
		dots := 0
		for {
			r, ok := l.peekByte()
			if !ok || r != '.' {
				break
			}
			l.i++
			dots++
		}
		if dots != 3 {
			l.i = save
		} else {
			ellipsis = true
		}
	}
	nameStart := l.i
	for {
		r, ok := l.peekByte()
		if !ok || !isNameRune(r) {
			break
		}
		l.i++
	}
	name := string(l.src[nameStart:l.i])
	if name == "" {
		if ellipsis {
			return token{}, errInvalidEllipsisPattern(start)
		}
		return token{}, errInvalidMetavariable(start)
	}
	if ellipsis {
		return token{kind: tokEllipsisMetavariable, text: name, pos: start}, nil
	}
	return token{kind: tokMetavariable, text: name, pos: start}, nil
}

func (l *lexer) lexNodeType(start int) (token, error) {
	l.i++ // consume '@'
	nameStart := l.i
	for {
		r, ok := l.peekByte()
		// Node-type names are hyphenated (e.g. "call-expression").
		if !ok || !(isNameRune(r) || r == '-') {
			break
		}
		l.i++
	}
	name := string(l.src[nameStart:l.i])
	if name == "" {
		return token{}, errInvalidNodeType(start)
	}
	return token{kind: tokNodeType, text: name, pos: start}, nil
}

func (l *lexer) lexBare(start int) (token, error) {
	nameStart := l.i
	for {
		r, ok := l.peekByte()
		if !ok || !isBareTokenRune(r) {
			break
		}
		l.i++
	}
	if l.i == nameStart {
		l.i++ // consume the offending rune so the lexer always makes progress
		return token{}, &ParseError{Message: "Unexpected character", Position: start}
	}
	return token{kind: tokBare, text: string(l.src[nameStart:l.i]), pos: start}, nil
}

func isNameRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
