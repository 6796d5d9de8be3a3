package pattern

// Parse compiles pattern source text to a pattern tree. Parsing is pure:
// it has no side effects besides reading src, so repeated calls with the
// same input always produce structurally equal trees (see Cache for
// memoizing this).
//
// Grammar (precedence low to high): alternative -> sequence -> primary.
// A run of primaries with no operator between them compiles to Sequence;
// '|'-separated sequences compile to Alternative; parentheses group.
func Parse(src string) (*Pattern, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	pat, err := p.parseAlternative()
	if err != nil {
		return nil, err
	}
	switch p.tok.kind {
	case tokRParen:
		return nil, errUnexpectedClosingParen(p.tok.pos)
	case tokEOF:
		return pat, nil
	default:
		return nil, errUnexpectedPipe(p.tok.pos)
	}
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) parseAlternative() (*Pattern, error) {
	first, err := p.parseSequence()
	if err != nil {
		return nil, err
	}
	children := []*Pattern{first}
	for p.tok.kind == tokPipe {
		if err := p.advance(); err != nil {
			return nil, err
		}
		next, err := p.parseSequence()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	return alternative(children), nil
}

func (p *parser) parseSequence() (*Pattern, error) {
	var children []*Pattern
	for {
		switch p.tok.kind {
		case tokEOF, tokRParen, tokPipe:
			if len(children) == 0 {
				return nil, &ParseError{Message: "Unexpected end of pattern", Position: p.tok.pos}
			}
			return sequence(children), nil
		}
		prim, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		children = append(children, prim)
	}
}

func (p *parser) parsePrimary() (*Pattern, error) {
	tok := p.tok
	switch tok.kind {
	case tokMetavariable:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return metavariable(tok.text), nil
	case tokEllipsisMetavariable:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ellipsisMetavariable(tok.text), nil
	case tokNodeType:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return nodeType(tok.text), nil
	case tokWildcard:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return wildcard(), nil
	case tokString, tokBare:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return literal(tok.text), nil
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseAlternative()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, errMissingClosingParen(p.tok.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	case tokRParen:
		return nil, errUnexpectedClosingParen(tok.pos)
	case tokPipe:
		return nil, errUnexpectedPipe(tok.pos)
	default:
		return nil, &ParseError{Message: "Unexpected end of pattern", Position: tok.pos}
	}
}
