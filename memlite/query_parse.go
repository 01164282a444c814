package memlite

import (
	"strconv"
	"strings"
	"unicode"
)

type queryError struct {
	pos int
	msg string
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOp
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func isIdentStart(r byte) bool {
	return r == '_' || unicode.IsLetter(rune(r))
}

func isIdentPart(r byte) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func tokenize(s string) ([]token, *queryError) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			start := i
			for i < len(s) && (isIdentPart(s[i]) || (s[i] == '.' && i+1 < len(s) && isIdentStart(s[i+1]))) {
				i++
			}
			toks = append(toks, token{tokIdent, s[start:i], start})
		case c == '`':
			start := i
			end := strings.IndexByte(s[i+1:], '`')
			if end < 0 {
				return nil, &queryError{start, "unterminated identifier"}
			}
			toks = append(toks, token{tokIdent, s[i+1 : i+1+end], start})
			i += end + 2
		case c == '\'' || c == '"':
			start := i
			var b strings.Builder
			i++
			for {
				if i >= len(s) {
					return nil, &queryError{start, "unterminated string"}
				}
				if s[i] == c {
					if i+1 < len(s) && s[i+1] == c {
						b.WriteByte(c)
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteByte(s[i])
				i++
			}
			toks = append(toks, token{tokString, b.String(), start})
		case c >= '0' && c <= '9' || c == '-' && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9':
			start := i
			i++
			for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.' || s[i] == 'e' || s[i] == 'E') {
				i++
			}
			toks = append(toks, token{tokNumber, s[start:i], start})
		case c == '=' || c == '<' || c == '>' || c == '!':
			start := i
			i++
			if i < len(s) && (s[i] == '=' || (c == '<' && s[i] == '>')) {
				i++
			}
			op := s[start:i]
			switch op {
			case "==":
				op = "="
			case "<>":
				op = "!="
			case "!":
				return nil, &queryError{start, "unexpected '!'"}
			}
			toks = append(toks, token{tokOp, op, start})
		case c == ',' || c == '(' || c == ')' || c == '*' || c == '.' || c == ';':
			toks = append(toks, token{tokPunct, string(c), i})
			i++
		default:
			return nil, &queryError{i, "unexpected character " + strconv.QuoteRune(rune(c))}
		}
	}
	toks = append(toks, token{tokEOF, "", len(s)})
	return toks, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

// unread steps back over t, which must be the token last returned by next.
func (p *parser) unread(t token) {
	if t.kind != tokEOF {
		p.i--
	}
}

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, kw) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) *queryError {
	if !p.keyword(kw) {
		return p.fail("expected " + kw)
	}
	return nil
}

func (p *parser) punct(s string) bool {
	t := p.peek()
	if t.kind == tokPunct && t.text == s {
		p.i++
		return true
	}
	return false
}

func (p *parser) fail(msg string) *queryError {
	t := p.peek()
	if t.kind == tokEOF {
		return &queryError{t.pos, msg + " at end of query"}
	}
	return &queryError{t.pos, msg + " near " + strconv.Quote(t.text)}
}

var reserved = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "ORDER": true, "BY": true,
	"AS": true, "ASC": true, "DESC": true, "LIMIT": true,
}

func parseQuery(text string) (*plan, *queryError) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	pl := &plan{limit: -1}

	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	for {
		col, err := p.column()
		if err != nil {
			return nil, err
		}
		pl.cols = append(pl.cols, col)
		if !p.punct(",") {
			break
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if t := p.next(); t.kind != tokIdent || reserved[strings.ToUpper(t.text)] {
		p.unread(t)
		return nil, p.fail("expected collection name")
	}

	if p.keyword("WHERE") {
		cond, err := p.condition()
		if err != nil {
			return nil, err
		}
		pl.where = cond
	}
	if p.keyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		pl.orderBy = &e
		if p.keyword("DESC") {
			pl.desc = true
		} else {
			p.keyword("ASC")
		}
	}
	if p.keyword("LIMIT") {
		t := p.next()
		n, convErr := strconv.Atoi(t.text)
		if t.kind != tokNumber || convErr != nil || n < 0 {
			p.unread(t)
			return nil, p.fail("expected row limit")
		}
		pl.limit = n
	}
	p.punct(";")
	if p.peek().kind != tokEOF {
		return nil, p.fail("unexpected token")
	}
	return pl, nil
}

func (p *parser) column() (column, *queryError) {
	if p.punct("*") {
		return column{star: true}, nil
	}
	e, err := p.expr()
	if err != nil {
		return column{}, err
	}
	col := column{expr: e}
	if e.metaID {
		col.name = "id"
	} else {
		col.name = e.path[len(e.path)-1]
	}
	if p.keyword("AS") {
		t := p.next()
		if t.kind != tokIdent {
			p.unread(t)
			return column{}, p.fail("expected alias")
		}
		col.name = t.text
	}
	return col, nil
}

func (p *parser) expr() (expr, *queryError) {
	t := p.peek()
	if t.kind != tokIdent || reserved[strings.ToUpper(t.text)] {
		return expr{}, p.fail("expected property")
	}
	p.i++
	if strings.EqualFold(t.text, "META") && p.punct("(") {
		if !p.punct(")") {
			return expr{}, p.fail("expected ')'")
		}
		if !p.punct(".") {
			return expr{}, p.fail("expected '.'")
		}
		f := p.peek()
		if f.kind != tokIdent || f.text != "id" {
			return expr{}, p.fail("only META().id is supported")
		}
		p.i++
		return expr{metaID: true}, nil
	}
	return expr{path: strings.Split(t.text, ".")}, nil
}

func (p *parser) condition() (*condition, *queryError) {
	left, err := p.expr()
	if err != nil {
		return nil, err
	}
	op := p.next()
	if op.kind != tokOp {
		p.unread(op)
		return nil, p.fail("expected comparison operator")
	}
	lit := p.next()
	var right any
	switch {
	case lit.kind == tokString:
		right = lit.text
	case lit.kind == tokNumber:
		f, convErr := strconv.ParseFloat(lit.text, 64)
		if convErr != nil {
			p.unread(lit)
			return nil, p.fail("malformed number")
		}
		right = f
	case lit.kind == tokIdent && strings.EqualFold(lit.text, "true"):
		right = true
	case lit.kind == tokIdent && strings.EqualFold(lit.text, "false"):
		right = false
	case lit.kind == tokIdent && strings.EqualFold(lit.text, "null"):
		right = nil
	default:
		p.unread(lit)
		return nil, p.fail("expected literal")
	}
	return &condition{left: left, op: op.text, right: right}, nil
}
