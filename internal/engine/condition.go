package engine

import (
	"strconv"
	"strings"
	"unicode"

	"somacore/internal/errors"
	"somacore/pkg/frame"
)

// Condition is a compiled attribute predicate.
//
// Grammar:
//
//	expr    = and { ("or" | "|" | "||") and }
//	and     = unary { ("and" | "&" | "&&") unary }
//	unary   = "(" expr ")" | compare
//	compare = attr op literal | literal op attr
//	op      = "==" | "!=" | "<" | "<=" | ">" | ">="
//
// Literals are numbers or single/double quoted strings. Attributes of type
// frame.String cannot be compared; store them as frame.Bytes instead.
type Condition struct {
	expr string
	root condNode
	refs []string
}

// String returns the source expression.
func (c *Condition) String() string { return c.expr }

// Attributes returns the attribute names the condition references.
func (c *Condition) Attributes() []string { return append([]string(nil), c.refs...) }

type condNode interface {
	eval(row func(name string) any) bool
}

type andNode struct{ l, r condNode }

func (n andNode) eval(row func(string) any) bool { return n.l.eval(row) && n.r.eval(row) }

type orNode struct{ l, r condNode }

func (n orNode) eval(row func(string) any) bool { return n.l.eval(row) || n.r.eval(row) }

type cmpNode struct {
	attr string
	typ  frame.DataType
	op   string
	lit  any
}

func (n cmpNode) eval(row func(string) any) bool {
	c := frame.Compare(n.typ, row(n.attr), n.lit)
	switch n.op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

// ParseCondition compiles expr against the attributes of s.
func ParseCondition(s ArraySchema, expr string) (*Condition, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &condParser{toks: toks, schema: s}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, errors.InvalidArgumentf("query condition %q: unexpected %q", expr, p.toks[p.pos].text)
	}
	return &Condition{expr: expr, root: root, refs: p.refs}, nil
}

type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokAnd
	tokOr
)

type token struct {
	kind tokKind
	text string
}

func lex(expr string) ([]token, error) {
	var toks []token
	rs := []rune(expr)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case r == '&' || r == '|':
			kind := tokAnd
			if r == '|' {
				kind = tokOr
			}
			if i+1 < len(rs) && rs[i+1] == r {
				i++
			}
			toks = append(toks, token{kind, string(r)})
			i++
		case strings.ContainsRune("=!<>", r):
			if i+1 < len(rs) && rs[i+1] == '=' {
				toks = append(toks, token{tokOp, string(rs[i : i+2])})
				i += 2
				continue
			}
			if r == '=' || r == '!' {
				return nil, errors.InvalidArgumentf("query condition %q: bad operator at %d", expr, i)
			}
			toks = append(toks, token{tokOp, string(r)})
			i++
		case r == '\'' || r == '"':
			j := i + 1
			for j < len(rs) && rs[j] != r {
				j++
			}
			if j >= len(rs) {
				return nil, errors.InvalidArgumentf("query condition %q: unterminated string", expr)
			}
			toks = append(toks, token{tokString, string(rs[i+1 : j])})
			i = j + 1
		case unicode.IsDigit(r) || r == '-' || r == '+' || r == '.':
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || strings.ContainsRune(".eE+-", rs[j])) {
				if (rs[j] == '+' || rs[j] == '-') && rs[j-1] != 'e' && rs[j-1] != 'E' {
					break
				}
				j++
			}
			toks = append(toks, token{tokNumber, string(rs[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			word := string(rs[i:j])
			switch strings.ToLower(word) {
			case "and":
				toks = append(toks, token{tokAnd, word})
			case "or":
				toks = append(toks, token{tokOr, word})
			default:
				toks = append(toks, token{tokIdent, word})
			}
			i = j
		default:
			return nil, errors.InvalidArgumentf("query condition %q: unexpected %q", expr, r)
		}
	}
	if len(toks) == 0 {
		return nil, errors.InvalidArgumentf("empty query condition")
	}
	return toks, nil
}

type condParser struct {
	toks   []token
	pos    int
	schema ArraySchema
	refs   []string
}

func (p *condParser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *condParser) next() (token, error) {
	t, ok := p.peek()
	if !ok {
		return token{}, errors.InvalidArgumentf("query condition ends early")
	}
	p.pos++
	return t, nil
}

func (p *condParser) parseOr() (condNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOr {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
}

func (p *condParser) parseAnd() (condNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokAnd {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
}

func (p *condParser) parseUnary() (condNode, error) {
	t, ok := p.peek()
	if ok && t.kind == tokLParen {
		p.pos++
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing, err := p.next()
		if err != nil || closing.kind != tokRParen {
			return nil, errors.InvalidArgumentf("query condition: missing )")
		}
		return n, nil
	}
	return p.parseCompare()
}

var flipped = map[string]string{"==": "==", "!=": "!=", "<": ">", "<=": ">=", ">": "<", ">=": "<="}

func (p *condParser) parseCompare() (condNode, error) {
	a, err := p.next()
	if err != nil {
		return nil, err
	}
	op, err := p.next()
	if err != nil {
		return nil, err
	}
	if op.kind != tokOp {
		return nil, errors.InvalidArgumentf("query condition: expected operator, got %q", op.text)
	}
	b, err := p.next()
	if err != nil {
		return nil, err
	}
	ident, lit, sym := a, b, op.text
	if a.kind != tokIdent {
		ident, lit, sym = b, a, flipped[op.text]
	}
	if ident.kind != tokIdent {
		return nil, errors.InvalidArgumentf("query condition: comparison needs an attribute, got %q %s %q", a.text, op.text, b.text)
	}
	attr, ok := p.schema.Attribute(ident.text)
	if !ok {
		return nil, errors.InvalidArgumentf("query condition: %q is not an attribute", ident.text)
	}
	if attr.Type == frame.String {
		return nil, errors.WithHintf(
			errors.Wrapf(ErrUnsupportedCondition, "attribute %q is variable-length UTF-8", attr.Name),
			"store %q as fixed-width bytes to filter on it", attr.Name)
	}
	value, typ, err := literal(attr, lit)
	if err != nil {
		return nil, err
	}
	p.refs = append(p.refs, attr.Name)
	return cmpNode{attr: attr.Name, typ: typ, op: sym, lit: value}, nil
}

// literal converts t for comparison with attr, returning the value and the
// type the comparison runs in. Integer attributes compared with fractional
// literals compare as float64.
func literal(attr Attribute, t token) (any, frame.DataType, error) {
	switch {
	case attr.Type == frame.Bytes:
		if t.kind != tokString {
			return nil, "", errors.InvalidArgumentf("query condition: %q needs a string literal, got %q", attr.Name, t.text)
		}
		return []byte(t.text), frame.Bytes, nil
	case t.kind != tokNumber:
		return nil, "", errors.InvalidArgumentf("query condition: %q needs a numeric literal, got %q", attr.Name, t.text)
	case attr.Type == frame.Int32 || attr.Type == frame.Int64:
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return n, frame.Int64, nil
		}
	}
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return nil, "", errors.InvalidArgumentf("query condition: bad number %q", t.text)
	}
	return f, frame.Float64, nil
}
