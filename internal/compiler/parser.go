package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/operad/pkg/domain"
)

const (
	kwWhen = "WHEN"
	kwThen = "THEN"
)

// Parse converts `WHEN <lhs> <op> <rhs> THEN <action>` text into a Clause.
// Identifiers are kept symbolic; nothing is resolved at parse time.
func Parse(id, text string) (domain.Clause, error) {
	p, err := newParser(text)
	if err != nil {
		return domain.Clause{}, err
	}
	if !p.peek().is(kwWhen) {
		return domain.Clause{}, p.errorf(p.peek(), "expected %s", kwWhen)
	}
	p.next()

	cond, err := p.condition()
	if err != nil {
		return domain.Clause{}, err
	}
	if !p.peek().is(kwThen) {
		return domain.Clause{}, p.errorf(p.peek(), "expected %s", kwThen)
	}
	p.next()

	action, err := p.action()
	if err != nil {
		return domain.Clause{}, err
	}
	if err := p.expectEOF(); err != nil {
		return domain.Clause{}, err
	}

	return domain.Clause{
		ID:        id,
		Raw:       text,
		Condition: cond,
		Action:    action,
	}, nil
}

// ParseCondition parses a bare `<lhs> <op> <rhs>` expression, as used by
// loop exit conditions. A leading WHEN is tolerated.
func ParseCondition(text string) (domain.Condition, error) {
	p, err := newParser(text)
	if err != nil {
		return domain.Condition{}, err
	}
	if p.peek().is(kwWhen) {
		p.next()
	}
	cond, err := p.condition()
	if err != nil {
		return domain.Condition{}, err
	}
	if err := p.expectEOF(); err != nil {
		return domain.Condition{}, err
	}
	return cond, nil
}

// MustParse is like Parse but panics on error. Intended for tests and static tables.
func MustParse(id, text string) domain.Clause {
	c, err := Parse(id, text)
	if err != nil {
		panic(err)
	}
	return c
}

type parser struct {
	text string
	toks []token
	pos  int
}

func newParser(text string) (*parser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &domain.SyntaxError{Text: text, Msg: "empty clause"}
	}
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	return &parser{text: text, toks: toks}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if t.kind == tokEOF {
		msg += ", got end of input"
	} else {
		msg += fmt.Sprintf(", got %s %q", t.kind, t.text)
	}
	return &domain.SyntaxError{Text: p.text, Pos: t.pos, Msg: msg}
}

func (p *parser) expectEOF() error {
	if t := p.peek(); t.kind != tokEOF {
		return p.errorf(t, "unexpected trailing input")
	}
	return nil
}

func (p *parser) condition() (domain.Condition, error) {
	lhs, err := p.operand()
	if err != nil {
		return domain.Condition{}, err
	}
	opTok := p.peek()
	if opTok.kind != tokOp {
		return domain.Condition{}, p.errorf(opTok, "expected comparison operator")
	}
	p.next()
	op := domain.Operator(opTok.text)
	if !op.Valid() {
		return domain.Condition{}, p.errorf(opTok, "unsupported operator")
	}
	rhs, err := p.operand()
	if err != nil {
		return domain.Condition{}, err
	}
	return domain.Condition{LHS: lhs, Op: op, RHS: rhs}, nil
}

func (p *parser) operand() (domain.Operand, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.next()
		return domain.Literal(domain.String(t.text)), nil
	case tokNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return domain.Operand{}, p.errorf(t, "invalid number")
		}
		p.next()
		return domain.Literal(domain.Number(n)), nil
	case tokIdent:
		if t.is(kwWhen) || t.is(kwThen) {
			return domain.Operand{}, p.errorf(t, "expected value")
		}
		p.next()
		switch {
		case t.is("true"):
			return domain.Literal(domain.Bool(true)), nil
		case t.is("false"):
			return domain.Literal(domain.Bool(false)), nil
		}
		return domain.Ident(t.text), nil
	}
	return domain.Operand{}, p.errorf(t, "expected value")
}

func (p *parser) action() (domain.Action, error) {
	name := p.peek()
	if name.kind != tokIdent || name.is(kwWhen) || name.is(kwThen) {
		return domain.Action{}, p.errorf(name, "expected action")
	}
	p.next()
	if p.peek().kind != tokLParen {
		return domain.Action{Kind: domain.ActionSimple, Name: name.text}, nil
	}
	p.next()

	action := domain.Action{Kind: domain.ActionCall, Name: name.text, Args: []domain.Operand{}}
	if p.peek().kind == tokRParen {
		p.next()
		return action, nil
	}
	for {
		arg, err := p.operand()
		if err != nil {
			return domain.Action{}, err
		}
		action.Args = append(action.Args, arg)

		t := p.next()
		switch t.kind {
		case tokComma:
			continue
		case tokRParen:
			return action, nil
		default:
			return domain.Action{}, p.errorf(t, "expected ',' or ')'")
		}
	}
}
