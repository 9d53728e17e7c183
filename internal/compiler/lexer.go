package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/operad/pkg/domain"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokOp:
		return "operator"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string // unquoted for strings
	pos  int
}

func (t token) is(keyword string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, keyword)
}

// lex splits clause text into tokens. Positions are byte offsets.
func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case r == '=' || r == '!' || r == '<' || r == '>':
			op, err := lexOperator(text, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		case r == '"' || r == '\'':
			s, n, err := lexString(text, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: s, pos: i})
			i += n
		case isDigit(r) || ((r == '-' || r == '+') && i+1 < len(text) && isDigit(rune(text[i+1]))):
			n := lexNumber(text, i)
			toks = append(toks, token{kind: tokNumber, text: text[i : i+n], pos: i})
			i += n
		case isIdentStart(r):
			start := i
			for i < len(text) {
				r, size := utf8.DecodeRuneInString(text[i:])
				if !isIdentPart(r) {
					break
				}
				i += size
			}
			toks = append(toks, token{kind: tokIdent, text: text[start:i], pos: start})
		default:
			return nil, &domain.SyntaxError{Text: text, Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(text)})
	return toks, nil
}

func lexOperator(text string, i int) (string, error) {
	if i+1 < len(text) && text[i+1] == '=' {
		return text[i : i+2], nil
	}
	switch text[i] {
	case '<', '>':
		return text[i : i+1], nil
	}
	return "", &domain.SyntaxError{Text: text, Pos: i, Msg: fmt.Sprintf("unknown operator %q", text[i:i+1])}
}

func lexString(text string, start int) (string, int, error) {
	quote := text[start]
	var b strings.Builder
	i := start + 1
	for i < len(text) {
		c := text[i]
		switch {
		case c == quote:
			return b.String(), i + 1 - start, nil
		case c == '\\' && i+1 < len(text):
			i++
			switch text[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(text[i])
			}
		default:
			b.WriteByte(c)
		}
		i++
	}
	return "", 0, &domain.SyntaxError{Text: text, Pos: start, Msg: "unterminated string"}
}

func lexNumber(text string, start int) int {
	i := start
	if text[i] == '-' || text[i] == '+' {
		i++
	}
	seenDot := false
	for i < len(text) {
		c := text[i]
		if c == '.' && !seenDot && i+1 < len(text) && isDigit(rune(text[i+1])) {
			seenDot = true
			i++
			continue
		}
		if !isDigit(rune(c)) {
			break
		}
		i++
	}
	return i - start
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '.' || r == '-'
}
