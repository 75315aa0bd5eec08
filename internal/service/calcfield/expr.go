// Package calcfield evaluates user-authored calculated-field expressions
// against already-materialized result rows. Expressions never reach a
// database.
package calcfield

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"querylens/internal/domain"
)

// Evaluate computes one expression against one row and coerces the result
// to the field's declared type. Any parse or evaluation failure yields nil
// for that cell; a bad expression never aborts the dataset.
func Evaluate(expression string, row map[string]interface{}, resultType string) interface{} {
	node, err := parse(expression)
	if err != nil {
		return nil
	}
	v, err := node.eval(row)
	if err != nil {
		return nil
	}
	return coerce(v, resultType)
}

// --- lexer ---

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokColumn
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokComma})
			i++
		case c == '[':
			end := strings.IndexByte(src[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated column reference at offset %d", i)
			}
			tokens = append(tokens, token{kind: tokColumn, text: src[i+1 : i+end]})
			i += end + 1
		case c == '"' || c == '\'':
			text, consumed, err := lexString(src[i:], c)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: text})
			i += consumed
		case c == '!' && i+1 < len(src) && src[i+1] == '=':
			tokens = append(tokens, token{kind: tokOp, text: "!="})
			i += 2
		case c == '>' || c == '<':
			op := string(c)
			if i+1 < len(src) && src[i+1] == '=' {
				op += "="
				i++
			}
			tokens = append(tokens, token{kind: tokOp, text: op})
			i++
		case c == '=' || c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, token{kind: tokOp, text: string(c)})
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			n, err := strconv.ParseFloat(src[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", src[i:j])
			}
			tokens = append(tokens, token{kind: tokNumber, num: n})
			i = j
		case unicode.IsLetter(rune(c)) || c == '_':
			j := i
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_') {
				j++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return append(tokens, token{kind: tokEOF}), nil
}

func lexString(src string, quote byte) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(src); i++ {
		c := src[i]
		switch c {
		case '\\':
			if i+1 >= len(src) {
				return "", 0, fmt.Errorf("dangling escape in string literal")
			}
			i++
			b.WriteByte(src[i])
		case quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string literal")
}

// --- parser ---
//
// Grammar, loosest binding first:
//
//	expr       := additive (cmpOp additive)?
//	additive   := multiplicative (("+" | "-") multiplicative)*
//	multiplicative := unary (("*" | "/") unary)*
//	unary      := "-" unary | primary
//	primary    := NUMBER | STRING | COLUMN | ident "(" args ")"
//	            | "true" | "false" | "null" | "(" expr ")"

type node interface {
	eval(row map[string]interface{}) (interface{}, error)
}

type parser struct {
	tokens []token
	pos    int
}

func parse(src string) (node, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing input")
	}
	return n, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func isCmpOp(op string) bool {
	switch op {
	case "!=", ">=", "<=", "=", ">", "<":
		return true
	}
	return false
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp && isCmpOp(t.text) {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: t.text, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: t.text, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: t.text, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if t := p.peek(); t.kind == tokOp && t.text == "-" {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.advance()
	switch t.kind {
	case tokNumber:
		return &literalNode{val: t.num}, nil
	case tokString:
		return &literalNode{val: t.text}, nil
	case tokColumn:
		return &columnNode{name: t.text}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.advance().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return &literalNode{val: true}, nil
		case "false":
			return &literalNode{val: false}, nil
		case "null":
			return &literalNode{val: nil}, nil
		}
		if p.peek().kind != tokLParen {
			return nil, fmt.Errorf("unexpected identifier %q", t.text)
		}
		p.advance()
		var args []node
		if p.peek().kind != tokRParen {
			for {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peek().kind != tokComma {
					break
				}
				p.advance()
			}
		}
		if p.advance().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis in call to %s", t.text)
		}
		return &callNode{name: strings.ToUpper(t.text), args: args}, nil
	default:
		return nil, fmt.Errorf("unexpected token")
	}
}

// --- evaluation ---

type literalNode struct{ val interface{} }

func (n *literalNode) eval(map[string]interface{}) (interface{}, error) { return n.val, nil }

type columnNode struct{ name string }

func (n *columnNode) eval(row map[string]interface{}) (interface{}, error) {
	v, ok := row[n.name]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", n.name)
	}
	return normalizeCell(v), nil
}

type unaryNode struct{ operand node }

func (n *unaryNode) eval(row map[string]interface{}) (interface{}, error) {
	v, err := n.operand.eval(row)
	if err != nil {
		return nil, err
	}
	f, ok := toNumber(v)
	if !ok {
		return nil, fmt.Errorf("cannot negate %v", v)
	}
	return -f, nil
}

type binaryNode struct {
	op          string
	left, right node
}

func (n *binaryNode) eval(row map[string]interface{}) (interface{}, error) {
	l, err := n.left.eval(row)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(row)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "+", "-", "*", "/":
		lf, lok := toNumber(l)
		rf, rok := toNumber(r)
		if !lok || !rok {
			return nil, fmt.Errorf("non-numeric operand for %s", n.op)
		}
		switch n.op {
		case "+":
			return lf + rf, nil
		case "-":
			return lf - rf, nil
		case "*":
			return lf * rf, nil
		default:
			if rf == 0 {
				return 0.0, nil
			}
			return lf / rf, nil
		}
	default:
		return compare(n.op, l, r), nil
	}
}

// compare implements the loose condition semantics: numeric comparison when
// both sides are numbers, string equality for = and !=, and false for every
// other operator on non-numbers.
func compare(op string, l, r interface{}) bool {
	lf, lok := toNumber(l)
	rf, rok := toNumber(r)
	if lok && rok {
		switch op {
		case "=":
			return lf == rf
		case "!=":
			return lf != rf
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		}
		return false
	}
	switch op {
	case "=":
		return stringify(l) == stringify(r)
	case "!=":
		return stringify(l) != stringify(r)
	}
	return false
}

type callNode struct {
	name string
	args []node
}

func (n *callNode) eval(row map[string]interface{}) (interface{}, error) {
	if n.name == "IF" {
		if len(n.args) != 3 {
			return nil, fmt.Errorf("IF expects 3 arguments, got %d", len(n.args))
		}
		cond, err := n.args[0].eval(row)
		if err != nil {
			return nil, err
		}
		// only an explicit true branches; anything else is false
		if cond == true {
			return n.args[1].eval(row)
		}
		return n.args[2].eval(row)
	}

	args := make([]interface{}, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(row)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch n.name {
	case "ABS":
		if len(args) != 1 {
			return nil, fmt.Errorf("ABS expects 1 argument")
		}
		f, ok := toNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("ABS expects a number")
		}
		return math.Abs(f), nil
	case "ROUND":
		if len(args) != 2 {
			return nil, fmt.Errorf("ROUND expects 2 arguments")
		}
		f, fok := toNumber(args[0])
		d, dok := toNumber(args[1])
		if !fok || !dok {
			return nil, fmt.Errorf("ROUND expects numbers")
		}
		decimals := int(d)
		shift := math.Pow(10, float64(decimals))
		return strconv.FormatFloat(math.Round(f*shift)/shift, 'f', decimals, 64), nil
	case "UPPER":
		if len(args) != 1 {
			return nil, fmt.Errorf("UPPER expects 1 argument")
		}
		return strings.ToUpper(stringify(args[0])), nil
	case "LOWER":
		if len(args) != 1 {
			return nil, fmt.Errorf("LOWER expects 1 argument")
		}
		return strings.ToLower(stringify(args[0])), nil
	default:
		return nil, fmt.Errorf("unknown function %q", n.name)
	}
}

// --- value helpers ---

func toNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// normalizeCell folds driver-specific cell types into the evaluator's value
// set: nil, float64, bool, string.
func normalizeCell(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, bool, string, float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// coerce maps an evaluated value onto the field's declared result type.
func coerce(v interface{}, resultType string) interface{} {
	switch resultType {
	case domain.CalcResultNumber:
		f, ok := toNumber(v)
		if !ok {
			return nil
		}
		return f
	case domain.CalcResultBoolean:
		if b, ok := v.(bool); ok {
			return b
		}
		return strings.EqualFold(strings.TrimSpace(stringify(v)), "true")
	case domain.CalcResultString, domain.CalcResultDate:
		if v == nil {
			return nil
		}
		return stripQuotes(strings.TrimSpace(stringify(v)))
	default:
		return v
	}
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
