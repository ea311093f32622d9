package bot

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// calcAllowed is every character /calc accepts.
const calcAllowed = "0123456789+-*/(). "

const maxCalcDepth = 64

var (
	errCalcChars     = errors.New("expression contains disallowed characters")
	errCalcSyntax    = errors.New("invalid expression syntax")
	errCalcDivByZero = errors.New("division by zero")
	errCalcRange     = errors.New("result out of range")
)

// Evaluate computes an arithmetic expression over numbers, + - * / // **,
// unary signs, and parentheses. Input with any character outside
// calcAllowed is rejected before parsing.
func Evaluate(expr string) (float64, error) {
	if i := strings.IndexFunc(expr, func(r rune) bool { return !strings.ContainsRune(calcAllowed, r) }); i >= 0 {
		return 0, fmt.Errorf("%w at offset %d", errCalcChars, i)
	}

	p := &calcParser{src: expr}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, fmt.Errorf("%w: unexpected %q at offset %d", errCalcSyntax, p.src[p.pos], p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errCalcRange
	}
	return v, nil
}

// FormatNumber renders a result without a trailing ".0" for whole numbers.
func FormatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	if math.Abs(v) >= 1e21 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// calcParser is a recursive-descent parser that evaluates while parsing.
//
//	expr  = term { ("+" | "-") term }
//	term  = unary { ("*" | "/" | "//") unary }
//	unary = ("+" | "-") unary | power
//	power = atom [ "**" unary ]
//	atom  = number | "(" expr ")"
type calcParser struct {
	src   string
	pos   int
	depth int
}

func (p *calcParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

// accept consumes tok if it is next, ignoring leading spaces.
func (p *calcParser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

// peek reports whether tok is next without consuming it.
func (p *calcParser) peek(tok string) bool {
	p.skipSpace()
	return strings.HasPrefix(p.src[p.pos:], tok)
}

func (p *calcParser) enter() error {
	p.depth++
	if p.depth > maxCalcDepth {
		return fmt.Errorf("%w: nested too deeply", errCalcSyntax)
	}
	return nil
}

func (p *calcParser) leave() { p.depth-- }

func (p *calcParser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.accept("+"):
			rhs, err := p.term()
			if err != nil {
				return 0, err
			}
			v += rhs
		case p.accept("-"):
			rhs, err := p.term()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *calcParser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		var op string
		switch {
		case p.peek("**"):
			return v, nil
		case p.accept("//"):
			op = "//"
		case p.accept("*"):
			op = "*"
		case p.accept("/"):
			op = "/"
		default:
			return v, nil
		}

		rhs, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			v *= rhs
		case "/":
			if rhs == 0 {
				return 0, errCalcDivByZero
			}
			v /= rhs
		case "//":
			if rhs == 0 {
				return 0, errCalcDivByZero
			}
			v = math.Floor(v / rhs)
		}
	}
}

func (p *calcParser) unary() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	switch {
	case p.accept("+"):
		return p.unary()
	case p.accept("-"):
		v, err := p.unary()
		return -v, err
	default:
		return p.power()
	}
}

func (p *calcParser) power() (float64, error) {
	base, err := p.atom()
	if err != nil {
		return 0, err
	}
	if !p.accept("**") {
		return base, nil
	}
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	if base == 0 && exp < 0 {
		return 0, errCalcDivByZero
	}
	return math.Pow(base, exp), nil
}

func (p *calcParser) atom() (float64, error) {
	if p.accept("(") {
		if err := p.enter(); err != nil {
			return 0, err
		}
		defer p.leave()

		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if !p.accept(")") {
			return 0, fmt.Errorf("%w: missing closing parenthesis", errCalcSyntax)
		}
		return v, nil
	}
	return p.number()
}

func (p *calcParser) number() (float64, error) {
	p.skipSpace()
	start := p.pos
	digits, dots := 0, 0
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c >= '0' && c <= '9' {
			digits++
		} else if c == '.' {
			dots++
		} else {
			break
		}
		p.pos++
	}
	if digits == 0 || dots > 1 {
		if p.pos >= len(p.src) && start == p.pos {
			return 0, fmt.Errorf("%w: unexpected end of input", errCalcSyntax)
		}
		return 0, fmt.Errorf("%w: expected a number at offset %d", errCalcSyntax, start)
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errCalcSyntax, err)
	}
	return v, nil
}
