package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"rulify/internal/models"
)

// Custom formulas are evaluated by a small hand-written parser, never by
// dynamic code execution. The grammar after metric substitution is:
//
//	expr   := and { "||" and }
//	and    := term { "&&" term }
//	term   := "(" expr ")" | comparison
//	comparison := NUMBER op NUMBER
//	op     := "<" | "<=" | ">" | ">=" | "==" | "!="
//
// Parentheses group boolean sub-expressions. Anything outside digits, decimal
// points, whitespace, parentheses and the operators above is rejected.

// EvaluateFormula substitutes metric names with their values in formula and
// evaluates the resulting boolean expression. Malformed or unresolved
// formulas evaluate to false.
func (s *AutomationService) EvaluateFormula(formula string, metrics map[string]float64) bool {
	result, err := evalFormula(formula, metrics)
	if err != nil {
		s.logger.Warnf("automation: invalid formula %q: %v", formula, err)
		return false
	}
	return result
}

func evalFormula(formula string, metrics map[string]float64) (bool, error) {
	expr := substituteMetrics(formula, metrics)
	tokens, err := tokenizeFormula(expr)
	if err != nil {
		return false, err
	}
	p := &formulaParser{tokens: tokens}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.peek().kind != tokEOF {
		return false, fmt.Errorf("unexpected trailing input at %q", p.peek().text)
	}
	return result, nil
}

// substituteMetrics replaces metric names with their numeric values, longest
// names first so that overlapping names cannot corrupt each other.
func substituteMetrics(formula string, metrics map[string]float64) string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	expr := formula
	for _, name := range names {
		expr = strings.ReplaceAll(expr, name, strconv.FormatFloat(metrics[name], 'f', -1, 64))
	}
	return expr
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokLParen
	tokRParen
	tokLT
	tokLE
	tokGT
	tokGE
	tokEQ
	tokNE
	tokAnd
	tokOr
)

type formulaToken struct {
	kind  tokenKind
	text  string
	value float64
}

func tokenizeFormula(expr string) ([]formulaToken, error) {
	var tokens []formulaToken
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(expr) && (expr[i] >= '0' && expr[i] <= '9' || expr[i] == '.') {
				i++
			}
			text := expr[start:i]
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", text)
			}
			tokens = append(tokens, formulaToken{kind: tokNumber, text: text, value: value})
		case c == '(':
			tokens = append(tokens, formulaToken{kind: tokLParen, text: "("})
			i++
		case c == ')':
			tokens = append(tokens, formulaToken{kind: tokRParen, text: ")"})
			i++
		case c == '<':
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, formulaToken{kind: tokLE, text: "<="})
				i += 2
			} else {
				tokens = append(tokens, formulaToken{kind: tokLT, text: "<"})
				i++
			}
		case c == '>':
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, formulaToken{kind: tokGE, text: ">="})
				i += 2
			} else {
				tokens = append(tokens, formulaToken{kind: tokGT, text: ">"})
				i++
			}
		case c == '=':
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, formulaToken{kind: tokEQ, text: "=="})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character %q", "=")
			}
		case c == '!':
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, formulaToken{kind: tokNE, text: "!="})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character %q", "!")
			}
		case c == '&':
			if i+1 < len(expr) && expr[i+1] == '&' {
				tokens = append(tokens, formulaToken{kind: tokAnd, text: "&&"})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character %q", "&")
			}
		case c == '|':
			if i+1 < len(expr) && expr[i+1] == '|' {
				tokens = append(tokens, formulaToken{kind: tokOr, text: "||"})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character %q", "|")
			}
		default:
			// Typically an unresolved metric name.
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}
	tokens = append(tokens, formulaToken{kind: tokEOF})
	return tokens, nil
}

type formulaParser struct {
	tokens []formulaToken
	pos    int
}

func (p *formulaParser) peek() formulaToken {
	return p.tokens[p.pos]
}

func (p *formulaParser) next() formulaToken {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *formulaParser) parseOr() (bool, error) {
	result, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		result = result || right
	}
	return result, nil
}

func (p *formulaParser) parseAnd() (bool, error) {
	result, err := p.parseTerm()
	if err != nil {
		return false, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return false, err
		}
		result = result && right
	}
	return result, nil
}

func (p *formulaParser) parseTerm() (bool, error) {
	if p.peek().kind == tokLParen {
		p.next()
		result, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if p.peek().kind != tokRParen {
			return false, fmt.Errorf("expected closing parenthesis")
		}
		p.next()
		return result, nil
	}
	return p.parseComparison()
}

func (p *formulaParser) parseComparison() (bool, error) {
	left := p.next()
	if left.kind != tokNumber {
		return false, fmt.Errorf("expected number, got %q", left.text)
	}
	op := p.next()
	var condOp models.ConditionOperator
	switch op.kind {
	case tokLT:
		condOp = models.OperatorLessThan
	case tokLE:
		condOp = models.OperatorLessThanOrEqual
	case tokGT:
		condOp = models.OperatorGreaterThan
	case tokGE:
		condOp = models.OperatorGreaterThanOrEqual
	case tokEQ:
		condOp = models.OperatorEqual
	case tokNE:
		condOp = models.OperatorNotEqual
	default:
		return false, fmt.Errorf("expected comparison operator, got %q", op.text)
	}
	right := p.next()
	if right.kind != tokNumber {
		return false, fmt.Errorf("expected number, got %q", right.text)
	}
	return EvaluateCondition(left.value, condOp, right.value), nil
}
