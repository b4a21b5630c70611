// Package ruleparser parses the rule-text grammar named in specification
// §6 into a rule.Rule AST. The grammar supports comparison forms
// (operand op operand), composites (AND/OR/NOT), temporal forms
// (CONSECUTIVE/ANY_OF), BETWEEN, and indicator/price-field/constant
// operands.
package ruleparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/contactkeval/backtester/internal/indicator"
	"github.com/contactkeval/backtester/internal/rule"
)

// Parse compiles text into a rule.Rule.
func Parse(text string) (*rule.Rule, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	r, err := p.parseRule()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("ruleparser: unexpected trailing input at token %d (%q)", p.pos, p.toks[p.pos])
	}
	return r, nil
}

// --- tokenizer -------------------------------------------------------------

func tokenize(text string) ([]string, error) {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == '(' || r == ')' || r == ',':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks, nil
}

// --- recursive-descent parser -----------------------------------------------

type parser struct {
	toks []string
	pos  int
}

func (p *parser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) next() (string, error) {
	if p.pos >= len(p.toks) {
		return "", fmt.Errorf("ruleparser: unexpected end of input")
	}
	t := p.toks[p.pos]
	p.pos++
	return t, nil
}

func (p *parser) expect(tok string) error {
	got, err := p.next()
	if err != nil {
		return err
	}
	if got != tok {
		return fmt.Errorf("ruleparser: expected %q, got %q", tok, got)
	}
	return nil
}

// parseRule dispatches on the leading token: a composite/temporal keyword,
// or a comparison's left-hand operand.
func (p *parser) parseRule() (*rule.Rule, error) {
	switch strings.ToUpper(p.peek()) {
	case "AND":
		return p.parseNAry(rule.And)
	case "OR":
		return p.parseNAry(rule.Or)
	case "NOT":
		return p.parseUnary(func(c *rule.Rule) *rule.Rule { return rule.Not(c) })
	case "CONSECUTIVE":
		return p.parseTemporal(rule.Consecutive)
	case "ANY_OF":
		return p.parseTemporal(rule.AnyOf)
	case "BETWEEN":
		return p.parseBetween()
	default:
		return p.parseComparison()
	}
}

func (p *parser) parseNAry(ctor func(...*rule.Rule) *rule.Rule) (*rule.Rule, error) {
	if _, err := p.next(); err != nil { // keyword
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var children []*rule.Rule
	for {
		child, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
		if p.peek() == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("ruleparser: composite requires at least one child")
	}
	return ctor(children...), nil
}

func (p *parser) parseUnary(ctor func(*rule.Rule) *rule.Rule) (*rule.Rule, error) {
	if _, err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	child, err := p.parseRule()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return ctor(child), nil
}

func (p *parser) parseTemporal(ctor func(*rule.Rule, int) *rule.Rule) (*rule.Rule, error) {
	if _, err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	child, err := p.parseRule()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	nTok, err := p.next()
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(nTok)
	if err != nil {
		return nil, fmt.Errorf("ruleparser: invalid lookback %q: %w", nTok, err)
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return ctor(child, n), nil
}

func (p *parser) parseBetween() (*rule.Rule, error) {
	if _, err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	lower, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	upper, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return rule.Between(left, lower, upper), nil
}

var compareOps = map[string]rule.CompareOp{
	"CROSS_ABOVE": rule.OpCrossAbove,
	"CROSS_BELOW": rule.OpCrossBelow,
	"ABOVE":       rule.OpAbove,
	"BELOW":       rule.OpBelow,
	"EQUALS":      rule.OpEquals,
	">":           rule.OpAbove,
	"<":           rule.OpBelow,
	">=":          rule.OpAbove,
	"<=":          rule.OpBelow,
	"==":          rule.OpEquals,
	"=":           rule.OpEquals,
}

func (p *parser) parseComparison() (*rule.Rule, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	opTok, err := p.next()
	if err != nil {
		return nil, err
	}
	op, ok := compareOps[strings.ToUpper(opTok)]
	if !ok {
		return nil, fmt.Errorf("ruleparser: unknown comparison operator %q", opTok)
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return rule.Comparison(op, left, right), nil
}

// --- operands ---------------------------------------------------------------

var priceFields = map[string]rule.PriceField{
	"OPEN":   rule.FieldOpen,
	"HIGH":   rule.FieldHigh,
	"LOW":    rule.FieldLow,
	"CLOSE":  rule.FieldClose,
	"VOLUME": rule.FieldVolume,
}

func (p *parser) parseOperand() (rule.Operand, error) {
	tok, err := p.next()
	if err != nil {
		return rule.Operand{}, err
	}
	upper := strings.ToUpper(tok)

	if field, ok := priceFields[upper]; ok {
		return rule.Operand{Kind: rule.OperandPriceField, Field: field}, nil
	}

	switch upper {
	case "SMA", "EMA", "WMA", "RSI", "ATR", "STDDEV", "ROC":
		n, err := p.parseIntArgs(1)
		if err != nil {
			return rule.Operand{}, err
		}
		return rule.Operand{Kind: rule.OperandIndicator, IndType: scalarType(upper), IndPeriod: n[0]}, nil
	case "OBV":
		if err := p.parseEmptyArgs(); err != nil {
			return rule.Operand{}, err
		}
		return rule.Operand{Kind: rule.OperandIndicator, IndType: indicator.TypeOBV}, nil
	case "VWAP":
		if err := p.parseEmptyArgs(); err != nil {
			return rule.Operand{}, err
		}
		return rule.Operand{Kind: rule.OperandIndicator, IndType: indicator.TypeVWAP}, nil
	case "MACD":
		n, err := p.parseIntArgs(3)
		if err != nil {
			return rule.Operand{}, err
		}
		return rule.Operand{Kind: rule.OperandIndicator, IndType: indicator.TypeMACD,
			IndPeriod: n[0], IndSecondary: n[1], IndTertiary: n[2], SubField: 0}, nil
	case "STOCHASTIC":
		n, err := p.parseIntArgs(2)
		if err != nil {
			return rule.Operand{}, err
		}
		return rule.Operand{Kind: rule.OperandIndicator, IndType: indicator.TypeStochastic,
			IndPeriod: n[0], IndSecondary: n[1], SubField: 0}, nil
	case "BOLLINGER_UPPER", "BOLLINGER_MIDDLE", "BOLLINGER_LOWER":
		period, mult, err := p.parseBollingerArgs()
		if err != nil {
			return rule.Operand{}, err
		}
		sub := map[string]int{"BOLLINGER_UPPER": 0, "BOLLINGER_MIDDLE": 1, "BOLLINGER_LOWER": 2}[upper]
		return rule.Operand{Kind: rule.OperandIndicator, IndType: indicator.TypeBollinger,
			IndPeriod: period, IndMult: mult, SubField: sub}, nil
	case "PIVOT":
		if err := p.parseEmptyArgs(); err != nil {
			return rule.Operand{}, err
		}
		return rule.Operand{Kind: rule.OperandIndicator, IndType: indicator.TypePivot, SubField: 0}, nil
	}

	// Otherwise treat as a numeric literal, folding arithmetic via
	// govaluate (e.g. "95*1.1") the same way the original strike/leg
	// expressions were evaluated.
	val, err := evalConstant(tok)
	if err != nil {
		return rule.Operand{}, fmt.Errorf("ruleparser: cannot parse operand %q: %w", tok, err)
	}
	return rule.Operand{Kind: rule.OperandConstant, Constant: val}, nil
}

func scalarType(name string) indicator.Type {
	switch name {
	case "SMA":
		return indicator.TypeSMA
	case "EMA":
		return indicator.TypeEMA
	case "WMA":
		return indicator.TypeWMA
	case "RSI":
		return indicator.TypeRSI
	case "ATR":
		return indicator.TypeATR
	case "STDDEV":
		return indicator.TypeSTDDEV
	case "ROC":
		return indicator.TypeROC
	default:
		return indicator.TypeSMA
	}
}

func (p *parser) parseEmptyArgs() error {
	if p.peek() != "(" {
		return nil // bare keyword form (e.g. PIVOT with no parens)
	}
	p.next()
	return p.expect(")")
}

func (p *parser) parseIntArgs(count int) ([]int, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	out := make([]int, 0, count)
	for i := 0; i < count; i++ {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("ruleparser: expected integer argument, got %q: %w", tok, err)
		}
		out = append(out, n)
		if i < count-1 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseBollingerArgs() (period int, mult float64, err error) {
	if err = p.expect("("); err != nil {
		return
	}
	pTok, err := p.next()
	if err != nil {
		return
	}
	period, err = strconv.Atoi(pTok)
	if err != nil {
		return 0, 0, fmt.Errorf("ruleparser: invalid bollinger period %q: %w", pTok, err)
	}
	if err = p.expect(","); err != nil {
		return
	}
	mTok, err := p.next()
	if err != nil {
		return
	}
	mult, err = strconv.ParseFloat(mTok, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("ruleparser: invalid bollinger multiplier %q: %w", mTok, err)
	}
	if err = p.expect(")"); err != nil {
		return
	}
	return period, mult, nil
}

// evalConstant folds a numeric literal operand, allowing simple arithmetic
// expressions through govaluate exactly as the source strategy planner's
// strike expressions were evaluated.
func evalConstant(expr string) (float64, error) {
	evalExpr, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return 0, err
	}
	result, err := evalExpr.Evaluate(nil)
	if err != nil {
		return 0, err
	}
	switch v := result.(type) {
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("ruleparser: operand %q did not evaluate to a number", expr)
	}
}
