package rule

import (
	"math"

	"github.com/contactkeval/backtester/internal/bar"
)

const epsilon = 1e-9

// Evaluate runs r against bars/ind at bar index i and returns its boolean
// value. Evaluate is pure: it never mutates r, bars, or ind. A rule whose
// operand cannot be resolved (missing indicator, invalid warm-up value,
// out-of-range index) evaluates to false for the enclosing comparison;
// this propagates through composites by ordinary boolean rules rather than
// aborting evaluation.
func Evaluate(r *Rule, bars []bar.Bar, ind IndicatorMap, i int) bool {
	if r == nil {
		return false
	}
	switch r.Kind {
	case NodeComparison:
		return evalComparison(r, bars, ind, i)
	case NodeAnd:
		if len(r.Children) == 0 {
			return false
		}
		for _, c := range r.Children {
			if !Evaluate(c, bars, ind, i) {
				return false
			}
		}
		return true
	case NodeOr:
		if len(r.Children) == 0 {
			return false
		}
		for _, c := range r.Children {
			if Evaluate(c, bars, ind, i) {
				return true
			}
		}
		return false
	case NodeNot:
		if r.Child == nil {
			return false
		}
		return !Evaluate(r.Child, bars, ind, i)
	case NodeConsecutive:
		if r.Lookback < 1 || i < r.Lookback-1 {
			return false
		}
		for j := i - r.Lookback + 1; j <= i; j++ {
			if !Evaluate(r.Child, bars, ind, j) {
				return false
			}
		}
		return true
	case NodeAnyOf:
		if r.Lookback < 1 || i < r.Lookback-1 {
			return false
		}
		for j := i - r.Lookback + 1; j <= i; j++ {
			if Evaluate(r.Child, bars, ind, j) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evalComparison(r *Rule, bars []bar.Bar, ind IndicatorMap, i int) bool {
	switch r.Op {
	case OpCrossAbove:
		if i == 0 {
			return false
		}
		pl, ok1 := resolve(r.Left, bars, ind, i-1)
		pr, ok2 := resolve(r.Right, bars, ind, i-1)
		cl, ok3 := resolve(r.Left, bars, ind, i)
		cr, ok4 := resolve(r.Right, bars, ind, i)
		if !(ok1 && ok2 && ok3 && ok4) {
			return false
		}
		return pl <= pr && cl > cr
	case OpCrossBelow:
		if i == 0 {
			return false
		}
		pl, ok1 := resolve(r.Left, bars, ind, i-1)
		pr, ok2 := resolve(r.Right, bars, ind, i-1)
		cl, ok3 := resolve(r.Left, bars, ind, i)
		cr, ok4 := resolve(r.Right, bars, ind, i)
		if !(ok1 && ok2 && ok3 && ok4) {
			return false
		}
		return pl >= pr && cl < cr
	case OpAbove:
		l, ok1 := resolve(r.Left, bars, ind, i)
		rv, ok2 := resolve(r.Right, bars, ind, i)
		return ok1 && ok2 && l > rv
	case OpBelow:
		l, ok1 := resolve(r.Left, bars, ind, i)
		rv, ok2 := resolve(r.Right, bars, ind, i)
		return ok1 && ok2 && l < rv
	case OpEquals:
		l, ok1 := resolve(r.Left, bars, ind, i)
		rv, ok2 := resolve(r.Right, bars, ind, i)
		return ok1 && ok2 && math.Abs(l-rv) <= epsilon
	case OpBetween:
		l, ok1 := resolve(r.Left, bars, ind, i)
		lower, ok2 := resolve(r.Right, bars, ind, i)
		upper, ok3 := resolve(r.Threshold, bars, ind, i)
		return ok1 && ok2 && ok3 && lower <= l && l <= upper
	default:
		return false
	}
}
