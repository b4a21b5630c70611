// Package rule implements the tree-shaped predicate language used to
// express entry/exit conditions over price fields, indicator values, and
// constants, together with the bar-by-bar evaluator described in the
// specification's §4.2.
package rule

import (
	"github.com/contactkeval/backtester/internal/bar"
	"github.com/contactkeval/backtester/internal/indicator"
)

// OperandKind discriminates an Operand's payload.
type OperandKind int

const (
	OperandPriceField OperandKind = iota
	OperandConstant
	OperandIndicator
)

// PriceField names one of the five fields an operand may read off a bar.
type PriceField int

const (
	FieldOpen PriceField = iota
	FieldHigh
	FieldLow
	FieldClose
	FieldVolume
)

// Operand is a tagged union: a price/volume field, a literal constant, or a
// reference into an instrument's indicator map.
type Operand struct {
	Kind     OperandKind
	Field    PriceField      // OperandPriceField
	Constant float64         // OperandConstant
	IndType  indicator.Type  // OperandIndicator
	IndPeriod int
	IndSecondary int
	IndTertiary  int
	IndMult      float64
	// SubField selects a sub-component of a multi-value indicator:
	//   MACD:        0=line, 1=signal, 2=histogram
	//   Bollinger:   0=upper, 1=middle, 2=lower
	//   Stochastic:  0=%K, 1=%D
	//   Pivot:       0=P, 1=R1, 2=R2, 3=R3, 4=S1, 5=S2, 6=S3
	SubField int
}

// Params reconstructs the indicator.Params this operand's indicator
// reference needs in order to look up its canonical key.
func (o Operand) Params() indicator.Params {
	return indicator.Params{
		Period:    o.IndPeriod,
		Secondary: o.IndSecondary,
		Tertiary:  o.IndTertiary,
		Mult:      o.IndMult,
	}
}

// Key returns the canonical indicator-map key this operand resolves
// against. It is only meaningful when Kind == OperandIndicator.
func (o Operand) Key() string {
	return indicator.Key(o.IndType, o.Params())
}

// IndicatorMap maps a canonical indicator key to its computed series, one
// per instrument, built once by the code-data loader (spec component G).
type IndicatorMap map[string]*indicator.Series

// resolve evaluates an operand at bar index i, returning (value, ok). ok is
// false when the operand cannot be resolved: an indicator series is
// missing from ind, the index is out of range, or the value at that index
// is not yet valid (still in its warm-up window).
func resolve(o Operand, bars []bar.Bar, ind IndicatorMap, i int) (float64, bool) {
	if i < 0 || i >= len(bars) {
		return 0, false
	}
	switch o.Kind {
	case OperandPriceField:
		switch o.Field {
		case FieldOpen:
			return bars[i].Open, true
		case FieldHigh:
			return bars[i].High, true
		case FieldLow:
			return bars[i].Low, true
		case FieldClose:
			return bars[i].Close, true
		case FieldVolume:
			return float64(bars[i].Volume), true
		}
		return 0, false
	case OperandConstant:
		return o.Constant, true
	case OperandIndicator:
		series, present := ind[o.Key()]
		if !present || i >= series.Len() {
			return 0, false
		}
		return resolveIndicatorValue(o, series.At(i))
	default:
		return 0, false
	}
}

func resolveIndicatorValue(o Operand, v indicator.Value) (float64, bool) {
	if !v.Valid {
		return 0, false
	}
	switch o.IndType {
	case indicator.TypeMACD:
		switch o.SubField {
		case 1:
			return v.MACDSignal, true
		case 2:
			return v.MACDHist, true
		default:
			return v.MACDLine, true
		}
	case indicator.TypeBollinger:
		switch o.SubField {
		case 1:
			return v.BollMiddle, true
		case 2:
			return v.BollLower, true
		default:
			return v.BollUpper, true
		}
	case indicator.TypeStochastic:
		if o.SubField == 1 {
			if !v.StochDValid {
				return 0, false
			}
			return v.StochD, true
		}
		return v.StochK, true
	case indicator.TypePivot:
		switch o.SubField {
		case 1:
			return v.PivotR1, true
		case 2:
			return v.PivotR2, true
		case 3:
			return v.PivotR3, true
		case 4:
			return v.PivotS1, true
		case 5:
			return v.PivotS2, true
		case 6:
			return v.PivotS3, true
		default:
			return v.PivotP, true
		}
	default:
		return v.Scalar, true
	}
}
