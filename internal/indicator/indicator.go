// Package indicator implements the family of pure functions that map a bar
// series to a typed, index-aligned series of computed values. Every
// constructor returns a Series whose length equals the input bar series;
// positions before an indicator's warm-up period carry Valid=false and a
// zero payload.
package indicator

import (
	"fmt"

	"github.com/contactkeval/backtester/internal/bar"
)

// Kind discriminates the payload shape carried by a Value.
type Kind int

const (
	KindScalar Kind = iota
	KindMACD
	KindBollinger
	KindStochastic
	KindPivot
)

// Value is a tagged union of the possible per-bar indicator payloads. Only
// the field(s) matching Kind are meaningful; Valid indicates whether the
// bar had enough history behind it to compute a value.
type Value struct {
	Valid bool

	Scalar float64 // KindScalar

	MACDLine   float64 // KindMACD
	MACDSignal float64
	MACDHist   float64

	BollUpper  float64 // KindBollinger
	BollMiddle float64
	BollLower  float64

	StochK      float64 // KindStochastic
	StochD      float64
	StochDValid bool // %D needs dPeriod-1 more bars than %K; %K may be usable before %D is

	PivotP  float64 // KindPivot
	PivotR1 float64
	PivotR2 float64
	PivotR3 float64
	PivotS1 float64
	PivotS2 float64
	PivotS3 float64
}

// Type identifies an indicator family, independent of its parameters.
type Type int

const (
	TypeSMA Type = iota
	TypeEMA
	TypeWMA
	TypeRSI
	TypeATR
	TypeSTDDEV
	TypeROC
	TypeOBV
	TypeVWAP
	TypeMACD
	TypeBollinger
	TypeStochastic
	TypePivot
)

// Params holds every parameter an indicator constructor may need. Unused
// fields are ignored for a given Type.
type Params struct {
	Period    int     // primary period (SMA/EMA/WMA/RSI/ATR/STDDEV/ROC, Bollinger, fast-EMA of MACD, %K of Stochastic)
	Secondary int     // MACD slow period, Stochastic %D period
	Tertiary  int      // MACD signal period
	Mult      float64 // Bollinger stddev multiplier
}

// Series is the dense, index-aligned output of one indicator constructor.
type Series struct {
	Kind   Kind
	Type   Type
	Params Params
	Values []Value
}

// Len returns the number of bars the series was computed over.
func (s *Series) Len() int { return len(s.Values) }

// At returns the value at index i. It panics if i is out of range — callers
// in this package always bound-check before calling At; the rule evaluator
// treats a missing/invalid value as resolution failure instead of calling
// At out of range.
func (s *Series) At(i int) Value { return s.Values[i] }

// ErrEmptyBars is returned by every constructor when the input bar slice is
// empty.
var ErrEmptyBars = fmt.Errorf("indicator: empty bar series")

// ErrInvalidPeriod is returned when a period parameter is <= 0.
var ErrInvalidPeriod = fmt.Errorf("indicator: period must be > 0")

func checkInputs(bars []bar.Bar, periods ...int) error {
	if len(bars) == 0 {
		return ErrEmptyBars
	}
	for _, p := range periods {
		if p <= 0 {
			return ErrInvalidPeriod
		}
	}
	return nil
}

// Key returns the canonical de-duplication key for an indicator reference,
// per specification §4.1 ("Indicator key"). Bollinger/Pivot sub-field
// selectors do not vary the key.
func Key(t Type, p Params) string {
	switch t {
	case TypeSMA:
		return fmt.Sprintf("SMA_%d", p.Period)
	case TypeEMA:
		return fmt.Sprintf("EMA_%d", p.Period)
	case TypeWMA:
		return fmt.Sprintf("WMA_%d", p.Period)
	case TypeRSI:
		return fmt.Sprintf("RSI_%d", p.Period)
	case TypeATR:
		return fmt.Sprintf("ATR_%d", p.Period)
	case TypeSTDDEV:
		return fmt.Sprintf("STDDEV_%d", p.Period)
	case TypeROC:
		return fmt.Sprintf("ROC_%d", p.Period)
	case TypeOBV:
		return "OBV"
	case TypeVWAP:
		return "VWAP"
	case TypeMACD:
		return fmt.Sprintf("MACD_%d_%d_%d", p.Period, p.Secondary, p.Tertiary)
	case TypeStochastic:
		return fmt.Sprintf("STOCHASTIC_%d_%d", p.Period, p.Secondary)
	case TypeBollinger:
		return fmt.Sprintf("BOLLINGER_%d_%d", p.Period, int(p.Mult*100))
	case TypePivot:
		return "PIVOT"
	default:
		return fmt.Sprintf("UNKNOWN_%d", t)
	}
}

// Compute dispatches to the constructor for t, returning the canonical key
// alongside the computed series so callers (internal/universe's loader) can
// insert straight into an indicator map.
func Compute(bars []bar.Bar, t Type, p Params) (string, *Series, error) {
	key := Key(t, p)
	var s *Series
	var err error
	switch t {
	case TypeSMA:
		s, err = SMA(bars, p.Period)
	case TypeEMA:
		s, err = EMA(bars, p.Period)
	case TypeWMA:
		s, err = WMA(bars, p.Period)
	case TypeRSI:
		s, err = RSI(bars, p.Period)
	case TypeATR:
		s, err = ATR(bars, p.Period)
	case TypeSTDDEV:
		s, err = STDDEV(bars, p.Period)
	case TypeROC:
		s, err = ROC(bars, p.Period)
	case TypeOBV:
		s, err = OBV(bars)
	case TypeVWAP:
		s, err = VWAP(bars)
	case TypeMACD:
		s, err = MACD(bars, p.Period, p.Secondary, p.Tertiary)
	case TypeBollinger:
		s, err = Bollinger(bars, p.Period, p.Mult)
	case TypeStochastic:
		s, err = Stochastic(bars, p.Period, p.Secondary)
	case TypePivot:
		s, err = Pivot(bars)
	default:
		return key, nil, fmt.Errorf("indicator: unknown type %d", t)
	}
	return key, s, err
}
