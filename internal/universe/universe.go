// Package universe parses the instrument universe, loads per-instrument bar
// and indicator data, and builds the merged timeline the backtest loop
// walks, per the specification's §4.4. Dates are normalised to UTC day
// boundaries throughout — the source material's split between local-time
// and UTC date handling is resolved here by standardising on UTC (§9).
package universe

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/contactkeval/backtester/internal/bar"
	"github.com/contactkeval/backtester/internal/indicator"
	"github.com/contactkeval/backtester/internal/rule"
)

// MinBars is the minimum number of bars an instrument must have across the
// backtest window to be considered loadable (specification §4.4, §9).
const MinBars = 30

// DataPort is the external fetch/list contract the core consumes (spec §6).
// Implementations live under internal/data.
type DataPort interface {
	FetchOHLCV(code, exchange string, start, end time.Time) ([]bar.Bar, error)
	ListSymbols(exchange string) ([]string, error)
}

// Strategy is the minimal view of a strategy's four rule slots needed to
// discover which indicator keys must be pre-computed. internal/backtest's
// Strategy type satisfies this.
type Strategy interface {
	EntryLong() *rule.Rule
	ExitLong() *rule.Rule
	EntryShort() *rule.Rule
	ExitShort() *rule.Rule
}

// CodeData holds one instrument's bars and its precomputed indicator map,
// built once at backtest start and read-only thereafter.
type CodeData struct {
	Code       string
	Exchange   string
	Bars       []bar.Bar
	Indicators rule.IndicatorMap
	DateIndex  map[int64]int
}

// ParseUniverse splits text on commas, trims whitespace, and rejects empty
// entries. The result holds codes only; the exchange argument is not used.
func ParseUniverse(text, exchange string) ([]string, error) {
	parts := strings.Split(text, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		c := strings.TrimSpace(p)
		if c == "" {
			continue
		}
		codes = append(codes, c)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("universe: empty code list")
	}
	return codes, nil
}

// NormalizeDay truncates t to a UTC day boundary, the canonical timeline key.
func NormalizeDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// dayKey returns the deterministic integer key (seconds since epoch of the
// UTC day boundary) used by DateIndex and the timeline.
func dayKey(t time.Time) int64 {
	return NormalizeDay(t).Unix()
}

// LoadCodeData fetches one instrument's bars via port and wraps them in a
// CodeData with an empty indicator map and a populated date index. Dropped
// (nil, ErrInsufficientBars) indicates the instrument should be treated as
// unloadable per specification §4.4 / §9, not a hard backtest abort unless
// every instrument fails that way.
var ErrInsufficientBars = fmt.Errorf("universe: fewer than %d bars", MinBars)

func LoadCodeData(port DataPort, code, exchange string, start, end time.Time) (*CodeData, error) {
	bars, err := port.FetchOHLCV(code, exchange, start, end)
	if err != nil {
		return nil, fmt.Errorf("universe: fetch %s: %w", code, err)
	}
	if len(bars) < MinBars {
		return nil, ErrInsufficientBars
	}
	cd := &CodeData{
		Code:       code,
		Exchange:   exchange,
		Bars:       bars,
		Indicators: rule.IndicatorMap{},
		DateIndex:  make(map[int64]int, len(bars)),
	}
	for i, b := range bars {
		cd.DateIndex[dayKey(b.Date)] = i
	}
	return cd, nil
}

// CollectIndicatorKeys walks an operand tree (every comparison leaf reachable
// from strat's four rules) and returns the distinct operands referencing
// indicators, deduplicated by canonical key.
func CollectIndicatorKeys(strat Strategy) map[string]rule.Operand {
	out := make(map[string]rule.Operand)
	for _, r := range []*rule.Rule{strat.EntryLong(), strat.ExitLong(), strat.EntryShort(), strat.ExitShort()} {
		collectFromRule(r, out)
	}
	return out
}

func collectFromRule(r *rule.Rule, out map[string]rule.Operand) {
	if r == nil {
		return
	}
	switch r.Kind {
	case rule.NodeComparison:
		collectOperand(r.Left, out)
		collectOperand(r.Right, out)
		collectOperand(r.Threshold, out)
	case rule.NodeAnd, rule.NodeOr:
		for _, c := range r.Children {
			collectFromRule(c, out)
		}
	case rule.NodeNot, rule.NodeConsecutive, rule.NodeAnyOf:
		collectFromRule(r.Child, out)
	}
}

func collectOperand(o rule.Operand, out map[string]rule.Operand) {
	if o.Kind != rule.OperandIndicator {
		return
	}
	out[o.Key()] = o
}

// ComputeIndicators walks strat's four rules, collects every distinct
// indicator key they reference, and computes each exactly once into
// cd.Indicators.
func ComputeIndicators(cd *CodeData, strat Strategy) error {
	ops := CollectIndicatorKeys(strat)
	for key, op := range ops {
		if _, ok := cd.Indicators[key]; ok {
			continue
		}
		_, series, err := indicator.Compute(cd.Bars, op.IndType, op.Params())
		if err != nil {
			return fmt.Errorf("universe: compute %s for %s: %w", key, cd.Code, err)
		}
		cd.Indicators[key] = series
	}
	return nil
}

// BuildTimeline returns the sorted, deduplicated union of every
// per-instrument bar date across codeData, as UTC day boundaries.
func BuildTimeline(codeData []*CodeData) []time.Time {
	seen := make(map[int64]time.Time)
	for _, cd := range codeData {
		for _, b := range cd.Bars {
			k := dayKey(b.Date)
			if _, ok := seen[k]; !ok {
				seen[k] = NormalizeDay(b.Date)
			}
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// IndexForDate returns the bar position for date in cd, or (-1, false) when
// the instrument did not trade on that date.
func (cd *CodeData) IndexForDate(date time.Time) (int, bool) {
	i, ok := cd.DateIndex[dayKey(date)]
	if !ok {
		return -1, false
	}
	return i, true
}
