// Package backtest implements the unified-timeline event loop (component H
// of the specification) that drives the indicator, rule, portfolio, and
// execution subsystems to a finished simulation result.
package backtest

import (
	"github.com/contactkeval/backtester/internal/backtesterr"
	"github.com/contactkeval/backtester/internal/rule"
)

// Strategy is a named rule-bundle plus the position-sizing and risk
// parameters that govern every entry and exit, per specification §3.
type Strategy struct {
	Name string

	entryLong  *rule.Rule // required
	exitLong   *rule.Rule // required
	entryShort *rule.Rule // optional; nil disables shorting for this strategy
	exitShort  *rule.Rule // optional

	PositionSize float64 // fraction of cash per entry, in (0,1]
	StopLossPct  float64 // percent; 0 disables
	TakeProfitPct float64 // percent; 0 disables
	MaxPositions int      // >= 1
	AllowShort   bool
}

// NewStrategy constructs a Strategy. entryLong and exitLong are required;
// entryShort/exitShort may be nil.
func NewStrategy(name string, entryLong, exitLong, entryShort, exitShort *rule.Rule,
	posSize, slPct, tpPct float64, maxPositions int, allowShort bool) *Strategy {
	return &Strategy{
		Name:          name,
		entryLong:     entryLong,
		exitLong:      exitLong,
		entryShort:    entryShort,
		exitShort:     exitShort,
		PositionSize:  posSize,
		StopLossPct:   slPct,
		TakeProfitPct: tpPct,
		MaxPositions:  maxPositions,
		AllowShort:    allowShort,
	}
}

// EntryLong implements universe.Strategy.
func (s *Strategy) EntryLong() *rule.Rule { return s.entryLong }

// ExitLong implements universe.Strategy.
func (s *Strategy) ExitLong() *rule.Rule { return s.exitLong }

// EntryShort implements universe.Strategy.
func (s *Strategy) EntryShort() *rule.Rule { return s.entryShort }

// ExitShort implements universe.Strategy.
func (s *Strategy) ExitShort() *rule.Rule { return s.exitShort }

// Validate checks the structural requirements specification §3/§7 impose on
// a Strategy before it can drive a backtest (the StrategyInvalid error
// kind).
func (s *Strategy) Validate() error {
	if s.entryLong == nil {
		return backtesterr.New(backtesterr.StrategyInvalid, "entry_long rule is required")
	}
	if s.exitLong == nil {
		return backtesterr.New(backtesterr.StrategyInvalid, "exit_long rule is required")
	}
	if s.PositionSize <= 0 || s.PositionSize > 1 {
		return backtesterr.New(backtesterr.StrategyInvalid, "position_size must be in (0,1]")
	}
	if s.MaxPositions < 1 {
		return backtesterr.New(backtesterr.StrategyInvalid, "max_positions must be >= 1")
	}
	if s.AllowShort && (s.entryShort == nil || s.exitShort == nil) {
		return backtesterr.New(backtesterr.StrategyInvalid, "allow_shorting requires entry_short and exit_short rules")
	}
	return nil
}
