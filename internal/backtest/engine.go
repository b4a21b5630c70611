package backtest

import (
	"time"

	"github.com/contactkeval/backtester/internal/backtesterr"
	"github.com/contactkeval/backtester/internal/execution"
	"github.com/contactkeval/backtester/internal/logger"
	"github.com/contactkeval/backtester/internal/portfolio"
	"github.com/contactkeval/backtester/internal/rule"
	"github.com/contactkeval/backtester/internal/universe"
)

// Config bundles the run-level parameters the engine needs beyond the
// strategy itself: capital, cost schedule, and the date window. It mirrors
// the config-port keys named in specification §6.
type Config struct {
	InitialCapital  float64
	CommissionFlat  float64
	CommissionPct   float64
	SlippagePct     float64
	AllowShorting   bool
	RiskFreeRate    float64
	Start           time.Time
	End             time.Time
	Exchange        string
	Codes           []string
}

// Engine owns the data port and drives one backtest invocation end to end.
type Engine struct {
	cfg  Config
	port universe.DataPort
}

// NewEngine constructs an Engine bound to cfg and port.
func NewEngine(cfg Config, port universe.DataPort) *Engine {
	return &Engine{cfg: cfg, port: port}
}

// Result is everything the backtest loop produces: the final portfolio
// state plus the per-instrument CodeData used, for downstream metrics and
// reporting.
type Result struct {
	Portfolio *portfolio.Portfolio
	CodeData  map[string]*universe.CodeData
	Timeline  []time.Time
}

// Run executes the unified-timeline event loop described in specification
// §4.5: it loads every instrument's bars and indicators, builds the merged
// timeline, then walks it date by date applying triggers, exits, and
// entries in the prescribed order.
func (e *Engine) Run(strat *Strategy) (*Result, error) {
	if err := strat.Validate(); err != nil {
		return nil, err
	}
	if len(e.cfg.Codes) == 0 {
		return nil, backtesterr.New(backtesterr.InsufficientData, "universe is empty")
	}

	codeData := make(map[string]*universe.CodeData, len(e.cfg.Codes))
	var ordered []*universe.CodeData
	for _, code := range e.cfg.Codes {
		cd, err := universe.LoadCodeData(e.port, code, e.cfg.Exchange, e.cfg.Start, e.cfg.End)
		if err != nil {
			logger.Infof("dropping %s: %v", code, err)
			continue
		}
		if err := universe.ComputeIndicators(cd, strat); err != nil {
			return nil, backtesterr.Wrap(backtesterr.StrategyInvalid, err, "computing indicators for %s", code)
		}
		codeData[code] = cd
		ordered = append(ordered, cd)
	}
	if len(ordered) == 0 {
		return nil, backtesterr.New(backtesterr.InsufficientData, "no instrument had sufficient bars")
	}

	timeline := universe.BuildTimeline(ordered)
	if len(timeline) == 0 {
		return nil, backtesterr.New(backtesterr.InsufficientData, "timeline is empty")
	}

	costs := execution.Costs{
		FlatFee:     e.cfg.CommissionFlat,
		PctFee:      e.cfg.CommissionPct,
		SlippagePct: e.cfg.SlippagePct,
	}
	pf := portfolio.New(e.cfg.InitialCapital)

	for _, t := range timeline {
		priceMap := make(map[string]float64, len(ordered))
		for _, cd := range ordered {
			if i, ok := cd.IndexForDate(t); ok {
				priceMap[cd.Code] = cd.Bars[i].Close
			}
		}

		execution.CheckTriggers(pf, priceMap, t, costs)

		for _, cd := range ordered {
			i, ok := cd.IndexForDate(t)
			if !ok {
				continue
			}
			processInstrument(pf, strat, cd, i, t, costs, e.cfg.AllowShorting)
		}

		equity := pf.TotalEquity(priceMap)
		pf.RecordEquity(t, equity)

		if err := pf.CheckInvariants(strat.MaxPositions); err != nil {
			return nil, backtesterr.Wrap(backtesterr.Internal, err, "invariant violated at %v", t)
		}
	}

	return &Result{Portfolio: pf, CodeData: codeData, Timeline: timeline}, nil
}

// processInstrument applies step 3 of specification §4.5 for one
// instrument at bar index i on date t: exit evaluation takes priority over
// entry evaluation within the same bar.
func processInstrument(pf *portfolio.Portfolio, strat *Strategy, cd *universe.CodeData, i int, t time.Time,
	costs execution.Costs, allowShort bool) {

	code := cd.Code
	bars := cd.Bars
	ind := cd.Indicators

	if pos, open := pf.Positions[code]; open {
		var exitRule *rule.Rule
		if pos.IsLong() {
			exitRule = strat.ExitLong()
		} else {
			exitRule = strat.ExitShort()
		}
		if exitRule != nil && rule.Evaluate(exitRule, bars, ind, i) {
			if err := execution.ExitPosition(pf, code, bars[i].Close, t, costs); err != nil {
				logger.Debugf("exit %s at %v failed: %v", code, t, err)
			}
		}
		return
	}

	if rule.Evaluate(strat.EntryLong(), bars, ind, i) {
		err := execution.EnterLong(pf, code, cd.Exchange, bars[i].Close, t,
			strat.PositionSize, strat.StopLossPct, strat.TakeProfitPct, strat.MaxPositions, costs)
		if err != nil {
			logger.Debugf("enter_long %s at %v failed: %v", code, t, err)
		}
		return
	}

	if allowShort && strat.EntryShort() != nil && rule.Evaluate(strat.EntryShort(), bars, ind, i) {
		err := execution.EnterShort(pf, code, cd.Exchange, bars[i].Close, t,
			strat.PositionSize, strat.StopLossPct, strat.TakeProfitPct, strat.MaxPositions, costs)
		if err != nil {
			logger.Debugf("enter_short %s at %v failed: %v", code, t, err)
		}
	}
}
