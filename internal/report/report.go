// Package report implements the report-writer port named in specification
// §6: write(result, strategy, path) and write_multi for per-instrument
// breakdowns. Format is external to the core; this package offers JSON,
// CSV, and Typst artifacts, selected by the output path's extension.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/contactkeval/backtester/internal/backtest"
	"github.com/contactkeval/backtester/internal/metrics"
	"github.com/contactkeval/backtester/internal/portfolio"
)

// Summary is the full artifact payload: the strategy's name, the closed
// trades, the equity curve, and the computed metrics.
type Summary struct {
	Strategy     string                  `json:"strategy"`
	GeneratedAt  time.Time               `json:"generated_at"`
	Metrics      metrics.Result          `json:"metrics"`
	ClosedTrades []portfolio.ClosedTrade `json:"closed_trades"`
	EquityCurve  []portfolio.EquityPoint `json:"equity_curve"`
}

// InstrumentBreakdown is one row of a multi-instrument report.
type InstrumentBreakdown struct {
	Code         string  `json:"code"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	TotalTrades  int     `json:"total_trades"`
}

// BuildSummary assembles a Summary from a finished backtest result, using
// riskFreeRate for the Sharpe/Sortino inputs.
func BuildSummary(strat *backtest.Strategy, res *backtest.Result, riskFreeRate float64, generatedAt time.Time) Summary {
	return Summary{
		Strategy:     strat.Name,
		GeneratedAt:  generatedAt,
		Metrics:      metrics.Compute(res.Portfolio, riskFreeRate),
		ClosedTrades: res.Portfolio.ClosedTrades,
		EquityCurve:  res.Portfolio.EquityCurve,
	}
}

// BuildBreakdown computes per-instrument statistics, in universe-declared
// order, per specification §4.6.
func BuildBreakdown(res *backtest.Result, codesInOrder []string) []InstrumentBreakdown {
	out := make([]InstrumentBreakdown, 0, len(codesInOrder))
	for _, code := range codesInOrder {
		winRate, pf, total := metrics.PerInstrument(res.Portfolio, code)
		if total == 0 {
			continue
		}
		out = append(out, InstrumentBreakdown{Code: code, WinRate: winRate, ProfitFactor: pf, TotalTrades: total})
	}
	return out
}

// Write dispatches to WriteJSON, WriteCSV, or WriteTypst based on path's
// extension (.json, .csv, .typ — default json).
func Write(s Summary, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteCSV(s, path)
	case ".typ":
		return WriteTypst(s, path)
	default:
		return WriteJSON(s, path)
	}
}

// WriteMulti writes a multi-instrument breakdown alongside the primary
// summary, satisfying the report port's optional write_multi contract.
func WriteMulti(s Summary, breakdown []InstrumentBreakdown, path string) error {
	payload := struct {
		Summary
		Breakdown []InstrumentBreakdown `json:"breakdown"`
	}{Summary: s, Breakdown: breakdown}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal multi-result: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// WriteJSON serializes s as indented JSON.
func WriteJSON(s Summary, path string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal summary: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// WriteCSV emits a header row followed by one row per closed trade. The
// aggregate metrics are not written to the CSV artifact.
func WriteCSV(s Summary, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	headers := []string{"code", "exchange", "quantity", "entry_price", "exit_price", "entry_date", "exit_date", "pnl"}
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, t := range s.ClosedTrades {
		row := []string{
			t.Code, t.Exchange,
			fmt.Sprintf("%d", t.Quantity),
			fmt.Sprintf("%.4f", t.EntryPrice),
			fmt.Sprintf("%.4f", t.ExitPrice),
			t.EntryDate.Format("2006-01-02"),
			t.ExitDate.Format("2006-01-02"),
			fmt.Sprintf("%.2f", t.PnL),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// typstTemplate renders a minimal Typst report. There is no Typst-rendering
// library in the ecosystem this module draws from, so the document is
// produced with the standard library's text/template directly against
// Typst's plain-text markup syntax.
const typstTemplate = `= Backtest report: {{.Strategy}}
Generated {{.GeneratedAt.Format "2006-01-02 15:04"}}

== Metrics
- Total return: {{printf "%.2f%%" (pct .Metrics.TotalReturn)}}
- Annualized return: {{printf "%.2f%%" (pct .Metrics.AnnualizedReturn)}}
- Sharpe: {{printf "%.2f" .Metrics.Sharpe}}
- Sortino: {{printf "%.2f" .Metrics.Sortino}}
- Max drawdown: {{printf "%.2f%%" (pct .Metrics.MaxDrawdown)}} over {{.Metrics.MaxDrawdownDuration}} days
- Win rate: {{printf "%.2f%%" (pct .Metrics.WinRate)}}
- Profit factor: {{printf "%.2f" .Metrics.ProfitFactor}}
- Trades: {{.Metrics.TotalTrades}} ({{.Metrics.WinningTrades}} won, {{.Metrics.LosingTrades}} lost)

== Trades
{{range .ClosedTrades}}- {{.Code}} qty={{.Quantity}} entry={{printf "%.2f" .EntryPrice}} exit={{printf "%.2f" .ExitPrice}} pnl={{printf "%.2f" .PnL}}
{{end}}`

var typstFuncs = template.FuncMap{
	"pct": func(a float64) float64 { return a * 100 },
}

var typstTmpl = template.Must(template.New("typst").Funcs(typstFuncs).Parse(typstTemplate))

// WriteTypst renders s as a Typst source document.
func WriteTypst(s Summary, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()
	return typstTmpl.Execute(f, s)
}
