package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/contactkeval/backtester/internal/backtest"
	"github.com/contactkeval/backtester/internal/portfolio"
	"github.com/contactkeval/backtester/internal/rule"
)

func sampleResult() *backtest.Result {
	pf := portfolio.New(10000)
	pf.ClosedTrades = []portfolio.ClosedTrade{
		{Code: "X", Exchange: "NYSE", Quantity: 10, EntryPrice: 100, ExitPrice: 105,
			EntryDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ExitDate:  time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			PnL:       50},
	}
	pf.RecordEquity(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10000)
	pf.RecordEquity(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 10050)
	return &backtest.Result{Portfolio: pf}
}

func sampleStrategy() *backtest.Strategy {
	op := rule.Operand{Kind: rule.OperandPriceField, Field: rule.FieldClose}
	r := rule.Comparison(rule.OpAbove, op, op)
	return backtest.NewStrategy("demo", r, r, nil, nil, 1.0, 0, 0, 1, false)
}

func TestWriteJSONRoundTrips(t *testing.T) {
	s := BuildSummary(sampleStrategy(), sampleResult(), 0.05, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Write(s, path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var back Summary
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Strategy != "demo" {
		t.Fatalf("strategy = %q, want demo", back.Strategy)
	}
	if len(back.ClosedTrades) != 1 {
		t.Fatalf("expected 1 closed trade round-tripped")
	}
}

func TestWriteCSVHasHeaderAndRow(t *testing.T) {
	summary := BuildSummary(sampleStrategy(), sampleResult(), 0, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := Write(summary, path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
}

func TestWriteTypstContainsMetrics(t *testing.T) {
	summary := BuildSummary(sampleStrategy(), sampleResult(), 0, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "out.typ")
	if err := Write(summary, path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(raw), "Sharpe") {
		t.Fatalf("expected Typst output to mention Sharpe, got: %s", raw)
	}
}

func TestBuildBreakdownSkipsInstrumentsWithNoTrades(t *testing.T) {
	res := sampleResult()
	rows := BuildBreakdown(res, []string{"X", "Y"})
	if len(rows) != 1 || rows[0].Code != "X" {
		t.Fatalf("expected only X in breakdown, got %+v", rows)
	}
}
