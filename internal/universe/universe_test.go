package universe

import (
	"testing"
	"time"

	"github.com/contactkeval/backtester/internal/bar"
	"github.com/contactkeval/backtester/internal/indicator"
	"github.com/contactkeval/backtester/internal/rule"
)

func TestParseUniverseTrimsAndRejectsEmpty(t *testing.T) {
	codes, err := ParseUniverse(" AAA, BBB ,, CCC", "NYSE")
	if err != nil {
		t.Fatalf("ParseUniverse: %v", err)
	}
	want := []string{"AAA", "BBB", "CCC"}
	if len(codes) != len(want) {
		t.Fatalf("codes = %v, want %v", codes, want)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes[%d] = %q, want %q", i, codes[i], want[i])
		}
	}
}

func TestParseUniverseAllEmptyErrors(t *testing.T) {
	if _, err := ParseUniverse(" , , ", "NYSE"); err == nil {
		t.Fatalf("expected error for all-empty universe text")
	}
}

type fakePort struct {
	bars []bar.Bar
	err  error
}

func (f fakePort) FetchOHLCV(code, exchange string, start, end time.Time) ([]bar.Bar, error) {
	return f.bars, f.err
}
func (f fakePort) ListSymbols(exchange string) ([]string, error) { return nil, nil }

func makeBars(n int) []bar.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return bar.FromCloses("X", "NYSE", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), closes, 1, 1)
}

func TestLoadCodeDataRejectsInsufficientBars(t *testing.T) {
	port := fakePort{bars: makeBars(10)}
	_, err := LoadCodeData(port, "X", "NYSE", time.Time{}, time.Time{})
	if err != ErrInsufficientBars {
		t.Fatalf("expected ErrInsufficientBars, got %v", err)
	}
}

func TestLoadCodeDataBuildsDateIndex(t *testing.T) {
	port := fakePort{bars: makeBars(35)}
	cd, err := LoadCodeData(port, "X", "NYSE", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("LoadCodeData: %v", err)
	}
	if len(cd.DateIndex) != 35 {
		t.Fatalf("date index size = %d, want 35", len(cd.DateIndex))
	}
	idx, ok := cd.IndexForDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if !ok || idx != 0 {
		t.Fatalf("IndexForDate(day0) = (%d,%v), want (0,true)", idx, ok)
	}
}

func TestBuildTimelineUnionSortedDeduped(t *testing.T) {
	a := &CodeData{Bars: bar.FromCloses("A", "NYSE", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), []float64{1, 2, 3}, 1, 1)}
	b := &CodeData{Bars: bar.FromCloses("B", "NYSE", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), []float64{1, 2, 3}, 1, 1)}
	tl := BuildTimeline([]*CodeData{a, b})
	// A: Jan1,2,3 ; B: Jan2,3,4 -> union Jan1..Jan4
	if len(tl) != 4 {
		t.Fatalf("timeline length = %d, want 4", len(tl))
	}
	for i := 1; i < len(tl); i++ {
		if !tl[i-1].Before(tl[i]) {
			t.Fatalf("timeline not strictly ascending at %d", i)
		}
	}
}

type stubStrategy struct {
	entryLong, exitLong, entryShort, exitShort *rule.Rule
}

func (s stubStrategy) EntryLong() *rule.Rule   { return s.entryLong }
func (s stubStrategy) ExitLong() *rule.Rule    { return s.exitLong }
func (s stubStrategy) EntryShort() *rule.Rule  { return s.entryShort }
func (s stubStrategy) ExitShort() *rule.Rule   { return s.exitShort }

func TestComputeIndicatorsDedupesAcrossRules(t *testing.T) {
	smaOp := rule.Operand{Kind: rule.OperandIndicator, IndType: indicator.TypeSMA, IndPeriod: 3}
	closeOp := rule.Operand{Kind: rule.OperandPriceField, Field: rule.FieldClose}
	entry := rule.Comparison(rule.OpAbove, closeOp, smaOp)
	exit := rule.Comparison(rule.OpBelow, closeOp, smaOp)
	strat := stubStrategy{entryLong: entry, exitLong: exit}

	cd := &CodeData{
		Bars:       bar.FromCloses("X", "NYSE", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), []float64{1, 2, 3, 4, 5}, 1, 1),
		Indicators: rule.IndicatorMap{},
	}
	if err := ComputeIndicators(cd, strat); err != nil {
		t.Fatalf("ComputeIndicators: %v", err)
	}
	if len(cd.Indicators) != 1 {
		t.Fatalf("expected 1 deduplicated indicator series, got %d", len(cd.Indicators))
	}
	if _, ok := cd.Indicators["SMA_3"]; !ok {
		t.Fatalf("expected SMA_3 key present")
	}
}
