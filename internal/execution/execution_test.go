package execution

import (
	"testing"
	"time"

	"github.com/contactkeval/backtester/internal/portfolio"
)

var zeroCosts = Costs{}

func TestCommissionFlatPlusPct(t *testing.T) {
	got := Commission(1000, 5, 1)
	want := 5 + 1000*1.0/100
	if got != want {
		t.Fatalf("Commission = %v, want %v", got, want)
	}
}

func TestSlippageDirection(t *testing.T) {
	if got := Slippage(100, 1, true); got != 101 {
		t.Fatalf("up slippage = %v, want 101", got)
	}
	if got := Slippage(100, 1, false); got != 99 {
		t.Fatalf("down slippage = %v, want 99", got)
	}
}

func TestQuantityFloorsAndRejectsNonPositive(t *testing.T) {
	if got := Quantity(1000, 300); got != 3 {
		t.Fatalf("Quantity = %d, want 3", got)
	}
	if got := Quantity(1000, 0); got != 0 {
		t.Fatalf("Quantity with zero price = %d, want 0", got)
	}
	if got := Quantity(0, 10); got != 0 {
		t.Fatalf("Quantity with zero cash = %d, want 0", got)
	}
}

// TestLongRoundTripRestoresCash covers testable property 8: entering long
// and immediately exiting at the same price with zero cost restores cash
// exactly.
func TestLongRoundTripRestoresCash(t *testing.T) {
	p := portfolio.New(100000)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := EnterLong(p, "X", "NYSE", 100, date, 0.5, 0, 0, 5, zeroCosts); err != nil {
		t.Fatalf("EnterLong: %v", err)
	}
	afterEntry := p.Cash
	if afterEntry == 100000 {
		t.Fatalf("expected cash to decrease after entry")
	}
	if err := ExitPosition(p, "X", 100, date, zeroCosts); err != nil {
		t.Fatalf("ExitPosition: %v", err)
	}
	if p.Cash != 100000 {
		t.Fatalf("cash after round trip = %v, want 100000", p.Cash)
	}
	if len(p.Positions) != 0 {
		t.Fatalf("expected no open positions after exit")
	}
	if len(p.ClosedTrades) != 1 {
		t.Fatalf("expected 1 closed trade, got %d", len(p.ClosedTrades))
	}
}

// TestShortRoundTripRestoresCash covers testable property 9.
func TestShortRoundTripRestoresCash(t *testing.T) {
	p := portfolio.New(100000)
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := EnterShort(p, "X", "NYSE", 100, date, 0.5, 0, 0, 5, zeroCosts); err != nil {
		t.Fatalf("EnterShort: %v", err)
	}
	if err := ExitPosition(p, "X", 100, date, zeroCosts); err != nil {
		t.Fatalf("ExitPosition: %v", err)
	}
	if p.Cash != 100000 {
		t.Fatalf("cash after short round trip = %v, want 100000", p.Cash)
	}
}

func TestEnterLongRejectsWhenPositionExists(t *testing.T) {
	p := portfolio.New(100000)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := EnterLong(p, "X", "NYSE", 100, ts, 0.5, 0, 0, 5, zeroCosts); err != nil {
		t.Fatalf("first EnterLong: %v", err)
	}
	if err := EnterLong(p, "X", "NYSE", 100, ts, 0.5, 0, 0, 5, zeroCosts); err != ErrPositionExists {
		t.Fatalf("expected ErrPositionExists, got %v", err)
	}
}

func TestEnterLongRejectsAtMaxPositions(t *testing.T) {
	p := portfolio.New(100000)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := EnterLong(p, "A", "NYSE", 100, ts, 0.1, 0, 0, 1, zeroCosts); err != nil {
		t.Fatalf("EnterLong A: %v", err)
	}
	if err := EnterLong(p, "B", "NYSE", 100, ts, 0.1, 0, 0, 1, zeroCosts); err != ErrMaxPositions {
		t.Fatalf("expected ErrMaxPositions, got %v", err)
	}
}

// TestE1StopLossScenario reproduces specification scenario E1.
func TestE1StopLossScenario(t *testing.T) {
	p := portfolio.New(100000)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// entry long at close 100 with full cash, 10% stop loss
	if err := EnterLong(p, "X", "NYSE", 100, ts, 1.0, 10, 0, 1, zeroCosts); err != nil {
		t.Fatalf("EnterLong: %v", err)
	}
	pos := p.Positions["X"]
	if pos.Quantity != 1000 {
		t.Fatalf("expected 1000 shares at full 100000/100, got %d", pos.Quantity)
	}
	if pos.StopLoss != 90 {
		t.Fatalf("expected stop loss 90, got %v", pos.StopLoss)
	}

	priceMap := map[string]float64{"X": 88}
	closed := CheckTriggers(p, priceMap, ts, zeroCosts)
	if closed != 1 {
		t.Fatalf("expected 1 triggered exit, got %d", closed)
	}
	if len(p.ClosedTrades) != 1 {
		t.Fatalf("expected 1 closed trade, got %d", len(p.ClosedTrades))
	}
	trade := p.ClosedTrades[0]
	wantPnL := 1000.0 * (88 - 100)
	if trade.PnL != wantPnL {
		t.Fatalf("pnl = %v, want %v", trade.PnL, wantPnL)
	}
	if len(p.Positions) != 0 {
		t.Fatalf("expected no open positions at end")
	}
}

func TestCheckTriggersSkipsMissingPrice(t *testing.T) {
	p := portfolio.New(100000)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := EnterLong(p, "X", "NYSE", 100, ts, 1.0, 10, 0, 1, zeroCosts); err != nil {
		t.Fatalf("EnterLong: %v", err)
	}
	closed := CheckTriggers(p, map[string]float64{}, ts, zeroCosts)
	if closed != 0 {
		t.Fatalf("expected 0 closed when no price available, got %d", closed)
	}
}

func TestExitPositionNoPositionFails(t *testing.T) {
	p := portfolio.New(100000)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := ExitPosition(p, "X", 100, ts, zeroCosts); err != ErrNoPosition {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}
}
