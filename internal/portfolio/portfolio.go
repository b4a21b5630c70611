// Package portfolio implements the cash/open-position/closed-trade/equity
// state machine described in the specification's §4.3, and enforces its
// invariants: at any time cash + Σ|qty|·price == total equity, no two
// positions share a code, and positions.size() never exceeds max-positions
// at entry time.
package portfolio

import (
	"fmt"
	"time"
)

// Position is an open holding. Quantity is signed: positive for a long,
// negative for a short. Positions are never mutated in place after entry;
// they are created on entry and removed on exit.
type Position struct {
	Code       string
	Exchange   string
	Quantity   int64
	EntryPrice float64
	EntryDate  time.Time
	EntryComm  float64 // commission paid at entry, needed to net PnL symmetrically on exit
	StopLoss   float64 // 0 disables
	TakeProfit float64 // 0 disables
}

// IsLong reports whether the position is a long (quantity > 0).
func (p Position) IsLong() bool { return p.Quantity > 0 }

// ClosedTrade is an immutable record appended once a position is exited.
type ClosedTrade struct {
	Code       string
	Exchange   string
	Quantity   int64
	EntryPrice float64
	ExitPrice  float64
	EntryDate  time.Time
	ExitDate   time.Time
	PnL        float64
}

// EquityPoint is one sample of the equity curve, recorded once per
// timeline date.
type EquityPoint struct {
	Date   time.Time
	Equity float64
}

// Portfolio holds cash, open positions keyed by instrument code, and the
// append-only closed-trade and equity-curve logs.
type Portfolio struct {
	Cash         float64
	Positions    map[string]*Position
	ClosedTrades []ClosedTrade
	EquityCurve  []EquityPoint
}

// New constructs a Portfolio seeded with initialCash and no open positions.
func New(initialCash float64) *Portfolio {
	return &Portfolio{
		Cash:      initialCash,
		Positions: make(map[string]*Position),
	}
}

// HasPosition reports whether an open position exists for code.
func (p *Portfolio) HasPosition(code string) bool {
	_, ok := p.Positions[code]
	return ok
}

// TotalEquity computes cash + Σ|qty_i|·price_i over open positions, using
// prices from priceMap (keyed by code). A position whose code is missing
// from priceMap contributes its entry price instead, so that total equity
// remains defined even on a date where an instrument did not trade.
func (p *Portfolio) TotalEquity(priceMap map[string]float64) float64 {
	total := p.Cash
	for code, pos := range p.Positions {
		price, ok := priceMap[code]
		if !ok {
			price = pos.EntryPrice
		}
		total += absInt64(pos.Quantity) * price
	}
	return total
}

// RecordEquity appends one equity-curve sample for date.
func (p *Portfolio) RecordEquity(date time.Time, equity float64) {
	p.EquityCurve = append(p.EquityCurve, EquityPoint{Date: date, Equity: equity})
}

// CheckInvariants validates two of the universal invariants from
// specification §8: the open-position count does not exceed maxPositions,
// and no closed trade exits before it entered. It does not check equity
// against prices. It is intended for tests and for defensive assertions
// in the backtest loop; a violation indicates a programmer error (the
// "Internal" error kind of §7), not routine control flow.
func (p *Portfolio) CheckInvariants(maxPositions int) error {
	if len(p.Positions) > maxPositions {
		return fmt.Errorf("portfolio: %d open positions exceeds max_positions %d", len(p.Positions), maxPositions)
	}
	for _, t := range p.ClosedTrades {
		if t.ExitDate.Before(t.EntryDate) {
			return fmt.Errorf("portfolio: trade %s exit_date %v before entry_date %v", t.Code, t.ExitDate, t.EntryDate)
		}
	}
	return nil
}

func absInt64(q int64) float64 {
	if q < 0 {
		return float64(-q)
	}
	return float64(q)
}
