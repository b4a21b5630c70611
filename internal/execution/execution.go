// Package execution implements the pure price/quantity/commission
// arithmetic and the stateful enter/exit/trigger operations that move a
// portfolio.Portfolio between states, per the specification's §4.3.
package execution

import (
	"fmt"
	"math"
	"time"

	"github.com/contactkeval/backtester/internal/portfolio"
)

// Costs bundles the commission and slippage schedule applied to every
// trade. FlatFee and PctFee are added; Slippage is a percentage applied to
// the traded price, directionally per side.
type Costs struct {
	FlatFee    float64
	PctFee     float64
	SlippagePct float64
}

// Commission returns flat + tradeValue*pct/100.
func Commission(tradeValue, flat, pct float64) float64 {
	return flat + tradeValue*pct/100
}

// Slippage adjusts price by pct percent, up for buys (up=true) or down for
// sells/covers (up=false).
func Slippage(price, pct float64, up bool) float64 {
	if up {
		return price * (1 + pct/100)
	}
	return price * (1 - pct/100)
}

// Quantity returns floor(availableCash / execPrice), or 0 when either input
// is non-positive.
func Quantity(availableCash, execPrice float64) int64 {
	if execPrice <= 0 || availableCash <= 0 {
		return 0
	}
	return int64(math.Floor(availableCash / execPrice))
}

// ErrMaxPositions, ErrPositionExists, ErrZeroQuantity, and ErrNoPosition
// are the routine "execution failed" outcomes described in specification
// §7: they are ordinary return values, never panics, and the caller
// simply continues to the next instrument or date.
var (
	ErrMaxPositions   = fmt.Errorf("execution: max_positions reached")
	ErrPositionExists = fmt.Errorf("execution: position already open for code")
	ErrZeroQuantity   = fmt.Errorf("execution: computed quantity is zero")
	ErrNoPosition     = fmt.Errorf("execution: no open position for code")
)

// EnterLong opens a long position for code at close (adjusted for slippage
// upward), sized to posSize*cash, subject to maxPos and one-position-per-code.
func EnterLong(p *portfolio.Portfolio, code, exchange string, close float64, date time.Time,
	posSize, slPct, tpPct float64, maxPos int, c Costs) error {

	if len(p.Positions) >= maxPos {
		return ErrMaxPositions
	}
	if p.HasPosition(code) {
		return ErrPositionExists
	}
	exec := Slippage(close, c.SlippagePct, true)
	available := p.Cash * posSize
	qty := Quantity(available, exec)
	if qty == 0 {
		return ErrZeroQuantity
	}
	tradeValue := float64(qty) * exec
	comm := Commission(tradeValue, c.FlatFee, c.PctFee)
	p.Cash -= tradeValue + comm

	pos := &portfolio.Position{
		Code:       code,
		Exchange:   exchange,
		Quantity:   qty,
		EntryPrice: exec,
		EntryDate:  date,
		EntryComm:  comm,
	}
	if slPct > 0 {
		pos.StopLoss = exec * (1 - slPct/100)
	}
	if tpPct > 0 {
		pos.TakeProfit = exec * (1 + tpPct/100)
	}
	p.Positions[code] = pos
	return nil
}

// EnterShort opens a short position, symmetric to EnterLong: proceeds are
// credited to cash, stop-loss sits above entry, take-profit below.
func EnterShort(p *portfolio.Portfolio, code, exchange string, close float64, date time.Time,
	posSize, slPct, tpPct float64, maxPos int, c Costs) error {

	if len(p.Positions) >= maxPos {
		return ErrMaxPositions
	}
	if p.HasPosition(code) {
		return ErrPositionExists
	}
	exec := Slippage(close, c.SlippagePct, false)
	available := p.Cash * posSize
	qty := Quantity(available, exec)
	if qty == 0 {
		return ErrZeroQuantity
	}
	tradeValue := float64(qty) * exec
	comm := Commission(tradeValue, c.FlatFee, c.PctFee)
	p.Cash += tradeValue - comm

	pos := &portfolio.Position{
		Code:       code,
		Exchange:   exchange,
		Quantity:   -qty,
		EntryPrice: exec,
		EntryDate:  date,
		EntryComm:  comm,
	}
	if slPct > 0 {
		pos.StopLoss = exec * (1 + slPct/100)
	}
	if tpPct > 0 {
		pos.TakeProfit = exec * (1 - tpPct/100)
	}
	p.Positions[code] = pos
	return nil
}

// ExitPosition closes the open position for code at close (slippage-adjusted
// against the position's direction) and appends a portfolio.ClosedTrade.
func ExitPosition(p *portfolio.Portfolio, code string, close float64, date time.Time, c Costs) error {
	pos, ok := p.Positions[code]
	if !ok {
		return ErrNoPosition
	}
	isLong := pos.IsLong()
	exec := Slippage(close, c.SlippagePct, !isLong)
	qtyAbs := absInt64(pos.Quantity)
	tradeValue := qtyAbs * exec
	comm := Commission(tradeValue, c.FlatFee, c.PctFee)

	if isLong {
		p.Cash += tradeValue - comm
	} else {
		p.Cash -= tradeValue + comm
	}

	pnl := float64(pos.Quantity)*(exec-pos.EntryPrice) - pos.EntryComm - comm

	p.ClosedTrades = append(p.ClosedTrades, portfolio.ClosedTrade{
		Code:       pos.Code,
		Exchange:   pos.Exchange,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exec,
		EntryDate:  pos.EntryDate,
		ExitDate:   date,
		PnL:        pnl,
	})
	delete(p.Positions, code)
	return nil
}

// CheckTriggers scans every open position with a price in priceMap and
// exits any whose stop-loss or take-profit has been breached, stops being
// tested ahead of the caller's ordinary exit-rule evaluation. It returns
// the count of positions closed.
func CheckTriggers(p *portfolio.Portfolio, priceMap map[string]float64, date time.Time, c Costs) int {
	closed := 0
	for code, pos := range codesSnapshot(p) {
		price, ok := priceMap[code]
		if !ok {
			continue
		}
		triggered := false
		if pos.StopLoss > 0 {
			if (pos.IsLong() && price <= pos.StopLoss) || (!pos.IsLong() && price >= pos.StopLoss) {
				triggered = true
			}
		}
		if !triggered && pos.TakeProfit > 0 {
			if (pos.IsLong() && price >= pos.TakeProfit) || (!pos.IsLong() && price <= pos.TakeProfit) {
				triggered = true
			}
		}
		if triggered {
			if err := ExitPosition(p, code, price, date, c); err == nil {
				closed++
			}
		}
	}
	return closed
}

// codesSnapshot copies the open-position map's keys/values so CheckTriggers
// may safely delete from p.Positions while iterating.
func codesSnapshot(p *portfolio.Portfolio) map[string]*portfolio.Position {
	snap := make(map[string]*portfolio.Position, len(p.Positions))
	for k, v := range p.Positions {
		snap[k] = v
	}
	return snap
}

func absInt64(q int64) float64 {
	if q < 0 {
		return float64(-q)
	}
	return float64(q)
}
