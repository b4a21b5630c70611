// Package metrics aggregates a finished backtest's closed trades and
// equity curve into the performance statistics described in the
// specification's §4.6.
package metrics

import (
	"math"
	"time"

	"github.com/contactkeval/backtester/internal/portfolio"
)

const tradingDaysPerYear = 252

// Result holds the aggregate statistics computed over one portfolio's
// lifetime.
type Result struct {
	TotalReturn         float64
	AnnualizedReturn     float64
	Sharpe               float64
	Sortino              float64
	MaxDrawdown          float64
	MaxDrawdownDuration  int // in days
	WinRate              float64
	ProfitFactor         float64
	TotalTrades          int
	WinningTrades        int
	LosingTrades         int
}

// Compute aggregates pf's closed trades and equity curve into a Result.
// riskFreeRate is the annualised risk-free rate used by Sharpe/Sortino.
func Compute(pf *portfolio.Portfolio, riskFreeRate float64) Result {
	var r Result
	curve := pf.EquityCurve
	if len(curve) == 0 {
		return r
	}

	initial := curve[0].Equity
	final := curve[len(curve)-1].Equity
	if initial != 0 {
		r.TotalReturn = (final - initial) / initial
	}
	tradingDays := float64(len(curve))
	if tradingDays > 0 {
		r.AnnualizedReturn = math.Pow(1+r.TotalReturn, tradingDaysPerYear/tradingDays) - 1
	}

	returns := dailyReturns(curve)
	rfDaily := riskFreeRate / tradingDaysPerYear
	r.Sharpe = sharpeRatio(returns, rfDaily)
	r.Sortino = sortinoRatio(returns, rfDaily)

	r.MaxDrawdown, r.MaxDrawdownDuration = maxDrawdown(curve)

	r.TotalTrades = len(pf.ClosedTrades)
	var grossWin, grossLoss float64
	for _, t := range pf.ClosedTrades {
		if t.PnL > 0 {
			r.WinningTrades++
			grossWin += t.PnL
		} else {
			r.LosingTrades++
			grossLoss += -t.PnL
		}
	}
	if r.TotalTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades)
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossWin / grossLoss
	}
	return r
}

// PerInstrument scopes Compute's trade-derived statistics to trades whose
// Code equals code, in the order they were recorded. The equity curve is
// shared across instruments in a multi-instrument backtest, so it is not
// re-scoped here; only trade-derived statistics (win rate, profit factor)
// are meaningful per instrument.
func PerInstrument(pf *portfolio.Portfolio, code string) (winRate, profitFactor float64, total int) {
	var grossWin, grossLoss float64
	var wins int
	for _, t := range pf.ClosedTrades {
		if t.Code != code {
			continue
		}
		total++
		if t.PnL > 0 {
			wins++
			grossWin += t.PnL
		} else {
			grossLoss += -t.PnL
		}
	}
	if total > 0 {
		winRate = float64(wins) / float64(total)
	}
	if grossLoss > 0 {
		profitFactor = grossWin / grossLoss
	}
	return winRate, profitFactor, total
}

func dailyReturns(curve []portfolio.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (curve[i].Equity-prev)/prev)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdDev computes the sample (n-1) standard deviation, as specified
// for Sharpe in §4.6.
func sampleStdDev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

func sharpeRatio(returns []float64, rfDaily float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	m := mean(returns)
	sd := sampleStdDev(returns, m)
	if sd == 0 {
		return 0
	}
	return (m - rfDaily) / sd * math.Sqrt(tradingDaysPerYear)
}

// sortinoRatio mirrors sharpeRatio but divides by a downside deviation: the
// sample (n-1) standard deviation, measured from zero, of only the negative
// daily returns.
func sortinoRatio(returns []float64, rfDaily float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	m := mean(returns)
	var negatives []float64
	for _, x := range returns {
		if x < 0 {
			negatives = append(negatives, x)
		}
	}
	sd := sampleStdDev(negatives, 0)
	if sd == 0 {
		return 0
	}
	return (m - rfDaily) / sd * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown scans curve tracking a running peak, returning the maximum
// fractional decline from that peak and the duration in days of the
// longest stretch from the start of a drawdown until a new peak is set.
func maxDrawdown(curve []portfolio.EquityPoint) (float64, int) {
	if len(curve) == 0 {
		return 0, 0
	}
	peak := curve[0].Equity
	peakDate := curve[0].Date
	var maxDD float64
	var maxDur int

	for _, pt := range curve {
		if pt.Equity > peak {
			peak = pt.Equity
			peakDate = pt.Date
			continue
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - pt.Equity) / peak
		if dd > maxDD {
			maxDD = dd
		}
		dur := daysBetween(peakDate, pt.Date)
		if dur > maxDur {
			maxDur = dur
		}
	}
	return maxDD, maxDur
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
